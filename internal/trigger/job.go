// Package trigger carries units of work from events and the scheduler to
// the dispatch pipeline.
//
// Producers publish a Job and return immediately; consumers hand each Job
// to a Handler out of band. Two transports are provided: an in-process
// channel queue and Amazon SQS. Delivery is at-least-once, so handlers
// must be idempotent; the campaign state machine guard makes a redelivered
// campaign.send harmless.
package trigger

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Kind names the event a Job carries.
type Kind string

const (
	KindCampaignSend   Kind = "campaign.send"
	KindOrderCreated   Kind = "order.created"
	KindOrderShipped   Kind = "order.shipped"
	KindOrderDelivered Kind = "order.delivered"
	KindUserCreated    Kind = "user.created"
	KindPasswordReset  Kind = "password.reset"
)

// Job is one unit of work.
type Job struct {
	ID         string            `json:"id"`
	Kind       Kind              `json:"kind"`
	CampaignID string            `json:"campaign_id,omitempty"`
	UserID     string            `json:"user_id,omitempty"`
	Email      string            `json:"email,omitempty"`
	Data       map[string]string `json:"data,omitempty"`
	EnqueuedAt time.Time         `json:"enqueued_at"`
}

// ErrInvalidJob is returned for jobs missing the fields their kind needs.
var ErrInvalidJob = errors.New("invalid job")

// NewJob stamps an id and enqueue time.
func NewJob(kind Kind) Job {
	return Job{ID: uuid.New().String(), Kind: kind, EnqueuedAt: time.Now().UTC()}
}

// CampaignSend builds a campaign.send job.
func CampaignSend(campaignID string) Job {
	j := NewJob(KindCampaignSend)
	j.CampaignID = campaignID
	return j
}

// Validate checks the fields required by the job's kind.
func (j Job) Validate() error {
	switch j.Kind {
	case KindCampaignSend:
		if j.CampaignID == "" {
			return fmt.Errorf("%w: %s requires campaign_id", ErrInvalidJob, j.Kind)
		}
	case KindOrderCreated, KindOrderShipped, KindOrderDelivered, KindUserCreated, KindPasswordReset:
		if j.UserID == "" {
			return fmt.Errorf("%w: %s requires user_id", ErrInvalidJob, j.Kind)
		}
	default:
		return fmt.Errorf("%w: unknown kind %q", ErrInvalidJob, j.Kind)
	}
	return nil
}

// Encode serialises the job for a message body.
func (j Job) Encode() (string, error) {
	b, err := json.Marshal(j)
	if err != nil {
		return "", fmt.Errorf("encode job: %w", err)
	}
	return string(b), nil
}

// DecodeJob parses a message body.
func DecodeJob(body string) (Job, error) {
	var j Job
	if err := json.Unmarshal([]byte(body), &j); err != nil {
		return Job{}, fmt.Errorf("decode job: %w", err)
	}
	return j, nil
}

// Handler processes one job. Returning an error leaves the job for
// redelivery where the transport supports it.
type Handler interface {
	Handle(ctx context.Context, j Job) error
}

// HandlerFunc adapts a function to Handler.
type HandlerFunc func(ctx context.Context, j Job) error

// Handle implements Handler.
func (f HandlerFunc) Handle(ctx context.Context, j Job) error { return f(ctx, j) }

// Publisher enqueues jobs.
type Publisher interface {
	Publish(ctx context.Context, j Job) error
}
