package worker

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"

	"golang.org/x/sync/errgroup"

	"github.com/ignite/notify-dispatch/internal/domain"
	"github.com/ignite/notify-dispatch/internal/identity"
	"github.com/ignite/notify-dispatch/internal/pkg/logger"
)

// =============================================================================
// RECIPIENT RESOLVER
// =============================================================================
// Expands a campaign's targeting rule into an ordered recipient list.
// - target-all: every user with a preference row and unsubscribed_all = false
// - explicit ids: in the given order, deduplicated
// Identities that cannot be looked up are dropped without a log row.

// SubscriberSource lists users eligible for target-all campaigns.
type SubscriberSource interface {
	SubscribedUserIDs(ctx context.Context) ([]string, error)
}

// Resolver turns campaign targeting into recipients.
type Resolver struct {
	subscribers SubscriberSource
	directory   identity.Directory
	concurrency int
	log         *logger.Logger
}

// NewResolver creates a resolver that performs up to concurrency identity
// lookups at once.
func NewResolver(subscribers SubscriberSource, directory identity.Directory, concurrency int) *Resolver {
	if concurrency <= 0 {
		concurrency = 8
	}
	return &Resolver{
		subscribers: subscribers,
		directory:   directory,
		concurrency: concurrency,
		log:         logger.Named("resolver"),
	}
}

// Resolve returns the recipients for c in targeting order. It fails only
// when the subscriber list cannot be read or every lookup hit an
// unavailable identity provider.
func (r *Resolver) Resolve(ctx context.Context, c *domain.Campaign) ([]domain.Recipient, error) {
	ids, err := r.targetIDs(ctx, c)
	if err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return nil, nil
	}

	users := make([]*domain.User, len(ids))
	var unavailable, missing int32

	g := new(errgroup.Group)
	g.SetLimit(r.concurrency)
	for i, id := range ids {
		i, id := i, id
		g.Go(func() error {
			u, err := r.directory.GetUser(ctx, id)
			switch {
			case err == nil && u.Email != "":
				users[i] = &u
			case err == nil, errors.Is(err, identity.ErrNotFound):
				atomic.AddInt32(&missing, 1)
			default:
				atomic.AddInt32(&unavailable, 1)
				r.log.Warn("identity lookup failed", "user_id", id, "error", err)
			}
			return nil
		})
	}
	_ = g.Wait()

	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("resolve recipients: %w", err)
	}
	if int(unavailable) == len(ids) {
		return nil, ErrIdentityUnavailable
	}

	out := make([]domain.Recipient, 0, len(ids))
	for _, u := range users {
		if u == nil {
			continue
		}
		out = append(out, domain.Recipient{
			UserID:       u.ID,
			Email:        u.Email,
			TemplateData: mergeData(c.TemplateData, u),
		})
	}
	r.log.Info("recipients resolved",
		"campaign_id", c.ID, "targeted", len(ids), "resolved", len(out),
		"missing", missing, "unavailable", unavailable)
	return out, nil
}

func (r *Resolver) targetIDs(ctx context.Context, c *domain.Campaign) ([]string, error) {
	if c.TargetAll {
		ids, err := r.subscribers.SubscribedUserIDs(ctx)
		if err != nil {
			return nil, fmt.Errorf("list subscribed users: %w", err)
		}
		return dedupe(ids), nil
	}
	return dedupe(c.TargetUserIDs), nil
}

func dedupe(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

// mergeData copies base and adds the recipient's display name.
func mergeData(base map[string]string, u *domain.User) map[string]string {
	out := make(map[string]string, len(base)+1)
	for k, v := range base {
		out[k] = v
	}
	out["userName"] = u.DisplayName()
	return out
}
