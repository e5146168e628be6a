package campaign

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/ignite/notify-dispatch/internal/domain"
)

var (
	startable = []domain.CampaignStatus{domain.CampaignDraft, domain.CampaignScheduled}
	editable  = []domain.CampaignStatus{domain.CampaignDraft, domain.CampaignScheduled}
	deletable = []domain.CampaignStatus{domain.CampaignDraft, domain.CampaignScheduled, domain.CampaignCancelled}
)

// Service implements campaign business logic. All public methods are safe
// for concurrent use if the underlying repository is concurrency-safe.
type Service struct {
	repo Repository
	now  func() time.Time
}

// NewService creates a campaign service backed by the given repository.
func NewService(repo Repository) *Service {
	return &Service{repo: repo, now: time.Now}
}

// CreateInput holds the fields for creating a new campaign.
type CreateInput struct {
	Name          string            `json:"name"`
	Type          domain.EmailType  `json:"type"`
	Subject       string            `json:"subject"`
	TemplateData  map[string]string `json:"template_data"`
	TargetAll     bool              `json:"target_all"`
	TargetUserIDs []string          `json:"target_user_ids"`
	ScheduledAt   *time.Time        `json:"scheduled_at"`
	CreatedBy     string            `json:"-"`
}

// Create validates and persists a new campaign. It starts SCHEDULED when a
// schedule is given and DRAFT otherwise.
func (s *Service) Create(ctx context.Context, in CreateInput) (*domain.Campaign, error) {
	in.Name = strings.TrimSpace(in.Name)
	in.Subject = strings.TrimSpace(in.Subject)
	if in.Name == "" {
		return nil, ErrNameRequired
	}
	if in.Subject == "" {
		return nil, ErrSubjectRequired
	}
	if !in.Type.IsMarketing() {
		return nil, ErrInvalidType
	}
	if !in.TargetAll && len(in.TargetUserIDs) == 0 {
		return nil, ErrNoTargets
	}

	now := s.now().UTC()
	c := &domain.Campaign{
		ID:            uuid.New().String(),
		Name:          in.Name,
		Type:          in.Type,
		Status:        domain.CampaignDraft,
		Subject:       in.Subject,
		TemplateData:  in.TemplateData,
		TargetAll:     in.TargetAll,
		TargetUserIDs: in.TargetUserIDs,
		CreatedBy:     in.CreatedBy,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if c.TemplateData == nil {
		c.TemplateData = map[string]string{}
	}
	if in.ScheduledAt != nil {
		at := in.ScheduledAt.UTC()
		c.ScheduledAt = &at
		c.Status = domain.CampaignScheduled
	}

	if err := s.repo.CreateCampaign(ctx, c); err != nil {
		return nil, fmt.Errorf("create campaign: %w", err)
	}
	return c, nil
}

// Get returns a single campaign.
func (s *Service) Get(ctx context.Context, id string) (*domain.Campaign, error) {
	return s.repo.GetCampaign(ctx, id)
}

// List returns campaigns matching the filter.
func (s *Service) List(ctx context.Context, f ListFilter) ([]domain.Campaign, int, error) {
	return s.repo.ListCampaigns(ctx, f)
}

// Update modifies mutable fields of a DRAFT or SCHEDULED campaign.
func (s *Service) Update(ctx context.Context, id string, u UpdateFields) error {
	if u.Name != nil && strings.TrimSpace(*u.Name) == "" {
		return ErrNameRequired
	}
	if u.Subject != nil && strings.TrimSpace(*u.Subject) == "" {
		return ErrSubjectRequired
	}
	if u.Type != nil && !u.Type.IsMarketing() {
		return ErrInvalidType
	}
	ok, err := s.repo.UpdateCampaign(ctx, id, u, editable)
	if err != nil {
		return fmt.Errorf("update campaign: %w", err)
	}
	if !ok {
		return s.explain(ctx, id, ErrNotEditable)
	}
	return nil
}

// Cancel moves a DRAFT or SCHEDULED campaign to CANCELLED. A campaign that
// is already dispatching is not interrupted.
func (s *Service) Cancel(ctx context.Context, id string) error {
	ok, err := s.repo.TransitionStatus(ctx, id, startable, domain.CampaignCancelled, s.now().UTC())
	if err != nil {
		return fmt.Errorf("cancel campaign: %w", err)
	}
	if !ok {
		return s.explain(ctx, id, ErrInvalidTransition)
	}
	return nil
}

// Delete removes a DRAFT, SCHEDULED or CANCELLED campaign.
func (s *Service) Delete(ctx context.Context, id string) error {
	ok, err := s.repo.DeleteCampaign(ctx, id, deletable)
	if err != nil {
		return fmt.Errorf("delete campaign: %w", err)
	}
	if !ok {
		return s.explain(ctx, id, ErrInvalidTransition)
	}
	return nil
}

// CheckSendable reports, without changing anything, whether a send trigger
// for id would currently be accepted.
func (s *Service) CheckSendable(ctx context.Context, id string) (*domain.Campaign, error) {
	c, err := s.repo.GetCampaign(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := statusError(c.Status); err != nil {
		return nil, err
	}
	return c, nil
}

// BeginSend atomically moves DRAFT/SCHEDULED to SENDING and returns the
// campaign as it was entered into dispatch. A campaign already SENDING or
// SENT yields ErrAlreadySending / ErrAlreadySent.
func (s *Service) BeginSend(ctx context.Context, id string) (*domain.Campaign, error) {
	ok, err := s.repo.TransitionStatus(ctx, id, startable, domain.CampaignSending, s.now().UTC())
	if err != nil {
		return nil, fmt.Errorf("begin send: %w", err)
	}
	if !ok {
		return nil, s.explain(ctx, id, ErrInvalidTransition)
	}
	return s.repo.GetCampaign(ctx, id)
}

// SaveProgress persists running counters so observers can poll a large
// dispatch.
func (s *Service) SaveProgress(ctx context.Context, id string, p domain.Progress) error {
	return s.repo.SaveProgress(ctx, id, p)
}

// Complete moves SENDING to SENT with final totals. SENT means dispatch was
// attempted for every resolved recipient, not that every one succeeded.
func (s *Service) Complete(ctx context.Context, id string, p domain.Progress) error {
	ok, err := s.repo.FinishCampaign(ctx, id, domain.CampaignSent, p, s.now().UTC(), "")
	if err != nil {
		return fmt.Errorf("complete campaign: %w", err)
	}
	if !ok {
		return s.explain(ctx, id, ErrInvalidTransition)
	}
	return nil
}

// Fail moves SENDING to FAILED, keeping whatever counters were reached.
func (s *Service) Fail(ctx context.Context, id string, p domain.Progress, cause error) error {
	msg := ""
	if cause != nil {
		msg = cause.Error()
	}
	ok, err := s.repo.FinishCampaign(ctx, id, domain.CampaignFailed, p, s.now().UTC(), msg)
	if err != nil {
		return fmt.Errorf("fail campaign: %w", err)
	}
	if !ok {
		return s.explain(ctx, id, ErrInvalidTransition)
	}
	return nil
}

// RecordEngagement bumps the campaign's provider-driven counters for one
// accepted log status upgrade.
func (s *Service) RecordEngagement(ctx context.Context, id string, t domain.Transition) error {
	var d EngagementDelta
	if t.CountsDelivered() {
		d.Delivered = 1
	}
	if t.CountsOpen() {
		d.Opens = 1
	}
	if t.CountsClick() {
		d.Clicks = 1
	}
	if t.CountsBounce() {
		d.Bounces = 1
	}
	if d.IsZero() {
		return nil
	}
	return s.repo.IncrementEngagement(ctx, id, d)
}

// Due returns SCHEDULED campaigns whose time has come.
func (s *Service) Due(ctx context.Context, limit int) ([]domain.Campaign, error) {
	return s.repo.ListDueCampaigns(ctx, s.now().UTC(), limit)
}

// Counts returns the total number of campaigns and how many are active.
func (s *Service) Counts(ctx context.Context) (total, active int, err error) {
	return s.repo.CountCampaigns(ctx)
}

// explain maps a zero-row conditional write to the most specific error.
func (s *Service) explain(ctx context.Context, id string, fallback error) error {
	c, err := s.repo.GetCampaign(ctx, id)
	if err != nil {
		return err
	}
	if err := statusError(c.Status); err != nil && fallback != ErrNotEditable {
		return err
	}
	return fmt.Errorf("%w: campaign is %s", fallback, c.Status)
}

func statusError(st domain.CampaignStatus) error {
	switch st {
	case domain.CampaignSending:
		return ErrAlreadySending
	case domain.CampaignSent:
		return ErrAlreadySent
	case domain.CampaignFailed, domain.CampaignCancelled:
		return fmt.Errorf("%w: campaign is %s", ErrInvalidTransition, st)
	}
	return nil
}
