package campaign

import (
	"context"
	"time"

	"github.com/ignite/notify-dispatch/internal/domain"
)

// Repository defines the data access contract for campaigns.
// Implementations must be safe for concurrent use, and every method taking
// an allowed-status set must apply it in the same statement as the write.
type Repository interface {
	// GetCampaign returns a single campaign. Returns ErrNotFound if it doesn't exist.
	GetCampaign(ctx context.Context, id string) (*domain.Campaign, error)

	// ListCampaigns returns campaigns matching the filter, newest first, and
	// the total count before pagination.
	ListCampaigns(ctx context.Context, filter ListFilter) ([]domain.Campaign, int, error)

	// CreateCampaign inserts a new campaign.
	CreateCampaign(ctx context.Context, c *domain.Campaign) error

	// UpdateCampaign applies u if the current status is in allowed.
	// Returns false when no row matched.
	UpdateCampaign(ctx context.Context, id string, u UpdateFields, allowed []domain.CampaignStatus) (bool, error)

	// DeleteCampaign removes the campaign if its status is in allowed.
	DeleteCampaign(ctx context.Context, id string, allowed []domain.CampaignStatus) (bool, error)

	// TransitionStatus sets status to `to` only if the current status is in
	// from. Entering SENDING also stamps started_at and resets counters.
	TransitionStatus(ctx context.Context, id string, from []domain.CampaignStatus, to domain.CampaignStatus, at time.Time) (bool, error)

	// SaveProgress writes running counters while the campaign is SENDING.
	SaveProgress(ctx context.Context, id string, p domain.Progress) error

	// FinishCampaign moves a SENDING campaign to `to` (SENT or FAILED) and
	// writes the final counters in the same statement.
	FinishCampaign(ctx context.Context, id string, to domain.CampaignStatus, p domain.Progress, at time.Time, lastError string) (bool, error)

	// IncrementEngagement adds the given deltas to the provider-driven counters.
	IncrementEngagement(ctx context.Context, id string, d EngagementDelta) error

	// ListDueCampaigns returns SCHEDULED campaigns with scheduled_at <= now.
	ListDueCampaigns(ctx context.Context, now time.Time, limit int) ([]domain.Campaign, error)

	// CountCampaigns returns the total and the number SENDING or SCHEDULED.
	CountCampaigns(ctx context.Context) (total, active int, err error)
}

// ListFilter controls pagination and filtering for campaign lists.
type ListFilter struct {
	Status string
	Limit  int
	Offset int
}

// UpdateFields holds the mutable fields for a campaign update.
// Nil fields are not applied.
type UpdateFields struct {
	Name          *string
	Subject       *string
	Type          *domain.EmailType
	TemplateData  map[string]string
	TargetAll     *bool
	TargetUserIDs []string
	ScheduledAt   *time.Time
	// ClearSchedule moves a SCHEDULED campaign back to DRAFT.
	ClearSchedule bool
}

// EngagementDelta is a set of counter increments from provider callbacks.
type EngagementDelta struct {
	Delivered int
	Opens     int
	Clicks    int
	Bounces   int
}

// IsZero reports whether the delta changes nothing.
func (d EngagementDelta) IsZero() bool {
	return d == EngagementDelta{}
}
