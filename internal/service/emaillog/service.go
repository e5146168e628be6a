package emaillog

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/ignite/notify-dispatch/internal/domain"
)

const (
	// MaxPageSize caps ListFilter.Limit for reporting queries.
	MaxPageSize     = 200
	defaultPageSize = 50
	// upgradeAttempts bounds compare-and-set retries when two callbacks for
	// the same message race.
	upgradeAttempts = 3
)

// EngagementSink receives accepted status upgrades for campaign logs.
type EngagementSink interface {
	RecordEngagement(ctx context.Context, campaignID string, t domain.Transition) error
}

// Service implements the log recorder. It is safe for concurrent use.
type Service struct {
	repo Repository
	sink EngagementSink
	now  func() time.Time
}

// NewService creates a log recorder backed by the given repository. sink
// may be nil when campaign counters are not maintained.
func NewService(repo Repository, sink EngagementSink) *Service {
	return &Service{repo: repo, sink: sink, now: time.Now}
}

// Record appends one attempt row. ID and timestamps are filled in when
// missing.
func (s *Service) Record(ctx context.Context, l *domain.EmailLog) error {
	if l.ID == "" {
		l.ID = uuid.New().String()
	}
	now := s.now().UTC()
	if l.CreatedAt.IsZero() {
		l.CreatedAt = now
	}
	if l.Status == domain.LogSent && l.SentAt == nil {
		l.SentAt = &now
	}
	if err := s.repo.InsertLog(ctx, l); err != nil {
		return fmt.Errorf("insert email log: %w", err)
	}
	return nil
}

// Upgrade is the result of one provider event.
type Upgrade struct {
	Log        domain.EmailLog
	Transition domain.Transition
	Applied    bool
}

// ApplyProviderEvent moves the log for messageID forward to status. Events
// that would move it backward or sideways are ignored and reported with
// Applied=false. Accepted upgrades of campaign logs are forwarded to the
// engagement sink.
func (s *Service) ApplyProviderEvent(ctx context.Context, messageID string, status domain.LogStatus, at time.Time) (*Upgrade, error) {
	if messageID == "" {
		return nil, ErrMissingMessage
	}
	switch status {
	case domain.LogDelivered, domain.LogOpened, domain.LogClicked, domain.LogBounced:
	default:
		return nil, ErrInvalidStatus
	}
	if at.IsZero() {
		at = s.now()
	}
	at = at.UTC()

	for i := 0; i < upgradeAttempts; i++ {
		l, err := s.repo.GetLogByMessageID(ctx, messageID)
		if err != nil {
			return nil, err
		}
		next, changed := domain.NextLogStatus(l.Status, status)
		if !changed {
			return &Upgrade{Log: *l, Transition: domain.Transition{From: l.Status, To: l.Status}}, nil
		}
		ok, err := s.repo.UpgradeLogStatus(ctx, l.ID, l.Status, next, at)
		if err != nil {
			return nil, fmt.Errorf("upgrade email log: %w", err)
		}
		if !ok {
			continue
		}

		t := domain.Transition{From: l.Status, To: next}
		prev := *l
		prev.Status = next
		if s.sink != nil && prev.CampaignID != "" {
			if err := s.sink.RecordEngagement(ctx, prev.CampaignID, t); err != nil {
				return nil, fmt.Errorf("record engagement: %w", err)
			}
		}
		return &Upgrade{Log: prev, Transition: t, Applied: true}, nil
	}
	return nil, errors.New("email log upgrade contended, giving up")
}

// List returns logs for reporting, clamping the page size.
func (s *Service) List(ctx context.Context, f ListFilter) ([]domain.EmailLog, int, error) {
	if f.Limit <= 0 {
		f.Limit = defaultPageSize
	}
	if f.Limit > MaxPageSize {
		f.Limit = MaxPageSize
	}
	if f.Offset < 0 {
		f.Offset = 0
	}
	return s.repo.ListLogs(ctx, f)
}

// Counts returns the maintained per-status totals.
func (s *Service) Counts(ctx context.Context) (domain.StatusCounts, error) {
	return s.repo.StatusCounts(ctx)
}
