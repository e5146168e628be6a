package emaillog

import (
	"context"
	"time"

	"github.com/ignite/notify-dispatch/internal/domain"
)

// Repository defines the data access contract for email logs. InsertLog and
// UpgradeLogStatus must update the per-status totals atomically with the row.
type Repository interface {
	// InsertLog appends one attempt row.
	InsertLog(ctx context.Context, l *domain.EmailLog) error

	// GetLogByMessageID returns the row for a provider message id.
	// Returns ErrNotFound if it doesn't exist.
	GetLogByMessageID(ctx context.Context, messageID string) (*domain.EmailLog, error)

	// UpgradeLogStatus sets status to `to` only if it is still `from`, and
	// stamps the timestamp column that belongs to `to`. Returns false when
	// the row moved in between.
	UpgradeLogStatus(ctx context.Context, id string, from, to domain.LogStatus, at time.Time) (bool, error)

	// ListLogs returns rows matching the filter, newest first, and the total
	// count before pagination.
	ListLogs(ctx context.Context, filter ListFilter) ([]domain.EmailLog, int, error)

	// StatusCounts returns the maintained per-status totals.
	StatusCounts(ctx context.Context) (domain.StatusCounts, error)
}

// ListFilter controls pagination and filtering for log queries.
type ListFilter struct {
	Status     string
	CampaignID string
	UserID     string
	Limit      int
	Offset     int
}
