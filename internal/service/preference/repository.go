package preference

import (
	"context"

	"github.com/ignite/notify-dispatch/internal/domain"
)

// Repository defines the data access contract for email preferences.
// Implementations must be safe for concurrent use.
type Repository interface {
	// GetPreference returns one record. Returns ErrNotFound if it doesn't exist.
	GetPreference(ctx context.Context, userID string) (*domain.EmailPreference, error)

	// UpsertPreference inserts or replaces the record for p.UserID.
	UpsertPreference(ctx context.Context, p *domain.EmailPreference) error

	// InsertPreferenceIfMissing inserts p only when no record exists and
	// returns the stored record either way.
	InsertPreferenceIfMissing(ctx context.Context, p *domain.EmailPreference) (*domain.EmailPreference, error)

	// ListSubscribedUserIDs returns every user with unsubscribed_all = false,
	// ordered by creation time.
	ListSubscribedUserIDs(ctx context.Context) ([]string, error)

	// CountPreferences returns the number of stored records.
	CountPreferences(ctx context.Context) (int, error)
}

// UpdateFields holds the mutable flags for a preference update.
// Nil fields are left unchanged.
type UpdateFields struct {
	SalesEmails       *bool
	OfferEmails       *bool
	NewProductEmails  *bool
	OrderConfirmation *bool
	OrderUpdates      *bool
	UnsubscribedAll   *bool
}
