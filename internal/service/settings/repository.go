package settings

import (
	"context"

	"github.com/ignite/notify-dispatch/internal/domain"
)

// Repository defines the data access contract for the settings singleton.
type Repository interface {
	// GetSettings returns the current record. Returns ErrNotFound if none exists.
	GetSettings(ctx context.Context) (*domain.AdminEmailSettings, error)

	// SaveSettings replaces the current record.
	SaveSettings(ctx context.Context, s *domain.AdminEmailSettings) error
}
