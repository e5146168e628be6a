package memory

import (
	"context"

	"github.com/ignite/notify-dispatch/internal/domain"
	"github.com/ignite/notify-dispatch/internal/service/settings"
)

// GetSettings implements settings.Repository.
func (s *Store) GetSettings(_ context.Context) (*domain.AdminEmailSettings, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.settings == nil {
		return nil, settings.ErrNotFound
	}
	cp := *s.settings
	return &cp, nil
}

// SaveSettings implements settings.Repository.
func (s *Store) SaveSettings(_ context.Context, in *domain.AdminEmailSettings) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *in
	s.settings = &cp
	return nil
}
