package memory

import (
	"context"

	"github.com/ignite/notify-dispatch/internal/domain"
	"github.com/ignite/notify-dispatch/internal/service/preference"
)

// GetPreference implements preference.Repository.
func (s *Store) GetPreference(_ context.Context, userID string) (*domain.EmailPreference, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.preferences[userID]
	if !ok {
		return nil, preference.ErrNotFound
	}
	cp := *p
	return &cp, nil
}

// UpsertPreference implements preference.Repository.
func (s *Store) UpsertPreference(_ context.Context, p *domain.EmailPreference) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.preferences[p.UserID]; !ok {
		s.prefOrder = append(s.prefOrder, p.UserID)
	}
	cp := *p
	s.preferences[p.UserID] = &cp
	return nil
}

// InsertPreferenceIfMissing implements preference.Repository.
func (s *Store) InsertPreferenceIfMissing(_ context.Context, p *domain.EmailPreference) (*domain.EmailPreference, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if cur, ok := s.preferences[p.UserID]; ok {
		cp := *cur
		return &cp, nil
	}
	cp := *p
	s.preferences[p.UserID] = &cp
	s.prefOrder = append(s.prefOrder, p.UserID)
	out := cp
	return &out, nil
}

// ListSubscribedUserIDs implements preference.Repository.
func (s *Store) ListSubscribedUserIDs(_ context.Context) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []string
	for _, id := range s.prefOrder {
		if !s.preferences[id].UnsubscribedAll {
			out = append(out, id)
		}
	}
	return out, nil
}

// CountPreferences implements preference.Repository.
func (s *Store) CountPreferences(_ context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.preferences), nil
}
