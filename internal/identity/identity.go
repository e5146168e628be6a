// Package identity looks up recipient records by user id.
//
// The dispatch engine treats the identity provider as a black box: given a
// user id it returns an address and display fields, or ErrNotFound when the
// identity no longer exists. ErrUnavailable marks a provider outage, which
// the resolver distinguishes from a single missing user.
package identity

import (
	"context"
	"errors"
	"sync"

	"github.com/ignite/notify-dispatch/internal/domain"
)

var (
	ErrNotFound    = errors.New("identity not found")
	ErrUnavailable = errors.New("identity provider unavailable")
)

// Directory resolves user ids to identity records.
type Directory interface {
	GetUser(ctx context.Context, userID string) (domain.User, error)
}

// Static is an in-memory Directory for development and tests.
type Static struct {
	mu    sync.RWMutex
	users map[string]domain.User
	// Down makes every lookup fail with ErrUnavailable.
	Down bool
}

// NewStatic returns a directory holding users.
func NewStatic(users ...domain.User) *Static {
	s := &Static{users: make(map[string]domain.User, len(users))}
	for _, u := range users {
		s.users[u.ID] = u
	}
	return s
}

// Put adds or replaces a user.
func (s *Static) Put(u domain.User) {
	s.mu.Lock()
	s.users[u.ID] = u
	s.mu.Unlock()
}

// GetUser implements Directory.
func (s *Static) GetUser(ctx context.Context, userID string) (domain.User, error) {
	if err := ctx.Err(); err != nil {
		return domain.User{}, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.Down {
		return domain.User{}, ErrUnavailable
	}
	u, ok := s.users[userID]
	if !ok {
		return domain.User{}, ErrNotFound
	}
	return u, nil
}
