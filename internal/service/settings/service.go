package settings

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/ignite/notify-dispatch/internal/domain"
)

// Service reads and replaces the admin settings. It is safe for concurrent use.
type Service struct {
	repo Repository
	now  func() time.Time
}

// NewService creates a settings service backed by the given repository.
func NewService(repo Repository) *Service {
	return &Service{repo: repo, now: time.Now}
}

// Get returns the current settings, persisting the defaults on first read.
func (s *Service) Get(ctx context.Context) (domain.AdminEmailSettings, error) {
	cur, err := s.repo.GetSettings(ctx)
	if err == nil {
		return *cur, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return domain.AdminEmailSettings{}, fmt.Errorf("get settings: %w", err)
	}

	def := domain.DefaultSettings()
	def.ID = "default"
	def.UpdatedAt = s.now().UTC()
	if err := s.repo.SaveSettings(ctx, &def); err != nil {
		return domain.AdminEmailSettings{}, fmt.Errorf("create default settings: %w", err)
	}
	return def, nil
}

// Editor identifies the admin making a change.
type Editor struct {
	ID   string
	Name string
}

// Update validates next and replaces the current record with it.
func (s *Service) Update(ctx context.Context, next domain.AdminEmailSettings, by Editor) (domain.AdminEmailSettings, error) {
	if next.MaxEmailsPerRecipientPerDay < 0 || next.MaxEmailsPerRecipientPerDay > domain.MaxDailyCap {
		return domain.AdminEmailSettings{}, ErrInvalidDailyCap
	}
	next.FromEmail = strings.TrimSpace(next.FromEmail)
	if next.FromEmail == "" || !strings.Contains(next.FromEmail, "@") {
		return domain.AdminEmailSettings{}, ErrInvalidFrom
	}
	next.FromName = strings.TrimSpace(next.FromName)

	next.ID = "default"
	next.UpdatedBy = by.ID
	next.UpdatedByName = by.Name
	next.UpdatedAt = s.now().UTC()

	if err := s.repo.SaveSettings(ctx, &next); err != nil {
		return domain.AdminEmailSettings{}, fmt.Errorf("save settings: %w", err)
	}
	return next, nil
}
