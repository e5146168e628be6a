package settings_test

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/ignite/notify-dispatch/internal/domain"
	"github.com/ignite/notify-dispatch/internal/service/settings"
)

type memRepo struct {
	mu    sync.Mutex
	cur   *domain.AdminEmailSettings
	saves int
}

func (m *memRepo) GetSettings(_ context.Context) (*domain.AdminEmailSettings, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.cur == nil {
		return nil, settings.ErrNotFound
	}
	cp := *m.cur
	return &cp, nil
}

func (m *memRepo) SaveSettings(_ context.Context, s *domain.AdminEmailSettings) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *s
	m.cur = &cp
	m.saves++
	return nil
}

func TestGet_CreatesDefaultOnFirstRead(t *testing.T) {
	repo := &memRepo{}
	svc := settings.NewService(repo)

	got, err := svc.Get(context.Background())
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if !got.SystemEnabled || !got.EnableSalesEmails || got.MaxEmailsPerRecipientPerDay != 5 {
		t.Fatalf("unexpected defaults: %+v", got)
	}
	if repo.saves != 1 {
		t.Fatalf("expected default to be persisted once, saves=%d", repo.saves)
	}

	if _, err := svc.Get(context.Background()); err != nil {
		t.Fatalf("second Get: %v", err)
	}
	if repo.saves != 1 {
		t.Fatalf("second Get should not write, saves=%d", repo.saves)
	}
}

func TestUpdate_ReplacesAndStampsEditor(t *testing.T) {
	repo := &memRepo{}
	svc := settings.NewService(repo)

	next := domain.DefaultSettings()
	next.MaintenanceMode = true
	next.FromEmail = " shop@example.com "
	next.MaxEmailsPerRecipientPerDay = 0

	got, err := svc.Update(context.Background(), next, settings.Editor{ID: "admin_1", Name: "Ada"})
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	if got.UpdatedBy != "admin_1" || got.UpdatedByName != "Ada" || got.UpdatedAt.IsZero() {
		t.Fatalf("editor not recorded: %+v", got)
	}
	if got.FromEmail != "shop@example.com" {
		t.Fatalf("from email not trimmed: %q", got.FromEmail)
	}

	stored, _ := svc.Get(context.Background())
	if !stored.MaintenanceMode || stored.MaxEmailsPerRecipientPerDay != 0 {
		t.Fatalf("update not persisted: %+v", stored)
	}
}

func TestUpdate_Validation(t *testing.T) {
	svc := settings.NewService(&memRepo{})

	tests := []struct {
		name string
		mut  func(*domain.AdminEmailSettings)
		want error
	}{
		{"cap too high", func(s *domain.AdminEmailSettings) { s.MaxEmailsPerRecipientPerDay = 101 }, settings.ErrInvalidDailyCap},
		{"cap negative", func(s *domain.AdminEmailSettings) { s.MaxEmailsPerRecipientPerDay = -1 }, settings.ErrInvalidDailyCap},
		{"missing from", func(s *domain.AdminEmailSettings) { s.FromEmail = "" }, settings.ErrInvalidFrom},
		{"bad from", func(s *domain.AdminEmailSettings) { s.FromEmail = "nobody" }, settings.ErrInvalidFrom},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := domain.DefaultSettings()
			tt.mut(&s)
			if _, err := svc.Update(context.Background(), s, settings.Editor{}); !errors.Is(err, tt.want) {
				t.Fatalf("err = %v, want %v", err, tt.want)
			}
		})
	}
}
