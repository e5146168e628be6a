package memory

import (
	"context"
	"time"

	"github.com/ignite/notify-dispatch/internal/domain"
	"github.com/ignite/notify-dispatch/internal/service/emaillog"
)

// InsertLog implements emaillog.Repository.
func (s *Store) InsertLog(_ context.Context, l *domain.EmailLog) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.InsertLogErr != nil {
		return s.InsertLogErr
	}
	cp := *l
	s.logs = append(s.logs, &cp)
	if cp.MessageID != "" {
		s.logByMsg[cp.MessageID] = &cp
	}
	s.counts[cp.Status]++
	return nil
}

// GetLogByMessageID implements emaillog.Repository.
func (s *Store) GetLogByMessageID(_ context.Context, messageID string) (*domain.EmailLog, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.logByMsg[messageID]
	if !ok {
		return nil, emaillog.ErrNotFound
	}
	cp := *l
	return &cp, nil
}

// UpgradeLogStatus implements emaillog.Repository.
func (s *Store) UpgradeLogStatus(_ context.Context, id string, from, to domain.LogStatus, at time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, l := range s.logs {
		if l.ID != id {
			continue
		}
		if l.Status != from {
			return false, nil
		}
		l.Status = to
		switch to {
		case domain.LogDelivered:
			l.DeliveredAt = &at
		case domain.LogOpened:
			l.OpenedAt = &at
		case domain.LogClicked:
			l.ClickedAt = &at
		case domain.LogBounced:
			l.BouncedAt = &at
		}
		s.counts[from]--
		s.counts[to]++
		return true, nil
	}
	return false, emaillog.ErrNotFound
}

// ListLogs implements emaillog.Repository.
func (s *Store) ListLogs(_ context.Context, f emaillog.ListFilter) ([]domain.EmailLog, int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.EmailLog
	for i := len(s.logs) - 1; i >= 0; i-- {
		l := s.logs[i]
		if f.Status != "" && string(l.Status) != f.Status {
			continue
		}
		if f.CampaignID != "" && l.CampaignID != f.CampaignID {
			continue
		}
		if f.UserID != "" && l.UserID != f.UserID {
			continue
		}
		out = append(out, *l)
	}
	start, end := page(len(out), f.Limit, f.Offset)
	return out[start:end], len(out), nil
}

// StatusCounts implements emaillog.Repository.
func (s *Store) StatusCounts(_ context.Context) (domain.StatusCounts, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(domain.StatusCounts, len(s.counts))
	for k, v := range s.counts {
		out[k] = v
	}
	return out, nil
}

// Logs returns a copy of every stored log in insertion order.
func (s *Store) Logs() []domain.EmailLog {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.EmailLog, len(s.logs))
	for i, l := range s.logs {
		out[i] = *l
	}
	return out
}
