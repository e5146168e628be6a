package emaillog_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/ignite/notify-dispatch/internal/domain"
	"github.com/ignite/notify-dispatch/internal/repository/memory"
	"github.com/ignite/notify-dispatch/internal/service/emaillog"
)

type recordingSink struct {
	mu    sync.Mutex
	calls []domain.Transition
}

func (r *recordingSink) RecordEngagement(_ context.Context, _ string, t domain.Transition) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, t)
	return nil
}

func sentLog(msgID string) *domain.EmailLog {
	return &domain.EmailLog{
		CampaignID: "c1", UserID: "u1", Email: "u1@example.com",
		Type: domain.TypeNewsletter, Subject: "Hi", Status: domain.LogSent, MessageID: msgID,
	}
}

func TestRecord_FillsDefaults(t *testing.T) {
	store := memory.New()
	svc := emaillog.NewService(store, nil)

	l := sentLog("m1")
	if err := svc.Record(context.Background(), l); err != nil {
		t.Fatalf("Record: %v", err)
	}
	if l.ID == "" || l.CreatedAt.IsZero() || l.SentAt == nil {
		t.Fatalf("defaults not filled: %+v", l)
	}
}

func TestRecord_ConcurrentNoLostWrites(t *testing.T) {
	store := memory.New()
	svc := emaillog.NewService(store, nil)

	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_ = svc.Record(context.Background(), sentLog(fmt.Sprintf("m%d", i)))
		}(i)
	}
	wg.Wait()

	if n := len(store.Logs()); n != 100 {
		t.Fatalf("logs = %d, want 100", n)
	}
	counts, _ := svc.Counts(context.Background())
	if counts[domain.LogSent] != 100 {
		t.Fatalf("sent counter = %d, want 100", counts[domain.LogSent])
	}
}

func TestApplyProviderEvent_Monotonic(t *testing.T) {
	store := memory.New()
	sink := &recordingSink{}
	svc := emaillog.NewService(store, sink)
	ctx := context.Background()

	if err := svc.Record(ctx, sentLog("m1")); err != nil {
		t.Fatalf("Record: %v", err)
	}

	steps := []struct {
		event   domain.LogStatus
		applied bool
		want    domain.LogStatus
	}{
		{domain.LogDelivered, true, domain.LogDelivered},
		{domain.LogDelivered, false, domain.LogDelivered},
		{domain.LogOpened, true, domain.LogOpened},
		{domain.LogDelivered, false, domain.LogOpened},
		{domain.LogBounced, false, domain.LogOpened},
		{domain.LogClicked, true, domain.LogClicked},
	}
	for i, st := range steps {
		up, err := svc.ApplyProviderEvent(ctx, "m1", st.event, time.Now())
		if err != nil {
			t.Fatalf("step %d: %v", i, err)
		}
		if up.Applied != st.applied || up.Log.Status != st.want {
			t.Fatalf("step %d: applied=%v status=%s, want %v %s", i, up.Applied, up.Log.Status, st.applied, st.want)
		}
	}
	if len(sink.calls) != 3 {
		t.Fatalf("sink calls = %d, want 3", len(sink.calls))
	}

	counts, _ := svc.Counts(ctx)
	if counts[domain.LogClicked] != 1 || counts[domain.LogSent] != 0 {
		t.Fatalf("counters not moved: %v", counts)
	}
}

func TestApplyProviderEvent_BounceFromDelivered(t *testing.T) {
	svc := emaillog.NewService(memory.New(), nil)
	ctx := context.Background()
	_ = svc.Record(ctx, sentLog("m2"))

	if _, err := svc.ApplyProviderEvent(ctx, "m2", domain.LogDelivered, time.Time{}); err != nil {
		t.Fatalf("delivered: %v", err)
	}
	up, err := svc.ApplyProviderEvent(ctx, "m2", domain.LogBounced, time.Time{})
	if err != nil {
		t.Fatalf("bounced: %v", err)
	}
	if !up.Applied || up.Log.Status != domain.LogBounced {
		t.Fatalf("bounce not applied: %+v", up)
	}
	up, _ = svc.ApplyProviderEvent(ctx, "m2", domain.LogClicked, time.Time{})
	if up.Applied {
		t.Fatalf("BOUNCED must be final")
	}
}

func TestApplyProviderEvent_Errors(t *testing.T) {
	svc := emaillog.NewService(memory.New(), nil)
	ctx := context.Background()

	if _, err := svc.ApplyProviderEvent(ctx, "", domain.LogOpened, time.Time{}); !errors.Is(err, emaillog.ErrMissingMessage) {
		t.Fatalf("err = %v, want ErrMissingMessage", err)
	}
	if _, err := svc.ApplyProviderEvent(ctx, "m", domain.LogSent, time.Time{}); !errors.Is(err, emaillog.ErrInvalidStatus) {
		t.Fatalf("err = %v, want ErrInvalidStatus", err)
	}
	if _, err := svc.ApplyProviderEvent(ctx, "nope", domain.LogOpened, time.Time{}); !errors.Is(err, emaillog.ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestList_ClampsLimit(t *testing.T) {
	store := memory.New()
	svc := emaillog.NewService(store, nil)
	ctx := context.Background()
	for i := 0; i < 250; i++ {
		_ = svc.Record(ctx, sentLog(fmt.Sprintf("m%d", i)))
	}
	logs, total, err := svc.List(ctx, emaillog.ListFilter{Limit: 1000})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if total != 250 || len(logs) != emaillog.MaxPageSize {
		t.Fatalf("total=%d len=%d", total, len(logs))
	}
}
