package worker

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ignite/notify-dispatch/internal/domain"
	"github.com/ignite/notify-dispatch/internal/identity"
	"github.com/ignite/notify-dispatch/internal/repository/memory"
	"github.com/ignite/notify-dispatch/internal/service/campaign"
	"github.com/ignite/notify-dispatch/internal/service/emaillog"
	"github.com/ignite/notify-dispatch/internal/service/preference"
	"github.com/ignite/notify-dispatch/internal/service/settings"
	"github.com/ignite/notify-dispatch/internal/templates"
	"github.com/ignite/notify-dispatch/internal/transport"
	"github.com/ignite/notify-dispatch/internal/trigger"
)

// =============================================================================
// TEST HARNESS
// =============================================================================

type fakeSender struct {
	mu    sync.Mutex
	sent  []transport.Message
	fail  map[string]error
	calls int64
	delay time.Duration
}

func (f *fakeSender) Name() string { return "fake" }

func (f *fakeSender) Send(ctx context.Context, msg transport.Message) (transport.Result, error) {
	n := atomic.AddInt64(&f.calls, 1)
	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return transport.Result{}, ctx.Err()
		}
	}
	if err, ok := f.fail[msg.To]; ok {
		return transport.Result{}, err
	}
	f.mu.Lock()
	f.sent = append(f.sent, msg)
	f.mu.Unlock()
	return transport.Result{MessageID: fmt.Sprintf("msg-%d", n), Provider: "fake"}, nil
}

type harness struct {
	store     *memory.Store
	dir       *identity.Static
	sender    *fakeSender
	limiter   *MemoryRateLimiter
	settings  *settings.Service
	prefs     *preference.Service
	campaigns *campaign.Service
	pipeline  *Pipeline
}

func newHarness(t *testing.T, users ...domain.User) *harness {
	t.Helper()
	h := &harness{
		store:   memory.New(),
		dir:     identity.NewStatic(users...),
		sender:  &fakeSender{fail: map[string]error{}},
		limiter: NewMemoryRateLimiter(),
	}
	h.settings = settings.NewService(h.store)
	h.prefs = preference.NewService(h.store)
	h.campaigns = campaign.NewService(h.store)
	logs := emaillog.NewService(h.store, h.campaigns)

	resolver := NewResolver(h.prefs, h.dir, 4)
	dispatcher := NewDispatcher(h.prefs, h.limiter, templates.NewRenderer(), h.sender, logs,
		DispatcherConfig{PoolSize: 4, SendTimeout: time.Second, ProgressEvery: 2})
	h.pipeline = NewPipeline(h.settings, h.campaigns, h.prefs, h.dir, resolver, dispatcher)
	return h
}

func (h *harness) setSettings(t *testing.T, mutate func(*domain.AdminEmailSettings)) {
	t.Helper()
	s, err := h.settings.Get(context.Background())
	if err != nil {
		t.Fatalf("settings.Get: %v", err)
	}
	mutate(&s)
	if _, err := h.settings.Update(context.Background(), s, settings.Editor{ID: "admin"}); err != nil {
		t.Fatalf("settings.Update: %v", err)
	}
}

func (h *harness) subscribe(t *testing.T, userID string, unsubscribed bool) {
	t.Helper()
	v := unsubscribed
	if _, err := h.prefs.Update(context.Background(), userID, preference.UpdateFields{UnsubscribedAll: &v}); err != nil {
		t.Fatalf("prefs.Update: %v", err)
	}
}

func (h *harness) newCampaign(t *testing.T, in campaign.CreateInput) *domain.Campaign {
	t.Helper()
	if in.Name == "" {
		in.Name = "test"
	}
	if in.Subject == "" {
		in.Subject = "Hello"
	}
	if in.Type == "" {
		in.Type = domain.TypeSalesAnnouncement
	}
	c, err := h.campaigns.Create(context.Background(), in)
	if err != nil {
		t.Fatalf("campaign.Create: %v", err)
	}
	return c
}

func (h *harness) logsFor(status domain.LogStatus) []domain.EmailLog {
	var out []domain.EmailLog
	for _, l := range h.store.Logs() {
		if l.Status == status {
			out = append(out, l)
		}
	}
	return out
}

func users(n int) []domain.User {
	out := make([]domain.User, n)
	for i := range out {
		out[i] = domain.User{ID: fmt.Sprintf("u%d", i+1), Email: fmt.Sprintf("user%d@example.com", i+1), FirstName: fmt.Sprintf("User%d", i+1)}
	}
	return out
}

// =============================================================================
// RESOLVE AND DISPATCH
// =============================================================================

func TestResolveAndDispatch_TargetAllExcludesUnsubscribed(t *testing.T) {
	h := newHarness(t, users(3)...)
	h.subscribe(t, "u1", false)
	h.subscribe(t, "u2", false)
	h.subscribe(t, "u3", true)
	c := h.newCampaign(t, campaign.CreateInput{TargetAll: true})

	res, err := h.pipeline.ResolveAndDispatch(context.Background(), c.ID)
	if err != nil {
		t.Fatalf("ResolveAndDispatch: %v", err)
	}
	if res.Success+res.Failed != 2 || res.Skipped != 0 {
		t.Fatalf("result = %+v, want 2 attempts and no skips", res)
	}
	for _, l := range h.store.Logs() {
		if l.UserID == "u3" {
			t.Fatalf("unsubscribed user was logged: %+v", l)
		}
	}

	got, _ := h.campaigns.Get(context.Background(), c.ID)
	if got.Status != domain.CampaignSent {
		t.Fatalf("status = %s, want SENT", got.Status)
	}
	if got.TotalRecipients != 2 || got.SuccessCount != 2 || got.SentAt == nil {
		t.Fatalf("counters = total %d success %d sentAt %v", got.TotalRecipients, got.SuccessCount, got.SentAt)
	}
}

func TestResolveAndDispatch_CountersSumToTotal(t *testing.T) {
	us := users(6)
	h := newHarness(t, us...)
	h.subscribe(t, "u2", true) // explicit targeting still reaches the policy gate
	h.sender.fail["user3@example.com"] = &transport.Error{Kind: transport.KindRejected, Provider: "fake", Err: errors.New("mailbox unavailable")}
	h.sender.fail["user4@example.com"] = &transport.Error{Kind: transport.KindAuthFailure, Provider: "fake", Err: errors.New("bad key")}

	c := h.newCampaign(t, campaign.CreateInput{TargetUserIDs: []string{"u1", "u2", "u3", "u4", "u5", "u6", "missing"}})
	res, err := h.pipeline.ResolveAndDispatch(context.Background(), c.ID)
	if err != nil {
		t.Fatalf("ResolveAndDispatch: %v", err)
	}
	if res.Total() != 6 {
		t.Fatalf("total = %d, want 6 (missing identity dropped)", res.Total())
	}
	if res.Success != 3 || res.Failed != 2 || res.Skipped != 1 {
		t.Fatalf("result = %+v", res)
	}

	got, _ := h.campaigns.Get(context.Background(), c.ID)
	if got.SuccessCount+got.FailureCount+got.SkippedCount != got.TotalRecipients {
		t.Fatalf("persisted counters do not sum: %+v", got)
	}

	reasons := map[string]domain.Reason{}
	for _, l := range h.store.Logs() {
		reasons[l.UserID] = l.Reason
	}
	want := map[string]domain.Reason{
		"u2": domain.ReasonUnsubscribedAll,
		"u3": domain.ReasonProviderRejected,
		"u4": domain.ReasonProviderAuth,
	}
	for id, r := range want {
		if reasons[id] != r {
			t.Errorf("reason[%s] = %q, want %q", id, reasons[id], r)
		}
	}
	if len(h.store.Logs()) != 6 {
		t.Fatalf("logs = %d, want 6", len(h.store.Logs()))
	}
}

func TestResolveAndDispatch_SecondTriggerRejected(t *testing.T) {
	h := newHarness(t, users(2)...)
	c := h.newCampaign(t, campaign.CreateInput{TargetUserIDs: []string{"u1", "u2"}})

	if _, err := h.pipeline.ResolveAndDispatch(context.Background(), c.ID); err != nil {
		t.Fatalf("first: %v", err)
	}
	_, err := h.pipeline.ResolveAndDispatch(context.Background(), c.ID)
	if !errors.Is(err, campaign.ErrAlreadySent) {
		t.Fatalf("second err = %v, want ErrAlreadySent", err)
	}
	if !FatalError.Has(err) {
		t.Fatalf("second err should be fatal: %v", err)
	}
	if n := atomic.LoadInt64(&h.sender.calls); n != 2 {
		t.Fatalf("provider calls = %d, want 2", n)
	}
}

func TestResolveAndDispatch_ConcurrentTriggersDispatchOnce(t *testing.T) {
	h := newHarness(t, users(3)...)
	c := h.newCampaign(t, campaign.CreateInput{TargetUserIDs: []string{"u1", "u2", "u3"}})

	var wg sync.WaitGroup
	var ok, rejected int32
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := h.pipeline.ResolveAndDispatch(context.Background(), c.ID)
			switch {
			case err == nil:
				atomic.AddInt32(&ok, 1)
			case errors.Is(err, campaign.ErrAlreadySending), errors.Is(err, campaign.ErrAlreadySent):
				atomic.AddInt32(&rejected, 1)
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	if ok != 1 || rejected != 9 {
		t.Fatalf("ok=%d rejected=%d, want 1 and 9", ok, rejected)
	}
	if n := atomic.LoadInt64(&h.sender.calls); n != 3 {
		t.Fatalf("provider calls = %d, want 3", n)
	}
}

func TestResolveAndDispatch_IdentityOutageFailsCampaign(t *testing.T) {
	h := newHarness(t, users(2)...)
	h.dir.Down = true
	c := h.newCampaign(t, campaign.CreateInput{TargetUserIDs: []string{"u1", "u2"}})

	_, err := h.pipeline.ResolveAndDispatch(context.Background(), c.ID)
	if !errors.Is(err, ErrIdentityUnavailable) {
		t.Fatalf("err = %v, want ErrIdentityUnavailable", err)
	}
	got, _ := h.campaigns.Get(context.Background(), c.ID)
	if got.Status != domain.CampaignFailed {
		t.Fatalf("status = %s, want FAILED", got.Status)
	}
	if got.LastError == "" {
		t.Fatal("last error not recorded")
	}
	if len(h.store.Logs()) != 0 {
		t.Fatalf("no attempts expected, got %d logs", len(h.store.Logs()))
	}
}

func TestResolveAndDispatch_NotFound(t *testing.T) {
	h := newHarness(t)
	_, err := h.pipeline.ResolveAndDispatch(context.Background(), "nope")
	if !errors.Is(err, campaign.ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestResolveAndDispatch_CategoryDisabledSkipsEveryone(t *testing.T) {
	h := newHarness(t, users(3)...)
	h.setSettings(t, func(s *domain.AdminEmailSettings) { s.EnableSalesEmails = false })
	c := h.newCampaign(t, campaign.CreateInput{TargetUserIDs: []string{"u1", "u2", "u3"}})

	res, err := h.pipeline.ResolveAndDispatch(context.Background(), c.ID)
	if err != nil {
		t.Fatalf("ResolveAndDispatch: %v", err)
	}
	if res.Skipped != 3 {
		t.Fatalf("result = %+v, want 3 skipped", res)
	}
	for _, l := range h.logsFor(domain.LogSkipped) {
		if l.Reason != domain.ReasonCategoryDisabled {
			t.Fatalf("reason = %q", l.Reason)
		}
	}
	if atomic.LoadInt64(&h.sender.calls) != 0 {
		t.Fatal("provider called for gated recipients")
	}
}

func TestResolveAndDispatch_DedupesTargets(t *testing.T) {
	h := newHarness(t, users(2)...)
	c := h.newCampaign(t, campaign.CreateInput{TargetUserIDs: []string{"u1", "u2", "u1", "u2"}})
	res, err := h.pipeline.ResolveAndDispatch(context.Background(), c.ID)
	if err != nil {
		t.Fatalf("ResolveAndDispatch: %v", err)
	}
	if res.Total() != 2 {
		t.Fatalf("total = %d, want 2", res.Total())
	}
}

// =============================================================================
// DISPATCHER
// =============================================================================

func TestDispatch_RateLimitCapsSameRecipient(t *testing.T) {
	h := newHarness(t, users(1)...)
	h.setSettings(t, func(s *domain.AdminEmailSettings) { s.MaxEmailsPerRecipientPerDay = 2 })

	for i := 0; i < 4; i++ {
		if _, err := h.pipeline.EvaluateSingle(context.Background(), SingleRequest{Type: domain.TypeWelcome, UserID: "u1"}); err != nil {
			t.Fatalf("EvaluateSingle: %v", err)
		}
	}
	if n := len(h.logsFor(domain.LogSent)); n != 2 {
		t.Fatalf("sent = %d, want 2", n)
	}
	skipped := h.logsFor(domain.LogSkipped)
	if len(skipped) != 2 || skipped[0].Reason != domain.ReasonRateLimitExceeded {
		t.Fatalf("skipped = %+v", skipped)
	}
}

func TestDispatch_ProviderFailureReleasesReservation(t *testing.T) {
	h := newHarness(t, users(1)...)
	h.setSettings(t, func(s *domain.AdminEmailSettings) { s.MaxEmailsPerRecipientPerDay = 1 })
	h.sender.fail["user1@example.com"] = &transport.Error{Kind: transport.KindRejected, Provider: "fake", Err: errors.New("no")}

	out, err := h.pipeline.EvaluateSingle(context.Background(), SingleRequest{Type: domain.TypeWelcome, UserID: "u1"})
	if err != nil {
		t.Fatalf("EvaluateSingle: %v", err)
	}
	if out.Status != domain.LogFailed || out.Reason != domain.ReasonProviderRejected {
		t.Fatalf("outcome = %+v", out)
	}

	delete(h.sender.fail, "user1@example.com")
	out, _ = h.pipeline.EvaluateSingle(context.Background(), SingleRequest{Type: domain.TypeWelcome, UserID: "u1"})
	if out.Status != domain.LogSent {
		t.Fatalf("retry outcome = %+v, want SENT", out)
	}
}

func TestDispatch_TimeoutIsFailed(t *testing.T) {
	h := newHarness(t, users(1)...)
	h.sender.delay = 50 * time.Millisecond
	h.pipeline.dispatcher.cfg.SendTimeout = 5 * time.Millisecond

	out, err := h.pipeline.EvaluateSingle(context.Background(), SingleRequest{Type: domain.TypeWelcome, UserID: "u1"})
	if err != nil {
		t.Fatalf("EvaluateSingle: %v", err)
	}
	if out.Status != domain.LogFailed || out.Reason != domain.ReasonProviderTimeout {
		t.Fatalf("outcome = %+v, want FAILED provider-timeout", out)
	}
}

func TestDispatch_MissingTemplateDataIsFailed(t *testing.T) {
	h := newHarness(t, users(1)...)
	out, err := h.pipeline.EvaluateSingle(context.Background(), SingleRequest{Type: domain.TypeOrderShipped, UserID: "u1"})
	if err != nil {
		t.Fatalf("EvaluateSingle: %v", err)
	}
	if out.Status != domain.LogFailed || out.Reason != domain.ReasonTemplateInvalid {
		t.Fatalf("outcome = %+v", out)
	}
	if atomic.LoadInt64(&h.sender.calls) != 0 {
		t.Fatal("provider called with an invalid template")
	}
}

func TestDispatch_LogWriteFailureCountsAsFailed(t *testing.T) {
	h := newHarness(t, users(2)...)
	h.store.InsertLogErr = errors.New("disk full")
	c := h.newCampaign(t, campaign.CreateInput{TargetUserIDs: []string{"u1", "u2"}})

	res, err := h.pipeline.ResolveAndDispatch(context.Background(), c.ID)
	if err != nil {
		t.Fatalf("ResolveAndDispatch: %v", err)
	}
	if res.Failed != 2 || res.Total() != 2 {
		t.Fatalf("result = %+v", res)
	}
}

func TestDispatch_ProgressFlushed(t *testing.T) {
	h := newHarness(t, users(5)...)
	var calls int32
	var last domain.BatchResult
	recipients := make([]domain.Recipient, 5)
	for i, u := range users(5) {
		recipients[i] = domain.Recipient{UserID: u.ID, Email: u.Email, TemplateData: map[string]string{"userName": u.FirstName}}
	}
	res := h.pipeline.dispatcher.Dispatch(context.Background(), Batch{
		Type:     domain.TypeNewsletter,
		Subject:  "News",
		Settings: domain.DefaultSettings(),
		OnProgress: func(r domain.BatchResult) {
			atomic.AddInt32(&calls, 1)
			last = r
		},
	}, recipients)
	if res.Success != 5 {
		t.Fatalf("result = %+v", res)
	}
	if calls != 2 {
		t.Fatalf("progress calls = %d, want 2", calls)
	}
	if last.Total() < 4 {
		t.Fatalf("last progress = %+v", last)
	}
}

// =============================================================================
// SINGLE SENDS AND JOBS
// =============================================================================

func TestEvaluateSingle_UnknownUserNotLogged(t *testing.T) {
	h := newHarness(t)
	_, err := h.pipeline.EvaluateSingle(context.Background(), SingleRequest{Type: domain.TypeWelcome, UserID: "ghost"})
	if !errors.Is(err, ErrRecipientNotFound) {
		t.Fatalf("err = %v, want ErrRecipientNotFound", err)
	}
	if len(h.store.Logs()) != 0 {
		t.Fatal("unknown user produced a log row")
	}
}

func TestEvaluateSingle_TransactionalIgnoresUnsubscribe(t *testing.T) {
	h := newHarness(t, users(1)...)
	h.subscribe(t, "u1", true)

	out, err := h.pipeline.EvaluateSingle(context.Background(), SingleRequest{
		Type: domain.TypeOrderConfirmation, UserID: "u1", Data: map[string]string{"orderNumber": "A-100"},
	})
	if err != nil {
		t.Fatalf("EvaluateSingle: %v", err)
	}
	if out.Status != domain.LogSent {
		t.Fatalf("outcome = %+v, want SENT", out)
	}
	if h.sender.sent[0].Subject != domain.TypeOrderConfirmation.DefaultSubject() {
		t.Fatalf("subject = %q", h.sender.sent[0].Subject)
	}
}

func TestEvaluateSingle_MaintenanceAllowsCriticalOnly(t *testing.T) {
	h := newHarness(t, users(1)...)
	h.setSettings(t, func(s *domain.AdminEmailSettings) { s.MaintenanceMode = true })

	out, _ := h.pipeline.EvaluateSingle(context.Background(), SingleRequest{Type: domain.TypeWelcome, UserID: "u1"})
	if out.Status != domain.LogSkipped || out.Reason != domain.ReasonMaintenanceMode {
		t.Fatalf("welcome outcome = %+v", out)
	}
	out, _ = h.pipeline.EvaluateSingle(context.Background(), SingleRequest{
		Type: domain.TypePasswordReset, UserID: "u1", Data: map[string]string{"resetUrl": "https://example.com/r"},
	})
	if out.Status != domain.LogSent {
		t.Fatalf("password reset outcome = %+v", out)
	}
}

func TestHandle_UserCreatedCreatesPreferencesAndWelcomes(t *testing.T) {
	h := newHarness(t, users(1)...)
	j := trigger.NewJob(trigger.KindUserCreated)
	j.UserID = "u1"

	if err := h.pipeline.Handle(context.Background(), j); err != nil {
		t.Fatalf("Handle: %v", err)
	}
	p, err := h.prefs.Lookup(context.Background(), "u1")
	if err != nil || p == nil {
		t.Fatalf("preference not created: %v", err)
	}
	if !p.EmailVerified {
		t.Fatal("signup preference should be verified")
	}
	sent := h.logsFor(domain.LogSent)
	if len(sent) != 1 || sent[0].Type != domain.TypeWelcome {
		t.Fatalf("sent = %+v", sent)
	}
}

func TestHandle_DuplicateCampaignJobAcked(t *testing.T) {
	h := newHarness(t, users(1)...)
	c := h.newCampaign(t, campaign.CreateInput{TargetUserIDs: []string{"u1"}})

	for i := 0; i < 2; i++ {
		if err := h.pipeline.Handle(context.Background(), trigger.CampaignSend(c.ID)); err != nil {
			t.Fatalf("Handle #%d: %v", i+1, err)
		}
	}
	if n := atomic.LoadInt64(&h.sender.calls); n != 1 {
		t.Fatalf("provider calls = %d, want 1", n)
	}
}

func TestHandle_OrderEvents(t *testing.T) {
	h := newHarness(t, users(1)...)
	kinds := map[trigger.Kind]domain.EmailType{
		trigger.KindOrderCreated:   domain.TypeOrderConfirmation,
		trigger.KindOrderShipped:   domain.TypeOrderShipped,
		trigger.KindOrderDelivered: domain.TypeOrderDelivered,
	}
	for kind, want := range kinds {
		j := trigger.NewJob(kind)
		j.UserID = "u1"
		j.Data = map[string]string{"orderNumber": "A-1"}
		if err := h.pipeline.Handle(context.Background(), j); err != nil {
			t.Fatalf("Handle(%s): %v", kind, err)
		}
		found := false
		for _, l := range h.store.Logs() {
			if l.Type == want && l.Status == domain.LogSent {
				found = true
			}
		}
		if !found {
			t.Fatalf("no SENT log for %s", want)
		}
	}
}
