package worker

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/ignite/notify-dispatch/internal/domain"
	"github.com/ignite/notify-dispatch/internal/metrics"
	"github.com/ignite/notify-dispatch/internal/pkg/logger"
	"github.com/ignite/notify-dispatch/internal/service/policy"
	"github.com/ignite/notify-dispatch/internal/transport"
)

// =============================================================================
// BATCH DISPATCHER
// =============================================================================
// Drives provider calls over a recipient list with a fixed worker pool.
// Per recipient, in order:
//   1. preference lookup (missing row ⇒ opt-in defaults, nothing persisted)
//   2. policy gate                 → SKIPPED(reason)
//   3. daily cap reservation        → SKIPPED(rate-limit-exceeded)
//   4. template render             → FAILED(template-invalid)
//   5. provider send with timeout  → SENT(message id) | FAILED(provider-*)
//   6. one EmailLog row
// A recipient's failure never aborts the batch.

const (
	DefaultPoolSize      = 10
	DefaultSendTimeout   = 10 * time.Second
	DefaultProgressEvery = 50
)

// DispatcherConfig bounds provider throughput.
type DispatcherConfig struct {
	// PoolSize is the number of concurrent sends.
	PoolSize int
	// SendsPerSecond caps provider calls across the pool. 0 disables it.
	SendsPerSecond float64
	// SendTimeout bounds one provider call.
	SendTimeout time.Duration
	// ProgressEvery flushes running counters after this many outcomes.
	ProgressEvery int
}

func (c DispatcherConfig) withDefaults() DispatcherConfig {
	if c.PoolSize <= 0 {
		c.PoolSize = DefaultPoolSize
	}
	if c.SendTimeout <= 0 {
		c.SendTimeout = DefaultSendTimeout
	}
	if c.ProgressEvery <= 0 {
		c.ProgressEvery = DefaultProgressEvery
	}
	return c
}

// PreferenceReader reads preferences without creating them.
type PreferenceReader interface {
	Lookup(ctx context.Context, userID string) (*domain.EmailPreference, error)
}

// LogWriter appends attempt rows.
type LogWriter interface {
	Record(ctx context.Context, l *domain.EmailLog) error
}

// Renderer produces a message body.
type Renderer interface {
	Render(t domain.EmailType, data map[string]string) (string, error)
}

// Batch describes one dispatch pass.
type Batch struct {
	CampaignID string
	Type       domain.EmailType
	Subject    string
	// Settings is the snapshot every decision in the pass is made against.
	Settings domain.AdminEmailSettings
	// OnProgress receives running counters. Calls are serialized.
	OnProgress func(domain.BatchResult)
}

// Dispatcher sends to resolved recipients.
type Dispatcher struct {
	prefs    PreferenceReader
	limiter  RateLimiter
	renderer Renderer
	sender   transport.Sender
	logs     LogWriter
	cfg      DispatcherConfig
	throttle *rate.Limiter
	now      func() time.Time
	log      *logger.Logger
}

// NewDispatcher wires a dispatcher.
func NewDispatcher(prefs PreferenceReader, limiter RateLimiter, renderer Renderer, sender transport.Sender, logs LogWriter, cfg DispatcherConfig) *Dispatcher {
	cfg = cfg.withDefaults()
	d := &Dispatcher{
		prefs:    prefs,
		limiter:  limiter,
		renderer: renderer,
		sender:   sender,
		logs:     logs,
		cfg:      cfg,
		now:      time.Now,
		log:      logger.Named("dispatcher"),
	}
	if cfg.SendsPerSecond > 0 {
		burst := int(cfg.SendsPerSecond)
		if burst < 1 {
			burst = 1
		}
		d.throttle = rate.NewLimiter(rate.Limit(cfg.SendsPerSecond), burst)
	}
	return d
}

// Dispatch processes every recipient and returns the aggregate counts. The
// counters always sum to len(recipients).
func (d *Dispatcher) Dispatch(ctx context.Context, b Batch, recipients []domain.Recipient) domain.BatchResult {
	var success, failed, skipped, done int64
	var progressMu sync.Mutex

	snapshot := func() domain.BatchResult {
		return domain.BatchResult{
			Success: int(atomic.LoadInt64(&success)),
			Failed:  int(atomic.LoadInt64(&failed)),
			Skipped: int(atomic.LoadInt64(&skipped)),
		}
	}

	g := new(errgroup.Group)
	g.SetLimit(d.cfg.PoolSize)
	for _, r := range recipients {
		r := r
		g.Go(func() error {
			out := d.DispatchOne(ctx, b, r)
			switch out.Status {
			case domain.LogSent:
				atomic.AddInt64(&success, 1)
			case domain.LogSkipped:
				atomic.AddInt64(&skipped, 1)
			default:
				atomic.AddInt64(&failed, 1)
			}
			if n := atomic.AddInt64(&done, 1); b.OnProgress != nil && n%int64(d.cfg.ProgressEvery) == 0 {
				progressMu.Lock()
				b.OnProgress(snapshot())
				progressMu.Unlock()
			}
			return nil
		})
	}
	_ = g.Wait()

	res := snapshot()
	d.log.Info("batch dispatched",
		"campaign_id", b.CampaignID, "type", b.Type, "recipients", len(recipients),
		"success", res.Success, "failed", res.Failed, "skipped", res.Skipped)
	return res
}

// DispatchOne gates, sends and records one recipient. The returned outcome
// is the status written to the log. If the log row cannot be written the
// outcome is FAILED(store-error).
func (d *Dispatcher) DispatchOne(ctx context.Context, b Batch, r domain.Recipient) domain.Outcome {
	out, subject := d.attempt(ctx, b, r)

	entry := &domain.EmailLog{
		CampaignID: b.CampaignID,
		UserID:     r.UserID,
		Email:      r.Email,
		Type:       b.Type,
		Subject:    subject,
		Status:     out.Status,
		Reason:     out.Reason,
		Error:      out.Error,
		MessageID:  out.MessageID,
	}
	// The row must be written even when the caller's context is gone, or
	// an accepted send would have no record.
	if err := d.logs.Record(context.WithoutCancel(ctx), entry); err != nil {
		d.log.Error("email log write failed",
			"campaign_id", b.CampaignID, "user_id", r.UserID, "status", out.Status, "error", err)
		out = domain.Outcome{Status: domain.LogFailed, Reason: domain.ReasonStoreError, Error: err.Error(), MessageID: out.MessageID}
	}
	metrics.IncOutcome(string(out.Status), string(out.Reason), string(b.Type))
	return out
}

func (d *Dispatcher) attempt(ctx context.Context, b Batch, r domain.Recipient) (domain.Outcome, string) {
	subject := b.Subject
	if subject == "" {
		subject = b.Type.DefaultSubject()
	}

	pref, err := d.prefs.Lookup(ctx, r.UserID)
	if err != nil {
		return failure(domain.ReasonStoreError, fmt.Errorf("read preference: %w", err)), subject
	}

	if dec := policy.Evaluate(b.Type, pref, b.Settings); !dec.Send {
		return domain.Outcome{Status: domain.LogSkipped, Reason: dec.Reason}, subject
	}

	day := DayKey(d.now())
	limit := b.Settings.MaxEmailsPerRecipientPerDay
	ok, err := d.limiter.CheckAndReserve(ctx, r.UserID, day, limit)
	if err != nil {
		return failure(domain.ReasonLimiterError, err), subject
	}
	if !ok {
		metrics.IncRateLimitDenied()
		return domain.Outcome{Status: domain.LogSkipped, Reason: domain.ReasonRateLimitExceeded}, subject
	}

	html, err := d.renderer.Render(b.Type, r.TemplateData)
	if err != nil {
		d.release(ctx, r.UserID, day, limit)
		return failure(domain.ReasonTemplateInvalid, err), subject
	}

	if d.throttle != nil {
		if err := d.throttle.Wait(ctx); err != nil {
			d.release(ctx, r.UserID, day, limit)
			return failure(domain.ReasonProviderTimeout, err), subject
		}
	}

	msg := transport.Message{
		To:        r.Email,
		FromName:  b.Settings.FromName,
		FromEmail: b.Settings.FromEmail,
		ReplyTo:   b.Settings.ReplyTo,
		Subject:   subject,
		HTML:      html,
		Tags:      map[string]string{"email_type": string(b.Type)},
	}
	if b.CampaignID != "" {
		msg.Tags["campaign_id"] = b.CampaignID
	}

	sendCtx, cancel := context.WithTimeout(ctx, d.cfg.SendTimeout)
	start := time.Now()
	res, err := d.sender.Send(sendCtx, msg)
	cancel()
	metrics.ObserveSend(d.sender.Name(), err == nil, time.Since(start))
	if err != nil {
		d.release(ctx, r.UserID, day, limit)
		reason := transport.KindOf(err).Reason()
		d.log.Warn("provider send failed",
			"campaign_id", b.CampaignID, "user_id", r.UserID, "to", r.Email, "reason", reason, "error", err)
		return failure(reason, err), subject
	}
	return domain.Outcome{Status: domain.LogSent, MessageID: res.MessageID}, subject
}

// release returns a reservation taken for a send the provider never
// accepted.
func (d *Dispatcher) release(ctx context.Context, userID, day string, limit int) {
	if limit <= 0 {
		return
	}
	if err := d.limiter.Release(context.WithoutCancel(ctx), userID, day); err != nil {
		d.log.Warn("rate limit release failed", "user_id", userID, "error", err)
	}
}

func failure(reason domain.Reason, err error) domain.Outcome {
	return domain.Outcome{Status: domain.LogFailed, Reason: reason, Error: err.Error()}
}
