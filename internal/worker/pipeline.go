package worker

import (
	"context"
	"errors"
	"fmt"

	"github.com/ignite/notify-dispatch/internal/domain"
	"github.com/ignite/notify-dispatch/internal/identity"
	"github.com/ignite/notify-dispatch/internal/metrics"
	"github.com/ignite/notify-dispatch/internal/pkg/logger"
	"github.com/ignite/notify-dispatch/internal/service/campaign"
	"github.com/ignite/notify-dispatch/internal/trigger"
)

// =============================================================================
// DISPATCH PIPELINE
// =============================================================================
// The two entry points the trigger layer calls:
// - ResolveAndDispatch(campaignID): DRAFT/SCHEDULED → SENDING → SENT|FAILED
// - EvaluateSingle(request): one transactional email outside any campaign
// Handle adapts both to trigger.Job so queues can feed the pipeline.

// SettingsSource returns the current admin settings snapshot.
type SettingsSource interface {
	Get(ctx context.Context) (domain.AdminEmailSettings, error)
}

// CampaignLifecycle is the part of the campaign state machine dispatch drives.
type CampaignLifecycle interface {
	BeginSend(ctx context.Context, id string) (*domain.Campaign, error)
	SaveProgress(ctx context.Context, id string, p domain.Progress) error
	Complete(ctx context.Context, id string, p domain.Progress) error
	Fail(ctx context.Context, id string, p domain.Progress, cause error) error
}

// PreferenceDefaults creates preference rows on signup.
type PreferenceDefaults interface {
	EnsureDefaults(ctx context.Context, userID string) (*domain.EmailPreference, error)
}

// Pipeline wires the resolver and dispatcher to the campaign state machine.
type Pipeline struct {
	settings   SettingsSource
	campaigns  CampaignLifecycle
	prefs      PreferenceDefaults
	directory  identity.Directory
	resolver   *Resolver
	dispatcher *Dispatcher
	log        *logger.Logger
}

// NewPipeline creates a pipeline.
func NewPipeline(settings SettingsSource, campaigns CampaignLifecycle, prefs PreferenceDefaults, directory identity.Directory, resolver *Resolver, dispatcher *Dispatcher) *Pipeline {
	return &Pipeline{
		settings:   settings,
		campaigns:  campaigns,
		prefs:      prefs,
		directory:  directory,
		resolver:   resolver,
		dispatcher: dispatcher,
		log:        logger.Named("pipeline"),
	}
}

// ResolveAndDispatch runs one campaign end to end. A second call for a
// campaign already SENDING or SENT returns campaign.ErrAlreadySending or
// campaign.ErrAlreadySent (wrapped in FatalError) without side effects.
// Once the campaign is SENDING it always leaves with SENT or FAILED.
func (p *Pipeline) ResolveAndDispatch(ctx context.Context, campaignID string) (res domain.BatchResult, err error) {
	c, err := p.campaigns.BeginSend(ctx, campaignID)
	if err != nil {
		return res, FatalError.Wrap(err)
	}
	p.log.Info("campaign dispatch started", "campaign_id", c.ID, "type", c.Type)

	var progress domain.Progress
	finished := false
	defer func() {
		if finished {
			return
		}
		cause := err
		if cause == nil {
			cause = errors.New("dispatch aborted")
		}
		if ferr := p.campaigns.Fail(context.WithoutCancel(ctx), c.ID, progress, cause); ferr != nil {
			p.log.Error("campaign could not be marked failed", "campaign_id", c.ID, "error", ferr)
		}
		metrics.IncCampaign(string(domain.CampaignFailed))
		p.log.Error("campaign dispatch failed", "campaign_id", c.ID, "error", cause)
	}()

	// One snapshot for the whole pass so a mid-dispatch settings change
	// cannot split decisions.
	settings, err := p.settings.Get(ctx)
	if err != nil {
		return res, FatalError.Wrap(fmt.Errorf("load settings: %w", err))
	}

	recipients, err := p.resolver.Resolve(ctx, c)
	if err != nil {
		return res, FatalError.Wrap(err)
	}
	progress.TotalRecipients = len(recipients)
	if err := p.campaigns.SaveProgress(ctx, c.ID, progress); err != nil {
		p.log.Warn("progress flush failed", "campaign_id", c.ID, "error", err)
	}

	res = p.dispatcher.Dispatch(ctx, Batch{
		CampaignID: c.ID,
		Type:       c.Type,
		Subject:    c.Subject,
		Settings:   settings,
		OnProgress: func(r domain.BatchResult) {
			snap := toProgress(len(recipients), r)
			if err := p.campaigns.SaveProgress(ctx, c.ID, snap); err != nil {
				p.log.Warn("progress flush failed", "campaign_id", c.ID, "error", err)
			}
		},
	}, recipients)
	progress = toProgress(len(recipients), res)

	if err := p.campaigns.Complete(context.WithoutCancel(ctx), c.ID, progress); err != nil {
		return res, FatalError.Wrap(fmt.Errorf("complete campaign %s: %w", c.ID, err))
	}
	finished = true
	metrics.IncCampaign(string(domain.CampaignSent))
	p.log.Info("campaign dispatch complete",
		"campaign_id", c.ID, "total", progress.TotalRecipients,
		"success", res.Success, "failed", res.Failed, "skipped", res.Skipped)
	return res, nil
}

func toProgress(total int, r domain.BatchResult) domain.Progress {
	return domain.Progress{
		TotalRecipients: total,
		SuccessCount:    r.Success,
		FailureCount:    r.Failed,
		SkippedCount:    r.Skipped,
	}
}

// SingleRequest is one transactional send.
type SingleRequest struct {
	Type   domain.EmailType
	UserID string
	// Email overrides the identity lookup when set.
	Email   string
	Subject string
	Data    map[string]string
}

// EvaluateSingle gates and sends one email through the same path a campaign
// recipient takes. Policy denials and provider failures are reported in the
// outcome, not as errors. An unknown user returns ErrRecipientNotFound and
// logs nothing.
func (p *Pipeline) EvaluateSingle(ctx context.Context, req SingleRequest) (domain.Outcome, error) {
	if req.UserID == "" && req.Email == "" {
		return domain.Outcome{}, FatalError.New("single send needs a user id or an address")
	}

	user := domain.User{ID: req.UserID, Email: req.Email}
	if req.Email == "" {
		u, err := p.directory.GetUser(ctx, req.UserID)
		switch {
		case errors.Is(err, identity.ErrNotFound):
			return domain.Outcome{}, ErrRecipientNotFound
		case err != nil:
			return domain.Outcome{}, FatalError.Wrap(err)
		case u.Email == "":
			return domain.Outcome{}, ErrRecipientNotFound
		}
		user = u
	}
	if user.ID == "" {
		// Address-only sends are capped per address.
		user.ID = user.Email
	}

	settings, err := p.settings.Get(ctx)
	if err != nil {
		return domain.Outcome{}, FatalError.Wrap(fmt.Errorf("load settings: %w", err))
	}

	data := mergeData(req.Data, &user)
	if v, ok := req.Data["userName"]; ok && v != "" {
		data["userName"] = v
	}
	out := p.dispatcher.DispatchOne(ctx, Batch{
		Type:     req.Type,
		Subject:  req.Subject,
		Settings: settings,
	}, domain.Recipient{UserID: user.ID, Email: user.Email, TemplateData: data})
	return out, nil
}

// eventTypes maps single-recipient job kinds to the email they send.
var eventTypes = map[trigger.Kind]domain.EmailType{
	trigger.KindOrderCreated:   domain.TypeOrderConfirmation,
	trigger.KindOrderShipped:   domain.TypeOrderShipped,
	trigger.KindOrderDelivered: domain.TypeOrderDelivered,
	trigger.KindUserCreated:    domain.TypeWelcome,
	trigger.KindPasswordReset:  domain.TypePasswordReset,
}

// Handle implements trigger.Handler. Jobs whose redelivery cannot succeed
// (duplicate campaign triggers, unknown users) are acknowledged.
func (p *Pipeline) Handle(ctx context.Context, j trigger.Job) (err error) {
	defer func() { metrics.IncJob(string(j.Kind), err) }()

	if err := j.Validate(); err != nil {
		p.log.Warn("dropping invalid job", "job_id", j.ID, "error", err)
		return nil
	}

	if j.Kind == trigger.KindCampaignSend {
		_, err := p.ResolveAndDispatch(ctx, j.CampaignID)
		switch {
		case err == nil:
			return nil
		case errors.Is(err, campaign.ErrAlreadySending), errors.Is(err, campaign.ErrAlreadySent),
			errors.Is(err, campaign.ErrInvalidTransition), errors.Is(err, campaign.ErrNotFound):
			p.log.Warn("campaign trigger ignored", "campaign_id", j.CampaignID, "job_id", j.ID, "error", err)
			return nil
		}
		return err
	}

	t, ok := eventTypes[j.Kind]
	if !ok {
		return fmt.Errorf("no email for job kind %q", j.Kind)
	}
	if j.Kind == trigger.KindUserCreated {
		if _, err := p.prefs.EnsureDefaults(ctx, j.UserID); err != nil {
			return FatalError.Wrap(fmt.Errorf("create preferences for %s: %w", j.UserID, err))
		}
	}

	out, err := p.EvaluateSingle(ctx, SingleRequest{Type: t, UserID: j.UserID, Email: j.Email, Data: j.Data})
	if errors.Is(err, ErrRecipientNotFound) {
		p.log.Warn("event recipient not found", "job_id", j.ID, "user_id", j.UserID)
		return nil
	}
	if err != nil {
		return err
	}
	p.log.Info("event email processed",
		"job_id", j.ID, "kind", j.Kind, "user_id", j.UserID, "status", out.Status, "reason", out.Reason)
	return nil
}
