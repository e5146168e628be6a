// Package api exposes the admin, reporting and provider webhook HTTP
// surface. Handlers call the services directly for CRUD and reporting and
// hand send work to the trigger queue, so no request blocks on a provider.
package api

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/ignite/notify-dispatch/internal/domain"
	"github.com/ignite/notify-dispatch/internal/pkg/httpretry"
	"github.com/ignite/notify-dispatch/internal/pkg/httputil"
	"github.com/ignite/notify-dispatch/internal/pkg/logger"
	"github.com/ignite/notify-dispatch/internal/service/campaign"
	"github.com/ignite/notify-dispatch/internal/service/emaillog"
	"github.com/ignite/notify-dispatch/internal/service/preference"
	"github.com/ignite/notify-dispatch/internal/service/settings"
	"github.com/ignite/notify-dispatch/internal/trigger"
	"github.com/ignite/notify-dispatch/internal/worker"
)

// SingleSender sends one email through the gated single path.
type SingleSender interface {
	EvaluateSingle(ctx context.Context, req worker.SingleRequest) (domain.Outcome, error)
}

// TemplateCounter reports how many templates are registered.
type TemplateCounter interface {
	Count() int
}

// Deps holds everything the handlers need.
type Deps struct {
	Settings    *settings.Service
	Preferences *preference.Service
	Campaigns   *campaign.Service
	Logs        *emaillog.Service
	Single      SingleSender
	Publisher   trigger.Publisher
	Templates   TemplateCounter
	Health      *HealthChecker
	// SNSClient confirms SNS subscriptions. Defaults to http.DefaultClient.
	SNSClient httpretry.HTTPDoer
}

// Handlers contains all HTTP handlers
type Handlers struct {
	settings    *settings.Service
	preferences *preference.Service
	campaigns   *campaign.Service
	logs        *emaillog.Service
	single      SingleSender
	publisher   trigger.Publisher
	templates   TemplateCounter
	health      *HealthChecker
	snsClient   httpretry.HTTPDoer
	log         *logger.Logger
}

// NewHandlers creates a new Handlers instance
func NewHandlers(d Deps) *Handlers {
	h := &Handlers{
		settings:    d.Settings,
		preferences: d.Preferences,
		campaigns:   d.Campaigns,
		logs:        d.Logs,
		single:      d.Single,
		publisher:   d.Publisher,
		templates:   d.Templates,
		health:      d.Health,
		snsClient:   d.SNSClient,
		log:         logger.Named("api"),
	}
	if h.snsClient == nil {
		h.snsClient = http.DefaultClient
	}
	if h.health == nil {
		h.health = NewHealthChecker(nil, nil, nil)
	}
	return h
}

// editor identifies the admin behind a request. Authentication sits in
// front of this service and forwards the caller in headers.
func editor(r *http.Request) settings.Editor {
	e := settings.Editor{
		ID:   strings.TrimSpace(r.Header.Get("X-User-ID")),
		Name: strings.TrimSpace(r.Header.Get("X-User-Name")),
	}
	if e.ID == "" {
		e.ID = "admin"
	}
	if e.Name == "" {
		e.Name = e.ID
	}
	return e
}

// writeServiceError maps service sentinels to HTTP statuses.
func writeServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, campaign.ErrNotFound):
		httputil.NotFound(w, "campaign not found")
	case errors.Is(err, emaillog.ErrNotFound):
		httputil.NotFound(w, "email log not found")
	case errors.Is(err, preference.ErrNotFound):
		httputil.NotFound(w, "preferences not found")
	case errors.Is(err, worker.ErrRecipientNotFound):
		httputil.NotFound(w, "recipient not found")

	case errors.Is(err, campaign.ErrAlreadySent):
		httputil.Conflict(w, "already_sent", err.Error())
	case errors.Is(err, campaign.ErrAlreadySending):
		httputil.Conflict(w, "already_sending", err.Error())
	case errors.Is(err, campaign.ErrNotEditable), errors.Is(err, campaign.ErrInvalidTransition):
		httputil.Conflict(w, "invalid_state", err.Error())

	case errors.Is(err, campaign.ErrNameRequired),
		errors.Is(err, campaign.ErrSubjectRequired),
		errors.Is(err, campaign.ErrInvalidType),
		errors.Is(err, campaign.ErrNoTargets),
		errors.Is(err, settings.ErrInvalidDailyCap),
		errors.Is(err, settings.ErrInvalidFrom),
		errors.Is(err, preference.ErrMissingUserID),
		errors.Is(err, emaillog.ErrMissingMessage),
		errors.Is(err, emaillog.ErrInvalidStatus),
		errors.Is(err, trigger.ErrInvalidJob):
		httputil.BadRequest(w, err.Error())

	case errors.Is(err, trigger.ErrQueueFull), errors.Is(err, trigger.ErrQueueClosed):
		httputil.Error(w, http.StatusServiceUnavailable, "send queue unavailable, retry later")

	default:
		httputil.InternalError(w, err)
	}
}
