package api

import (
	"net/http"
	"strings"

	"github.com/ignite/notify-dispatch/internal/domain"
	"github.com/ignite/notify-dispatch/internal/pkg/httputil"
	"github.com/ignite/notify-dispatch/internal/service/emaillog"
	"github.com/ignite/notify-dispatch/internal/trigger"
	"github.com/ignite/notify-dispatch/internal/worker"
)

// GetStats returns global totals from the maintained counters.
//
//	GET /api/stats
func (h *Handlers) GetStats(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	counts, err := h.logs.Counts(ctx)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	total, active, err := h.campaigns.Counts(ctx)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	users, err := h.preferences.Count(ctx)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	stats := domain.Stats{
		TotalEmailsSent:     counts.Sent(),
		TotalCampaigns:      total,
		ActiveCampaigns:     active,
		TotalUsersWithPrefs: users,
		SuccessRate:         counts.SuccessRate(),
		ByStatus:            counts,
	}
	if h.templates != nil {
		stats.TemplatesCount = h.templates.Count()
	}
	httputil.OK(w, stats)
}

// ListLogs returns email logs newest first.
//
//	GET /api/logs?status=FAILED&campaign_id=...&user_id=...&page=1&limit=50
func (h *Handlers) ListLogs(w http.ResponseWriter, r *http.Request) {
	page, limit, offset := httputil.Page(r, 50, emaillog.MaxPageSize)
	q := r.URL.Query()

	logs, total, err := h.logs.List(r.Context(), emaillog.ListFilter{
		Status:     strings.ToUpper(strings.TrimSpace(q.Get("status"))),
		CampaignID: q.Get("campaign_id"),
		UserID:     q.Get("user_id"),
		Limit:      limit,
		Offset:     offset,
	})
	if err != nil {
		writeServiceError(w, err)
		return
	}
	if logs == nil {
		logs = []domain.EmailLog{}
	}
	httputil.OK(w, map[string]interface{}{
		"logs":  logs,
		"total": total,
		"page":  page,
		"limit": limit,
	})
}

type testEmailRequest struct {
	Email    string `json:"email"`
	UserName string `json:"user_name"`
}

// SendTestEmail sends a WELCOME email to an address through the same gated
// path as any transactional send. A provider failure answers 502 with the
// outcome.
//
//	POST /api/admin/email/test
func (h *Handlers) SendTestEmail(w http.ResponseWriter, r *http.Request) {
	var req testEmailRequest
	if !httputil.Decode(w, r, &req) {
		return
	}
	req.Email = strings.TrimSpace(req.Email)
	if req.Email == "" || !strings.Contains(req.Email, "@") {
		httputil.BadRequest(w, "email is required")
		return
	}
	if req.UserName == "" {
		req.UserName = "there"
	}

	out, err := h.single.EvaluateSingle(r.Context(), worker.SingleRequest{
		Type:  domain.TypeWelcome,
		Email: req.Email,
		Data:  map[string]string{"userName": req.UserName},
	})
	if err != nil {
		writeServiceError(w, err)
		return
	}
	h.log.Info("test email processed", "to", req.Email, "status", out.Status, "reason", out.Reason, "requested_by", editor(r).ID)

	status := http.StatusOK
	if out.Status == domain.LogFailed {
		status = http.StatusBadGateway
	}
	httputil.JSON(w, status, out)
}

type eventRequest struct {
	Kind   trigger.Kind      `json:"kind"`
	UserID string            `json:"user_id"`
	Email  string            `json:"email"`
	Data   map[string]string `json:"data"`
}

// PublishEvent queues a transactional event (order.created, user.created,
// password.reset and so on) for out-of-band delivery.
//
//	POST /api/events
func (h *Handlers) PublishEvent(w http.ResponseWriter, r *http.Request) {
	var req eventRequest
	if !httputil.Decode(w, r, &req) {
		return
	}
	if req.Kind == trigger.KindCampaignSend {
		httputil.BadRequest(w, "campaign sends go through the campaign send endpoint")
		return
	}

	job := trigger.NewJob(req.Kind)
	job.UserID = req.UserID
	job.Email = req.Email
	job.Data = req.Data
	if err := job.Validate(); err != nil {
		writeServiceError(w, err)
		return
	}
	if err := h.publisher.Publish(r.Context(), job); err != nil {
		writeServiceError(w, err)
		return
	}
	httputil.Accepted(w, map[string]string{"status": "queued", "job_id": job.ID})
}
