package api

import (
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/ignite/notify-dispatch/internal/domain"
	"github.com/ignite/notify-dispatch/internal/pkg/httputil"
	"github.com/ignite/notify-dispatch/internal/service/campaign"
	"github.com/ignite/notify-dispatch/internal/service/emaillog"
	"github.com/ignite/notify-dispatch/internal/trigger"
)

// campaignLogLimit is how many recent logs GetCampaign returns.
const campaignLogLimit = 100

// ListCampaigns returns campaigns newest first.
//
//	GET /api/admin/email/campaigns?status=SENT&page=1&limit=20
func (h *Handlers) ListCampaigns(w http.ResponseWriter, r *http.Request) {
	page, limit, offset := httputil.Page(r, 20, 100)
	status := strings.ToUpper(strings.TrimSpace(r.URL.Query().Get("status")))

	list, total, err := h.campaigns.List(r.Context(), campaign.ListFilter{Status: status, Limit: limit, Offset: offset})
	if err != nil {
		writeServiceError(w, err)
		return
	}
	if list == nil {
		list = []domain.Campaign{}
	}
	httputil.OK(w, map[string]interface{}{
		"campaigns": list,
		"total":     total,
		"page":      page,
		"limit":     limit,
	})
}

// CreateCampaign creates a DRAFT campaign, or a SCHEDULED one when
// scheduled_at is set.
//
//	POST /api/admin/email/campaigns
func (h *Handlers) CreateCampaign(w http.ResponseWriter, r *http.Request) {
	var in campaign.CreateInput
	if !httputil.Decode(w, r, &in) {
		return
	}
	in.CreatedBy = editor(r).ID

	c, err := h.campaigns.Create(r.Context(), in)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	h.log.Info("campaign created", "campaign_id", c.ID, "type", c.Type, "status", c.Status, "created_by", c.CreatedBy)
	httputil.Created(w, c)
}

// GetCampaign returns one campaign with its most recent logs.
//
//	GET /api/admin/email/campaigns/{id}
func (h *Handlers) GetCampaign(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	c, err := h.campaigns.Get(r.Context(), id)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	logs, _, err := h.logs.List(r.Context(), emaillog.ListFilter{CampaignID: id, Limit: campaignLogLimit})
	if err != nil {
		writeServiceError(w, err)
		return
	}
	if logs == nil {
		logs = []domain.EmailLog{}
	}
	httputil.OK(w, map[string]interface{}{
		"campaign": c,
		"logs":     logs,
	})
}

type campaignUpdateRequest struct {
	Name          *string           `json:"name"`
	Subject       *string           `json:"subject"`
	Type          *domain.EmailType `json:"type"`
	TemplateData  map[string]string `json:"template_data"`
	TargetAll     *bool             `json:"target_all"`
	TargetUserIDs []string          `json:"target_user_ids"`
	ScheduledAt   *time.Time        `json:"scheduled_at"`
	ClearSchedule bool              `json:"clear_schedule"`
}

// UpdateCampaign changes a DRAFT or SCHEDULED campaign.
//
//	PUT /api/admin/email/campaigns/{id}
func (h *Handlers) UpdateCampaign(w http.ResponseWriter, r *http.Request) {
	var req campaignUpdateRequest
	if !httputil.Decode(w, r, &req) {
		return
	}
	id := chi.URLParam(r, "id")
	err := h.campaigns.Update(r.Context(), id, campaign.UpdateFields{
		Name:          req.Name,
		Subject:       req.Subject,
		Type:          req.Type,
		TemplateData:  req.TemplateData,
		TargetAll:     req.TargetAll,
		TargetUserIDs: req.TargetUserIDs,
		ScheduledAt:   req.ScheduledAt,
		ClearSchedule: req.ClearSchedule,
	})
	if err != nil {
		writeServiceError(w, err)
		return
	}
	c, err := h.campaigns.Get(r.Context(), id)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	httputil.OK(w, c)
}

// DeleteCampaign removes a campaign that never started sending.
//
//	DELETE /api/admin/email/campaigns/{id}
func (h *Handlers) DeleteCampaign(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := h.campaigns.Delete(r.Context(), id); err != nil {
		writeServiceError(w, err)
		return
	}
	h.log.Info("campaign deleted", "campaign_id", id, "deleted_by", editor(r).ID)
	httputil.NoContent(w)
}

// CancelCampaign moves a DRAFT or SCHEDULED campaign to CANCELLED.
//
//	POST /api/admin/email/campaigns/{id}/cancel
func (h *Handlers) CancelCampaign(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := h.campaigns.Cancel(r.Context(), id); err != nil {
		writeServiceError(w, err)
		return
	}
	h.log.Info("campaign cancelled", "campaign_id", id, "cancelled_by", editor(r).ID)
	httputil.OK(w, map[string]string{"status": string(domain.CampaignCancelled), "campaign_id": id})
}

// SendCampaign queues a campaign for dispatch and returns immediately.
// The status check here is advisory; the dispatch pipeline's own
// transition guard is what prevents a double send.
//
//	POST /api/admin/email/campaigns/{id}/send
func (h *Handlers) SendCampaign(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if _, err := h.campaigns.CheckSendable(r.Context(), id); err != nil {
		writeServiceError(w, err)
		return
	}

	job := trigger.CampaignSend(id)
	if err := h.publisher.Publish(r.Context(), job); err != nil {
		writeServiceError(w, err)
		return
	}
	h.log.Info("campaign send queued", "campaign_id", id, "job_id", job.ID, "requested_by", editor(r).ID)
	httputil.Accepted(w, map[string]string{
		"status":      "queued",
		"campaign_id": id,
		"job_id":      job.ID,
	})
}

// GetCampaignStats returns the campaign's maintained counters.
//
//	GET /api/admin/email/campaigns/{id}/stats
func (h *Handlers) GetCampaignStats(w http.ResponseWriter, r *http.Request) {
	c, err := h.campaigns.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	httputil.OK(w, c.Stats())
}
