package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/ignite/notify-dispatch/internal/pkg/httputil"
	"github.com/ignite/notify-dispatch/internal/service/preference"
)

// GetSettings returns the current admin settings, creating the default
// record on first read.
//
//	GET /api/admin/email/settings
func (h *Handlers) GetSettings(w http.ResponseWriter, r *http.Request) {
	s, err := h.settings.Get(r.Context())
	if err != nil {
		writeServiceError(w, err)
		return
	}
	httputil.OK(w, s)
}

// UpdateSettings replaces the admin settings. Fields omitted from the body
// keep their current values.
//
//	PUT /api/admin/email/settings
func (h *Handlers) UpdateSettings(w http.ResponseWriter, r *http.Request) {
	current, err := h.settings.Get(r.Context())
	if err != nil {
		writeServiceError(w, err)
		return
	}
	next := current
	if !httputil.Decode(w, r, &next) {
		return
	}

	by := editor(r)
	saved, err := h.settings.Update(r.Context(), next, by)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	h.log.Info("email settings updated",
		"updated_by", by.ID, "system_enabled", saved.SystemEnabled,
		"maintenance_mode", saved.MaintenanceMode, "max_per_day", saved.MaxEmailsPerRecipientPerDay)
	httputil.OK(w, saved)
}

// GetPreferences returns a user's preferences, creating defaults on first
// read.
//
//	GET /api/users/{userID}/email-preferences
func (h *Handlers) GetPreferences(w http.ResponseWriter, r *http.Request) {
	p, err := h.preferences.Get(r.Context(), chi.URLParam(r, "userID"))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	httputil.OK(w, p)
}

// UpdatePreferences applies the flags present in the body. Values are
// coerced loosely, so "true", 1 and "on" all enable a flag.
//
//	PUT /api/users/{userID}/email-preferences
func (h *Handlers) UpdatePreferences(w http.ResponseWriter, r *http.Request) {
	var body map[string]any
	if !httputil.Decode(w, r, &body) {
		return
	}
	p, err := h.preferences.Update(r.Context(), chi.URLParam(r, "userID"), preference.FieldsFromMap(body))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	httputil.OK(w, p)
}
