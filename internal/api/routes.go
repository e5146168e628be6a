package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/ignite/notify-dispatch/internal/metrics"
)

// SetupRoutes configures all API routes.
func SetupRoutes(h *Handlers, allowedOrigins []string) *chi.Mux {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RealIP)
	r.Use(middleware.RequestID)

	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			w.Header().Set("X-Server-Binary", "notify-dispatch")
			next.ServeHTTP(w, req)
		})
	})

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   allowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-User-ID", "X-User-Name"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	// Health and metrics (no auth required)
	r.Get("/health", h.health.HandleHealth)
	r.Get("/health/ready", h.health.HandleReadiness)
	r.Handle("/metrics", metrics.Handler())

	// Provider callbacks
	r.Route("/webhooks", func(r chi.Router) {
		r.Post("/ses", h.HandleSESWebhook)
		r.Post("/events", h.HandleProviderEvent)
	})

	r.Route("/api", func(r chi.Router) {
		r.Get("/stats", h.GetStats)
		r.Get("/logs", h.ListLogs)

		// Transactional events from other services
		r.Post("/events", h.PublishEvent)

		r.Route("/users/{userID}/email-preferences", func(r chi.Router) {
			r.Get("/", h.GetPreferences)
			r.Put("/", h.UpdatePreferences)
		})

		r.Route("/admin/email", func(r chi.Router) {
			r.Get("/settings", h.GetSettings)
			r.Put("/settings", h.UpdateSettings)
			r.Post("/test", h.SendTestEmail)

			r.Route("/campaigns", func(r chi.Router) {
				r.Get("/", h.ListCampaigns)
				r.Post("/", h.CreateCampaign)
				r.Route("/{id}", func(r chi.Router) {
					r.Get("/", h.GetCampaign)
					r.Put("/", h.UpdateCampaign)
					r.Delete("/", h.DeleteCampaign)
					r.Post("/send", h.SendCampaign)
					r.Post("/cancel", h.CancelCampaign)
					r.Get("/stats", h.GetCampaignStats)
				})
			})
		})
	})

	return r
}
