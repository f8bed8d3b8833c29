// Package router assembles the HTTP surface.
package router

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/waveleads/lead-agent-platform/internal/http/handlers"
	httpmiddleware "github.com/waveleads/lead-agent-platform/internal/http/middleware"
	"github.com/waveleads/lead-agent-platform/internal/messaging"
	"github.com/waveleads/lead-agent-platform/pkg/logging"
)

// Config holds router configuration.
type Config struct {
	Logger          *logging.Logger
	Webhook         *messaging.WebhookHandler
	Admin           *handlers.AdminHandler
	MetricsHandler  http.Handler
	AdminAuthSecret string
}

// New creates a Chi router with all routes configured.
func New(cfg *Config) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Compress(5))
	if cfg.Logger != nil {
		r.Use(httpmiddleware.RequestLogger(cfg.Logger))
	}

	// Public endpoints (channel webhooks, health, metrics).
	r.Group(func(public chi.Router) {
		public.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte(`{"status":"ok"}`))
		})
		if cfg.Webhook != nil {
			public.Get("/webhooks/messaging", cfg.Webhook.HandleVerification)
			public.Post("/webhooks/messaging", cfg.Webhook.HandleInbound)
		}
		if cfg.MetricsHandler != nil {
			public.Handle("/metrics", cfg.MetricsHandler)
		}
	})

	// Admin endpoints (JWT protected).
	if cfg.Admin != nil {
		r.Route("/admin", func(admin chi.Router) {
			admin.Use(httpmiddleware.AdminJWT(cfg.AdminAuthSecret))
			admin.Get("/conversations", cfg.Admin.ListConversations)
			admin.Get("/conversations/{id}", cfg.Admin.GetConversation)
			admin.Post("/conversations/{id}/forward", cfg.Admin.TestForward)
			admin.Get("/analytics/daily", cfg.Admin.GetAnalytics)
			admin.Get("/slots", cfg.Admin.PreviewSlots)
		})
	}

	return r
}
