/*
server.go - HTTP router and middleware configuration

PURPOSE:
  Configures the chi router, middleware stack, and route definitions.
  This is the wiring layer that connects URLs to handlers.

MIDDLEWARE STACK:
  1. Logger:     Request logging
  2. Recoverer:  Panic recovery (500 instead of crash)
  3. RequestID:  Unique ID per request for tracing
  4. CORS:       Cross-origin requests for the configuration dashboard

ROUTE GROUPS:
  /webhooks/*   Host platform event deliveries
  /api/*        Operator configuration, warnings, manifest

SECURITY NOTE:
  Webhook signature verification is the deployment's reverse proxy /
  platform SDK concern and is not implemented here.

SEE ALSO:
  - handlers.go: Handler implementations
  - cmd/server/main.go: Server startup
*/
package api

import (
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// NewRouter creates a new router with all routes configured.
func NewRouter(h *Handler) *chi.Mux {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", headerEventID},
		AllowCredentials: false,
	}))

	// Webhook routes (host platform -> app)
	r.Route("/webhooks", func(r chi.Router) {
		r.Post("/order-created", h.OrderCreated)
		r.Post("/draft-order-updated", h.DraftOrderUpdated)
		r.Post("/order-fulfilled", h.OrderFulfilled)
	})

	// Operator API routes
	r.Route("/api", func(r chi.Router) {
		r.Get("/manifest", h.Manifest)
		r.Get("/config", h.GetConfig)
		r.Put("/config", h.UpdateConfig)
		r.Get("/warnings", h.ListWarnings)
	})

	return r
}
