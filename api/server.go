/*
server.go - HTTP router and middleware configuration

PURPOSE:
  Configures the HTTP router (chi), middleware stack, and route definitions.
  This is the wiring layer that connects URLs to handlers.

MIDDLEWARE STACK:
  1. Logger:     Request logging
  2. Recoverer:  Panic recovery (500 instead of crash)
  3. RequestID:  Unique ID per request for tracing
  4. CORS:       Cross-origin requests for frontend

ROUTE GROUPS:
  /api/members/*        Member management and attendance
  /api/payments/*       Payment records, statistics, pending dues
  /api/activities       Recent activity feed
  /api/backup/*         Full export / import
  /api/queue            Offline replay queue inspection
  /api/connectivity     Connectivity state (read and set)
  /metrics              Prometheus metrics

SECURITY NOTE:
  No authentication middleware. This is a single-device deployment; all
  endpoints are local.

SEE ALSO:
  - handlers.go: Handler implementations
  - cmd/server/main.go: Server startup
*/
package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// NewRouter creates a new router with all routes configured. The metrics
// handler is optional; pass nil to skip the /metrics endpoint.
func NewRouter(h *Handler, allowedOrigins []string, metricsHandler http.Handler) *chi.Mux {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   allowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
	}))

	// API routes
	r.Route("/api", func(r chi.Router) {
		r.Get("/health", h.Health)

		// Member routes
		r.Route("/members", func(r chi.Router) {
			r.Get("/", h.ListMembers)
			r.Post("/", h.CreateMember)
			r.Get("/{id}", h.GetMember)
			r.Put("/{id}", h.UpdateMember)
			r.Delete("/{id}", h.DeleteMember)
			r.Post("/{id}/attendance", h.MarkAttendance)
			r.Post("/{id}/reset-sessions", h.ResetSessions)
			r.Get("/{id}/payments", h.ListMemberPayments)
		})

		// Payment routes
		r.Route("/payments", func(r chi.Router) {
			r.Get("/", h.ListPayments)
			r.Post("/", h.CreatePayment)
			r.Get("/statistics", h.PaymentStatistics)
			r.Get("/pending", h.PendingPayments)
			r.Get("/{id}", h.GetPayment)
			r.Put("/{id}", h.UpdatePayment)
			r.Delete("/{id}", h.DeletePayment)
		})

		// Activity feed
		r.Get("/activities", h.ListActivities)

		// Backup routes
		r.Route("/backup", func(r chi.Router) {
			r.Get("/export", h.ExportBackup)
			r.Post("/import", h.ImportBackup)
		})

		// Offline queue and connectivity
		r.Get("/queue", h.ListQueue)
		r.Get("/connectivity", h.GetConnectivity)
		r.Put("/connectivity", h.SetConnectivity)
	})

	if metricsHandler != nil {
		r.Handle("/metrics", metricsHandler)
	}

	return r
}
