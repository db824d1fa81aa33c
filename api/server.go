/*
server.go - HTTP router and middleware configuration

PURPOSE:
  Configures the HTTP router (chi), middleware stack, and route definitions.
  This is the wiring layer that connects URLs to handlers.

ROUTER: chi
  Chi was chosen for:
  - Lightweight and fast
  - Context-based
  - Middleware support
  - RESTful route patterns

MIDDLEWARE STACK:
  1. Logger:     Request logging
  2. Recoverer:  Panic recovery (500 instead of crash)
  3. RequestID:  Unique ID per request for tracing
  4. CORS:       Cross-origin requests for frontend

ROUTE GROUPS:
  /api/intervals/*      Maintained service intervals (read + override)
  /api/vehicles/*       Vehicles, their expenses, settings, intervals
  /api/expenses/*       Expense rewrite and removal
  /api/kinds/*          Maintenance categories
  /api/accounts/*       Account setup
  /api/admin/*          Full and per-vehicle recalculation

SECURITY NOTE:
  Account identity arrives in the X-Account-ID header; authentication is
  an upstream gateway concern. All endpoints here trust the header.

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
		AllowedOrigins:   []string{"http://localhost:5173", "http://localhost:8080"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Account-ID"},
		AllowCredentials: true,
	}))

	// API routes
	r.Route("/api", func(r chi.Router) {
		// Interval routes
		r.Get("/intervals", h.ListIntervals)
		r.Post("/intervals/batch", h.BatchGetIntervals)

		// Vehicle routes
		r.Route("/vehicles", func(r chi.Router) {
			r.Post("/", h.CreateVehicle)
			r.Put("/{id}/odometer", h.SetVehicleOdometer)
			r.Get("/{id}/intervals/{kind}", h.GetInterval)
			r.Patch("/{id}/intervals/{kind}", h.OverrideNextDue)
			r.Post("/{id}/expenses", h.CreateExpense)
			r.Put("/{id}/settings/{kind}", h.UpsertVehicleSetting)
			r.Delete("/{id}/settings/{kind}", h.DeleteVehicleSetting)
		})

		// Expense routes
		r.Route("/expenses", func(r chi.Router) {
			r.Put("/{id}", h.UpdateExpense)
			r.Delete("/{id}", h.DeleteExpense)
		})

		// Kind routes
		r.Route("/kinds", func(r chi.Router) {
			r.Post("/", h.CreateKind)
		})

		// Account routes
		r.Route("/accounts", func(r chi.Router) {
			r.Post("/", h.CreateAccount)
		})

		// Admin routes
		r.Route("/admin", func(r chi.Router) {
			r.Post("/recalculate", h.RecalculateAll)
			r.Post("/vehicles/{id}/recalculate", h.RecalculateVehicle)
		})
	})

	return r
}
