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
  1. CORS:          Cross-origin requests for frontend
  2. RequestLogger: Structured slog request logging (httplog)
  3. Recoverer:     Panic recovery (500 instead of crash)
  4. RequestID:     Unique ID per request for tracing
  5. Heartbeat:     Liveness probe on /healthz

ROUTE GROUPS:
  /api/periods/*      Period lifecycle
  /api/records/*      Payroll record computation and payment
  /api/attendance/*   Attendance sub-ledger
  /api/overtime/*     Overtime sub-ledger
  /api/deductions/*   Deduction sub-ledger
  /api/scenarios/*    Demo scenarios (dev only)

SECURITY NOTE:
  No authentication middleware currently. All endpoints are public.

SEE ALSO:
  - handlers.go: Handler implementations
  - cmd/server/main.go: Server startup
*/
package api

import (
	"log/slog"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httplog/v3"
	"github.com/warp/payroll-engine/payroll"
)

// NewRouter creates a new router with all routes configured.
func NewRouter(h *Handler, logger *slog.Logger) *chi.Mux {
	r := chi.NewRouter()

	// Middleware
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"http://localhost:5173", "http://localhost:8080"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
	}))
	r.Use(httplog.RequestLogger(logger, &httplog.Options{
		Level:  slog.LevelInfo,
		Schema: httplog.SchemaECS,
	}))
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(middleware.Heartbeat("/healthz"))

	// API routes
	r.Route("/api", func(r chi.Router) {
		// Period lifecycle
		r.Route("/periods", func(r chi.Router) {
			r.Get("/", h.ListPeriods)
			r.Post("/", h.CreatePeriod)
			r.Get("/{id}", h.GetPeriod)
			r.Put("/{id}", h.UpdatePeriod)
			r.Delete("/{id}", h.DeletePeriod)
			r.Post("/{id}/lock", h.LockPeriod)
			r.Post("/{id}/unlock", h.UnlockPeriod)
			r.Post("/{id}/close", h.ClosePeriod)
			r.Get("/{id}/records", h.ListPeriodRecords)
		})

		// Payroll records
		r.Route("/records", func(r chi.Router) {
			r.Get("/", h.ListRecords)
			r.Post("/compute", h.ComputeRecord)
			r.Get("/{id}", h.GetRecord)
			r.Delete("/{id}", h.DeleteRecord)
			r.Post("/{id}/pay", h.PayRecord)
			r.Post("/{id}/partial-payment", h.PartialPayRecord)
			r.Post("/{id}/cancel", h.CancelRecord)
			r.Put("/{id}/adjustments", h.SetRecordAdjustments)
		})

		// Sub-ledger routes, one group per kind
		r.Route("/attendance", func(r chi.Router) {
			r.Get("/", h.ListEntries(payroll.KindAttendance))
			r.Post("/", h.CreateAttendance)
			r.Get("/{id}", h.GetEntry(payroll.KindAttendance))
			r.Put("/{id}", h.UpdateAttendance)
			r.Delete("/{id}", h.DeleteEntry(payroll.KindAttendance))
		})
		r.Route("/overtime", func(r chi.Router) {
			r.Get("/", h.ListEntries(payroll.KindOvertime))
			r.Post("/", h.CreateOvertime)
			r.Get("/{id}", h.GetEntry(payroll.KindOvertime))
			r.Put("/{id}", h.UpdateOvertime)
			r.Delete("/{id}", h.DeleteEntry(payroll.KindOvertime))
		})
		r.Route("/deductions", func(r chi.Router) {
			r.Get("/", h.ListEntries(payroll.KindDeduction))
			r.Post("/", h.CreateDeduction)
			r.Get("/{id}", h.GetEntry(payroll.KindDeduction))
			r.Put("/{id}", h.UpdateDeduction)
			r.Delete("/{id}", h.DeleteEntry(payroll.KindDeduction))
		})

		// Scenario routes
		r.Route("/scenarios", func(r chi.Router) {
			r.Get("/", h.ListScenarios)
			r.Get("/current", h.GetCurrentScenario)
			r.Post("/load", h.LoadScenario)
			r.Post("/reset", h.ResetDatabase)
		})
	})

	return r
}
