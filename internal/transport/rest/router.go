package rest

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi"

	"github.com/frahmantamala/scale-custody/internal/assignment"
	"github.com/frahmantamala/scale-custody/internal/audit"
	"github.com/frahmantamala/scale-custody/internal/auth"
	"github.com/frahmantamala/scale-custody/internal/core/access"
	"github.com/frahmantamala/scale-custody/internal/dashboard"
	"github.com/frahmantamala/scale-custody/internal/obs"
	"github.com/frahmantamala/scale-custody/internal/scale"
	"github.com/frahmantamala/scale-custody/internal/transport/middleware"
	"github.com/frahmantamala/scale-custody/internal/transport/swagger"
	"github.com/frahmantamala/scale-custody/internal/unit"
	"github.com/frahmantamala/scale-custody/internal/user"
)

type Handlers struct {
	Auth        *auth.Handler
	Users       *user.Handler
	Units       *unit.Handler
	Scales      *scale.Handler
	Assignments *assignment.Handler
	Dashboard   *dashboard.Handler
	Audit       *audit.Handler
}

type Options struct {
	AllowedOrigins string
	// LoginLimiter throttles POST /auth/login per client IP when set.
	LoginLimiter *middleware.RateLimiter
	MetricsPath  string
}

// RegisterAllRoutes mounts the API under /api/v1. Each route is gated on the
// capabilities its operation needs; services check them again.
func RegisterAllRoutes(router *chi.Mux, health *HealthHandler, rbac *auth.RBACAuthorization, h Handlers, opts Options, logger *slog.Logger) {
	router.Use(middleware.CORS(opts.AllowedOrigins))
	router.Use(middleware.RequestID)
	router.Use(middleware.LoggingMiddleware(logger))
	router.Use(middleware.RecoveryMiddleware(logger))
	if opts.MetricsPath != "" {
		router.Use(obs.Instrument)
		router.Method(http.MethodGet, opts.MetricsPath, obs.Handler())
	}

	router.Method(http.MethodGet, swagger.SpecPath, swagger.SpecHandler())
	router.Handle("/swagger/*", swagger.Handler())

	router.Route("/api/v1", func(r chi.Router) {
		r.Get("/health", health.healthCheckHandler)
		r.Get("/ping", health.pingHandler)

		r.Route("/auth", func(ar chi.Router) {
			login := http.Handler(http.HandlerFunc(h.Auth.Login))
			if opts.LoginLimiter != nil {
				login = opts.LoginLimiter.Middleware(login)
			}
			ar.Method(http.MethodPost, "/login", login)
			ar.With(rbac.Authenticate).Get("/me", h.Auth.Me)
		})

		r.Group(func(pr chi.Router) {
			pr.Use(rbac.Authenticate)

			pr.Route("/users", func(ur chi.Router) {
				ur.With(rbac.Require(access.Users)).Get("/", h.Users.ListUsers)
				ur.With(rbac.Require(access.Users, access.Create)).Post("/", h.Users.CreateUser)
				ur.With(rbac.Require(access.Users, access.Update)).Patch("/{id}", h.Users.UpdateUser)
			})

			pr.Route("/units", func(ur chi.Router) {
				ur.With(rbac.Require(access.Inventory)).Get("/", h.Units.GetUnits)
				ur.With(rbac.Require(access.Inventory, access.Create)).Post("/", h.Units.CreateUnit)
				ur.With(rbac.Require(access.Delete)).Delete("/{id}", h.Units.DeactivateUnit)
			})

			pr.Route("/scales", func(sr chi.Router) {
				sr.Group(func(read chi.Router) {
					read.Use(rbac.Require(access.Inventory))
					read.Get("/", h.Scales.ListScales)
					read.Get("/available", h.Scales.ListAvailableScales)
					read.Get("/{id}", h.Scales.GetScale)
				})
				sr.With(rbac.Require(access.Inventory, access.Create)).Post("/", h.Scales.CreateScale)
				sr.With(rbac.Require(access.Inventory, access.Update)).Patch("/{id}", h.Scales.UpdateScale)
				sr.With(rbac.Require(access.Inventory, access.Update)).Post("/{id}/calibrate", h.Scales.CalibrateScale)
			})

			pr.Route("/assignments", func(ar chi.Router) {
				ar.Group(func(read chi.Router) {
					read.Use(rbac.Require(access.Assignments))
					read.Get("/", h.Assignments.ListAssignments)
					read.Get("/active", h.Assignments.ListActiveAssignments)
					read.Get("/{id}", h.Assignments.GetAssignment)
				})
				ar.With(rbac.Require(access.Assignments, access.Create)).Post("/", h.Assignments.CreateAssignment)
				ar.With(rbac.Require(access.Assignments, access.Update)).Patch("/{id}/return", h.Assignments.ReturnAssignment)
			})

			pr.Route("/dashboard", func(dr chi.Router) {
				dr.Use(rbac.Require(access.Dashboard))
				dr.Get("/stats", h.Dashboard.GetStats)
				dr.Get("/alerts", h.Dashboard.GetAlerts)
			})

			pr.With(rbac.Require(access.Reports)).Get("/audit-logs", h.Audit.ListAuditLogs)
		})
	})
}
