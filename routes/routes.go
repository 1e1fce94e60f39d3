package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/upb/rcfms-admin/app"
	"github.com/upb/rcfms-admin/handlers"
	"github.com/upb/rcfms-admin/internal/authz"
	"github.com/upb/rcfms-admin/middleware"
	"github.com/upb/rcfms-admin/utils"
)

// SetupRoutes configures all application routes and middleware
func SetupRoutes(deps *app.Dependencies) http.Handler {
	r := chi.NewRouter()
	logger := deps.Logger
	cfg := deps.Config

	// Core middleware
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(middleware.ClientIP)
	r.Use(middleware.RequestLogger(logger))
	r.Use(chimw.Recoverer)
	if cfg.Server.RequestTimeout > 0 {
		r.Use(chimw.Timeout(cfg.Server.RequestTimeout))
	}

	// CORS middleware
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.Server.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Content-Disposition", "Retry-After", "X-Request-ID"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	if deps.Metrics != nil {
		r.Use(deps.Metrics.Instrument)
	}

	// Health check endpoints
	health := handlers.NewHealthHandler(deps.SQLDB(), logger).WithAuditDB(deps.AuditSQLDB())
	r.Get("/healthz", health.HandleHealth)
	r.Get("/readyz", health.HandleReadiness)

	authHandler := handlers.NewAuthHandler(deps.Accounts, logger)
	adminHandler := handlers.NewAdminHandler(deps.Provisioning, deps.Users, logger)
	staffHandler := handlers.NewStaffHandler(deps.Users, logger)
	guard := deps.AuthMiddleware

	r.Route("/api", func(r chi.Router) {
		r.Route("/auth", func(r chi.Router) {
			r.With(deps.LoginLimiter.Middleware).Post("/login", authHandler.HandleLogin)

			r.Group(func(r chi.Router) {
				r.Use(guard.RequireAuth)
				r.Get("/me", authHandler.HandleMe)
				r.Post("/password", authHandler.HandleChangePassword)
			})
		})

		// User administration (super admin only)
		r.Route("/admin", func(r chi.Router) {
			r.Use(guard.RequireAuth)
			r.Use(guard.RequireLevel(authz.SuperAdminOnly))

			r.Get("/users", adminHandler.HandleListUsers)
			r.Post("/users", adminHandler.HandleCreateUser)
			r.Get("/users/export", adminHandler.HandleExportUsers)
			r.Patch("/users/{id}", adminHandler.HandleUpdateUser)
			r.Delete("/users/{id}", adminHandler.HandleDeactivateUser)
			r.Get("/audit-logs", adminHandler.HandleListAuditLogs)
		})

		r.Route("/staff", func(r chi.Router) {
			r.Use(guard.RequireAuth)
			r.With(guard.RequireLevel(authz.UnitHeadOrAbove)).Get("/", staffHandler.HandleListStaff)
			r.With(guard.RequireLevel(authz.AnyAdmin)).Get("/summary", staffHandler.HandleUnitSummary)
		})
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		_ = utils.WriteError(w, utils.CodeNotFound, "endpoint not found", nil)
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		_ = utils.WriteError(w, utils.CodeMethodNotAllowed, "method not allowed", nil)
	})

	return r
}
