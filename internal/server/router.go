// Package server exposes the society API over HTTP using chi.
package server

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"github.com/vksagar82/society-management-app-sub001/internal/logging"
	appmw "github.com/vksagar82/society-management-app-sub001/internal/middleware"
	"github.com/vksagar82/society-management-app-sub001/internal/services/iam"
)

// RouterOptions controls the construction of the HTTP router.
// Every service is required; CORSOptions and HealthHandler fall back to defaults.
type RouterOptions struct {
	Resolver    iam.PrincipalResolver
	Accounts    accountService
	Societies   societyService
	Memberships membershipService
	Scopes      scopeService
	Audit       auditService
	Issues      issueService

	Logger        *zap.Logger
	CORSOptions   *cors.Options
	HealthHandler http.HandlerFunc
}

// DefaultCORSOptions returns the development CORS policy.
func DefaultCORSOptions() cors.Options {
	return cors.Options{
		AllowedOrigins:   []string{"http://localhost:3000", "http://127.0.0.1:3000"},
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete, http.MethodOptions},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-Id"},
		ExposedHeaders:   []string{"Content-Disposition", "X-Request-Id"},
		AllowCredentials: true,
		MaxAge:           300,
	}
}

func defaultHealthHandler(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

// NewRouter assembles the chi.Router with shared middleware and every API route.
//
// Routes split into three groups: public (signup, login, refresh, society
// listing), authenticated (me, logout, join, primary selection) and
// authenticated plus approved, which is everything else.
func NewRouter(opts RouterOptions) chi.Router {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	h := &handlers{
		accounts:    opts.Accounts,
		societies:   opts.Societies,
		memberships: opts.Memberships,
		scopes:      opts.Scopes,
		audit:       opts.Audit,
		issues:      opts.Issues,
		logger:      logger,
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(logging.RequestLogger(logger))
	r.Use(middleware.Recoverer)
	r.Use(appmw.RequestMetadata)

	corsCfg := DefaultCORSOptions()
	if opts.CORSOptions != nil {
		corsCfg = *opts.CORSOptions
	}
	r.Use(cors.Handler(corsCfg))

	health := opts.HealthHandler
	if health == nil {
		health = defaultHealthHandler
	}
	r.Get("/health", health)

	r.Route("/api", func(r chi.Router) {
		r.Post("/auth/signup", h.signup)
		r.Post("/auth/login", h.login)
		r.Post("/auth/refresh", h.refresh)
		r.Get("/societies", h.listSocieties)

		r.Group(func(r chi.Router) {
			r.Use(appmw.Authn(opts.Resolver, logger))

			r.Get("/auth/me", h.me)
			r.Post("/auth/logout", h.logout)
			r.Post("/memberships", h.joinSociety)
			r.Put("/memberships/{id}/primary", h.setPrimary)

			r.Group(func(r chi.Router) {
				r.Use(appmw.RequireApprovedSociety(logger))

				r.Post("/societies", h.createSociety)
				r.Get("/societies/{id}/memberships", h.listMemberships)
				r.Post("/memberships/{id}/approve", h.approveMembership)
				r.Post("/memberships/{id}/reject", h.rejectMembership)

				r.Delete("/users/{id}", h.deleteUser)
				r.Put("/users/{id}/global-role", h.setGlobalRole)

				r.Get("/scopes", h.listScopes)
				r.Put("/scopes", h.upsertScope)

				r.Get("/societies/{id}/audit-logs", h.listAuditLogs)
				r.Get("/societies/{id}/audit-logs/export", h.exportAuditLogs)

				r.Post("/societies/{id}/issues", h.createIssue)
				r.Get("/societies/{id}/issues", h.listIssues)
				r.Get("/issues/{id}", h.getIssue)
				r.Patch("/issues/{id}", h.updateIssue)
				r.Delete("/issues/{id}", h.deleteIssue)
			})
		})
	})

	return r
}
