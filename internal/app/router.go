package app

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/citadel-authz/citadel/internal/auth"
	"github.com/citadel-authz/citadel/internal/authz"
	"github.com/citadel-authz/citadel/internal/observability"
	"github.com/citadel-authz/citadel/internal/shared"
	"github.com/citadel-authz/citadel/internal/tenants"
	"github.com/citadel-authz/citadel/internal/users"
	"github.com/citadel-authz/citadel/jobs"
)

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger         *slog.Logger
	Config         *Config
	SessionManager *shared.SessionManager
	AuthHandler    *auth.Handler
	AuthzHandler   *authz.Handler
	UsersHandler   *users.Handler
	TenantsHandler *tenants.Handler
	JobsHandler    *jobs.Handler
	Metrics        *observability.Metrics
}

// NewRouter constructs the chi.Router with Citadel defaults.
func NewRouter(params RouterParams) http.Handler {
	r := chi.NewRouter()

	for _, mw := range MiddlewareStack(MiddlewareConfig{
		Logger:         params.Logger,
		Config:         params.Config,
		SessionManager: params.SessionManager,
		Metrics:        params.Metrics,
	}) {
		r.Use(mw)
	}

	r.Use(chimw.Logger)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	r.Route("/auth", params.AuthHandler.MountRoutes)
	r.Route("/authz", params.AuthzHandler.MountRoutes)
	if params.UsersHandler != nil {
		r.Route("/users", params.UsersHandler.MountRoutes)
	}
	if params.TenantsHandler != nil {
		r.Route("/tenants", params.TenantsHandler.MountRoutes)
	}
	if params.JobsHandler != nil {
		r.Route("/jobs", params.JobsHandler.MountRoutes)
	}
	if params.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", params.Metrics.Handler())
	}

	return r
}
