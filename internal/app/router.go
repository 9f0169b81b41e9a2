package app

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/rising-bsm/rising/internal/appointments"
	"github.com/rising-bsm/rising/internal/auth"
	"github.com/rising-bsm/rising/internal/automation"
	"github.com/rising-bsm/rising/internal/customers"
	"github.com/rising-bsm/rising/internal/dashboard"
	"github.com/rising-bsm/rising/internal/invoices"
	"github.com/rising-bsm/rising/internal/observability"
	"github.com/rising-bsm/rising/internal/rbac"
	"github.com/rising-bsm/rising/internal/requests"
	"github.com/rising-bsm/rising/internal/users"
	"github.com/rising-bsm/rising/jobs"
)

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger              *slog.Logger
	Config              *Config
	Authenticator       *auth.Authenticator
	AuthHandler         *auth.Handler
	RBACHandler         *rbac.Handler
	RBACMiddleware      rbac.Middleware
	UsersHandler        *users.Handler
	RequestsHandler     *requests.Handler
	CustomersHandler    *customers.Handler
	AppointmentsHandler *appointments.Handler
	InvoicesHandler     *invoices.Handler
	AutomationHandler   *automation.Handler
	DashboardHandler    *dashboard.Handler
	JobsHandler         *jobs.Handler
	Metrics             *observability.Metrics
}

// NewRouter constructs the chi.Router.
func NewRouter(params RouterParams) http.Handler {
	r := chi.NewRouter()

	for _, mw := range MiddlewareStack(MiddlewareConfig{
		Logger:  params.Logger,
		Config:  params.Config,
		Metrics: params.Metrics,
	}) {
		r.Use(mw)
	}

	r.Use(chimw.Logger)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	if params.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", params.Metrics.Handler())
	}

	r.Route("/v1", func(r chi.Router) {
		r.Route("/auth", func(r chi.Router) {
			r.Group(func(r chi.Router) {
				r.Use(LoginRateLimiter())
				params.AuthHandler.MountPublicRoutes(r)
			})
			r.Group(func(r chi.Router) {
				r.Use(params.Authenticator.Middleware)
				params.AuthHandler.MountProtectedRoutes(r)
			})
		})

		// The intake POST inside the requests routes stays public; the
		// handler applies the authenticator to the rest itself.
		if params.RequestsHandler != nil {
			params.RequestsHandler.MountRoutes(r, params.Authenticator.Middleware, params.RBACMiddleware)
		}

		// Everything below requires a verified, unrevoked access token.
		r.Group(func(r chi.Router) {
			r.Use(params.Authenticator.Middleware)
			params.RBACHandler.MountRoutes(r, params.RBACMiddleware)
			if params.UsersHandler != nil {
				params.UsersHandler.MountRoutes(r, params.RBACMiddleware)
			}
			if params.CustomersHandler != nil {
				params.CustomersHandler.MountRoutes(r, params.RBACMiddleware)
			}
			if params.AppointmentsHandler != nil {
				params.AppointmentsHandler.MountRoutes(r, params.RBACMiddleware)
			}
			if params.InvoicesHandler != nil {
				params.InvoicesHandler.MountRoutes(r, params.RBACMiddleware)
			}
			if params.AutomationHandler != nil {
				params.AutomationHandler.MountRoutes(r, params.RBACMiddleware)
			}
			if params.DashboardHandler != nil {
				params.DashboardHandler.MountRoutes(r, params.RBACMiddleware)
			}
			if params.JobsHandler != nil {
				r.Route("/jobs", params.JobsHandler.MountRoutes)
			}
		})
	})

	return r
}
