package app

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/yfarmers/feedledger/internal/balances"
	"github.com/yfarmers/feedledger/internal/catalog"
	"github.com/yfarmers/feedledger/internal/ledger"
	"github.com/yfarmers/feedledger/internal/observability"
	"github.com/yfarmers/feedledger/internal/rbac"
	"github.com/yfarmers/feedledger/internal/shared"
	"github.com/yfarmers/feedledger/jobs"
)

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger          *slog.Logger
	Config          *Config
	RBACMiddleware  rbac.Middleware
	LedgerHandler   *ledger.Handler
	CatalogHandler  *catalog.Handler
	BalancesHandler *balances.Handler
	JobHandler      *jobs.Handler
	Metrics         *observability.Metrics
	Health          func(r *http.Request) error
}

// NewRouter constructs the chi.Router with feedledger defaults.
func NewRouter(params RouterParams) http.Handler {
	r := chi.NewRouter()

	for _, mw := range MiddlewareStack(MiddlewareConfig{
		Logger:  params.Logger,
		Config:  params.Config,
		RBAC:    params.RBACMiddleware,
		Metrics: params.Metrics,
	}) {
		r.Use(mw)
	}

	r.Use(chimw.Logger)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if params.Health != nil {
			if err := params.Health(r); err != nil {
				if params.Logger != nil {
					params.Logger.Warn("health check failed", slog.Any("error", err))
				}
				w.WriteHeader(http.StatusServiceUnavailable)
				_, _ = w.Write([]byte(`{"status":"degraded"}`))
				return
			}
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	r.Route("/api/v1", func(r chi.Router) {
		if params.LedgerHandler != nil {
			params.LedgerHandler.MountRoutes(r)
		}
		if params.CatalogHandler != nil {
			params.CatalogHandler.MountRoutes(r)
		}
		if params.BalancesHandler != nil {
			params.BalancesHandler.MountRoutes(r)
		}
	})
	if params.JobHandler != nil {
		r.Group(func(r chi.Router) {
			r.Use(params.RBACMiddleware.RequireAny(shared.PermJobsView))
			r.Route("/jobs", params.JobHandler.MountRoutes)
		})
	}
	if params.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", params.Metrics.Handler())
	}
	return r
}
