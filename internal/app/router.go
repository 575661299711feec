package app

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/sellerpulse/sellerpulse/internal/catalog"
	"github.com/sellerpulse/sellerpulse/internal/clients"
	"github.com/sellerpulse/sellerpulse/internal/margin"
	"github.com/sellerpulse/sellerpulse/internal/marketplace"
	"github.com/sellerpulse/sellerpulse/internal/observability"
	"github.com/sellerpulse/sellerpulse/jobs"
)

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger         *slog.Logger
	Config         *Config
	CatalogHandler *catalog.Handler
	ClientHandler  *clients.Handler
	MarginHandler  *margin.Handler
	SyncHandler    *marketplace.Handler
	JobHandler     *jobs.Handler
	Metrics        *observability.Metrics
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
	if !params.Config.IsProduction() {
		r.Use(chimw.Logger)
	}

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	if params.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", params.Metrics.Handler())
	}

	r.Route("/api/v1", func(r chi.Router) {
		if params.CatalogHandler != nil {
			r.Route("/catalog", func(r chi.Router) {
				params.CatalogHandler.MountRoutes(r)
			})
		}
		if params.ClientHandler != nil {
			r.Route("/clients", func(r chi.Router) {
				params.ClientHandler.MountRoutes(r)
			})
		}
		if params.MarginHandler != nil {
			r.Route("/margin", func(r chi.Router) {
				params.MarginHandler.MountRoutes(r)
			})
		}
		if params.SyncHandler != nil {
			r.Route("/sync", func(r chi.Router) {
				params.SyncHandler.MountRoutes(r)
			})
		}
		if params.JobHandler != nil {
			r.Route("/jobs", func(r chi.Router) {
				params.JobHandler.MountRoutes(r)
			})
		}
	})

	return r
}
