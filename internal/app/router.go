package app

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/counterpos/counterpos/internal/cart"
	"github.com/counterpos/counterpos/internal/catalog"
	"github.com/counterpos/counterpos/internal/checkout"
	"github.com/counterpos/counterpos/internal/inventory"
	"github.com/counterpos/counterpos/internal/masterdata"
	"github.com/counterpos/counterpos/internal/observability"
	"github.com/counterpos/counterpos/internal/platform/httpx"
	"github.com/counterpos/counterpos/internal/recipes"
	"github.com/counterpos/counterpos/internal/sales"
	"github.com/counterpos/counterpos/jobs"
	"github.com/counterpos/counterpos/report"
)

// Pinger reports whether a backing store answers.
type Pinger interface {
	Ping(ctx context.Context) error
}

// RouterParams groups dependencies for building the HTTP router. Nil
// handlers leave their routes unmounted.
type RouterParams struct {
	Logger  *slog.Logger
	Config  *Config
	Metrics *observability.Metrics
	// Health is probed by /healthz, keyed by component name.
	Health map[string]Pinger

	InventoryHandler  *inventory.Handler
	RecipesHandler    *recipes.Handler
	CatalogHandler    *catalog.Handler
	CartHandler       *cart.Handler
	CheckoutHandler   *checkout.Handler
	SalesHandler      *sales.Handler
	MasterDataHandler *masterdata.Handler
	JobHandler        *jobs.Handler
	ReportHandler     *report.Handler
}

// NewRouter constructs the chi.Router with counter defaults.
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

	r.Get("/healthz", healthz(params.Health, params.Logger))

	if params.InventoryHandler != nil {
		r.Route("/inventory", params.InventoryHandler.MountRoutes)
	}
	if params.RecipesHandler != nil {
		r.Route("/recipes", params.RecipesHandler.MountRoutes)
	}
	if params.CatalogHandler != nil {
		r.Route("/catalog", params.CatalogHandler.MountRoutes)
	}
	if params.CartHandler != nil || params.CheckoutHandler != nil {
		r.Route("/carts", func(r chi.Router) {
			if params.CartHandler != nil {
				params.CartHandler.MountRoutes(r)
			}
			if params.CheckoutHandler != nil {
				params.CheckoutHandler.MountRoutes(r)
			}
		})
	}
	if params.SalesHandler != nil {
		r.Route("/sales", params.SalesHandler.MountRoutes)
	}
	if params.MasterDataHandler != nil {
		r.Route("/masterdata", params.MasterDataHandler.MountRoutes)
	}
	if params.JobHandler != nil {
		r.Route("/jobs", params.JobHandler.MountRoutes)
	}
	if params.ReportHandler != nil {
		r.Route("/report", params.ReportHandler.MountRoutes)
	}
	if params.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", params.Metrics.Handler())
	}

	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		httpx.Problem(w, http.StatusNotFound, "Not Found", "")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		httpx.Problem(w, http.StatusMethodNotAllowed, "Method Not Allowed", "")
	})
	return r
}

func healthz(checks map[string]Pinger, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		status := http.StatusOK
		components := make(map[string]string, len(checks))
		for name, check := range checks {
			if err := check.Ping(ctx); err != nil {
				logger.Warn("health check failed", slog.String("component", name), slog.Any("error", err))
				components[name] = "down"
				status = http.StatusServiceUnavailable
				continue
			}
			components[name] = "ok"
		}
		overall := "ok"
		if status != http.StatusOK {
			overall = "degraded"
		}
		httpx.JSON(w, status, map[string]any{"status": overall, "components": components})
	}
}
