package app

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/stockline-wms/stockline/internal/dashboard"
	"github.com/stockline-wms/stockline/internal/delivery"
	"github.com/stockline-wms/stockline/internal/inventory"
	"github.com/stockline-wms/stockline/internal/receiving"
	"github.com/stockline-wms/stockline/internal/returns"
	"github.com/stockline-wms/stockline/jobs"
)

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger           *slog.Logger
	Config           *Config
	InventoryHandler *inventory.Handler
	ReceivingHandler *receiving.Handler
	DeliveryHandler  *delivery.Handler
	ReturnsHandler   *returns.Handler
	DashboardHandler *dashboard.Handler
	JobHandler       *jobs.Handler
}

// NewRouter constructs the chi.Router with Stockline defaults.
func NewRouter(params RouterParams) http.Handler {
	r := chi.NewRouter()

	for _, mw := range MiddlewareStack(MiddlewareConfig{
		Logger: params.Logger,
		Config: params.Config,
	}) {
		r.Use(mw)
	}

	r.Use(chimw.Logger)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	r.Route("/inventory", params.InventoryHandler.MountRoutes)
	r.Route("/receiving", params.ReceivingHandler.MountRoutes)
	r.Route("/deliveries", params.DeliveryHandler.MountRoutes)
	r.Route("/returns", params.ReturnsHandler.MountRoutes)
	if params.DashboardHandler != nil {
		r.Route("/dashboard", params.DashboardHandler.MountRoutes)
	}
	if params.JobHandler != nil {
		r.Route("/jobs", params.JobHandler.MountRoutes)
	}

	return r
}
