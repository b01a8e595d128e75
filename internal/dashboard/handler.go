package dashboard

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/stockline-wms/stockline/internal/platform/httpx"
)

// Handler wires HTTP endpoints for the dashboard.
type Handler struct {
	logger  *slog.Logger
	service *Service
}

// NewHandler constructs dashboard handler.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service}
}

// MountRoutes registers dashboard routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/", h.handleOverview)
	r.Get("/low-stock", h.handleLowStock)
}

func (h *Handler) handleOverview(w http.ResponseWriter, r *http.Request) {
	overview, err := h.service.Load(r.Context())
	if err != nil {
		h.logger.Error("load dashboard", slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Server Error", "failed to load dashboard")
		return
	}
	httpx.JSON(w, http.StatusOK, overview)
}

func (h *Handler) handleLowStock(w http.ResponseWriter, r *http.Request) {
	batches, err := h.service.LowStock(r.Context())
	if err != nil {
		h.logger.Error("load low stock", slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Server Error", "failed to load low stock")
		return
	}
	httpx.JSON(w, http.StatusOK, batches)
}
