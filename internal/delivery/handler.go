// Package delivery exposes the dispatch workflow: it composes the inventory
// engine's deliver operation with delivery-record lookups.
package delivery

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/stockline-wms/stockline/internal/inventory"
	"github.com/stockline-wms/stockline/internal/platform/httpx"
	"github.com/stockline-wms/stockline/internal/shared"
)

// Handler wires HTTP endpoints for deliveries.
type Handler struct {
	logger   *slog.Logger
	engine   *inventory.Service
	validate *validator.Validate
}

// NewHandler constructs delivery handler.
func NewHandler(logger *slog.Logger, engine *inventory.Service) *Handler {
	return &Handler{logger: logger, engine: engine, validate: validator.New()}
}

// MountRoutes registers delivery routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/", h.handleCreate)
	r.Get("/", h.handleList)
	r.Get("/{id}", h.handleGet)
}

type createDeliveryRequest struct {
	UnitID         string `json:"unit_id" validate:"omitempty,uuid"`
	BatchID        string `json:"batch_id" validate:"omitempty,uuid"`
	SerialNumber   string `json:"serial_number"`
	Carrier        string `json:"carrier"`
	TrackingNumber string `json:"tracking_number"`
	Address        string `json:"address" validate:"required"`
	CustomerName   string `json:"customer_name" validate:"required"`
	CustomerPhone  string `json:"customer_phone"`
	Actor          string `json:"actor" validate:"required"`
}

func (h *Handler) handleCreate(w http.ResponseWriter, r *http.Request) {
	var req createDeliveryRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Body", err.Error())
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	if req.UnitID == "" && req.BatchID == "" {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "unit_id or batch_id required")
		return
	}
	d, err := h.engine.Deliver(r.Context(), inventory.DeliverInput{
		UnitID:         req.UnitID,
		BatchID:        req.BatchID,
		Serial:         req.SerialNumber,
		Carrier:        req.Carrier,
		TrackingNumber: req.TrackingNumber,
		Address:        req.Address,
		CustomerName:   req.CustomerName,
		CustomerPhone:  req.CustomerPhone,
		Actor:          req.Actor,
	})
	if err != nil {
		h.logger.Error("create delivery", slog.Any("error", err))
		inventory.RespondError(w, err)
		return
	}
	h.logger.Info("delivery created",
		slog.String("delivery_id", d.ID),
		slog.String("serial", d.SerialNumber),
		slog.String("sku", d.SKU))
	httpx.JSON(w, http.StatusCreated, inventory.NewDeliveryResponse(d))
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	page := shared.ParsePage(r, 100, 500)
	deliveries, err := h.engine.ListDeliveries(r.Context(), page.Limit, page.Offset)
	if err != nil {
		inventory.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, inventory.NewDeliveryResponses(deliveries))
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	d, err := h.engine.GetDelivery(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		inventory.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, inventory.NewDeliveryResponse(d))
}
