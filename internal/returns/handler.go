// Package returns exposes the returns workflow: intake of scanned serials and
// the later disposition decision, both composed from inventory engine
// operations.
package returns

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/stockline-wms/stockline/internal/inventory"
	"github.com/stockline-wms/stockline/internal/platform/httpx"
	"github.com/stockline-wms/stockline/internal/shared"
)

// Handler wires HTTP endpoints for returns.
type Handler struct {
	logger   *slog.Logger
	engine   *inventory.Service
	validate *validator.Validate
}

// NewHandler constructs returns handler.
func NewHandler(logger *slog.Logger, engine *inventory.Service) *Handler {
	return &Handler{logger: logger, engine: engine, validate: validator.New()}
}

// MountRoutes registers return routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/", h.handleIntake)
	r.Get("/", h.handleList)
	r.Get("/{id}", h.handleGet)
	r.Post("/{id}/decision", h.handleDecision)
}

type intakeRequest struct {
	SerialNumber   string `json:"serial_number" validate:"required"`
	LPN            string `json:"lpn"`
	TrackingNumber string `json:"tracking_number"`
	Condition      string `json:"condition"`
	Quantity       int    `json:"quantity" validate:"gte=0"`
	SKU            string `json:"sku"`
	ProductName    string `json:"product_name"`
	Notes          string `json:"notes"`
	ReceivedBy     string `json:"received_by" validate:"required"`
}

type decisionRequest struct {
	Decision string `json:"decision" validate:"required,oneof=move_to_inventory keep_in_returns"`
	Notes    string `json:"notes"`
	Actor    string `json:"actor" validate:"required"`
}

func (h *Handler) handleIntake(w http.ResponseWriter, r *http.Request) {
	var req intakeRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Body", err.Error())
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	ret, err := h.engine.CreateReturn(r.Context(), inventory.ReturnInput{
		Serial:         req.SerialNumber,
		LPN:            req.LPN,
		TrackingNumber: req.TrackingNumber,
		Condition:      req.Condition,
		Quantity:       req.Quantity,
		SKU:            req.SKU,
		ProductName:    req.ProductName,
		Notes:          req.Notes,
		ReceivedBy:     req.ReceivedBy,
	})
	if err != nil {
		h.logger.Error("return intake", slog.String("serial", req.SerialNumber), slog.Any("error", err))
		inventory.RespondError(w, err)
		return
	}
	h.logger.Info("return received",
		slog.String("return_id", ret.ID),
		slog.String("serial", ret.SerialNumber),
		slog.Int("quantity", ret.Quantity))
	httpx.JSON(w, http.StatusCreated, inventory.NewReturnResponse(ret))
}

func (h *Handler) handleDecision(w http.ResponseWriter, r *http.Request) {
	var req decisionRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Body", err.Error())
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	ret, err := h.engine.MakeReturnDecision(r.Context(), chi.URLParam(r, "id"), inventory.ReturnDecision(req.Decision), req.Actor, req.Notes)
	if err != nil {
		h.logger.Error("return decision", slog.String("return_id", chi.URLParam(r, "id")), slog.Any("error", err))
		inventory.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, inventory.NewReturnResponse(ret))
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	page := shared.ParsePage(r, 100, 500)
	decision := inventory.ReturnDecision(r.URL.Query().Get("decision"))
	returns, err := h.engine.ListReturns(r.Context(), decision, page.Limit, page.Offset)
	if err != nil {
		inventory.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, inventory.NewReturnResponses(returns))
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	ret, err := h.engine.GetReturn(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		inventory.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, inventory.NewReturnResponse(ret))
}
