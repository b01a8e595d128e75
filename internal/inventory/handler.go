package inventory

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/stockline-wms/stockline/internal/platform/httpx"
	"github.com/stockline-wms/stockline/internal/shared"
)

// Handler wires HTTP endpoints for the inventory module.
type Handler struct {
	logger   *slog.Logger
	service  *Service
	validate *validator.Validate
}

// NewHandler constructs inventory handler.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service, validate: validator.New()}
}

type assignSerialRequest struct {
	SerialNumber string `json:"serial_number" validate:"required"`
	Actor        string `json:"actor" validate:"required"`
}

type bulkAssignItem struct {
	UnitID       string `json:"unit_id" validate:"required,uuid"`
	SerialNumber string `json:"serial_number" validate:"required"`
}

type bulkAssignRequest struct {
	Assignments []bulkAssignItem `json:"assignments" validate:"required,min=1,dive"`
	Actor       string           `json:"actor" validate:"required"`
}

type reservationRequest struct {
	Quantity int    `json:"quantity" validate:"required,gt=0"`
	Actor    string `json:"actor" validate:"required"`
}

func (h *Handler) handleListBatches(w http.ResponseWriter, r *http.Request) {
	page := shared.ParsePage(r, 100, 500)
	filter := BatchFilter{
		SKU:    r.URL.Query().Get("sku"),
		Source: Source(r.URL.Query().Get("source")),
		Limit:  page.Limit,
		Offset: page.Offset,
	}
	batches, err := h.service.ListBatches(r.Context(), filter)
	if err != nil {
		h.logger.Error("list batches", slog.Any("error", err))
		RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, NewBatchResponses(batches))
}

func (h *Handler) handleGetBatch(w http.ResponseWriter, r *http.Request) {
	batch, err := h.service.GetBatch(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, NewBatchResponse(batch))
}

func (h *Handler) handleListBatchUnits(w http.ResponseWriter, r *http.Request) {
	batchID := chi.URLParam(r, "id")
	if _, err := h.service.GetBatch(r.Context(), batchID); err != nil {
		RespondError(w, err)
		return
	}
	units, err := h.service.ListUnitsByBatch(r.Context(), batchID)
	if err != nil {
		RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, NewUnitResponses(units))
}

func (h *Handler) handleGetUnit(w http.ResponseWriter, r *http.Request) {
	unit, err := h.service.GetUnit(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, NewUnitResponse(unit))
}

func (h *Handler) handleUnitHistory(w http.ResponseWriter, r *http.Request) {
	unitID := chi.URLParam(r, "id")
	if _, err := h.service.GetUnit(r.Context(), unitID); err != nil {
		RespondError(w, err)
		return
	}
	entries, err := h.service.History(r.Context(), unitID)
	if err != nil {
		RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, NewHistoryResponses(entries))
}

func (h *Handler) handleLookupSerial(w http.ResponseWriter, r *http.Request) {
	unit, err := h.service.GetUnitBySerial(r.Context(), chi.URLParam(r, "serial"))
	if err != nil {
		RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, NewUnitResponse(unit))
}

func (h *Handler) handleNeedingSerial(w http.ResponseWriter, r *http.Request) {
	page := shared.ParsePage(r, 100, 500)
	units, err := h.service.UnitsNeedingSerial(r.Context(), page.Limit)
	if err != nil {
		RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, NewUnitResponses(units))
}

func (h *Handler) handleAssignSerial(w http.ResponseWriter, r *http.Request) {
	var req assignSerialRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Body", err.Error())
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	unit, err := h.service.AssignSerial(r.Context(), chi.URLParam(r, "id"), req.SerialNumber, req.Actor)
	if err != nil {
		h.logger.Error("assign serial", slog.String("unit_id", chi.URLParam(r, "id")), slog.Any("error", err))
		RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, NewUnitResponse(unit))
}

func (h *Handler) handleBulkAssign(w http.ResponseWriter, r *http.Request) {
	var req bulkAssignRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Body", err.Error())
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	pairs := make([]AssignPair, 0, len(req.Assignments))
	for _, item := range req.Assignments {
		pairs = append(pairs, AssignPair{UnitID: item.UnitID, Serial: item.SerialNumber})
	}
	result := h.service.BulkAssignSerials(r.Context(), pairs, req.Actor)
	h.logger.Info("bulk assign serials",
		slog.Int("succeeded", result.Succeeded),
		slog.Int("failed", result.Failed))
	httpx.JSON(w, http.StatusOK, result)
}

func (h *Handler) handleReserve(w http.ResponseWriter, r *http.Request) {
	h.handleReservationShift(w, r, true)
}

func (h *Handler) handleRelease(w http.ResponseWriter, r *http.Request) {
	h.handleReservationShift(w, r, false)
}

func (h *Handler) handleReservationShift(w http.ResponseWriter, r *http.Request, reserve bool) {
	var req reservationRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Body", err.Error())
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	batchID := chi.URLParam(r, "id")
	var batch Batch
	var err error
	if reserve {
		batch, err = h.service.Reserve(r.Context(), batchID, req.Quantity, req.Actor)
	} else {
		batch, err = h.service.Release(r.Context(), batchID, req.Quantity, req.Actor)
	}
	if err != nil {
		RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, NewBatchResponse(batch))
}

// RespondError maps engine errors to HTTP problem responses. Shared by the
// delivery, returns and receiving handlers as well.
func RespondError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrNotFound):
		httpx.Problem(w, http.StatusNotFound, "Not Found", err.Error())
	case errors.Is(err, ErrDuplicateSerial):
		httpx.Problem(w, http.StatusConflict, "Duplicate Serial Number", err.Error())
	case errors.Is(err, ErrAlreadyAssigned):
		httpx.Problem(w, http.StatusConflict, "Serial Already Assigned", err.Error())
	case errors.Is(err, ErrDecisionMade):
		httpx.Problem(w, http.StatusConflict, "Decision Already Made", err.Error())
	case errors.Is(err, ErrInvalidTransition):
		httpx.Problem(w, http.StatusUnprocessableEntity, "Invalid State Transition", err.Error())
	case errors.Is(err, ErrSerialRequired):
		httpx.Problem(w, http.StatusUnprocessableEntity, "Serial Number Required", err.Error())
	case errors.Is(err, ErrInsufficientInventory):
		httpx.Problem(w, http.StatusUnprocessableEntity, "Insufficient Inventory", err.Error())
	default:
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
	}
}
