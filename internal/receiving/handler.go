package receiving

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"github.com/stockline-wms/stockline/internal/inventory"
	"github.com/stockline-wms/stockline/internal/platform/httpx"
	"github.com/stockline-wms/stockline/internal/shared"
)

// Handler wires HTTP endpoints for receiving.
type Handler struct {
	logger   *slog.Logger
	service  *Service
	validate *validator.Validate
}

// NewHandler constructs receiving handler.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service, validate: validator.New()}
}

// MountRoutes registers receiving routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/packages", h.handleReceive)
	r.Get("/packages", h.handleListPackages)
	r.Get("/packages/{id}", h.handleGetPackage)
}

type receiveRequest struct {
	Reference      string   `json:"reference"`
	Carrier        string   `json:"carrier"`
	TrackingNumber string   `json:"tracking_number"`
	SKU            string   `json:"sku" validate:"required"`
	ProductName    string   `json:"product_name" validate:"required"`
	Quantity       int      `json:"quantity" validate:"required,gt=0"`
	SerialNumbers  []string `json:"serial_numbers"`
	UnitValue      string   `json:"unit_value"`
	ReceivedBy     string   `json:"received_by" validate:"required"`
}

type packageResponse struct {
	ID             string    `json:"id"`
	Reference      string    `json:"reference,omitempty"`
	Carrier        string    `json:"carrier,omitempty"`
	TrackingNumber string    `json:"tracking_number,omitempty"`
	Quantity       int       `json:"quantity"`
	ReceivedBy     string    `json:"received_by"`
	CreatedAt      time.Time `json:"created_at"`
}

type receiveResponse struct {
	Package packageResponse          `json:"package"`
	Batch   inventory.BatchResponse  `json:"batch"`
	Units   []inventory.UnitResponse `json:"units"`
}

func newPackageResponse(pkg Package) packageResponse {
	return packageResponse{
		ID:             pkg.ID,
		Reference:      pkg.Reference,
		Carrier:        pkg.Carrier,
		TrackingNumber: pkg.TrackingNumber,
		Quantity:       pkg.Quantity,
		ReceivedBy:     pkg.ReceivedBy,
		CreatedAt:      pkg.CreatedAt,
	}
}

func (h *Handler) handleReceive(w http.ResponseWriter, r *http.Request) {
	var req receiveRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Body", err.Error())
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	unitValue := decimal.Zero
	if req.UnitValue != "" {
		parsed, err := decimal.NewFromString(req.UnitValue)
		if err != nil || parsed.IsNegative() {
			httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "unit_value must be a non-negative decimal")
			return
		}
		unitValue = parsed
	}
	pkg, batch, units, err := h.service.Receive(r.Context(), ReceiveInput{
		Reference:      req.Reference,
		Carrier:        req.Carrier,
		TrackingNumber: req.TrackingNumber,
		SKU:            req.SKU,
		ProductName:    req.ProductName,
		Quantity:       req.Quantity,
		Serials:        req.SerialNumbers,
		UnitValue:      unitValue,
		ReceivedBy:     req.ReceivedBy,
	})
	if err != nil {
		h.logger.Error("receive package", slog.String("sku", req.SKU), slog.Any("error", err))
		inventory.RespondError(w, err)
		return
	}
	h.logger.Info("package received",
		slog.String("package_id", pkg.ID),
		slog.String("batch_id", batch.ID),
		slog.Int("units", len(units)))
	httpx.JSON(w, http.StatusCreated, receiveResponse{
		Package: newPackageResponse(pkg),
		Batch:   inventory.NewBatchResponse(batch),
		Units:   inventory.NewUnitResponses(units),
	})
}

func (h *Handler) handleListPackages(w http.ResponseWriter, r *http.Request) {
	page := shared.ParsePage(r, 100, 500)
	packages, err := h.service.ListPackages(r.Context(), page.Limit, page.Offset)
	if err != nil {
		inventory.RespondError(w, err)
		return
	}
	out := make([]packageResponse, 0, len(packages))
	for _, pkg := range packages {
		out = append(out, newPackageResponse(pkg))
	}
	httpx.JSON(w, http.StatusOK, out)
}

func (h *Handler) handleGetPackage(w http.ResponseWriter, r *http.Request) {
	pkg, err := h.service.GetPackage(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		if errors.Is(err, ErrPackageNotFound) {
			httpx.Problem(w, http.StatusNotFound, "Not Found", err.Error())
			return
		}
		inventory.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, newPackageResponse(pkg))
}
