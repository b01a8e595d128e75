package inventory

import (
	"github.com/go-chi/chi/v5"
)

// MountRoutes registers inventory routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/batches", h.handleListBatches)
	r.Get("/batches/{id}", h.handleGetBatch)
	r.Get("/batches/{id}/units", h.handleListBatchUnits)
	r.Post("/batches/{id}/reserve", h.handleReserve)
	r.Post("/batches/{id}/release", h.handleRelease)
	r.Get("/units/{id}", h.handleGetUnit)
	r.Get("/units/{id}/history", h.handleUnitHistory)
	r.Post("/units/{id}/serial", h.handleAssignSerial)
	r.Get("/units/needing-serial", h.handleNeedingSerial)
	r.Post("/serials/bulk", h.handleBulkAssign)
	r.Get("/serials/{serial}", h.handleLookupSerial)
}
