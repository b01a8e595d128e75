package inventory

import (
	"time"

	"github.com/shopspring/decimal"
)

// BatchResponse is the JSON shape of a batch.
type BatchResponse struct {
	ID                string          `json:"id"`
	SKU               string          `json:"sku"`
	ProductName       string          `json:"product_name"`
	TotalQuantity     int             `json:"total_quantity"`
	AvailableQuantity int             `json:"available_quantity"`
	ReservedQuantity  int             `json:"reserved_quantity"`
	DeliveredQuantity int             `json:"delivered_quantity"`
	ReturnedQuantity  int             `json:"returned_quantity"`
	SerialsAssigned   int             `json:"serials_assigned"`
	SerialsUnassigned int             `json:"serials_unassigned"`
	Source            Source          `json:"source"`
	SourceReference   string          `json:"source_reference,omitempty"`
	UnitValue         decimal.Decimal `json:"unit_value"`
	ReceivedDate      time.Time       `json:"received_date"`
	ReceivedBy        string          `json:"received_by"`
	CreatedAt         time.Time       `json:"created_at"`
}

// NewBatchResponse converts a batch for the wire.
func NewBatchResponse(b Batch) BatchResponse {
	return BatchResponse{
		ID:                b.ID,
		SKU:               b.SKU,
		ProductName:       b.ProductName,
		TotalQuantity:     b.TotalQuantity,
		AvailableQuantity: b.AvailableQuantity,
		ReservedQuantity:  b.ReservedQuantity,
		DeliveredQuantity: b.DeliveredQuantity,
		ReturnedQuantity:  b.ReturnedQuantity,
		SerialsAssigned:   b.SerialsAssigned,
		SerialsUnassigned: b.SerialsUnassigned,
		Source:            b.Source,
		SourceReference:   b.SourceReference,
		UnitValue:         b.UnitValue,
		ReceivedDate:      b.ReceivedDate,
		ReceivedBy:        b.ReceivedBy,
		CreatedAt:         b.CreatedAt,
	}
}

// NewBatchResponses converts a slice of batches.
func NewBatchResponses(batches []Batch) []BatchResponse {
	out := make([]BatchResponse, 0, len(batches))
	for _, b := range batches {
		out = append(out, NewBatchResponse(b))
	}
	return out
}

// UnitResponse is the JSON shape of a unit.
type UnitResponse struct {
	ID           string     `json:"id"`
	BatchID      string     `json:"batch_id"`
	SerialNumber string     `json:"serial_number,omitempty"`
	Status       Status     `json:"status"`
	DeliveryID   string     `json:"delivery_id,omitempty"`
	ReturnID     string     `json:"return_id,omitempty"`
	AssignedDate *time.Time `json:"assigned_date,omitempty"`
	AssignedBy   string     `json:"assigned_by,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
}

// NewUnitResponse converts a unit for the wire.
func NewUnitResponse(u Unit) UnitResponse {
	return UnitResponse{
		ID:           u.ID,
		BatchID:      u.BatchID,
		SerialNumber: u.SerialNumber,
		Status:       u.Status,
		DeliveryID:   u.DeliveryID,
		ReturnID:     u.ReturnID,
		AssignedDate: u.AssignedDate,
		AssignedBy:   u.AssignedBy,
		CreatedAt:    u.CreatedAt,
	}
}

// NewUnitResponses converts a slice of units.
func NewUnitResponses(units []Unit) []UnitResponse {
	out := make([]UnitResponse, 0, len(units))
	for _, u := range units {
		out = append(out, NewUnitResponse(u))
	}
	return out
}

// HistoryResponse is the JSON shape of one history entry.
type HistoryResponse struct {
	ID           int64         `json:"id"`
	SerialNumber string        `json:"serial_number"`
	UnitID       string        `json:"unit_id"`
	Action       HistoryAction `json:"action"`
	ActionDate   time.Time     `json:"action_date"`
	ActionBy     string        `json:"action_by"`
	Details      string        `json:"details,omitempty"`
	ReferenceID  string        `json:"reference_id,omitempty"`
}

// NewHistoryResponses converts history entries.
func NewHistoryResponses(entries []HistoryEntry) []HistoryResponse {
	out := make([]HistoryResponse, 0, len(entries))
	for _, e := range entries {
		out = append(out, HistoryResponse{
			ID:           e.ID,
			SerialNumber: e.SerialNumber,
			UnitID:       e.UnitID,
			Action:       e.Action,
			ActionDate:   e.ActionDate,
			ActionBy:     e.ActionBy,
			Details:      e.Details,
			ReferenceID:  e.ReferenceID,
		})
	}
	return out
}

// DeliveryResponse is the JSON shape of a delivery record.
type DeliveryResponse struct {
	ID             string    `json:"id"`
	SerialNumber   string    `json:"serial_number"`
	UnitID         string    `json:"unit_id"`
	BatchID        string    `json:"batch_id"`
	SKU            string    `json:"sku"`
	ProductName    string    `json:"product_name"`
	Carrier        string    `json:"carrier,omitempty"`
	TrackingNumber string    `json:"tracking_number,omitempty"`
	Address        string    `json:"address,omitempty"`
	CustomerName   string    `json:"customer_name"`
	CustomerPhone  string    `json:"customer_phone,omitempty"`
	DeliveredBy    string    `json:"delivered_by"`
	CreatedAt      time.Time `json:"created_at"`
}

// NewDeliveryResponse converts a delivery record for the wire.
func NewDeliveryResponse(d Delivery) DeliveryResponse {
	return DeliveryResponse{
		ID:             d.ID,
		SerialNumber:   d.SerialNumber,
		UnitID:         d.UnitID,
		BatchID:        d.BatchID,
		SKU:            d.SKU,
		ProductName:    d.ProductName,
		Carrier:        d.Carrier,
		TrackingNumber: d.TrackingNumber,
		Address:        d.Address,
		CustomerName:   d.CustomerName,
		CustomerPhone:  d.CustomerPhone,
		DeliveredBy:    d.DeliveredBy,
		CreatedAt:      d.CreatedAt,
	}
}

// NewDeliveryResponses converts a slice of delivery records.
func NewDeliveryResponses(deliveries []Delivery) []DeliveryResponse {
	out := make([]DeliveryResponse, 0, len(deliveries))
	for _, d := range deliveries {
		out = append(out, NewDeliveryResponse(d))
	}
	return out
}

// ReturnResponse is the JSON shape of a return record.
type ReturnResponse struct {
	ID             string         `json:"id"`
	SerialNumber   string         `json:"serial_number"`
	UnitID         string         `json:"unit_id"`
	BatchID        string         `json:"batch_id"`
	DeliveryID     string         `json:"delivery_id,omitempty"`
	Status         ReturnStatus   `json:"status"`
	Decision       ReturnDecision `json:"decision"`
	LPN            string         `json:"lpn,omitempty"`
	TrackingNumber string         `json:"tracking_number,omitempty"`
	Condition      string         `json:"condition,omitempty"`
	Quantity       int            `json:"quantity"`
	Notes          string         `json:"notes,omitempty"`
	DecisionNotes  string         `json:"decision_notes,omitempty"`
	DecisionBy     string         `json:"decision_by,omitempty"`
	DecisionAt     *time.Time     `json:"decision_at,omitempty"`
	ReceivedBy     string         `json:"received_by"`
	CreatedAt      time.Time      `json:"created_at"`
}

// NewReturnResponse converts a return record for the wire.
func NewReturnResponse(ret Return) ReturnResponse {
	return ReturnResponse{
		ID:             ret.ID,
		SerialNumber:   ret.SerialNumber,
		UnitID:         ret.UnitID,
		BatchID:        ret.BatchID,
		DeliveryID:     ret.DeliveryID,
		Status:         ret.Status,
		Decision:       ret.Decision,
		LPN:            ret.LPN,
		TrackingNumber: ret.TrackingNumber,
		Condition:      ret.Condition,
		Quantity:       ret.Quantity,
		Notes:          ret.Notes,
		DecisionNotes:  ret.DecisionNotes,
		DecisionBy:     ret.DecisionBy,
		DecisionAt:     ret.DecisionAt,
		ReceivedBy:     ret.ReceivedBy,
		CreatedAt:      ret.CreatedAt,
	}
}

// NewReturnResponses converts a slice of return records.
func NewReturnResponses(returns []Return) []ReturnResponse {
	out := make([]ReturnResponse, 0, len(returns))
	for _, ret := range returns {
		out = append(out, NewReturnResponse(ret))
	}
	return out
}
