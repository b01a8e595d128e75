package inventory

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/shopspring/decimal"

	"github.com/stockline-wms/stockline/internal/shared"
)

// RepositoryPort abstracts repository usage for the engine.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	GetBatch(ctx context.Context, id string) (Batch, error)
	GetUnit(ctx context.Context, id string) (Unit, error)
	GetUnitBySerial(ctx context.Context, serial string) (Unit, error)
	SerialExists(ctx context.Context, serial string) (bool, error)
	ListBatches(ctx context.Context, filter BatchFilter) ([]Batch, error)
	ListUnitsByBatch(ctx context.Context, batchID string) ([]Unit, error)
	UnitsNeedingSerial(ctx context.Context, limit int) ([]Unit, error)
	History(ctx context.Context, unitID string) ([]HistoryEntry, error)
	GetDelivery(ctx context.Context, id string) (Delivery, error)
	ListDeliveries(ctx context.Context, limit, offset int) ([]Delivery, error)
	GetReturn(ctx context.Context, id string) (Return, error)
	ListReturns(ctx context.Context, decision ReturnDecision, limit, offset int) ([]Return, error)
	GetStats(ctx context.Context) (Stats, error)
	LowStock(ctx context.Context, threshold int) ([]Batch, error)
}

// AuditPort abstracts audit logging functionality.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// Service is the inventory consistency engine. Every public mutation runs as
// one repository transaction that updates units, batch counters and the
// history log together.
type Service struct {
	repo  RepositoryPort
	audit AuditPort
}

// NewService builds Service.
func NewService(repo RepositoryPort, audit AuditPort) *Service {
	return &Service{repo: repo, audit: audit}
}

// ReceiveBatchInput describes one receiving lot entering the warehouse.
type ReceiveBatchInput struct {
	SKU             string
	ProductName     string
	Quantity        int
	Serials         []string
	UnitValue       decimal.Decimal
	Source          Source
	SourceReference string
	ReceivedBy      string
	ReceivedDate    time.Time
}

// ReceiveBatch creates a batch and its units in one transaction. Serials, when
// pre-known, are assigned to the first units in order.
func (s *Service) ReceiveBatch(ctx context.Context, input ReceiveBatchInput) (Batch, []Unit, error) {
	if input.SKU == "" || input.ProductName == "" {
		return Batch{}, nil, errors.New("inventory: sku and product name required")
	}
	if input.Quantity <= 0 {
		return Batch{}, nil, errors.New("inventory: quantity must be positive")
	}
	if len(input.Serials) > input.Quantity {
		return Batch{}, nil, fmt.Errorf("inventory: %d serial numbers for %d units", len(input.Serials), input.Quantity)
	}
	serials := make([]string, 0, len(input.Serials))
	seen := map[string]struct{}{}
	for _, raw := range input.Serials {
		serial := NormalizeSerial(raw)
		if serial == "" {
			return Batch{}, nil, errors.New("inventory: empty serial number")
		}
		if _, dup := seen[serial]; dup {
			return Batch{}, nil, fmt.Errorf("%w: %s", ErrDuplicateSerial, serial)
		}
		seen[serial] = struct{}{}
		serials = append(serials, serial)
	}
	source := input.Source
	if source == "" {
		source = SourceNewArrival
	}
	now := time.Now().UTC()
	receivedDate := input.ReceivedDate
	if receivedDate.IsZero() {
		receivedDate = now
	}

	batch := Batch{
		ID:                uuid.NewString(),
		SKU:               input.SKU,
		ProductName:       input.ProductName,
		TotalQuantity:     input.Quantity,
		AvailableQuantity: input.Quantity,
		SerialsAssigned:   len(serials),
		SerialsUnassigned: input.Quantity - len(serials),
		Source:            source,
		SourceReference:   input.SourceReference,
		UnitValue:         input.UnitValue,
		ReceivedDate:      receivedDate,
		ReceivedBy:        input.ReceivedBy,
		CreatedAt:         now,
	}
	units := make([]Unit, 0, input.Quantity)

	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		for _, serial := range serials {
			exists, err := tx.SerialExists(ctx, serial)
			if err != nil {
				return err
			}
			if exists {
				return fmt.Errorf("%w: %s", ErrDuplicateSerial, serial)
			}
		}
		if err := tx.InsertBatch(ctx, batch); err != nil {
			return err
		}
		for i := 0; i < input.Quantity; i++ {
			unit := Unit{
				ID:        uuid.NewString(),
				BatchID:   batch.ID,
				Status:    StatusAvailable,
				CreatedAt: now.Add(time.Duration(i) * time.Microsecond),
			}
			if i < len(serials) {
				assignedAt := now
				unit.SerialNumber = serials[i]
				unit.AssignedDate = &assignedAt
				unit.AssignedBy = input.ReceivedBy
			}
			if err := tx.InsertUnit(ctx, unit); err != nil {
				return err
			}
			if unit.SerialNumber != "" {
				entry := HistoryEntry{
					SerialNumber: unit.SerialNumber,
					UnitID:       unit.ID,
					Action:       ActionAssigned,
					ActionDate:   now,
					ActionBy:     input.ReceivedBy,
					Details:      "assigned at receiving",
				}
				if err := tx.InsertHistory(ctx, entry); err != nil {
					return err
				}
			}
			units = append(units, unit)
		}
		return nil
	})
	if err != nil {
		return Batch{}, nil, mapSerialConflict(err)
	}
	s.recordAudit(ctx, input.ReceivedBy, "inventory:receive", "batch", batch.ID, map[string]any{
		"sku": batch.SKU, "quantity": batch.TotalQuantity, "serials": len(serials),
	})
	return batch, units, nil
}

// AssignSerial sets a unit's serial number exactly once. Uniqueness is checked
// before the transaction and re-checked inside it; the partial unique index on
// the unit table backstops concurrent racers.
func (s *Service) AssignSerial(ctx context.Context, unitID, rawSerial, actor string) (Unit, error) {
	serial := NormalizeSerial(rawSerial)
	if serial == "" {
		return Unit{}, errors.New("inventory: serial number required")
	}
	exists, err := s.repo.SerialExists(ctx, serial)
	if err != nil {
		return Unit{}, err
	}
	if exists {
		return Unit{}, fmt.Errorf("%w: %s", ErrDuplicateSerial, serial)
	}

	var updated Unit
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		unit, err := tx.GetUnitForUpdate(ctx, unitID)
		if err != nil {
			return err
		}
		if unit.SerialNumber != "" {
			return fmt.Errorf("%w: unit %s has %s", ErrAlreadyAssigned, unit.ID, unit.SerialNumber)
		}
		exists, err := tx.SerialExists(ctx, serial)
		if err != nil {
			return err
		}
		if exists {
			return fmt.Errorf("%w: %s", ErrDuplicateSerial, serial)
		}
		now := time.Now().UTC()
		unit.SerialNumber = serial
		unit.AssignedDate = &now
		unit.AssignedBy = actor
		if err := tx.UpdateUnit(ctx, unit); err != nil {
			return err
		}
		batch, err := tx.GetBatchForUpdate(ctx, unit.BatchID)
		if err != nil {
			return err
		}
		batch.SerialsAssigned++
		batch.SerialsUnassigned--
		if err := tx.UpdateBatchCounters(ctx, batch); err != nil {
			return err
		}
		entry := HistoryEntry{
			SerialNumber: serial,
			UnitID:       unit.ID,
			Action:       ActionAssigned,
			ActionDate:   now,
			ActionBy:     actor,
			Details:      "serial number assigned",
		}
		if err := tx.InsertHistory(ctx, entry); err != nil {
			return err
		}
		updated = unit
		return nil
	})
	if err != nil {
		return Unit{}, mapSerialConflict(err)
	}
	s.recordAudit(ctx, actor, "inventory:assign_serial", "unit", unitID, map[string]any{"serial": serial})
	return updated, nil
}

// AssignPair couples a unit with its proposed serial number.
type AssignPair struct {
	UnitID string
	Serial string
}

// BulkAssignError describes one failed pair.
type BulkAssignError struct {
	UnitID  string `json:"unit_id"`
	Serial  string `json:"serial"`
	Message string `json:"message"`
}

// BulkAssignResult summarises a bulk assignment run.
type BulkAssignResult struct {
	Succeeded int               `json:"succeeded"`
	Failed    int               `json:"failed"`
	Errors    []BulkAssignError `json:"errors,omitempty"`
}

// BulkAssignSerials processes pairs independently: each succeeds or fails on
// its own and earlier successes are never rolled back by a later failure.
func (s *Service) BulkAssignSerials(ctx context.Context, pairs []AssignPair, actor string) BulkAssignResult {
	result := BulkAssignResult{}
	for _, pair := range pairs {
		if _, err := s.AssignSerial(ctx, pair.UnitID, pair.Serial, actor); err != nil {
			result.Failed++
			result.Errors = append(result.Errors, BulkAssignError{UnitID: pair.UnitID, Serial: pair.Serial, Message: err.Error()})
			continue
		}
		result.Succeeded++
	}
	return result
}

// Reserve holds qty available units of the batch, oldest first.
func (s *Service) Reserve(ctx context.Context, batchID string, qty int, actor string) (Batch, error) {
	return s.shiftReservation(ctx, batchID, qty, actor, StatusAvailable, StatusReserved)
}

// Release returns qty reserved units of the batch to available. No history
// entries are written; reservations are not serial-number actions.
func (s *Service) Release(ctx context.Context, batchID string, qty int, actor string) (Batch, error) {
	return s.shiftReservation(ctx, batchID, qty, actor, StatusReserved, StatusAvailable)
}

func (s *Service) shiftReservation(ctx context.Context, batchID string, qty int, actor string, from, to Status) (Batch, error) {
	if qty <= 0 {
		return Batch{}, errors.New("inventory: quantity must be positive")
	}
	var updated Batch
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		batch, err := tx.GetBatchForUpdate(ctx, batchID)
		if err != nil {
			return err
		}
		have := batch.AvailableQuantity
		if from == StatusReserved {
			have = batch.ReservedQuantity
		}
		if have < qty {
			return fmt.Errorf("%w: requested %d, %s %d", ErrInsufficientInventory, qty, from, have)
		}
		units, err := tx.UnitsInStatusForUpdate(ctx, batchID, from, qty)
		if err != nil {
			return err
		}
		if len(units) < qty {
			return fmt.Errorf("%w: requested %d, %s %d", ErrInsufficientInventory, qty, from, len(units))
		}
		for _, unit := range units {
			if err := checkTransition(unit.Status, to); err != nil {
				return err
			}
			unit.Status = to
			if err := tx.UpdateUnit(ctx, unit); err != nil {
				return err
			}
		}
		if from == StatusAvailable {
			batch.AvailableQuantity -= qty
			batch.ReservedQuantity += qty
		} else {
			batch.ReservedQuantity -= qty
			batch.AvailableQuantity += qty
		}
		if err := tx.UpdateBatchCounters(ctx, batch); err != nil {
			return err
		}
		updated = batch
		return nil
	})
	if err != nil {
		return Batch{}, err
	}
	action := "inventory:reserve"
	if from == StatusReserved {
		action = "inventory:release"
	}
	s.recordAudit(ctx, actor, action, "batch", batchID, map[string]any{"quantity": qty})
	return updated, nil
}

// DeliverInput addresses a unit directly or lets the engine pick the oldest
// available unit of the batch's SKU.
type DeliverInput struct {
	UnitID         string
	BatchID        string
	Serial         string
	Carrier        string
	TrackingNumber string
	Address        string
	CustomerName   string
	CustomerPhone  string
	Actor          string
}

// Deliver ships one unit: the unit must leave the operation with a serial
// number, the delivery record is created and the batch counters move from
// available (or reserved) to delivered, all in one transaction.
func (s *Service) Deliver(ctx context.Context, input DeliverInput) (Delivery, error) {
	if input.UnitID == "" && input.BatchID == "" {
		return Delivery{}, errors.New("inventory: unit or batch required")
	}
	suppliedSerial := ""
	if input.Serial != "" {
		suppliedSerial = NormalizeSerial(input.Serial)
	}

	var delivery Delivery
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		var unit Unit
		var err error
		if input.UnitID != "" {
			unit, err = tx.GetUnitForUpdate(ctx, input.UnitID)
			if err != nil {
				return err
			}
		} else {
			batch, err := tx.GetBatchForUpdate(ctx, input.BatchID)
			if err != nil {
				return err
			}
			unit, err = tx.OldestAvailableUnitForUpdate(ctx, batch.SKU)
			if errors.Is(err, ErrNotFound) {
				return fmt.Errorf("%w: no available unit for sku %s", ErrInsufficientInventory, batch.SKU)
			}
			if err != nil {
				return err
			}
		}
		if err := checkTransition(unit.Status, StatusDelivered); err != nil {
			return err
		}
		batch, err := tx.GetBatchForUpdate(ctx, unit.BatchID)
		if err != nil {
			return err
		}
		if unit.Status == StatusAvailable && batch.AvailableQuantity < 1 {
			return fmt.Errorf("%w: batch %s has no available units", ErrInsufficientInventory, batch.ID)
		}

		now := time.Now().UTC()
		if unit.SerialNumber == "" {
			if suppliedSerial == "" {
				return fmt.Errorf("%w: unit %s has no serial number", ErrSerialRequired, unit.ID)
			}
			exists, err := tx.SerialExists(ctx, suppliedSerial)
			if err != nil {
				return err
			}
			if exists {
				return fmt.Errorf("%w: %s", ErrDuplicateSerial, suppliedSerial)
			}
			unit.SerialNumber = suppliedSerial
			unit.AssignedDate = &now
			unit.AssignedBy = input.Actor
			batch.SerialsAssigned++
			batch.SerialsUnassigned--
			entry := HistoryEntry{
				SerialNumber: suppliedSerial,
				UnitID:       unit.ID,
				Action:       ActionAssigned,
				ActionDate:   now,
				ActionBy:     input.Actor,
				Details:      "assigned at delivery",
			}
			if err := tx.InsertHistory(ctx, entry); err != nil {
				return err
			}
		}

		delivery = Delivery{
			ID:             uuid.NewString(),
			SerialNumber:   unit.SerialNumber,
			UnitID:         unit.ID,
			BatchID:        batch.ID,
			SKU:            batch.SKU,
			ProductName:    batch.ProductName,
			Carrier:        input.Carrier,
			TrackingNumber: input.TrackingNumber,
			Address:        input.Address,
			CustomerName:   input.CustomerName,
			CustomerPhone:  input.CustomerPhone,
			DeliveredBy:    input.Actor,
			CreatedAt:      now,
		}
		if err := tx.InsertDelivery(ctx, delivery); err != nil {
			return err
		}

		if unit.Status == StatusReserved {
			batch.ReservedQuantity--
		} else {
			batch.AvailableQuantity--
		}
		batch.DeliveredQuantity++
		unit.Status = StatusDelivered
		unit.DeliveryID = delivery.ID
		if err := tx.UpdateUnit(ctx, unit); err != nil {
			return err
		}
		if err := tx.UpdateBatchCounters(ctx, batch); err != nil {
			return err
		}
		entry := HistoryEntry{
			SerialNumber: unit.SerialNumber,
			UnitID:       unit.ID,
			Action:       ActionDelivered,
			ActionDate:   now,
			ActionBy:     input.Actor,
			Details:      fmt.Sprintf("delivered to %s", input.CustomerName),
			ReferenceID:  delivery.ID,
		}
		return tx.InsertHistory(ctx, entry)
	})
	if err != nil {
		return Delivery{}, mapSerialConflict(err)
	}
	s.recordAudit(ctx, input.Actor, "inventory:deliver", "delivery", delivery.ID, map[string]any{
		"serial": delivery.SerialNumber, "sku": delivery.SKU,
	})
	return delivery, nil
}

// ReturnInput describes one scanned return at intake.
type ReturnInput struct {
	Serial         string
	LPN            string
	TrackingNumber string
	Condition      string
	Quantity       int
	SKU            string
	ProductName    string
	Notes          string
	ReceivedBy     string
}

// CreateReturn routes intake by whether the scanned serial is already known:
// known units must be delivered; unknown serials open a brand-new from-return
// batch so the product can be registered before it ever had inventory on file.
func (s *Service) CreateReturn(ctx context.Context, input ReturnInput) (Return, error) {
	serial := NormalizeSerial(input.Serial)
	if serial == "" {
		return Return{}, errors.New("inventory: serial number required")
	}
	_, err := s.repo.GetUnitBySerial(ctx, serial)
	switch {
	case err == nil:
		return s.createReturnForKnownUnit(ctx, serial, input)
	case errors.Is(err, ErrNotFound):
		return s.createReturnForNewProduct(ctx, serial, input)
	default:
		return Return{}, err
	}
}

func (s *Service) createReturnForKnownUnit(ctx context.Context, serial string, input ReturnInput) (Return, error) {
	var ret Return
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		unit, err := tx.GetUnitBySerialForUpdate(ctx, serial)
		if err != nil {
			return err
		}
		if ok, reason := CanBeReturned(unit.Status); !ok {
			return fmt.Errorf("%w: serial %s %s", ErrInvalidTransition, serial, reason)
		}
		batch, err := tx.GetBatchForUpdate(ctx, unit.BatchID)
		if err != nil {
			return err
		}
		now := time.Now().UTC()
		ret = Return{
			ID:             uuid.NewString(),
			SerialNumber:   serial,
			UnitID:         unit.ID,
			BatchID:        batch.ID,
			DeliveryID:     unit.DeliveryID,
			Status:         ReturnStatusReceived,
			Decision:       DecisionPending,
			LPN:            input.LPN,
			TrackingNumber: input.TrackingNumber,
			Condition:      input.Condition,
			Quantity:       1,
			Notes:          input.Notes,
			ReceivedBy:     input.ReceivedBy,
			CreatedAt:      now,
		}
		if err := tx.InsertReturn(ctx, ret); err != nil {
			return err
		}
		unit.Status = StatusReturned
		unit.ReturnID = ret.ID
		if err := tx.UpdateUnit(ctx, unit); err != nil {
			return err
		}
		batch.DeliveredQuantity--
		batch.ReturnedQuantity++
		if err := tx.UpdateBatchCounters(ctx, batch); err != nil {
			return err
		}
		entry := HistoryEntry{
			SerialNumber: serial,
			UnitID:       unit.ID,
			Action:       ActionReturned,
			ActionDate:   now,
			ActionBy:     input.ReceivedBy,
			Details:      fmt.Sprintf("returned, condition: %s", input.Condition),
			ReferenceID:  ret.ID,
		}
		return tx.InsertHistory(ctx, entry)
	})
	if err != nil {
		return Return{}, err
	}
	s.recordAudit(ctx, input.ReceivedBy, "inventory:return", "return", ret.ID, map[string]any{"serial": serial})
	return ret, nil
}

func (s *Service) createReturnForNewProduct(ctx context.Context, serial string, input ReturnInput) (Return, error) {
	qty := input.Quantity
	if qty <= 0 {
		qty = 1
	}
	if input.ProductName == "" {
		return Return{}, errors.New("inventory: product name required for unknown serial")
	}
	sku := input.SKU
	if sku == "" {
		sku = "RET-" + serial
	}

	var ret Return
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		exists, err := tx.SerialExists(ctx, serial)
		if err != nil {
			return err
		}
		if exists {
			return fmt.Errorf("%w: %s", ErrDuplicateSerial, serial)
		}
		now := time.Now().UTC()
		returnID := uuid.NewString()
		batch := Batch{
			ID:                uuid.NewString(),
			SKU:               sku,
			ProductName:       input.ProductName,
			TotalQuantity:     qty,
			ReturnedQuantity:  qty,
			SerialsAssigned:   1,
			SerialsUnassigned: qty - 1,
			Source:            SourceFromReturn,
			SourceReference:   returnID,
			UnitValue:         decimal.Zero,
			ReceivedDate:      now,
			ReceivedBy:        input.ReceivedBy,
			CreatedAt:         now,
		}
		if err := tx.InsertBatch(ctx, batch); err != nil {
			return err
		}
		var firstUnit Unit
		for i := 0; i < qty; i++ {
			unit := Unit{
				ID:        uuid.NewString(),
				BatchID:   batch.ID,
				Status:    StatusReturned,
				ReturnID:  returnID,
				CreatedAt: now.Add(time.Duration(i) * time.Microsecond),
			}
			if i == 0 {
				assignedAt := now
				unit.SerialNumber = serial
				unit.AssignedDate = &assignedAt
				unit.AssignedBy = input.ReceivedBy
				firstUnit = unit
			}
			if err := tx.InsertUnit(ctx, unit); err != nil {
				return err
			}
		}
		ret = Return{
			ID:             returnID,
			SerialNumber:   serial,
			UnitID:         firstUnit.ID,
			BatchID:        batch.ID,
			Status:         ReturnStatusReceived,
			Decision:       DecisionPending,
			LPN:            input.LPN,
			TrackingNumber: input.TrackingNumber,
			Condition:      input.Condition,
			Quantity:       qty,
			Notes:          input.Notes,
			ReceivedBy:     input.ReceivedBy,
			CreatedAt:      now,
		}
		if err := tx.InsertReturn(ctx, ret); err != nil {
			return err
		}
		for _, entry := range []HistoryEntry{
			{SerialNumber: serial, UnitID: firstUnit.ID, Action: ActionAssigned, ActionDate: now, ActionBy: input.ReceivedBy, Details: "assigned at return intake"},
			{SerialNumber: serial, UnitID: firstUnit.ID, Action: ActionReturned, ActionDate: now, ActionBy: input.ReceivedBy, Details: "returned as new product", ReferenceID: returnID},
		} {
			if err := tx.InsertHistory(ctx, entry); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return Return{}, mapSerialConflict(err)
	}
	s.recordAudit(ctx, input.ReceivedBy, "inventory:return_new_product", "return", ret.ID, map[string]any{
		"serial": serial, "quantity": qty,
	})
	return ret, nil
}

// MakeReturnDecision finalises a pending return. A decision, once made, is
// final; re-deciding fails and changes nothing.
func (s *Service) MakeReturnDecision(ctx context.Context, returnID string, decision ReturnDecision, actor, notes string) (Return, error) {
	if decision != DecisionMoveToStock && decision != DecisionKeepInReturns {
		return Return{}, fmt.Errorf("inventory: unknown decision %q", decision)
	}
	var updated Return
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		ret, err := tx.GetReturnForUpdate(ctx, returnID)
		if err != nil {
			return err
		}
		if ret.Decision != DecisionPending {
			return fmt.Errorf("%w: return %s decided as %s", ErrDecisionMade, ret.ID, ret.Decision)
		}
		now := time.Now().UTC()
		unit, err := tx.GetUnitForUpdate(ctx, ret.UnitID)
		if err != nil {
			return err
		}
		if decision == DecisionMoveToStock {
			if err := checkTransition(unit.Status, StatusAvailable); err != nil {
				return err
			}
			batch, err := tx.GetBatchForUpdate(ctx, unit.BatchID)
			if err != nil {
				return err
			}
			unit.Status = StatusAvailable
			unit.ReturnID = ""
			if err := tx.UpdateUnit(ctx, unit); err != nil {
				return err
			}
			batch.ReturnedQuantity--
			batch.AvailableQuantity++
			if err := tx.UpdateBatchCounters(ctx, batch); err != nil {
				return err
			}
			ret.Status = ReturnStatusMovedToStock
		} else {
			ret.Status = ReturnStatusKeptInReturns
		}
		action := ActionMovedToStock
		if decision == DecisionKeepInReturns {
			action = ActionKeptInReturns
		}
		if unit.SerialNumber != "" {
			entry := HistoryEntry{
				SerialNumber: unit.SerialNumber,
				UnitID:       unit.ID,
				Action:       action,
				ActionDate:   now,
				ActionBy:     actor,
				Details:      notes,
				ReferenceID:  ret.ID,
			}
			if err := tx.InsertHistory(ctx, entry); err != nil {
				return err
			}
		}
		ret.Decision = decision
		ret.DecisionNotes = notes
		ret.DecisionBy = actor
		ret.DecisionAt = &now
		if err := tx.UpdateReturn(ctx, ret); err != nil {
			return err
		}
		updated = ret
		return nil
	})
	if err != nil {
		return Return{}, err
	}
	s.recordAudit(ctx, actor, "inventory:return_decision", "return", returnID, map[string]any{"decision": string(decision)})
	return updated, nil
}

// GetBatch loads one batch.
func (s *Service) GetBatch(ctx context.Context, id string) (Batch, error) {
	return s.repo.GetBatch(ctx, id)
}

// GetUnit loads one unit.
func (s *Service) GetUnit(ctx context.Context, id string) (Unit, error) {
	return s.repo.GetUnit(ctx, id)
}

// GetUnitBySerial resolves a scanned serial to its unit.
func (s *Service) GetUnitBySerial(ctx context.Context, rawSerial string) (Unit, error) {
	return s.repo.GetUnitBySerial(ctx, NormalizeSerial(rawSerial))
}

// ListBatches lists batches.
func (s *Service) ListBatches(ctx context.Context, filter BatchFilter) ([]Batch, error) {
	return s.repo.ListBatches(ctx, filter)
}

// ListUnitsByBatch lists a batch's units in creation order.
func (s *Service) ListUnitsByBatch(ctx context.Context, batchID string) ([]Unit, error) {
	return s.repo.ListUnitsByBatch(ctx, batchID)
}

// UnitsNeedingSerial lists available units still missing a serial number.
func (s *Service) UnitsNeedingSerial(ctx context.Context, limit int) ([]Unit, error) {
	return s.repo.UnitsNeedingSerial(ctx, limit)
}

// History lists the audit trail of one unit.
func (s *Service) History(ctx context.Context, unitID string) ([]HistoryEntry, error) {
	return s.repo.History(ctx, unitID)
}

// GetDelivery loads one delivery record.
func (s *Service) GetDelivery(ctx context.Context, id string) (Delivery, error) {
	return s.repo.GetDelivery(ctx, id)
}

// ListDeliveries lists delivery records newest first.
func (s *Service) ListDeliveries(ctx context.Context, limit, offset int) ([]Delivery, error) {
	return s.repo.ListDeliveries(ctx, limit, offset)
}

// GetReturn loads one return record.
func (s *Service) GetReturn(ctx context.Context, id string) (Return, error) {
	return s.repo.GetReturn(ctx, id)
}

// ListReturns lists return records newest first.
func (s *Service) ListReturns(ctx context.Context, decision ReturnDecision, limit, offset int) ([]Return, error) {
	return s.repo.ListReturns(ctx, decision, limit, offset)
}

// GetStats computes dashboard aggregates.
func (s *Service) GetStats(ctx context.Context) (Stats, error) {
	return s.repo.GetStats(ctx)
}

// LowStock lists batches under the availability threshold.
func (s *Service) LowStock(ctx context.Context, threshold int) ([]Batch, error) {
	return s.repo.LowStock(ctx, threshold)
}

func (s *Service) recordAudit(ctx context.Context, actor, action, entity, entityID string, meta map[string]any) {
	if s.audit == nil {
		return
	}
	_ = s.audit.Record(ctx, shared.AuditLog{
		Actor:    actor,
		Action:   action,
		Entity:   entity,
		EntityID: entityID,
		Meta:     meta,
	})
}

// mapSerialConflict converts a unique-index violation on the serial column
// into the duplicate-serial error. Two racers on the same serial commit at
// most once; the loser surfaces here instead of as a bare driver error.
func mapSerialConflict(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return fmt.Errorf("%w: %s", ErrDuplicateSerial, pgErr.Detail)
	}
	return err
}
