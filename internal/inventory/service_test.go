package inventory

import (
	"context"
	"sort"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	_ "github.com/stockline-wms/stockline/internal/testing/guard"
)

type memoryRepo struct {
	batches    map[string]Batch
	units      map[string]Unit
	history    []HistoryEntry
	deliveries map[string]Delivery
	returns    map[string]Return
	nextHistID int64
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{
		batches:    make(map[string]Batch),
		units:      make(map[string]Unit),
		deliveries: make(map[string]Delivery),
		returns:    make(map[string]Return),
	}
}

type memoryTx struct {
	repo *memoryRepo
}

// WithTx snapshots state before the callback and restores it on error, so the
// tests observe the same all-or-nothing behaviour the SQL transaction gives.
func (r *memoryRepo) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	batches := make(map[string]Batch, len(r.batches))
	for k, v := range r.batches {
		batches[k] = v
	}
	units := make(map[string]Unit, len(r.units))
	for k, v := range r.units {
		units[k] = v
	}
	deliveries := make(map[string]Delivery, len(r.deliveries))
	for k, v := range r.deliveries {
		deliveries[k] = v
	}
	returns := make(map[string]Return, len(r.returns))
	for k, v := range r.returns {
		returns[k] = v
	}
	history := make([]HistoryEntry, len(r.history))
	copy(history, r.history)
	nextHistID := r.nextHistID

	if err := fn(ctx, &memoryTx{repo: r}); err != nil {
		r.batches = batches
		r.units = units
		r.deliveries = deliveries
		r.returns = returns
		r.history = history
		r.nextHistID = nextHistID
		return err
	}
	return nil
}

func (r *memoryRepo) GetBatch(ctx context.Context, id string) (Batch, error) {
	if b, ok := r.batches[id]; ok {
		return b, nil
	}
	return Batch{}, ErrNotFound
}

func (r *memoryRepo) GetUnit(ctx context.Context, id string) (Unit, error) {
	if u, ok := r.units[id]; ok {
		return u, nil
	}
	return Unit{}, ErrNotFound
}

func (r *memoryRepo) GetUnitBySerial(ctx context.Context, serial string) (Unit, error) {
	for _, u := range r.units {
		if u.SerialNumber == serial && serial != "" {
			return u, nil
		}
	}
	return Unit{}, ErrNotFound
}

func (r *memoryRepo) SerialExists(ctx context.Context, serial string) (bool, error) {
	_, err := r.GetUnitBySerial(ctx, serial)
	if err == ErrNotFound {
		return false, nil
	}
	return err == nil, err
}

func (r *memoryRepo) ListBatches(ctx context.Context, filter BatchFilter) ([]Batch, error) {
	out := []Batch{}
	for _, b := range r.batches {
		if filter.SKU != "" && b.SKU != filter.SKU {
			continue
		}
		if filter.Source != "" && b.Source != filter.Source {
			continue
		}
		out = append(out, b)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (r *memoryRepo) ListUnitsByBatch(ctx context.Context, batchID string) ([]Unit, error) {
	out := []Unit{}
	for _, u := range r.units {
		if u.BatchID == batchID {
			out = append(out, u)
		}
	}
	sortUnitsOldestFirst(out)
	return out, nil
}

func (r *memoryRepo) UnitsNeedingSerial(ctx context.Context, limit int) ([]Unit, error) {
	out := []Unit{}
	for _, u := range r.units {
		if u.SerialNumber == "" && u.Status == StatusAvailable {
			out = append(out, u)
		}
	}
	sortUnitsOldestFirst(out)
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *memoryRepo) History(ctx context.Context, unitID string) ([]HistoryEntry, error) {
	out := []HistoryEntry{}
	for _, e := range r.history {
		if e.UnitID == unitID {
			out = append(out, e)
		}
	}
	return out, nil
}

func (r *memoryRepo) GetDelivery(ctx context.Context, id string) (Delivery, error) {
	if d, ok := r.deliveries[id]; ok {
		return d, nil
	}
	return Delivery{}, ErrNotFound
}

func (r *memoryRepo) ListDeliveries(ctx context.Context, limit, offset int) ([]Delivery, error) {
	out := []Delivery{}
	for _, d := range r.deliveries {
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (r *memoryRepo) GetReturn(ctx context.Context, id string) (Return, error) {
	if ret, ok := r.returns[id]; ok {
		return ret, nil
	}
	return Return{}, ErrNotFound
}

func (r *memoryRepo) ListReturns(ctx context.Context, decision ReturnDecision, limit, offset int) ([]Return, error) {
	out := []Return{}
	for _, ret := range r.returns {
		if decision != "" && ret.Decision != decision {
			continue
		}
		out = append(out, ret)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (r *memoryRepo) GetStats(ctx context.Context) (Stats, error) {
	var s Stats
	for _, u := range r.units {
		switch u.Status {
		case StatusAvailable:
			s.UnitsAvailable++
			if u.SerialNumber == "" {
				s.NeedingSerial++
			}
		case StatusReserved:
			s.UnitsReserved++
		case StatusDelivered:
			s.UnitsDelivered++
		case StatusReturned:
			s.UnitsReturned++
		}
	}
	s.Batches = len(r.batches)
	for _, b := range r.batches {
		s.StockValue = s.StockValue.Add(b.UnitValue.Mul(decimal.NewFromInt(int64(b.AvailableQuantity))))
	}
	return s, nil
}

func (r *memoryRepo) LowStock(ctx context.Context, threshold int) ([]Batch, error) {
	out := []Batch{}
	for _, b := range r.batches {
		if b.AvailableQuantity < threshold && b.AvailableQuantity+b.ReservedQuantity > 0 {
			out = append(out, b)
		}
	}
	return out, nil
}

func sortUnitsOldestFirst(units []Unit) {
	sort.Slice(units, func(i, j int) bool {
		if units[i].CreatedAt.Equal(units[j].CreatedAt) {
			return units[i].ID < units[j].ID
		}
		return units[i].CreatedAt.Before(units[j].CreatedAt)
	})
}

func (tx *memoryTx) InsertBatch(ctx context.Context, batch Batch) error {
	tx.repo.batches[batch.ID] = batch
	return nil
}

func (tx *memoryTx) GetBatchForUpdate(ctx context.Context, id string) (Batch, error) {
	return tx.repo.GetBatch(ctx, id)
}

func (tx *memoryTx) UpdateBatchCounters(ctx context.Context, batch Batch) error {
	stored, ok := tx.repo.batches[batch.ID]
	if !ok {
		return ErrNotFound
	}
	stored.AvailableQuantity = batch.AvailableQuantity
	stored.ReservedQuantity = batch.ReservedQuantity
	stored.DeliveredQuantity = batch.DeliveredQuantity
	stored.ReturnedQuantity = batch.ReturnedQuantity
	stored.SerialsAssigned = batch.SerialsAssigned
	stored.SerialsUnassigned = batch.SerialsUnassigned
	tx.repo.batches[batch.ID] = stored
	return nil
}

func (tx *memoryTx) InsertUnit(ctx context.Context, unit Unit) error {
	tx.repo.units[unit.ID] = unit
	return nil
}

func (tx *memoryTx) GetUnitForUpdate(ctx context.Context, id string) (Unit, error) {
	return tx.repo.GetUnit(ctx, id)
}

func (tx *memoryTx) GetUnitBySerialForUpdate(ctx context.Context, serial string) (Unit, error) {
	return tx.repo.GetUnitBySerial(ctx, serial)
}

func (tx *memoryTx) OldestAvailableUnitForUpdate(ctx context.Context, sku string) (Unit, error) {
	candidates := []Unit{}
	for _, u := range tx.repo.units {
		if u.Status != StatusAvailable {
			continue
		}
		batch, ok := tx.repo.batches[u.BatchID]
		if !ok || batch.SKU != sku {
			continue
		}
		candidates = append(candidates, u)
	}
	if len(candidates) == 0 {
		return Unit{}, ErrNotFound
	}
	sortUnitsOldestFirst(candidates)
	return candidates[0], nil
}

func (tx *memoryTx) UnitsInStatusForUpdate(ctx context.Context, batchID string, status Status, limit int) ([]Unit, error) {
	out := []Unit{}
	for _, u := range tx.repo.units {
		if u.BatchID == batchID && u.Status == status {
			out = append(out, u)
		}
	}
	sortUnitsOldestFirst(out)
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (tx *memoryTx) UpdateUnit(ctx context.Context, unit Unit) error {
	if _, ok := tx.repo.units[unit.ID]; !ok {
		return ErrNotFound
	}
	tx.repo.units[unit.ID] = unit
	return nil
}

func (tx *memoryTx) SerialExists(ctx context.Context, serial string) (bool, error) {
	return tx.repo.SerialExists(ctx, serial)
}

func (tx *memoryTx) InsertHistory(ctx context.Context, entry HistoryEntry) error {
	tx.repo.nextHistID++
	entry.ID = tx.repo.nextHistID
	tx.repo.history = append(tx.repo.history, entry)
	return nil
}

func (tx *memoryTx) InsertDelivery(ctx context.Context, d Delivery) error {
	tx.repo.deliveries[d.ID] = d
	return nil
}

func (tx *memoryTx) InsertReturn(ctx context.Context, ret Return) error {
	tx.repo.returns[ret.ID] = ret
	return nil
}

func (tx *memoryTx) GetReturnForUpdate(ctx context.Context, id string) (Return, error) {
	return tx.repo.GetReturn(ctx, id)
}

func (tx *memoryTx) UpdateReturn(ctx context.Context, ret Return) error {
	if _, ok := tx.repo.returns[ret.ID]; !ok {
		return ErrNotFound
	}
	tx.repo.returns[ret.ID] = ret
	return nil
}

// requireConsistent checks that the stored counters of every batch match a
// recount of its units, and that the counter groups sum to the batch total.
func requireConsistent(t *testing.T, repo *memoryRepo) {
	t.Helper()
	for id, b := range repo.batches {
		var available, reserved, delivered, returned, assigned int
		for _, u := range repo.units {
			if u.BatchID != id {
				continue
			}
			switch u.Status {
			case StatusAvailable:
				available++
			case StatusReserved:
				reserved++
			case StatusDelivered:
				delivered++
			case StatusReturned:
				returned++
			}
			if u.SerialNumber != "" {
				assigned++
			}
		}
		require.Equal(t, available, b.AvailableQuantity, "batch %s available", id)
		require.Equal(t, reserved, b.ReservedQuantity, "batch %s reserved", id)
		require.Equal(t, delivered, b.DeliveredQuantity, "batch %s delivered", id)
		require.Equal(t, returned, b.ReturnedQuantity, "batch %s returned", id)
		require.Equal(t, assigned, b.SerialsAssigned, "batch %s serials assigned", id)
		require.Equal(t, b.TotalQuantity, b.AvailableQuantity+b.ReservedQuantity+b.DeliveredQuantity+b.ReturnedQuantity, "batch %s status sum", id)
		require.Equal(t, b.TotalQuantity, b.SerialsAssigned+b.SerialsUnassigned, "batch %s serial sum", id)
	}
}

func newTestService() (*Service, *memoryRepo) {
	repo := newMemoryRepo()
	return NewService(repo, nil), repo
}

func TestReceiveBatchWithSerials(t *testing.T) {
	svc, repo := newTestService()
	ctx := context.Background()

	batch, units, err := svc.ReceiveBatch(ctx, ReceiveBatchInput{
		SKU:         "TV-55",
		ProductName: "55 inch TV",
		Quantity:    5,
		Serials:     []string{"sn-001", "SN-002"},
		UnitValue:   decimal.RequireFromString("399.99"),
		ReceivedBy:  "alex",
	})
	require.NoError(t, err)
	require.Equal(t, 5, batch.TotalQuantity)
	require.Equal(t, 5, batch.AvailableQuantity)
	require.Equal(t, 2, batch.SerialsAssigned)
	require.Equal(t, 3, batch.SerialsUnassigned)
	require.Len(t, units, 5)
	require.Equal(t, "SN-001", units[0].SerialNumber)
	require.Equal(t, "SN-002", units[1].SerialNumber)
	require.Empty(t, units[2].SerialNumber)

	history, err := svc.History(ctx, units[0].ID)
	require.NoError(t, err)
	require.Len(t, history, 1)
	require.Equal(t, ActionAssigned, history[0].Action)

	requireConsistent(t, repo)
}

func TestReceiveBatchRejectsDuplicateSerials(t *testing.T) {
	svc, repo := newTestService()
	ctx := context.Background()

	_, _, err := svc.ReceiveBatch(ctx, ReceiveBatchInput{
		SKU: "X", ProductName: "X", Quantity: 2,
		Serials: []string{"SN-1", "sn-1"}, ReceivedBy: "alex",
	})
	require.ErrorIs(t, err, ErrDuplicateSerial)
	require.Empty(t, repo.batches)
	require.Empty(t, repo.units)
}

func TestReceiveBatchRollsBackOnExistingSerial(t *testing.T) {
	svc, repo := newTestService()
	ctx := context.Background()

	_, _, err := svc.ReceiveBatch(ctx, ReceiveBatchInput{
		SKU: "A", ProductName: "A", Quantity: 1, Serials: []string{"SN-1"}, ReceivedBy: "alex",
	})
	require.NoError(t, err)

	_, _, err = svc.ReceiveBatch(ctx, ReceiveBatchInput{
		SKU: "B", ProductName: "B", Quantity: 3, Serials: []string{"SN-9", "SN-1"}, ReceivedBy: "alex",
	})
	require.ErrorIs(t, err, ErrDuplicateSerial)

	require.Len(t, repo.batches, 1)
	require.Len(t, repo.units, 1)
	exists, err := repo.SerialExists(ctx, "SN-9")
	require.NoError(t, err)
	require.False(t, exists)
	requireConsistent(t, repo)
}

func TestReceiveBatchValidation(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()

	_, _, err := svc.ReceiveBatch(ctx, ReceiveBatchInput{SKU: "X", ProductName: "X", Quantity: 0})
	require.Error(t, err)

	_, _, err = svc.ReceiveBatch(ctx, ReceiveBatchInput{
		SKU: "X", ProductName: "X", Quantity: 1, Serials: []string{"A", "B"},
	})
	require.Error(t, err)
}

func TestAssignSerial(t *testing.T) {
	svc, repo := newTestService()
	ctx := context.Background()

	_, units, err := svc.ReceiveBatch(ctx, ReceiveBatchInput{
		SKU: "TV-55", ProductName: "TV", Quantity: 2, ReceivedBy: "alex",
	})
	require.NoError(t, err)

	unit, err := svc.AssignSerial(ctx, units[0].ID, "  sn-100 ", "alex")
	require.NoError(t, err)
	require.Equal(t, "SN-100", unit.SerialNumber)
	require.NotNil(t, unit.AssignedDate)
	require.Equal(t, "alex", unit.AssignedBy)

	batch, err := svc.GetBatch(ctx, units[0].BatchID)
	require.NoError(t, err)
	require.Equal(t, 1, batch.SerialsAssigned)
	require.Equal(t, 1, batch.SerialsUnassigned)

	_, err = svc.AssignSerial(ctx, units[0].ID, "SN-200", "alex")
	require.ErrorIs(t, err, ErrAlreadyAssigned)

	_, err = svc.AssignSerial(ctx, units[1].ID, "sn-100", "alex")
	require.ErrorIs(t, err, ErrDuplicateSerial)

	requireConsistent(t, repo)
}

func TestAssignSerialUnknownUnit(t *testing.T) {
	svc, _ := newTestService()
	_, err := svc.AssignSerial(context.Background(), "missing", "SN-1", "alex")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestBulkAssignSerialsPartialFailure(t *testing.T) {
	svc, repo := newTestService()
	ctx := context.Background()

	_, units, err := svc.ReceiveBatch(ctx, ReceiveBatchInput{
		SKU: "TV-55", ProductName: "TV", Quantity: 3, ReceivedBy: "alex",
	})
	require.NoError(t, err)

	result := svc.BulkAssignSerials(ctx, []AssignPair{
		{UnitID: units[0].ID, Serial: "SN-1"},
		{UnitID: units[1].ID, Serial: "SN-1"},
		{UnitID: units[2].ID, Serial: "SN-3"},
	}, "alex")

	require.Equal(t, 2, result.Succeeded)
	require.Equal(t, 1, result.Failed)
	require.Len(t, result.Errors, 1)
	require.Equal(t, units[1].ID, result.Errors[0].UnitID)

	batch, err := svc.GetBatch(ctx, units[0].BatchID)
	require.NoError(t, err)
	require.Equal(t, 2, batch.SerialsAssigned)
	requireConsistent(t, repo)
}

func TestReserveAndRelease(t *testing.T) {
	svc, repo := newTestService()
	ctx := context.Background()

	batch, _, err := svc.ReceiveBatch(ctx, ReceiveBatchInput{
		SKU: "TV-55", ProductName: "TV", Quantity: 5, ReceivedBy: "alex",
	})
	require.NoError(t, err)

	updated, err := svc.Reserve(ctx, batch.ID, 3, "alex")
	require.NoError(t, err)
	require.Equal(t, 2, updated.AvailableQuantity)
	require.Equal(t, 3, updated.ReservedQuantity)
	requireConsistent(t, repo)

	_, err = svc.Reserve(ctx, batch.ID, 3, "alex")
	require.ErrorIs(t, err, ErrInsufficientInventory)

	updated, err = svc.Release(ctx, batch.ID, 2, "alex")
	require.NoError(t, err)
	require.Equal(t, 4, updated.AvailableQuantity)
	require.Equal(t, 1, updated.ReservedQuantity)
	requireConsistent(t, repo)

	_, err = svc.Release(ctx, batch.ID, 5, "alex")
	require.ErrorIs(t, err, ErrInsufficientInventory)
}

func TestDeliverSerialledUnit(t *testing.T) {
	svc, repo := newTestService()
	ctx := context.Background()

	batch, units, err := svc.ReceiveBatch(ctx, ReceiveBatchInput{
		SKU: "TV-55", ProductName: "TV", Quantity: 2, Serials: []string{"SN-1"}, ReceivedBy: "alex",
	})
	require.NoError(t, err)

	d, err := svc.Deliver(ctx, DeliverInput{
		UnitID:       units[0].ID,
		Address:      "1 Main St",
		CustomerName: "Dana",
		Actor:        "alex",
	})
	require.NoError(t, err)
	require.Equal(t, "SN-1", d.SerialNumber)
	require.Equal(t, batch.ID, d.BatchID)

	unit, err := svc.GetUnit(ctx, units[0].ID)
	require.NoError(t, err)
	require.Equal(t, StatusDelivered, unit.Status)
	require.Equal(t, d.ID, unit.DeliveryID)

	stored, err := svc.GetBatch(ctx, batch.ID)
	require.NoError(t, err)
	require.Equal(t, 1, stored.AvailableQuantity)
	require.Equal(t, 1, stored.DeliveredQuantity)

	history, err := svc.History(ctx, units[0].ID)
	require.NoError(t, err)
	require.Equal(t, ActionDelivered, history[len(history)-1].Action)
	require.Equal(t, d.ID, history[len(history)-1].ReferenceID)

	// Delivering the same unit again is an illegal transition.
	_, err = svc.Deliver(ctx, DeliverInput{UnitID: units[0].ID, Address: "x", CustomerName: "y", Actor: "alex"})
	require.ErrorIs(t, err, ErrInvalidTransition)

	requireConsistent(t, repo)
}

func TestDeliverAssignsSerialOnTheSpot(t *testing.T) {
	svc, repo := newTestService()
	ctx := context.Background()

	batch, units, err := svc.ReceiveBatch(ctx, ReceiveBatchInput{
		SKU: "TV-55", ProductName: "TV", Quantity: 1, ReceivedBy: "alex",
	})
	require.NoError(t, err)

	// Without a serial the delivery must be refused.
	_, err = svc.Deliver(ctx, DeliverInput{UnitID: units[0].ID, Address: "x", CustomerName: "y", Actor: "alex"})
	require.ErrorIs(t, err, ErrSerialRequired)

	d, err := svc.Deliver(ctx, DeliverInput{
		UnitID: units[0].ID, Serial: "sn-77", Address: "x", CustomerName: "y", Actor: "alex",
	})
	require.NoError(t, err)
	require.Equal(t, "SN-77", d.SerialNumber)

	stored, err := svc.GetBatch(ctx, batch.ID)
	require.NoError(t, err)
	require.Equal(t, 1, stored.SerialsAssigned)
	require.Equal(t, 1, stored.DeliveredQuantity)

	history, err := svc.History(ctx, units[0].ID)
	require.NoError(t, err)
	require.Len(t, history, 2)
	require.Equal(t, ActionAssigned, history[0].Action)
	require.Equal(t, ActionDelivered, history[1].Action)

	requireConsistent(t, repo)
}

func TestDeliverFromBatchPicksOldestAvailable(t *testing.T) {
	svc, repo := newTestService()
	ctx := context.Background()

	older, olderUnits, err := svc.ReceiveBatch(ctx, ReceiveBatchInput{
		SKU: "TV-55", ProductName: "TV", Quantity: 1, Serials: []string{"SN-OLD"}, ReceivedBy: "alex",
	})
	require.NoError(t, err)
	newer, _, err := svc.ReceiveBatch(ctx, ReceiveBatchInput{
		SKU: "TV-55", ProductName: "TV", Quantity: 1, Serials: []string{"SN-NEW"}, ReceivedBy: "alex",
	})
	require.NoError(t, err)

	// Batch-addressed delivery serves the oldest available unit of the SKU,
	// regardless of which batch was named.
	d, err := svc.Deliver(ctx, DeliverInput{
		BatchID: newer.ID, Address: "x", CustomerName: "y", Actor: "alex",
	})
	require.NoError(t, err)
	require.Equal(t, "SN-OLD", d.SerialNumber)
	require.Equal(t, older.ID, d.BatchID)
	require.Equal(t, olderUnits[0].ID, d.UnitID)

	d, err = svc.Deliver(ctx, DeliverInput{
		BatchID: newer.ID, Address: "x", CustomerName: "y", Actor: "alex",
	})
	require.NoError(t, err)
	require.Equal(t, "SN-NEW", d.SerialNumber)

	_, err = svc.Deliver(ctx, DeliverInput{BatchID: newer.ID, Address: "x", CustomerName: "y", Actor: "alex"})
	require.ErrorIs(t, err, ErrInsufficientInventory)

	requireConsistent(t, repo)
}

func TestDeliverReservedUnit(t *testing.T) {
	svc, repo := newTestService()
	ctx := context.Background()

	batch, units, err := svc.ReceiveBatch(ctx, ReceiveBatchInput{
		SKU: "TV-55", ProductName: "TV", Quantity: 1, Serials: []string{"SN-1"}, ReceivedBy: "alex",
	})
	require.NoError(t, err)

	_, err = svc.Reserve(ctx, batch.ID, 1, "alex")
	require.NoError(t, err)

	_, err = svc.Deliver(ctx, DeliverInput{UnitID: units[0].ID, Address: "x", CustomerName: "y", Actor: "alex"})
	require.NoError(t, err)

	stored, err := svc.GetBatch(ctx, batch.ID)
	require.NoError(t, err)
	require.Equal(t, 0, stored.ReservedQuantity)
	require.Equal(t, 1, stored.DeliveredQuantity)
	requireConsistent(t, repo)
}

func TestCreateReturnKnownUnit(t *testing.T) {
	svc, repo := newTestService()
	ctx := context.Background()

	batch, units, err := svc.ReceiveBatch(ctx, ReceiveBatchInput{
		SKU: "TV-55", ProductName: "TV", Quantity: 1, Serials: []string{"SN-1"}, ReceivedBy: "alex",
	})
	require.NoError(t, err)

	// An available unit cannot be returned.
	_, err = svc.CreateReturn(ctx, ReturnInput{Serial: "SN-1", ReceivedBy: "rita"})
	require.ErrorIs(t, err, ErrInvalidTransition)

	d, err := svc.Deliver(ctx, DeliverInput{UnitID: units[0].ID, Address: "x", CustomerName: "y", Actor: "alex"})
	require.NoError(t, err)

	ret, err := svc.CreateReturn(ctx, ReturnInput{
		Serial: " sn-1 ", Condition: "damaged box", ReceivedBy: "rita",
	})
	require.NoError(t, err)
	require.Equal(t, "SN-1", ret.SerialNumber)
	require.Equal(t, d.ID, ret.DeliveryID)
	require.Equal(t, DecisionPending, ret.Decision)
	require.Equal(t, ReturnStatusReceived, ret.Status)

	unit, err := svc.GetUnit(ctx, units[0].ID)
	require.NoError(t, err)
	require.Equal(t, StatusReturned, unit.Status)
	require.Equal(t, ret.ID, unit.ReturnID)

	stored, err := svc.GetBatch(ctx, batch.ID)
	require.NoError(t, err)
	require.Equal(t, 0, stored.DeliveredQuantity)
	require.Equal(t, 1, stored.ReturnedQuantity)

	// Scanning it twice must fail and change nothing.
	_, err = svc.CreateReturn(ctx, ReturnInput{Serial: "SN-1", ReceivedBy: "rita"})
	require.ErrorIs(t, err, ErrInvalidTransition)
	require.Len(t, repo.returns, 1)

	requireConsistent(t, repo)
}

func TestCreateReturnNewProduct(t *testing.T) {
	svc, repo := newTestService()
	ctx := context.Background()

	// Product name is mandatory for a serial the warehouse has never seen.
	_, err := svc.CreateReturn(ctx, ReturnInput{Serial: "SN-X", ReceivedBy: "rita"})
	require.Error(t, err)

	ret, err := svc.CreateReturn(ctx, ReturnInput{
		Serial:      "SN-X",
		ProductName: "Mystery Gadget",
		Quantity:    3,
		ReceivedBy:  "rita",
	})
	require.NoError(t, err)
	require.Equal(t, 3, ret.Quantity)

	batch, err := svc.GetBatch(ctx, ret.BatchID)
	require.NoError(t, err)
	require.Equal(t, SourceFromReturn, batch.Source)
	require.Equal(t, "RET-SN-X", batch.SKU)
	require.Equal(t, 3, batch.TotalQuantity)
	require.Equal(t, 0, batch.AvailableQuantity)
	require.Equal(t, 3, batch.ReturnedQuantity)
	require.Equal(t, 1, batch.SerialsAssigned)
	require.Equal(t, 2, batch.SerialsUnassigned)
	require.Equal(t, ret.ID, batch.SourceReference)

	units, err := svc.ListUnitsByBatch(ctx, batch.ID)
	require.NoError(t, err)
	require.Len(t, units, 3)
	require.Equal(t, "SN-X", units[0].SerialNumber)
	for _, u := range units {
		require.Equal(t, StatusReturned, u.Status)
		require.Equal(t, ret.ID, u.ReturnID)
	}

	history, err := svc.History(ctx, ret.UnitID)
	require.NoError(t, err)
	require.Len(t, history, 2)
	require.Equal(t, ActionAssigned, history[0].Action)
	require.Equal(t, ActionReturned, history[1].Action)

	requireConsistent(t, repo)
}

func TestMakeReturnDecisionMoveToStock(t *testing.T) {
	svc, repo := newTestService()
	ctx := context.Background()

	batch, units, err := svc.ReceiveBatch(ctx, ReceiveBatchInput{
		SKU: "TV-55", ProductName: "TV", Quantity: 1, Serials: []string{"SN-1"}, ReceivedBy: "alex",
	})
	require.NoError(t, err)
	_, err = svc.Deliver(ctx, DeliverInput{UnitID: units[0].ID, Address: "x", CustomerName: "y", Actor: "alex"})
	require.NoError(t, err)
	ret, err := svc.CreateReturn(ctx, ReturnInput{Serial: "SN-1", ReceivedBy: "rita"})
	require.NoError(t, err)

	decided, err := svc.MakeReturnDecision(ctx, ret.ID, DecisionMoveToStock, "mike", "looks fine")
	require.NoError(t, err)
	require.Equal(t, DecisionMoveToStock, decided.Decision)
	require.Equal(t, ReturnStatusMovedToStock, decided.Status)
	require.Equal(t, "mike", decided.DecisionBy)
	require.NotNil(t, decided.DecisionAt)

	unit, err := svc.GetUnit(ctx, units[0].ID)
	require.NoError(t, err)
	require.Equal(t, StatusAvailable, unit.Status)
	require.Empty(t, unit.ReturnID)
	// Serial number survives the round trip.
	require.Equal(t, "SN-1", unit.SerialNumber)

	stored, err := svc.GetBatch(ctx, batch.ID)
	require.NoError(t, err)
	require.Equal(t, 1, stored.AvailableQuantity)
	require.Equal(t, 0, stored.ReturnedQuantity)

	// Second decision is refused.
	_, err = svc.MakeReturnDecision(ctx, ret.ID, DecisionKeepInReturns, "mike", "")
	require.ErrorIs(t, err, ErrDecisionMade)

	requireConsistent(t, repo)
}

func TestMakeReturnDecisionKeepInReturns(t *testing.T) {
	svc, repo := newTestService()
	ctx := context.Background()

	_, units, err := svc.ReceiveBatch(ctx, ReceiveBatchInput{
		SKU: "TV-55", ProductName: "TV", Quantity: 1, Serials: []string{"SN-1"}, ReceivedBy: "alex",
	})
	require.NoError(t, err)
	_, err = svc.Deliver(ctx, DeliverInput{UnitID: units[0].ID, Address: "x", CustomerName: "y", Actor: "alex"})
	require.NoError(t, err)
	ret, err := svc.CreateReturn(ctx, ReturnInput{Serial: "SN-1", ReceivedBy: "rita"})
	require.NoError(t, err)

	decided, err := svc.MakeReturnDecision(ctx, ret.ID, DecisionKeepInReturns, "mike", "scratched")
	require.NoError(t, err)
	require.Equal(t, ReturnStatusKeptInReturns, decided.Status)

	unit, err := svc.GetUnit(ctx, units[0].ID)
	require.NoError(t, err)
	require.Equal(t, StatusReturned, unit.Status)
	require.Equal(t, ret.ID, unit.ReturnID)

	history, err := svc.History(ctx, units[0].ID)
	require.NoError(t, err)
	require.Equal(t, ActionKeptInReturns, history[len(history)-1].Action)

	requireConsistent(t, repo)
}

func TestMakeReturnDecisionValidation(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()

	_, err := svc.MakeReturnDecision(ctx, "missing", ReturnDecision("shred"), "mike", "")
	require.Error(t, err)

	_, err = svc.MakeReturnDecision(ctx, "missing", DecisionMoveToStock, "mike", "")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestFullLifecycleRoundTrip(t *testing.T) {
	svc, repo := newTestService()
	ctx := context.Background()

	_, units, err := svc.ReceiveBatch(ctx, ReceiveBatchInput{
		SKU: "TV-55", ProductName: "TV", Quantity: 1, ReceivedBy: "alex",
	})
	require.NoError(t, err)
	unitID := units[0].ID

	_, err = svc.AssignSerial(ctx, unitID, "SN-1", "alex")
	require.NoError(t, err)
	_, err = svc.Deliver(ctx, DeliverInput{UnitID: unitID, Address: "x", CustomerName: "y", Actor: "alex"})
	require.NoError(t, err)
	ret, err := svc.CreateReturn(ctx, ReturnInput{Serial: "SN-1", ReceivedBy: "rita"})
	require.NoError(t, err)
	_, err = svc.MakeReturnDecision(ctx, ret.ID, DecisionMoveToStock, "mike", "")
	require.NoError(t, err)

	// Back in stock, it can ship again under the same serial.
	d, err := svc.Deliver(ctx, DeliverInput{UnitID: unitID, Address: "z", CustomerName: "w", Actor: "alex"})
	require.NoError(t, err)
	require.Equal(t, "SN-1", d.SerialNumber)

	history, err := svc.History(ctx, unitID)
	require.NoError(t, err)
	actions := make([]HistoryAction, 0, len(history))
	for _, e := range history {
		actions = append(actions, e.Action)
	}
	require.Equal(t, []HistoryAction{
		ActionAssigned, ActionDelivered, ActionReturned, ActionMovedToStock, ActionDelivered,
	}, actions)

	requireConsistent(t, repo)
}
