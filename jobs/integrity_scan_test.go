package jobs

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/stockline-wms/stockline/internal/inventory"
)

type fakeStore struct {
	counts  []inventory.StatusCounts
	batches map[string]inventory.Batch
}

func (f *fakeStore) RecountUnits(ctx context.Context) ([]inventory.StatusCounts, error) {
	return f.counts, nil
}

func (f *fakeStore) ListBatches(ctx context.Context, filter inventory.BatchFilter) ([]inventory.Batch, error) {
	out := make([]inventory.Batch, 0, len(f.batches))
	for _, b := range f.batches {
		out = append(out, b)
	}
	return out, nil
}

func (f *fakeStore) WithTx(ctx context.Context, fn func(context.Context, inventory.TxRepository) error) error {
	return fn(ctx, &fakeTx{store: f})
}

// fakeTx implements only the statements the repair path uses.
type fakeTx struct {
	inventory.TxRepository
	store *fakeStore
}

func (tx *fakeTx) GetBatchForUpdate(ctx context.Context, id string) (inventory.Batch, error) {
	if b, ok := tx.store.batches[id]; ok {
		return b, nil
	}
	return inventory.Batch{}, inventory.ErrNotFound
}

func (tx *fakeTx) UpdateBatchCounters(ctx context.Context, batch inventory.Batch) error {
	tx.store.batches[batch.ID] = batch
	return nil
}

func TestIntegrityScanDetectsDrift(t *testing.T) {
	store := &fakeStore{
		counts: []inventory.StatusCounts{
			{BatchID: "b1", Available: 3, Delivered: 2, Assigned: 5},
		},
		batches: map[string]inventory.Batch{
			"b1": {ID: "b1", TotalQuantity: 5, AvailableQuantity: 4, DeliveredQuantity: 1, SerialsAssigned: 5},
		},
	}
	job := NewIntegrityScanJob(store, nil)

	drifts, _, err := job.scan(context.Background())
	require.NoError(t, err)
	require.Len(t, drifts, 2)
	fields := []string{drifts[0].Field, drifts[1].Field}
	require.Contains(t, fields, "available_qty")
	require.Contains(t, fields, "delivered_qty")
}

func TestIntegrityScanCleanBatch(t *testing.T) {
	store := &fakeStore{
		counts: []inventory.StatusCounts{
			{BatchID: "b1", Available: 2, Reserved: 1, Assigned: 3},
		},
		batches: map[string]inventory.Batch{
			"b1": {ID: "b1", TotalQuantity: 3, AvailableQuantity: 2, ReservedQuantity: 1, SerialsAssigned: 3},
		},
	}
	job := NewIntegrityScanJob(store, nil)

	drifts, _, err := job.scan(context.Background())
	require.NoError(t, err)
	require.Empty(t, drifts)
}

func TestIntegrityScanRepairs(t *testing.T) {
	store := &fakeStore{
		counts: []inventory.StatusCounts{
			{BatchID: "b1", Available: 3, Delivered: 2, Assigned: 4},
		},
		batches: map[string]inventory.Batch{
			"b1": {ID: "b1", TotalQuantity: 5, AvailableQuantity: 5, SerialsAssigned: 4, SerialsUnassigned: 1},
		},
	}
	job := NewIntegrityScanJob(store, nil)

	task, err := NewIntegrityScanTask(true)
	require.NoError(t, err)
	require.NoError(t, job.Handle(context.Background(), task))

	repaired := store.batches["b1"]
	require.Equal(t, 3, repaired.AvailableQuantity)
	require.Equal(t, 2, repaired.DeliveredQuantity)
	require.Equal(t, 4, repaired.SerialsAssigned)
	require.Equal(t, 1, repaired.SerialsUnassigned)
}

func TestLowStockScanReports(t *testing.T) {
	store := &fakeStore{
		batches: map[string]inventory.Batch{
			"b1": {ID: "b1", SKU: "TV-55", AvailableQuantity: 1, ReservedQuantity: 1},
		},
	}
	job := NewLowStockScanJob(lowStockFunc(func(ctx context.Context, threshold int) ([]inventory.Batch, error) {
		require.Equal(t, 3, threshold)
		return []inventory.Batch{store.batches["b1"]}, nil
	}), nil)

	task, err := NewLowStockScanTask(3)
	require.NoError(t, err)
	require.NoError(t, job.Handle(context.Background(), task))
}

type lowStockFunc func(ctx context.Context, threshold int) ([]inventory.Batch, error)

func (f lowStockFunc) LowStock(ctx context.Context, threshold int) ([]inventory.Batch, error) {
	return f(ctx, threshold)
}
