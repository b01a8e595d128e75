package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	"github.com/stockline-wms/stockline/internal/inventory"
)

// LowStockSource reads the batches under the availability threshold.
type LowStockSource interface {
	LowStock(ctx context.Context, threshold int) ([]inventory.Batch, error)
}

// LowStockScanJob reports batches whose available quantity fell under the
// threshold so purchasing can restock before the SKU runs dry.
type LowStockScanJob struct {
	Source LowStockSource
	Logger *slog.Logger
	clock  func() time.Time
}

// NewLowStockScanJob initialises the low stock report handler.
func NewLowStockScanJob(source LowStockSource, logger *slog.Logger) *LowStockScanJob {
	return &LowStockScanJob{
		Source: source,
		Logger: logger,
		clock: func() time.Time {
			return time.Now().UTC()
		},
	}
}

// Handle executes the low stock report.
func (j *LowStockScanJob) Handle(ctx context.Context, t *asynq.Task) error {
	if j == nil || j.Source == nil {
		return errors.New("low stock scan: handler not configured")
	}
	var payload LowStockScanPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}
	if payload.Threshold <= 0 {
		payload.Threshold = 5
	}

	start := j.now()
	logger := j.logger().With(slog.Int("threshold", payload.Threshold))
	logger.Info("starting low stock scan")

	batches, err := j.Source.LowStock(ctx, payload.Threshold)
	if err != nil {
		logger.Error("scan failed", slog.Any("error", err))
		return err
	}

	for _, b := range batches {
		logger.Warn("batch below stock threshold",
			slog.String("batch_id", b.ID),
			slog.String("sku", b.SKU),
			slog.String("product", b.ProductName),
			slog.Int("available", b.AvailableQuantity),
			slog.Int("reserved", b.ReservedQuantity),
		)
	}

	logger.Info("completed low stock scan",
		slog.Int("batches", len(batches)),
		slog.Duration("duration", time.Since(start)),
	)
	return nil
}

func (j *LowStockScanJob) logger() *slog.Logger {
	if j.Logger != nil {
		return j.Logger.With(slog.String("job", TaskInventoryLowStockScan))
	}
	return slog.Default().With(slog.String("job", TaskInventoryLowStockScan))
}

func (j *LowStockScanJob) now() time.Time {
	if j.clock != nil {
		return j.clock()
	}
	return time.Now().UTC()
}
