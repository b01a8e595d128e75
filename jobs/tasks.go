package jobs

import (
	"encoding/json"
	"time"

	"github.com/hibiken/asynq"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskInventoryIntegrityScan recounts units per batch and reports counter drift.
	TaskInventoryIntegrityScan = "inventory:integrity_scan"
	// TaskInventoryLowStockScan reports batches below the stock threshold.
	TaskInventoryLowStockScan = "inventory:low_stock_scan"
)

// IntegrityScanPayload carries scheduling metadata and the repair switch.
type IntegrityScanPayload struct {
	ScheduledFor time.Time `json:"scheduled_for"`
	Repair       bool      `json:"repair"`
}

// NewIntegrityScanTask constructs an Asynq task for the batch counter audit.
func NewIntegrityScanTask(repair bool) (*asynq.Task, error) {
	payload := IntegrityScanPayload{ScheduledFor: time.Now().UTC(), Repair: repair}
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskInventoryIntegrityScan, body, asynq.Queue(QueueDefault)), nil
}

// LowStockScanPayload carries the availability threshold.
type LowStockScanPayload struct {
	Threshold int `json:"threshold"`
}

// NewLowStockScanTask constructs an Asynq task for the low stock report.
func NewLowStockScanTask(threshold int) (*asynq.Task, error) {
	payload := LowStockScanPayload{Threshold: threshold}
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskInventoryLowStockScan, body, asynq.Queue(QueueDefault)), nil
}
