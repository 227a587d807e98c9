package jobs

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/hibiken/asynq"
	"github.com/shopspring/decimal"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"

	// TaskSaleCreated announces a committed checkout.
	TaskSaleCreated = "sale:created"
	// TaskLowStockScan lists items at or below their reorder level.
	TaskLowStockScan = "inventory:low-stock-scan"
	// TaskIdempotencyCleanup prunes old checkout idempotency keys.
	TaskIdempotencyCleanup = "maintenance:idempotency-cleanup"
)

// SaleCreatedPayload describes a committed checkout.
type SaleCreatedPayload struct {
	TransactionID string          `json:"transaction_id"`
	Kind          string          `json:"kind"`
	Lines         int             `json:"lines"`
	Total         decimal.Decimal `json:"total"`
	PaymentMethod string          `json:"payment_method"`
	CreatedAt     time.Time       `json:"created_at"`
}

// NewSaleCreatedTask constructs the notification task. The transaction id is
// used as task id so a retried enqueue never duplicates it.
func NewSaleCreatedTask(payload SaleCreatedPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskSaleCreated, data,
		asynq.Queue(QueueDefault), asynq.TaskID("sale:"+payload.TransactionID), asynq.MaxRetry(5)), nil
}

// ScanPayload carries scheduling metadata for periodic tasks.
type ScanPayload struct {
	ScheduledFor time.Time `json:"scheduled_for"`
}

// NewLowStockScanTask constructs the low-stock scan task.
func NewLowStockScanTask(at time.Time) (*asynq.Task, error) {
	return newScanTask(TaskLowStockScan, at)
}

// NewIdempotencyCleanupTask constructs the idempotency cleanup task.
func NewIdempotencyCleanupTask(at time.Time) (*asynq.Task, error) {
	return newScanTask(TaskIdempotencyCleanup, at)
}

func newScanTask(taskType string, at time.Time) (*asynq.Task, error) {
	body, err := json.Marshal(ScanPayload{ScheduledFor: at})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(taskType, body, asynq.Queue(QueueDefault)), nil
}

// Triggerable lists the tasks an operator may enqueue by hand.
var Triggerable = []string{TaskLowStockScan, TaskIdempotencyCleanup}

// NewTaskByName builds a manually triggered periodic task.
func NewTaskByName(name string, at time.Time) (*asynq.Task, error) {
	switch name {
	case TaskLowStockScan:
		return NewLowStockScanTask(at)
	case TaskIdempotencyCleanup:
		return NewIdempotencyCleanupTask(at)
	default:
		return nil, fmt.Errorf("jobs: unknown task %q", name)
	}
}
