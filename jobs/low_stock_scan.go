package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"

	"github.com/hibiken/asynq"

	"github.com/counterpos/counterpos/internal/inventory"
	jobmetrics "github.com/counterpos/counterpos/internal/jobs"
)

// LowStockSource lists items at or below their reorder level.
type LowStockSource interface {
	LowStock(ctx context.Context) ([]inventory.Item, error)
}

// LowStockScanJob logs items that need reordering and publishes their count.
type LowStockScanJob struct {
	Source  LowStockSource
	Logger  *slog.Logger
	Metrics *jobmetrics.Metrics
}

// Handle processes TaskLowStockScan tasks.
func (j *LowStockScanJob) Handle(ctx context.Context, t *asynq.Task) (err error) {
	if j == nil || j.Source == nil {
		return errors.New("low stock scan: handler not configured")
	}
	var payload ScanPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}
	tracker := j.Metrics.Track(TaskLowStockScan)
	defer func() { err = tracker.End(err) }()

	items, err := j.Source.LowStock(ctx)
	if err != nil {
		return err
	}
	j.Metrics.SetLowStockItems(len(items))
	for _, item := range items {
		j.logger().Warn("item below reorder level",
			slog.Int64("item_id", item.ID),
			slog.String("name", item.Name),
			slog.Float64("quantity", item.DisplayQuantity()),
			slog.String("unit", item.Unit.DisplayLabel()),
			slog.Float64("reorder_level", item.ReorderLevel))
	}
	j.logger().Info("low stock scan finished", slog.Int("items", len(items)), slog.Time("scheduled_for", payload.ScheduledFor))
	return nil
}

func (j *LowStockScanJob) logger() *slog.Logger {
	if j.Logger == nil {
		return slog.Default()
	}
	return j.Logger
}
