package jobs

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/hibiken/asynq"

	jobmetrics "github.com/counterpos/counterpos/internal/jobs"
)

// ReportInvalidator drops cached sales reports.
type ReportInvalidator interface {
	InvalidateReports(ctx context.Context)
}

// SaleCreatedJob reacts to committed checkouts.
type SaleCreatedJob struct {
	Reports ReportInvalidator
	Logger  *slog.Logger
	Metrics *jobmetrics.Metrics
}

// Handle processes TaskSaleCreated tasks.
func (j *SaleCreatedJob) Handle(ctx context.Context, t *asynq.Task) (err error) {
	var payload SaleCreatedPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil || payload.TransactionID == "" {
		return asynq.SkipRetry
	}
	tracker := j.Metrics.Track(TaskSaleCreated)
	defer func() { err = tracker.End(err) }()

	if j.Reports != nil {
		j.Reports.InvalidateReports(ctx)
	}
	j.Metrics.AddSaleNotified(payload.Kind)
	logger := j.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger.Info("sale created",
		slog.String("transaction_id", payload.TransactionID),
		slog.String("kind", payload.Kind),
		slog.Int("lines", payload.Lines),
		slog.String("total", payload.Total.String()),
		slog.String("payment_method", payload.PaymentMethod))
	return nil
}
