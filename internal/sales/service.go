package sales

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"

	"github.com/counterpos/counterpos/internal/shared"
	"github.com/counterpos/counterpos/report"
)

// RepositoryPort describes the reads and the cancellation write the service needs.
type RepositoryPort interface {
	ListTransactions(ctx context.Context, filter ListFilter, limit, offset int) ([]Record, int, error)
	GetTransaction(ctx context.Context, id uuid.UUID) ([]Record, error)
	CancelTransaction(ctx context.Context, id uuid.UUID, reason string, at time.Time) (int64, error)
	ListRange(ctx context.Context, from, to time.Time) ([]Record, error)
}

// SummaryCache stores computed reports under versioned keys.
type SummaryCache interface {
	BuildKey(ctx context.Context, parts ...string) (string, error)
	FetchJSON(ctx context.Context, key string, dest any, loader func(context.Context) (any, error)) error
	Bump(ctx context.Context) error
}

// ReceiptRenderer turns a receipt into a PDF document.
type ReceiptRenderer interface {
	RenderReceipt(ctx context.Context, receipt report.Receipt) ([]byte, error)
}

// Options configures Service.
type Options struct {
	StoreName string
	Location  *time.Location
	MaxRange  time.Duration
}

// Service exposes sale history, cancellation and reporting.
type Service struct {
	repo     RepositoryPort
	cache    SummaryCache
	receipts ReceiptRenderer
	logger   *slog.Logger
	opts     Options
	group    singleflight.Group
	clock    func() time.Time
}

// NewService constructs the sales service. cache and receipts may be nil.
func NewService(repo RepositoryPort, cache SummaryCache, receipts ReceiptRenderer, logger *slog.Logger, opts Options) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	if opts.Location == nil {
		opts.Location = time.UTC
	}
	if opts.MaxRange <= 0 {
		opts.MaxRange = 366 * 24 * time.Hour
	}
	return &Service{repo: repo, cache: cache, receipts: receipts, logger: logger, opts: opts, clock: time.Now}
}

// ListTransactions returns one page of transactions, newest first.
func (s *Service) ListTransactions(ctx context.Context, filter ListFilter) ([]Transaction, shared.Pagination, error) {
	if filter.To.IsZero() {
		filter.To = s.clock().Add(time.Second)
	}
	if !filter.From.Before(filter.To) {
		return nil, shared.Pagination{}, ErrInvalidRange
	}
	page := shared.NewPagination(filter.Page, filter.PerPage, 0)
	records, total, err := s.repo.ListTransactions(ctx, filter, page.PerPage, page.Offset())
	if err != nil {
		return nil, shared.Pagination{}, fmt.Errorf("list transactions: %w", err)
	}
	return GroupTransactions(records), shared.NewPagination(page.Page, page.PerPage, total), nil
}

// GetTransaction loads one transaction with all its lines.
func (s *Service) GetTransaction(ctx context.Context, id uuid.UUID) (Transaction, error) {
	records, err := s.repo.GetTransaction(ctx, id)
	if err != nil {
		return Transaction{}, err
	}
	txs := GroupTransactions(records)
	if len(txs) == 0 {
		return Transaction{}, ErrTransactionNotFound
	}
	return txs[0], nil
}

// Cancel marks every line of the transaction as cancelled. Stock is not
// restored.
func (s *Service) Cancel(ctx context.Context, id uuid.UUID, reason string) (Transaction, error) {
	tx, err := s.GetTransaction(ctx, id)
	if err != nil {
		return Transaction{}, err
	}
	if tx.Cancelled {
		return Transaction{}, ErrAlreadyCancelled
	}
	changed, err := s.repo.CancelTransaction(ctx, id, strings.TrimSpace(reason), s.clock().UTC())
	if err != nil {
		return Transaction{}, fmt.Errorf("cancel transaction: %w", err)
	}
	if changed == 0 {
		return Transaction{}, ErrAlreadyCancelled
	}
	s.InvalidateReports(ctx)
	s.logger.Info("sale transaction cancelled", slog.String("transaction_id", id.String()), slog.Int64("lines", changed))
	return s.GetTransaction(ctx, id)
}

// Summary reports revenue, cost and profit per day in [from, to], both
// dates inclusive.
func (s *Service) Summary(ctx context.Context, from, to time.Time) (Summary, error) {
	start := startOfDay(from, s.opts.Location)
	end := startOfDay(to, s.opts.Location).AddDate(0, 0, 1)
	if !start.Before(end) || end.Sub(start) > s.opts.MaxRange {
		return Summary{}, ErrInvalidRange
	}
	fromKey, toKey := start.Format(dateLayout), end.AddDate(0, 0, -1).Format(dateLayout)

	load := func(ctx context.Context) (any, error) {
		records, err := s.repo.ListRange(ctx, start, end)
		if err != nil {
			return nil, err
		}
		sum := Summarize(records, start, end.AddDate(0, 0, -1), s.opts.Location)
		return sum, nil
	}

	res, err, _ := s.group.Do(fromKey+"|"+toKey, func() (any, error) {
		if s.cache == nil {
			return load(ctx)
		}
		key, err := s.cache.BuildKey(ctx, "counterpos", "sales", "summary", fromKey, toKey)
		if err != nil {
			s.logger.Warn("summary cache key", slog.Any("error", err))
			return load(ctx)
		}
		var sum Summary
		if err := s.cache.FetchJSON(ctx, key, &sum, load); err != nil {
			return nil, err
		}
		return sum, nil
	})
	if err != nil {
		return Summary{}, fmt.Errorf("sales summary: %w", err)
	}
	return res.(Summary), nil
}

// InvalidateReports drops cached summaries. Failures are logged only.
func (s *Service) InvalidateReports(ctx context.Context) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Bump(ctx); err != nil {
		s.logger.Warn("bump summary cache", slog.Any("error", err))
	}
}

// Receipt renders the transaction as a PDF.
func (s *Service) Receipt(ctx context.Context, id uuid.UUID) ([]byte, error) {
	if s.receipts == nil {
		return nil, ErrReceiptsDisabled
	}
	tx, err := s.GetTransaction(ctx, id)
	if err != nil {
		return nil, err
	}
	return s.receipts.RenderReceipt(ctx, BuildReceipt(s.opts.StoreName, tx))
}

// BuildReceipt maps a transaction onto the printable receipt.
func BuildReceipt(storeName string, tx Transaction) report.Receipt {
	r := report.Receipt{
		StoreName:     storeName,
		TransactionID: tx.ID.String(),
		IssuedAt:      tx.CreatedAt,
		PaymentMethod: tx.PaymentMethod,
		CustomerType:  tx.CustomerType,
		DineOption:    tx.DineOption,
		Total:         tx.Total,
		Cancelled:     tx.Cancelled,
	}
	for _, line := range tx.Lines {
		r.Lines = append(r.Lines, report.ReceiptLine{
			Name:      line.ProductName,
			Quantity:  line.Quantity,
			Unit:      receiptUnit(line),
			UnitPrice: line.SellingPrice,
			Total:     line.Total,
		})
	}
	return r
}

func receiptUnit(rec Record) string {
	if rec.Kind == "simple" {
		return rec.UnitType.StorageLabel()
	}
	return "pcs"
}

func startOfDay(t time.Time, loc *time.Location) time.Time {
	t = t.In(loc)
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, loc)
}
