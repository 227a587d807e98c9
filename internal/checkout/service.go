// Package checkout turns a cart into persisted sale lines and stock
// decrements in a single commit.
package checkout

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/counterpos/counterpos/internal/availability"
	"github.com/counterpos/counterpos/internal/cart"
	"github.com/counterpos/counterpos/internal/catalog"
	"github.com/counterpos/counterpos/internal/inventory"
	"github.com/counterpos/counterpos/internal/masterdata"
	"github.com/counterpos/counterpos/internal/observability"
	"github.com/counterpos/counterpos/internal/platform/httpx"
	"github.com/counterpos/counterpos/internal/sales"
	"github.com/counterpos/counterpos/internal/shared"
	"github.com/counterpos/counterpos/internal/units"
	"github.com/counterpos/counterpos/jobs"
)

// IdempotencyModule namespaces checkout keys in the idempotency store.
const IdempotencyModule = "checkout"

var (
	ErrEmptyCart        = fmt.Errorf("cart is empty: %w", httpx.ErrValidation)
	ErrProductGone      = fmt.Errorf("product is no longer on sale: %w", httpx.ErrConflict)
	ErrStockChanged     = fmt.Errorf("stock changed while checking out: %w", httpx.ErrConflict)
	ErrDuplicateRequest = fmt.Errorf("checkout already submitted: %w", shared.ErrIdempotencyConflict)
)

// SnapshotSource loads inventory and recipes at one moment.
type SnapshotSource interface {
	Snapshot(ctx context.Context, kind catalog.Kind) (*catalog.Snapshot, error)
}

// SelectionResolver validates that every required checkout choice is made.
type SelectionResolver interface {
	RequireSelection(ctx context.Context, paymentMethodID, customerTypeID *int64, dineOption string) (masterdata.Resolved, error)
}

// Committer persists sale lines and applies stock decrements atomically.
type Committer interface {
	Commit(ctx context.Context, records []sales.Record, decrements []inventory.Decrement) ([]sales.Record, map[int64]float64, error)
}

// Locker serialises work on one cart.
type Locker interface {
	Acquire(ctx context.Context, key string) (func(), error)
}

// IdempotencyStore claims checkout keys.
type IdempotencyStore interface {
	CheckAndInsert(ctx context.Context, key, module string) error
	Complete(ctx context.Context, key, ref string) error
	Lookup(ctx context.Context, key string) (string, error)
	Delete(ctx context.Context, key string) error
}

// Notifier hands committed sales to background processing.
type Notifier interface {
	EnqueueSaleCreated(ctx context.Context, payload jobs.SaleCreatedPayload) error
}

// ReportInvalidator drops cached sales reports.
type ReportInvalidator interface {
	InvalidateReports(ctx context.Context)
}

// Recorder counts checkout outcomes.
type Recorder interface {
	ObserveCheckout(kind, result string, lines int)
	AddShortage(stage string)
}

// Deps collects Service collaborators. Locker, Idempotency, Notifier,
// Reports and Metrics are optional.
type Deps struct {
	Carts       cart.Store
	Catalog     SnapshotSource
	Selections  SelectionResolver
	Committer   Committer
	Locker      Locker
	Idempotency IdempotencyStore
	Notifier    Notifier
	Reports     ReportInvalidator
	Metrics     Recorder
	Logger      *slog.Logger
}

// Service runs the checkout protocol.
type Service struct {
	deps  Deps
	clock func() time.Time
}

// NewService constructs Service.
func NewService(deps Deps) *Service {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	return &Service{deps: deps, clock: time.Now}
}

// StockLevel is the stock left for an item touched by the checkout.
type StockLevel struct {
	ItemID    int64   `json:"item_id"`
	Name      string  `json:"name"`
	Remaining float64 `json:"remaining"`
	Unit      string  `json:"unit"`
}

// Result describes a committed checkout.
type Result struct {
	TransactionID uuid.UUID       `json:"transaction_id"`
	Kind          catalog.Kind    `json:"kind"`
	Lines         []sales.Record  `json:"lines"`
	Total         decimal.Decimal `json:"total"`
	PaymentMethod string          `json:"payment_method"`
	CustomerType  string          `json:"customer_type"`
	DineOption    string          `json:"dine_option,omitempty"`
	Stock         []StockLevel    `json:"stock"`
}

// Checkout commits cartID. A non-empty idempotencyKey makes repeated
// submissions fail with ErrDuplicateRequest instead of selling twice.
func (s *Service) Checkout(ctx context.Context, cartID, idempotencyKey string) (res Result, err error) {
	kind := "unknown"
	defer func() { s.observe(kind, len(res.Lines), err) }()

	if idempotencyKey != "" && s.deps.Idempotency != nil {
		if err := s.claim(ctx, idempotencyKey); err != nil {
			return Result{}, err
		}
		defer func() {
			if err != nil {
				if delErr := s.deps.Idempotency.Delete(context.WithoutCancel(ctx), idempotencyKey); delErr != nil {
					s.deps.Logger.Warn("release idempotency key", slog.Any("error", delErr))
				}
				return
			}
			if err := s.deps.Idempotency.Complete(context.WithoutCancel(ctx), idempotencyKey, res.TransactionID.String()); err != nil {
				s.deps.Logger.Warn("complete idempotency key", slog.Any("error", err))
			}
		}()
	}

	if s.deps.Locker != nil {
		release, err := s.deps.Locker.Acquire(ctx, shared.CartLockKey(cartID))
		if err != nil {
			return Result{}, err
		}
		defer release()
	}

	c, err := s.deps.Carts.Get(ctx, cartID)
	if err != nil {
		return Result{}, err
	}
	kind = string(c.Kind)

	plan, err := s.prepare(ctx, c)
	if err != nil {
		return Result{}, err
	}

	inserted, remaining, err := s.deps.Committer.Commit(ctx, plan.records, plan.decrements)
	if err != nil {
		if errors.Is(err, inventory.ErrNegativeStock) || errors.Is(err, inventory.ErrItemNotFound) {
			return Result{}, fmt.Errorf("%w: %w", ErrStockChanged, err)
		}
		return Result{}, fmt.Errorf("commit checkout: %w", err)
	}

	res = plan.result(inserted, remaining)
	s.afterCommit(ctx, c, res)
	return res, nil
}

func (s *Service) claim(ctx context.Context, key string) error {
	err := s.deps.Idempotency.CheckAndInsert(ctx, key, IdempotencyModule)
	if !errors.Is(err, shared.ErrIdempotencyConflict) {
		return err
	}
	ref, lookupErr := s.deps.Idempotency.Lookup(ctx, key)
	if lookupErr != nil || ref == "" {
		return ErrDuplicateRequest
	}
	return fmt.Errorf("%w as transaction %s", ErrDuplicateRequest, ref)
}

type plan struct {
	txID       uuid.UUID
	kind       catalog.Kind
	resolved   masterdata.Resolved
	snapshot   *catalog.Snapshot
	records    []sales.Record
	decrements []inventory.Decrement
}

// prepare checks the preconditions and builds the writes without touching
// storage.
func (s *Service) prepare(ctx context.Context, c cart.Cart) (plan, error) {
	if c.Empty() {
		return plan{}, ErrEmptyCart
	}
	sel := c.Selection
	resolved, err := s.deps.Selections.RequireSelection(ctx, sel.PaymentMethodID, sel.CustomerTypeID, string(sel.DineOption))
	if err != nil {
		return plan{}, err
	}
	snap, err := s.deps.Catalog.Snapshot(ctx, c.Kind)
	if err != nil {
		return plan{}, err
	}

	calc := snap.Calculator()
	reservations := c.Reservations()
	p := plan{txID: uuid.New(), kind: c.Kind, resolved: resolved, snapshot: snap}
	for _, line := range c.Lines {
		product, err := snap.Lookup(line.ProductID)
		if err != nil {
			return plan{}, fmt.Errorf("%w: %s", ErrProductGone, line.Name)
		}
		if err := calc.CanSell(line.ProductID, line.Quantity, reservations); err != nil {
			return plan{}, err
		}
		cost, err := snap.UnitCost(line.ProductID)
		if err != nil {
			return plan{}, httpx.Wrap(httpx.ErrConflict, err)
		}
		p.records = append(p.records, sales.Record{
			TransactionID:   p.txID,
			Kind:            string(c.Kind),
			ProductID:       product.ID,
			ProductName:     product.Name,
			Quantity:        line.Quantity,
			UnitType:        product.Unit,
			Cost:            cost,
			SellingPrice:    product.SellingPrice,
			Total:           product.SellingPrice.Mul(decimal.NewFromFloat(line.Quantity)).Round(2),
			PaymentMethodID: resolved.PaymentMethod.ID,
			PaymentMethod:   resolved.PaymentMethod.Name,
			CustomerTypeID:  resolved.CustomerType.ID,
			CustomerType:    resolved.CustomerType.Name,
			DineOption:      resolved.DineOption,
		})
	}

	for _, req := range calc.Requirements(reservations) {
		if req.Storage <= 0 {
			continue
		}
		p.decrements = append(p.decrements, inventory.Decrement{ItemID: req.ItemID, Quantity: req.Storage})
	}
	return p, nil
}

func (p plan) result(inserted []sales.Record, remaining map[int64]float64) Result {
	res := Result{
		TransactionID: p.txID,
		Kind:          p.kind,
		Lines:         inserted,
		Total:         decimal.Zero,
		PaymentMethod: p.resolved.PaymentMethod.Name,
		CustomerType:  p.resolved.CustomerType.Name,
		DineOption:    p.resolved.DineOption,
		Stock:         make([]StockLevel, 0, len(p.decrements)),
	}
	for _, rec := range inserted {
		res.Total = res.Total.Add(rec.Total)
	}
	for _, d := range p.decrements {
		item := p.snapshot.Items[d.ItemID]
		left, ok := remaining[d.ItemID]
		if !ok {
			left = item.Quantity - d.Quantity
		}
		res.Stock = append(res.Stock, StockLevel{
			ItemID:    d.ItemID,
			Name:      item.Name,
			Remaining: units.ToDisplay(item.Unit, left),
			Unit:      item.Unit.DisplayLabel(),
		})
	}
	return res
}

// afterCommit runs the follow-ups of a committed sale. None of them can fail
// the checkout any more.
func (s *Service) afterCommit(ctx context.Context, c cart.Cart, res Result) {
	// The sale is durable; a client that hung up must not leave a sold cart behind.
	ctx = context.WithoutCancel(ctx)
	logger := s.deps.Logger.With(slog.String("transaction_id", res.TransactionID.String()))
	if err := s.deps.Carts.Save(ctx, c.Clear(s.clock().UTC())); err != nil {
		logger.Warn("clear cart after checkout", slog.String("cart_id", c.ID), slog.Any("error", err))
	}
	if s.deps.Reports != nil {
		s.deps.Reports.InvalidateReports(ctx)
	}
	if s.deps.Notifier != nil {
		createdAt := s.clock().UTC()
		if len(res.Lines) > 0 && !res.Lines[0].CreatedAt.IsZero() {
			createdAt = res.Lines[0].CreatedAt
		}
		err := s.deps.Notifier.EnqueueSaleCreated(ctx, jobs.SaleCreatedPayload{
			TransactionID: res.TransactionID.String(),
			Kind:          string(res.Kind),
			Lines:         len(res.Lines),
			Total:         res.Total,
			PaymentMethod: res.PaymentMethod,
			CreatedAt:     createdAt,
		})
		if err != nil {
			logger.Warn("enqueue sale notification", slog.Any("error", err))
		}
	}
	logger.Info("checkout committed", slog.String("kind", string(res.Kind)), slog.Int("lines", len(res.Lines)), slog.String("total", res.Total.String()))
}

func (s *Service) observe(kind string, lines int, err error) {
	if s.deps.Metrics == nil {
		return
	}
	result := observability.CheckoutCommitted
	switch {
	case err == nil:
	case errors.Is(err, availability.ErrInsufficientStock), errors.Is(err, ErrStockChanged):
		s.deps.Metrics.AddShortage("checkout")
		result = observability.CheckoutRejected
	case errors.Is(err, httpx.ErrValidation), errors.Is(err, httpx.ErrConflict), errors.Is(err, httpx.ErrNotFound):
		result = observability.CheckoutRejected
	default:
		result = observability.CheckoutFailed
	}
	s.deps.Metrics.ObserveCheckout(kind, result, lines)
}
