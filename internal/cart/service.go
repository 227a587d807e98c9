package cart

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/counterpos/counterpos/internal/availability"
	"github.com/counterpos/counterpos/internal/catalog"
	"github.com/counterpos/counterpos/internal/platform/httpx"
	"github.com/counterpos/counterpos/internal/shared"
)

// SnapshotSource loads a fresh catalog snapshot.
type SnapshotSource interface {
	Snapshot(ctx context.Context, kind catalog.Kind) (*catalog.Snapshot, error)
}

// SelectionChecker validates payment method, customer type and dine option.
type SelectionChecker interface {
	CheckSelection(ctx context.Context, paymentMethodID, customerTypeID *int64, dineOption string) error
}

// Locker serialises work on one cart across API replicas.
type Locker interface {
	Acquire(ctx context.Context, key string) (func(), error)
}

// Service applies cart operations against the store.
type Service struct {
	store      Store
	catalog    SnapshotSource
	selections SelectionChecker
	locker     Locker
	logger     *slog.Logger
	clock      func() time.Time
}

// NewService builds Service. selections and locker may be nil.
func NewService(store Store, catalog SnapshotSource, selections SelectionChecker, locker Locker, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{store: store, catalog: catalog, selections: selections, locker: locker, logger: logger, clock: time.Now}
}

// Create opens an empty cart for kind.
func (s *Service) Create(ctx context.Context, kind catalog.Kind) (Cart, error) {
	if _, err := catalog.ParseKind(string(kind)); err != nil {
		return Cart{}, err
	}
	c := New(uuid.NewString(), kind, s.clock().UTC())
	if err := s.store.Save(ctx, c); err != nil {
		return Cart{}, err
	}
	s.logger.Debug("cart created", slog.String("cart_id", c.ID), slog.String("kind", string(kind)))
	return c, nil
}

// Get loads a cart.
func (s *Service) Get(ctx context.Context, id string) (Cart, error) {
	return s.store.Get(ctx, id)
}

// Delete discards a cart.
func (s *Service) Delete(ctx context.Context, id string) error {
	if _, err := s.store.Get(ctx, id); err != nil {
		return err
	}
	return s.store.Delete(ctx, id)
}

// Reservations reports the kind of a cart and what it holds.
func (s *Service) Reservations(ctx context.Context, id string) (catalog.Kind, []availability.Reservation, error) {
	c, err := s.store.Get(ctx, id)
	if err != nil {
		return "", nil, err
	}
	return c.Kind, c.Reservations(), nil
}

// Add puts qty of productID in the cart or overwrites its line.
func (s *Service) Add(ctx context.Context, id string, productID int64, qty float64) (Cart, error) {
	return s.withProduct(ctx, id, productID, func(c Cart, p catalog.Sellable, snap *catalog.Snapshot, now time.Time) (Cart, error) {
		return c.Add(p, qty, snap.Calculator(), now)
	})
}

// SetQuantity updates an existing line; zero or less removes it.
func (s *Service) SetQuantity(ctx context.Context, id string, productID int64, qty float64) (Cart, error) {
	return s.withProduct(ctx, id, productID, func(c Cart, p catalog.Sellable, snap *catalog.Snapshot, now time.Time) (Cart, error) {
		return c.SetQuantity(p, qty, snap.Calculator(), now)
	})
}

// Remove drops the line for productID.
func (s *Service) Remove(ctx context.Context, id string, productID int64) (Cart, error) {
	return s.mutate(ctx, id, func(c Cart, now time.Time) (Cart, error) {
		next, ok := c.Remove(productID, now)
		if !ok {
			return c, ErrLineNotFound
		}
		return next, nil
	})
}

// Select stores the checkout selections after checking they exist.
func (s *Service) Select(ctx context.Context, id string, sel Selection) (Cart, error) {
	if s.selections != nil {
		if err := s.selections.CheckSelection(ctx, sel.PaymentMethodID, sel.CustomerTypeID, string(sel.DineOption)); err != nil {
			return Cart{}, err
		}
	}
	return s.mutate(ctx, id, func(c Cart, now time.Time) (Cart, error) {
		return c.Select(sel, now)
	})
}

// Clear empties the cart and resets its selections.
func (s *Service) Clear(ctx context.Context, id string) (Cart, error) {
	return s.mutate(ctx, id, func(c Cart, now time.Time) (Cart, error) {
		return c.Clear(now), nil
	})
}

func (s *Service) withProduct(ctx context.Context, id string, productID int64, fn func(Cart, catalog.Sellable, *catalog.Snapshot, time.Time) (Cart, error)) (Cart, error) {
	return s.mutate(ctx, id, func(c Cart, now time.Time) (Cart, error) {
		snap, err := s.catalog.Snapshot(ctx, c.Kind)
		if err != nil {
			return c, err
		}
		product, err := snap.Lookup(productID)
		if err != nil {
			return c, httpx.Wrap(httpx.ErrNotFound, err)
		}
		return fn(c, product, snap, now)
	})
}

func (s *Service) mutate(ctx context.Context, id string, fn func(Cart, time.Time) (Cart, error)) (Cart, error) {
	if s.locker != nil {
		release, err := s.locker.Acquire(ctx, shared.CartLockKey(id))
		if err != nil {
			return Cart{}, err
		}
		defer release()
	}
	c, err := s.store.Get(ctx, id)
	if err != nil {
		return Cart{}, err
	}
	next, err := fn(c, s.clock().UTC())
	if err != nil {
		return c, err
	}
	if err := s.store.Save(ctx, next); err != nil {
		return c, err
	}
	return next, nil
}

// LineView is a cart line priced against the current catalog.
type LineView struct {
	Line
	UnitLabel   string          `json:"unit"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
	Total       decimal.Decimal `json:"total"`
	MaxQuantity float64         `json:"max_quantity"`
}

// View is what the counter screen shows for a cart.
type View struct {
	ID        string          `json:"id"`
	Kind      catalog.Kind    `json:"kind"`
	Lines     []LineView      `json:"lines"`
	Selection Selection       `json:"selection"`
	Subtotal  decimal.Decimal `json:"subtotal"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// View prices c and attaches the current max quantity to each line.
func (s *Service) View(ctx context.Context, c Cart) (View, error) {
	v := View{ID: c.ID, Kind: c.Kind, Lines: make([]LineView, 0, len(c.Lines)), Selection: c.Selection, Subtotal: decimal.Zero, UpdatedAt: c.UpdatedAt}
	if c.Empty() {
		return v, nil
	}
	snap, err := s.catalog.Snapshot(ctx, c.Kind)
	if err != nil {
		return View{}, err
	}
	reservations := c.Reservations()
	for _, line := range c.Lines {
		lv := LineView{Line: line, UnitPrice: decimal.Zero, Total: decimal.Zero}
		if p, err := snap.Lookup(line.ProductID); err == nil {
			lv.UnitLabel = p.UnitLabel
			lv.UnitPrice = p.SellingPrice
			lv.Total = p.SellingPrice.Mul(decimal.NewFromFloat(line.Quantity))
		}
		lv.MaxQuantity = snap.Calculator().MaxQuantity(line.ProductID, reservations)
		v.Subtotal = v.Subtotal.Add(lv.Total)
		v.Lines = append(v.Lines, lv)
	}
	return v, nil
}
