// Package cart holds the per-terminal list of pending sale lines and the
// payment, customer and dining selections that go with them.
//
// Cart values are immutable: every mutation returns a new Cart and leaves the
// receiver untouched, so the rules can be tested without any storage.
package cart

import (
	"fmt"
	"math"
	"slices"
	"time"

	"github.com/counterpos/counterpos/internal/availability"
	"github.com/counterpos/counterpos/internal/catalog"
	"github.com/counterpos/counterpos/internal/platform/httpx"
	"github.com/counterpos/counterpos/internal/units"
)

// DineOption records whether the order is eaten in or taken away.
type DineOption string

const (
	DineUnset   DineOption = ""
	DineIn      DineOption = "dine_in"
	DineTakeout DineOption = "takeout"
)

// Valid reports whether d is a known option, including unset.
func (d DineOption) Valid() bool {
	return d == DineUnset || d == DineIn || d == DineTakeout
}

// Line is one product held by the cart. Quantity is in the product's selling
// unit: kilograms or pieces for simple items, whole units for recipes.
type Line struct {
	ProductID int64      `json:"product_id"`
	Name      string     `json:"name"`
	Unit      units.Type `json:"unit_type"`
	Quantity  float64    `json:"quantity"`
}

// Selection is the checkout metadata chosen at the counter.
type Selection struct {
	PaymentMethodID *int64     `json:"payment_method_id,omitempty"`
	CustomerTypeID  *int64     `json:"customer_type_id,omitempty"`
	DineOption      DineOption `json:"dine_option,omitempty"`
}

// Cart is an ordered list of lines with at most one line per product.
type Cart struct {
	ID        string       `json:"id"`
	Kind      catalog.Kind `json:"kind"`
	Lines     []Line       `json:"lines"`
	Selection Selection    `json:"selection"`
	CreatedAt time.Time    `json:"created_at"`
	UpdatedAt time.Time    `json:"updated_at"`
}

// Sentinel errors.
var (
	ErrCartNotFound       = fmt.Errorf("cart: %w", httpx.ErrNotFound)
	ErrLineNotFound       = fmt.Errorf("cart: line %w", httpx.ErrNotFound)
	ErrInvalidQuantity    = fmt.Errorf("cart: quantity must be greater than zero: %w", httpx.ErrValidation)
	ErrFractionalQuantity = fmt.Errorf("cart: quantity must be a whole number: %w", httpx.ErrValidation)
	ErrKindMismatch       = fmt.Errorf("cart: product belongs to another sales kind: %w", httpx.ErrValidation)
	ErrInvalidDineOption  = fmt.Errorf("cart: unknown dine option: %w", httpx.ErrValidation)
)

// New returns an empty cart.
func New(id string, kind catalog.Kind, now time.Time) Cart {
	return Cart{ID: id, Kind: kind, CreatedAt: now, UpdatedAt: now}
}

// Empty reports whether the cart has no lines.
func (c Cart) Empty() bool {
	return len(c.Lines) == 0
}

// Line returns the line for productID.
func (c Cart) Line(productID int64) (Line, bool) {
	i := c.index(productID)
	if i < 0 {
		return Line{}, false
	}
	return c.Lines[i], true
}

// Reservations lists what every line holds, for availability checks.
func (c Cart) Reservations() []availability.Reservation {
	out := make([]availability.Reservation, 0, len(c.Lines))
	for _, l := range c.Lines {
		out = append(out, availability.Reservation{ProductID: l.ProductID, Quantity: l.Quantity})
	}
	return out
}

// Add puts qty of product in the cart, replacing the quantity of an existing
// line for the same product. qty must not exceed what calc allows beside the
// other lines.
func (c Cart) Add(product catalog.Sellable, qty float64, calc availability.Calculator, now time.Time) (Cart, error) {
	if product.Kind != c.Kind {
		return c, ErrKindMismatch
	}
	if err := validateQuantity(product.Fractional, qty); err != nil {
		return c, err
	}
	if !product.Fractional {
		qty = math.Round(qty)
	}
	if err := calc.CanSell(product.ID, qty, c.Reservations()); err != nil {
		return c, err
	}
	next := c.clone()
	line := Line{ProductID: product.ID, Name: product.Name, Unit: product.Unit, Quantity: qty}
	if i := next.index(product.ID); i >= 0 {
		next.Lines[i] = line
	} else {
		next.Lines = append(next.Lines, line)
	}
	next.UpdatedAt = now
	return next, nil
}

// SetQuantity changes an existing line. A quantity of zero or less removes it.
func (c Cart) SetQuantity(product catalog.Sellable, qty float64, calc availability.Calculator, now time.Time) (Cart, error) {
	if c.index(product.ID) < 0 {
		return c, ErrLineNotFound
	}
	if qty <= 0 {
		next, _ := c.Remove(product.ID, now)
		return next, nil
	}
	return c.Add(product, qty, calc, now)
}

// Remove drops the line for productID. It reports false when there was none.
func (c Cart) Remove(productID int64, now time.Time) (Cart, bool) {
	i := c.index(productID)
	if i < 0 {
		return c, false
	}
	next := c.clone()
	next.Lines = slices.Delete(next.Lines, i, i+1)
	next.UpdatedAt = now
	return next, true
}

// Clear empties the cart and resets every selection.
func (c Cart) Clear(now time.Time) Cart {
	next := c.clone()
	next.Lines = nil
	next.Selection = Selection{}
	next.UpdatedAt = now
	return next
}

// Select replaces the checkout selections.
func (c Cart) Select(sel Selection, now time.Time) (Cart, error) {
	if !sel.DineOption.Valid() {
		return c, ErrInvalidDineOption
	}
	next := c.clone()
	next.Selection = sel
	next.UpdatedAt = now
	return next, nil
}

func (c Cart) index(productID int64) int {
	return slices.IndexFunc(c.Lines, func(l Line) bool { return l.ProductID == productID })
}

func (c Cart) clone() Cart {
	next := c
	next.Lines = slices.Clone(c.Lines)
	next.Selection = Selection{
		PaymentMethodID: clonePtr(c.Selection.PaymentMethodID),
		CustomerTypeID:  clonePtr(c.Selection.CustomerTypeID),
		DineOption:      c.Selection.DineOption,
	}
	return next
}

func clonePtr(p *int64) *int64 {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

func validateQuantity(fractional bool, qty float64) error {
	if !(qty > 0) {
		return ErrInvalidQuantity
	}
	if !fractional && !units.IsWhole(qty) {
		return ErrFractionalQuantity
	}
	return nil
}
