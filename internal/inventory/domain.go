package inventory

import (
	"errors"
	"math"
	"time"

	"github.com/shopspring/decimal"

	"github.com/counterpos/counterpos/internal/units"
)

// Item is a stocked raw material or sellable good.
//
// Quantity and ReorderLevel are kept in storage units (kg for weight items,
// pieces otherwise). CostPerBaseUnit is priced per gram or per piece so recipe
// lines, which are expressed in display units, can be costed directly.
type Item struct {
	ID              int64           `json:"id"`
	Name            string          `json:"name"`
	Unit            units.Type      `json:"unit_type"`
	Quantity        float64         `json:"quantity"`
	CostPerBaseUnit decimal.Decimal `json:"cost_per_base_unit"`
	SellingPrice    decimal.Decimal `json:"selling_price"`
	ReorderLevel    float64         `json:"reorder_level"`
	UpdatedAt       time.Time       `json:"updated_at"`
}

// DisplayQuantity returns on-hand stock in grams or pieces.
func (i Item) DisplayQuantity() float64 {
	return units.ToDisplay(i.Unit, i.Quantity)
}

// StorageUnitCost prices one storage unit, i.e. one kilogram of a weight item.
func (i Item) StorageUnitCost() decimal.Decimal {
	if i.Unit == units.Weight {
		return i.CostPerBaseUnit.Mul(decimal.NewFromFloat(units.GramsPerKilogram))
	}
	return i.CostPerBaseUnit
}

// InStock reports whether any positive quantity remains.
func (i Item) InStock() bool {
	return i.Quantity > units.Epsilon
}

// BelowReorder reports whether the item has dropped to its reorder level.
// Items without a reorder level never trigger.
func (i Item) BelowReorder() bool {
	return i.ReorderLevel > 0 && i.Quantity <= i.ReorderLevel+units.Epsilon
}

// Settle returns what remains of onHand after taking qty storage units.
// Without allowNegative the take must fit within Epsilon, the same tolerance
// the availability checks use, and float noise below zero is clamped away.
func Settle(onHand, qty float64, allowNegative bool) (float64, bool) {
	next := onHand - qty
	if allowNegative {
		return next, true
	}
	if next < -units.Epsilon {
		return onHand, false
	}
	return math.Max(next, 0), true
}

// ListFilter narrows item listings.
type ListFilter struct {
	InStockOnly bool
	Search      string
}

// Decrement removes Quantity storage units from an item.
type Decrement struct {
	ItemID   int64
	Quantity float64
}

// Sentinel errors.
var (
	ErrItemNotFound    = errors.New("inventory: item not found")
	ErrNegativeStock   = errors.New("inventory: negative stock not allowed")
	ErrInvalidQuantity = errors.New("inventory: invalid quantity")
)
