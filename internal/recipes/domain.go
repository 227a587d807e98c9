package recipes

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/counterpos/counterpos/internal/inventory"
)

// Product is a finished good assembled from inventory ingredients. It is
// always sold by whole count.
type Product struct {
	ID           int64           `json:"id"`
	Name         string          `json:"name"`
	SellingPrice decimal.Decimal `json:"selling_price"`
	Lines        []Line          `json:"lines"`
}

// Line consumes QuantityPerUnit grams or pieces of an ingredient per product.
type Line struct {
	ID              int64   `json:"id"`
	ProductID       int64   `json:"product_id"`
	IngredientID    int64   `json:"ingredient_id"`
	QuantityPerUnit float64 `json:"quantity_per_unit"`
}

// CostLine is one costed recipe line.
type CostLine struct {
	IngredientID    int64           `json:"ingredient_id"`
	IngredientName  string          `json:"ingredient_name"`
	Quantity        float64         `json:"quantity"`
	Unit            string          `json:"unit"`
	CostPerBaseUnit decimal.Decimal `json:"cost_per_base_unit"`
	Cost            decimal.Decimal `json:"cost"`
}

// CostBreakdown is the ingredient cost of producing one unit.
type CostBreakdown struct {
	Lines        []CostLine      `json:"lines"`
	Total        decimal.Decimal `json:"total"`
	SellingPrice decimal.Decimal `json:"selling_price"`
	Margin       decimal.Decimal `json:"margin"`
}

// Sentinel errors.
var (
	ErrProductNotFound     = errors.New("recipes: product not found")
	ErrUnknownIngredient   = errors.New("recipes: unknown ingredient")
	ErrInvalidLineQuantity = errors.New("recipes: quantity per unit must be positive")
)

// RollUp prices lines against items: the sum of cost per base unit times
// quantity per unit. Nothing is cached; callers recompute on every use so
// the figure follows current ingredient costs.
func RollUp(lines []Line, items map[int64]inventory.Item) (CostBreakdown, error) {
	out := CostBreakdown{Lines: make([]CostLine, 0, len(lines)), Total: decimal.Zero}
	for _, line := range lines {
		if line.QuantityPerUnit <= 0 {
			return CostBreakdown{}, ErrInvalidLineQuantity
		}
		item, ok := items[line.IngredientID]
		if !ok {
			return CostBreakdown{}, fmt.Errorf("%w: ingredient %d", ErrUnknownIngredient, line.IngredientID)
		}
		cost := item.CostPerBaseUnit.Mul(decimal.NewFromFloat(line.QuantityPerUnit))
		out.Lines = append(out.Lines, CostLine{
			IngredientID:    item.ID,
			IngredientName:  item.Name,
			Quantity:        line.QuantityPerUnit,
			Unit:            item.Unit.DisplayLabel(),
			CostPerBaseUnit: item.CostPerBaseUnit,
			Cost:            cost,
		})
		out.Total = out.Total.Add(cost)
	}
	return out, nil
}

// WithPrice fills the selling price and margin of b.
func (b CostBreakdown) WithPrice(price decimal.Decimal) CostBreakdown {
	b.SellingPrice = price
	b.Margin = price.Sub(b.Total)
	return b
}
