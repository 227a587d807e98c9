// Package catalog assembles a consistent view of inventory and recipes and
// answers what can be sold, at what price and cost, and how much of it.
package catalog

import (
	"errors"
	"fmt"
	"sort"

	"github.com/shopspring/decimal"

	"github.com/counterpos/counterpos/internal/availability"
	"github.com/counterpos/counterpos/internal/inventory"
	"github.com/counterpos/counterpos/internal/recipes"
	"github.com/counterpos/counterpos/internal/units"
)

// Kind selects between the two sales modes.
type Kind string

const (
	// KindSimple sells inventory items directly.
	KindSimple Kind = "simple"
	// KindRecipe sells finished products built from ingredients.
	KindRecipe Kind = "recipe"
)

// Sentinel errors.
var (
	ErrUnknownKind    = errors.New("catalog: unknown sales kind")
	ErrUnknownProduct = errors.New("catalog: unknown product")
)

// ParseKind validates raw as a Kind.
func ParseKind(raw string) (Kind, error) {
	switch Kind(raw) {
	case KindSimple, KindRecipe:
		return Kind(raw), nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownKind, raw)
}

// Sellable is one product offered at the counter.
type Sellable struct {
	ID           int64           `json:"id"`
	Name         string          `json:"name"`
	Kind         Kind            `json:"kind"`
	Unit         units.Type      `json:"unit_type"`
	UnitLabel    string          `json:"unit"`
	Fractional   bool            `json:"fractional"`
	SellingPrice decimal.Decimal `json:"selling_price"`
	MaxQuantity  float64         `json:"max_quantity"`
	Sellable     bool            `json:"sellable"`
}

// Snapshot is inventory and recipes read at one moment.
type Snapshot struct {
	Kind     Kind
	Items    map[int64]inventory.Item
	Products map[int64]recipes.Product

	stock availability.Stock
	book  availability.RecipeBook
	calc  availability.Calculator
}

// NewSnapshot indexes items and products for kind. products is ignored for
// simple sales.
func NewSnapshot(kind Kind, items []inventory.Item, products []recipes.Product) *Snapshot {
	s := &Snapshot{
		Kind:     kind,
		Items:    recipes.IndexItems(items),
		Products: make(map[int64]recipes.Product),
		stock:    make(availability.Stock, len(items)),
	}
	for _, item := range items {
		s.stock[item.ID] = availability.StockItem{ID: item.ID, Name: item.Name, Unit: item.Unit, OnHand: item.Quantity}
	}
	if kind == KindRecipe {
		s.book = make(availability.RecipeBook, len(products))
		for _, p := range products {
			s.Products[p.ID] = p
			lines := make([]availability.Ingredient, 0, len(p.Lines))
			for _, l := range p.Lines {
				lines = append(lines, availability.Ingredient{IngredientID: l.IngredientID, PerUnit: l.QuantityPerUnit})
			}
			s.book[p.ID] = lines
		}
		s.calc = availability.NewRecipeCalculator(s.stock, s.book)
	} else {
		s.calc = availability.NewSimpleCalculator(s.stock)
	}
	return s
}

// Calculator returns the availability calculator for this snapshot.
func (s *Snapshot) Calculator() availability.Calculator {
	return s.calc
}

// Lookup describes productID without a quantity limit.
func (s *Snapshot) Lookup(productID int64) (Sellable, error) {
	if s.Kind == KindRecipe {
		p, ok := s.Products[productID]
		if !ok {
			return Sellable{}, fmt.Errorf("%w: %d", ErrUnknownProduct, productID)
		}
		return Sellable{
			ID:           p.ID,
			Name:         p.Name,
			Kind:         KindRecipe,
			Unit:         units.Quantity,
			UnitLabel:    units.Quantity.DisplayLabel(),
			SellingPrice: p.SellingPrice,
		}, nil
	}
	item, ok := s.Items[productID]
	if !ok {
		return Sellable{}, fmt.Errorf("%w: %d", ErrUnknownProduct, productID)
	}
	return Sellable{
		ID:           item.ID,
		Name:         item.Name,
		Kind:         KindSimple,
		Unit:         item.Unit,
		UnitLabel:    item.Unit.StorageLabel(),
		Fractional:   item.Unit == units.Weight,
		SellingPrice: item.SellingPrice,
	}, nil
}

// UnitCost is the cost of one sold unit at this moment: the recipe roll-up for
// finished products, the per-kilogram or per-piece cost for simple items.
func (s *Snapshot) UnitCost(productID int64) (decimal.Decimal, error) {
	if s.Kind == KindRecipe {
		p, ok := s.Products[productID]
		if !ok {
			return decimal.Zero, fmt.Errorf("%w: %d", ErrUnknownProduct, productID)
		}
		breakdown, err := recipes.RollUp(p.Lines, s.Items)
		if err != nil {
			return decimal.Zero, err
		}
		return breakdown.Total, nil
	}
	item, ok := s.Items[productID]
	if !ok {
		return decimal.Zero, fmt.Errorf("%w: %d", ErrUnknownProduct, productID)
	}
	return item.StorageUnitCost(), nil
}

// Listing returns every product of the snapshot with its max quantity given
// reservations. Simple listings skip items without stock.
func (s *Snapshot) Listing(reservations []availability.Reservation) []Sellable {
	var ids []int64
	if s.Kind == KindRecipe {
		for id := range s.Products {
			ids = append(ids, id)
		}
	} else {
		for id, item := range s.Items {
			if item.InStock() {
				ids = append(ids, id)
			}
		}
	}
	out := make([]Sellable, 0, len(ids))
	for _, id := range ids {
		entry, err := s.Lookup(id)
		if err != nil {
			continue
		}
		entry.MaxQuantity = s.calc.MaxQuantity(id, reservations)
		entry.Sellable = entry.MaxQuantity > 0
		out = append(out, entry)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Name == out[j].Name {
			return out[i].ID < out[j].ID
		}
		return out[i].Name < out[j].Name
	})
	return out
}
