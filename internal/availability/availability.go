// Package availability computes how much of a product can still be sold given
// on-hand stock, recipes and quantities already reserved by cart lines.
//
// Everything here is a pure function over explicit inputs. Recipe quantities
// and the arithmetic on them are in display units (grams or pieces); stock is
// converted from storage units on read.
package availability

import (
	"errors"
	"fmt"
	"math"
	"sort"

	"github.com/counterpos/counterpos/internal/units"
)

// StockItem is the slice of an inventory row the calculator needs.
type StockItem struct {
	ID     int64
	Name   string
	Unit   units.Type
	OnHand float64 // storage units
}

// Display returns on-hand stock in grams or pieces.
func (s StockItem) Display() float64 {
	return units.ToDisplay(s.Unit, s.OnHand)
}

// Stock indexes stock items by id.
type Stock map[int64]StockItem

// Ingredient is one recipe line: PerUnit display units of IngredientID per
// finished product.
type Ingredient struct {
	IngredientID int64
	PerUnit      float64
}

// RecipeBook maps a finished product id to its recipe lines.
type RecipeBook map[int64][]Ingredient

// Reservation is a quantity of a product held by a cart line.
type Reservation struct {
	ProductID int64
	Quantity  float64
}

// Requirement is the total amount of one stock item a set of reservations consumes.
type Requirement struct {
	ItemID  int64
	Unit    units.Type
	Display float64
	Storage float64
}

// Sentinel errors.
var (
	ErrInsufficientStock = errors.New("availability: insufficient stock")
	ErrNoRecipe          = errors.New("availability: product has no recipe")
)

// ShortageError names the stock item that blocks a sale.
type ShortageError struct {
	ProductID int64
	ItemID    int64
	ItemName  string
	Required  float64
	Available float64
	Unit      string
}

func (e *ShortageError) Error() string {
	name := e.ItemName
	if name == "" {
		name = fmt.Sprintf("item %d", e.ItemID)
	}
	return fmt.Sprintf("insufficient %s: need %s %s, %s %s available",
		name, trim(e.Required), e.Unit, trim(math.Max(e.Available, 0)), e.Unit)
}

// Unwrap lets callers match ErrInsufficientStock.
func (e *ShortageError) Unwrap() error { return ErrInsufficientStock }

func trim(v float64) string {
	return fmt.Sprintf("%.3f", math.Round(v*1000)/1000)
}

// ingredientTotals merges duplicate lines of one recipe.
func ingredientTotals(lines []Ingredient) (map[int64]float64, []int64) {
	totals := make(map[int64]float64, len(lines))
	var order []int64
	for _, line := range lines {
		if _, seen := totals[line.IngredientID]; !seen {
			order = append(order, line.IngredientID)
		}
		totals[line.IngredientID] += line.PerUnit
	}
	return totals, order
}

// ReservedByOthers sums what reservations for products other than productID
// hold of ingredientID, in display units.
func ReservedByOthers(book RecipeBook, productID, ingredientID int64, reservations []Reservation) float64 {
	var reserved float64
	for _, res := range reservations {
		if res.ProductID == productID {
			continue
		}
		for _, line := range book[res.ProductID] {
			if line.IngredientID == ingredientID {
				reserved += line.PerUnit * res.Quantity
			}
		}
	}
	return reserved
}

// MaxRecipeQuantity returns the largest whole number of productID that can be
// added on top of the other reservations. The scarcest ingredient decides. A
// product without recipe lines, with a missing ingredient or with a
// non-positive per-unit quantity yields 0. The result is never negative.
func MaxRecipeQuantity(stock Stock, book RecipeBook, productID int64, reservations []Reservation) float64 {
	lines := book[productID]
	if len(lines) == 0 {
		return 0
	}
	for _, line := range lines {
		if line.PerUnit <= 0 {
			return 0
		}
	}
	totals, order := ingredientTotals(lines)
	max := math.Inf(1)
	for _, id := range order {
		item, ok := stock[id]
		if !ok {
			return 0
		}
		available := item.Display() - ReservedByOthers(book, productID, id, reservations)
		possible := units.FloorUnits(available / totals[id])
		if possible < max {
			max = possible
		}
	}
	if max < 0 || math.IsInf(max, 0) {
		return 0
	}
	return max
}

// CanSellRecipe checks that qty units of productID fit beside the other
// reservations. It uses the same per-ingredient ratio as MaxRecipeQuantity so
// the two never disagree.
func CanSellRecipe(stock Stock, book RecipeBook, productID int64, qty float64, reservations []Reservation) error {
	lines := book[productID]
	if len(lines) == 0 {
		return fmt.Errorf("%w: product %d", ErrNoRecipe, productID)
	}
	totals, order := ingredientTotals(lines)
	for _, id := range order {
		perUnit := totals[id]
		item, ok := stock[id]
		if !ok {
			return &ShortageError{ProductID: productID, ItemID: id, Required: perUnit * qty}
		}
		available := item.Display() - ReservedByOthers(book, productID, id, reservations)
		if perUnit <= 0 || qty > units.FloorUnits(available/perUnit) {
			return &ShortageError{
				ProductID: productID,
				ItemID:    id,
				ItemName:  item.Name,
				Required:  perUnit * qty,
				Available: available,
				Unit:      item.Unit.DisplayLabel(),
			}
		}
	}
	return nil
}

// RecipeRequirements aggregates the ingredient consumption of every
// reservation, so an ingredient shared by several products appears once with
// the combined amount.
func RecipeRequirements(stock Stock, book RecipeBook, reservations []Reservation) []Requirement {
	display := make(map[int64]float64)
	for _, res := range reservations {
		for _, line := range book[res.ProductID] {
			display[line.IngredientID] += line.PerUnit * res.Quantity
		}
	}
	out := make([]Requirement, 0, len(display))
	for id, amount := range display {
		unit := stock[id].Unit
		if unit == "" {
			unit = units.Quantity
		}
		out = append(out, Requirement{ItemID: id, Unit: unit, Display: amount, Storage: units.ToStorage(unit, amount)})
	}
	sortRequirements(out)
	return out
}

// MaxSimpleQuantity returns how much of a directly sold item remains, in
// storage units. Weight items may be sold fractionally; pieces are floored.
// A cart holds one line per product, so no other line competes for the item.
func MaxSimpleQuantity(stock Stock, productID int64) float64 {
	item, ok := stock[productID]
	if !ok {
		return 0
	}
	available := item.OnHand
	if item.Unit != units.Weight {
		available = units.FloorUnits(available)
	}
	if available < 0 {
		return 0
	}
	return available
}

// CanSellSimple checks qty storage units of a directly sold item.
func CanSellSimple(stock Stock, productID int64, qty float64) error {
	item, ok := stock[productID]
	if !ok {
		return &ShortageError{ProductID: productID, ItemID: productID, Required: qty}
	}
	if qty > MaxSimpleQuantity(stock, productID)+units.Epsilon {
		return &ShortageError{
			ProductID: productID,
			ItemID:    productID,
			ItemName:  item.Name,
			Required:  qty,
			Available: item.OnHand,
			Unit:      item.Unit.StorageLabel(),
		}
	}
	return nil
}

// SimpleRequirements totals reservations per item.
func SimpleRequirements(stock Stock, reservations []Reservation) []Requirement {
	storage := make(map[int64]float64)
	for _, res := range reservations {
		storage[res.ProductID] += res.Quantity
	}
	out := make([]Requirement, 0, len(storage))
	for id, amount := range storage {
		unit := stock[id].Unit
		if unit == "" {
			unit = units.Quantity
		}
		out = append(out, Requirement{ItemID: id, Unit: unit, Display: units.ToDisplay(unit, amount), Storage: amount})
	}
	sortRequirements(out)
	return out
}

func sortRequirements(reqs []Requirement) {
	sort.Slice(reqs, func(i, j int) bool { return reqs[i].ItemID < reqs[j].ItemID })
}
