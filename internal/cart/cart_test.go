package cart

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/counterpos/counterpos/internal/availability"
	"github.com/counterpos/counterpos/internal/catalog"
	"github.com/counterpos/counterpos/internal/inventory"
	"github.com/counterpos/counterpos/internal/recipes"
	"github.com/counterpos/counterpos/internal/units"
)

var now = time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

func bakerySnapshot() *catalog.Snapshot {
	items := []inventory.Item{
		{ID: 1, Name: "Flour", Unit: units.Weight, Quantity: 1, CostPerBaseUnit: decimal.RequireFromString("0.002")},
	}
	products := []recipes.Product{
		{ID: 10, Name: "A", SellingPrice: decimal.NewFromInt(2), Lines: []recipes.Line{{IngredientID: 1, QuantityPerUnit: 200}}},
		{ID: 11, Name: "B", SellingPrice: decimal.NewFromInt(3), Lines: []recipes.Line{{IngredientID: 1, QuantityPerUnit: 300}}},
		{ID: 12, Name: "Empty recipe", SellingPrice: decimal.NewFromInt(1)},
	}
	return catalog.NewSnapshot(catalog.KindRecipe, items, products)
}

func shopSnapshot() *catalog.Snapshot {
	return catalog.NewSnapshot(catalog.KindSimple, []inventory.Item{
		{ID: 1, Name: "Coffee beans", Unit: units.Weight, Quantity: 2.5, SellingPrice: decimal.NewFromInt(30)},
		{ID: 2, Name: "Water", Unit: units.Quantity, Quantity: 4, SellingPrice: decimal.NewFromInt(1)},
	}, nil)
}

func product(t *testing.T, snap *catalog.Snapshot, id int64) catalog.Sellable {
	t.Helper()
	p, err := snap.Lookup(id)
	require.NoError(t, err)
	return p
}

func TestAddAtMaxSucceedsAndAboveFails(t *testing.T) {
	snap := bakerySnapshot()
	c := New("c1", catalog.KindRecipe, now)
	c, err := c.Add(product(t, snap, 11), 1, snap.Calculator(), now)
	require.NoError(t, err)

	max := snap.Calculator().MaxQuantity(10, c.Reservations())
	require.Equal(t, 3.0, max)

	_, err = c.Add(product(t, snap, 10), max+1, snap.Calculator(), now)
	require.ErrorIs(t, err, availability.ErrInsufficientStock)

	c, err = c.Add(product(t, snap, 10), max, snap.Calculator(), now)
	require.NoError(t, err)
	line, ok := c.Line(10)
	require.True(t, ok)
	require.Equal(t, 3.0, line.Quantity)
}

func TestAddOverwritesExistingLine(t *testing.T) {
	snap := bakerySnapshot()
	c := New("c1", catalog.KindRecipe, now)
	c, err := c.Add(product(t, snap, 10), 2, snap.Calculator(), now)
	require.NoError(t, err)
	c, err = c.Add(product(t, snap, 10), 5, snap.Calculator(), now)
	require.NoError(t, err)

	require.Len(t, c.Lines, 1)
	require.Equal(t, 5.0, c.Lines[0].Quantity)
}

func TestAddRejectsOneMoreWhenFlourIsExhausted(t *testing.T) {
	snap := bakerySnapshot()
	c := New("c1", catalog.KindRecipe, now)
	c, err := c.Add(product(t, snap, 10), 3, snap.Calculator(), now)
	require.NoError(t, err)
	c, err = c.Add(product(t, snap, 11), 1, snap.Calculator(), now)
	require.NoError(t, err)

	_, err = c.Add(product(t, snap, 10), 4, snap.Calculator(), now)
	var shortage *availability.ShortageError
	require.ErrorAs(t, err, &shortage)
	require.Equal(t, "Flour", shortage.ItemName)
}

func TestAddValidatesQuantity(t *testing.T) {
	snap := bakerySnapshot()
	c := New("c1", catalog.KindRecipe, now)

	_, err := c.Add(product(t, snap, 10), 0, snap.Calculator(), now)
	require.ErrorIs(t, err, ErrInvalidQuantity)
	_, err = c.Add(product(t, snap, 10), -2, snap.Calculator(), now)
	require.ErrorIs(t, err, ErrInvalidQuantity)
	_, err = c.Add(product(t, snap, 10), 1.5, snap.Calculator(), now)
	require.ErrorIs(t, err, ErrFractionalQuantity)
	_, err = c.Add(product(t, snap, 12), 1, snap.Calculator(), now)
	require.ErrorIs(t, err, availability.ErrNoRecipe)

	simple := shopSnapshot()
	_, err = c.Add(product(t, simple, 1), 1, simple.Calculator(), now)
	require.ErrorIs(t, err, ErrKindMismatch)
}

func TestSimpleWeightAcceptsFractions(t *testing.T) {
	snap := shopSnapshot()
	c := New("c2", catalog.KindSimple, now)

	c, err := c.Add(product(t, snap, 1), 0.25, snap.Calculator(), now)
	require.NoError(t, err)
	require.Equal(t, 0.25, c.Lines[0].Quantity)

	_, err = c.Add(product(t, snap, 2), 1.5, snap.Calculator(), now)
	require.ErrorIs(t, err, ErrFractionalQuantity)

	_, err = c.Add(product(t, snap, 1), 2.6, snap.Calculator(), now)
	require.ErrorIs(t, err, availability.ErrInsufficientStock)
}

func TestSetQuantity(t *testing.T) {
	snap := bakerySnapshot()
	c := New("c1", catalog.KindRecipe, now)
	_, err := c.SetQuantity(product(t, snap, 10), 1, snap.Calculator(), now)
	require.ErrorIs(t, err, ErrLineNotFound)

	c, err = c.Add(product(t, snap, 10), 1, snap.Calculator(), now)
	require.NoError(t, err)
	c, err = c.SetQuantity(product(t, snap, 10), 4, snap.Calculator(), now)
	require.NoError(t, err)
	require.Equal(t, 4.0, c.Lines[0].Quantity)

	_, err = c.SetQuantity(product(t, snap, 10), 6, snap.Calculator(), now)
	require.ErrorIs(t, err, availability.ErrInsufficientStock)

	c, err = c.SetQuantity(product(t, snap, 10), 0, snap.Calculator(), now)
	require.NoError(t, err)
	require.True(t, c.Empty())
}

func TestMutationsDoNotTouchReceiver(t *testing.T) {
	snap := bakerySnapshot()
	base, err := New("c1", catalog.KindRecipe, now).Add(product(t, snap, 10), 1, snap.Calculator(), now)
	require.NoError(t, err)
	pm := int64(7)
	base, err = base.Select(Selection{PaymentMethodID: &pm}, now)
	require.NoError(t, err)

	grown, err := base.Add(product(t, snap, 11), 1, snap.Calculator(), now)
	require.NoError(t, err)
	removed, ok := grown.Remove(10, now)
	require.True(t, ok)
	cleared := grown.Clear(now)

	require.Len(t, base.Lines, 1)
	require.Len(t, grown.Lines, 2)
	require.Len(t, removed.Lines, 1)
	require.Equal(t, int64(11), removed.Lines[0].ProductID)
	require.True(t, cleared.Empty())
	require.NotNil(t, grown.Selection.PaymentMethodID)

	_, ok = cleared.Remove(10, now)
	require.False(t, ok)
}

func TestClearResetsSelections(t *testing.T) {
	snap := bakerySnapshot()
	c, err := New("c1", catalog.KindRecipe, now).Add(product(t, snap, 10), 2, snap.Calculator(), now)
	require.NoError(t, err)
	pm, ct := int64(1), int64(2)
	c, err = c.Select(Selection{PaymentMethodID: &pm, CustomerTypeID: &ct, DineOption: DineTakeout}, now)
	require.NoError(t, err)

	later := now.Add(time.Minute)
	cleared := c.Clear(later)
	require.True(t, cleared.Empty())
	require.Nil(t, cleared.Selection.PaymentMethodID)
	require.Nil(t, cleared.Selection.CustomerTypeID)
	require.Equal(t, DineUnset, cleared.Selection.DineOption)
	require.Equal(t, later, cleared.UpdatedAt)
}

func TestSelectRejectsUnknownDineOption(t *testing.T) {
	_, err := New("c1", catalog.KindRecipe, now).Select(Selection{DineOption: "drive_through"}, now)
	require.ErrorIs(t, err, ErrInvalidDineOption)
}
