package inventory

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sort"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/counterpos/counterpos/internal/units"
)

type memoryRepo struct {
	items map[int64]Item
}

func newMemoryRepo(items ...Item) *memoryRepo {
	repo := &memoryRepo{items: make(map[int64]Item)}
	for _, item := range items {
		repo.items[item.ID] = item
	}
	return repo
}

func (r *memoryRepo) List(_ context.Context, filter ListFilter) ([]Item, error) {
	var out []Item
	for _, item := range r.items {
		if filter.InStockOnly && !item.InStock() {
			continue
		}
		if filter.Search != "" && !strings.Contains(strings.ToLower(item.Name), strings.ToLower(filter.Search)) {
			continue
		}
		out = append(out, item)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (r *memoryRepo) Get(_ context.Context, id int64) (Item, error) {
	item, ok := r.items[id]
	if !ok {
		return Item{}, ErrItemNotFound
	}
	return item, nil
}

func (r *memoryRepo) ListBelowReorder(_ context.Context) ([]Item, error) {
	var out []Item
	for _, item := range r.items {
		if item.BelowReorder() {
			out = append(out, item)
		}
	}
	return out, nil
}

type memoryTx struct {
	repo  *memoryRepo
	order []int64
}

func (tx *memoryTx) Decrement(_ context.Context, d Decrement, allowNegative bool) (float64, error) {
	tx.order = append(tx.order, d.ItemID)
	item, ok := tx.repo.items[d.ItemID]
	if !ok {
		return 0, ErrItemNotFound
	}
	next, ok := Settle(item.Quantity, d.Quantity, allowNegative)
	if !ok {
		return 0, ErrNegativeStock
	}
	item.Quantity = next
	tx.repo.items[d.ItemID] = item
	return item.Quantity, nil
}

func flour() Item {
	return Item{ID: 1, Name: "Flour", Unit: units.Weight, Quantity: 1, CostPerBaseUnit: decimal.RequireFromString("0.02"), ReorderLevel: 0.5}
}

func eggs() Item {
	return Item{ID: 2, Name: "Eggs", Unit: units.Quantity, Quantity: 30, CostPerBaseUnit: decimal.RequireFromString("0.25")}
}

func TestItemConversions(t *testing.T) {
	item := flour()
	require.InDelta(t, 1000.0, item.DisplayQuantity(), 1e-9)
	require.True(t, item.StorageUnitCost().Equal(decimal.RequireFromString("20")))
	require.False(t, item.BelowReorder())

	item.Quantity = 0.5
	require.True(t, item.BelowReorder())

	require.True(t, eggs().StorageUnitCost().Equal(decimal.RequireFromString("0.25")))
	require.False(t, eggs().BelowReorder())
}

func TestServiceListInStock(t *testing.T) {
	empty := Item{ID: 3, Name: "Butter", Unit: units.Weight}
	svc := NewService(newMemoryRepo(flour(), eggs(), empty))

	all, err := svc.List(context.Background(), ListFilter{})
	require.NoError(t, err)
	require.Len(t, all, 3)

	inStock, err := svc.List(context.Background(), ListFilter{InStockOnly: true})
	require.NoError(t, err)
	require.Len(t, inStock, 2)
	require.Equal(t, "Eggs", inStock[0].Name)
}

func TestServiceGetRejectsInvalidID(t *testing.T) {
	svc := NewService(newMemoryRepo())
	_, err := svc.Get(context.Background(), 0)
	require.ErrorIs(t, err, ErrItemNotFound)
}

func TestApplyDecrementsOrdersByItem(t *testing.T) {
	repo := newMemoryRepo(flour(), eggs())
	tx := &memoryTx{repo: repo}

	remaining, err := ApplyDecrements(context.Background(), tx, []Decrement{
		{ItemID: 2, Quantity: 4},
		{ItemID: 1, Quantity: 0.7},
	}, false)
	require.NoError(t, err)
	require.Equal(t, []int64{1, 2}, tx.order)
	require.InDelta(t, 0.3, remaining[1], 1e-9)
	require.Equal(t, 26.0, remaining[2])
}

func TestApplyDecrementsNegativeStock(t *testing.T) {
	repo := newMemoryRepo(flour())
	tx := &memoryTx{repo: repo}

	_, err := ApplyDecrements(context.Background(), tx, []Decrement{{ItemID: 1, Quantity: 1.2}}, false)
	require.ErrorIs(t, err, ErrNegativeStock)
	require.Contains(t, err.Error(), "item 1")

	remaining, err := ApplyDecrements(context.Background(), tx, []Decrement{{ItemID: 1, Quantity: 1.2}}, true)
	require.NoError(t, err)
	require.InDelta(t, -0.2, remaining[1], 1e-9)
}

func TestHandlerListAndGet(t *testing.T) {
	h := NewHandler(slog.New(slog.NewTextHandler(io.Discard, nil)), NewService(newMemoryRepo(flour(), eggs())))
	r := chi.NewRouter()
	r.Route("/inventory", h.MountRoutes)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/inventory/items/1", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Equal(t, "g", body["display_unit"])
	require.InDelta(t, 1000.0, body["display_quantity"], 1e-9)

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/inventory/items/99", nil))
	require.Equal(t, http.StatusNotFound, rec.Code)

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/inventory/items/abc", nil))
	require.Equal(t, http.StatusBadRequest, rec.Code)

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/inventory/low-stock", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), `"items":[]`)
}

func TestSettleToleratesFloatNoise(t *testing.T) {
	// Summing fractional grams can overshoot the stock by a few ulps.
	take := 0.0066 + 1e-15

	left, ok := Settle(0.0066, take, false)
	require.True(t, ok)
	require.Zero(t, left)

	_, ok = Settle(0.0066, 0.0067, false)
	require.False(t, ok)

	left, ok = Settle(0.0066, 0.0067, true)
	require.True(t, ok)
	require.InDelta(t, -0.0001, left, 1e-12)
}

func TestDecrementSQLMatchesSettle(t *testing.T) {
	d := Decrement{ItemID: 7, Quantity: 0.5}

	sql, args := decrementSQL(d, false)
	require.Contains(t, sql, "quantity - $2 >= $3")
	require.Contains(t, sql, "GREATEST(quantity - $2, 0)")
	require.Equal(t, []any{int64(7), 0.5, -units.Epsilon}, args)

	sql, args = decrementSQL(d, true)
	require.NotContains(t, sql, "$3")
	require.Len(t, args, 2)
}
