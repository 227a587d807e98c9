package recipes

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/counterpos/counterpos/internal/inventory"
	"github.com/counterpos/counterpos/internal/units"
)

type memoryRepo struct {
	products map[int64]Product
}

func (r *memoryRepo) List(context.Context) ([]Product, error) {
	out := make([]Product, 0, len(r.products))
	for _, p := range r.products {
		out = append(out, p)
	}
	return out, nil
}

func (r *memoryRepo) Get(_ context.Context, id int64) (Product, error) {
	p, ok := r.products[id]
	if !ok {
		return Product{}, ErrProductNotFound
	}
	return p, nil
}

type staticItems []inventory.Item

func (s staticItems) List(context.Context, inventory.ListFilter) ([]inventory.Item, error) {
	return s, nil
}

func fixtures() (*memoryRepo, staticItems) {
	items := staticItems{
		{ID: 1, Name: "Flour", Unit: units.Weight, Quantity: 1, CostPerBaseUnit: decimal.RequireFromString("0.002")},
		{ID: 2, Name: "Eggs", Unit: units.Quantity, Quantity: 12, CostPerBaseUnit: decimal.RequireFromString("0.30")},
	}
	repo := &memoryRepo{products: map[int64]Product{
		10: {ID: 10, Name: "Bread", SellingPrice: decimal.RequireFromString("2.50"), Lines: []Line{
			{ID: 1, ProductID: 10, IngredientID: 1, QuantityPerUnit: 200},
			{ID: 2, ProductID: 10, IngredientID: 2, QuantityPerUnit: 2},
		}},
		11: {ID: 11, Name: "Mystery", SellingPrice: decimal.RequireFromString("1"), Lines: []Line{
			{ID: 3, ProductID: 11, IngredientID: 99, QuantityPerUnit: 1},
		}},
	}}
	return repo, items
}

func TestRollUpSumsLines(t *testing.T) {
	_, items := fixtures()
	lines := []Line{{IngredientID: 1, QuantityPerUnit: 200}, {IngredientID: 2, QuantityPerUnit: 2}}

	breakdown, err := RollUp(lines, IndexItems(items))
	require.NoError(t, err)
	require.Len(t, breakdown.Lines, 2)
	require.True(t, breakdown.Lines[0].Cost.Equal(decimal.RequireFromString("0.4")), breakdown.Lines[0].Cost.String())
	require.Equal(t, "g", breakdown.Lines[0].Unit)
	require.True(t, breakdown.Total.Equal(decimal.RequireFromString("1.0")), breakdown.Total.String())
}

func TestRollUpRejectsBadLines(t *testing.T) {
	_, items := fixtures()
	_, err := RollUp([]Line{{IngredientID: 99, QuantityPerUnit: 1}}, IndexItems(items))
	require.ErrorIs(t, err, ErrUnknownIngredient)

	_, err = RollUp([]Line{{IngredientID: 1, QuantityPerUnit: 0}}, IndexItems(items))
	require.ErrorIs(t, err, ErrInvalidLineQuantity)
}

func TestServiceCostIncludesMargin(t *testing.T) {
	repo, items := fixtures()
	svc := NewService(repo, items)

	product, cost, err := svc.Cost(context.Background(), 10)
	require.NoError(t, err)
	require.Equal(t, "Bread", product.Name)
	require.True(t, cost.Margin.Equal(decimal.RequireFromString("1.5")), cost.Margin.String())

	_, _, err = svc.Cost(context.Background(), 404)
	require.ErrorIs(t, err, ErrProductNotFound)
}

func TestServiceCostFollowsCurrentIngredientCost(t *testing.T) {
	repo, items := fixtures()
	svc := NewService(repo, items)
	_, before, err := svc.Cost(context.Background(), 10)
	require.NoError(t, err)

	items[0].CostPerBaseUnit = decimal.RequireFromString("0.003")
	_, after, err := svc.Cost(context.Background(), 10)
	require.NoError(t, err)
	require.True(t, after.Total.GreaterThan(before.Total))
}

func newTestRouter() http.Handler {
	repo, items := fixtures()
	h := NewHandler(slog.New(slog.NewTextHandler(io.Discard, nil)), NewService(repo, items))
	r := chi.NewRouter()
	r.Route("/recipes", h.MountRoutes)
	return r
}

func TestHandlerCostPreview(t *testing.T) {
	router := newTestRouter()
	body := `{"selling_price":"3","lines":[{"ingredient_id":1,"quantity_per_unit":500}]}`
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/recipes/cost-preview", bytes.NewBufferString(body)))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var got CostBreakdown
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	require.True(t, got.Total.Equal(decimal.NewFromInt(1)))
	require.True(t, got.Margin.Equal(decimal.NewFromInt(2)))
}

func TestHandlerCostPreviewValidation(t *testing.T) {
	router := newTestRouter()

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/recipes/cost-preview", bytes.NewBufferString(`{"lines":[]}`)))
	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Contains(t, rec.Body.String(), `"lines"`)

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/recipes/cost-preview",
		bytes.NewBufferString(`{"lines":[{"ingredient_id":99,"quantity_per_unit":1}]}`)))
	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Contains(t, rec.Body.String(), "unknown ingredient")
}

func TestHandlerGetProduct(t *testing.T) {
	router := newTestRouter()

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/recipes/products/10", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), `"cost"`)

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/recipes/products/11", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	require.NotContains(t, rec.Body.String(), `"cost"`)

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/recipes/products/12", nil))
	require.Equal(t, http.StatusNotFound, rec.Code)
}
