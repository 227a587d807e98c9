package cart

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-chi/chi/v5"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/counterpos/counterpos/internal/catalog"
	"github.com/counterpos/counterpos/internal/platform/httpx"
	"github.com/counterpos/counterpos/internal/shared"
)

type fixedCatalog struct{}

func (fixedCatalog) Snapshot(_ context.Context, kind catalog.Kind) (*catalog.Snapshot, error) {
	if kind == catalog.KindSimple {
		return shopSnapshot(), nil
	}
	return bakerySnapshot(), nil
}

type knownSelections struct{}

func (knownSelections) CheckSelection(_ context.Context, paymentMethodID, customerTypeID *int64, _ string) error {
	if paymentMethodID != nil && *paymentMethodID != 1 {
		return httpx.Wrap(httpx.ErrValidation, errors.New("unknown payment method"))
	}
	return nil
}

func newRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return mr, client
}

func newService(t *testing.T) (*Service, *miniredis.Miniredis, *redis.Client) {
	mr, client := newRedis(t)
	store := NewRedisStore(client, time.Hour)
	svc := NewService(store, fixedCatalog{}, knownSelections{}, shared.NewLocker(client, time.Second), slog.New(slog.NewTextHandler(io.Discard, nil)))
	return svc, mr, client
}

func TestRedisStoreRoundTripAndExpiry(t *testing.T) {
	mr, client := newRedis(t)
	store := NewRedisStore(client, time.Minute)
	ctx := context.Background()

	c := New("abc", catalog.KindRecipe, now)
	c.Lines = []Line{{ProductID: 10, Name: "A", Quantity: 2}}
	require.NoError(t, store.Save(ctx, c))

	got, err := store.Get(ctx, "abc")
	require.NoError(t, err)
	require.Equal(t, c.Lines, got.Lines)
	require.Equal(t, catalog.KindRecipe, got.Kind)

	mr.FastForward(2 * time.Minute)
	_, err = store.Get(ctx, "abc")
	require.ErrorIs(t, err, ErrCartNotFound)
}

func TestServiceFlourScenario(t *testing.T) {
	svc, _, _ := newService(t)
	ctx := context.Background()

	c, err := svc.Create(ctx, catalog.KindRecipe)
	require.NoError(t, err)
	_, err = svc.Add(ctx, c.ID, 10, 2)
	require.NoError(t, err)
	c, err = svc.Add(ctx, c.ID, 11, 1)
	require.NoError(t, err)

	kind, res, err := svc.Reservations(ctx, c.ID)
	require.NoError(t, err)
	require.Equal(t, catalog.KindRecipe, kind)
	require.Len(t, res, 2)

	view, err := svc.View(ctx, c)
	require.NoError(t, err)
	require.Equal(t, "7", view.Subtotal.String())
	require.Equal(t, 3.0, view.Lines[0].MaxQuantity)
	require.Equal(t, 2.0, view.Lines[1].MaxQuantity)

	_, err = svc.Add(ctx, c.ID, 99, 1)
	require.ErrorIs(t, err, httpx.ErrNotFound)
}

func TestServiceSelectAndClear(t *testing.T) {
	svc, _, _ := newService(t)
	ctx := context.Background()
	c, err := svc.Create(ctx, catalog.KindRecipe)
	require.NoError(t, err)

	bad := int64(5)
	_, err = svc.Select(ctx, c.ID, Selection{PaymentMethodID: &bad})
	require.ErrorIs(t, err, httpx.ErrValidation)

	pm := int64(1)
	c, err = svc.Select(ctx, c.ID, Selection{PaymentMethodID: &pm, DineOption: DineIn})
	require.NoError(t, err)
	require.Equal(t, DineIn, c.Selection.DineOption)

	c, err = svc.Clear(ctx, c.ID)
	require.NoError(t, err)
	require.Nil(t, c.Selection.PaymentMethodID)

	stored, err := svc.Get(ctx, c.ID)
	require.NoError(t, err)
	require.Equal(t, DineUnset, stored.Selection.DineOption)
}

func TestServiceRejectsWhileLocked(t *testing.T) {
	svc, _, client := newService(t)
	ctx := context.Background()
	c, err := svc.Create(ctx, catalog.KindRecipe)
	require.NoError(t, err)

	release, err := shared.NewLocker(client, time.Second).Acquire(ctx, shared.CartLockKey(c.ID))
	require.NoError(t, err)
	_, err = svc.Add(ctx, c.ID, 10, 1)
	require.ErrorIs(t, err, shared.ErrLocked)

	release()
	_, err = svc.Add(ctx, c.ID, 10, 1)
	require.NoError(t, err)
}

func newHandlerRouter(t *testing.T) http.Handler {
	svc, _, _ := newService(t)
	h := NewHandler(slog.New(slog.NewTextHandler(io.Discard, nil)), svc)
	r := chi.NewRouter()
	r.Route("/carts", h.MountRoutes)
	return r
}

func do(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	var reader io.Reader
	if body != "" {
		reader = bytes.NewBufferString(body)
	}
	h.ServeHTTP(rec, httptest.NewRequest(method, path, reader))
	return rec
}

func TestHandlerCartLifecycle(t *testing.T) {
	router := newHandlerRouter(t)

	rec := do(t, router, http.MethodPost, "/carts/", `{"kind":"recipe"}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var view View
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &view))
	base := "/carts/" + view.ID

	rec = do(t, router, http.MethodPut, base+"/lines/10", `{"quantity":5}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = do(t, router, http.MethodPut, base+"/lines/11", `{"quantity":1}`)
	require.Equal(t, http.StatusConflict, rec.Code)
	require.Contains(t, rec.Body.String(), "Insufficient Stock")

	rec = do(t, router, http.MethodPatch, base+"/lines/10", `{"quantity":1.5}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, router, http.MethodPatch, base+"/lines/10", `{"quantity":0}`)
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &view))
	require.Empty(t, view.Lines)

	rec = do(t, router, http.MethodDelete, base+"/lines/10", "")
	require.Equal(t, http.StatusNotFound, rec.Code)

	rec = do(t, router, http.MethodPut, base+"/selections", `{"dine_option":"drive"}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, router, http.MethodPut, base+"/selections", `{"payment_method_id":1,"dine_option":"takeout"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = do(t, router, http.MethodPost, base+"/clear", "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &view))
	require.Nil(t, view.Selection.PaymentMethodID)

	rec = do(t, router, http.MethodDelete, base, "")
	require.Equal(t, http.StatusNoContent, rec.Code)
	rec = do(t, router, http.MethodGet, base, "")
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHandlerCreateValidation(t *testing.T) {
	router := newHandlerRouter(t)
	rec := do(t, router, http.MethodPost, "/carts/", `{"kind":"rental"}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Contains(t, rec.Body.String(), `"kind"`)
}
