package sales

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sort"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/counterpos/counterpos/internal/platform/cache"
	"github.com/counterpos/counterpos/internal/platform/httpx"
	"github.com/counterpos/counterpos/internal/units"
	"github.com/counterpos/counterpos/report"
)

// ============================================================================
// MEMORY REPOSITORY
// ============================================================================

type memoryRepo struct {
	records    []Record
	rangeCalls int
	cancelErr  error
}

func (m *memoryRepo) ListTransactions(_ context.Context, filter ListFilter, limit, offset int) ([]Record, int, error) {
	opened := map[uuid.UUID]time.Time{}
	for _, rec := range m.records {
		if rec.CreatedAt.Before(filter.From) || !rec.CreatedAt.Before(filter.To) {
			continue
		}
		if t, ok := opened[rec.TransactionID]; !ok || rec.CreatedAt.Before(t) {
			opened[rec.TransactionID] = rec.CreatedAt
		}
	}
	ids := make([]uuid.UUID, 0, len(opened))
	for id := range opened {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return opened[ids[i]].After(opened[ids[j]]) })
	total := len(ids)
	if offset >= len(ids) {
		return nil, total, nil
	}
	ids = ids[offset:]
	if len(ids) > limit {
		ids = ids[:limit]
	}
	var out []Record
	for _, id := range ids {
		for _, rec := range m.records {
			if rec.TransactionID == id {
				out = append(out, rec)
			}
		}
	}
	return out, total, nil
}

func (m *memoryRepo) GetTransaction(_ context.Context, id uuid.UUID) ([]Record, error) {
	var out []Record
	for _, rec := range m.records {
		if rec.TransactionID == id {
			out = append(out, rec)
		}
	}
	if len(out) == 0 {
		return nil, ErrTransactionNotFound
	}
	return out, nil
}

func (m *memoryRepo) CancelTransaction(_ context.Context, id uuid.UUID, reason string, at time.Time) (int64, error) {
	if m.cancelErr != nil {
		return 0, m.cancelErr
	}
	var n int64
	for i := range m.records {
		rec := &m.records[i]
		if rec.TransactionID != id || rec.Cancelled {
			continue
		}
		rec.Cancelled = true
		rec.CancelledAt = &at
		rec.CancelReason = reason
		n++
	}
	return n, nil
}

func (m *memoryRepo) ListRange(_ context.Context, from, to time.Time) ([]Record, error) {
	m.rangeCalls++
	var out []Record
	for _, rec := range m.records {
		if !rec.CreatedAt.Before(from) && rec.CreatedAt.Before(to) {
			out = append(out, rec)
		}
	}
	return out, nil
}

type stubRenderer struct {
	got report.Receipt
	err error
}

func (s *stubRenderer) RenderReceipt(_ context.Context, r report.Receipt) ([]byte, error) {
	s.got = r
	return []byte("%PDF"), s.err
}

// ============================================================================
// FIXTURES
// ============================================================================

var (
	day1 = time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	day2 = time.Date(2026, 3, 2, 15, 0, 0, 0, time.UTC)
	txA  = uuid.MustParse("00000000-0000-0000-0000-00000000000a")
	txB  = uuid.MustParse("00000000-0000-0000-0000-00000000000b")
	txC  = uuid.MustParse("00000000-0000-0000-0000-00000000000c")
)

func line(tx uuid.UUID, at time.Time, name string, qty float64, cost, price string, method string) Record {
	p := decimal.RequireFromString(price)
	return Record{
		TransactionID: tx,
		Kind:          "recipe",
		ProductName:   name,
		Quantity:      qty,
		UnitType:      units.Quantity,
		Cost:          decimal.RequireFromString(cost),
		SellingPrice:  p,
		Total:         p.Mul(decimal.NewFromFloat(qty)),
		PaymentMethod: method,
		CustomerType:  "Walk-in",
		CreatedAt:     at,
	}
}

func fixtureRecords() []Record {
	return []Record{
		line(txA, day1, "A", 2, "0.4", "2", "Cash"),
		line(txA, day1, "B", 1, "0.6", "3", "Cash"),
		line(txB, day1.Add(time.Hour), "A", 1, "0.4", "2", "Card"),
		line(txC, day2, "B", 2, "0.6", "3", "Cash"),
	}
}

func newTestService(t *testing.T, repo *memoryRepo) (*Service, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	svc := NewService(repo, cache.NewVersioned(client, "counterpos:reports", time.Minute), &stubRenderer{},
		slog.New(slog.NewTextHandler(io.Discard, nil)), Options{StoreName: "Corner Bakery"})
	svc.clock = func() time.Time { return day2.Add(2 * time.Hour) }
	return svc, mr
}

// ============================================================================
// SUMMARY
// ============================================================================

func TestSummarizeSkipsCancelledAndSplitsByDay(t *testing.T) {
	records := fixtureRecords()
	records[3].Cancelled = true

	sum := Summarize(records, day1, day2, time.UTC)

	require.Len(t, sum.Days, 1)
	assert.Equal(t, "2026-03-01", sum.Days[0].Date)
	assert.Equal(t, "9", sum.Revenue.String())
	assert.Equal(t, "1.8", sum.Cost.String())
	assert.Equal(t, "7.2", sum.GrossProfit.String())
	assert.Equal(t, 2, sum.Transactions)
	require.Len(t, sum.PaymentMethods, 2)
	assert.Equal(t, "Card", sum.PaymentMethods[0].PaymentMethod)
	assert.Equal(t, 1, sum.PaymentMethods[1].Transactions)
}

func TestSummaryIsCachedUntilBumped(t *testing.T) {
	repo := &memoryRepo{records: fixtureRecords()}
	svc, _ := newTestService(t, repo)
	ctx := context.Background()

	first, err := svc.Summary(ctx, day1, day2)
	require.NoError(t, err)
	assert.Equal(t, "15", first.Revenue.String())
	require.Len(t, first.Days, 2)

	_, err = svc.Summary(ctx, day1, day2)
	require.NoError(t, err)
	assert.Equal(t, 1, repo.rangeCalls)

	svc.InvalidateReports(ctx)
	_, err = svc.Summary(ctx, day1, day2)
	require.NoError(t, err)
	assert.Equal(t, 2, repo.rangeCalls)
}

func TestSummaryRejectsInvertedRange(t *testing.T) {
	svc, _ := newTestService(t, &memoryRepo{})
	_, err := svc.Summary(context.Background(), day2, day1)
	require.ErrorIs(t, err, ErrInvalidRange)
	require.ErrorIs(t, err, httpx.ErrValidation)
}

// ============================================================================
// TRANSACTIONS
// ============================================================================

func TestListTransactionsGroupsLinesNewestFirst(t *testing.T) {
	svc, _ := newTestService(t, &memoryRepo{records: fixtureRecords()})

	txs, page, err := svc.ListTransactions(context.Background(), ListFilter{PerPage: 2})
	require.NoError(t, err)
	assert.Equal(t, 3, page.Total)
	assert.Equal(t, 2, page.TotalPages)
	require.Len(t, txs, 2)
	assert.Equal(t, txC, txs[0].ID)
	assert.Equal(t, txB, txs[1].ID)

	txs, _, err = svc.ListTransactions(context.Background(), ListFilter{Page: 2, PerPage: 2})
	require.NoError(t, err)
	require.Len(t, txs, 1)
	assert.Equal(t, txA, txs[0].ID)
	assert.Len(t, txs[0].Lines, 2)
	assert.Equal(t, "7", txs[0].Total.String())
}

func TestCancelMarksEveryLineOnce(t *testing.T) {
	repo := &memoryRepo{records: fixtureRecords()}
	svc, mr := newTestService(t, repo)
	ctx := context.Background()
	_, err := svc.Summary(ctx, day1, day1)
	require.NoError(t, err)

	tx, err := svc.Cancel(ctx, txA, "  wrong order ")
	require.NoError(t, err)
	assert.True(t, tx.Cancelled)
	for _, l := range tx.Lines {
		assert.True(t, l.Cancelled)
		assert.Equal(t, "wrong order", l.CancelReason)
	}
	ver, err := mr.Get("counterpos:reports:version")
	require.NoError(t, err)
	assert.Equal(t, "2", ver)

	_, err = svc.Cancel(ctx, txA, "")
	require.ErrorIs(t, err, ErrAlreadyCancelled)

	_, err = svc.Cancel(ctx, uuid.New(), "")
	require.ErrorIs(t, err, ErrTransactionNotFound)
}

func TestCancelSurfacesRepositoryError(t *testing.T) {
	repo := &memoryRepo{records: fixtureRecords(), cancelErr: errors.New("db down")}
	svc, _ := newTestService(t, repo)
	_, err := svc.Cancel(context.Background(), txB, "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "db down")
}

func TestReceiptUsesTransactionLines(t *testing.T) {
	repo := &memoryRepo{records: fixtureRecords()}
	svc, _ := newTestService(t, repo)
	renderer := svc.receipts.(*stubRenderer)

	pdf, err := svc.Receipt(context.Background(), txA)
	require.NoError(t, err)
	assert.Equal(t, "%PDF", string(pdf))
	assert.Equal(t, "Corner Bakery", renderer.got.StoreName)
	require.Len(t, renderer.got.Lines, 2)
	assert.Equal(t, "pcs", renderer.got.Lines[0].Unit)
}

// ============================================================================
// HANDLER
// ============================================================================

func newRouter(t *testing.T, repo *memoryRepo) http.Handler {
	svc, _ := newTestService(t, repo)
	r := chi.NewRouter()
	r.Route("/sales", NewHandler(slog.New(slog.NewTextHandler(io.Discard, nil)), svc).MountRoutes)
	return r
}

func TestHandlerEndpoints(t *testing.T) {
	router := newRouter(t, &memoryRepo{records: fixtureRecords()})

	cases := []struct {
		name   string
		method string
		path   string
		body   string
		status int
		want   string
	}{
		{"list", http.MethodGet, "/sales/transactions?per_page=1", "", http.StatusOK, `"total":3`},
		{"list bad date", http.MethodGet, "/sales/transactions?from=yesterday", "", http.StatusBadRequest, "YYYY-MM-DD"},
		{"show", http.MethodGet, "/sales/transactions/" + txA.String(), "", http.StatusOK, `"product_name":"B"`},
		{"show bad id", http.MethodGet, "/sales/transactions/nope", "", http.StatusNotFound, ""},
		{"summary", http.MethodGet, "/sales/summary?from=2026-03-01&to=2026-03-02", "", http.StatusOK, `"revenue":"15"`},
		{"summary inverted", http.MethodGet, "/sales/summary?from=2026-03-02&to=2026-03-01", "", http.StatusBadRequest, ""},
		{"cancel", http.MethodPost, "/sales/transactions/" + txB.String() + "/cancel", `{"reason":"void"}`, http.StatusOK, `"cancelled":true`},
		{"cancel again", http.MethodPost, "/sales/transactions/" + txB.String() + "/cancel", "", http.StatusConflict, ""},
		{"receipt", http.MethodGet, "/sales/transactions/" + txA.String() + "/receipt.pdf", "", http.StatusOK, "%PDF"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			req := httptest.NewRequest(tc.method, tc.path, strings.NewReader(tc.body))
			router.ServeHTTP(rec, req)
			require.Equal(t, tc.status, rec.Code, rec.Body.String())
			if tc.want != "" {
				assert.Contains(t, rec.Body.String(), tc.want)
			}
		})
	}
}
