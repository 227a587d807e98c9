package app

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	_ "github.com/counterpos/counterpos/internal/testing/guard"

	"github.com/counterpos/counterpos/internal/observability"
)

func TestGuardEnablesTestMode(t *testing.T) {
	RefreshTestMode()
	assert.True(t, InTestMode())
}

func TestLoadConfigDefaultsAndDotEnv(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte("STORE_NAME=Corner Bakery\nCART_TTL=2h\n"), 0o600))
	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(wd) })
	t.Setenv("CART_TTL", "3h")
	t.Setenv("STORE_NAME", "")
	require.NoError(t, os.Unsetenv("STORE_NAME"))

	cfg, err := LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, "Corner Bakery", cfg.StoreName)
	assert.Equal(t, 3*time.Hour, cfg.CartTTL)
	assert.Equal(t, 10*time.Minute, cfg.ReportCacheTTL)
	assert.Equal(t, "*/30 * * * *", cfg.LowStockCron)
	assert.Equal(t, 120, cfg.RateLimitPerMinute)
	assert.False(t, cfg.AllowNegativeStock)
}

func TestConfigValidate(t *testing.T) {
	cfg := Config{PGDSN: "postgres://x", CartTTL: time.Hour, RateLimitPerMinute: 1}
	require.NoError(t, cfg.Validate())

	cfg.CartTTL = 0
	require.Error(t, cfg.Validate())

	cfg = Config{CartTTL: time.Hour, RateLimitPerMinute: 1}
	require.Error(t, cfg.Validate())
}

func TestNewLoggerJSON(t *testing.T) {
	var buf bytes.Buffer
	newLogger(&Config{LogFormat: "json", AppEnv: "production"}, &buf).Info("hello")
	assert.Contains(t, buf.String(), `"msg":"hello"`)
}

type pingFunc func(context.Context) error

func (f pingFunc) Ping(ctx context.Context) error { return f(ctx) }

func TestRouterHealthAndFallbacks(t *testing.T) {
	cfg := &Config{RateLimitPerMinute: 100, AppRequestTimeout: time.Second}
	healthy := map[string]Pinger{"postgres": pingFunc(func(context.Context) error { return nil })}
	router := NewRouter(RouterParams{
		Logger:  newLogger(cfg, &bytes.Buffer{}),
		Config:  cfg,
		Metrics: observability.NewMetrics(),
		Health:  healthy,
	})

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok","components":{"postgres":"ok"}}`, rec.Body.String())
	assert.Equal(t, "DENY", rec.Header().Get("X-Frame-Options"))

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/nowhere", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Type"), "json")

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "counterpos_http_requests_total")
}

func TestRouterHealthDegraded(t *testing.T) {
	cfg := &Config{RateLimitPerMinute: 100}
	router := NewRouter(RouterParams{
		Logger: newLogger(cfg, &bytes.Buffer{}),
		Config: cfg,
		Health: map[string]Pinger{"redis": pingFunc(func(context.Context) error { return errors.New("refused") })},
	})
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Contains(t, rec.Body.String(), `"redis":"down"`)
}
