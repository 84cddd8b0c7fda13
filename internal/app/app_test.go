package app

import (
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/invoicedesk/invoicedesk/internal/billing"
	"github.com/invoicedesk/invoicedesk/internal/observability"
	"github.com/invoicedesk/invoicedesk/jobs"
	"github.com/invoicedesk/invoicedesk/report"
)

func TestLoadConfigDefaults(t *testing.T) {
	cfg, err := LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, SourceAPI, cfg.SourceDriver)
	assert.Equal(t, billing.TaxModeInvoice, cfg.InvoiceTaxMode())
	assert.Equal(t, billing.FormatConfig{Locale: "en", Decimals: 2}, cfg.FormatConfig())
	assert.Equal(t, "0 1 * * *", cfg.OverdueSweepCron)
	assert.Equal(t, 24*time.Hour, cfg.DraftTTL)
	assert.False(t, cfg.IsProduction())
}

func TestLoadConfigRejectsBadValues(t *testing.T) {
	cases := map[string][2]string{
		"driver":   {"SOURCE_DRIVER", "sqlite"},
		"tax mode": {"TAX_MODE", "line"},
		"decimals": {"CURRENCY_DECIMALS", "9"},
	}
	for name, env := range cases {
		t.Run(name, func(t *testing.T) {
			t.Setenv(env[0], env[1])
			_, err := LoadConfig()
			assert.Error(t, err)
		})
	}
}

func TestLoadConfigPostgres(t *testing.T) {
	t.Setenv("SOURCE_DRIVER", " Postgres ")
	t.Setenv("TAX_MODE", "item")
	cfg, err := LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, SourcePostgres, cfg.SourceDriver)
	assert.Equal(t, billing.TaxModeItem, cfg.InvoiceTaxMode())
}

func TestTestModeFlag(t *testing.T) {
	t.Setenv(testModeEnv, "1")
	RefreshTestMode()
	assert.True(t, InTestMode())
	t.Setenv(testModeEnv, "0")
	RefreshTestMode()
	assert.False(t, InTestMode())
}

func newRouter(t *testing.T, limit int) http.Handler {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewRouter(RouterParams{
		Logger:        logger,
		Config:        &Config{AppEnv: "production", AppRequestTimeout: time.Second},
		ReportHandler: report.NewHandler(nil, logger),
		JobHandler:    jobs.NewHandler(nil, nil, logger),
		Metrics:       observability.NewMetrics(),
		RateLimit:     limit,
	})
}

func get(h http.Handler, path string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	req.Header.Set("X-Forwarded-Proto", "https")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestRouterRoutes(t *testing.T) {
	h := newRouter(t, 0)

	rec := get(h, "/healthz")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
	assert.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))
	assert.Equal(t, "DENY", rec.Header().Get("X-Frame-Options"))

	rec = get(h, "/report/ping")
	assert.JSONEq(t, `{"status":"local"}`, rec.Body.String())

	rec = get(h, "/jobs/health")
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = get(h, "/static/css/app.css")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "public, max-age=3600", rec.Header().Get("Cache-Control"))
	assert.True(t, strings.HasPrefix(rec.Header().Get("Content-Type"), "text/css"))

	rec = get(h, "/metrics")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "invoicedesk_http_requests_total")
}

func TestRouterRateLimit(t *testing.T) {
	h := newRouter(t, 2)
	assert.Equal(t, http.StatusOK, get(h, "/healthz").Code)
	assert.Equal(t, http.StatusOK, get(h, "/healthz").Code)
	assert.Equal(t, http.StatusTooManyRequests, get(h, "/healthz").Code)
}
