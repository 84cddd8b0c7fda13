package app

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/invoicedesk/invoicedesk/internal/invoices"
	"github.com/invoicedesk/invoicedesk/internal/observability"
)

func TestBuildServicesAgainstRemoteAPI(t *testing.T) {
	api := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Path {
		case "/products":
			_, _ = w.Write([]byte(`[{"id":"p-1","itemName":"Hosting","category":"services","rate":"100.00","taxes":[]}]`))
		case "/invoices":
			_, _ = w.Write([]byte(`{"data":[],"total":0}`))
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(api.Close)

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	cfg := &Config{
		SourceDriver:     SourceAPI,
		RemoteAPIURL:     api.URL,
		RemoteAPITimeout: time.Second,
		CatalogTTL:       time.Minute,
		DraftTTL:         time.Hour,
		CurrencyLocale:   "en",
		CurrencyDecimals: 2,
	}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	svc, err := BuildServices(context.Background(), cfg, logger, client, observability.NewMetrics())
	require.NoError(t, err)
	t.Cleanup(svc.Close)

	products, err := svc.Catalog.Products(context.Background())
	require.NoError(t, err)
	require.Len(t, products, 1)
	assert.Equal(t, "Hosting", products[0].Name)

	list, err := svc.Invoices.List(context.Background(), invoices.ListFilter{})
	require.NoError(t, err)
	assert.Empty(t, list.Invoices)

	_, err = svc.Invoices.View(context.Background(), "missing")
	assert.Error(t, err)
}

func TestBuildServicesRejectsUnknownDriver(t *testing.T) {
	_, err := BuildServices(context.Background(), &Config{SourceDriver: "csv"}, slog.Default(), nil, nil)
	assert.Error(t, err)
}
