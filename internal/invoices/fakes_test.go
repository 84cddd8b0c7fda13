package invoices

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"

	"github.com/invoicedesk/invoicedesk/internal/billing"
	"github.com/invoicedesk/invoicedesk/internal/catalog"
	"github.com/invoicedesk/invoicedesk/internal/shared"
)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

type memorySource struct {
	mu       sync.Mutex
	invoices map[string]billing.Invoice
	products []billing.Product
	saveErr  error
	saves    int
	statuses map[string]billing.Status
}

func newMemorySource(invs ...billing.Invoice) *memorySource {
	m := &memorySource{
		invoices: map[string]billing.Invoice{},
		statuses: map[string]billing.Status{},
		products: []billing.Product{{
			ID:    "p-1",
			Name:  "Support retainer",
			Rate:  dec("10000"),
			Taxes: []billing.TaxTemplate{billing.NewTaxTemplate("svc", "Service levy", dec("7.5"))},
		}},
	}
	for _, inv := range invs {
		m.invoices[inv.ID] = inv
	}
	return m
}

func (m *memorySource) GetInvoice(ctx context.Context, id string) (billing.Invoice, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	inv, ok := m.invoices[id]
	if !ok {
		return billing.Invoice{}, fmt.Errorf("invoice %s: %w", id, shared.ErrNotFound)
	}
	return inv.Clone(), nil
}

func (m *memorySource) ListInvoices(ctx context.Context, filter ListFilter) (Page, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []billing.Invoice
	for _, id := range sortedKeys(m.invoices) {
		inv := m.invoices[id]
		if filter.Status != "" && billing.ParseStatus(inv.Status) != filter.Status {
			continue
		}
		if !filter.DueBefore.IsZero() && !inv.DueAt.Before(filter.DueBefore) {
			continue
		}
		out = append(out, inv.Clone())
	}
	total := len(out)
	if filter.Limit > 0 {
		start := 0
		if filter.Page > 1 {
			start = min((filter.Page-1)*filter.Limit, total)
		}
		out = out[start:min(start+filter.Limit, total)]
	}
	return Page{Invoices: out, Total: total}, nil
}

func (m *memorySource) SaveInvoice(ctx context.Context, inv billing.Invoice) (billing.Invoice, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.saveErr != nil {
		return billing.Invoice{}, m.saveErr
	}
	m.saves++
	m.invoices[inv.ID] = inv.Clone()
	return inv.Clone(), nil
}

func (m *memorySource) UpdateStatus(ctx context.Context, id string, status billing.Status) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	inv, ok := m.invoices[id]
	if !ok {
		return shared.ErrNotFound
	}
	if id == "broken" {
		return errors.New("write failed")
	}
	inv.Status = string(status)
	m.invoices[id] = inv
	m.statuses[id] = status
	return nil
}

func (m *memorySource) ListProducts(ctx context.Context) ([]billing.Product, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]billing.Product(nil), m.products...), nil
}

func (m *memorySource) SaveProduct(ctx context.Context, p billing.Product) (billing.Product, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.products = append(m.products, p)
	return p, nil
}

func (m *memorySource) ListClients(ctx context.Context) ([]catalog.Client, error) {
	return []catalog.Client{{ID: "c-1", Name: "Acme Ltd"}}, nil
}

func sortedKeys(m map[string]billing.Invoice) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	for i := 1; i < len(keys); i++ {
		for j := i; j > 0 && keys[j] < keys[j-1]; j-- {
			keys[j], keys[j-1] = keys[j-1], keys[j]
		}
	}
	return keys
}

func sampleInvoice() billing.Invoice {
	return billing.Invoice{
		ID:         "inv-7",
		Number:     "INV-0007",
		Status:     "unpaid",
		Currency:   "NGN",
		ClientName: "Acme Ltd",
		CreatedAt:  time.Date(2024, 1, 10, 0, 0, 0, 0, time.UTC),
		DueAt:      time.Date(2024, 2, 10, 0, 0, 0, 0, time.UTC),
		Items: []billing.LineItem{
			{ID: "1", Name: "Design", Quantity: 2, Rate: dec("100000")},
			{ID: "2", Name: "Hosting", Quantity: 5, Rate: dec("50000")},
		},
		AppliedTaxes: []billing.AppliedTax{
			{ID: "vat", Name: "VAT", Rate: dec("7.5")},
			{ID: "wht", Name: "WHT", Rate: dec("1")},
		},
	}
}

type fixture struct {
	source *memorySource
	redis  *miniredis.Miniredis
	drafts *DraftStore
	svc    *Service
}

func newFixture(t *testing.T, invs ...billing.Invoice) *fixture {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	src := newMemorySource(invs...)
	drafts := NewDraftStore(client, time.Hour)
	products := catalog.NewService(src, nil, time.Minute, nil, nil)
	svc := NewService(src, products, drafts, Options{})
	return &fixture{source: src, redis: mr, drafts: drafts, svc: svc}
}
