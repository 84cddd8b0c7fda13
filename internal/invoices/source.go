package invoices

import (
	"context"
	"time"

	"github.com/invoicedesk/invoicedesk/internal/billing"
	"github.com/invoicedesk/invoicedesk/internal/catalog"
)

// ListFilter narrows invoice listings. Zero values mean "any".
type ListFilter struct {
	Status    billing.Status
	ClientID  string
	DueBefore time.Time
	Page      int
	Limit     int
}

// Page is one page of invoices plus the unpaged total.
type Page struct {
	Invoices []billing.Invoice `json:"data"`
	Total    int               `json:"total"`
}

// Source is the invoicing backend: the remote API or its Postgres mirror.
type Source interface {
	catalog.Source
	GetInvoice(ctx context.Context, id string) (billing.Invoice, error)
	ListInvoices(ctx context.Context, filter ListFilter) (Page, error)
	SaveInvoice(ctx context.Context, inv billing.Invoice) (billing.Invoice, error)
	UpdateStatus(ctx context.Context, id string, status billing.Status) error
}
