package report

import (
	"context"
	"log/slog"

	"github.com/invoicedesk/invoicedesk/internal/invoices"
)

// HTMLRenderer turns a named template into markup.
type HTMLRenderer interface {
	RenderString(name string, data any) (string, error)
}

// InvoiceRenderer produces invoice PDFs. It prefers Gotenberg for a pixel-faithful copy of the
// HTML page and falls back to the local renderer when Gotenberg is unset or failing.
type InvoiceRenderer struct {
	gotenberg *Client
	html      HTMLRenderer
	logger    *slog.Logger
}

// NewInvoiceRenderer builds a renderer. gotenberg may be nil.
func NewInvoiceRenderer(gotenberg *Client, html HTMLRenderer, logger *slog.Logger) *InvoiceRenderer {
	if logger == nil {
		logger = slog.Default()
	}
	return &InvoiceRenderer{gotenberg: gotenberg, html: html, logger: logger}
}

// RenderInvoice renders one invoice view as PDF.
func (r *InvoiceRenderer) RenderInvoice(ctx context.Context, view invoices.InvoiceView) ([]byte, error) {
	if r.gotenberg != nil && r.html != nil {
		markup, err := r.html.RenderString("pages/invoice_print.html", view)
		if err == nil {
			pdf, err := r.gotenberg.RenderHTML(ctx, markup)
			if err == nil {
				return pdf, nil
			}
			r.logger.Warn("gotenberg render failed, using local renderer",
				slog.String("invoice_id", view.Invoice.ID), slog.Any("error", err))
		} else {
			r.logger.Error("render invoice html", slog.Any("error", err))
		}
	}
	return RenderLocal(view)
}
