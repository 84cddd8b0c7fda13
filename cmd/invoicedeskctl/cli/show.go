package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/invoicedesk/invoicedesk/internal/billing"
	"github.com/invoicedesk/invoicedesk/internal/invoices"
)

// ExitOverdue is returned by ShowCommand when the invoice is overdue, so scripts can
// branch on it without parsing output.
const ExitOverdue = 10

// InvoiceViewer loads a computed invoice; *invoices.Service satisfies it.
type InvoiceViewer interface {
	View(ctx context.Context, id string) (invoices.InvoiceView, error)
}

// ShowOptions defines available flags for the show command.
type ShowOptions struct {
	ID         string
	JSONOutput bool
	Stdout     io.Writer
	Stderr     io.Writer
}

// ShowCommand prints one invoice and returns the process exit code.
func ShowCommand(ctx context.Context, viewer InvoiceViewer, opts ShowOptions) int {
	if opts.Stdout == nil {
		opts.Stdout = os.Stdout
	}
	if opts.Stderr == nil {
		opts.Stderr = os.Stderr
	}
	id := strings.TrimSpace(opts.ID)
	if id == "" {
		_, _ = fmt.Fprintln(opts.Stderr, "show: invoice id is required")
		return 1
	}
	view, err := viewer.View(ctx, id)
	if err != nil {
		_, _ = fmt.Fprintf(opts.Stderr, "show: %v\n", err)
		return 1
	}
	if opts.JSONOutput {
		if err := json.NewEncoder(opts.Stdout).Encode(view); err != nil {
			_, _ = fmt.Fprintf(opts.Stderr, "show: encode json: %v\n", err)
			return 1
		}
	} else {
		renderHuman(opts.Stdout, view)
	}
	if view.Presentation.Status == billing.StatusOverdue {
		return ExitOverdue
	}
	return 0
}

func renderHuman(out io.Writer, view invoices.InvoiceView) {
	inv := view.Invoice
	_, _ = fmt.Fprintf(out, "Invoice %s [%s]\n", inv.Number, view.Presentation.Watermark)
	if inv.ClientName != "" {
		_, _ = fmt.Fprintf(out, "Client: %s\n", inv.ClientName)
	}
	_, _ = fmt.Fprintf(out, "Issued %s, due %s\n\n", view.CreatedOn, view.DueOn)
	for _, line := range view.Lines {
		_, _ = fmt.Fprintf(out, "  %-30s %5d x %14s = %14s\n", line.Name, line.Quantity, line.Rate, line.Amount)
	}
	_, _ = fmt.Fprintf(out, "\n  %-30s %37s\n", "Subtotal", view.Amounts.Subtotal)
	for _, tax := range view.Taxes {
		_, _ = fmt.Fprintf(out, "  %-30s %37s\n", tax.Name+" ("+tax.Rate+")", tax.Amount)
	}
	if view.Amounts.Discount != "" {
		_, _ = fmt.Fprintf(out, "  %-30s %37s\n", "Discount", "-"+view.Amounts.Discount)
	}
	_, _ = fmt.Fprintf(out, "  %-30s %37s\n", "Total due", view.Amounts.TotalDue)
	_, _ = fmt.Fprintf(out, "  %-30s %37s\n", "Balance due", view.Amounts.BalanceDue)
}
