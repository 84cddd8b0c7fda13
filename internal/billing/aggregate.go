package billing

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// TaxMode selects where the invoice's own tax rules are applied. In both modes the
// per-line taxes are folded into invoice-level tax lines before aggregation, so every
// tax shown on a line is also billed.
type TaxMode string

const (
	// TaxModeInvoice applies the invoice's own tax rules once, to the subtotal.
	TaxModeInvoice TaxMode = "invoice"
	// TaxModeItem applies the invoice's own tax rules to every line amount and rounds
	// per line before summing.
	TaxModeItem TaxMode = "item"
)

// ParseTaxMode accepts "invoice" or "item"; empty means TaxModeInvoice.
func ParseTaxMode(raw string) (TaxMode, error) {
	switch TaxMode(strings.ToLower(strings.TrimSpace(raw))) {
	case "", TaxModeInvoice:
		return TaxModeInvoice, nil
	case TaxModeItem:
		return TaxModeItem, nil
	default:
		return "", fmt.Errorf("billing: unknown tax mode %q", raw)
	}
}

// Totals is the aggregate of an invoice. Discount is the discount actually applied,
// after clamping.
type Totals struct {
	Subtotal       decimal.Decimal `json:"subtotal"`
	TotalTaxAmount decimal.Decimal `json:"totalTaxAmount"`
	Discount       decimal.Decimal `json:"discount"`
	DiscountCapped bool            `json:"discountCapped"`
	TotalDue       decimal.Decimal `json:"totalDue"`
}

// Subtotal sums the line amounts.
func Subtotal(items []LineItem) decimal.Decimal {
	total := decimal.Zero
	for _, item := range items {
		total = total.Add(item.Amount)
	}
	return total
}

// ApplyInvoiceTaxes applies invoice-level tax rules to the subtotal.
func ApplyInvoiceTaxes(subtotal decimal.Decimal, templates []TaxTemplate) ([]AppliedTax, error) {
	return applyTaxes(subtotal, templates)
}

// FoldItemTaxes merges the taxes of every line into one invoice-level line per tax rule,
// keyed by id (name when the id is empty), in first-seen order.
func FoldItemTaxes(items []LineItem) []AppliedTax {
	var all []AppliedTax
	for _, item := range items {
		all = append(all, item.Taxes...)
	}
	return foldTaxes(all)
}

// foldTaxes merges taxes sharing a rule, summing bases and amounts.
func foldTaxes(taxes []AppliedTax) []AppliedTax {
	var out []AppliedTax
	index := make(map[string]int)
	for _, tax := range taxes {
		key := tax.ID
		if key == "" {
			key = "name:" + tax.Name
		}
		i, ok := index[key]
		if !ok {
			index[key] = len(out)
			out = append(out, AppliedTax{
				ID:     tax.ID,
				Name:   tax.Name,
				Type:   tax.Type,
				Rate:   tax.Rate,
				Base:   tax.Base,
				Amount: tax.Amount,
			})
			continue
		}
		out[i].Base = out[i].Base.Add(tax.Base)
		out[i].Amount = out[i].Amount.Add(tax.Amount)
	}
	return out
}

// applyPerLine applies invoice-level templates to each line amount and folds the results.
func applyPerLine(items []LineItem, templates []TaxTemplate) ([]AppliedTax, error) {
	var all []AppliedTax
	for _, item := range items {
		taxes, err := applyTaxes(item.Amount, templates)
		if err != nil {
			return nil, err
		}
		all = append(all, taxes...)
	}
	if len(all) == 0 && len(templates) > 0 {
		// no lines yet: keep the rules visible with zero amounts
		return applyTaxes(decimal.Zero, templates)
	}
	return foldTaxes(all), nil
}

// Aggregate folds computed lines and invoice-level taxes into totals.
// A discount larger than subtotal plus tax is clamped so TotalDue never drops below zero.
func Aggregate(items []LineItem, taxes []AppliedTax, discount decimal.Decimal) (Totals, error) {
	if discount.IsNegative() {
		return Totals{}, invalid("discount", "must not be negative")
	}
	subtotal := Subtotal(items)
	totalTax := sumTaxes(taxes)
	gross := subtotal.Add(totalTax)

	applied := discount
	capped := false
	if applied.GreaterThan(gross) {
		applied = gross
		capped = true
	}
	return Totals{
		Subtotal:       subtotal,
		TotalTaxAmount: totalTax,
		Discount:       applied,
		DiscountCapped: capped,
		TotalDue:       gross.Sub(applied),
	}, nil
}

// Summary is the fully derived state of an invoice. InvoiceTaxes are the invoice's own
// rules as applied; Taxes adds the folded line taxes and is what Totals aggregates.
type Summary struct {
	Items        []LineItem   `json:"items"`
	InvoiceTaxes []AppliedTax `json:"invoiceTaxes"`
	Taxes        []AppliedTax `json:"appliedTaxes"`
	Totals       Totals       `json:"totals"`
}

// ComputeInvoice recomputes every line of inv and aggregates them under mode.
// inv is not modified.
func ComputeInvoice(inv Invoice, mode TaxMode) (Summary, error) {
	items := make([]LineItem, len(inv.Items))
	for i, src := range inv.Items {
		item := src.clone()
		if err := item.Recompute(); err != nil {
			return Summary{}, fmt.Errorf("item %d: %w", i, err)
		}
		items[i] = item
	}

	var (
		invoiceTaxes []AppliedTax
		err          error
	)
	templates := TemplatesOf(inv.AppliedTaxes)
	switch mode {
	case TaxModeItem:
		invoiceTaxes, err = applyPerLine(items, templates)
	default:
		invoiceTaxes, err = ApplyInvoiceTaxes(Subtotal(items), templates)
	}
	if err != nil {
		return Summary{}, err
	}
	taxes := foldTaxes(append(append([]AppliedTax(nil), invoiceTaxes...), FoldItemTaxes(items)...))

	totals, err := Aggregate(items, taxes, inv.DiscountValue())
	if err != nil {
		return Summary{}, err
	}
	return Summary{Items: items, InvoiceTaxes: invoiceTaxes, Taxes: taxes, Totals: totals}, nil
}

// ApplySummary writes derived values back onto inv. Only the invoice's own rules are
// stored in AppliedTaxes; line taxes stay on their lines.
func ApplySummary(inv *Invoice, s Summary) {
	inv.Items = s.Items
	inv.AppliedTaxes = s.InvoiceTaxes
	inv.Subtotal = s.Totals.Subtotal
	inv.TotalTaxAmount = s.Totals.TotalTaxAmount
	inv.TotalDue = s.Totals.TotalDue
}
