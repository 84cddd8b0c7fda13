// Package billing derives invoice totals and their presentation from raw invoice data.
//
// Everything in this package is pure: no I/O, no shared state. Callers feed it records
// fetched from the invoicing backend and render what comes out.
package billing

import (
	"time"

	"github.com/shopspring/decimal"
)

// TaxType classifies a tax rule. Only percentage-based taxes are computed.
type TaxType string

const (
	TaxTypePercentage TaxType = "percentage"
)

// TaxTemplate is a tax rule before it is applied to a base amount.
// Rate is a percentage; a template without a rate is malformed.
type TaxTemplate struct {
	ID   string              `json:"id"`
	Name string              `json:"name"`
	Type TaxType             `json:"type,omitempty"`
	Rate decimal.NullDecimal `json:"rate"`
}

// NewTaxTemplate builds a percentage template.
func NewTaxTemplate(id, name string, ratePercent decimal.Decimal) TaxTemplate {
	return TaxTemplate{
		ID:   id,
		Name: name,
		Type: TaxTypePercentage,
		Rate: decimal.NewNullDecimal(ratePercent),
	}
}

// AppliedTax is a tax rule applied to a taxable base.
type AppliedTax struct {
	ID     string          `json:"id"`
	Name   string          `json:"name"`
	Type   TaxType         `json:"type,omitempty"`
	Rate   decimal.Decimal `json:"rate"`
	Base   decimal.Decimal `json:"taxableAmount"`
	Amount decimal.Decimal `json:"taxAmount"`
}

// Template returns the rule the tax was applied from.
func (t AppliedTax) Template() TaxTemplate {
	return TaxTemplate{ID: t.ID, Name: t.Name, Type: t.Type, Rate: decimal.NewNullDecimal(t.Rate)}
}

// TemplatesOf strips computed amounts from applied taxes.
func TemplatesOf(taxes []AppliedTax) []TaxTemplate {
	if len(taxes) == 0 {
		return nil
	}
	out := make([]TaxTemplate, len(taxes))
	for i, t := range taxes {
		out[i] = t.Template()
	}
	return out
}

// LineItem is one billable row of an invoice.
type LineItem struct {
	ID             string          `json:"id"`
	Name           string          `json:"name"`
	Description    *string         `json:"description,omitempty"`
	ProductID      string          `json:"productId,omitempty"`
	Quantity       int64           `json:"quantity"`
	Rate           decimal.Decimal `json:"rate"`
	Amount         decimal.Decimal `json:"amount"`
	Taxes          []AppliedTax    `json:"taxes,omitempty"`
	TotalTaxAmount decimal.Decimal `json:"totalTaxAmount"`
	AmountWithTax  decimal.Decimal `json:"amountWithTax"`
}

// Invoice is the aggregate root as delivered by the invoicing backend.
// Status is kept raw; ParseStatus interprets it at presentation time.
type Invoice struct {
	ID             string              `json:"id"`
	Number         string              `json:"invoiceNumber"`
	Status         string              `json:"status"`
	Currency       string              `json:"currency"`
	ClientID       string              `json:"clientId,omitempty"`
	ClientName     string              `json:"clientName,omitempty"`
	CreatedAt      time.Time           `json:"creationDate"`
	DueAt          time.Time           `json:"dueDate"`
	Items          []LineItem          `json:"items"`
	AppliedTaxes   []AppliedTax        `json:"appliedTaxes"`
	Subtotal       decimal.Decimal     `json:"subtotal"`
	TotalTaxAmount decimal.Decimal     `json:"totalTaxAmount"`
	TotalDue       decimal.Decimal     `json:"totalDue"`
	Discount       decimal.NullDecimal `json:"discount"`
}

// DiscountValue returns the discount or zero when unset.
func (inv Invoice) DiscountValue() decimal.Decimal {
	if !inv.Discount.Valid {
		return decimal.Zero
	}
	return inv.Discount.Decimal
}

// Clone returns a deep copy; the draft and committed copies never share slices.
func (inv Invoice) Clone() Invoice {
	out := inv
	if inv.Items != nil {
		out.Items = make([]LineItem, len(inv.Items))
		for i, item := range inv.Items {
			out.Items[i] = item.clone()
		}
	}
	if inv.AppliedTaxes != nil {
		out.AppliedTaxes = append([]AppliedTax(nil), inv.AppliedTaxes...)
	}
	return out
}

func (li LineItem) clone() LineItem {
	out := li
	if li.Description != nil {
		desc := *li.Description
		out.Description = &desc
	}
	if li.Taxes != nil {
		out.Taxes = append([]AppliedTax(nil), li.Taxes...)
	}
	return out
}

// Product is a catalog entry used as a line item template.
type Product struct {
	ID       string          `json:"id"`
	Name     string          `json:"itemName"`
	Category string          `json:"category"`
	Rate     decimal.Decimal `json:"rate"`
	Taxes    []TaxTemplate   `json:"taxes"`
}
