package invoices

import (
	"github.com/shopspring/decimal"

	"github.com/invoicedesk/invoicedesk/internal/billing"
	"github.com/invoicedesk/invoicedesk/internal/shared"
)

// LineView is a computed line with display strings.
type LineView struct {
	ID            string   `json:"id"`
	Name          string   `json:"name"`
	Description   string   `json:"description,omitempty"`
	Quantity      int64    `json:"quantity"`
	Rate          string   `json:"rate"`
	Amount        string   `json:"amount"`
	TaxNames      []string `json:"taxNames,omitempty"`
	TaxAmount     string   `json:"taxAmount"`
	AmountWithTax string   `json:"amountWithTax"`
}

// TaxView is one applied invoice-level tax with display strings.
type TaxView struct {
	Name   string `json:"name"`
	Rate   string `json:"rate"`
	Base   string `json:"taxableAmount"`
	Amount string `json:"taxAmount"`
}

// Amounts holds the formatted totals block.
type Amounts struct {
	Subtotal   string `json:"subtotal"`
	Tax        string `json:"totalTax"`
	Discount   string `json:"discount,omitempty"`
	TotalDue   string `json:"totalDue"`
	BalanceDue string `json:"balanceDue"`
}

// InvoiceView is everything the invoice page and PDF render.
type InvoiceView struct {
	Invoice      billing.Invoice      `json:"invoice"`
	Totals       billing.Totals       `json:"totals"`
	Presentation billing.Presentation `json:"presentation"`
	Lines        []LineView           `json:"lines"`
	Taxes        []TaxView            `json:"taxes"`
	Amounts      Amounts              `json:"amounts"`
	Symbol       string               `json:"currencySymbol"`
	CreatedOn    string               `json:"createdOn"`
	DueOn        string               `json:"dueOn"`
}

// Summary is one row of the invoice list.
type Summary struct {
	ID             string         `json:"id"`
	Number         string         `json:"invoiceNumber"`
	ClientName     string         `json:"clientName"`
	Status         billing.Status `json:"status"`
	Watermark      string         `json:"watermarkText"`
	WatermarkColor string         `json:"watermarkColor"`
	Total          string         `json:"total"`
	BalanceDue     string         `json:"balanceDue"`
	DueOn          string         `json:"dueOn"`
}

// ListResult is one page of summaries.
type ListResult struct {
	Invoices   []Summary         `json:"invoices"`
	Pagination shared.Pagination `json:"pagination"`
}

// QuoteLine is an ad-hoc line to price.
type QuoteLine struct {
	Name     string                `json:"name" validate:"required"`
	Quantity int64                 `json:"quantity" validate:"gte=0"`
	Rate     decimal.Decimal       `json:"rate"`
	Taxes    []billing.TaxTemplate `json:"taxes"`
}

// QuoteRequest prices lines without persisting anything.
type QuoteRequest struct {
	Currency string                `json:"currency" validate:"omitempty,len=3,alpha"`
	Items    []QuoteLine           `json:"items" validate:"required,min=1,dive"`
	Taxes    []billing.TaxTemplate `json:"taxes"`
	Discount decimal.NullDecimal   `json:"discount"`
	Mode     billing.TaxMode       `json:"taxMode" validate:"omitempty,oneof=invoice item"`
}

// EditKind names a draft edit.
type EditKind string

const (
	EditAddItem     EditKind = "add_item"
	EditAddProduct  EditKind = "add_product"
	EditSetQuantity EditKind = "set_quantity"
	EditSetRate     EditKind = "set_rate"
	EditRemoveItem  EditKind = "remove_item"
	EditSetDiscount EditKind = "set_discount"
	EditSetTaxes    EditKind = "set_taxes"
)

// DraftEdit is a single change to a draft. Only the fields the kind needs are read.
type DraftEdit struct {
	Kind      EditKind
	ItemID    string
	Name      string
	ProductID string
	Quantity  int64
	Rate      decimal.Decimal
	Taxes     []billing.TaxTemplate
	Discount  decimal.NullDecimal
}

// DraftView is a draft as returned to the editor.
type DraftView struct {
	ID       string            `json:"id"`
	Dirty    bool              `json:"dirty"`
	View     InvoiceView       `json:"view"`
	Products []billing.Product `json:"products,omitempty"`
}
