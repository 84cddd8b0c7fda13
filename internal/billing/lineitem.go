package billing

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// LineTotals holds the derived fields of a single line.
type LineTotals struct {
	Amount         decimal.Decimal
	Taxes          []AppliedTax
	TotalTaxAmount decimal.Decimal
	AmountWithTax  decimal.Decimal
}

// CalculateLine derives amount and taxes for one line. Every tax is computed on the
// line amount, never on the invoice subtotal.
func CalculateLine(quantity int64, rate decimal.Decimal, templates []TaxTemplate) (LineTotals, error) {
	if quantity < 0 {
		return LineTotals{}, invalid("quantity", "must not be negative")
	}
	if rate.IsNegative() {
		return LineTotals{}, invalid("rate", "must not be negative")
	}
	amount := Round(decimal.NewFromInt(quantity).Mul(rate))
	taxes, err := applyTaxes(amount, templates)
	if err != nil {
		return LineTotals{}, err
	}
	totalTax := sumTaxes(taxes)
	return LineTotals{
		Amount:         amount,
		Taxes:          taxes,
		TotalTaxAmount: totalTax,
		AmountWithTax:  amount.Add(totalTax),
	}, nil
}

// NewLineItem builds a computed line item.
func NewLineItem(id, name string, quantity int64, rate decimal.Decimal, templates []TaxTemplate) (LineItem, error) {
	item := LineItem{ID: id, Name: name, Quantity: quantity, Rate: rate}
	if err := item.apply(templates); err != nil {
		return LineItem{}, err
	}
	return item, nil
}

// LineItemFromProduct copies the product's rate and tax templates into a new line.
func LineItemFromProduct(id string, p Product, quantity int64) (LineItem, error) {
	item, err := NewLineItem(id, p.Name, quantity, p.Rate, p.Taxes)
	if err != nil {
		return LineItem{}, err
	}
	item.ProductID = p.ID
	return item, nil
}

// SetQuantity updates the quantity and recomputes every derived field.
func (li *LineItem) SetQuantity(quantity int64) error {
	prev := li.Quantity
	li.Quantity = quantity
	if err := li.Recompute(); err != nil {
		li.Quantity = prev
		return err
	}
	return nil
}

// SetRate updates the rate and recomputes every derived field.
func (li *LineItem) SetRate(rate decimal.Decimal) error {
	prev := li.Rate
	li.Rate = rate
	if err := li.Recompute(); err != nil {
		li.Rate = prev
		return err
	}
	return nil
}

// Recompute rederives amount and taxes from quantity, rate and the attached tax rules.
func (li *LineItem) Recompute() error {
	return li.apply(TemplatesOf(li.Taxes))
}

func (li *LineItem) apply(templates []TaxTemplate) error {
	totals, err := CalculateLine(li.Quantity, li.Rate, templates)
	if err != nil {
		return err
	}
	li.Amount = totals.Amount
	li.Taxes = totals.Taxes
	li.TotalTaxAmount = totals.TotalTaxAmount
	li.AmountWithTax = totals.AmountWithTax
	return nil
}

func applyTaxes(base decimal.Decimal, templates []TaxTemplate) ([]AppliedTax, error) {
	if len(templates) == 0 {
		return nil, nil
	}
	out := make([]AppliedTax, 0, len(templates))
	for i, t := range templates {
		if !t.Rate.Valid {
			return nil, invalid(fmt.Sprintf("taxes[%d].rate", i), "is required")
		}
		if t.Rate.Decimal.IsNegative() {
			return nil, invalid(fmt.Sprintf("taxes[%d].rate", i), "must not be negative")
		}
		kind := t.Type
		if kind == "" {
			kind = TaxTypePercentage
		}
		out = append(out, AppliedTax{
			ID:     t.ID,
			Name:   t.Name,
			Type:   kind,
			Rate:   t.Rate.Decimal,
			Base:   base,
			Amount: percentOf(base, t.Rate.Decimal),
		})
	}
	return out, nil
}

func sumTaxes(taxes []AppliedTax) decimal.Decimal {
	total := decimal.Zero
	for _, t := range taxes {
		total = total.Add(t.Amount)
	}
	return total
}
