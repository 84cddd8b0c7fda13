package billing

import (
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func TestCalculateLine(t *testing.T) {
	tests := []struct {
		name        string
		quantity    int64
		rate        string
		taxes       []TaxTemplate
		wantAmount  string
		wantTax     string
		wantWithTax string
	}{
		{name: "no taxes", quantity: 5, rate: "1000", wantAmount: "5000", wantTax: "0", wantWithTax: "5000"},
		{
			name:        "single vat",
			quantity:    2,
			rate:        "1000",
			taxes:       []TaxTemplate{NewTaxTemplate("vat", "VAT", dec("7.5"))},
			wantAmount:  "2000",
			wantTax:     "150",
			wantWithTax: "2150",
		},
		{
			name:     "two taxes rounded per tax",
			quantity: 3,
			rate:     "33.33",
			taxes: []TaxTemplate{
				NewTaxTemplate("vat", "VAT", dec("7.5")),
				NewTaxTemplate("wht", "WHT", dec("5")),
			},
			wantAmount:  "99.99",
			wantTax:     "12.5", // 7.50 + 5.00
			wantWithTax: "112.49",
		},
		{name: "zero quantity", quantity: 0, rate: "1000", taxes: []TaxTemplate{NewTaxTemplate("vat", "VAT", dec("7.5"))}, wantAmount: "0", wantTax: "0", wantWithTax: "0"},
		{name: "zero rate", quantity: 4, rate: "0", wantAmount: "0", wantTax: "0", wantWithTax: "0"},
		{name: "fractional rate rounds half away from zero", quantity: 1, rate: "10.005", wantAmount: "10.01", wantTax: "0", wantWithTax: "10.01"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := CalculateLine(tt.quantity, dec(tt.rate), tt.taxes)
			require.NoError(t, err)
			assert.True(t, got.Amount.Equal(dec(tt.wantAmount)), "amount = %s", got.Amount)
			assert.True(t, got.TotalTaxAmount.Equal(dec(tt.wantTax)), "tax = %s", got.TotalTaxAmount)
			assert.True(t, got.AmountWithTax.Equal(dec(tt.wantWithTax)), "with tax = %s", got.AmountWithTax)
			require.Len(t, got.Taxes, len(tt.taxes))
			for _, tax := range got.Taxes {
				assert.True(t, tax.Base.Equal(got.Amount), "tax base must be the line amount")
			}
		})
	}
}

func TestCalculateLineRejectsInvalidInput(t *testing.T) {
	_, err := CalculateLine(-1, dec("10"), nil)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrInvalidInput))

	_, err = CalculateLine(1, dec("-10"), nil)
	var inputErr *InvalidInputError
	require.ErrorAs(t, err, &inputErr)
	assert.Equal(t, "rate", inputErr.Field)

	_, err = CalculateLine(1, dec("10"), []TaxTemplate{{ID: "vat", Name: "VAT"}})
	require.ErrorAs(t, err, &inputErr)
	assert.Equal(t, "taxes[0].rate", inputErr.Field)
}

func TestAmountInvariantHoldsAcrossInputs(t *testing.T) {
	rates := []string{"0", "0.01", "1", "19.99", "1000", "1234.567"}
	for q := int64(0); q <= 25; q++ {
		for _, r := range rates {
			got, err := CalculateLine(q, dec(r), []TaxTemplate{
				NewTaxTemplate("a", "A", dec("7.5")),
				NewTaxTemplate("b", "B", dec("2.25")),
			})
			require.NoError(t, err)
			want := decimal.NewFromInt(q).Mul(dec(r)).Round(2)
			require.True(t, got.Amount.Equal(want), "q=%d r=%s amount=%s", q, r, got.Amount)

			sum := decimal.Zero
			for _, tax := range got.Taxes {
				sum = sum.Add(tax.Amount)
			}
			require.True(t, got.TotalTaxAmount.Equal(sum))
			require.True(t, got.AmountWithTax.Equal(got.Amount.Add(got.TotalTaxAmount)))
		}
	}
}

func TestLineItemMutationsRecompute(t *testing.T) {
	item, err := NewLineItem("1", "Consulting", 2, dec("1000"), []TaxTemplate{NewTaxTemplate("vat", "VAT", dec("7.5"))})
	require.NoError(t, err)

	require.NoError(t, item.SetQuantity(4))
	assert.True(t, item.Amount.Equal(dec("4000")))
	assert.True(t, item.TotalTaxAmount.Equal(dec("300")))
	assert.True(t, item.AmountWithTax.Equal(dec("4300")))

	require.NoError(t, item.SetRate(dec("250")))
	assert.True(t, item.Amount.Equal(dec("1000")))
	assert.True(t, item.Taxes[0].Base.Equal(dec("1000")))
	assert.True(t, item.Taxes[0].Amount.Equal(dec("75")))

	require.Error(t, item.SetQuantity(-3))
	assert.Equal(t, int64(4), item.Quantity, "rejected quantity must not stick")
	assert.True(t, item.Amount.Equal(dec("1000")))
}

func TestLineItemFromProductCopiesTemplate(t *testing.T) {
	p := Product{
		ID:    "prod-1",
		Name:  "Website audit",
		Rate:  dec("150000"),
		Taxes: []TaxTemplate{NewTaxTemplate("vat", "VAT", dec("7.5"))},
	}
	item, err := LineItemFromProduct("line-1", p, 3)
	require.NoError(t, err)
	assert.Equal(t, "Website audit", item.Name)
	assert.Equal(t, "prod-1", item.ProductID)
	assert.True(t, item.Amount.Equal(dec("450000")))
	assert.True(t, item.TotalTaxAmount.Equal(dec("33750")))
}
