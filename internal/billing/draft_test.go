package billing

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleInvoice() Invoice {
	return Invoice{
		ID:       "inv-7",
		Number:   "INV-0007",
		Status:   "UNPAID",
		Currency: "NGN",
		Items: []LineItem{
			{ID: "1", Name: "Design", Quantity: 2, Rate: dec("100000")},
			{ID: "2", Name: "Hosting", Quantity: 5, Rate: dec("50000")},
		},
		AppliedTaxes: []AppliedTax{
			{ID: "vat", Name: "VAT", Rate: dec("7.5")},
			{ID: "wht", Name: "WHT", Rate: dec("1")},
		},
	}
}

func TestNewDraftDerivesTotals(t *testing.T) {
	d, err := NewDraft(sampleInvoice(), TaxModeInvoice)
	require.NoError(t, err)

	working := d.Working()
	assert.True(t, working.Subtotal.Equal(dec("450000")))
	assert.True(t, working.TotalTaxAmount.Equal(dec("38250")))
	assert.True(t, working.TotalDue.Equal(dec("488250")))
	assert.False(t, d.Dirty())
}

func TestDraftEditsDivergeUntilCommit(t *testing.T) {
	d, err := NewDraft(sampleInvoice(), TaxModeInvoice)
	require.NoError(t, err)

	require.NoError(t, d.SetQuantity("1", 3))
	_, err = d.AddProduct("3", Product{ID: "p-9", Name: "Support", Rate: dec("10000")}, 1)
	require.NoError(t, err)
	require.NoError(t, d.SetDiscount(decimal.NewNullDecimal(dec("5000"))))

	assert.True(t, d.Dirty())
	working := d.Working()
	assert.True(t, working.Subtotal.Equal(dec("560000")))
	assert.True(t, working.TotalTaxAmount.Equal(dec("47600")))
	assert.True(t, working.TotalDue.Equal(dec("602600")))

	committed := d.Committed()
	require.Len(t, committed.Items, 2)
	assert.Equal(t, int64(2), committed.Items[0].Quantity)

	d.Commit(working)
	assert.False(t, d.Dirty())
	assert.Len(t, d.Committed().Items, 3)
}

func TestDraftDiscardRestoresCommitted(t *testing.T) {
	d, err := NewDraft(sampleInvoice(), TaxModeInvoice)
	require.NoError(t, err)

	require.NoError(t, d.RemoveItem("2"))
	require.NoError(t, d.SetRate("1", dec("1")))
	assert.True(t, d.Dirty())

	d.Discard()
	assert.False(t, d.Dirty())
	require.Len(t, d.Working().Items, 2)
	assert.True(t, d.Working().Items[0].Rate.Equal(dec("100000")))
}

func TestDraftRejectedEditLeavesWorkingCopy(t *testing.T) {
	d, err := NewDraft(sampleInvoice(), TaxModeInvoice)
	require.NoError(t, err)
	before := d.Working()

	require.ErrorIs(t, d.SetQuantity("1", -1), ErrInvalidInput)
	require.ErrorIs(t, d.SetRate("missing", dec("1")), ErrInvalidInput)
	require.ErrorIs(t, d.SetDiscount(decimal.NewNullDecimal(dec("-1"))), ErrInvalidInput)
	_, err = d.AddItem("1", "duplicate", 1, dec("1"), nil)
	require.ErrorIs(t, err, ErrInvalidInput)
	require.ErrorIs(t, d.SetInvoiceTaxes([]TaxTemplate{{ID: "broken"}}), ErrInvalidInput)

	assert.Equal(t, before, d.Working())
	assert.False(t, d.Dirty())
}

func TestDraftWorkingCopyIsIsolated(t *testing.T) {
	src := sampleInvoice()
	d, err := NewDraft(src, TaxModeInvoice)
	require.NoError(t, err)

	working := d.Working()
	working.Items[0].Quantity = 99
	assert.Equal(t, int64(2), d.Working().Items[0].Quantity)

	src.Items[0].Quantity = 42
	assert.Equal(t, int64(2), d.Committed().Items[0].Quantity)
}

func TestDraftInvoiceTaxes(t *testing.T) {
	d, err := NewDraft(sampleInvoice(), TaxModeInvoice)
	require.NoError(t, err)

	require.NoError(t, d.SetInvoiceTaxes(nil))
	totals, err := d.Totals()
	require.NoError(t, err)
	assert.True(t, totals.TotalDue.Equal(dec("450000")))
}
