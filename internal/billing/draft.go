package billing

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// Draft is an editable copy of an invoice. The working copy diverges from the committed
// one until Commit or Discard; there is no merging.
type Draft struct {
	committed Invoice
	working   Invoice
	mode      TaxMode
}

// NewDraft copies inv into a fresh draft and derives its totals.
func NewDraft(inv Invoice, mode TaxMode) (*Draft, error) {
	d := &Draft{committed: inv.Clone(), working: inv.Clone(), mode: mode}
	if err := d.recompute(); err != nil {
		return nil, err
	}
	return d, nil
}

// RestoreDraft rebuilds a draft from stored copies without recomputing.
func RestoreDraft(committed, working Invoice, mode TaxMode) *Draft {
	return &Draft{committed: committed.Clone(), working: working.Clone(), mode: mode}
}

// Committed returns a copy of the last committed state.
func (d *Draft) Committed() Invoice { return d.committed.Clone() }

// Working returns a copy of the edited state.
func (d *Draft) Working() Invoice { return d.working.Clone() }

// Mode reports the tax model used for the draft's totals.
func (d *Draft) Mode() TaxMode { return d.mode }

// Totals aggregates the working copy.
func (d *Draft) Totals() (Totals, error) {
	s, err := ComputeInvoice(d.working, d.mode)
	if err != nil {
		return Totals{}, err
	}
	return s.Totals, nil
}

// Dirty reports whether the working copy differs from the committed one.
func (d *Draft) Dirty() bool {
	return !invoicesEqual(d.committed, d.working)
}

// AddItem appends a manually entered line.
func (d *Draft) AddItem(id, name string, quantity int64, rate decimal.Decimal, taxes []TaxTemplate) (LineItem, error) {
	if d.indexOf(id) >= 0 {
		return LineItem{}, invalid("item id", fmt.Sprintf("%q already exists", id))
	}
	item, err := NewLineItem(id, name, quantity, rate, taxes)
	if err != nil {
		return LineItem{}, err
	}
	if err := d.appendItem(item); err != nil {
		return LineItem{}, err
	}
	return item, nil
}

// AddProduct appends a line copied from a catalog product.
func (d *Draft) AddProduct(id string, p Product, quantity int64) (LineItem, error) {
	if d.indexOf(id) >= 0 {
		return LineItem{}, invalid("item id", fmt.Sprintf("%q already exists", id))
	}
	item, err := LineItemFromProduct(id, p, quantity)
	if err != nil {
		return LineItem{}, err
	}
	if err := d.appendItem(item); err != nil {
		return LineItem{}, err
	}
	return item, nil
}

func (d *Draft) appendItem(item LineItem) error {
	return d.mutate(func(inv *Invoice) error {
		inv.Items = append(inv.Items, item)
		return nil
	})
}

// RemoveItem deletes a line from the working copy.
func (d *Draft) RemoveItem(id string) error {
	i := d.indexOf(id)
	if i < 0 {
		return invalid("item id", fmt.Sprintf("%q not found", id))
	}
	return d.mutate(func(inv *Invoice) error {
		inv.Items = append(inv.Items[:i:i], inv.Items[i+1:]...)
		return nil
	})
}

// SetQuantity changes the quantity of one line.
func (d *Draft) SetQuantity(id string, quantity int64) error {
	i := d.indexOf(id)
	if i < 0 {
		return invalid("item id", fmt.Sprintf("%q not found", id))
	}
	return d.mutate(func(inv *Invoice) error {
		return inv.Items[i].SetQuantity(quantity)
	})
}

// SetRate changes the rate of one line.
func (d *Draft) SetRate(id string, rate decimal.Decimal) error {
	i := d.indexOf(id)
	if i < 0 {
		return invalid("item id", fmt.Sprintf("%q not found", id))
	}
	return d.mutate(func(inv *Invoice) error {
		return inv.Items[i].SetRate(rate)
	})
}

// SetDiscount sets or clears the invoice discount.
func (d *Draft) SetDiscount(discount decimal.NullDecimal) error {
	if discount.Valid && discount.Decimal.IsNegative() {
		return invalid("discount", "must not be negative")
	}
	return d.mutate(func(inv *Invoice) error {
		inv.Discount = discount
		return nil
	})
}

// SetInvoiceTaxes replaces the invoice-level tax rules.
func (d *Draft) SetInvoiceTaxes(templates []TaxTemplate) error {
	taxes, err := applyTaxes(decimal.Zero, templates)
	if err != nil {
		return err
	}
	return d.mutate(func(inv *Invoice) error {
		inv.AppliedTaxes = taxes
		return nil
	})
}

// Commit makes saved the new committed state and resets the working copy to it.
// saved is normally what the backend returned from the save call.
func (d *Draft) Commit(saved Invoice) {
	d.committed = saved.Clone()
	d.working = saved.Clone()
}

// Discard drops every edit since the last commit.
func (d *Draft) Discard() {
	d.working = d.committed.Clone()
}

// mutate applies fn to a scratch copy and keeps it only if recomputation succeeds, so a
// rejected edit leaves the working copy untouched.
func (d *Draft) mutate(fn func(*Invoice) error) error {
	scratch := d.working.Clone()
	if err := fn(&scratch); err != nil {
		return err
	}
	s, err := ComputeInvoice(scratch, d.mode)
	if err != nil {
		return err
	}
	ApplySummary(&scratch, s)
	d.working = scratch
	return nil
}

func (d *Draft) recompute() error {
	s, err := ComputeInvoice(d.working, d.mode)
	if err != nil {
		return err
	}
	ApplySummary(&d.working, s)
	return nil
}

func (d *Draft) indexOf(id string) int {
	for i, item := range d.working.Items {
		if item.ID == id {
			return i
		}
	}
	return -1
}

func invoicesEqual(a, b Invoice) bool {
	if a.Discount.Valid != b.Discount.Valid || (a.Discount.Valid && !a.Discount.Decimal.Equal(b.Discount.Decimal)) {
		return false
	}
	if len(a.Items) != len(b.Items) || len(a.AppliedTaxes) != len(b.AppliedTaxes) {
		return false
	}
	for i := range a.Items {
		x, y := a.Items[i], b.Items[i]
		if x.ID != y.ID || x.Quantity != y.Quantity || !x.Rate.Equal(y.Rate) || len(x.Taxes) != len(y.Taxes) {
			return false
		}
	}
	for i := range a.AppliedTaxes {
		if a.AppliedTaxes[i].ID != b.AppliedTaxes[i].ID || !a.AppliedTaxes[i].Rate.Equal(b.AppliedTaxes[i].Rate) {
			return false
		}
	}
	return true
}
