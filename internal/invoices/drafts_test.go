package invoices

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/invoicedesk/invoicedesk/internal/billing"
	"github.com/invoicedesk/invoicedesk/internal/shared"
)

func TestDraftStoreRoundTrip(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	draft, err := billing.NewDraft(sampleInvoice(), billing.TaxModeInvoice)
	require.NoError(t, err)
	require.NoError(t, draft.SetDiscount(decimal.NewNullDecimal(dec("8250"))))

	id, err := f.drafts.Create(ctx, draft)
	require.NoError(t, err)
	assert.True(t, f.redis.Exists("draft:"+id))

	loaded, err := f.drafts.Load(ctx, id)
	require.NoError(t, err)
	assert.True(t, loaded.Dirty())
	assert.Equal(t, billing.TaxModeInvoice, loaded.Mode())
	assert.True(t, loaded.Working().TotalDue.Equal(dec("480000")))
	assert.False(t, loaded.Committed().Discount.Valid)

	loaded.Discard()
	assert.False(t, loaded.Dirty())
}

func TestDraftStoreExpiry(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	draft, err := billing.NewDraft(sampleInvoice(), billing.TaxModeInvoice)
	require.NoError(t, err)
	id, err := f.drafts.Create(ctx, draft)
	require.NoError(t, err)

	f.redis.FastForward(2 * time.Hour)

	_, err = f.drafts.Load(ctx, id)
	assert.ErrorIs(t, err, shared.ErrNotFound)
}

func TestDraftStoreDelete(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	draft, err := billing.NewDraft(sampleInvoice(), billing.TaxModeItem)
	require.NoError(t, err)
	id, err := f.drafts.Create(ctx, draft)
	require.NoError(t, err)

	require.NoError(t, f.drafts.Delete(ctx, id))
	require.NoError(t, f.drafts.Delete(ctx, id))
	_, err = f.drafts.Load(ctx, id)
	assert.ErrorIs(t, err, shared.ErrNotFound)
}
