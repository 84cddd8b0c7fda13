package billing

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestFormatterFormat(t *testing.T) {
	f := NewFormatter(DefaultFormatConfig)

	assert.Equal(t, "₦59,000.00", f.Format(dec("59000"), "NGN"))
	assert.Equal(t, "₦59,000.00", f.Format(dec("59000"), "ngn"))
	assert.Equal(t, "$1,234,567.89", f.Format(dec("1234567.891"), "USD"))
	assert.Equal(t, "$0.00", f.Format(dec("0"), "USD"))
	assert.Equal(t, "-$12.50", f.Format(dec("-12.5"), "USD"))
}

func TestFormatterKeepsCentsOnLargeAmounts(t *testing.T) {
	f := NewFormatter(DefaultFormatConfig)

	assert.Equal(t, "₦12,345,678,901,234,567.89", f.Format(dec("12345678901234567.89"), "NGN"))
	assert.Equal(t, "$90,071,992,547,409.93", f.Format(dec("90071992547409.93"), "USD"))
	assert.Equal(t, "-$100,000,000,000,000.01", f.Format(dec("-100000000000000.01"), "USD"))
	assert.Equal(t, "₦999", f.FormatWhole(dec("999.4"), "NGN"))
}

func TestFormatterLocaleSeparators(t *testing.T) {
	f := NewFormatter(FormatConfig{Locale: "de", Decimals: 2})
	assert.Equal(t, "1.234.567,89", f.Format(dec("1234567.891"), ""))
}

func TestFormatterFallbacks(t *testing.T) {
	f := NewFormatter(DefaultFormatConfig)

	assert.Equal(t, "ZZZ 59,000.00", f.Format(dec("59000"), "ZZZ"))
	assert.Equal(t, "NAIRA 10.00", f.Format(dec("10"), "naira"))
	assert.Equal(t, "1,000.00", f.Format(dec("1000"), ""))
}

func TestFormatterWhole(t *testing.T) {
	f := NewFormatter(DefaultFormatConfig)
	assert.Equal(t, "₦59,000", f.FormatWhole(dec("59000"), "NGN"))
	assert.Equal(t, "₦59,001", f.FormatWhole(dec("59000.5"), "NGN"))
}

func TestNewFormatterDefaults(t *testing.T) {
	f := NewFormatter(FormatConfig{Locale: "not a locale!!", Decimals: -1})
	assert.Equal(t, "₦59,000.00", f.Format(dec("59000"), "NGN"))
}

func TestFormatDate(t *testing.T) {
	assert.Equal(t, "", FormatDate(time.Time{}))
	assert.Equal(t, "05 Mar 2024", FormatDate(time.Date(2024, 3, 5, 10, 0, 0, 0, time.UTC)))
}
