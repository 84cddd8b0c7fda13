package billing

import "github.com/shopspring/decimal"

var hundred = decimal.NewFromInt(100)

// Round rounds a money value to two decimal places, half away from zero.
func Round(d decimal.Decimal) decimal.Decimal {
	return d.Round(2)
}

// percentOf returns round(base * rate / 100, 2).
func percentOf(base, ratePercent decimal.Decimal) decimal.Decimal {
	return Round(base.Mul(ratePercent).Div(hundred))
}
