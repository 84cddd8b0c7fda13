package billing

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/text/currency"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/number"
)

// FormatConfig is the single formatting configuration shared by every view.
type FormatConfig struct {
	Locale   string
	Decimals int
}

// DefaultFormatConfig formats in English with two decimals.
var DefaultFormatConfig = FormatConfig{Locale: "en", Decimals: 2}

// Formatter renders money amounts. It never fails: unknown currency codes fall back to the
// raw code followed by the grouped number.
type Formatter struct {
	printer  *message.Printer
	decimals int
	group    string
	point    string
}

// NewFormatter builds a Formatter. An unparsable locale falls back to English and a
// negative decimals value to two.
func NewFormatter(cfg FormatConfig) *Formatter {
	tag, err := language.Parse(cfg.Locale)
	if err != nil || cfg.Locale == "" {
		tag = language.English
	}
	decimals := cfg.Decimals
	if decimals < 0 {
		decimals = DefaultFormatConfig.Decimals
	}
	printer := message.NewPrinter(tag)
	group, point := separators(printer)
	return &Formatter{printer: printer, decimals: decimals, group: group, point: point}
}

// separators reads the locale's grouping and decimal symbols off a sample number so that
// amounts can be grouped from their exact decimal digits.
func separators(p *message.Printer) (group, point string) {
	group, point = ",", "."
	sample := p.Sprint(number.Decimal(12345678.5, number.Scale(1)))
	if !strings.HasPrefix(sample, "12") || !strings.HasSuffix(sample, "5") {
		return group, point
	}
	mid := sample[2 : len(sample)-1]
	i := strings.Index(mid, "345")
	if i < 0 {
		return group, point
	}
	g := mid[:i]
	rest := mid[i+3:]
	if !strings.HasPrefix(rest, g+"678") {
		return group, point
	}
	if d := rest[len(g)+3:]; d != "" {
		point = d
	}
	return g, point
}

// digits groups the exact fixed-point rendering of a non-negative amount.
func (f *Formatter) digits(amount decimal.Decimal, decimals int) string {
	fixed := amount.StringFixed(int32(decimals))
	whole, frac, _ := strings.Cut(fixed, ".")

	var b strings.Builder
	lead := len(whole) % 3
	if lead == 0 {
		lead = 3
	}
	b.WriteString(whole[:lead])
	for i := lead; i < len(whole); i += 3 {
		b.WriteString(f.group)
		b.WriteString(whole[i : i+3])
	}
	if frac != "" {
		b.WriteString(f.point)
		b.WriteString(frac)
	}
	return b.String()
}

// Format renders amount with the configured number of decimals, e.g. "₦59,000.00".
func (f *Formatter) Format(amount decimal.Decimal, code string) string {
	return f.format(amount, code, f.decimals)
}

// FormatWhole renders amount without decimals, as used on invoice lists.
func (f *Formatter) FormatWhole(amount decimal.Decimal, code string) string {
	return f.format(amount, code, 0)
}

// Symbol returns the narrow symbol for code, or the upper-cased code when unknown.
func (f *Formatter) Symbol(code string) string {
	code = strings.ToUpper(strings.TrimSpace(code))
	unit, ok := parseUnit(code)
	if !ok {
		return code
	}
	return f.printer.Sprint(currency.NarrowSymbol(unit))
}

func (f *Formatter) format(amount decimal.Decimal, code string, decimals int) string {
	rounded := amount.Round(int32(decimals))
	sign := ""
	if rounded.IsNegative() {
		sign = "-"
		rounded = rounded.Abs()
	}
	digits := f.digits(rounded, decimals)

	code = strings.ToUpper(strings.TrimSpace(code))
	if code == "" {
		return sign + digits
	}
	unit, ok := parseUnit(code)
	if !ok {
		return sign + code + " " + digits
	}
	symbol := f.printer.Sprint(currency.NarrowSymbol(unit))
	if isLetters(symbol) {
		// "CHF 1,000.00", not "CHF1,000.00"
		symbol += " "
	}
	return sign + symbol + digits
}

func isLetters(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if (r < 'A' || r > 'Z') && (r < 'a' || r > 'z') {
			return false
		}
	}
	return true
}

func parseUnit(code string) (currency.Unit, bool) {
	unit, err := currency.ParseISO(code)
	if err != nil || unit == (currency.Unit{}) {
		return currency.Unit{}, false
	}
	return unit, true
}

// FormatDate renders invoice dates; the zero time renders empty.
func FormatDate(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format("02 Jan 2006")
}
