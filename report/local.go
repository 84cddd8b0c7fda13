package report

import (
	"bytes"
	"strconv"
	"strings"

	"github.com/jung-kurt/gofpdf"

	"github.com/invoicedesk/invoicedesk/internal/invoices"
)

// RenderLocal draws the invoice with gofpdf. It needs no external service, so it backs up
// Gotenberg. Core fonts only cover cp1252; symbols outside it are replaced by the ISO code.
func RenderLocal(view invoices.InvoiceView) ([]byte, error) {
	pdf := gofpdf.New("P", "mm", "A4", "")
	tr := pdf.UnicodeTranslatorFromDescriptor("")
	text := func(s string) string { return tr(latinSafe(s, view.Symbol, view.Invoice.Currency)) }

	pdf.SetTitle("Invoice "+view.Invoice.Number, true)
	pdf.SetMargins(15, 15, 15)
	pdf.AddPage()
	pageW, pageH := pdf.GetPageSize()

	drawWatermark(pdf, view.Presentation.Watermark, view.Presentation.WatermarkColor, pageW, pageH)

	pdf.SetTextColor(17, 24, 39)
	pdf.SetFont("Helvetica", "B", 18)
	pdf.CellFormat(0, 10, text("Invoice "+view.Invoice.Number), "", 1, "L", false, 0, "")
	pdf.SetFont("Helvetica", "", 10)
	if view.Invoice.ClientName != "" {
		pdf.CellFormat(0, 6, text("Bill to: "+view.Invoice.ClientName), "", 1, "L", false, 0, "")
	}
	pdf.CellFormat(0, 6, text("Issued: "+view.CreatedOn+"    Due: "+view.DueOn), "", 1, "L", false, 0, "")
	pdf.CellFormat(0, 6, text("Status: "+string(view.Presentation.Status)), "", 1, "L", false, 0, "")
	pdf.Ln(4)

	widths := []float64{70, 20, 30, 30, 30}
	headers := []string{"Item", "Qty", "Rate", "Tax", "Amount"}
	pdf.SetFont("Helvetica", "B", 10)
	pdf.SetFillColor(243, 244, 246)
	for i, h := range headers {
		align := "R"
		if i == 0 {
			align = "L"
		}
		pdf.CellFormat(widths[i], 8, h, "B", 0, align, true, 0, "")
	}
	pdf.Ln(-1)

	pdf.SetFont("Helvetica", "", 10)
	for _, line := range view.Lines {
		cells := []string{line.Name, strconv.FormatInt(line.Quantity, 10), line.Rate, line.TaxAmount, line.AmountWithTax}
		for i, c := range cells {
			align := "R"
			if i == 0 {
				align = "L"
			}
			pdf.CellFormat(widths[i], 7, text(c), "", 0, align, false, 0, "")
		}
		pdf.Ln(-1)
	}
	pdf.Ln(4)

	labelW, valueW := 150.0, 30.0
	row := func(label, value string, bold bool) {
		style := ""
		if bold {
			style = "B"
		}
		pdf.SetFont("Helvetica", style, 10)
		pdf.CellFormat(labelW, 7, text(label), "", 0, "R", false, 0, "")
		pdf.CellFormat(valueW, 7, text(value), "", 1, "R", false, 0, "")
	}
	row("Subtotal", view.Amounts.Subtotal, false)
	for _, tax := range view.Taxes {
		row(tax.Name+" ("+tax.Rate+")", tax.Amount, false)
	}
	if view.Amounts.Discount != "" {
		row("Discount", "-"+view.Amounts.Discount, false)
	}
	row("Total due", view.Amounts.TotalDue, true)
	row("Balance due", view.Amounts.BalanceDue, true)

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func drawWatermark(pdf *gofpdf.Fpdf, text, color string, pageW, pageH float64) {
	if text == "" {
		return
	}
	r, g, b := hexRGB(color)
	pdf.SetFont("Helvetica", "B", 72)
	pdf.SetTextColor(r, g, b)
	pdf.SetAlpha(0.12, "Normal")
	textW := pdf.GetStringWidth(text)
	cx, cy := pageW/2, pageH/2
	pdf.TransformBegin()
	pdf.TransformRotate(35, cx, cy)
	pdf.Text(cx-textW/2, cy, text)
	pdf.TransformEnd()
	pdf.SetAlpha(1, "Normal")
}

// hexRGB parses #rrggbb, falling back to grey.
func hexRGB(s string) (int, int, int) {
	s = strings.TrimPrefix(s, "#")
	if len(s) != 6 {
		return 107, 114, 128
	}
	v, err := strconv.ParseUint(s, 16, 32)
	if err != nil {
		return 107, 114, 128
	}
	return int(v >> 16 & 0xff), int(v >> 8 & 0xff), int(v & 0xff)
}

func latinSafe(s, symbol, code string) string {
	if symbol == "" || code == "" || fitsLatin1(symbol) {
		return s
	}
	return strings.ReplaceAll(s, symbol, code+" ")
}

func fitsLatin1(s string) bool {
	for _, r := range s {
		if r > 0xff && r != '€' {
			return false
		}
	}
	return true
}
