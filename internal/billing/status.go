package billing

import (
	"strings"

	"github.com/shopspring/decimal"
)

// Status is the lifecycle state of an invoice as reported by the backend.
type Status string

const (
	StatusPaid    Status = "PAID"
	StatusUnpaid  Status = "UNPAID"
	StatusOverdue Status = "OVERDUE"
	StatusPending Status = "PENDING"
	StatusUnknown Status = "UNKNOWN"
)

// Action is the primary user action offered for an invoice.
type Action string

const (
	ActionViewReceipt   Action = "View Receipt"
	ActionUploadReceipt Action = "Upload Receipt"
)

// ParseStatus maps a raw status onto the closed set. Anything unrecognised, including the
// empty string, becomes StatusUnknown.
func ParseStatus(raw string) Status {
	switch s := Status(strings.ToUpper(strings.TrimSpace(raw))); s {
	case StatusPaid, StatusUnpaid, StatusOverdue, StatusPending:
		return s
	default:
		return StatusUnknown
	}
}

// Presentation is what a view needs to decorate an invoice.
type Presentation struct {
	Status         Status          `json:"status"`
	Watermark      string          `json:"watermarkText"`
	WatermarkColor string          `json:"watermarkColor"`
	BalanceDue     decimal.Decimal `json:"balanceDue"`
	PrimaryAction  Action          `json:"primaryAction"`
}

type statusRule struct {
	watermark string
	color     string
	settled   bool
}

var statusRules = map[Status]statusRule{
	StatusPaid:    {watermark: "PAID", color: "#16a34a", settled: true},
	StatusUnpaid:  {watermark: "UNPAID", color: "#d97706"},
	StatusOverdue: {watermark: "OVERDUE", color: "#dc2626"},
	StatusPending: {watermark: "PENDING", color: "#2563eb"},
	StatusUnknown: {watermark: "ORIGINAL INVOICE", color: "#6b7280"},
}

// Present projects a raw status and total due onto display semantics.
func Present(rawStatus string, totalDue decimal.Decimal) Presentation {
	status := ParseStatus(rawStatus)
	rule := statusRules[status]
	p := Presentation{
		Status:         status,
		Watermark:      rule.watermark,
		WatermarkColor: rule.color,
		BalanceDue:     totalDue,
		PrimaryAction:  ActionUploadReceipt,
	}
	if rule.settled {
		p.BalanceDue = decimal.Zero
		p.PrimaryAction = ActionViewReceipt
	}
	return p
}

// BalanceDue is zero for paid invoices and the total due otherwise.
func BalanceDue(rawStatus string, totalDue decimal.Decimal) decimal.Decimal {
	return Present(rawStatus, totalDue).BalanceDue
}
