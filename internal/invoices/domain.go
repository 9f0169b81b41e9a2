// Package invoices implements invoicing for completed work.
package invoices

import "time"

// Invoice statuses.
const (
	StatusDraft = "draft"
	StatusSent  = "sent"
	StatusPaid  = "paid"
	StatusVoid  = "void"
)

// Invoice bills a customer for delivered services. Amounts are stored in
// minor units (cents).
type Invoice struct {
	ID          int64      `json:"id"`
	CustomerID  int64      `json:"customerId"`
	Number      string     `json:"number"`
	Status      string     `json:"status"`
	Currency    string     `json:"currency"`
	SubtotalMin int64      `json:"subtotalMinor"`
	TaxMin      int64      `json:"taxMinor"`
	TotalMin    int64      `json:"totalMinor"`
	Display     string     `json:"displayTotal,omitempty"`
	IssuedAt    time.Time  `json:"issuedAt"`
	DueAt       time.Time  `json:"dueAt"`
	PaidAt      *time.Time `json:"paidAt,omitempty"`
	Items       []LineItem `json:"items,omitempty"`
	CreatedAt   time.Time  `json:"createdAt"`
	UpdatedAt   time.Time  `json:"updatedAt"`
}

// LineItem is a single billed position.
type LineItem struct {
	ID           int64  `json:"id"`
	InvoiceID    int64  `json:"invoiceId"`
	Description  string `json:"description"`
	Quantity     int64  `json:"quantity"`
	UnitPriceMin int64  `json:"unitPriceMinor"`
	AmountMin    int64  `json:"amountMinor"`
	TaxRateBasis int64  `json:"taxRateBasisPoints"`
}

// Stats aggregates invoices.
type Stats struct {
	Total          int64 `json:"total"`
	Open           int64 `json:"open"`
	Paid           int64 `json:"paid"`
	OutstandingMin int64 `json:"outstandingMinor"`
}

// ValidStatus reports whether s is a known invoice status.
func ValidStatus(s string) bool {
	switch s {
	case StatusDraft, StatusSent, StatusPaid, StatusVoid:
		return true
	}
	return false
}
