// Package appointments implements appointment scheduling.
package appointments

import "time"

// Appointment statuses.
const (
	StatusPlanned   = "planned"
	StatusConfirmed = "confirmed"
	StatusCompleted = "completed"
	StatusCancelled = "cancelled"
)

// Appointment is a scheduled meeting with a customer.
type Appointment struct {
	ID           int64     `json:"id"`
	CustomerID   int64     `json:"customerId"`
	Title        string    `json:"title"`
	StartsAt     time.Time `json:"startsAt"`
	EndsAt       time.Time `json:"endsAt"`
	Location     string    `json:"location,omitempty"`
	Note         string    `json:"note,omitempty"`
	Status       string    `json:"status"`
	CancelReason string    `json:"cancelReason,omitempty"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

// Update carries the mutable appointment fields. Nil means keep the stored
// value.
type Update struct {
	Title    *string
	StartsAt *time.Time
	EndsAt   *time.Time
	Location *string
	Note     *string
	Status   *string
}

// Stats aggregates appointments.
type Stats struct {
	Total     int64 `json:"total"`
	Upcoming  int64 `json:"upcoming"`
	Completed int64 `json:"completed"`
	Cancelled int64 `json:"cancelled"`
}

// ValidStatus reports whether s is a known appointment status.
func ValidStatus(s string) bool {
	switch s {
	case StatusPlanned, StatusConfirmed, StatusCompleted, StatusCancelled:
		return true
	}
	return false
}
