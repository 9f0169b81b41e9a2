// Package requests implements contact request intake and processing.
package requests

import "time"

// Request statuses.
const (
	StatusNew        = "new"
	StatusInProgress = "in_progress"
	StatusCompleted  = "completed"
	StatusCancelled  = "cancelled"
)

// Request is an inbound contact request submitted through the public form.
type Request struct {
	ID            int64     `json:"id"`
	Name          string    `json:"name"`
	Email         string    `json:"email"`
	Phone         string    `json:"phone,omitempty"`
	Service       string    `json:"service"`
	Message       string    `json:"message,omitempty"`
	Status        string    `json:"status"`
	ProcessorID   *int64    `json:"processorId,omitempty"`
	CustomerID    *int64    `json:"customerId,omitempty"`
	AppointmentID *int64    `json:"appointmentId,omitempty"`
	CreatedAt     time.Time `json:"createdAt"`
	UpdatedAt     time.Time `json:"updatedAt"`
}

// Intake captures a new public submission.
type Intake struct {
	Name    string
	Email   string
	Phone   string
	Service string
	Message string
}

// Note is a free-form annotation attached to a request by a staff member.
type Note struct {
	ID        int64     `json:"id"`
	RequestID int64     `json:"requestId"`
	AuthorID  int64     `json:"authorId"`
	Text      string    `json:"text"`
	CreatedAt time.Time `json:"createdAt"`
}

// Stats aggregates requests by status.
type Stats struct {
	Total      int64 `json:"total"`
	New        int64 `json:"new"`
	InProgress int64 `json:"inProgress"`
	Completed  int64 `json:"completed"`
	Cancelled  int64 `json:"cancelled"`
}

// ValidStatus reports whether s is a known request status.
func ValidStatus(s string) bool {
	switch s {
	case StatusNew, StatusInProgress, StatusCompleted, StatusCancelled:
		return true
	}
	return false
}
