// Package customers implements the customer registry.
package customers

import "time"

// Customer is a person or company the business serves.
type Customer struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	Phone     string    `json:"phone,omitempty"`
	Address   string    `json:"address,omitempty"`
	City      string    `json:"city,omitempty"`
	Country   string    `json:"country,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Update carries the mutable customer fields. Nil means keep the stored value.
type Update struct {
	Name    *string
	Email   *string
	Phone   *string
	Address *string
	City    *string
	Country *string
}

// Note is a free-form annotation attached to a customer by a staff member.
type Note struct {
	ID         int64     `json:"id"`
	CustomerID int64     `json:"customerId"`
	AuthorID   int64     `json:"authorId"`
	Text       string    `json:"text"`
	CreatedAt  time.Time `json:"createdAt"`
}

// Stats aggregates the customer registry.
type Stats struct {
	Total        int64 `json:"total"`
	AddedLast30d int64 `json:"addedLast30d"`
}
