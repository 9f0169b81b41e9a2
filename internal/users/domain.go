package users

import "time"

// User represents a managed platform account.
type User struct {
	ID        int64     `json:"id"`
	Email     string    `json:"email"`
	Name      string    `json:"name"`
	Role      string    `json:"role"`
	IsActive  bool      `json:"is_active"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Update carries optional field changes for a user.
type Update struct {
	Email    *string
	Name     *string
	Password *string
	IsActive *bool
}
