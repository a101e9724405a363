package types

import "time"

// User represents an account that can log in to the API.
// Admin accounts manage projects, users and contact messages.
type User struct {
	// ID is the unique identifier of the user.
	ID int `json:"id" db:"id"`

	// Email is the unique login address and the subject of issued tokens.
	// It is compared exactly as stored.
	Email string `json:"email" db:"email"`

	// PasswordHash stores the bcrypt hash of the user's password.
	// This field is never exposed in API responses.
	PasswordHash string `json:"-" db:"password_hash"`

	// IsActive is false for disabled accounts. Disabled accounts can
	// still obtain tokens but are rejected by protected routes.
	IsActive bool `json:"is_active" db:"is_active"`

	// IsAdmin grants access to admin-only routes.
	IsAdmin bool `json:"is_superuser" db:"is_superuser"`

	// CreatedAt is the timestamp when the user account was created.
	CreatedAt time.Time `json:"created_at" db:"created_at"`

	// UpdatedAt is the timestamp of the most recent update to the user account.
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}
