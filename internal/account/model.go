// Package account implements registration, login, and profile management
// over a relational store. The chat core never calls into it: a client logs in
// here first and then asserts its display name on the chat connection.
package account

import (
	"time"

	"github.com/google/uuid"
)

// Profile is the public view of an account. It never carries the password.
type Profile struct {
	ID        uuid.UUID `json:"-"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	Phone     string    `json:"phone"`
	Role      string    `json:"role"`
	CreatedAt time.Time `json:"-"`
}

// Record is a stored account row.
type Record struct {
	Profile
	PasswordHash string
}

// NewAccount is the registration input. Every field is required.
type NewAccount struct {
	Name     string `json:"name" validate:"required,max=100"`
	Email    string `json:"email" validate:"required,email,max=254"`
	Phone    string `json:"phone" validate:"required,max=32"`
	Role     string `json:"role" validate:"required,max=50"`
	Password string `json:"password" validate:"required,bcryptlen"`
}

// Credentials is the login input.
type Credentials struct {
	Email    string `json:"email" validate:"required"`
	Password string `json:"password" validate:"required"`
}

// ProfileUpdate replaces the editable fields of a profile. The email may
// change, which moves the account to a new key.
type ProfileUpdate struct {
	Name  string `json:"name" validate:"required,max=100"`
	Email string `json:"email" validate:"required,email,max=254"`
	Role  string `json:"role" validate:"required,max=50"`
}
