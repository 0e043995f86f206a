package models

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// Fixed role names seeded into every credential store
const (
	RoleAdmin      = "Admin"
	RoleInstructor = "Instructor"
	RoleUsers      = "Users"
)

// DefaultRoles lists the roles that must exist before registration can succeed
var DefaultRoles = []string{RoleAdmin, RoleInstructor, RoleUsers}

// Account represents a registered account holder
type Account struct {
	ID                 uuid.UUID `json:"id" db:"id"`
	Username           string    `json:"username" db:"username"`
	NormalizedUsername string    `json:"-" db:"normalized_username"`
	Email              string    `json:"email" db:"email"`
	NormalizedEmail    string    `json:"-" db:"normalized_email"`
	PasswordHash       string    `json:"-" db:"password_hash"`
	SecurityStamp      string    `json:"-" db:"security_stamp"`
	RoleNames          []string  `json:"roles,omitempty" db:"-"`
	CreatedAt          time.Time `json:"created_at" db:"created_at"`
	UpdatedAt          time.Time `json:"updated_at" db:"updated_at"`
}

// NewAccount creates a new Account with normalized lookup keys
func NewAccount(username, email, securityStamp, passwordHash string) *Account {
	now := time.Now().UTC()
	return &Account{
		ID:                 uuid.New(),
		Username:           username,
		NormalizedUsername: Normalize(username),
		Email:              email,
		NormalizedEmail:    Normalize(email),
		PasswordHash:       passwordHash,
		SecurityStamp:      securityStamp,
		CreatedAt:          now,
		UpdatedAt:          now,
	}
}

// Normalize returns the case-insensitive lookup key for usernames, emails and role names
func Normalize(s string) string {
	return strings.ToUpper(strings.TrimSpace(s))
}
