package domain

import (
	"strings"
	"time"
)

// Role enumerates account roles.
type Role string

const (
	RoleUser  Role = "user"
	RoleAdmin Role = "admin"
)

// User mirrors the persisted representation in the users table.
// Rows are created only by promoting a verified pending registration,
// so EmailVerified is true for every user this subsystem produces.
type User struct {
	ID                 string
	Email              string
	PasswordHash       string
	FullName           string
	BaseCurrency       string
	Role               Role
	EmailVerified      bool
	TokenVersion       int64
	RegisteredAt       time.Time
	LastPasswordChange time.Time
}

// PendingRegistration is an unconfirmed signup awaiting email verification.
// There is at most one per email; a repeated registration replaces it.
type PendingRegistration struct {
	Email        string
	PasswordHash string
	FullName     string
	BaseCurrency string
	Role         Role
	CodeHash     string
	CreatedAt    time.Time
	ExpiresAt    time.Time
}

// IsExpired reports whether the registration window has elapsed.
func (p PendingRegistration) IsExpired(at time.Time) bool {
	return !p.ExpiresAt.After(at)
}

// NormalizeEmail canonicalizes an email address for identity comparison.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
