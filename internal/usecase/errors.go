package usecase

import (
	"errors"
	"fmt"
	"time"
)

var (
	// ErrInvalidCredentials covers bad passwords, bad OTP codes, invalid or
	// expired or revoked tokens, and reset-context mismatches. Deliberately
	// indistinct so callers cannot probe which check failed.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrEmailAlreadyExists indicates a verified account already owns the email.
	ErrEmailAlreadyExists = errors.New("email already registered")
)

// ValidationError indicates malformed or policy-violating input.
type ValidationError struct {
	Message string
}

// Error implements error.
func (e *ValidationError) Error() string {
	return e.Message
}

// NewValidationError builds a ValidationError with the supplied message.
func NewValidationError(format string, args ...any) *ValidationError {
	return &ValidationError{Message: fmt.Sprintf(format, args...)}
}

// AccountLockedError indicates the identity is inside a lockout window.
type AccountLockedError struct {
	RetryAfter time.Duration
}

// Error implements error.
func (e *AccountLockedError) Error() string {
	return fmt.Sprintf("account locked, retry in %s", e.RetryAfter.Round(time.Second))
}

// RateLimitedError indicates a sliding-window limit was exceeded.
type RateLimitedError struct {
	RetryAfter time.Duration
}

// Error implements error.
func (e *RateLimitedError) Error() string {
	return fmt.Sprintf("rate limit exceeded, retry in %s", e.RetryAfter.Round(time.Second))
}
