package domain

import "time"

// UserRegisteredEvent announces a verified registration to downstream consumers.
type UserRegisteredEvent struct {
	EventID      string         `json:"event_id"`
	UserID       string         `json:"user_id"`
	Email        string         `json:"email"`
	RegisteredAt time.Time      `json:"registered_at"`
	Metadata     map[string]any `json:"metadata,omitempty"`
}

// PasswordChangedEvent announces a completed password reset or change.
type PasswordChangedEvent struct {
	EventID         string         `json:"event_id"`
	UserID          string         `json:"user_id"`
	ChangedAt       time.Time      `json:"changed_at"`
	SessionsRevoked int            `json:"sessions_revoked"`
	Metadata        map[string]any `json:"metadata,omitempty"`
}

// MailKind enumerates the outbound notification templates.
type MailKind string

const (
	MailVerify MailKind = "verify_email"
	MailOTP    MailKind = "otp_code"
	MailReset  MailKind = "password_reset"
)

// MailEvent is the payload handed to the notification pipeline. Delivery is
// fire-and-forget from the auth core's perspective.
type MailEvent struct {
	EventID   string    `json:"event_id"`
	Kind      MailKind  `json:"kind"`
	Email     string    `json:"email"`
	Code      string    `json:"code"`
	ExpiresAt time.Time `json:"expires_at"`
	CreatedAt time.Time `json:"created_at"`
}
