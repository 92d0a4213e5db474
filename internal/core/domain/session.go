package domain

import "time"

// UserSession represents an active refresh-token session, keyed by the
// refresh token's jti. A user holds at most the configured maximum of
// these; the oldest is evicted first when the cap is exceeded.
type UserSession struct {
	JTI       string
	UserID    string
	CreatedAt time.Time
	ExpiresAt time.Time
}

// IsActive reports whether the session is still valid at the supplied moment.
func (s UserSession) IsActive(at time.Time) bool {
	return s.ExpiresAt.After(at)
}

// PasswordResetSession is a short-lived, single-use authorization produced
// after a reset code is confirmed. It is bound to the client context
// (hashed IP and user agent) captured at creation time; an empty stored
// hash means the context could not be captured and is not checked.
type PasswordResetSession struct {
	JTI        string
	UserID     string
	IPHash     string
	UAHash     string
	CreatedAt  time.Time
	ExpiresAt  time.Time
	ConsumedAt *time.Time
}

// IsExpired reports whether the session window has elapsed.
func (s PasswordResetSession) IsExpired(at time.Time) bool {
	return !s.ExpiresAt.After(at)
}

// IsActive returns true while the session is unconsumed and unexpired.
func (s PasswordResetSession) IsActive(at time.Time) bool {
	return s.ConsumedAt == nil && !s.IsExpired(at)
}

// Consume marks the session as used. Returns true when the session
// transitioned from active to consumed.
func (s *PasswordResetSession) Consume(at time.Time) bool {
	if s.ConsumedAt != nil {
		return false
	}
	timeCopy := at
	s.ConsumedAt = &timeCopy
	return true
}
