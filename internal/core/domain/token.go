package domain

import "time"

// TokenKind distinguishes the two signed credential carriers.
type TokenKind string

const (
	TokenKindAccess  TokenKind = "access"
	TokenKindRefresh TokenKind = "refresh"
)

// UserTokenKind enumerates the single-use hashed codes owned by a user.
type UserTokenKind string

const (
	UserTokenVerify UserTokenKind = "verify"
	UserTokenReset  UserTokenKind = "reset"
)

// UserToken is a hashed single-use code (email verification or password
// reset) owned by a user. At most one active token exists per (user, kind).
type UserToken struct {
	ID        string
	UserID    string
	Kind      UserTokenKind
	TokenHash string
	CreatedAt time.Time
	ExpiresAt time.Time
	UsedAt    *time.Time
}

// IsExpired reports whether the token can still be redeemed.
func (t UserToken) IsExpired(at time.Time) bool {
	return !t.ExpiresAt.After(at)
}

// IsActive returns true while the token is unused and unexpired.
func (t UserToken) IsActive(at time.Time) bool {
	return t.UsedAt == nil && !t.IsExpired(at)
}

// Consume marks the token as used.
// Returns true when the token transitions from unused to used.
func (t *UserToken) Consume(at time.Time) bool {
	if t.UsedAt != nil {
		return false
	}
	timeCopy := at
	t.UsedAt = &timeCopy
	return true
}

// RevokedToken records a blacklisted token id together with the expiry of
// the token it belonged to, so entries can be pruned lazily.
type RevokedToken struct {
	JTI       string
	ExpiresAt time.Time
}

// IsExpired reports whether the revocation entry itself can be dropped.
func (r RevokedToken) IsExpired(at time.Time) bool {
	return !r.ExpiresAt.After(at)
}

// LoginAttempt tracks failed-login state per normalized email.
// Reaching the configured threshold zeroes the counter and sets LockedUntil;
// the lock timestamp, not the counter, is the signal.
type LoginAttempt struct {
	Email       string
	Attempts    int
	LockedUntil *time.Time
}

// IsLocked reports whether a lock window is active at the supplied moment.
func (a LoginAttempt) IsLocked(at time.Time) bool {
	return a.LockedUntil != nil && a.LockedUntil.After(at)
}

// OTPChallenge is the single active login passcode for an identity.
type OTPChallenge struct {
	Email     string
	Code      string
	CreatedAt time.Time
	ExpiresAt time.Time
}

// IsExpired reports whether the challenge window has elapsed.
func (c OTPChallenge) IsExpired(at time.Time) bool {
	return !c.ExpiresAt.After(at)
}
