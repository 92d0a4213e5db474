package port

import (
	"context"
	"time"

	"github.com/finledger/finledger-backend/internal/core/domain"
)

// SessionRegistry tracks the bounded set of active refresh-token sessions
// per user.
type SessionRegistry interface {
	// Register prunes the user's expired sessions, inserts the new one, and
	// evicts the oldest entries (by creation time) until the user is back at
	// the cap. Insert and trim are atomic per user.
	Register(ctx context.Context, session domain.UserSession, maxPerUser int) error
	// IsActive reports whether a non-expired session exists for the jti.
	IsActive(ctx context.Context, jti string) (bool, error)
	// Revoke deletes the session if present. Idempotent.
	Revoke(ctx context.Context, jti string) error
	// RevokeAll deletes and returns all session ids for the user.
	RevokeAll(ctx context.Context, userID string) ([]string, error)
	// Purge removes expired sessions.
	Purge(ctx context.Context, now time.Time) error
}
