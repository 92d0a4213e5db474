package port

import (
	"context"
	"time"

	"github.com/finledger/finledger-backend/internal/core/domain"
)

// ResetSessionStore persists one-time, context-bound password reset sessions.
type ResetSessionStore interface {
	// Create stores the session after invalidating all prior reset sessions
	// for the same user.
	Create(ctx context.Context, session domain.PasswordResetSession) error
	// GetActive retrieves the session only while it is unconsumed and
	// unexpired. Returns repository.ErrNotFound otherwise.
	GetActive(ctx context.Context, jti string) (*domain.PasswordResetSession, error)
	// Consume marks the session consumed. Returns repository.ErrNotFound
	// when the session is missing or was already consumed, so callers can
	// treat the spend as a compare-and-set.
	Consume(ctx context.Context, jti string, at time.Time) error
	// Purge removes expired sessions.
	Purge(ctx context.Context, now time.Time) error
}
