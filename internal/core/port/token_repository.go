package port

import (
	"context"
	"time"

	"github.com/finledger/finledger-backend/internal/core/domain"
)

// UserTokenRepository persists hashed single-use verification and reset codes.
type UserTokenRepository interface {
	// Issue stores the token after invalidating any prior active token of
	// the same kind for the same user.
	Issue(ctx context.Context, token domain.UserToken) error
	// GetActiveByHash retrieves an unused, unexpired token by its hash and kind.
	GetActiveByHash(ctx context.Context, kind domain.UserTokenKind, tokenHash string) (*domain.UserToken, error)
	// Consume marks the token as used.
	Consume(ctx context.Context, id string, at time.Time) error
	// Purge removes expired and consumed tokens.
	Purge(ctx context.Context, now time.Time) error
}
