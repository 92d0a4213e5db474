package port

import (
	"context"
	"time"

	"github.com/finledger/finledger-backend/internal/core/domain"
)

// UserRepository provides access to persisted user accounts.
type UserRepository interface {
	// GetByID retrieves a user by identifier. Returns repository.ErrNotFound when absent.
	GetByID(ctx context.Context, id string) (*domain.User, error)
	// GetByEmail retrieves a user by normalized email.
	GetByEmail(ctx context.Context, email string) (*domain.User, error)
	// UpdatePassword replaces the password hash and bumps the token version
	// in a single statement, so every token minted with the prior version is
	// invalid as soon as the call returns.
	UpdatePassword(ctx context.Context, id, passwordHash string, changedAt time.Time) (newTokenVersion int64, err error)
}
