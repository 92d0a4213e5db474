package port

import (
	"context"
	"time"

	"github.com/finledger/finledger-backend/internal/core/domain"
)

// OTPChallenges manages the single active one-time passcode per identity.
// Issue and Verify serialize per key so concurrent logins cannot race a
// duplicate challenge into existence.
type OTPChallenges interface {
	// Issue stores the challenge with the supplied TTL, overwriting any
	// prior challenge for the email.
	Issue(ctx context.Context, email, code string, ttl time.Duration) (*domain.OTPChallenge, error)
	// GetActive returns the current unexpired challenge, or
	// repository.ErrNotFound. Used to avoid re-sending a code while one is
	// still live; callers must not expose the code.
	GetActive(ctx context.Context, email string) (*domain.OTPChallenge, error)
	// Verify checks the code against the active challenge. The challenge is
	// consumed on success and purged when found expired.
	Verify(ctx context.Context, email, code string) (bool, error)
	// Purge removes expired challenges.
	Purge(ctx context.Context, now time.Time) error
}
