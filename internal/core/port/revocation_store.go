package port

import (
	"context"
	"time"
)

// RevocationStore blacklists token ids until the tokens they belonged to
// would have expired anyway.
type RevocationStore interface {
	// Revoke records the jti. No-op when jti is empty or expiry is zero.
	Revoke(ctx context.Context, jti string, expiresAt time.Time) error
	// IsRevoked reports whether the jti is recorded and not yet past its
	// expiry. Expired entries are dropped lazily on lookup.
	IsRevoked(ctx context.Context, jti string) (bool, error)
	// Purge removes expired revocation entries.
	Purge(ctx context.Context, now time.Time) error
}
