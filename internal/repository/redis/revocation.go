package redis

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	red "github.com/redis/go-redis/v9"

	"github.com/finledger/finledger-backend/internal/core/port"
)

const defaultRevocationPrefix = "revoked"

// RevocationRepository manages token JTI revocation state backed by Redis.
// Entries live exactly as long as the token they shadow would have.
type RevocationRepository struct {
	client *red.Client
	prefix string
	now    func() time.Time
}

// NewRevocationRepository wires a Redis client into a revocation repository.
func NewRevocationRepository(client *red.Client, keyPrefix string) *RevocationRepository {
	prefix := strings.TrimSpace(keyPrefix)
	if prefix == "" {
		prefix = defaultRevocationPrefix
	}

	return &RevocationRepository{client: client, prefix: prefix, now: time.Now}
}

// WithClock overrides the internal clock, used in tests.
func (r *RevocationRepository) WithClock(clock func() time.Time) {
	if clock != nil {
		r.now = clock
	}
}

// Revoke records the jti with a TTL matching the token expiry. Already
// expired tokens are skipped.
func (r *RevocationRepository) Revoke(ctx context.Context, jti string, expiresAt time.Time) error {
	key := r.key(jti)
	if key == "" || expiresAt.IsZero() {
		return nil
	}

	ttl := expiresAt.Sub(r.now())
	if ttl <= 0 {
		return nil
	}

	if err := r.client.Set(ctx, key, "1", ttl).Err(); err != nil {
		return fmt.Errorf("redis set revoked jti: %w", err)
	}

	return nil
}

// IsRevoked reports whether the jti is recorded and not yet expired.
func (r *RevocationRepository) IsRevoked(ctx context.Context, jti string) (bool, error) {
	key := r.key(jti)
	if key == "" {
		return false, errors.New("jti must not be empty")
	}

	if _, err := r.client.Get(ctx, key).Result(); err != nil {
		if errors.Is(err, red.Nil) {
			return false, nil
		}
		return false, fmt.Errorf("redis get revoked jti: %w", err)
	}

	return true, nil
}

// Purge is a no-op for Redis: entries expire via key TTL.
func (r *RevocationRepository) Purge(_ context.Context, _ time.Time) error {
	return nil
}

func (r *RevocationRepository) key(jti string) string {
	trimmed := strings.TrimSpace(jti)
	if trimmed == "" {
		return ""
	}
	return fmt.Sprintf("%s:%s", r.prefix, trimmed)
}

var _ port.RevocationStore = (*RevocationRepository)(nil)
