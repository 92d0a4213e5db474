package redis

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	red "github.com/redis/go-redis/v9"

	"github.com/finledger/finledger-backend/internal/core/domain"
	"github.com/finledger/finledger-backend/internal/core/port"
)

const (
	defaultLockoutPrefix = "lockout"

	fieldAttempts    = "attempts"
	fieldLockedUntil = "locked_until"
)

// lockoutScript increments the failure counter and, once the threshold is
// reached, arms the lock window and resets the counter. Runs server-side so
// concurrent failures cannot race past the threshold.
var lockoutScript = red.NewScript(`
local attempts = redis.call('HINCRBY', KEYS[1], 'attempts', 1)
if attempts >= tonumber(ARGV[1]) then
  redis.call('HSET', KEYS[1], 'locked_until', ARGV[2])
  redis.call('HSET', KEYS[1], 'attempts', 0)
end
redis.call('EXPIRE', KEYS[1], ARGV[3])
return attempts
`)

// LockoutRepository tracks failed login attempts per email in Redis hashes.
type LockoutRepository struct {
	client    *red.Client
	prefix    string
	threshold int
	duration  time.Duration
	now       func() time.Time
}

// NewLockoutRepository constructs a lockout tracker with the supplied
// threshold and lock duration.
func NewLockoutRepository(client *red.Client, keyPrefix string, threshold int, duration time.Duration) *LockoutRepository {
	prefix := strings.TrimSpace(keyPrefix)
	if prefix == "" {
		prefix = defaultLockoutPrefix
	}

	return &LockoutRepository{
		client:    client,
		prefix:    prefix,
		threshold: threshold,
		duration:  duration,
		now:       time.Now,
	}
}

// WithClock overrides the internal clock, used in tests.
func (r *LockoutRepository) WithClock(clock func() time.Time) {
	if clock != nil {
		r.now = clock
	}
}

// IsLocked reports whether a lock window is active for the email. A lock
// whose window has elapsed is cleared on read.
func (r *LockoutRepository) IsLocked(ctx context.Context, email string) (bool, time.Duration, error) {
	key := r.key(email)
	if key == "" {
		return false, 0, errors.New("email must not be empty")
	}

	raw, err := r.client.HGet(ctx, key, fieldLockedUntil).Result()
	if err != nil {
		if errors.Is(err, red.Nil) {
			return false, 0, nil
		}
		return false, 0, fmt.Errorf("redis hget lockout: %w", err)
	}

	lockedUntil, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return false, 0, fmt.Errorf("parse locked_until: %w", err)
	}

	remaining := time.Unix(lockedUntil, 0).Sub(r.now())
	if remaining <= 0 {
		if err := r.client.HDel(ctx, key, fieldLockedUntil).Err(); err != nil {
			return false, 0, fmt.Errorf("redis hdel lockout: %w", err)
		}
		return false, 0, nil
	}

	return true, remaining, nil
}

// RecordFailure increments the attempt counter, arming the lock window when
// the threshold is reached.
func (r *LockoutRepository) RecordFailure(ctx context.Context, email string) error {
	key := r.key(email)
	if key == "" {
		return errors.New("email must not be empty")
	}

	lockedUntil := r.now().Add(r.duration).Unix()
	ttl := int64((r.duration * 2) / time.Second)
	if ttl <= 0 {
		ttl = int64(time.Hour / time.Second)
	}

	if err := lockoutScript.Run(ctx, r.client, []string{key},
		r.threshold, lockedUntil, ttl).Err(); err != nil {
		return fmt.Errorf("redis lockout script: %w", err)
	}

	return nil
}

// RecordSuccess deletes the record entirely.
func (r *LockoutRepository) RecordSuccess(ctx context.Context, email string) error {
	key := r.key(email)
	if key == "" {
		return errors.New("email must not be empty")
	}

	if err := r.client.Del(ctx, key).Err(); err != nil {
		return fmt.Errorf("redis del lockout: %w", err)
	}

	return nil
}

// Purge is a no-op for Redis: records expire via key TTL.
func (r *LockoutRepository) Purge(_ context.Context, _ time.Time) error {
	return nil
}

func (r *LockoutRepository) key(email string) string {
	email = domain.NormalizeEmail(email)
	if email == "" {
		return ""
	}
	return fmt.Sprintf("%s:%s", r.prefix, email)
}

var _ port.LockoutTracker = (*LockoutRepository)(nil)
