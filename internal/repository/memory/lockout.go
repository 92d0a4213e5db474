package memory

import (
	"context"
	"sync"
	"time"

	"github.com/finledger/finledger-backend/internal/core/domain"
	"github.com/finledger/finledger-backend/internal/core/port"
)

type lockoutRecord struct {
	attempt   domain.LoginAttempt
	touchedAt time.Time
}

// LockoutTracker is an in-memory failed-login counter with a lock window.
// The mutex serializes the read-modify-write cycle the same way the Redis
// variant's server-side script does.
type LockoutTracker struct {
	mu        sync.Mutex
	records   map[string]*lockoutRecord
	threshold int
	duration  time.Duration
	now       func() time.Time
}

// NewLockoutTracker constructs an in-memory lockout tracker.
func NewLockoutTracker(threshold int, duration time.Duration) *LockoutTracker {
	return &LockoutTracker{
		records:   make(map[string]*lockoutRecord),
		threshold: threshold,
		duration:  duration,
		now:       time.Now,
	}
}

// WithClock overrides the internal clock for deterministic testing.
func (t *LockoutTracker) WithClock(clock func() time.Time) *LockoutTracker {
	if clock != nil {
		t.mu.Lock()
		defer t.mu.Unlock()
		t.now = clock
	}
	return t
}

// IsLocked reports whether a lock window is active for the email. A lock
// whose window has elapsed is cleared on read.
func (t *LockoutTracker) IsLocked(_ context.Context, email string) (bool, time.Duration, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	record, ok := t.records[domain.NormalizeEmail(email)]
	if !ok || record.attempt.LockedUntil == nil {
		return false, 0, nil
	}

	now := t.now()
	if !record.attempt.IsLocked(now) {
		record.attempt.LockedUntil = nil
		return false, 0, nil
	}

	return true, record.attempt.LockedUntil.Sub(now), nil
}

// RecordFailure increments the attempt counter, arming the lock window and
// resetting the counter when the threshold is reached.
func (t *LockoutTracker) RecordFailure(_ context.Context, email string) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	key := domain.NormalizeEmail(email)
	record, ok := t.records[key]
	if !ok {
		record = &lockoutRecord{attempt: domain.LoginAttempt{Email: key}}
		t.records[key] = record
	}

	record.attempt.Attempts++
	record.touchedAt = t.now()
	if record.attempt.Attempts >= t.threshold {
		lockedUntil := t.now().Add(t.duration)
		record.attempt.LockedUntil = &lockedUntil
		record.attempt.Attempts = 0
	}

	return nil
}

// RecordSuccess deletes the record entirely.
func (t *LockoutTracker) RecordSuccess(_ context.Context, email string) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	delete(t.records, domain.NormalizeEmail(email))
	return nil
}

// Purge drops records that are neither locked nor recently touched.
func (t *LockoutTracker) Purge(_ context.Context, now time.Time) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	stale := now.Add(-2 * t.duration)
	for key, record := range t.records {
		if record.attempt.IsLocked(now) {
			continue
		}
		if record.touchedAt.Before(stale) {
			delete(t.records, key)
		}
	}
	return nil
}

var _ port.LockoutTracker = (*LockoutTracker)(nil)
