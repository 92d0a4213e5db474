package port

import (
	"context"
	"time"
)

// LockoutTracker counts failed login attempts per normalized email and
// enforces a lock window once the threshold is reached. Read-modify-write
// cycles are atomic per key.
type LockoutTracker interface {
	// IsLocked reports whether a lock window is active for the email and how
	// long it has left. A found-but-expired record is cleared.
	IsLocked(ctx context.Context, email string) (bool, time.Duration, error)
	// RecordFailure increments the attempt counter. When the counter reaches
	// the threshold the record's lock window is set and the counter resets
	// to zero; the lock itself, not the counter, is the signal.
	RecordFailure(ctx context.Context, email string) error
	// RecordSuccess deletes the record entirely.
	RecordSuccess(ctx context.Context, email string) error
	// Purge removes expired lock records.
	Purge(ctx context.Context, now time.Time) error
}
