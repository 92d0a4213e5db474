package memory

import (
	"context"
	"testing"
	"time"
)

func TestLockoutTracker_LocksAtThreshold(t *testing.T) {
	ctx := context.Background()
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	tracker := NewLockoutTracker(3, 15*time.Minute).WithClock(func() time.Time { return base })

	for i := 0; i < 2; i++ {
		if err := tracker.RecordFailure(ctx, "user@example.com"); err != nil {
			t.Fatalf("RecordFailure returned error: %v", err)
		}
		locked, _, err := tracker.IsLocked(ctx, "user@example.com")
		if err != nil {
			t.Fatalf("IsLocked returned error: %v", err)
		}
		if locked {
			t.Fatalf("expected no lock after %d failures", i+1)
		}
	}

	if err := tracker.RecordFailure(ctx, "user@example.com"); err != nil {
		t.Fatalf("RecordFailure returned error: %v", err)
	}

	locked, remaining, err := tracker.IsLocked(ctx, "user@example.com")
	if err != nil {
		t.Fatalf("IsLocked returned error: %v", err)
	}
	if !locked {
		t.Fatal("expected lock after reaching threshold")
	}
	if remaining != 15*time.Minute {
		t.Errorf("expected 15m remaining, got %v", remaining)
	}
}

func TestLockoutTracker_LockExpires(t *testing.T) {
	ctx := context.Background()
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	current := base
	tracker := NewLockoutTracker(1, 10*time.Minute).WithClock(func() time.Time { return current })

	if err := tracker.RecordFailure(ctx, "user@example.com"); err != nil {
		t.Fatalf("RecordFailure returned error: %v", err)
	}
	if locked, _, _ := tracker.IsLocked(ctx, "user@example.com"); !locked {
		t.Fatal("expected lock with threshold 1")
	}

	current = base.Add(11 * time.Minute)
	if locked, _, _ := tracker.IsLocked(ctx, "user@example.com"); locked {
		t.Fatal("expected lock to have expired")
	}
}

func TestLockoutTracker_SuccessClearsCounter(t *testing.T) {
	ctx := context.Background()
	tracker := NewLockoutTracker(3, 15*time.Minute)

	for i := 0; i < 2; i++ {
		if err := tracker.RecordFailure(ctx, "user@example.com"); err != nil {
			t.Fatalf("RecordFailure returned error: %v", err)
		}
	}
	if err := tracker.RecordSuccess(ctx, "user@example.com"); err != nil {
		t.Fatalf("RecordSuccess returned error: %v", err)
	}

	// The cleared counter restarts from zero.
	for i := 0; i < 2; i++ {
		if err := tracker.RecordFailure(ctx, "user@example.com"); err != nil {
			t.Fatalf("RecordFailure returned error: %v", err)
		}
	}
	if locked, _, _ := tracker.IsLocked(ctx, "user@example.com"); locked {
		t.Fatal("expected no lock after counter reset")
	}
}

func TestLockoutTracker_NormalizesEmail(t *testing.T) {
	ctx := context.Background()
	tracker := NewLockoutTracker(2, 15*time.Minute)

	if err := tracker.RecordFailure(ctx, "User@Example.com"); err != nil {
		t.Fatalf("RecordFailure returned error: %v", err)
	}
	if err := tracker.RecordFailure(ctx, "  user@example.com "); err != nil {
		t.Fatalf("RecordFailure returned error: %v", err)
	}

	if locked, _, _ := tracker.IsLocked(ctx, "USER@EXAMPLE.COM"); !locked {
		t.Fatal("expected case and whitespace variants to share one counter")
	}
}

func TestLockoutTracker_PurgeKeepsActiveLocks(t *testing.T) {
	ctx := context.Background()
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	tracker := NewLockoutTracker(1, 10*time.Minute).WithClock(func() time.Time { return base })

	if err := tracker.RecordFailure(ctx, "locked@example.com"); err != nil {
		t.Fatalf("RecordFailure returned error: %v", err)
	}

	if err := tracker.Purge(ctx, base.Add(5*time.Minute)); err != nil {
		t.Fatalf("Purge returned error: %v", err)
	}
	if locked, _, _ := tracker.IsLocked(ctx, "locked@example.com"); !locked {
		t.Fatal("expected purge to keep the active lock")
	}
}
