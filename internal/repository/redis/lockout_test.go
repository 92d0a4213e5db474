package redis

import (
	"context"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	red "github.com/redis/go-redis/v9"
)

func newTestRedis(t *testing.T) (*red.Client, *miniredis.Miniredis) {
	t.Helper()

	server, err := miniredis.Run()
	if err != nil {
		t.Fatalf("failed to start miniredis: %v", err)
	}

	client := red.NewClient(&red.Options{Addr: server.Addr()})

	t.Cleanup(func() {
		_ = client.Close()
		server.Close()
	})

	return client, server
}

func TestLockoutRepository_LocksAtThreshold(t *testing.T) {
	client, _ := newTestRedis(t)
	repo := NewLockoutRepository(client, "lockout", 3, 15*time.Minute)

	ctx := context.Background()

	for i := 0; i < 2; i++ {
		if err := repo.RecordFailure(ctx, "user@example.com"); err != nil {
			t.Fatalf("RecordFailure returned error: %v", err)
		}
		locked, _, err := repo.IsLocked(ctx, "user@example.com")
		if err != nil {
			t.Fatalf("IsLocked returned error: %v", err)
		}
		if locked {
			t.Fatalf("expected no lock after %d failures", i+1)
		}
	}

	if err := repo.RecordFailure(ctx, "user@example.com"); err != nil {
		t.Fatalf("RecordFailure returned error: %v", err)
	}

	locked, remaining, err := repo.IsLocked(ctx, "user@example.com")
	if err != nil {
		t.Fatalf("IsLocked returned error: %v", err)
	}
	if !locked {
		t.Fatal("expected lock after reaching threshold")
	}
	if remaining <= 0 || remaining > 15*time.Minute {
		t.Errorf("expected remaining within (0, 15m], got %v", remaining)
	}
}

func TestLockoutRepository_LockExpires(t *testing.T) {
	client, _ := newTestRedis(t)
	repo := NewLockoutRepository(client, "lockout", 1, 10*time.Minute)

	ctx := context.Background()
	base := time.Now()
	repo.WithClock(func() time.Time { return base })

	if err := repo.RecordFailure(ctx, "user@example.com"); err != nil {
		t.Fatalf("RecordFailure returned error: %v", err)
	}
	if locked, _, _ := repo.IsLocked(ctx, "user@example.com"); !locked {
		t.Fatal("expected lock with threshold 1")
	}

	repo.WithClock(func() time.Time { return base.Add(11 * time.Minute) })
	if locked, _, _ := repo.IsLocked(ctx, "user@example.com"); locked {
		t.Fatal("expected lock to have elapsed")
	}
	// The elapsed lock was cleared on read.
	if locked, _, _ := repo.IsLocked(ctx, "user@example.com"); locked {
		t.Fatal("expected cleared lock to stay cleared")
	}
}

func TestLockoutRepository_SuccessResetsCounter(t *testing.T) {
	client, server := newTestRedis(t)
	repo := NewLockoutRepository(client, "lockout", 3, 15*time.Minute)

	ctx := context.Background()

	for i := 0; i < 2; i++ {
		if err := repo.RecordFailure(ctx, "user@example.com"); err != nil {
			t.Fatalf("RecordFailure returned error: %v", err)
		}
	}
	if err := repo.RecordSuccess(ctx, "user@example.com"); err != nil {
		t.Fatalf("RecordSuccess returned error: %v", err)
	}
	if server.Exists("lockout:user@example.com") {
		t.Fatal("expected record deleted on success")
	}

	// Counter restarts from zero.
	for i := 0; i < 2; i++ {
		if err := repo.RecordFailure(ctx, "user@example.com"); err != nil {
			t.Fatalf("RecordFailure returned error: %v", err)
		}
	}
	if locked, _, _ := repo.IsLocked(ctx, "user@example.com"); locked {
		t.Fatal("expected no lock after counter reset")
	}
}

func TestLockoutRepository_KeyHasTTL(t *testing.T) {
	client, server := newTestRedis(t)
	repo := NewLockoutRepository(client, "lockout", 5, 15*time.Minute)

	ctx := context.Background()
	if err := repo.RecordFailure(ctx, "user@example.com"); err != nil {
		t.Fatalf("RecordFailure returned error: %v", err)
	}

	remaining := server.TTL("lockout:user@example.com")
	if remaining <= 0 || remaining > 30*time.Minute {
		t.Fatalf("expected ttl within (0, 30m], got %v", remaining)
	}
}
