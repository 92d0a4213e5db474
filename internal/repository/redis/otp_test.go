package redis

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/finledger/finledger-backend/internal/repository"
)

func TestOTPRepository_IssueAndGetActive(t *testing.T) {
	client, server := newTestRedis(t)
	repo := NewOTPRepository(client, "otp")

	ctx := context.Background()

	challenge, err := repo.Issue(ctx, "User@Example.com", "123456", 5*time.Minute)
	if err != nil {
		t.Fatalf("Issue returned error: %v", err)
	}
	if challenge.Email != "user@example.com" {
		t.Errorf("expected normalized email, got %q", challenge.Email)
	}

	active, err := repo.GetActive(ctx, "user@example.com")
	if err != nil {
		t.Fatalf("GetActive returned error: %v", err)
	}
	if active.Code != "123456" {
		t.Errorf("expected stored code, got %q", active.Code)
	}

	remaining := server.TTL("otp:user@example.com")
	if remaining <= 0 || remaining > 5*time.Minute {
		t.Fatalf("expected ttl within (0, 5m], got %v", remaining)
	}
}

func TestOTPRepository_VerifyConsumesOnSuccess(t *testing.T) {
	client, _ := newTestRedis(t)
	repo := NewOTPRepository(client, "otp")

	ctx := context.Background()

	if _, err := repo.Issue(ctx, "user@example.com", "123456", 5*time.Minute); err != nil {
		t.Fatalf("Issue returned error: %v", err)
	}

	ok, err := repo.Verify(ctx, "user@example.com", "123456")
	if err != nil {
		t.Fatalf("Verify returned error: %v", err)
	}
	if !ok {
		t.Fatal("expected verification to succeed")
	}

	if ok, _ := repo.Verify(ctx, "user@example.com", "123456"); ok {
		t.Fatal("expected consumed challenge to reject replay")
	}
}

func TestOTPRepository_WrongCodeKeepsChallenge(t *testing.T) {
	client, _ := newTestRedis(t)
	repo := NewOTPRepository(client, "otp")

	ctx := context.Background()

	if _, err := repo.Issue(ctx, "user@example.com", "123456", 5*time.Minute); err != nil {
		t.Fatalf("Issue returned error: %v", err)
	}

	if ok, _ := repo.Verify(ctx, "user@example.com", "999999"); ok {
		t.Fatal("expected mismatch to fail")
	}
	if ok, _ := repo.Verify(ctx, "user@example.com", "123456"); !ok {
		t.Fatal("expected correct code to still succeed after a mismatch")
	}
}

func TestOTPRepository_ExpiredChallengeDropped(t *testing.T) {
	client, _ := newTestRedis(t)
	repo := NewOTPRepository(client, "otp")

	ctx := context.Background()
	base := time.Now()
	repo.WithClock(func() time.Time { return base })

	if _, err := repo.Issue(ctx, "user@example.com", "123456", 5*time.Minute); err != nil {
		t.Fatalf("Issue returned error: %v", err)
	}

	repo.WithClock(func() time.Time { return base.Add(6 * time.Minute) })

	if _, err := repo.GetActive(ctx, "user@example.com"); !errors.Is(err, repository.ErrNotFound) {
		t.Fatalf("expected ErrNotFound for expired challenge, got %v", err)
	}
	if ok, _ := repo.Verify(ctx, "user@example.com", "123456"); ok {
		t.Fatal("expected expired challenge to fail verification")
	}
}

func TestOTPRepository_IssueOverwrites(t *testing.T) {
	client, _ := newTestRedis(t)
	repo := NewOTPRepository(client, "otp")

	ctx := context.Background()

	if _, err := repo.Issue(ctx, "user@example.com", "111111", 5*time.Minute); err != nil {
		t.Fatalf("Issue returned error: %v", err)
	}
	if _, err := repo.Issue(ctx, "user@example.com", "222222", 5*time.Minute); err != nil {
		t.Fatalf("Issue returned error: %v", err)
	}

	if ok, _ := repo.Verify(ctx, "user@example.com", "111111"); ok {
		t.Fatal("expected replaced code to fail")
	}
	if ok, _ := repo.Verify(ctx, "user@example.com", "222222"); !ok {
		t.Fatal("expected current code to succeed")
	}
}

func TestOTPRepository_ConcurrentVerifyConsumesOnce(t *testing.T) {
	client, _ := newTestRedis(t)
	repo := NewOTPRepository(client, "otp")

	ctx := context.Background()

	for round := 0; round < 50; round++ {
		if _, err := repo.Issue(ctx, "user@example.com", "123456", time.Minute); err != nil {
			t.Fatalf("Issue returned error: %v", err)
		}

		const verifiers = 4
		var wg sync.WaitGroup
		var successes int32

		for i := 0; i < verifiers; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				ok, err := repo.Verify(ctx, "user@example.com", "123456")
				if err != nil {
					t.Errorf("Verify returned error: %v", err)
					return
				}
				if ok {
					atomic.AddInt32(&successes, 1)
				}
			}()
		}
		wg.Wait()

		if successes != 1 {
			t.Fatalf("round %d: expected exactly one successful verify, got %d", round, successes)
		}
	}
}
