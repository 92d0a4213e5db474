package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/finledger/finledger-backend/internal/repository"
)

func TestOTPStore_IssueAndVerify(t *testing.T) {
	ctx := context.Background()
	store := NewOTPStore()

	challenge, err := store.Issue(ctx, "user@example.com", "123456", 5*time.Minute)
	if err != nil {
		t.Fatalf("Issue returned error: %v", err)
	}
	if challenge.Code != "123456" {
		t.Fatalf("expected stored code, got %q", challenge.Code)
	}

	ok, err := store.Verify(ctx, "user@example.com", "123456")
	if err != nil {
		t.Fatalf("Verify returned error: %v", err)
	}
	if !ok {
		t.Fatal("expected verification to succeed")
	}

	// Consumed on success: a replay fails.
	ok, err = store.Verify(ctx, "user@example.com", "123456")
	if err != nil {
		t.Fatalf("Verify returned error: %v", err)
	}
	if ok {
		t.Fatal("expected consumed challenge to reject replay")
	}
}

func TestOTPStore_WrongCodeKeepsChallenge(t *testing.T) {
	ctx := context.Background()
	store := NewOTPStore()

	if _, err := store.Issue(ctx, "user@example.com", "123456", 5*time.Minute); err != nil {
		t.Fatalf("Issue returned error: %v", err)
	}

	ok, err := store.Verify(ctx, "user@example.com", "999999")
	if err != nil {
		t.Fatalf("Verify returned error: %v", err)
	}
	if ok {
		t.Fatal("expected wrong code to fail")
	}

	// The challenge survives the mismatch.
	ok, err = store.Verify(ctx, "user@example.com", "123456")
	if err != nil {
		t.Fatalf("Verify returned error: %v", err)
	}
	if !ok {
		t.Fatal("expected correct code to still succeed after a mismatch")
	}
}

func TestOTPStore_IssueOverwrites(t *testing.T) {
	ctx := context.Background()
	store := NewOTPStore()

	if _, err := store.Issue(ctx, "user@example.com", "111111", 5*time.Minute); err != nil {
		t.Fatalf("Issue returned error: %v", err)
	}
	if _, err := store.Issue(ctx, "user@example.com", "222222", 5*time.Minute); err != nil {
		t.Fatalf("Issue returned error: %v", err)
	}

	if ok, _ := store.Verify(ctx, "user@example.com", "111111"); ok {
		t.Fatal("expected replaced code to fail")
	}
	if ok, _ := store.Verify(ctx, "user@example.com", "222222"); !ok {
		t.Fatal("expected current code to succeed")
	}
}

func TestOTPStore_Expiry(t *testing.T) {
	ctx := context.Background()
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	current := base
	store := NewOTPStore().WithClock(func() time.Time { return current })

	if _, err := store.Issue(ctx, "user@example.com", "123456", 5*time.Minute); err != nil {
		t.Fatalf("Issue returned error: %v", err)
	}

	current = base.Add(6 * time.Minute)

	if _, err := store.GetActive(ctx, "user@example.com"); !errors.Is(err, repository.ErrNotFound) {
		t.Fatalf("expected ErrNotFound for expired challenge, got %v", err)
	}
	if ok, _ := store.Verify(ctx, "user@example.com", "123456"); ok {
		t.Fatal("expected expired challenge to fail verification")
	}
}

func TestOTPStore_Purge(t *testing.T) {
	ctx := context.Background()
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	store := NewOTPStore().WithClock(func() time.Time { return base })

	if _, err := store.Issue(ctx, "old@example.com", "111111", time.Minute); err != nil {
		t.Fatalf("Issue returned error: %v", err)
	}
	if _, err := store.Issue(ctx, "new@example.com", "222222", time.Hour); err != nil {
		t.Fatalf("Issue returned error: %v", err)
	}

	if err := store.Purge(ctx, base.Add(10*time.Minute)); err != nil {
		t.Fatalf("Purge returned error: %v", err)
	}

	if _, err := store.GetActive(ctx, "old@example.com"); !errors.Is(err, repository.ErrNotFound) {
		t.Fatalf("expected expired challenge purged, got %v", err)
	}
	if _, err := store.GetActive(ctx, "new@example.com"); err != nil {
		t.Fatalf("expected live challenge to survive purge, got %v", err)
	}
}
