package memory

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/finledger/finledger-backend/internal/core/domain"
	"github.com/finledger/finledger-backend/internal/core/port"
)

// RevocationStore is an in-memory JTI denylist. Used when Redis is not
// configured and as the store of record in tests.
type RevocationStore struct {
	mu      sync.RWMutex
	entries map[string]domain.RevokedToken
	now     func() time.Time
}

// NewRevocationStore constructs an in-memory revocation store.
func NewRevocationStore() *RevocationStore {
	return &RevocationStore{
		entries: make(map[string]domain.RevokedToken),
		now:     time.Now,
	}
}

// WithClock overrides the internal clock for deterministic testing.
func (s *RevocationStore) WithClock(clock func() time.Time) *RevocationStore {
	if clock != nil {
		s.mu.Lock()
		defer s.mu.Unlock()
		s.now = clock
	}
	return s
}

// Revoke records the jti until its expiry elapses.
func (s *RevocationStore) Revoke(_ context.Context, jti string, expiresAt time.Time) error {
	jti = strings.TrimSpace(jti)
	if jti == "" || expiresAt.IsZero() {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	entry := domain.RevokedToken{JTI: jti, ExpiresAt: expiresAt.UTC()}
	if entry.IsExpired(s.now()) {
		return nil
	}
	s.entries[jti] = entry
	return nil
}

// IsRevoked reports whether the jti is recorded and unexpired. Expired
// entries are dropped on lookup.
func (s *RevocationStore) IsRevoked(_ context.Context, jti string) (bool, error) {
	jti = strings.TrimSpace(jti)
	if jti == "" {
		return false, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.entries[jti]
	if !ok {
		return false, nil
	}
	if entry.IsExpired(s.now()) {
		delete(s.entries, jti)
		return false, nil
	}

	return true, nil
}

// Purge removes expired entries.
func (s *RevocationStore) Purge(_ context.Context, now time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for jti, entry := range s.entries {
		if entry.IsExpired(now) {
			delete(s.entries, jti)
		}
	}
	return nil
}

var _ port.RevocationStore = (*RevocationStore)(nil)
