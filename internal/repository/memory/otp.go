package memory

import (
	"context"
	"crypto/subtle"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/finledger/finledger-backend/internal/core/domain"
	"github.com/finledger/finledger-backend/internal/core/port"
	"github.com/finledger/finledger-backend/internal/repository"
)

// OTPStore keeps the single active login passcode per email in memory.
type OTPStore struct {
	mu         sync.Mutex
	challenges map[string]domain.OTPChallenge
	now        func() time.Time
}

// NewOTPStore constructs an in-memory OTP store.
func NewOTPStore() *OTPStore {
	return &OTPStore{
		challenges: make(map[string]domain.OTPChallenge),
		now:        time.Now,
	}
}

// WithClock overrides the internal clock for deterministic testing.
func (s *OTPStore) WithClock(clock func() time.Time) *OTPStore {
	if clock != nil {
		s.mu.Lock()
		defer s.mu.Unlock()
		s.now = clock
	}
	return s
}

// Issue stores the challenge, overwriting any prior challenge for the email.
func (s *OTPStore) Issue(_ context.Context, email, code string, ttl time.Duration) (*domain.OTPChallenge, error) {
	key := domain.NormalizeEmail(email)
	code = strings.TrimSpace(code)

	switch {
	case key == "":
		return nil, errors.New("email is required")
	case code == "":
		return nil, errors.New("code is required")
	case ttl <= 0:
		return nil, errors.New("ttl must be positive")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now().UTC()
	challenge := domain.OTPChallenge{
		Email:     key,
		Code:      code,
		CreatedAt: now,
		ExpiresAt: now.Add(ttl),
	}
	s.challenges[key] = challenge

	return &challenge, nil
}

// GetActive returns the current unexpired challenge for the email.
func (s *OTPStore) GetActive(_ context.Context, email string) (*domain.OTPChallenge, error) {
	key := domain.NormalizeEmail(email)

	s.mu.Lock()
	defer s.mu.Unlock()

	challenge, ok := s.challenges[key]
	if !ok {
		return nil, repository.ErrNotFound
	}
	if !challenge.ExpiresAt.After(s.now()) {
		delete(s.challenges, key)
		return nil, repository.ErrNotFound
	}

	copied := challenge
	return &copied, nil
}

// Verify checks the code against the active challenge, consuming it on
// success. A mismatch leaves the challenge in place.
func (s *OTPStore) Verify(_ context.Context, email, code string) (bool, error) {
	key := domain.NormalizeEmail(email)

	s.mu.Lock()
	defer s.mu.Unlock()

	challenge, ok := s.challenges[key]
	if !ok {
		return false, nil
	}
	if !challenge.ExpiresAt.After(s.now()) {
		delete(s.challenges, key)
		return false, nil
	}

	if subtle.ConstantTimeCompare([]byte(challenge.Code), []byte(strings.TrimSpace(code))) != 1 {
		return false, nil
	}

	delete(s.challenges, key)
	return true, nil
}

// Purge removes expired challenges.
func (s *OTPStore) Purge(_ context.Context, now time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for key, challenge := range s.challenges {
		if !challenge.ExpiresAt.After(now) {
			delete(s.challenges, key)
		}
	}
	return nil
}

var _ port.OTPChallenges = (*OTPStore)(nil)
