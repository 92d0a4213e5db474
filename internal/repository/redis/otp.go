package redis

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	red "github.com/redis/go-redis/v9"

	"github.com/finledger/finledger-backend/internal/core/domain"
	"github.com/finledger/finledger-backend/internal/core/port"
	"github.com/finledger/finledger-backend/internal/repository"
)

const (
	defaultOTPPrefix = "otp"

	fieldCode      = "code"
	fieldCreatedAt = "created_at"
	fieldExpiresAt = "expires_at"
)

// OTPRepository persists the single active login passcode per email in a
// Redis hash whose TTL matches the challenge lifetime.
type OTPRepository struct {
	client *red.Client
	prefix string
	now    func() time.Time
}

// NewOTPRepository constructs an OTP repository with the provided Redis
// client and key prefix.
func NewOTPRepository(client *red.Client, keyPrefix string) *OTPRepository {
	prefix := strings.TrimSpace(keyPrefix)
	if prefix == "" {
		prefix = defaultOTPPrefix
	}

	return &OTPRepository{
		client: client,
		prefix: prefix,
		now:    time.Now,
	}
}

// WithClock overrides the internal clock, used in tests.
func (r *OTPRepository) WithClock(clock func() time.Time) {
	if clock != nil {
		r.now = clock
	}
}

// Issue stores the challenge, overwriting any prior challenge for the email.
func (r *OTPRepository) Issue(ctx context.Context, email, code string, ttl time.Duration) (*domain.OTPChallenge, error) {
	code = strings.TrimSpace(code)

	key := r.key(email)
	switch {
	case key == "":
		return nil, errors.New("email is required")
	case code == "":
		return nil, errors.New("code is required")
	case ttl <= 0:
		return nil, errors.New("ttl must be positive")
	}

	now := r.now().UTC()
	expiresAt := now.Add(ttl)

	pipe := r.client.TxPipeline()
	pipe.HSet(ctx, key, map[string]any{
		fieldCode:      code,
		fieldCreatedAt: strconv.FormatInt(now.Unix(), 10),
		fieldExpiresAt: strconv.FormatInt(expiresAt.Unix(), 10),
	})
	pipe.Expire(ctx, key, ttl)

	if _, err := pipe.Exec(ctx); err != nil {
		return nil, fmt.Errorf("redis store otp: %w", err)
	}

	return &domain.OTPChallenge{
		Email:     domain.NormalizeEmail(email),
		Code:      code,
		CreatedAt: now,
		ExpiresAt: expiresAt,
	}, nil
}

// GetActive returns the current unexpired challenge for the email.
func (r *OTPRepository) GetActive(ctx context.Context, email string) (*domain.OTPChallenge, error) {
	key := r.key(email)
	if key == "" {
		return nil, errors.New("email is required")
	}

	values, err := r.client.HGetAll(ctx, key).Result()
	if err != nil {
		return nil, fmt.Errorf("redis hgetall otp: %w", err)
	}
	if len(values) == 0 {
		return nil, repository.ErrNotFound
	}

	code := strings.TrimSpace(values[fieldCode])
	if code == "" {
		return nil, repository.ErrNotFound
	}

	createdAt, err := parseUnix(values[fieldCreatedAt])
	if err != nil {
		return nil, fmt.Errorf("parse created_at: %w", err)
	}

	expiresAt, err := parseUnix(values[fieldExpiresAt])
	if err != nil {
		return nil, fmt.Errorf("parse expires_at: %w", err)
	}

	if !expiresAt.After(r.now()) {
		if delErr := r.client.Del(ctx, key).Err(); delErr != nil {
			return nil, fmt.Errorf("redis del expired otp: %w", delErr)
		}
		return nil, repository.ErrNotFound
	}

	return &domain.OTPChallenge{
		Email:     domain.NormalizeEmail(email),
		Code:      code,
		CreatedAt: createdAt,
		ExpiresAt: expiresAt,
	}, nil
}

// Verify checks the code against the active challenge, consuming it on
// success. A mismatch leaves the challenge in place.
func (r *OTPRepository) Verify(ctx context.Context, email, code string) (bool, error) {
	challenge, err := r.GetActive(ctx, email)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return false, nil
		}
		return false, err
	}

	if subtle.ConstantTimeCompare([]byte(challenge.Code), []byte(strings.TrimSpace(code))) != 1 {
		return false, nil
	}

	deleted, err := r.client.Del(ctx, r.key(email)).Result()
	if err != nil {
		return false, fmt.Errorf("redis del otp: %w", err)
	}
	if deleted == 0 {
		// A concurrent verify already spent the challenge.
		return false, nil
	}

	return true, nil
}

// Purge is a no-op for Redis: challenges expire via key TTL.
func (r *OTPRepository) Purge(_ context.Context, _ time.Time) error {
	return nil
}

func (r *OTPRepository) key(email string) string {
	email = domain.NormalizeEmail(email)
	if email == "" {
		return ""
	}
	return fmt.Sprintf("%s:%s", r.prefix, email)
}

func parseUnix(raw string) (time.Time, error) {
	if strings.TrimSpace(raw) == "" {
		return time.Time{}, errors.New("timestamp is empty")
	}
	v, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return time.Time{}, err
	}
	return time.Unix(v, 0).UTC(), nil
}

var _ port.OTPChallenges = (*OTPRepository)(nil)
