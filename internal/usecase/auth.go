package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/finledger/finledger-backend/internal/core/domain"
	"github.com/finledger/finledger-backend/internal/core/port"
	"github.com/finledger/finledger-backend/internal/infra/config"
	"github.com/finledger/finledger-backend/internal/infra/logger"
	"github.com/finledger/finledger-backend/internal/infra/security"
	"github.com/finledger/finledger-backend/internal/repository"
)

// AuthService coordinates login, OTP, refresh rotation, and logout.
type AuthService struct {
	cfg         *config.AppConfig
	users       port.UserRepository
	lockout     port.LockoutTracker
	otp         port.OTPChallenges
	sessions    port.SessionRegistry
	revocations port.RevocationStore
	signer      *security.TokenSigner
	codes       security.CodeGenerator
	mail        port.MailSender
	issuer      sessionIssuer
	log         *zap.Logger
	now         func() time.Time
}

// NewAuthService constructs an AuthService.
func NewAuthService(
	cfg *config.AppConfig,
	users port.UserRepository,
	lockout port.LockoutTracker,
	otp port.OTPChallenges,
	sessions port.SessionRegistry,
	revocations port.RevocationStore,
	signer *security.TokenSigner,
	codes security.CodeGenerator,
	mail port.MailSender,
	log *zap.Logger,
) *AuthService {
	now := func() time.Time { return time.Now().UTC() }
	return &AuthService{
		cfg:         cfg,
		users:       users,
		lockout:     lockout,
		otp:         otp,
		sessions:    sessions,
		revocations: revocations,
		signer:      signer,
		codes:       codes,
		mail:        mail,
		issuer: sessionIssuer{
			signer:      signer,
			sessions:    sessions,
			maxSessions: cfg.Auth.MaxSessionsPerUser,
			now:         now,
		},
		log: log,
		now: now,
	}
}

// WithClock overrides the internal clock for deterministic tests.
func (s *AuthService) WithClock(clock func() time.Time) *AuthService {
	if clock != nil {
		s.now = clock
		s.issuer.now = clock
	}
	return s
}

// LoginResult is the outcome of a password login. Exactly one of Tokens or
// OTPRequired is meaningful.
type LoginResult struct {
	Tokens       *TokenPair
	OTPRequired  bool
	OTPExpiresIn time.Duration
	MailWarning  bool
}

// Login authenticates a password. With OTP disabled it returns tokens
// directly; with OTP enabled it returns a challenge instead, reusing the
// active one rather than reissuing while it is still live.
func (s *AuthService) Login(ctx context.Context, email, password string) (*LoginResult, error) {
	email = domain.NormalizeEmail(email)
	if email == "" || password == "" {
		return nil, NewValidationError("email and password are required")
	}

	locked, remaining, err := s.lockout.IsLocked(ctx, email)
	if err != nil {
		return nil, fmt.Errorf("check lockout: %w", err)
	}
	if locked {
		return nil, &AccountLockedError{RetryAfter: remaining}
	}

	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, s.failLogin(ctx, email)
		}
		return nil, fmt.Errorf("lookup user: %w", err)
	}

	ok, err := security.VerifyPassword(password, user.PasswordHash)
	if err != nil {
		return nil, fmt.Errorf("verify password: %w", err)
	}
	if !ok {
		return nil, s.failLogin(ctx, email)
	}

	if s.cfg.Auth.OTPEnabled {
		return s.issueOTPChallenge(ctx, email)
	}

	if err := s.lockout.RecordSuccess(ctx, email); err != nil {
		return nil, fmt.Errorf("clear lockout: %w", err)
	}

	tokens, err := s.issuer.issuePair(ctx, user)
	if err != nil {
		return nil, err
	}
	return &LoginResult{Tokens: tokens}, nil
}

// failLogin records the failure and collapses the cause into
// ErrInvalidCredentials.
func (s *AuthService) failLogin(ctx context.Context, email string) error {
	if err := s.lockout.RecordFailure(ctx, email); err != nil {
		return fmt.Errorf("record login failure: %w", err)
	}
	return ErrInvalidCredentials
}

func (s *AuthService) issueOTPChallenge(ctx context.Context, email string) (*LoginResult, error) {
	active, err := s.otp.GetActive(ctx, email)
	if err == nil {
		// A challenge is still live. Report its remaining window without
		// resending the code.
		return &LoginResult{
			OTPRequired:  true,
			OTPExpiresIn: active.ExpiresAt.Sub(s.now()),
		}, nil
	}
	if !errors.Is(err, repository.ErrNotFound) {
		return nil, fmt.Errorf("lookup otp challenge: %w", err)
	}

	code, err := s.codes.Generate()
	if err != nil {
		return nil, fmt.Errorf("generate otp code: %w", err)
	}

	challenge, err := s.otp.Issue(ctx, email, code, s.cfg.Auth.OTPTTL)
	if err != nil {
		return nil, fmt.Errorf("issue otp challenge: %w", err)
	}

	result := &LoginResult{
		OTPRequired:  true,
		OTPExpiresIn: challenge.ExpiresAt.Sub(s.now()),
	}
	if err := s.mail.SendOtpEmail(ctx, email, code, challenge.ExpiresAt); err != nil {
		s.log.Warn("otp email not queued",
			zap.String("email", logger.MaskEmail(email)),
			zap.Error(err),
		)
		result.MailWarning = true
	}

	return result, nil
}

// VerifyOtp redeems a one-time passcode and issues a token pair. OTP
// failures are independent of the password lockout counter.
func (s *AuthService) VerifyOtp(ctx context.Context, email, code string) (*TokenPair, error) {
	email = domain.NormalizeEmail(email)
	if email == "" || strings.TrimSpace(code) == "" {
		return nil, NewValidationError("email and code are required")
	}

	ok, err := s.otp.Verify(ctx, email, code)
	if err != nil {
		return nil, fmt.Errorf("verify otp: %w", err)
	}
	if !ok {
		return nil, ErrInvalidCredentials
	}

	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("lookup user: %w", err)
	}

	if err := s.lockout.RecordSuccess(ctx, email); err != nil {
		return nil, fmt.Errorf("clear lockout: %w", err)
	}

	return s.issuer.issuePair(ctx, user)
}

// Refresh rotates a refresh token: the old jti is revoked and its session
// replaced, so replaying the superseded token fails.
func (s *AuthService) Refresh(ctx context.Context, refreshToken string) (*TokenPair, error) {
	claims, err := s.parseRefresh(ctx, refreshToken)
	if err != nil {
		return nil, err
	}

	user, err := s.users.GetByID(ctx, claims.UserID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("lookup user: %w", err)
	}
	if claims.TokenVersion != user.TokenVersion {
		return nil, ErrInvalidCredentials
	}

	if err := s.revocations.Revoke(ctx, claims.ID, claims.ExpiresAt.Time); err != nil {
		return nil, fmt.Errorf("revoke rotated token: %w", err)
	}
	if err := s.sessions.Revoke(ctx, claims.ID); err != nil {
		return nil, fmt.Errorf("revoke rotated session: %w", err)
	}

	return s.issuer.issuePair(ctx, user)
}

func (s *AuthService) parseRefresh(ctx context.Context, refreshToken string) (*security.AuthClaims, error) {
	claims, err := s.signer.Parse(refreshToken)
	if err != nil {
		return nil, ErrInvalidCredentials
	}
	if claims.Kind != domain.TokenKindRefresh {
		return nil, ErrInvalidCredentials
	}

	revoked, err := s.revocations.IsRevoked(ctx, claims.ID)
	if err != nil {
		return nil, fmt.Errorf("check revocation: %w", err)
	}
	if revoked {
		return nil, ErrInvalidCredentials
	}

	active, err := s.sessions.IsActive(ctx, claims.ID)
	if err != nil {
		return nil, fmt.Errorf("check session: %w", err)
	}
	if !active {
		return nil, ErrInvalidCredentials
	}

	return claims, nil
}

// Logout revokes whichever of the two tokens are present and valid. Invalid
// or missing tokens are skipped silently; logout is idempotent.
func (s *AuthService) Logout(ctx context.Context, accessToken, refreshToken string) error {
	for _, token := range []string{accessToken, refreshToken} {
		if strings.TrimSpace(token) == "" {
			continue
		}
		claims, err := s.signer.Parse(token)
		if err != nil {
			continue
		}
		if err := s.revocations.Revoke(ctx, claims.ID, claims.ExpiresAt.Time); err != nil {
			return fmt.Errorf("revoke token: %w", err)
		}
		if claims.Kind == domain.TokenKindRefresh {
			if err := s.sessions.Revoke(ctx, claims.ID); err != nil {
				return fmt.Errorf("revoke session: %w", err)
			}
		}
	}
	return nil
}

// Authenticate resolves an access token into a Principal. A revoked jti or
// stale token version fails even when the token itself is unexpired.
func (s *AuthService) Authenticate(ctx context.Context, accessToken string) (*Principal, error) {
	claims, err := s.signer.Parse(accessToken)
	if err != nil {
		return nil, ErrInvalidCredentials
	}
	if claims.Kind != domain.TokenKindAccess {
		return nil, ErrInvalidCredentials
	}

	revoked, err := s.revocations.IsRevoked(ctx, claims.ID)
	if err != nil {
		return nil, fmt.Errorf("check revocation: %w", err)
	}
	if revoked {
		return nil, ErrInvalidCredentials
	}

	user, err := s.users.GetByID(ctx, claims.UserID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("lookup user: %w", err)
	}
	if claims.TokenVersion != user.TokenVersion {
		return nil, ErrInvalidCredentials
	}

	return &Principal{
		UserID:        user.ID,
		Email:         user.Email,
		Role:          user.Role,
		TokenVersion:  user.TokenVersion,
		EmailVerified: user.EmailVerified,
	}, nil
}
