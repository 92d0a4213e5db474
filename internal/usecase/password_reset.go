package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	uuid "github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/finledger/finledger-backend/internal/core/domain"
	"github.com/finledger/finledger-backend/internal/core/port"
	"github.com/finledger/finledger-backend/internal/infra/config"
	"github.com/finledger/finledger-backend/internal/infra/logger"
	"github.com/finledger/finledger-backend/internal/infra/security"
	"github.com/finledger/finledger-backend/internal/repository"
)

// PasswordResetService runs the three-step reset flow: request a code,
// confirm it into a context-bound session, spend the session on a new
// password.
type PasswordResetService struct {
	cfg           *config.AppConfig
	users         port.UserRepository
	tokens        port.UserTokenRepository
	resetSessions port.ResetSessionStore
	sessions      port.SessionRegistry
	revocations   port.RevocationStore
	signer        *security.TokenSigner
	codes         security.CodeGenerator
	passwords     *security.PasswordValidator
	mail          port.MailSender
	events        port.EventPublisher
	log           *zap.Logger
	now           func() time.Time
}

// NewPasswordResetService constructs a PasswordResetService.
func NewPasswordResetService(
	cfg *config.AppConfig,
	users port.UserRepository,
	tokens port.UserTokenRepository,
	resetSessions port.ResetSessionStore,
	sessions port.SessionRegistry,
	revocations port.RevocationStore,
	signer *security.TokenSigner,
	codes security.CodeGenerator,
	mail port.MailSender,
	events port.EventPublisher,
	log *zap.Logger,
) *PasswordResetService {
	return &PasswordResetService{
		cfg:           cfg,
		users:         users,
		tokens:        tokens,
		resetSessions: resetSessions,
		sessions:      sessions,
		revocations:   revocations,
		signer:        signer,
		codes:         codes,
		passwords:     security.DefaultPasswordValidator(),
		mail:          mail,
		events:        events,
		log:           log,
		now:           func() time.Time { return time.Now().UTC() },
	}
}

// WithClock overrides the internal clock for deterministic tests.
func (s *PasswordResetService) WithClock(clock func() time.Time) *PasswordResetService {
	if clock != nil {
		s.now = clock
	}
	return s
}

// ForgotResult reports the outcome of a reset request. The shape is the
// same whether or not the account exists.
type ForgotResult struct {
	MailWarning bool
}

// Forgot issues a reset code for an existing account. Unknown emails get
// the identical success-shaped response to prevent account enumeration.
func (s *PasswordResetService) Forgot(ctx context.Context, email string) (*ForgotResult, error) {
	email = domain.NormalizeEmail(email)
	if email == "" {
		return nil, NewValidationError("email is required")
	}

	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return &ForgotResult{}, nil
		}
		return nil, fmt.Errorf("lookup user: %w", err)
	}

	code, err := s.codes.Generate()
	if err != nil {
		return nil, fmt.Errorf("generate reset code: %w", err)
	}

	now := s.now()
	token := domain.UserToken{
		ID:        uuid.NewString(),
		UserID:    user.ID,
		Kind:      domain.UserTokenReset,
		TokenHash: security.HashToken(code),
		CreatedAt: now,
		ExpiresAt: now.Add(s.cfg.Auth.ResetTokenTTL),
	}
	if err := s.tokens.Issue(ctx, token); err != nil {
		return nil, fmt.Errorf("issue reset token: %w", err)
	}

	result := &ForgotResult{}
	if err := s.mail.SendResetEmail(ctx, email, code, token.ExpiresAt); err != nil {
		s.log.Warn("reset email not queued",
			zap.String("email", logger.MaskEmail(email)),
			zap.Error(err),
		)
		result.MailWarning = true
	}

	return result, nil
}

// ResetSessionResult carries the opaque session token returned after a
// reset code is confirmed.
type ResetSessionResult struct {
	SessionToken string
	ExpiresAt    time.Time
}

// ConfirmResetToken redeems a reset code into a one-time session bound to
// the caller's context. The session never outlives the code it came from.
func (s *PasswordResetService) ConfirmResetToken(ctx context.Context, code, ip, userAgent string) (*ResetSessionResult, error) {
	code = strings.TrimSpace(code)
	if code == "" {
		return nil, NewValidationError("code is required")
	}

	token, err := s.tokens.GetActiveByHash(ctx, domain.UserTokenReset, security.HashToken(code))
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("lookup reset token: %w", err)
	}

	now := s.now()
	if !token.IsActive(now) {
		return nil, ErrInvalidCredentials
	}

	if err := s.tokens.Consume(ctx, token.ID, now); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("consume reset token: %w", err)
	}

	ttl := s.cfg.Auth.ResetSessionTTL
	if remaining := token.ExpiresAt.Sub(now); remaining < ttl {
		ttl = remaining
	}

	session := domain.PasswordResetSession{
		JTI:       uuid.NewString(),
		UserID:    token.UserID,
		IPHash:    security.HashClientIP(ip),
		UAHash:    security.HashClientContext(userAgent),
		CreatedAt: now,
		ExpiresAt: now.Add(ttl),
	}
	if err := s.resetSessions.Create(ctx, session); err != nil {
		return nil, fmt.Errorf("create reset session: %w", err)
	}

	return &ResetSessionResult{SessionToken: session.JTI, ExpiresAt: session.ExpiresAt}, nil
}

// ResetPassword spends the reset session on a new password. The token
// version bump invalidates every outstanding access token and all refresh
// sessions are revoked, forcing logout everywhere.
func (s *PasswordResetService) ResetPassword(ctx context.Context, sessionToken, newPassword, ip, userAgent string) error {
	sessionToken = strings.TrimSpace(sessionToken)
	if sessionToken == "" {
		return NewValidationError("session token is required")
	}

	session, err := s.resetSessions.GetActive(ctx, sessionToken)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrInvalidCredentials
		}
		return fmt.Errorf("lookup reset session: %w", err)
	}

	if !matchesContext(session, ip, userAgent) {
		return ErrInvalidCredentials
	}

	if err := s.passwords.Validate(newPassword); err != nil {
		return &ValidationError{Message: err.Error()}
	}

	passwordHash, err := security.HashPassword(newPassword)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}

	// Spend the session before touching the password. The store only
	// consumes an unconsumed session, so of two concurrent resets exactly
	// one proceeds past this point.
	now := s.now()
	if err := s.resetSessions.Consume(ctx, session.JTI, now); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrInvalidCredentials
		}
		return fmt.Errorf("consume reset session: %w", err)
	}

	if _, err := s.users.UpdatePassword(ctx, session.UserID, passwordHash, now); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrInvalidCredentials
		}
		return fmt.Errorf("update password: %w", err)
	}

	jtis, err := s.sessions.RevokeAll(ctx, session.UserID)
	if err != nil {
		return fmt.Errorf("revoke sessions: %w", err)
	}
	// The registry no longer knows each session's expiry; the refresh TTL
	// bounds how long any of them could still have lived.
	revokeUntil := now.Add(s.signer.RefreshTTL())
	for _, jti := range jtis {
		if err := s.revocations.Revoke(ctx, jti, revokeUntil); err != nil {
			return fmt.Errorf("revoke session token: %w", err)
		}
	}

	if err := s.events.PublishPasswordChanged(ctx, domain.PasswordChangedEvent{
		EventID:         uuid.NewString(),
		UserID:          session.UserID,
		ChangedAt:       now,
		SessionsRevoked: len(jtis),
	}); err != nil {
		s.log.Warn("password changed event not published",
			zap.String("user_id", session.UserID),
			zap.Error(err),
		)
	}

	return nil
}

// matchesContext compares the stored context hashes against the caller's.
// An empty stored hash means the attribute was not captured at creation and
// is not checked.
func matchesContext(session *domain.PasswordResetSession, ip, userAgent string) bool {
	if session.IPHash != "" && session.IPHash != security.HashClientIP(ip) {
		return false
	}
	if session.UAHash != "" && session.UAHash != security.HashClientContext(userAgent) {
		return false
	}
	return true
}
