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

// RegistrationService handles signup with deferred email verification.
type RegistrationService struct {
	cfg       *config.AppConfig
	users     port.UserRepository
	pending   port.PendingRegistrationStore
	mail      port.MailSender
	events    port.EventPublisher
	codes     security.CodeGenerator
	passwords *security.PasswordValidator
	issuer    sessionIssuer
	log       *zap.Logger
	now       func() time.Time
}

// NewRegistrationService constructs a RegistrationService.
func NewRegistrationService(
	cfg *config.AppConfig,
	users port.UserRepository,
	pending port.PendingRegistrationStore,
	sessions port.SessionRegistry,
	signer *security.TokenSigner,
	codes security.CodeGenerator,
	mail port.MailSender,
	events port.EventPublisher,
	log *zap.Logger,
) *RegistrationService {
	now := func() time.Time { return time.Now().UTC() }
	return &RegistrationService{
		cfg:       cfg,
		users:     users,
		pending:   pending,
		mail:      mail,
		events:    events,
		codes:     codes,
		passwords: security.DefaultPasswordValidator(),
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
func (s *RegistrationService) WithClock(clock func() time.Time) *RegistrationService {
	if clock != nil {
		s.now = clock
		s.issuer.now = clock
	}
	return s
}

// RegisterInput carries the signup request fields.
type RegisterInput struct {
	Email        string
	Password     string
	FullName     string
	BaseCurrency string
}

// RegisterResult reports the outcome of a signup attempt. MailWarning is set
// when the verification email could not be queued; the pending registration
// is committed regardless.
type RegisterResult struct {
	Email       string
	ExpiresAt   time.Time
	MailWarning bool
}

// Register upserts a pending registration and sends a verification code.
// Repeated registration for the same email replaces the prior pending row;
// no tokens are issued until the code is verified.
func (s *RegistrationService) Register(ctx context.Context, input RegisterInput) (*RegisterResult, error) {
	email := domain.NormalizeEmail(input.Email)
	if email == "" || !strings.Contains(email, "@") {
		return nil, NewValidationError("a valid email is required")
	}
	if strings.TrimSpace(input.FullName) == "" {
		return nil, NewValidationError("full name is required")
	}
	currency := strings.ToUpper(strings.TrimSpace(input.BaseCurrency))
	if len(currency) != 3 {
		return nil, NewValidationError("base currency must be a 3-letter code")
	}
	if err := s.passwords.Validate(input.Password); err != nil {
		return nil, &ValidationError{Message: err.Error()}
	}

	if _, err := s.users.GetByEmail(ctx, email); err == nil {
		return nil, ErrEmailAlreadyExists
	} else if !errors.Is(err, repository.ErrNotFound) {
		return nil, fmt.Errorf("lookup user: %w", err)
	}

	passwordHash, err := security.HashPassword(input.Password)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	code, err := s.codes.Generate()
	if err != nil {
		return nil, fmt.Errorf("generate verification code: %w", err)
	}

	now := s.now()
	pending := domain.PendingRegistration{
		Email:        email,
		PasswordHash: passwordHash,
		FullName:     strings.TrimSpace(input.FullName),
		BaseCurrency: currency,
		Role:         domain.RoleUser,
		CodeHash:     security.HashToken(code),
		CreatedAt:    now,
		ExpiresAt:    now.Add(s.cfg.Auth.VerificationTTL),
	}
	if err := s.pending.Upsert(ctx, pending); err != nil {
		return nil, fmt.Errorf("store pending registration: %w", err)
	}

	result := &RegisterResult{Email: email, ExpiresAt: pending.ExpiresAt}
	if err := s.mail.SendVerifyEmail(ctx, email, code, pending.ExpiresAt); err != nil {
		s.log.Warn("verification email not queued",
			zap.String("email", logger.MaskEmail(email)),
			zap.Error(err),
		)
		result.MailWarning = true
	}

	return result, nil
}

// Verify promotes a pending registration into a user on a valid code and
// issues the first token pair. An invalid or expired code never creates a
// user, not even partially.
func (s *RegistrationService) Verify(ctx context.Context, email, code string) (*TokenPair, error) {
	email = domain.NormalizeEmail(email)
	if email == "" || strings.TrimSpace(code) == "" {
		return nil, NewValidationError("email and code are required")
	}

	pending, err := s.pending.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("lookup pending registration: %w", err)
	}

	now := s.now()
	if pending.IsExpired(now) {
		return nil, ErrInvalidCredentials
	}
	if security.HashToken(strings.TrimSpace(code)) != pending.CodeHash {
		return nil, ErrInvalidCredentials
	}

	user := domain.User{
		ID:                 uuid.NewString(),
		Email:              pending.Email,
		PasswordHash:       pending.PasswordHash,
		FullName:           pending.FullName,
		BaseCurrency:       pending.BaseCurrency,
		Role:               pending.Role,
		EmailVerified:      true,
		TokenVersion:       0,
		RegisteredAt:       now,
		LastPasswordChange: now,
	}
	if err := s.pending.Promote(ctx, email, user); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, ErrEmailAlreadyExists
		}
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("promote pending registration: %w", err)
	}

	if err := s.events.PublishUserRegistered(ctx, domain.UserRegisteredEvent{
		EventID:      uuid.NewString(),
		UserID:       user.ID,
		Email:        user.Email,
		RegisteredAt: user.RegisteredAt,
	}); err != nil {
		s.log.Warn("user registered event not published",
			zap.String("user_id", user.ID),
			zap.Error(err),
		)
	}

	return s.issuer.issuePair(ctx, &user)
}
