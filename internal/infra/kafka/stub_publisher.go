package kafka

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/finledger/finledger-backend/internal/core/domain"
	"github.com/finledger/finledger-backend/internal/core/port"
	"github.com/finledger/finledger-backend/internal/infra/logger"
)

// StubPublisher logs events instead of sending them to Kafka. Useful for
// development environments without a broker.
type StubPublisher struct {
	logger *zap.Logger
}

// NewStubPublisher constructs a development-friendly event publisher.
func NewStubPublisher(log *zap.Logger) *StubPublisher {
	return &StubPublisher{logger: log}
}

func (p *StubPublisher) logEvent(eventType, userID string, at time.Time, payload any) {
	if at.IsZero() {
		at = time.Now().UTC()
	}

	p.logger.Info("Stub event published",
		zap.String("event_type", eventType),
		zap.String("user_id", userID),
		zap.Time("timestamp", at.UTC()),
		zap.Any("payload", payload),
	)
}

// PublishUserRegistered logs auth.user.registered events.
func (p *StubPublisher) PublishUserRegistered(_ context.Context, event domain.UserRegisteredEvent) error {
	payload := map[string]any{
		"user_id":       event.UserID,
		"email":         logger.MaskEmail(event.Email),
		"registered_at": event.RegisteredAt,
		"metadata":      event.Metadata,
	}
	p.logEvent("auth.user.registered", event.UserID, event.RegisteredAt, payload)
	return nil
}

// PublishPasswordChanged logs auth.user.password.changed events.
func (p *StubPublisher) PublishPasswordChanged(_ context.Context, event domain.PasswordChangedEvent) error {
	payload := map[string]any{
		"user_id":          event.UserID,
		"changed_at":       event.ChangedAt,
		"sessions_revoked": event.SessionsRevoked,
		"metadata":         event.Metadata,
	}
	p.logEvent("auth.user.password.changed", event.UserID, event.ChangedAt, payload)
	return nil
}

var _ port.EventPublisher = (*StubPublisher)(nil)

// StubMailSender logs outbound mail instead of queueing it. The code itself
// is logged only in non-production setups, which is the only place the stub
// is wired.
type StubMailSender struct {
	logger *zap.Logger
}

// NewStubMailSender constructs a logging mail sender for development.
func NewStubMailSender(log *zap.Logger) *StubMailSender {
	return &StubMailSender{logger: log}
}

func (m *StubMailSender) logMail(kind domain.MailKind, email, code string, expiresAt time.Time) {
	m.logger.Info("Stub mail queued",
		zap.String("kind", string(kind)),
		zap.String("email", logger.MaskEmail(email)),
		zap.String("code", code),
		zap.Time("expires_at", expiresAt.UTC()),
	)
}

// SendVerifyEmail logs a registration verification code.
func (m *StubMailSender) SendVerifyEmail(_ context.Context, email, code string, expiresAt time.Time) error {
	m.logMail(domain.MailVerify, email, code, expiresAt)
	return nil
}

// SendOtpEmail logs a login one-time passcode.
func (m *StubMailSender) SendOtpEmail(_ context.Context, email, code string, expiresAt time.Time) error {
	m.logMail(domain.MailOTP, email, code, expiresAt)
	return nil
}

// SendResetEmail logs a password reset code.
func (m *StubMailSender) SendResetEmail(_ context.Context, email, code string, expiresAt time.Time) error {
	m.logMail(domain.MailReset, email, code, expiresAt)
	return nil
}

var _ port.MailSender = (*StubMailSender)(nil)
