package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/IBM/sarama"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/finledger/finledger-backend/internal/core/domain"
	"github.com/finledger/finledger-backend/internal/core/port"
)

const mailTopic = "notifications.email"

// MailSender hands mail events to the notification pipeline over Kafka.
// Delivery is asynchronous; the auth flows never wait on the mailer worker.
type MailSender struct {
	producer *Producer
	logger   *zap.Logger
	now      func() time.Time
}

// NewMailSender constructs a Kafka-backed mail sender.
func NewMailSender(producer *Producer, logger *zap.Logger) *MailSender {
	return &MailSender{producer: producer, logger: logger, now: time.Now}
}

// WithClock overrides the internal clock, used in tests.
func (m *MailSender) WithClock(clock func() time.Time) {
	if clock != nil {
		m.now = clock
	}
}

func (m *MailSender) send(ctx context.Context, kind domain.MailKind, email, code string, expiresAt time.Time) error {
	event := domain.MailEvent{
		EventID:   uuid.NewString(),
		Kind:      kind,
		Email:     email,
		Code:      code,
		ExpiresAt: expiresAt.UTC(),
		CreatedAt: m.now().UTC(),
	}

	bytes, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal mail event: %w", err)
	}

	message := &sarama.ProducerMessage{
		Topic: m.producer.TopicName(mailTopic),
		Key:   sarama.StringEncoder(email),
		Value: sarama.ByteEncoder(bytes),
	}

	select {
	case m.producer.Producer().Input() <- message:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// SendVerifyEmail queues a registration verification code.
func (m *MailSender) SendVerifyEmail(ctx context.Context, email, code string, expiresAt time.Time) error {
	return m.send(ctx, domain.MailVerify, email, code, expiresAt)
}

// SendOtpEmail queues a login one-time passcode.
func (m *MailSender) SendOtpEmail(ctx context.Context, email, code string, expiresAt time.Time) error {
	return m.send(ctx, domain.MailOTP, email, code, expiresAt)
}

// SendResetEmail queues a password reset code.
func (m *MailSender) SendResetEmail(ctx context.Context, email, code string, expiresAt time.Time) error {
	return m.send(ctx, domain.MailReset, email, code, expiresAt)
}

var _ port.MailSender = (*MailSender)(nil)
