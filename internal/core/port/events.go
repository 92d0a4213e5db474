package port

import (
	"context"

	"github.com/finledger/finledger-backend/internal/core/domain"
)

// EventPublisher emits auth lifecycle events for downstream consumers.
type EventPublisher interface {
	PublishUserRegistered(ctx context.Context, event domain.UserRegisteredEvent) error
	PublishPasswordChanged(ctx context.Context, event domain.PasswordChangedEvent) error
}
