package port

import (
	"context"
	"time"

	"github.com/finledger/finledger-backend/internal/core/domain"
)

// PendingRegistrationStore keeps unconfirmed signups awaiting email
// verification.
type PendingRegistrationStore interface {
	// Upsert creates or replaces the pending registration for its email,
	// resetting the stored code hash and expiry.
	Upsert(ctx context.Context, pending domain.PendingRegistration) error
	// GetByEmail retrieves the pending registration for a normalized email.
	GetByEmail(ctx context.Context, email string) (*domain.PendingRegistration, error)
	// Promote atomically creates the user row and deletes the pending row.
	// No intermediate state is ever visible to a concurrent reader.
	Promote(ctx context.Context, email string, user domain.User) error
	// Purge removes expired pending registrations.
	Purge(ctx context.Context, now time.Time) error
}
