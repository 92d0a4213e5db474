package port

import (
	"context"
	"time"
)

// MailSender delivers authentication emails. Fire-and-forget from the auth
// core's perspective: a delivery error never rolls back committed state and
// is surfaced only as a non-fatal warning.
type MailSender interface {
	SendVerifyEmail(ctx context.Context, email, code string, expiresAt time.Time) error
	SendOtpEmail(ctx context.Context, email, code string, expiresAt time.Time) error
	SendResetEmail(ctx context.Context, email, code string, expiresAt time.Time) error
}
