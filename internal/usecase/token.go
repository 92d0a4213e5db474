package usecase

import (
	"context"
	"fmt"
	"time"

	"github.com/finledger/finledger-backend/internal/core/domain"
	"github.com/finledger/finledger-backend/internal/core/port"
	"github.com/finledger/finledger-backend/internal/infra/security"
)

// TokenPair bundles freshly minted access and refresh tokens.
type TokenPair struct {
	AccessToken      string
	AccessExpiresAt  time.Time
	RefreshToken     string
	RefreshExpiresAt time.Time
}

// Principal is the authenticated caller identity resolved once per request
// and passed explicitly to downstream handlers.
type Principal struct {
	UserID        string
	Email         string
	Role          domain.Role
	TokenVersion  int64
	EmailVerified bool
}

// sessionIssuer mints an access+refresh pair and registers the refresh jti
// in the session registry, enforcing the per-user cap.
type sessionIssuer struct {
	signer      *security.TokenSigner
	sessions    port.SessionRegistry
	maxSessions int
	now         func() time.Time
}

func (i *sessionIssuer) issuePair(ctx context.Context, user *domain.User) (*TokenPair, error) {
	access, err := i.signer.IssueAccess(user.ID, user.Email, user.TokenVersion)
	if err != nil {
		return nil, fmt.Errorf("issue access token: %w", err)
	}

	refresh, err := i.signer.IssueRefresh(user.ID, user.Email, user.TokenVersion)
	if err != nil {
		return nil, fmt.Errorf("issue refresh token: %w", err)
	}

	session := domain.UserSession{
		JTI:       refresh.JTI,
		UserID:    user.ID,
		CreatedAt: i.now(),
		ExpiresAt: refresh.ExpiresAt,
	}
	if err := i.sessions.Register(ctx, session, i.maxSessions); err != nil {
		return nil, fmt.Errorf("register session: %w", err)
	}

	return &TokenPair{
		AccessToken:      access.Token,
		AccessExpiresAt:  access.ExpiresAt,
		RefreshToken:     refresh.Token,
		RefreshExpiresAt: refresh.ExpiresAt,
	}, nil
}
