package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/finledger/finledger-backend/internal/core/domain"
	"github.com/finledger/finledger-backend/internal/infra/config"
	"github.com/finledger/finledger-backend/internal/infra/security"
	"github.com/finledger/finledger-backend/internal/repository"
	memoryrepo "github.com/finledger/finledger-backend/internal/repository/memory"
	"github.com/finledger/finledger-backend/internal/usecase"
)

type stubUserRepo struct {
	user *domain.User
}

func (s *stubUserRepo) GetByID(_ context.Context, id string) (*domain.User, error) {
	if s.user != nil && s.user.ID == id {
		copied := *s.user
		return &copied, nil
	}
	return nil, repository.ErrNotFound
}

func (s *stubUserRepo) GetByEmail(_ context.Context, email string) (*domain.User, error) {
	if s.user != nil && s.user.Email == email {
		copied := *s.user
		return &copied, nil
	}
	return nil, repository.ErrNotFound
}

func (s *stubUserRepo) UpdatePassword(_ context.Context, _, _ string, _ time.Time) (int64, error) {
	return 0, repository.ErrNotFound
}

type authFixture struct {
	service     *usecase.AuthService
	signer      *security.TokenSigner
	revocations *memoryrepo.RevocationStore
	user        *domain.User
}

func newAuthFixture(t *testing.T) *authFixture {
	t.Helper()

	keys, err := security.NewEphemeralKeyProvider("test-key")
	if err != nil {
		t.Fatalf("NewEphemeralKeyProvider: %v", err)
	}
	signer, err := security.NewTokenSigner(keys, "finledger-test", 15*time.Minute, 7*24*time.Hour)
	if err != nil {
		t.Fatalf("NewTokenSigner: %v", err)
	}

	user := &domain.User{
		ID:            "user-1",
		Email:         "alice@example.com",
		Role:          domain.RoleUser,
		EmailVerified: true,
		TokenVersion:  0,
	}

	cfg := &config.AppConfig{Auth: config.AuthSettings{MaxSessionsPerUser: 3}}
	revocations := memoryrepo.NewRevocationStore()

	service := usecase.NewAuthService(
		cfg,
		&stubUserRepo{user: user},
		nil,
		nil,
		nil,
		revocations,
		signer,
		nil,
		nil,
		zap.NewNop(),
	)

	return &authFixture{service: service, signer: signer, revocations: revocations, user: user}
}

func newGuardedRouter(service *usecase.AuthService) *gin.Engine {
	router := gin.New()
	router.GET("/me", RequireAuth(service), func(c *gin.Context) {
		principal, ok := GetPrincipal(c)
		if !ok {
			c.Status(http.StatusInternalServerError)
			return
		}
		c.JSON(http.StatusOK, gin.H{"user_id": principal.UserID})
	})
	return router
}

func TestRequireAuthRejectsMissingOrMalformedHeader(t *testing.T) {
	gin.SetMode(gin.TestMode)

	fx := newAuthFixture(t)
	router := newGuardedRouter(fx.service)

	cases := []struct {
		name   string
		header string
	}{
		{name: "missing header", header: ""},
		{name: "wrong scheme", header: "Basic abc123"},
		{name: "blank token", header: "Bearer   "},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/me", nil)
			if tc.header != "" {
				req.Header.Set("Authorization", tc.header)
			}
			rr := httptest.NewRecorder()

			router.ServeHTTP(rr, req)

			if rr.Code != http.StatusUnauthorized {
				t.Fatalf("expected 401, got %d", rr.Code)
			}
		})
	}
}

func TestRequireAuthResolvesPrincipal(t *testing.T) {
	gin.SetMode(gin.TestMode)

	fx := newAuthFixture(t)
	router := newGuardedRouter(fx.service)

	access, err := fx.signer.IssueAccess(fx.user.ID, fx.user.Email, fx.user.TokenVersion)
	if err != nil {
		t.Fatalf("IssueAccess: %v", err)
	}

	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	req.Header.Set("Authorization", "Bearer "+access.Token)
	rr := httptest.NewRecorder()

	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d (body %s)", rr.Code, rr.Body.String())
	}
}

func TestRequireAuthRejectsRevokedToken(t *testing.T) {
	gin.SetMode(gin.TestMode)

	fx := newAuthFixture(t)
	router := newGuardedRouter(fx.service)

	access, err := fx.signer.IssueAccess(fx.user.ID, fx.user.Email, fx.user.TokenVersion)
	if err != nil {
		t.Fatalf("IssueAccess: %v", err)
	}
	if err := fx.revocations.Revoke(context.Background(), access.JTI, access.ExpiresAt); err != nil {
		t.Fatalf("Revoke: %v", err)
	}

	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	req.Header.Set("Authorization", "Bearer "+access.Token)
	rr := httptest.NewRecorder()

	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for revoked token, got %d", rr.Code)
	}
}

func TestRequireAuthRejectsRefreshToken(t *testing.T) {
	gin.SetMode(gin.TestMode)

	fx := newAuthFixture(t)
	router := newGuardedRouter(fx.service)

	refresh, err := fx.signer.IssueRefresh(fx.user.ID, fx.user.Email, fx.user.TokenVersion)
	if err != nil {
		t.Fatalf("IssueRefresh: %v", err)
	}

	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	req.Header.Set("Authorization", "Bearer "+refresh.Token)
	rr := httptest.NewRecorder()

	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for refresh token, got %d", rr.Code)
	}
}
