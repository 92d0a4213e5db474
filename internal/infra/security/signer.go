package security

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	uuid "github.com/google/uuid"

	"github.com/finledger/finledger-backend/internal/core/domain"
)

var (
	// ErrTokenInvalid indicates the token is malformed, bears an unknown key,
	// or fails signature validation.
	ErrTokenInvalid = errors.New("token invalid")
	// ErrTokenExpired indicates the token was valid but its lifetime elapsed.
	ErrTokenExpired = errors.New("token expired")
)

// AuthClaims is the wire payload of access and refresh tokens:
// {sub: email, uid, jti, kind, ver, iat, exp}.
type AuthClaims struct {
	UserID       string           `json:"uid"`
	Kind         domain.TokenKind `json:"kind"`
	TokenVersion int64            `json:"ver"`
	jwt.RegisteredClaims
}

// Email returns the subject claim.
func (c *AuthClaims) Email() string {
	return c.Subject
}

// IssuedToken bundles a signed token with the identifiers the caller must
// track (session registration, revocation).
type IssuedToken struct {
	Token     string
	JTI       string
	ExpiresAt time.Time
}

// TokenSigner mints and parses RS256-signed access and refresh tokens.
type TokenSigner struct {
	keys       KeyProvider
	issuer     string
	accessTTL  time.Duration
	refreshTTL time.Duration
	now        func() time.Time
}

// NewTokenSigner constructs a TokenSigner.
func NewTokenSigner(keys KeyProvider, issuer string, accessTTL, refreshTTL time.Duration) (*TokenSigner, error) {
	if keys == nil {
		return nil, fmt.Errorf("key provider is required")
	}
	if accessTTL <= 0 {
		accessTTL = 15 * time.Minute
	}
	if refreshTTL <= 0 {
		refreshTTL = 7 * 24 * time.Hour
	}
	return &TokenSigner{
		keys:       keys,
		issuer:     issuer,
		accessTTL:  accessTTL,
		refreshTTL: refreshTTL,
		now:        func() time.Time { return time.Now().UTC() },
	}, nil
}

// WithClock overrides the internal clock for deterministic tests.
func (s *TokenSigner) WithClock(clock func() time.Time) *TokenSigner {
	if clock != nil {
		s.now = clock
	}
	return s
}

// AccessTTL reports the configured access token lifetime.
func (s *TokenSigner) AccessTTL() time.Duration {
	return s.accessTTL
}

// RefreshTTL reports the configured refresh token lifetime.
func (s *TokenSigner) RefreshTTL() time.Duration {
	return s.refreshTTL
}

// IssueAccess mints a short-lived access token with a fresh jti.
func (s *TokenSigner) IssueAccess(userID, email string, tokenVersion int64) (*IssuedToken, error) {
	return s.issue(userID, email, tokenVersion, domain.TokenKindAccess, s.accessTTL)
}

// IssueRefresh mints a long-lived refresh token with a fresh jti.
func (s *TokenSigner) IssueRefresh(userID, email string, tokenVersion int64) (*IssuedToken, error) {
	return s.issue(userID, email, tokenVersion, domain.TokenKindRefresh, s.refreshTTL)
}

func (s *TokenSigner) issue(userID, email string, tokenVersion int64, kind domain.TokenKind, ttl time.Duration) (*IssuedToken, error) {
	if userID == "" {
		return nil, fmt.Errorf("user id is required")
	}
	if email == "" {
		return nil, fmt.Errorf("email is required")
	}

	now := s.now()
	jti := uuid.NewString()
	expiresAt := now.Add(ttl)

	claims := AuthClaims{
		UserID:       userID,
		Kind:         kind,
		TokenVersion: tokenVersion,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   email,
			Issuer:    s.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			ID:        jti,
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
	token.Header["kid"] = s.keys.SigningKID()

	signingKey, err := s.keys.GetSigningKey()
	if err != nil {
		return nil, fmt.Errorf("get signing key: %w", err)
	}

	signed, err := token.SignedString(signingKey)
	if err != nil {
		return nil, fmt.Errorf("sign token: %w", err)
	}

	return &IssuedToken{Token: signed, JTI: jti, ExpiresAt: expiresAt}, nil
}

// Parse verifies the signature and lifetime and returns the claims. Malformed
// input yields ErrTokenInvalid, elapsed lifetime ErrTokenExpired; Parse never
// panics on attacker-controlled input.
func (s *TokenSigner) Parse(token string) (*AuthClaims, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, ErrTokenInvalid
	}

	claims := &AuthClaims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodRSA); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}

		kid, ok := t.Header["kid"].(string)
		if !ok {
			return nil, fmt.Errorf("kid header not found")
		}

		return s.keys.GetVerificationKey(kid)
	}, jwt.WithIssuer(s.issuer), jwt.WithTimeFunc(s.now))
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrTokenExpired
		}
		return nil, ErrTokenInvalid
	}

	if parsed == nil || !parsed.Valid {
		return nil, ErrTokenInvalid
	}
	if strings.TrimSpace(claims.UserID) == "" || strings.TrimSpace(claims.ID) == "" {
		return nil, ErrTokenInvalid
	}
	if claims.Kind != domain.TokenKindAccess && claims.Kind != domain.TokenKindRefresh {
		return nil, ErrTokenInvalid
	}

	return claims, nil
}
