package handlers

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/finledger/finledger-backend/internal/infra/config"
	"github.com/finledger/finledger-backend/internal/usecase"
)

const (
	accessCookieName  = "access_token"
	refreshCookieName = "refresh_token"
	refreshCookiePath = "/api/v1/auth"
)

func sameSiteFromConfig(cfg config.CookieSettings) http.SameSite {
	switch strings.ToLower(cfg.SameSite) {
	case "strict":
		return http.SameSiteStrictMode
	case "none":
		return http.SameSiteNoneMode
	default:
		return http.SameSiteLaxMode
	}
}

// setTokenCookies attaches the pair as http-only cookies alongside the JSON
// body, so browser and non-browser clients both work.
func setTokenCookies(c *gin.Context, cfg config.CookieSettings, pair *usecase.TokenPair) {
	c.SetSameSite(sameSiteFromConfig(cfg))

	accessMaxAge := int(time.Until(pair.AccessExpiresAt).Seconds())
	refreshMaxAge := int(time.Until(pair.RefreshExpiresAt).Seconds())

	c.SetCookie(accessCookieName, pair.AccessToken, accessMaxAge, "/", cfg.Domain, cfg.Secure, true)
	c.SetCookie(refreshCookieName, pair.RefreshToken, refreshMaxAge, refreshCookiePath, cfg.Domain, cfg.Secure, true)
}

// clearTokenCookies expires both token cookies.
func clearTokenCookies(c *gin.Context, cfg config.CookieSettings) {
	c.SetSameSite(sameSiteFromConfig(cfg))
	c.SetCookie(accessCookieName, "", -1, "/", cfg.Domain, cfg.Secure, true)
	c.SetCookie(refreshCookieName, "", -1, refreshCookiePath, cfg.Domain, cfg.Secure, true)
}

func newTokenResponse(pair *usecase.TokenPair) TokenResponse {
	return TokenResponse{
		AccessToken:      pair.AccessToken,
		AccessExpiresAt:  pair.AccessExpiresAt,
		RefreshToken:     pair.RefreshToken,
		RefreshExpiresAt: pair.RefreshExpiresAt,
		TokenType:        "Bearer",
	}
}
