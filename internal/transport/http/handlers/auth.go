package handlers

import (
	"math"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/finledger/finledger-backend/internal/infra/config"
	"github.com/finledger/finledger-backend/internal/transport/http/middleware"
	"github.com/finledger/finledger-backend/internal/usecase"
)

// AuthHandler exposes registration and authentication endpoints.
type AuthHandler struct {
	auth         *usecase.AuthService
	registration *usecase.RegistrationService
	cookies      config.CookieSettings
}

// NewAuthHandler constructs AuthHandler.
func NewAuthHandler(auth *usecase.AuthService, registration *usecase.RegistrationService, cookies config.CookieSettings) *AuthHandler {
	return &AuthHandler{
		auth:         auth,
		registration: registration,
		cookies:      cookies,
	}
}

// RegisterRoutes binds authentication routes, applying optional middleware
// ahead of the abuse-prone endpoints.
func (h *AuthHandler) RegisterRoutes(r *gin.RouterGroup, registerLimit, loginLimit, authRequired gin.HandlerFunc) {
	r.POST("/register", wrap(registerLimit, h.register)...)
	r.POST("/verify-email", h.verifyEmail)
	r.POST("/login", wrap(loginLimit, h.login)...)
	r.POST("/verify-otp", wrap(loginLimit, h.verifyOtp)...)
	r.POST("/refresh", h.refresh)
	r.POST("/logout", h.logout)
	r.GET("/me", wrap(authRequired, h.me)...)
}

func wrap(mw gin.HandlerFunc, handler gin.HandlerFunc) []gin.HandlerFunc {
	if mw == nil {
		return []gin.HandlerFunc{handler}
	}
	return []gin.HandlerFunc{mw, handler}
}

func (h *AuthHandler) register(c *gin.Context) {
	var req RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, NewErrorResponse(c, "invalid registration payload"))
		return
	}

	result, err := h.registration.Register(c.Request.Context(), usecase.RegisterInput{
		Email:        req.Email,
		Password:     req.Password,
		FullName:     req.FullName,
		BaseCurrency: req.BaseCurrency,
	})
	if err != nil {
		RespondWithMappedError(c, err, []ErrorCase{
			{Err: usecase.ErrEmailAlreadyExists, Status: http.StatusConflict, Message: "email already registered"},
		}, http.StatusInternalServerError, "registration failed")
		return
	}

	c.JSON(http.StatusCreated, RegisterResponse{
		Message:     "verification required",
		Email:       result.Email,
		ExpiresAt:   result.ExpiresAt,
		MailWarning: result.MailWarning,
	})
}

func (h *AuthHandler) verifyEmail(c *gin.Context) {
	var req VerifyEmailRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, NewErrorResponse(c, "invalid verification payload"))
		return
	}

	pair, err := h.registration.Verify(c.Request.Context(), req.Email, req.Code)
	if err != nil {
		RespondWithMappedError(c, err, []ErrorCase{
			{Err: usecase.ErrInvalidCredentials, Status: http.StatusUnauthorized, Message: "invalid or expired verification code"},
			{Err: usecase.ErrEmailAlreadyExists, Status: http.StatusConflict, Message: "email already registered"},
		}, http.StatusInternalServerError, "verification failed")
		return
	}

	setTokenCookies(c, h.cookies, pair)
	c.JSON(http.StatusOK, newTokenResponse(pair))
}

func (h *AuthHandler) login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, NewErrorResponse(c, "invalid login payload"))
		return
	}

	result, err := h.auth.Login(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		RespondWithMappedError(c, err, []ErrorCase{
			{Err: usecase.ErrInvalidCredentials, Status: http.StatusUnauthorized, Message: "invalid credentials"},
		}, http.StatusInternalServerError, "login failed")
		return
	}

	if result.OTPRequired {
		c.JSON(http.StatusOK, OTPChallengeResponse{
			OTPRequired:      true,
			ExpiresInSeconds: int(math.Ceil(result.OTPExpiresIn.Seconds())),
			MailWarning:      result.MailWarning,
		})
		return
	}

	setTokenCookies(c, h.cookies, result.Tokens)
	c.JSON(http.StatusOK, newTokenResponse(result.Tokens))
}

func (h *AuthHandler) verifyOtp(c *gin.Context) {
	var req VerifyOtpRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, NewErrorResponse(c, "invalid otp payload"))
		return
	}

	pair, err := h.auth.VerifyOtp(c.Request.Context(), req.Email, req.Code)
	if err != nil {
		RespondWithMappedError(c, err, []ErrorCase{
			{Err: usecase.ErrInvalidCredentials, Status: http.StatusUnauthorized, Message: "invalid or expired code"},
		}, http.StatusInternalServerError, "otp verification failed")
		return
	}

	setTokenCookies(c, h.cookies, pair)
	c.JSON(http.StatusOK, newTokenResponse(pair))
}

func (h *AuthHandler) refresh(c *gin.Context) {
	var req RefreshRequest
	_ = c.ShouldBindJSON(&req)

	token := req.RefreshToken
	if token == "" {
		token, _ = c.Cookie(refreshCookieName)
	}
	if token == "" {
		c.JSON(http.StatusBadRequest, NewErrorResponse(c, "refresh token is required"))
		return
	}

	pair, err := h.auth.Refresh(c.Request.Context(), token)
	if err != nil {
		RespondWithMappedError(c, err, []ErrorCase{
			{Err: usecase.ErrInvalidCredentials, Status: http.StatusUnauthorized, Message: "invalid or expired refresh token"},
		}, http.StatusInternalServerError, "token refresh failed")
		return
	}

	setTokenCookies(c, h.cookies, pair)
	c.JSON(http.StatusOK, newTokenResponse(pair))
}

func (h *AuthHandler) logout(c *gin.Context) {
	var req RefreshRequest
	_ = c.ShouldBindJSON(&req)

	refreshToken := req.RefreshToken
	if refreshToken == "" {
		refreshToken, _ = c.Cookie(refreshCookieName)
	}

	accessToken := bearerToken(c)
	if accessToken == "" {
		accessToken, _ = c.Cookie(accessCookieName)
	}

	if err := h.auth.Logout(c.Request.Context(), accessToken, refreshToken); err != nil {
		c.JSON(http.StatusInternalServerError, NewErrorResponse(c, "logout failed"))
		return
	}

	clearTokenCookies(c, h.cookies)
	c.JSON(http.StatusOK, MessageResponse{Message: "logged out"})
}

func (h *AuthHandler) me(c *gin.Context) {
	principal, ok := middleware.GetPrincipal(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, NewErrorResponse(c, "not authenticated"))
		return
	}

	c.JSON(http.StatusOK, MeResponse{
		UserID:        principal.UserID,
		Email:         principal.Email,
		Role:          string(principal.Role),
		EmailVerified: principal.EmailVerified,
	})
}

func bearerToken(c *gin.Context) string {
	header := c.GetHeader("Authorization")
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}
