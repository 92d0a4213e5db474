package handlers

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/finledger/finledger-backend/internal/transport/http/middleware"
)

// ErrorResponse represents a generic error payload with a correlation id.
type ErrorResponse struct {
	Error     string `json:"error"`
	RequestID string `json:"request_id,omitempty"`
}

// NewErrorResponse creates an error response with the request correlation id.
func NewErrorResponse(c *gin.Context, errorMsg string) ErrorResponse {
	return ErrorResponse{
		Error:     errorMsg,
		RequestID: middleware.GetRequestID(c),
	}
}

// MessageResponse represents a simple message payload.
type MessageResponse struct {
	Message string `json:"message"`
}

// MeResponse describes the authenticated caller.
type MeResponse struct {
	UserID        string `json:"user_id"`
	Email         string `json:"email"`
	Role          string `json:"role"`
	EmailVerified bool   `json:"email_verified"`
}

// RegisterRequest defines the account registration payload.
type RegisterRequest struct {
	Email        string `json:"email" binding:"required"`
	Password     string `json:"password" binding:"required"`
	FullName     string `json:"full_name" binding:"required"`
	BaseCurrency string `json:"base_currency" binding:"required"`
}

// RegisterResponse reports that verification is required before tokens are issued.
type RegisterResponse struct {
	Message     string    `json:"message"`
	Email       string    `json:"email"`
	ExpiresAt   time.Time `json:"expires_at"`
	MailWarning bool      `json:"mail_warning,omitempty"`
}

// VerifyEmailRequest carries a verification code redemption.
type VerifyEmailRequest struct {
	Email string `json:"email" binding:"required"`
	Code  string `json:"code" binding:"required"`
}

// LoginRequest defines the payload for the login endpoint.
type LoginRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// TokenResponse describes an issued access/refresh pair.
type TokenResponse struct {
	AccessToken      string    `json:"access_token"`
	AccessExpiresAt  time.Time `json:"access_expires_at"`
	RefreshToken     string    `json:"refresh_token"`
	RefreshExpiresAt time.Time `json:"refresh_expires_at"`
	TokenType        string    `json:"token_type"`
}

// OTPChallengeResponse is returned when a login requires a second factor.
type OTPChallengeResponse struct {
	OTPRequired      bool `json:"otp_required"`
	ExpiresInSeconds int  `json:"expires_in_seconds"`
	MailWarning      bool `json:"mail_warning,omitempty"`
}

// VerifyOtpRequest carries an OTP redemption.
type VerifyOtpRequest struct {
	Email string `json:"email" binding:"required"`
	Code  string `json:"code" binding:"required"`
}

// RefreshRequest represents the payload to rotate a refresh token. The token
// may alternatively arrive in the refresh cookie.
type RefreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

// ForgotPasswordRequest starts the reset flow.
type ForgotPasswordRequest struct {
	Email string `json:"email" binding:"required"`
}

// ConfirmResetRequest redeems a reset code into a reset session.
type ConfirmResetRequest struct {
	Code string `json:"code" binding:"required"`
}

// ConfirmResetResponse returns the one-time reset session token.
type ConfirmResetResponse struct {
	ResetToken string    `json:"reset_token"`
	ExpiresAt  time.Time `json:"expires_at"`
}

// ResetPasswordRequest spends a reset session on a new password.
type ResetPasswordRequest struct {
	ResetToken  string `json:"reset_token" binding:"required"`
	NewPassword string `json:"new_password" binding:"required"`
}
