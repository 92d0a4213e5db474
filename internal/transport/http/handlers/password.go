package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/finledger/finledger-backend/internal/usecase"
)

// PasswordHandler exposes the three-step password reset flow.
type PasswordHandler struct {
	reset *usecase.PasswordResetService
}

// NewPasswordHandler constructs PasswordHandler.
func NewPasswordHandler(reset *usecase.PasswordResetService) *PasswordHandler {
	return &PasswordHandler{reset: reset}
}

// RegisterRoutes binds password reset routes.
func (h *PasswordHandler) RegisterRoutes(r *gin.RouterGroup, resetLimit gin.HandlerFunc) {
	r.POST("/password/forgot", wrap(resetLimit, h.forgot)...)
	r.POST("/password/confirm", wrap(resetLimit, h.confirm)...)
	r.POST("/password/reset", h.resetPassword)
}

func (h *PasswordHandler) forgot(c *gin.Context) {
	var req ForgotPasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, NewErrorResponse(c, "invalid payload"))
		return
	}

	if _, err := h.reset.Forgot(c.Request.Context(), req.Email); err != nil {
		RespondWithMappedError(c, err, nil, http.StatusInternalServerError, "password reset request failed")
		return
	}

	// Same response whether or not the account exists.
	c.JSON(http.StatusOK, MessageResponse{Message: "if the account exists, a reset code has been sent"})
}

func (h *PasswordHandler) confirm(c *gin.Context) {
	var req ConfirmResetRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, NewErrorResponse(c, "invalid payload"))
		return
	}

	result, err := h.reset.ConfirmResetToken(c.Request.Context(), req.Code, c.ClientIP(), c.Request.UserAgent())
	if err != nil {
		RespondWithMappedError(c, err, []ErrorCase{
			{Err: usecase.ErrInvalidCredentials, Status: http.StatusUnauthorized, Message: "invalid or expired reset code"},
		}, http.StatusInternalServerError, "reset confirmation failed")
		return
	}

	c.JSON(http.StatusOK, ConfirmResetResponse{
		ResetToken: result.SessionToken,
		ExpiresAt:  result.ExpiresAt,
	})
}

func (h *PasswordHandler) resetPassword(c *gin.Context) {
	var req ResetPasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, NewErrorResponse(c, "invalid payload"))
		return
	}

	err := h.reset.ResetPassword(c.Request.Context(), req.ResetToken, req.NewPassword, c.ClientIP(), c.Request.UserAgent())
	if err != nil {
		RespondWithMappedError(c, err, []ErrorCase{
			{Err: usecase.ErrInvalidCredentials, Status: http.StatusUnauthorized, Message: "invalid or expired reset session"},
		}, http.StatusInternalServerError, "password reset failed")
		return
	}

	c.JSON(http.StatusOK, MessageResponse{Message: "password updated"})
}
