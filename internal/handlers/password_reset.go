package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/conpanion/conpanion/internal/services"
	appErrors "github.com/conpanion/conpanion/pkg/errors"
	"github.com/conpanion/conpanion/pkg/flash"
	"github.com/conpanion/conpanion/pkg/response"
)

type forgotPasswordRequest struct {
	Email string `json:"email" validate:"required,email"`
}

type resetPasswordRequest struct {
	Password             string `json:"password" validate:"required,min=8,max=72,password"`
	PasswordConfirmation string `json:"passwordConfirmation" validate:"required,eqfield=Password"`
}

// GET /forgot-password
func (h *AuthHandler) ShowForgotPassword(c *gin.Context) {
	h.renderPage(c, "forgot-password")
}

// POST /forgot-password
//
// The notification is the same whether or not the email matches an account.
// The miss path still generates a throwaway token so both branches do
// comparable work.
func (h *AuthHandler) ForgotPassword(c *gin.Context) {
	var req forgotPasswordRequest
	if !bindAndValidate(c, &req) {
		return
	}

	user, err := h.users.FindByEmail(requestContext(c), req.Email)
	if err != nil && !errors.Is(err, services.ErrUserNotFound) {
		response.Error(c, appErrors.ErrInternalServer.WithInternal(err))
		return
	}

	token, err := h.resetTokens.GenerateToken(requestContext(c), user)
	if err != nil {
		response.Error(c, appErrors.ErrInternalServer.WithInternal(err))
		return
	}

	if user != nil {
		h.mailer.SendPasswordResetAsync(user, token)
	}

	h.redirectWith(c, "/login", flash.Notification{
		Type:    flash.Info,
		Message: msgResetNeutral,
	})
}

// GET /password-reset/:token
func (h *AuthHandler) ShowPasswordReset(c *gin.Context) {
	token := strings.TrimSpace(c.Param("token"))
	if token == "" {
		h.redirectWith(c, "/forgot-password", flash.Notification{
			Type:    flash.Error,
			Message: msgResetTokenMissing,
		})
		return
	}

	live, err := h.resetTokens.VerifyToken(requestContext(c), token)
	if err != nil {
		response.Error(c, appErrors.ErrInternalServer.WithInternal(err))
		return
	}
	if !live {
		h.redirectWith(c, "/forgot-password", flash.Notification{
			Type:    flash.Error,
			Message: msgResetTokenInvalid,
		})
		return
	}

	response.Success(c, http.StatusOK, gin.H{"page": "password-reset", "token": token})
}

// PATCH /password-reset/:token
func (h *AuthHandler) ResetPassword(c *gin.Context) {
	token := strings.TrimSpace(c.Param("token"))
	if token == "" {
		h.redirectWith(c, "/forgot-password", flash.Notification{
			Type:    flash.Error,
			Message: msgResetTokenMissing,
		})
		return
	}

	var req resetPasswordRequest
	if !bindAndValidate(c, &req) {
		return
	}

	user, err := h.resetTokens.GetUserByToken(requestContext(c), token)
	if err != nil {
		response.Error(c, appErrors.ErrInternalServer.WithInternal(err))
		return
	}
	if user == nil {
		h.redirectWith(c, "/forgot-password", flash.Notification{
			Type:    flash.Error,
			Message: msgResetTokenNoUser,
		})
		return
	}

	if err := h.users.UpdatePassword(requestContext(c), user, req.Password); err != nil {
		response.Error(c, appErrors.ErrInternalServer.WithInternal(err))
		return
	}

	if err := h.resetTokens.ClearTokens(requestContext(c), user); err != nil {
		response.Error(c, appErrors.ErrInternalServer.WithInternal(err))
		return
	}

	h.redirectWith(c, "/login", flash.Notification{
		Type:    flash.Success,
		Message: msgResetSuccess,
	})
}
