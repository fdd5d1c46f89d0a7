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

type resendVerificationRequest struct {
	Email string `json:"email" validate:"required,email"`
}

// GET /verify-email
func (h *AuthHandler) ShowResendPrompt(c *gin.Context) {
	h.renderPage(c, "verify-email")
}

// GET /verify-email/:token
func (h *AuthHandler) ShowVerifyEmail(c *gin.Context) {
	token := strings.TrimSpace(c.Param("token"))
	if token == "" {
		h.redirectWith(c, "/login", flash.Notification{
			Type:    flash.Error,
			Message: msgVerifyTokenMissing,
		})
		return
	}

	live, err := h.verifyTokens.VerifyToken(requestContext(c), token)
	if err != nil {
		response.Error(c, appErrors.ErrInternalServer.WithInternal(err))
		return
	}
	if !live {
		h.redirectWith(c, "/login", flash.Notification{
			Type:    flash.Error,
			Message: msgVerifyTokenInvalid,
		})
		return
	}

	response.Success(c, http.StatusOK, gin.H{"page": "verify-email-confirm", "token": token})
}

// POST /verify-email/:token
func (h *AuthHandler) VerifyEmail(c *gin.Context) {
	token := strings.TrimSpace(c.Param("token"))
	if token == "" {
		h.redirectWith(c, "/login", flash.Notification{
			Type:    flash.Error,
			Message: msgVerifyTokenMissing,
		})
		return
	}

	user, err := h.verifyTokens.GetUserByToken(requestContext(c), token)
	if err != nil {
		response.Error(c, appErrors.ErrInternalServer.WithInternal(err))
		return
	}
	if user == nil {
		h.redirectWith(c, "/login", flash.Notification{
			Type:    flash.Error,
			Message: msgVerifyTokenNoUser,
		})
		return
	}

	if err := h.users.MarkVerified(requestContext(c), user); err != nil {
		if errors.Is(err, services.ErrAlreadyVerified) {
			h.redirectWith(c, "/login", flash.Notification{
				Type:    flash.Error,
				Message: msgAlreadyVerified,
			})
			return
		}
		response.Error(c, appErrors.ErrInternalServer.WithInternal(err))
		return
	}

	if err := h.verifyTokens.ClearTokens(requestContext(c), user); err != nil {
		response.Error(c, appErrors.ErrInternalServer.WithInternal(err))
		return
	}

	h.redirectWith(c, "/login", flash.Notification{
		Type:    flash.Success,
		Message: msgVerifySuccess,
	})
}

// POST /verify-email/resend
//
// The response is identical whether the email is unknown, unverified, or
// already verified, so the endpoint cannot be used to probe for accounts.
func (h *AuthHandler) ResendVerification(c *gin.Context) {
	var req resendVerificationRequest
	if !bindAndValidate(c, &req) {
		return
	}

	user, err := h.users.FindByEmail(requestContext(c), req.Email)
	if err != nil && !errors.Is(err, services.ErrUserNotFound) {
		response.Error(c, appErrors.ErrInternalServer.WithInternal(err))
		return
	}

	if user != nil && !user.IsVerified {
		token, err := h.verifyTokens.GenerateToken(requestContext(c), user)
		if err != nil {
			response.Error(c, appErrors.ErrInternalServer.WithInternal(err))
			return
		}
		h.mailer.SendVerificationAsync(user, token)
	} else {
		// Equalize the work done on the miss path.
		if _, err := h.verifyTokens.GenerateToken(requestContext(c), nil); err != nil {
			response.Error(c, appErrors.ErrInternalServer.WithInternal(err))
			return
		}
	}

	h.redirectWith(c, "/login", verifyEmailNotice(req.Email))
}
