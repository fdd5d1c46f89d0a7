package handlers

import (
	"errors"

	"github.com/gin-gonic/gin"

	"github.com/conpanion/conpanion/internal/services"
	appErrors "github.com/conpanion/conpanion/pkg/errors"
	"github.com/conpanion/conpanion/pkg/response"
)

type registerRequest struct {
	Email                string `json:"email" validate:"required,email,max=254"`
	Password             string `json:"password" validate:"required,min=8,max=72,password"`
	PasswordConfirmation string `json:"passwordConfirmation" validate:"required,eqfield=Password"`
}

// GET /register
func (h *AuthHandler) ShowRegister(c *gin.Context) {
	h.renderPage(c, "register")
}

// POST /register
func (h *AuthHandler) Register(c *gin.Context) {
	var req registerRequest
	if !bindAndValidate(c, &req) {
		return
	}

	user, err := h.users.Register(requestContext(c), req.Email, req.Password)
	if err != nil {
		if errors.Is(err, services.ErrEmailTaken) {
			response.ValidationFailed(c, map[string]string{
				"email": "The email has already been taken",
			})
			return
		}
		response.Error(c, appErrors.ErrInternalServer.WithInternal(err))
		return
	}

	token, err := h.verifyTokens.GenerateToken(requestContext(c), user)
	if err != nil {
		response.Error(c, appErrors.ErrInternalServer.WithInternal(err))
		return
	}

	h.mailer.SendVerificationAsync(user, token)

	h.redirectWith(c, "/login", verifyEmailNotice(user.Email))
}
