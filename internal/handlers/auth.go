package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	iauth "github.com/conpanion/conpanion/internal/auth"
	"github.com/conpanion/conpanion/internal/middleware"
	"github.com/conpanion/conpanion/internal/services"
	appErrors "github.com/conpanion/conpanion/pkg/errors"
	"github.com/conpanion/conpanion/pkg/flash"
	"github.com/conpanion/conpanion/pkg/metrics"
	"github.com/conpanion/conpanion/pkg/response"
)

// AuthHandler orchestrates the register, login, logout, email verification,
// and password reset flows. Outcomes are expressed as redirects carrying a
// flash notification; the client renders the target page and the notice.
type AuthHandler struct {
	users        *services.UserService
	verifyTokens *services.TokenService
	resetTokens  *services.TokenService
	mailer       *services.AuthMailer
	sessions     *iauth.SessionService
	remember     *iauth.RememberService
	cookies      iauth.CookieOptions
}

func NewAuthHandler(
	users *services.UserService,
	verifyTokens *services.TokenService,
	resetTokens *services.TokenService,
	mailer *services.AuthMailer,
	sessions *iauth.SessionService,
	remember *iauth.RememberService,
	cookies iauth.CookieOptions,
) *AuthHandler {
	return &AuthHandler{
		users:        users,
		verifyTokens: verifyTokens,
		resetTokens:  resetTokens,
		mailer:       mailer,
		sessions:     sessions,
		remember:     remember,
		cookies:      cookies,
	}
}

// User-facing flow messages. Several internal failure modes deliberately share
// one message so responses do not reveal account or token state.
const (
	msgInvalidCredentials = "Invalid user credentials"
	msgCheckVerifyEmail   = "Please check your emails to verify your account"
	msgLoggedIn           = "You have been logged in successfully"
	msgLoggedOut          = "You have been successfully logged out"

	msgVerifyTokenMissing = "Verify email token missing"
	msgVerifyTokenInvalid = "Invalid or expired verify email token"
	msgVerifyTokenNoUser  = "Invalid/expired verify email token or user not found"
	msgAlreadyVerified    = "Your email has already been verified"
	msgVerifySuccess      = "Your email has been successfully verified"

	msgResetTokenMissing = "Password reset token missing"
	msgResetTokenInvalid = "Invalid or expired password reset token"
	msgResetTokenNoUser  = "Invalid/expired password reset token or user not found"
	msgResetSuccess      = "Your password has been successfully reset"
	msgResetNeutral      = "If the email exists in our system, we will send you an email with instructions to reset your password"
)

type loginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
	Remember bool   `json:"remember"`
}

// GET /login
func (h *AuthHandler) ShowLogin(c *gin.Context) {
	h.renderPage(c, "login")
}

// POST /login
func (h *AuthHandler) Login(c *gin.Context) {
	var req loginRequest
	if !bindAndValidate(c, &req) {
		return
	}

	user, err := h.users.VerifyCredentials(requestContext(c), req.Email, req.Password)
	if err != nil {
		if errors.Is(err, services.ErrInvalidCredentials) {
			metrics.AuthAttempts.WithLabelValues("failure").Inc()
			h.redirectWith(c, "/login", flash.Notification{
				Type:    flash.Error,
				Message: msgInvalidCredentials,
			})
			return
		}
		response.Error(c, appErrors.ErrInternalServer.WithInternal(err))
		return
	}

	if !user.IsVerified {
		metrics.AuthAttempts.WithLabelValues("unverified").Inc()
		h.redirectWith(c, "/login", verifyEmailNotice(user.Email))
		return
	}

	token, _, err := h.sessions.CreateSession(requestContext(c), user.ID, iauth.SessionMetadata{
		IPAddress: c.ClientIP(),
		UserAgent: c.Request.UserAgent(),
	})
	if err != nil {
		response.Error(c, appErrors.ErrInternalServer.WithInternal(err))
		return
	}

	iauth.SetSessionCookie(c, token, iauth.DefaultSessionTTL, h.cookies)

	if req.Remember {
		rememberToken, err := h.remember.Issue(requestContext(c), user.ID)
		if err != nil {
			response.Error(c, appErrors.ErrInternalServer.WithInternal(err))
			return
		}
		iauth.SetRememberCookie(c, rememberToken, iauth.DefaultRememberTTL, h.cookies)
	}

	metrics.AuthAttempts.WithLabelValues("success").Inc()

	h.redirectWith(c, "/", flash.Notification{
		Type:    flash.Success,
		Message: msgLoggedIn,
	})
}

// DELETE /logout
func (h *AuthHandler) Logout(c *gin.Context) {
	if sessionID := c.GetString(middleware.CtxSessionIDKey); sessionID != "" {
		_ = h.sessions.RevokeSession(requestContext(c), sessionID)
	}

	// Only the remember token this client presented is revoked; persistent
	// logins on other devices keep their own expiry.
	if token, err := c.Cookie(iauth.RememberCookieName); err == nil && token != "" {
		_ = h.remember.Revoke(requestContext(c), token)
	}

	iauth.ClearSessionCookie(c, h.cookies)
	iauth.ClearRememberCookie(c, h.cookies)

	h.redirectWith(c, "/", flash.Notification{
		Type:    flash.Success,
		Message: msgLoggedOut,
	})
}

// verifyEmailNotice builds the actionable "please verify" notification shared
// by registration, unverified login, and the resend flow.
func verifyEmailNotice(email string) flash.Notification {
	return flash.Notification{
		Type:        flash.Info,
		Message:     msgCheckVerifyEmail,
		ActionLabel: "Resend email",
		ActionURL:   "/verify-email/resend",
		ActionBody:  map[string]string{"email": email},
	}
}

// redirectWith queues a flash notification and redirects. Non-GET requests
// use 303 so the client re-requests the target with GET.
func (h *AuthHandler) redirectWith(c *gin.Context, location string, n flash.Notification) {
	flash.Set(c, n)

	status := http.StatusFound
	if c.Request.Method != http.MethodGet {
		status = http.StatusSeeOther
	}
	c.Redirect(status, location)
}

func (h *AuthHandler) renderPage(c *gin.Context, page string) {
	data := gin.H{"page": page}
	if n, ok := flash.Take(c); ok {
		data["notification"] = n
	}
	response.Success(c, http.StatusOK, data)
}
