package api

import (
	"github.com/gin-gonic/gin"

	"github.com/conpanion/conpanion/internal/handlers"
	"github.com/conpanion/conpanion/internal/middleware"
)

// registerAuthRoutes mounts the auth flow endpoints. Render routes are
// guest-only; token consumption and the enumeration-neutral endpoints stay
// reachable regardless of authentication state.
func registerAuthRoutes(r *gin.Engine, h *handlers.AuthHandler) {
	guest := middleware.RequireGuest("/")

	r.GET("/register", guest, h.ShowRegister)
	r.POST("/register", guest, h.Register)

	r.GET("/login", guest, h.ShowLogin)
	r.POST("/login", guest, h.Login)

	r.DELETE("/logout", h.Logout)

	r.GET("/verify-email", guest, h.ShowResendPrompt)
	r.GET("/verify-email/:token", guest, h.ShowVerifyEmail)
	r.POST("/verify-email/resend", h.ResendVerification)
	r.POST("/verify-email/:token", h.VerifyEmail)

	r.GET("/forgot-password", guest, h.ShowForgotPassword)
	r.POST("/forgot-password", h.ForgotPassword)

	r.GET("/password-reset/:token", guest, h.ShowPasswordReset)
	r.PATCH("/password-reset/:token", h.ResetPassword)
}
