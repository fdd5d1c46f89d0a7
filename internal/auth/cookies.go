package auth

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

// Cookie names shared between handlers and middleware.
const (
	SessionCookieName  = "conpanion_session"
	RememberCookieName = "conpanion_remember"
)

// CookieOptions controls the attributes applied to auth cookies.
type CookieOptions struct {
	Domain string
	Secure bool
}

// SetSessionCookie writes the signed session token as an HTTP-only cookie.
func SetSessionCookie(c *gin.Context, token string, ttl time.Duration, opts CookieOptions) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(SessionCookieName, token, int(ttl.Seconds()), "/", opts.Domain, opts.Secure, true)
}

// ClearSessionCookie expires the session cookie immediately.
func ClearSessionCookie(c *gin.Context, opts CookieOptions) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(SessionCookieName, "", -1, "/", opts.Domain, opts.Secure, true)
}

// SetRememberCookie writes the remember-me token as an HTTP-only cookie.
func SetRememberCookie(c *gin.Context, token string, ttl time.Duration, opts CookieOptions) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(RememberCookieName, token, int(ttl.Seconds()), "/", opts.Domain, opts.Secure, true)
}

// ClearRememberCookie expires the remember-me cookie immediately.
func ClearRememberCookie(c *gin.Context, opts CookieOptions) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(RememberCookieName, "", -1, "/", opts.Domain, opts.Secure, true)
}
