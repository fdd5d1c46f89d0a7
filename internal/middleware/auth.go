package middleware

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	iauth "github.com/conpanion/conpanion/internal/auth"
	"github.com/conpanion/conpanion/internal/models"
	"github.com/conpanion/conpanion/internal/services"
	apperrors "github.com/conpanion/conpanion/pkg/errors"
	"github.com/conpanion/conpanion/pkg/logger"
	"github.com/conpanion/conpanion/pkg/response"
)

const (
	CtxUserKey      = "authUser"
	CtxUserIDKey    = "userID"
	CtxSessionIDKey = "sessionID"
)

// Identity resolves the current user from the session cookie when present,
// falling back to the remember-me cookie. An expired or revoked session with a
// valid remember-me token transparently becomes a fresh session. Requests
// without credentials pass through anonymously; route guards decide access.
func Identity(sessions *iauth.SessionService, remember *iauth.RememberService, users *services.UserService, cookies iauth.CookieOptions) gin.HandlerFunc {
	log := logger.WithModule("middleware.identity")

	return func(c *gin.Context) {
		if token, err := c.Cookie(iauth.SessionCookieName); err == nil && token != "" {
			session, err := sessions.ValidateToken(c.Request.Context(), token)
			if err == nil {
				if user, uerr := users.FindByID(c.Request.Context(), session.UserID); uerr == nil {
					setIdentity(c, user, session.ID)
					c.Next()
					return
				}
			}
			iauth.ClearSessionCookie(c, cookies)
		}

		if token, err := c.Cookie(iauth.RememberCookieName); err == nil && token != "" {
			userID, replacement, err := remember.Consume(c.Request.Context(), token)
			if err != nil {
				if !errors.Is(err, iauth.ErrRememberTokenInvalid) {
					log.Error("consume remember token", zap.Error(err))
				}
				iauth.ClearRememberCookie(c, cookies)
				c.Next()
				return
			}

			user, err := users.FindByID(c.Request.Context(), userID)
			if err != nil {
				iauth.ClearRememberCookie(c, cookies)
				c.Next()
				return
			}

			sessionToken, session, err := sessions.CreateSession(c.Request.Context(), user.ID, iauth.SessionMetadata{
				IPAddress: c.ClientIP(),
				UserAgent: c.Request.UserAgent(),
			})
			if err != nil {
				log.Error("resume session from remember token", zap.Error(err))
				c.Next()
				return
			}

			iauth.SetSessionCookie(c, sessionToken, iauth.DefaultSessionTTL, cookies)
			iauth.SetRememberCookie(c, replacement, iauth.DefaultRememberTTL, cookies)
			setIdentity(c, user, session.ID)
		}

		c.Next()
	}
}

// RequireAuth rejects requests that did not resolve to an authenticated user.
func RequireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		if _, ok := CurrentUser(c); !ok {
			response.Error(c, apperrors.ErrUnauthorized)
			c.Abort()
			return
		}
		c.Next()
	}
}

// RequireGuest redirects authenticated users away from guest-only routes.
func RequireGuest(redirectTo string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if _, ok := CurrentUser(c); ok {
			c.Redirect(http.StatusFound, redirectTo)
			c.Abort()
			return
		}
		c.Next()
	}
}

// CurrentUser extracts the authenticated user placed by Identity, if any.
func CurrentUser(c *gin.Context) (*models.User, bool) {
	value, exists := c.Get(CtxUserKey)
	if !exists {
		return nil, false
	}
	user, ok := value.(*models.User)
	return user, ok && user != nil
}

func setIdentity(c *gin.Context, user *models.User, sessionID string) {
	c.Set(CtxUserKey, user)
	c.Set(CtxUserIDKey, user.ID)
	c.Set(CtxSessionIDKey, sessionID)
}
