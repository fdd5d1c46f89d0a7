// Package flash implements one-shot notifications delivered to the next
// rendered page after a redirect. The payload travels in a short-lived cookie
// that the front end reads once and the server clears on the following request.
package flash

import (
	"encoding/base64"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

// CookieName carries the pending notification between a redirect and the next render.
const CookieName = "conpanion_notification"

const cookieMaxAge = 5 * 60 // notifications older than this were never rendered

// Type classifies a notification for client-side presentation.
type Type string

const (
	Success Type = "success"
	Error   Type = "error"
	Info    Type = "info"
	Warning Type = "warning"
)

// Notification is the structured flash payload. Action fields are optional and
// let the client render an actionable button (e.g. "Resend email").
type Notification struct {
	Type        Type              `json:"type"`
	Message     string            `json:"message"`
	ActionLabel string            `json:"actionLabel,omitempty"`
	ActionURL   string            `json:"actionUrl,omitempty"`
	ActionBody  map[string]string `json:"actionBody,omitempty"`
}

// Set queues the notification for the next render.
func Set(c *gin.Context, n Notification) {
	payload, err := json.Marshal(n)
	if err != nil {
		return
	}

	c.SetSameSite(http.SameSiteLaxMode)
	http.SetCookie(c.Writer, &http.Cookie{
		Name:     CookieName,
		Value:    base64.RawURLEncoding.EncodeToString(payload),
		Path:     "/",
		MaxAge:   cookieMaxAge,
		HttpOnly: false, // the hydrated client reads it
		Secure:   isSecureRequest(c.Request),
		SameSite: http.SameSiteLaxMode,
	})
}

// Take reads and clears the pending notification, if any.
func Take(c *gin.Context) (Notification, bool) {
	raw, err := c.Cookie(CookieName)
	if err != nil || raw == "" {
		return Notification{}, false
	}

	clear(c)

	decoded, err := base64.RawURLEncoding.DecodeString(raw)
	if err != nil {
		return Notification{}, false
	}

	var n Notification
	if err := json.Unmarshal(decoded, &n); err != nil {
		return Notification{}, false
	}
	return n, true
}

func clear(c *gin.Context) {
	http.SetCookie(c.Writer, &http.Cookie{
		Name:   CookieName,
		Value:  "",
		Path:   "/",
		MaxAge: -1,
	})
}

func isSecureRequest(r *http.Request) bool {
	if r.TLS != nil {
		return true
	}
	return strings.EqualFold(r.Header.Get("X-Forwarded-Proto"), "https")
}
