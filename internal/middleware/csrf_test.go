package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
)

func newCSRFRouter() *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(CSRF())
	r.GET("/form", func(c *gin.Context) { c.Status(http.StatusOK) })
	r.POST("/submit", func(c *gin.Context) { c.Status(http.StatusOK) })
	return r
}

func csrfCookie(w *httptest.ResponseRecorder) *http.Cookie {
	for _, cookie := range w.Result().Cookies() {
		if cookie.Name == CSRFCookieName {
			return cookie
		}
	}
	return nil
}

func TestCSRFIssuesTokenOnSafeMethod(t *testing.T) {
	r := newCSRFRouter()

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/form", nil))

	require.Equal(t, http.StatusOK, w.Code)
	cookie := csrfCookie(w)
	require.NotNil(t, cookie)
	require.NotEmpty(t, cookie.Value)
	require.Equal(t, cookie.Value, w.Header().Get(CSRFHeaderName))
}

func TestCSRFRejectsMissingHeader(t *testing.T) {
	r := newCSRFRouter()

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/submit", nil))

	require.Equal(t, http.StatusForbidden, w.Code)
}

func TestCSRFAcceptsMatchingHeader(t *testing.T) {
	r := newCSRFRouter()

	seed := httptest.NewRecorder()
	r.ServeHTTP(seed, httptest.NewRequest(http.MethodGet, "/form", nil))
	cookie := csrfCookie(seed)
	require.NotNil(t, cookie)

	req := httptest.NewRequest(http.MethodPost, "/submit", nil)
	req.AddCookie(cookie)
	req.Header.Set(CSRFHeaderName, cookie.Value)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)
}

func TestCSRFRejectsMismatchedHeader(t *testing.T) {
	r := newCSRFRouter()

	seed := httptest.NewRecorder()
	r.ServeHTTP(seed, httptest.NewRequest(http.MethodGet, "/form", nil))
	cookie := csrfCookie(seed)
	require.NotNil(t, cookie)

	req := httptest.NewRequest(http.MethodPost, "/submit", nil)
	req.AddCookie(cookie)
	req.Header.Set(CSRFHeaderName, "forged-token-value")

	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	require.Equal(t, http.StatusForbidden, w.Code)
}
