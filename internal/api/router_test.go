package api

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/conpanion/conpanion/internal/app"
	iauth "github.com/conpanion/conpanion/internal/auth"
	"github.com/conpanion/conpanion/internal/database/testutil"
	"github.com/conpanion/conpanion/internal/models"
	"github.com/conpanion/conpanion/internal/services"
	"github.com/conpanion/conpanion/pkg/flash"
	"github.com/conpanion/conpanion/pkg/mail"
)

type recordingMailer struct {
	mu       sync.Mutex
	messages []mail.Message
}

func (r *recordingMailer) Send(ctx context.Context, msg mail.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.messages = append(r.messages, msg)
	return nil
}

func (r *recordingMailer) sent() []mail.Message {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]mail.Message(nil), r.messages...)
}

type testEnv struct {
	router       *gin.Engine
	db           *gorm.DB
	mailer       *recordingMailer
	users        *services.UserService
	verifyTokens *services.TokenService
	resetTokens  *services.TokenService
	sessions     *iauth.SessionService
	remember     *iauth.RememberService
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db := testutil.MustOpenTestDB(t)

	cfg := &app.Config{}
	cfg.App.BaseURL = "http://localhost:8000"

	users, err := services.NewUserService(db, services.WithPasswordCost(4))
	require.NoError(t, err)

	verifyTokens, err := services.NewVerifyEmailTokenService(db)
	require.NoError(t, err)

	resetTokens, err := services.NewPasswordResetTokenService(db)
	require.NoError(t, err)

	rec := &recordingMailer{}
	authMailer := services.NewAuthMailer(rec, cfg.App.BaseURL,
		services.WithMailDispatch(func(fn func()) { fn() }))

	jwt, err := iauth.NewJWTService(iauth.JWTConfig{Secret: "test-secret", Issuer: "conpanion"})
	require.NoError(t, err)

	sessions, err := iauth.NewSessionService(db, jwt, iauth.SessionConfig{})
	require.NoError(t, err)

	remember, err := iauth.NewRememberService(db, iauth.RememberConfig{})
	require.NoError(t, err)

	router, err := NewRouter(RouterDeps{
		Config:       cfg,
		Users:        users,
		VerifyTokens: verifyTokens,
		ResetTokens:  resetTokens,
		Mailer:       authMailer,
		Sessions:     sessions,
		Remember:     remember,
	})
	require.NoError(t, err)

	return &testEnv{
		router:       router,
		db:           db,
		mailer:       rec,
		users:        users,
		verifyTokens: verifyTokens,
		resetTokens:  resetTokens,
		sessions:     sessions,
		remember:     remember,
	}
}

func (e *testEnv) do(t *testing.T, method, path string, body any, cookies ...*http.Cookie) *httptest.ResponseRecorder {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(payload)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for _, cookie := range cookies {
		req.AddCookie(cookie)
	}

	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

func takeNotification(t *testing.T, w *httptest.ResponseRecorder) flash.Notification {
	t.Helper()

	for _, cookie := range w.Result().Cookies() {
		if cookie.Name != flash.CookieName || cookie.Value == "" {
			continue
		}
		decoded, err := base64.RawURLEncoding.DecodeString(cookie.Value)
		require.NoError(t, err)

		var n flash.Notification
		require.NoError(t, json.Unmarshal(decoded, &n))
		return n
	}

	t.Fatal("no notification cookie in response")
	return flash.Notification{}
}

func responseCookie(w *httptest.ResponseRecorder, name string) *http.Cookie {
	for _, cookie := range w.Result().Cookies() {
		if cookie.Name == name && cookie.Value != "" {
			return cookie
		}
	}
	return nil
}

func registerPayload(email string) gin.H {
	return gin.H{
		"email":                email,
		"password":             "Test123!",
		"passwordConfirmation": "Test123!",
	}
}

func (e *testEnv) registerUser(t *testing.T, email string) *models.User {
	t.Helper()

	w := e.do(t, http.MethodPost, "/register", registerPayload(email))
	require.Equal(t, http.StatusSeeOther, w.Code)

	user, err := e.users.FindByEmail(context.Background(), email)
	require.NoError(t, err)
	return user
}

func (e *testEnv) verifyUser(t *testing.T, user *models.User) {
	t.Helper()
	require.NoError(t, e.users.MarkVerified(context.Background(), user))
}

func TestRegisterFlow(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(t, http.MethodPost, "/register", registerPayload("a@test.fr"))
	require.Equal(t, http.StatusSeeOther, w.Code)
	require.Equal(t, "/login", w.Header().Get("Location"))

	n := takeNotification(t, w)
	require.Equal(t, flash.Info, n.Type)
	require.Equal(t, "Please check your emails to verify your account", n.Message)
	require.Equal(t, "Resend email", n.ActionLabel)
	require.Equal(t, "/verify-email/resend", n.ActionURL)
	require.Equal(t, "a@test.fr", n.ActionBody["email"])

	user, err := env.users.FindByEmail(context.Background(), "a@test.fr")
	require.NoError(t, err)
	require.False(t, user.IsVerified)

	var tokens []models.Token
	require.NoError(t, env.db.Where("user_id = ?", user.ID).Find(&tokens).Error)
	require.Len(t, tokens, 1)
	require.Equal(t, models.TokenTypeVerifyEmail, tokens[0].Type)

	messages := env.mailer.sent()
	require.Len(t, messages, 1)
	require.Equal(t, "Email Verification", messages[0].Subject)
	require.Contains(t, messages[0].Body, fmt.Sprintf("http://localhost:8000/verify-email/%s", tokens[0].Token))
}

func TestRegisterValidationErrors(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(t, http.MethodPost, "/register", gin.H{
		"email":                "not-an-email",
		"password":             "short",
		"passwordConfirmation": "different",
	})
	require.Equal(t, http.StatusUnprocessableEntity, w.Code)

	var body struct {
		Success bool              `json:"success"`
		Errors  map[string]string `json:"errors"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	require.False(t, body.Success)
	require.Contains(t, body.Errors, "email")
	require.Contains(t, body.Errors, "password")
	require.Contains(t, body.Errors, "passwordConfirmation")
}

func TestRegisterDuplicateEmail(t *testing.T) {
	env := newTestEnv(t)
	env.registerUser(t, "dup@test.fr")

	w := env.do(t, http.MethodPost, "/register", registerPayload("dup@test.fr"))
	require.Equal(t, http.StatusUnprocessableEntity, w.Code)

	var body struct {
		Errors map[string]string `json:"errors"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	require.Equal(t, "The email has already been taken", body.Errors["email"])
}

func TestLoginInvalidCredentials(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(t, http.MethodPost, "/login", gin.H{
		"email":    "ghost@test.fr",
		"password": "Test123!",
	})
	require.Equal(t, http.StatusSeeOther, w.Code)
	require.Equal(t, "/login", w.Header().Get("Location"))

	n := takeNotification(t, w)
	require.Equal(t, flash.Error, n.Type)
	require.Equal(t, "Invalid user credentials", n.Message)
	require.Nil(t, responseCookie(w, iauth.SessionCookieName))
}

func TestLoginUnverifiedUser(t *testing.T) {
	env := newTestEnv(t)
	env.registerUser(t, "pending@test.fr")

	w := env.do(t, http.MethodPost, "/login", gin.H{
		"email":    "pending@test.fr",
		"password": "Test123!",
	})
	require.Equal(t, http.StatusSeeOther, w.Code)
	require.Equal(t, "/login", w.Header().Get("Location"))

	n := takeNotification(t, w)
	require.Equal(t, flash.Info, n.Type)
	require.Equal(t, "Please check your emails to verify your account", n.Message)
	require.Equal(t, "/verify-email/resend", n.ActionURL)

	// No session is established for unverified accounts.
	require.Nil(t, responseCookie(w, iauth.SessionCookieName))

	var count int64
	require.NoError(t, env.db.Model(&models.Session{}).Count(&count).Error)
	require.Zero(t, count)
}

func TestLoginSuccess(t *testing.T) {
	env := newTestEnv(t)
	user := env.registerUser(t, "active@test.fr")
	env.verifyUser(t, user)

	w := env.do(t, http.MethodPost, "/login", gin.H{
		"email":    "active@test.fr",
		"password": "Test123!",
	})
	require.Equal(t, http.StatusSeeOther, w.Code)
	require.Equal(t, "/", w.Header().Get("Location"))

	n := takeNotification(t, w)
	require.Equal(t, flash.Success, n.Type)
	require.Equal(t, "You have been logged in successfully", n.Message)

	session := responseCookie(w, iauth.SessionCookieName)
	require.NotNil(t, session)
	require.True(t, session.HttpOnly)

	// No remember cookie unless requested.
	require.Nil(t, responseCookie(w, iauth.RememberCookieName))
}

func TestLoginWithRememberMe(t *testing.T) {
	env := newTestEnv(t)
	user := env.registerUser(t, "persist@test.fr")
	env.verifyUser(t, user)

	w := env.do(t, http.MethodPost, "/login", gin.H{
		"email":    "persist@test.fr",
		"password": "Test123!",
		"remember": true,
	})
	require.Equal(t, http.StatusSeeOther, w.Code)

	rememberCookie := responseCookie(w, iauth.RememberCookieName)
	require.NotNil(t, rememberCookie)

	var count int64
	require.NoError(t, env.db.Model(&models.RememberMeToken{}).Count(&count).Error)
	require.EqualValues(t, 1, count)
}

func TestRememberMeResurrectsSession(t *testing.T) {
	env := newTestEnv(t)
	user := env.registerUser(t, "revive@test.fr")
	env.verifyUser(t, user)

	token, err := env.remember.Issue(context.Background(), user.ID)
	require.NoError(t, err)

	// A guest-only page redirects home once the remember token authenticates the request.
	w := env.do(t, http.MethodGet, "/login", nil, &http.Cookie{Name: iauth.RememberCookieName, Value: token})
	require.Equal(t, http.StatusFound, w.Code)
	require.Equal(t, "/", w.Header().Get("Location"))

	// A new session plus a rotated remember token were issued.
	require.NotNil(t, responseCookie(w, iauth.SessionCookieName))
	rotated := responseCookie(w, iauth.RememberCookieName)
	require.NotNil(t, rotated)
	require.NotEqual(t, token, rotated.Value)
}

func TestLogout(t *testing.T) {
	env := newTestEnv(t)
	user := env.registerUser(t, "leave@test.fr")
	env.verifyUser(t, user)

	sessionToken, _, err := env.sessions.CreateSession(context.Background(), user.ID, iauth.SessionMetadata{})
	require.NoError(t, err)
	rememberToken, err := env.remember.Issue(context.Background(), user.ID)
	require.NoError(t, err)

	w := env.do(t, http.MethodDelete, "/logout", nil,
		&http.Cookie{Name: iauth.SessionCookieName, Value: sessionToken},
		&http.Cookie{Name: iauth.RememberCookieName, Value: rememberToken},
	)
	require.Equal(t, http.StatusSeeOther, w.Code)
	require.Equal(t, "/", w.Header().Get("Location"))

	n := takeNotification(t, w)
	require.Equal(t, flash.Success, n.Type)
	require.Equal(t, "You have been successfully logged out", n.Message)

	_, err = env.sessions.ValidateToken(context.Background(), sessionToken)
	require.ErrorIs(t, err, iauth.ErrSessionRevoked)

	_, _, err = env.remember.Consume(context.Background(), rememberToken)
	require.ErrorIs(t, err, iauth.ErrRememberTokenInvalid)
}
