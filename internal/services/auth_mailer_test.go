package services

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/conpanion/conpanion/internal/models"
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

func inlineDispatch(fn func()) { fn() }

func TestAuthMailerURLs(t *testing.T) {
	m := NewAuthMailer(nil, "https://app.example.com/")

	require.Equal(t, "https://app.example.com/verify-email/abc", m.VerificationURL("abc"))
	require.Equal(t, "https://app.example.com/password-reset/abc", m.PasswordResetURL("abc"))
}

func TestSendVerification(t *testing.T) {
	rec := &recordingMailer{}
	m := NewAuthMailer(rec, "https://app.example.com")

	user := &models.User{Email: "alice@example.com"}
	require.NoError(t, m.SendVerification(context.Background(), user, "tok123"))

	messages := rec.sent()
	require.Len(t, messages, 1)
	require.Equal(t, []string{"alice@example.com"}, messages[0].To)
	require.Equal(t, "Email Verification", messages[0].Subject)
	require.Contains(t, messages[0].Body, "https://app.example.com/verify-email/tok123")
}

func TestSendPasswordReset(t *testing.T) {
	rec := &recordingMailer{}
	m := NewAuthMailer(rec, "https://app.example.com")

	user := &models.User{Email: "bob@example.com"}
	require.NoError(t, m.SendPasswordReset(context.Background(), user, "tok456"))

	messages := rec.sent()
	require.Len(t, messages, 1)
	require.Equal(t, "Password Reset Request", messages[0].Subject)
	require.Contains(t, messages[0].Body, "https://app.example.com/password-reset/tok456")
}

func TestAsyncSendsWithInlineDispatch(t *testing.T) {
	rec := &recordingMailer{}
	m := NewAuthMailer(rec, "https://app.example.com", WithMailDispatch(inlineDispatch))

	user := &models.User{Email: "carol@example.com"}
	m.SendVerificationAsync(user, "tok1")
	m.SendPasswordResetAsync(user, "tok2")

	messages := rec.sent()
	require.Len(t, messages, 2)
	require.Equal(t, "Email Verification", messages[0].Subject)
	require.Equal(t, "Password Reset Request", messages[1].Subject)
}

func TestSendWithNilMailerIsNoop(t *testing.T) {
	m := NewAuthMailer(nil, "https://app.example.com")
	require.NoError(t, m.SendVerification(context.Background(), &models.User{Email: "x@example.com"}, "tok"))
}
