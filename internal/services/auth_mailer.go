package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/conpanion/conpanion/internal/models"
	"github.com/conpanion/conpanion/pkg/logger"
	"github.com/conpanion/conpanion/pkg/mail"
	"github.com/conpanion/conpanion/pkg/metrics"
)

const asyncSendTimeout = 30 * time.Second

// AuthMailer composes and dispatches the auth flow emails. Links are built
// from the application base URL so they resolve from the recipient's inbox.
type AuthMailer struct {
	mailer   mail.Mailer
	baseURL  string
	log      *zap.Logger
	dispatch func(fn func())
}

// MailerOption customises AuthMailer construction.
type MailerOption func(*AuthMailer)

// WithMailDispatch overrides how the Async send methods schedule delivery.
// The default spawns a goroutine; tests pass an inline runner.
func WithMailDispatch(dispatch func(fn func())) MailerOption {
	return func(m *AuthMailer) {
		if dispatch != nil {
			m.dispatch = dispatch
		}
	}
}

// NewAuthMailer constructs an AuthMailer. A nil mailer disables delivery
// without failing the surrounding flows.
func NewAuthMailer(mailer mail.Mailer, baseURL string, opts ...MailerOption) *AuthMailer {
	m := &AuthMailer{
		mailer:   mailer,
		baseURL:  strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		log:      logger.WithModule("mailer"),
		dispatch: func(fn func()) { go fn() },
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// VerificationURL returns the absolute confirmation link for a token.
func (m *AuthMailer) VerificationURL(token string) string {
	return fmt.Sprintf("%s/verify-email/%s", m.baseURL, token)
}

// PasswordResetURL returns the absolute reset link for a token.
func (m *AuthMailer) PasswordResetURL(token string) string {
	return fmt.Sprintf("%s/password-reset/%s", m.baseURL, token)
}

// SendVerification emails the confirmation link to the user.
func (m *AuthMailer) SendVerification(ctx context.Context, user *models.User, token string) error {
	body := fmt.Sprintf(`Welcome to Conpanion!

Please verify your email address by clicking the link below (valid for 1 day):
%s

Sincerely,
The Conpanion Team
`, m.VerificationURL(token))

	return m.send(ctx, "verify", mail.Message{
		To:      []string{user.Email},
		Subject: "Email Verification",
		Body:    body,
	})
}

// SendPasswordReset emails the reset link to the user.
func (m *AuthMailer) SendPasswordReset(ctx context.Context, user *models.User, token string) error {
	body := fmt.Sprintf(`Hello,

We received a request to reset the password for your account.
You can choose a new password through the link below (valid for 1 hour):
%s

If you did not request a password reset, you can safely ignore this message.

Sincerely,
The Conpanion Team
`, m.PasswordResetURL(token))

	return m.send(ctx, "reset", mail.Message{
		To:      []string{user.Email},
		Subject: "Password Reset Request",
		Body:    body,
	})
}

// SendVerificationAsync dispatches the confirmation email without blocking
// the request.
func (m *AuthMailer) SendVerificationAsync(user *models.User, token string) {
	snapshot := *user
	m.dispatch(func() {
		ctx, cancel := context.WithTimeout(context.Background(), asyncSendTimeout)
		defer cancel()

		if err := m.SendVerification(ctx, &snapshot, token); err != nil {
			m.log.Warn("async verification email failed",
				zap.String("email", snapshot.Email),
				zap.Error(err),
			)
		}
	})
}

// SendPasswordResetAsync dispatches the reset email without blocking the
// request. The flow's database state is already committed by the time this
// runs, so a delivery failure only loses the email, never consistency.
func (m *AuthMailer) SendPasswordResetAsync(user *models.User, token string) {
	snapshot := *user
	m.dispatch(func() {
		ctx, cancel := context.WithTimeout(context.Background(), asyncSendTimeout)
		defer cancel()

		if err := m.SendPasswordReset(ctx, &snapshot, token); err != nil {
			m.log.Warn("async password reset email failed",
				zap.String("email", snapshot.Email),
				zap.Error(err),
			)
		}
	})
}

func (m *AuthMailer) send(ctx context.Context, kind string, msg mail.Message) error {
	if m.mailer == nil {
		return nil
	}

	err := m.mailer.Send(ctx, msg)
	switch {
	case err == nil:
		metrics.EmailsSent.WithLabelValues(kind, "success").Inc()
		return nil
	case errors.Is(err, mail.ErrSMTPDisabled):
		m.log.Debug("smtp disabled; auth email skipped", zap.String("kind", kind))
		return nil
	default:
		metrics.EmailsSent.WithLabelValues(kind, "failure").Inc()
		return fmt.Errorf("auth mailer: send %s email: %w", kind, err)
	}
}
