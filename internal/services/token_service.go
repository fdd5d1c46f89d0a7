package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/conpanion/conpanion/internal/models"
	"github.com/conpanion/conpanion/pkg/crypto"
	"github.com/conpanion/conpanion/pkg/metrics"
)

// Default token lifetimes by purpose.
const (
	VerifyEmailTokenTTL   = 24 * time.Hour
	PasswordResetTokenTTL = time.Hour
)

// TokenOption customises a TokenService.
type TokenOption func(*TokenService)

// WithTokenClock injects a custom time source.
func WithTokenClock(clock func() time.Time) TokenOption {
	return func(s *TokenService) {
		if clock != nil {
			s.now = clock
		}
	}
}

// WithTokenTTL overrides the token lifetime.
func WithTokenTTL(d time.Duration) TokenOption {
	return func(s *TokenService) {
		if d > 0 {
			s.ttl = d
		}
	}
}

// TokenService manages the lifecycle of single-use tokens for one purpose.
// The service is instantiated once per purpose so each fixes its own TTL and
// tokens can never cross purposes.
type TokenService struct {
	db      *gorm.DB
	purpose string
	ttl     time.Duration
	now     func() time.Time
}

// NewVerifyEmailTokenService builds the issuance service for email
// verification tokens.
func NewVerifyEmailTokenService(db *gorm.DB, opts ...TokenOption) (*TokenService, error) {
	return newTokenService(db, models.TokenTypeVerifyEmail, VerifyEmailTokenTTL, opts)
}

// NewPasswordResetTokenService builds the issuance service for password reset
// tokens.
func NewPasswordResetTokenService(db *gorm.DB, opts ...TokenOption) (*TokenService, error) {
	return newTokenService(db, models.TokenTypePasswordReset, PasswordResetTokenTTL, opts)
}

func newTokenService(db *gorm.DB, purpose string, ttl time.Duration, opts []TokenOption) (*TokenService, error) {
	if db == nil {
		return nil, errors.New("token service: db is required")
	}

	service := &TokenService{
		db:      db,
		purpose: purpose,
		ttl:     ttl,
		now:     time.Now,
	}

	for _, opt := range opts {
		opt(service)
	}

	return service, nil
}

// Purpose returns the token type this service issues.
func (s *TokenService) Purpose() string {
	return s.purpose
}

// GenerateToken issues a fresh opaque token for the user, superseding any
// prior token of the same purpose. The clear and insert run in one
// transaction so concurrent generates for the same user cannot leave two
// live rows.
//
// A nil user still returns a well-formed token that is never persisted: the
// caller can keep response shape and timing identical whether or not the
// account exists.
func (s *TokenService) GenerateToken(ctx context.Context, user *models.User) (string, error) {
	token, err := crypto.GenerateToken(crypto.DefaultTokenBytes)
	if err != nil {
		return "", fmt.Errorf("token service: generate %s token: %w", s.purpose, err)
	}

	if user == nil {
		return token, nil
	}

	record := models.Token{
		UserID:    user.ID,
		Type:      s.purpose,
		Token:     token,
		ExpiresAt: s.now().Add(s.ttl),
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.
			Where("user_id = ? AND type = ?", user.ID, s.purpose).
			Delete(&models.Token{}).Error; err != nil {
			return fmt.Errorf("clear previous: %w", err)
		}
		if err := tx.Create(&record).Error; err != nil {
			return fmt.Errorf("insert: %w", err)
		}
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("token service: generate %s token: %w", s.purpose, err)
	}

	metrics.TokensIssued.WithLabelValues(s.purpose).Inc()

	return token, nil
}

// VerifyToken reports whether a live token with this exact value exists for
// this purpose. Read-only: the token is not consumed, so render endpoints can
// probe before showing a form. Unknown and expired tokens both return false.
func (s *TokenService) VerifyToken(ctx context.Context, token string) (bool, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return false, nil
	}

	var count int64
	err := s.db.WithContext(ctx).
		Model(&models.Token{}).
		Where("token = ? AND type = ? AND expires_at > ?", token, s.purpose, s.now()).
		Count(&count).Error
	if err != nil {
		return false, fmt.Errorf("token service: verify %s token: %w", s.purpose, err)
	}

	return count > 0, nil
}

// GetUserByToken resolves a live token to its owning user, or nil when no
// live row matches. Clear-on-generate keeps a single live row per user; the
// descending order tolerates a transient duplicate.
func (s *TokenService) GetUserByToken(ctx context.Context, token string) (*models.User, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, nil
	}

	var record models.Token
	err := s.db.WithContext(ctx).
		Preload("User").
		Where("token = ? AND type = ? AND expires_at > ?", token, s.purpose, s.now()).
		Order("created_at DESC").
		First(&record).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("token service: find %s token: %w", s.purpose, err)
	}

	return record.User, nil
}

// ClearTokens removes this purpose's tokens for the user. Runs as part of
// GenerateToken and again after successful consumption so a token can never
// be replayed.
func (s *TokenService) ClearTokens(ctx context.Context, user *models.User) error {
	if user == nil {
		return errors.New("token service: user is required")
	}

	err := s.db.WithContext(ctx).
		Where("user_id = ? AND type = ?", user.ID, s.purpose).
		Delete(&models.Token{}).Error
	if err != nil {
		return fmt.Errorf("token service: clear %s tokens: %w", s.purpose, err)
	}
	return nil
}

// CleanupExpired opportunistically deletes rows past their expiry. Liveness
// never depends on this; expired rows already fail the live predicate.
func (s *TokenService) CleanupExpired(ctx context.Context) (int64, error) {
	result := s.db.WithContext(ctx).
		Where("type = ? AND expires_at <= ?", s.purpose, s.now()).
		Delete(&models.Token{})
	if result.Error != nil {
		return 0, fmt.Errorf("token service: cleanup %s tokens: %w", s.purpose, result.Error)
	}
	return result.RowsAffected, nil
}
