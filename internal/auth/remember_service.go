package auth

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/conpanion/conpanion/internal/models"
	"github.com/conpanion/conpanion/pkg/crypto"
)

// DefaultRememberTTL is the fallback remember-me token lifetime.
const DefaultRememberTTL = 365 * 24 * time.Hour

// ErrRememberTokenInvalid is returned when a remember-me token is unknown, expired, or malformed.
var ErrRememberTokenInvalid = errors.New("remember: invalid token")

// RememberConfig describes tunable behaviour for the RememberService.
type RememberConfig struct {
	TokenTTL time.Duration
	Clock    func() time.Time
}

// RememberService manages long-lived remember-me tokens. Only a hash of each
// token is stored, so a database leak does not expose usable credentials.
type RememberService struct {
	db  *gorm.DB
	ttl time.Duration
	now func() time.Time
}

// NewRememberService constructs a remember-me token manager backed by the provided database.
func NewRememberService(db *gorm.DB, cfg RememberConfig) (*RememberService, error) {
	if db == nil {
		return nil, errors.New("remember service: db is required")
	}

	ttl := cfg.TokenTTL
	if ttl <= 0 {
		ttl = DefaultRememberTTL
	}

	clock := time.Now
	if cfg.Clock != nil {
		clock = cfg.Clock
	}

	return &RememberService{db: db, ttl: ttl, now: clock}, nil
}

// Issue creates a new remember-me token for the user and returns its clear value.
func (s *RememberService) Issue(ctx context.Context, userID uint) (string, error) {
	if userID == 0 {
		return "", errors.New("remember service: user id is required")
	}

	token, err := crypto.GenerateToken(crypto.DefaultTokenBytes)
	if err != nil {
		return "", fmt.Errorf("remember service: generate token: %w", err)
	}

	record := &models.RememberMeToken{
		UserID:    userID,
		TokenHash: hashRememberToken(token),
		ExpiresAt: s.now().Add(s.ttl),
	}

	if err := s.db.WithContext(ctx).Create(record).Error; err != nil {
		return "", fmt.Errorf("remember service: store token: %w", err)
	}

	return token, nil
}

// Consume validates a remember-me token, deletes it, and issues a replacement.
// Rotation means a stolen cookie can only be replayed until its owner next logs in.
func (s *RememberService) Consume(ctx context.Context, token string) (uint, string, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return 0, "", ErrRememberTokenInvalid
	}

	var record models.RememberMeToken
	err := s.db.WithContext(ctx).
		Take(&record, "token_hash = ?", hashRememberToken(token)).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return 0, "", ErrRememberTokenInvalid
	}
	if err != nil {
		return 0, "", fmt.Errorf("remember service: find token: %w", err)
	}

	if err := s.db.WithContext(ctx).Delete(&record).Error; err != nil {
		return 0, "", fmt.Errorf("remember service: delete token: %w", err)
	}

	if record.ExpiresAt.Before(s.now()) {
		return 0, "", ErrRememberTokenInvalid
	}

	replacement, err := s.Issue(ctx, record.UserID)
	if err != nil {
		return 0, "", err
	}

	return record.UserID, replacement, nil
}

// Revoke removes a single remember-me token by its clear value.
func (s *RememberService) Revoke(ctx context.Context, token string) error {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil
	}

	err := s.db.WithContext(ctx).
		Where("token_hash = ?", hashRememberToken(token)).
		Delete(&models.RememberMeToken{}).Error
	if err != nil {
		return fmt.Errorf("remember service: revoke token: %w", err)
	}
	return nil
}

// RevokeUserTokens removes every remember-me token belonging to a user.
func (s *RememberService) RevokeUserTokens(ctx context.Context, userID uint) error {
	if userID == 0 {
		return errors.New("remember service: user id is required")
	}

	err := s.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Delete(&models.RememberMeToken{}).Error
	if err != nil {
		return fmt.Errorf("remember service: revoke user tokens: %w", err)
	}
	return nil
}

// CleanupExpired removes remember-me tokens past their expiry.
func (s *RememberService) CleanupExpired(ctx context.Context) (int64, error) {
	if ctx == nil {
		ctx = context.Background()
	}

	result := s.db.WithContext(ctx).
		Where("expires_at < ?", s.now()).
		Delete(&models.RememberMeToken{})
	if result.Error != nil {
		return 0, fmt.Errorf("remember service: cleanup expired tokens: %w", result.Error)
	}

	return result.RowsAffected, nil
}

func hashRememberToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}
