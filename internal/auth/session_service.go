package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/conpanion/conpanion/internal/models"
	"github.com/conpanion/conpanion/pkg/metrics"
)

// DefaultSessionTTL is the fallback server-side session lifetime.
const DefaultSessionTTL = 12 * time.Hour

// SessionConfig describes tunable behaviour for the SessionService.
type SessionConfig struct {
	SessionTTL time.Duration
	Clock      func() time.Time
}

// SessionMetadata captures contextual information about the client.
type SessionMetadata struct {
	IPAddress string
	UserAgent string
}

var (
	// ErrSessionNotFound indicates that no session matches the provided identifier.
	ErrSessionNotFound = errors.New("session: not found")
	// ErrSessionRevoked marks a session that has been revoked by logout or administrators.
	ErrSessionRevoked = errors.New("session: revoked")
	// ErrSessionExpired signals that a session has reached its expiry.
	ErrSessionExpired = errors.New("session: expired")
)

// SessionService manages creation, validation, and revocation of user sessions.
type SessionService struct {
	db  *gorm.DB
	jwt *JWTService
	ttl time.Duration
	now func() time.Time
}

// NewSessionService constructs a session manager backed by the provided database and JWT service.
func NewSessionService(db *gorm.DB, jwtService *JWTService, cfg SessionConfig) (*SessionService, error) {
	if db == nil {
		return nil, errors.New("session service: db is required")
	}
	if jwtService == nil {
		return nil, errors.New("session service: jwt service is required")
	}

	ttl := cfg.SessionTTL
	if ttl <= 0 {
		ttl = DefaultSessionTTL
	}

	clock := time.Now
	if cfg.Clock != nil {
		clock = cfg.Clock
	}

	return &SessionService{
		db:  db,
		jwt: jwtService,
		ttl: ttl,
		now: clock,
	}, nil
}

// CreateSession records a new server-side session and issues the signed cookie value for it.
func (s *SessionService) CreateSession(ctx context.Context, userID uint, meta SessionMetadata) (string, *models.Session, error) {
	if userID == 0 {
		return "", nil, errors.New("session service: user id is required")
	}

	now := s.now()

	session := &models.Session{
		UserID:     userID,
		IPAddress:  strings.TrimSpace(meta.IPAddress),
		UserAgent:  strings.TrimSpace(meta.UserAgent),
		ExpiresAt:  now.Add(s.ttl),
		LastUsedAt: now,
	}

	if err := s.db.WithContext(ctx).Create(session).Error; err != nil {
		return "", nil, fmt.Errorf("session service: create session: %w", err)
	}

	metrics.ActiveSessions.Inc()

	token, err := s.jwt.GenerateSessionToken(userID, session.ID)
	if err != nil {
		return "", nil, fmt.Errorf("session service: generate session token: %w", err)
	}

	return token, session, nil
}

// ValidateToken checks a signed cookie value against its backing session row.
func (s *SessionService) ValidateToken(ctx context.Context, tokenString string) (*models.Session, error) {
	claims, err := s.jwt.ValidateSessionToken(tokenString)
	if err != nil {
		return nil, err
	}

	var session models.Session
	err = s.db.WithContext(ctx).Take(&session, "id = ?", claims.SessionID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrSessionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("session service: find session: %w", err)
	}

	if session.UserID != claims.UserID {
		return nil, ErrSessionNotFound
	}
	if session.RevokedAt != nil {
		return nil, ErrSessionRevoked
	}

	now := s.now()
	if session.ExpiresAt.Before(now) {
		return nil, ErrSessionExpired
	}

	// Touch is best effort; the session is valid regardless.
	_ = s.db.WithContext(ctx).Model(&session).Update("last_used_at", now).Error
	session.LastUsedAt = now

	return &session, nil
}

// RevokeSession marks a session as revoked, preventing further use.
func (s *SessionService) RevokeSession(ctx context.Context, sessionID string) error {
	if strings.TrimSpace(sessionID) == "" {
		return ErrSessionNotFound
	}

	result := s.db.WithContext(ctx).Model(&models.Session{}).
		Where("id = ? AND revoked_at IS NULL", sessionID).
		Update("revoked_at", s.now())

	if result.Error != nil {
		return fmt.Errorf("session service: revoke session: %w", result.Error)
	}

	if result.RowsAffected == 0 {
		return ErrSessionNotFound
	}

	metrics.ActiveSessions.Sub(float64(result.RowsAffected))

	return nil
}

// RevokeUserSessions revokes every active session belonging to a user.
func (s *SessionService) RevokeUserSessions(ctx context.Context, userID uint) error {
	if userID == 0 {
		return errors.New("session service: user id is required")
	}

	result := s.db.WithContext(ctx).Model(&models.Session{}).
		Where("user_id = ? AND revoked_at IS NULL", userID).
		Update("revoked_at", s.now())
	if result.Error != nil {
		return fmt.Errorf("session service: revoke user sessions: %w", result.Error)
	}

	if result.RowsAffected > 0 {
		metrics.ActiveSessions.Sub(float64(result.RowsAffected))
	}

	return nil
}

// CleanupExpired removes expired and revoked sessions and updates active session metrics.
func (s *SessionService) CleanupExpired(ctx context.Context) (int64, error) {
	if ctx == nil {
		ctx = context.Background()
	}

	now := s.now()

	var activeExpired int64
	if err := s.db.WithContext(ctx).
		Model(&models.Session{}).
		Where("expires_at < ? AND revoked_at IS NULL", now).
		Count(&activeExpired).Error; err != nil {
		return 0, fmt.Errorf("session service: count expired sessions: %w", err)
	}

	result := s.db.WithContext(ctx).
		Where("expires_at < ?", now).
		Or("revoked_at IS NOT NULL").
		Delete(&models.Session{})
	if result.Error != nil {
		return 0, fmt.Errorf("session service: cleanup expired sessions: %w", result.Error)
	}

	if activeExpired > 0 {
		metrics.ActiveSessions.Sub(float64(activeExpired))
	}

	return result.RowsAffected, nil
}
