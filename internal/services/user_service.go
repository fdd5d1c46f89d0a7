package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"gorm.io/gorm"

	"github.com/conpanion/conpanion/internal/models"
	"github.com/conpanion/conpanion/pkg/crypto"
)

var (
	// ErrEmailTaken indicates a registration attempt with an email already in use.
	ErrEmailTaken = errors.New("user service: email already registered")
	// ErrUserNotFound indicates no user matches the lookup.
	ErrUserNotFound = errors.New("user service: not found")
	// ErrInvalidCredentials covers both unknown email and password mismatch.
	// Callers must not distinguish the two in user-facing messages.
	ErrInvalidCredentials = errors.New("user service: invalid credentials")
	// ErrAlreadyVerified signals a verification attempt on a verified account.
	ErrAlreadyVerified = errors.New("user service: email already verified")
)

// dummyHash keeps VerifyCredentials doing a bcrypt comparison even when the
// email is unknown, so the two failure paths have the same shape.
const dummyHash = "$2a$10$N9qo8uLOickgx2ZMRZoMyeIjZAgcfl7p92ldGxad68LJZdL17lhWy"

// UserOption customises the UserService.
type UserOption func(*UserService)

// WithPasswordCost sets the bcrypt work factor used for new password hashes.
func WithPasswordCost(cost int) UserOption {
	return func(s *UserService) {
		if cost > 0 {
			s.passwordCost = cost
		}
	}
}

// UserService owns account creation and credential verification.
type UserService struct {
	db           *gorm.DB
	passwordCost int
}

// NewUserService constructs a UserService instance.
func NewUserService(db *gorm.DB, opts ...UserOption) (*UserService, error) {
	if db == nil {
		return nil, errors.New("user service: db is required")
	}

	service := &UserService{db: db}
	for _, opt := range opts {
		opt(service)
	}
	return service, nil
}

// NormalizeEmail applies the canonical form used for storage and lookups.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// Register creates an unverified account with a hashed password.
func (s *UserService) Register(ctx context.Context, email, password string) (*models.User, error) {
	email = NormalizeEmail(email)
	if email == "" {
		return nil, errors.New("user service: email is required")
	}
	if password == "" {
		return nil, errors.New("user service: password is required")
	}

	hashed, err := crypto.HashPassword(password, s.passwordCost)
	if err != nil {
		return nil, fmt.Errorf("user service: hash password: %w", err)
	}

	user := &models.User{
		Email:      email,
		Password:   hashed,
		IsVerified: false,
	}

	if err := s.db.WithContext(ctx).Create(user).Error; err != nil {
		if isUniqueConstraintError(err) {
			return nil, ErrEmailTaken
		}
		return nil, fmt.Errorf("user service: create user: %w", err)
	}

	return user, nil
}

// FindByEmail looks up a user by normalized email.
func (s *UserService) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	var user models.User
	err := s.db.WithContext(ctx).
		Where("email = ?", NormalizeEmail(email)).
		First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("user service: find by email: %w", err)
	}
	return &user, nil
}

// FindByID loads a user by primary key.
func (s *UserService) FindByID(ctx context.Context, id uint) (*models.User, error) {
	var user models.User
	err := s.db.WithContext(ctx).First(&user, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("user service: find by id: %w", err)
	}
	return &user, nil
}

// VerifyCredentials checks an email/password pair and returns the matching
// user. Unknown email and wrong password both yield ErrInvalidCredentials;
// the dummy comparison on the miss path keeps response timing comparable.
func (s *UserService) VerifyCredentials(ctx context.Context, email, password string) (*models.User, error) {
	user, err := s.FindByEmail(ctx, email)
	if errors.Is(err, ErrUserNotFound) {
		crypto.VerifyPassword(dummyHash, password)
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, err
	}

	if !crypto.VerifyPassword(user.Password, password) {
		return nil, ErrInvalidCredentials
	}

	return user, nil
}

// MarkVerified flips the verification flag. Verifying twice is an error the
// flow surfaces to the user.
func (s *UserService) MarkVerified(ctx context.Context, user *models.User) error {
	if user == nil {
		return errors.New("user service: user is required")
	}
	if user.IsVerified {
		return ErrAlreadyVerified
	}

	if err := s.db.WithContext(ctx).
		Model(user).
		Update("is_verified", true).Error; err != nil {
		return fmt.Errorf("user service: mark verified: %w", err)
	}

	user.IsVerified = true
	return nil
}

// UpdatePassword replaces the stored hash with one for the new password.
func (s *UserService) UpdatePassword(ctx context.Context, user *models.User, password string) error {
	if user == nil {
		return errors.New("user service: user is required")
	}
	if password == "" {
		return errors.New("user service: password is required")
	}

	hashed, err := crypto.HashPassword(password, s.passwordCost)
	if err != nil {
		return fmt.Errorf("user service: hash password: %w", err)
	}

	if err := s.db.WithContext(ctx).
		Model(user).
		Update("password", hashed).Error; err != nil {
		return fmt.Errorf("user service: update password: %w", err)
	}

	user.Password = hashed
	return nil
}
