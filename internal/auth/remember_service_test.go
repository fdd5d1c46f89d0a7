package auth

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/conpanion/conpanion/internal/database/testutil"
	"github.com/conpanion/conpanion/internal/models"
	"github.com/conpanion/conpanion/pkg/crypto"
)

func rememberTestUser(t *testing.T, db *gorm.DB) *models.User {
	t.Helper()

	user := &models.User{Email: "remember@example.com", Password: "hashed"}
	require.NoError(t, db.Create(user).Error)
	return user
}

func TestRememberIssueAndConsumeRotates(t *testing.T) {
	db := testutil.MustOpenTestDB(t)
	svc, err := NewRememberService(db, RememberConfig{})
	require.NoError(t, err)

	user := rememberTestUser(t, db)
	ctx := context.Background()

	token, err := svc.Issue(ctx, user.ID)
	require.NoError(t, err)
	require.Len(t, token, crypto.TokenChars)

	// Only a hash is stored.
	var record models.RememberMeToken
	require.NoError(t, db.First(&record).Error)
	require.NotEqual(t, token, record.TokenHash)

	userID, replacement, err := svc.Consume(ctx, token)
	require.NoError(t, err)
	require.Equal(t, user.ID, userID)
	require.NotEqual(t, token, replacement)

	// The consumed token is gone; only the replacement works.
	_, _, err = svc.Consume(ctx, token)
	require.ErrorIs(t, err, ErrRememberTokenInvalid)

	userID, _, err = svc.Consume(ctx, replacement)
	require.NoError(t, err)
	require.Equal(t, user.ID, userID)
}

func TestRememberConsumeExpired(t *testing.T) {
	db := testutil.MustOpenTestDB(t)

	current := time.Now()
	svc, err := NewRememberService(db, RememberConfig{
		TokenTTL: time.Hour,
		Clock:    func() time.Time { return current },
	})
	require.NoError(t, err)

	user := rememberTestUser(t, db)
	ctx := context.Background()

	token, err := svc.Issue(ctx, user.ID)
	require.NoError(t, err)

	current = current.Add(2 * time.Hour)

	_, _, err = svc.Consume(ctx, token)
	require.ErrorIs(t, err, ErrRememberTokenInvalid)

	// The expired row was deleted on the failed consume.
	var count int64
	require.NoError(t, db.Model(&models.RememberMeToken{}).Count(&count).Error)
	require.Zero(t, count)
}

func TestRememberRevoke(t *testing.T) {
	db := testutil.MustOpenTestDB(t)
	svc, err := NewRememberService(db, RememberConfig{})
	require.NoError(t, err)

	user := rememberTestUser(t, db)
	ctx := context.Background()

	token, err := svc.Issue(ctx, user.ID)
	require.NoError(t, err)

	require.NoError(t, svc.Revoke(ctx, token))

	_, _, err = svc.Consume(ctx, token)
	require.ErrorIs(t, err, ErrRememberTokenInvalid)
}

func TestRememberRevokeUserTokens(t *testing.T) {
	db := testutil.MustOpenTestDB(t)
	svc, err := NewRememberService(db, RememberConfig{})
	require.NoError(t, err)

	user := rememberTestUser(t, db)
	ctx := context.Background()

	_, err = svc.Issue(ctx, user.ID)
	require.NoError(t, err)
	_, err = svc.Issue(ctx, user.ID)
	require.NoError(t, err)

	require.NoError(t, svc.RevokeUserTokens(ctx, user.ID))

	var count int64
	require.NoError(t, db.Model(&models.RememberMeToken{}).Count(&count).Error)
	require.Zero(t, count)
}

func TestRememberCleanupExpired(t *testing.T) {
	db := testutil.MustOpenTestDB(t)

	current := time.Now()
	svc, err := NewRememberService(db, RememberConfig{
		TokenTTL: time.Hour,
		Clock:    func() time.Time { return current },
	})
	require.NoError(t, err)

	user := rememberTestUser(t, db)
	ctx := context.Background()

	_, err = svc.Issue(ctx, user.ID)
	require.NoError(t, err)

	current = current.Add(2 * time.Hour)

	fresh, err := svc.Issue(ctx, user.ID)
	require.NoError(t, err)

	removed, err := svc.CleanupExpired(ctx)
	require.NoError(t, err)
	require.EqualValues(t, 1, removed)

	_, _, err = svc.Consume(ctx, fresh)
	require.NoError(t, err)
}
