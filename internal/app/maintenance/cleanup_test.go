package maintenance

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	iauth "github.com/conpanion/conpanion/internal/auth"
	"github.com/conpanion/conpanion/internal/database/testutil"
	"github.com/conpanion/conpanion/internal/models"
	"github.com/conpanion/conpanion/internal/services"
)

func TestCleanerRunOnce(t *testing.T) {
	db := testutil.MustOpenTestDB(t)

	user := &models.User{Email: "cleanup@example.com", Password: "hashed"}
	require.NoError(t, db.Create(user).Error)

	current := time.Now()
	clock := func() time.Time { return current }

	jwt, err := iauth.NewJWTService(iauth.JWTConfig{Secret: "test-secret", Clock: clock})
	require.NoError(t, err)
	sessions, err := iauth.NewSessionService(db, jwt, iauth.SessionConfig{SessionTTL: time.Hour, Clock: clock})
	require.NoError(t, err)
	remember, err := iauth.NewRememberService(db, iauth.RememberConfig{TokenTTL: time.Hour, Clock: clock})
	require.NoError(t, err)
	verifyTokens, err := services.NewVerifyEmailTokenService(db,
		services.WithTokenClock(clock), services.WithTokenTTL(time.Hour))
	require.NoError(t, err)
	resetTokens, err := services.NewPasswordResetTokenService(db,
		services.WithTokenClock(clock), services.WithTokenTTL(time.Hour))
	require.NoError(t, err)

	ctx := context.Background()

	_, _, err = sessions.CreateSession(ctx, user.ID, iauth.SessionMetadata{})
	require.NoError(t, err)
	_, err = remember.Issue(ctx, user.ID)
	require.NoError(t, err)
	_, err = verifyTokens.GenerateToken(ctx, user)
	require.NoError(t, err)
	_, err = resetTokens.GenerateToken(ctx, user)
	require.NoError(t, err)

	current = current.Add(2 * time.Hour)

	cleaner := NewCleaner(sessions, remember, []*services.TokenService{verifyTokens, resetTokens})
	require.NoError(t, cleaner.RunOnce(ctx))

	var count int64
	require.NoError(t, db.Model(&models.Session{}).Count(&count).Error)
	require.Zero(t, count)
	require.NoError(t, db.Model(&models.RememberMeToken{}).Count(&count).Error)
	require.Zero(t, count)
	require.NoError(t, db.Model(&models.Token{}).Count(&count).Error)
	require.Zero(t, count)
}

func TestCleanerStartAndStop(t *testing.T) {
	db := testutil.MustOpenTestDB(t)

	jwt, err := iauth.NewJWTService(iauth.JWTConfig{Secret: "test-secret"})
	require.NoError(t, err)
	sessions, err := iauth.NewSessionService(db, jwt, iauth.SessionConfig{})
	require.NoError(t, err)
	remember, err := iauth.NewRememberService(db, iauth.RememberConfig{})
	require.NoError(t, err)

	cleaner := NewCleaner(sessions, remember, nil,
		WithSessionSchedule("@every 1h"),
		WithTokenSchedule("@every 1h"),
	)
	require.NoError(t, cleaner.Start())

	stopCtx := cleaner.Stop()
	select {
	case <-stopCtx.Done():
	case <-time.After(time.Second):
		t.Fatal("scheduler did not stop in time")
	}
}

func TestCleanerRejectsBadSchedule(t *testing.T) {
	db := testutil.MustOpenTestDB(t)

	jwt, err := iauth.NewJWTService(iauth.JWTConfig{Secret: "test-secret"})
	require.NoError(t, err)
	sessions, err := iauth.NewSessionService(db, jwt, iauth.SessionConfig{})
	require.NoError(t, err)

	cleaner := NewCleaner(sessions, nil, nil, WithSessionSchedule("not-a-spec"))
	require.Error(t, cleaner.Start())
}
