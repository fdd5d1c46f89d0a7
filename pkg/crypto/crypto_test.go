package crypto

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestHashAndVerifyPassword(t *testing.T) {
	hash, err := HashPassword("Test123!", 4)
	require.NoError(t, err)
	require.NotEqual(t, "Test123!", hash)

	require.True(t, VerifyPassword(hash, "Test123!"))
	require.False(t, VerifyPassword(hash, "test123!"))
	require.False(t, VerifyPassword("", "Test123!"))
}

func TestGenerateTokenLength(t *testing.T) {
	token, err := GenerateToken(DefaultTokenBytes)
	require.NoError(t, err)
	require.Len(t, token, TokenChars)
}

func TestGenerateTokenUnique(t *testing.T) {
	seen := make(map[string]struct{})
	for i := 0; i < 64; i++ {
		token, err := GenerateToken(DefaultTokenBytes)
		require.NoError(t, err)
		_, dup := seen[token]
		require.False(t, dup)
		seen[token] = struct{}{}
	}
}

func TestGenerateTokenDefaultsLength(t *testing.T) {
	token, err := GenerateToken(0)
	require.NoError(t, err)
	require.Len(t, token, TokenChars)
}
