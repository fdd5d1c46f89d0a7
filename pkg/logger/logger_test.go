package logger

import (
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
)

func TestInitSetsLevel(t *testing.T) {
	require.NoError(t, Init("debug"))
	require.True(t, Logger().Core().Enabled(zapcore.DebugLevel))
}

func TestInitFallsBackToInfo(t *testing.T) {
	require.NoError(t, Init("not-a-level"))
	require.False(t, Logger().Core().Enabled(zapcore.DebugLevel))
	require.True(t, Logger().Core().Enabled(zapcore.InfoLevel))
}

func TestWithModuleReturnsChild(t *testing.T) {
	require.NoError(t, Init("info"))
	child := WithModule("test")
	require.NotNil(t, child)
	require.NotSame(t, Logger(), child)
}
