package logger

import (
	"testing"

	cfgpkg "github.com/fatflowers/gympass/pkg/config"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
)

func TestNew_LevelFollowsEnv(t *testing.T) {
	dev, err := New(&cfgpkg.Config{Env: cfgpkg.EnvDev})
	require.NoError(t, err)
	require.True(t, dev.Desugar().Core().Enabled(zapcore.DebugLevel))

	prod, err := New(&cfgpkg.Config{Env: cfgpkg.EnvProd})
	require.NoError(t, err)
	require.False(t, prod.Desugar().Core().Enabled(zapcore.DebugLevel))
	require.True(t, prod.Desugar().Core().Enabled(zapcore.InfoLevel))
}
