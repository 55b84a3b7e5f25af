package redis

import (
	"context"
	"testing"

	cfgpkg "github.com/fatflowers/gympass/pkg/config"
	"github.com/stretchr/testify/require"
	"go.uber.org/fx/fxtest"
	"go.uber.org/zap"
)

func TestNewClient_DisabledWithoutAddr(t *testing.T) {
	lc := fxtest.NewLifecycle(t)
	require.Nil(t, NewClient(lc, &cfgpkg.Config{}, zap.NewNop().Sugar()))
}

func TestNewClient_UnreachableIsNotFatal(t *testing.T) {
	lc := fxtest.NewLifecycle(t)
	cfg := &cfgpkg.Config{Redis: cfgpkg.RedisConfig{Addr: "127.0.0.1:1"}}
	rdb := NewClient(lc, cfg, zap.NewNop().Sugar())
	require.NotNil(t, rdb)
	require.NoError(t, lc.Start(context.Background()))
	require.NoError(t, lc.Stop(context.Background()))
}
