package gormlog

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

func TestShortCaller(t *testing.T) {
	require.Equal(t, "internal/platform/db/postgres.go:38", shortCaller("/home/ci/gympass/internal/platform/db/postgres.go:38"))
	require.Equal(t, "pkg/x/y.go:12", shortCaller(`C:/repo/project/pkg/x/y.go:12`))
	require.Equal(t, "a/b/c.go:1", shortCaller("/x/a/b/c.go:1"))
	require.Equal(t, "", shortCaller(""))
}

func TestTrace_LevelsAndNotFound(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	z := New(zap.New(core).Sugar(), gormlogger.Warn)
	stmt := func() (string, int64) { return "SELECT 1", 1 }

	z.Trace(context.Background(), time.Now(), stmt, nil)
	z.Trace(context.Background(), time.Now(), stmt, gorm.ErrRecordNotFound)
	require.Zero(t, logs.Len())

	z.Trace(context.Background(), time.Now(), stmt, errors.New("boom"))
	z.Trace(context.Background(), time.Now().Add(-time.Second), stmt, nil)
	require.Equal(t, 2, logs.Len())
	require.Equal(t, "gorm_trace", logs.All()[0].Message)
	require.Equal(t, "gorm_slow", logs.All()[1].Message)

	z.LogMode(gormlogger.Silent).Trace(context.Background(), time.Now(), stmt, errors.New("boom"))
	require.Equal(t, 2, logs.Len())
}
