package logctx

import (
	"context"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestFromCtx_PrefersAttachedLogger(t *testing.T) {
	base := zap.NewNop().Sugar()
	attached := zap.NewExample().Sugar()

	ctx := context.WithValue(context.Background(), KeyLogger, attached)
	require.Same(t, attached, FromCtx(ctx, base))
	require.Same(t, base, FromCtx(context.Background(), base))
}

func TestFromGin_UsesGinKey(t *testing.T) {
	gin.SetMode(gin.TestMode)
	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	c.Request = httptest.NewRequest("GET", "/", nil)

	base := zap.NewNop().Sugar()
	require.Same(t, base, FromGin(c, base))

	attached := zap.NewExample().Sugar()
	c.Set(KeyLogger, attached)
	require.Same(t, attached, FromGin(c, base))
}

func TestDetach_KeepsValuesDropsCancel(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.WithValue(context.Background(), KeyTraceID, "t-1"), time.Millisecond)
	defer cancel()

	d := Detach(ctx)
	<-ctx.Done()
	require.NoError(t, d.Err())
	require.Equal(t, "t-1", TraceID(d))
}
