package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestPrometheus_LabelsByRouteTemplate(t *testing.T) {
	gin.SetMode(gin.TestMode)
	reg := prometheus.NewRegistry()
	p := NewPrometheus(reg, zap.NewNop().Sugar())

	r := gin.New()
	r.Use(p.HandlerFunc())
	r.GET("/api/v1/plans/:id", func(c *gin.Context) { c.String(http.StatusOK, c.Param("id")) })

	for _, id := range []string{"standard", "premium"} {
		r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/v1/plans/"+id, nil))
	}
	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/nope", nil))

	require.Equal(t, float64(2), testutil.ToFloat64(p.reqCnt.WithLabelValues("200", "GET", "/api/v1/plans/:id")))
	require.Equal(t, float64(1), testutil.ToFloat64(p.reqCnt.WithLabelValues("404", "GET", "unmatched")))
}

func TestNewPrometheus_ReusesRegisteredCollectors(t *testing.T) {
	reg := prometheus.NewRegistry()
	a := NewPrometheus(reg, zap.NewNop().Sugar())
	b := NewPrometheus(reg, zap.NewNop().Sugar())
	require.Same(t, a.reqCnt, b.reqCnt)
}
