package metrics

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

const httpSubsystem = "http"

var reqCnt = &Metric{
	ID:          "reqCnt",
	Name:        "req_total",
	Description: "How many HTTP requests processed, partitioned by status code, method and route.",
	Type:        "counter_vec",
	Args:        []string{"code", "method", "route"},
}

var reqDur = &Metric{
	ID:          "reqDur",
	Name:        "req_dur_ms",
	Description: "The HTTP request latencies in milliseconds.",
	Type:        "histogram_vec",
	Args:        []string{"code", "method", "route"},
}

var resSz = &Metric{
	ID:          "resSz",
	Name:        "resp_sz_bytes",
	Description: "The HTTP response sizes in bytes.",
	Type:        "summary_vec",
	Args:        []string{"code", "method", "route"},
}

// Prometheus records per-route request metrics and serves them on a
// separate listener so scrapes stay out of the access log.
type Prometheus struct {
	reqCnt *prometheus.CounterVec
	reqDur *prometheus.HistogramVec
	resSz  *prometheus.SummaryVec

	srv *http.Server
	log *zap.SugaredLogger
}

// NewPrometheus registers the HTTP collectors on reg. A nil reg means the
// default registry.
func NewPrometheus(reg prometheus.Registerer, log *zap.SugaredLogger) *Prometheus {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	return &Prometheus{
		reqCnt: register(reg, NewMetric(reqCnt, httpSubsystem)).(*prometheus.CounterVec),
		reqDur: register(reg, NewMetric(reqDur, httpSubsystem)).(*prometheus.HistogramVec),
		resSz:  register(reg, NewMetric(resSz, httpSubsystem)).(*prometheus.SummaryVec),
		log:    log,
	}
}

// route labels by the matched route template to bound cardinality, so
// /api/v1/plans/premium and /api/v1/plans/student share one series.
func route(c *gin.Context) string {
	if fp := c.FullPath(); fp != "" {
		return fp
	}
	return "unmatched"
}

// HandlerFunc is the gin middleware.
func (p *Prometheus) HandlerFunc() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		labels := []string{strconv.Itoa(c.Writer.Status()), c.Request.Method, route(c)}
		p.reqDur.WithLabelValues(labels...).Observe(float64(time.Since(start).Milliseconds()))
		p.reqCnt.WithLabelValues(labels...).Inc()
		if sz := c.Writer.Size(); sz > 0 {
			p.resSz.WithLabelValues(labels...).Observe(float64(sz))
		}
	}
}

// Serve exposes /metrics on addr in the background.
func (p *Prometheus) Serve(addr string, g prometheus.Gatherer) {
	if g == nil {
		g = prometheus.DefaultGatherer
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(g, promhttp.HandlerOpts{}))
	p.srv = &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		if err := p.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			p.log.Errorw("metrics server error", "addr", addr, "err", err)
		}
	}()
}

func (p *Prometheus) Shutdown(ctx context.Context) error {
	if p.srv == nil {
		return nil
	}
	return p.srv.Shutdown(ctx)
}
