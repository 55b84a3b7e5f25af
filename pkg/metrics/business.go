package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const businessSubsystem = "gym"

var checkoutSessions = &Metric{
	ID:          "checkoutSessions",
	Name:        "checkout_sessions_total",
	Description: "Checkout sessions requested, partitioned by plan and result.",
	Type:        "counter_vec",
	Args:        []string{"plan", "result"},
}

var reconcileOutcomes = &Metric{
	ID:          "reconcileOutcomes",
	Name:        "reconcile_total",
	Description: "Payment reconciliations, partitioned by outcome and trigger source.",
	Type:        "counter_vec",
	Args:        []string{"outcome", "source"},
}

var persistenceDenied = &Metric{
	ID:          "persistenceDenied",
	Name:        "reconcile_persistence_denied_total",
	Description: "Paid purchases whose entitlement write was rejected by the store.",
	Type:        "counter",
}

var (
	registerOnce sync.Once

	checkoutSessionsVec  *prometheus.CounterVec
	reconcileOutcomesVec *prometheus.CounterVec
	persistenceDeniedCnt prometheus.Counter
	businessProcessDur   *prometheus.HistogramVec
)

// RegisterBusinessMetrics creates and registers the domain collectors on
// the default registry. It is safe to call more than once.
func RegisterBusinessMetrics() {
	registerOnce.Do(func() {
		checkoutSessionsVec = NewMetric(checkoutSessions, businessSubsystem).(*prometheus.CounterVec)
		reconcileOutcomesVec = NewMetric(reconcileOutcomes, businessSubsystem).(*prometheus.CounterVec)
		persistenceDeniedCnt = NewMetric(persistenceDenied, businessSubsystem).(prometheus.Counter)
		businessProcessDur = NewMetric(MetricsBusinessProcess, businessSubsystem).(*prometheus.HistogramVec)
		for _, c := range []prometheus.Collector{checkoutSessionsVec, reconcileOutcomesVec, persistenceDeniedCnt, businessProcessDur} {
			register(prometheus.DefaultRegisterer, c)
		}
	})
}

func ObserveCheckoutSession(plan, result string) {
	RegisterBusinessMetrics()
	checkoutSessionsVec.WithLabelValues(plan, result).Inc()
}

func ObserveReconcile(outcome, source string) {
	RegisterBusinessMetrics()
	reconcileOutcomesVec.WithLabelValues(outcome, source).Inc()
}

func ObservePersistenceDenied() {
	RegisterBusinessMetrics()
	persistenceDeniedCnt.Inc()
}

// ObserveProcess records the elapsed time since start in milliseconds.
func ObserveProcess(typ, subtype string, start time.Time) {
	RegisterBusinessMetrics()
	businessProcessDur.WithLabelValues(typ, subtype).Observe(float64(time.Since(start).Milliseconds()))
}
