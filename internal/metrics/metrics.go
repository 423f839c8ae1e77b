// Package metrics exposes Prometheus collectors for permission resolution and mutations.
package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Result labels.
const (
	ResultOK       = "ok"
	ResultDenied   = "denied"
	ResultInvalid  = "invalid"
	ResultNotFound = "not_found"
	ResultError    = "error"
)

// Metrics holds the engine collectors.
type Metrics struct {
	operations *prometheus.CounterVec
	duration   *prometheus.HistogramVec
	locks      prometheus.Gauge
}

var (
	defaultOnce    sync.Once
	defaultMetrics *Metrics
)

// New registers the engine metrics against registerer. When registerer is nil the default
// Prometheus registerer is used.
func New(registerer prometheus.Registerer) *Metrics {
	if registerer == nil {
		defaultOnce.Do(func() {
			defaultMetrics = build(prometheus.DefaultRegisterer)
		})

		return defaultMetrics
	}

	return build(registerer)
}

func build(registerer prometheus.Registerer) *Metrics {
	operations := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "permengine_operations_total",
		Help: "Engine operations partitioned by operation and result.",
	}, []string{"op", "result"})
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "permengine_operation_duration_seconds",
		Help:    "Duration in seconds of engine operations, lock wait included.",
		Buckets: prometheus.DefBuckets,
	}, []string{"op"})
	locks := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "permengine_guild_locks",
		Help: "Guild locks currently held or awaited.",
	})
	registerer.MustRegister(operations, duration, locks)

	return &Metrics{operations: operations, duration: duration, locks: locks}
}

// Tracker records one operation.
type Tracker struct {
	metrics *Metrics
	op      string
	start   time.Time
}

// Track starts timing op.
func (m *Metrics) Track(op string) *Tracker {
	return &Tracker{metrics: m, op: op, start: time.Now()}
}

// End records the result and the elapsed time.
func (t *Tracker) End(result string) {
	if t == nil || t.metrics == nil {
		return
	}

	t.metrics.operations.WithLabelValues(t.op, result).Inc()
	t.metrics.duration.WithLabelValues(t.op).Observe(time.Since(t.start).Seconds())
}

// SetLocks reports the size of the guild lock table.
func (m *Metrics) SetLocks(n int) {
	if m == nil {
		return
	}

	m.locks.Set(float64(n))
}
