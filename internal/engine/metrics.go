package engine

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	dto "github.com/prometheus/client_model/go"
)

// Outcome labels.
const (
	outcomeSuccess  = "success"
	outcomeFailure  = "failure"
	outcomeError    = "error"
	outcomeRejected = "rejected"
)

// Metrics holds the engine's Prometheus collectors on a private registry,
// so several engines can coexist in one process and in tests.
type Metrics struct {
	registry   *prometheus.Registry
	operations *prometheus.CounterVec
	duration   *prometheus.HistogramVec
	lastSeq    prometheus.Gauge
}

// NewMetrics creates and registers the engine collectors.
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,
		operations: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "timelock",
				Name:      "operations_total",
				Help:      "Instructions processed, by action and outcome",
			},
			[]string{"action", "outcome"},
		),
		duration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "timelock",
				Name:      "operation_duration_seconds",
				Help:      "Time to execute and record one instruction",
				Buckets:   prometheus.ExponentialBuckets(0.0005, 2, 12),
			},
			[]string{"action"},
		),
		lastSeq: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: "timelock",
				Name:      "log_seq",
				Help:      "Highest sequence number written to the operation log",
			},
		),
	}
}

// Gather returns the current metric families.
func (m *Metrics) Gather() ([]*dto.MetricFamily, error) {
	return m.registry.Gather()
}

// WriteTextfile writes the registry in the node-exporter textfile format.
func (m *Metrics) WriteTextfile(path string) error {
	return prometheus.WriteToTextfile(path, m.registry)
}

func (m *Metrics) observe(action, outcome string, started time.Time, seq int64) {
	m.operations.WithLabelValues(action, outcome).Inc()
	m.duration.WithLabelValues(action).Observe(time.Since(started).Seconds())
	if seq > 0 {
		m.lastSeq.Set(float64(seq))
	}
}
