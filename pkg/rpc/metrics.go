package rpc

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// MetricsConfig configures dispatcher metrics.
type MetricsConfig struct {
	// Namespace is the metrics namespace (default: "nodesync").
	Namespace string

	// Buckets are the histogram buckets for batch duration.
	// Default: prometheus.DefBuckets
	Buckets []float64

	// Registry is the Prometheus registry to use.
	// Default: prometheus.DefaultRegisterer
	Registry prometheus.Registerer
}

// MetricsOption configures dispatcher metrics.
type MetricsOption func(*MetricsConfig)

// WithNamespace sets the metrics namespace.
func WithNamespace(namespace string) MetricsOption {
	return func(c *MetricsConfig) {
		c.Namespace = namespace
	}
}

// WithBuckets sets the histogram buckets.
func WithBuckets(buckets []float64) MetricsOption {
	return func(c *MetricsConfig) {
		c.Buckets = buckets
	}
}

// WithRegistry sets the Prometheus registry.
func WithRegistry(registry prometheus.Registerer) MetricsOption {
	return func(c *MetricsConfig) {
		c.Registry = registry
	}
}

// Metrics records invocation outcomes and batch latency.
// A nil *Metrics records nothing.
type Metrics struct {
	invocations   *prometheus.CounterVec
	batches       *prometheus.CounterVec
	batchDuration prometheus.Histogram
}

// NewMetrics registers the dispatcher metrics.
func NewMetrics(opts ...MetricsOption) *Metrics {
	config := MetricsConfig{
		Namespace: "nodesync",
		Buckets:   prometheus.DefBuckets,
		Registry:  prometheus.DefaultRegisterer,
	}
	for _, opt := range opts {
		opt(&config)
	}
	factory := promauto.With(config.Registry)

	return &Metrics{
		invocations: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: config.Namespace,
			Subsystem: "rpc",
			Name:      "invocations_total",
			Help:      "Client invocations by type and outcome",
		}, []string{"type", "outcome"}),

		batches: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: config.Namespace,
			Subsystem: "rpc",
			Name:      "batches_total",
			Help:      "Invocation batches by status",
		}, []string{"status"}),

		batchDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: config.Namespace,
			Subsystem: "rpc",
			Name:      "batch_duration_seconds",
			Help:      "Time to gate and commit one batch",
			Buckets:   config.Buckets,
		}),
	}
}

// Outcome labels.
const (
	outcomeCommitted = "committed"
	outcomeDropped   = "dropped"
	outcomeRejected  = "rejected"
)

func (m *Metrics) invocation(rpcType, outcome string) {
	if m == nil {
		return
	}
	m.invocations.WithLabelValues(rpcType, outcome).Inc()
}

func (m *Metrics) batch(status string, d time.Duration) {
	if m == nil {
		return
	}
	m.batches.WithLabelValues(status).Inc()
	m.batchDuration.Observe(d.Seconds())
}
