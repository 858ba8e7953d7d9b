package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// dependencyMetrics tracks the outbound side shared by the api and worker:
// circuit breaker state per operation and embedding cache effectiveness.
type dependencyMetrics struct {
	service      string
	breakerState *prometheus.GaugeVec
	cacheTotal   *prometheus.CounterVec
}

func newDependencyMetrics(registry *prometheus.Registry, service string) *dependencyMetrics {
	breakerState := prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "breaker",
			Name:      "state",
			Help:      "Circuit breaker state per operation (0 closed, 1 half-open, 2 open).",
		},
		[]string{"service", "operation"},
	)
	cacheTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "embedding_cache",
			Name:      "lookups_total",
			Help:      "Embedding cache lookups by result.",
		},
		[]string{"service", "result"},
	)
	registry.MustRegister(breakerState, cacheTotal)
	return &dependencyMetrics{service: service, breakerState: breakerState, cacheTotal: cacheTotal}
}

// RecordBreakerState has the resilience.StateListener signature.
func (m *dependencyMetrics) RecordBreakerState(operation, _ string, to string) {
	var value float64
	switch to {
	case "half-open":
		value = 1
	case "open":
		value = 2
	}
	m.breakerState.WithLabelValues(m.service, operation).Set(value)
}

func (m *dependencyMetrics) RecordEmbeddingCache(result string) {
	m.cacheTotal.WithLabelValues(m.service, result).Inc()
}
