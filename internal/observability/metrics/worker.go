package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type WorkerMetrics struct {
	service  string
	registry *prometheus.Registry

	indexTotal    *prometheus.CounterVec
	indexDuration *prometheus.HistogramVec
	indexInFlight prometheus.Gauge
	notifyTotal   *prometheus.CounterVec

	*dependencyMetrics
}

func NewWorkerMetrics(service string) *WorkerMetrics {
	registry := prometheus.NewRegistry()

	indexTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "worker",
			Name:      "article_index_total",
			Help:      "Total indexed articles by status.",
		},
		[]string{"service", "status"},
	)
	indexDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "worker",
			Name:      "article_index_duration_seconds",
			Help:      "Article indexing duration in seconds by status.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"service", "status"},
	)
	indexInFlight := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "worker",
			Name:      "article_index_in_flight",
			Help:      "Number of in-flight article indexing tasks.",
			ConstLabels: prometheus.Labels{
				"service": service,
			},
		},
	)
	notifyTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "worker",
			Name:      "index_notifications_total",
			Help:      "Index-updated notifications published by status.",
		},
		[]string{"service", "status"},
	)

	registry.MustRegister(indexTotal, indexDuration, indexInFlight, notifyTotal)

	return &WorkerMetrics{
		service:           service,
		registry:          registry,
		indexTotal:        indexTotal,
		indexDuration:     indexDuration,
		indexInFlight:     indexInFlight,
		notifyTotal:       notifyTotal,
		dependencyMetrics: newDependencyMetrics(registry, service),
	}
}

func (m *WorkerMetrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *WorkerMetrics) StartArticle() {
	m.indexInFlight.Inc()
}

func (m *WorkerMetrics) FinishArticle(duration time.Duration, err error) {
	m.indexInFlight.Dec()
	status := statusOf(err)
	m.indexTotal.WithLabelValues(m.service, status).Inc()
	m.indexDuration.WithLabelValues(m.service, status).Observe(duration.Seconds())
}

func (m *WorkerMetrics) RecordNotification(err error) {
	m.notifyTotal.WithLabelValues(m.service, statusOf(err)).Inc()
}

func statusOf(err error) string {
	if err != nil {
		return "error"
	}
	return "success"
}
