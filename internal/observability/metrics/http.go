package metrics

import (
	"bufio"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/whatsgood/brand-retrieval/internal/core/domain"
	"github.com/whatsgood/brand-retrieval/internal/core/usecase"
)

const namespace = "retrieval"

type HTTPServerMetrics struct {
	service  string
	registry *prometheus.Registry

	requestTotal    *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	requestInFlight prometheus.Gauge

	retrievalTotal    *prometheus.CounterVec
	retrievalResults  *prometheus.HistogramVec
	retrievalDuration *prometheus.HistogramVec
	strategyResults   *prometheus.CounterVec
	strategyFailures  *prometheus.CounterVec
	feedbackTotal     *prometheus.CounterVec
	strategySuccess   *prometheus.GaugeVec
	lexicalDocuments  prometheus.Gauge

	*dependencyMetrics
}

var _ usecase.RetrievalObserver = (*HTTPServerMetrics)(nil)

func NewHTTPServerMetrics(service string) *HTTPServerMetrics {
	registry := prometheus.NewRegistry()
	serviceLabel := prometheus.Labels{"service": service}

	requestTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total HTTP requests processed.",
		},
		[]string{"service", "method", "path", "status"},
	)
	requestDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"service", "method", "path"},
	)
	requestInFlight := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace:   namespace,
			Subsystem:   "http",
			Name:        "in_flight_requests",
			Help:        "Number of in-flight HTTP requests.",
			ConstLabels: serviceLabel,
		},
	)
	retrievalTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "search",
			Name:      "requests_total",
			Help:      "Total completed retrievals by mode.",
		},
		[]string{"service", "mode"},
	)
	retrievalResults := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "search",
			Name:      "results",
			Help:      "Distribution of ranked candidates per retrieval.",
			Buckets:   []float64{0, 1, 2, 3, 5, 10, 20, 50, 100},
		},
		[]string{"service", "mode"},
	)
	retrievalDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "search",
			Name:      "duration_seconds",
			Help:      "Retrieval duration in seconds by mode.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"service", "mode"},
	)
	strategyResults := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "strategy",
			Name:      "candidates_total",
			Help:      "Total candidates produced per strategy.",
		},
		[]string{"service", "strategy"},
	)
	strategyFailures := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "strategy",
			Name:      "failures_total",
			Help:      "Strategy runs that degraded to an empty result, by reason.",
		},
		[]string{"service", "strategy", "reason"},
	)
	feedbackTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "feedback",
			Name:      "outcomes_total",
			Help:      "Feedback outcomes recorded per strategy.",
		},
		[]string{"service", "strategy", "outcome"},
	)
	strategySuccess := prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "strategy",
			Name:      "success_rate",
			Help:      "Current learned success rate per strategy.",
		},
		[]string{"service", "strategy"},
	)
	lexicalDocuments := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace:   namespace,
			Subsystem:   "lexical",
			Name:        "documents",
			Help:        "Documents in the active lexical index.",
			ConstLabels: serviceLabel,
		},
	)

	registry.MustRegister(
		requestTotal,
		requestDuration,
		requestInFlight,
		retrievalTotal,
		retrievalResults,
		retrievalDuration,
		strategyResults,
		strategyFailures,
		feedbackTotal,
		strategySuccess,
		lexicalDocuments,
	)

	return &HTTPServerMetrics{
		service:           service,
		registry:          registry,
		requestTotal:      requestTotal,
		requestDuration:   requestDuration,
		requestInFlight:   requestInFlight,
		retrievalTotal:    retrievalTotal,
		retrievalResults:  retrievalResults,
		retrievalDuration: retrievalDuration,
		strategyResults:   strategyResults,
		strategyFailures:  strategyFailures,
		feedbackTotal:     feedbackTotal,
		strategySuccess:   strategySuccess,
		lexicalDocuments:  lexicalDocuments,
		dependencyMetrics: newDependencyMetrics(registry, service),
	}
}

func (m *HTTPServerMetrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *HTTPServerMetrics) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		recorder := &statusRecorder{
			ResponseWriter: w,
			statusCode:     http.StatusOK,
		}

		m.requestInFlight.Inc()
		defer m.requestInFlight.Dec()

		next.ServeHTTP(recorder, r)

		path := routePattern(r)
		m.requestTotal.WithLabelValues(
			m.service,
			r.Method,
			path,
			strconv.Itoa(recorder.statusCode),
		).Inc()
		m.requestDuration.WithLabelValues(m.service, r.Method, path).Observe(time.Since(start).Seconds())
	})
}

// routePattern keeps label cardinality bounded to the registered routes.
func routePattern(r *http.Request) string {
	if rctx := chi.RouteContext(r.Context()); rctx != nil {
		if pattern := rctx.RoutePattern(); pattern != "" {
			return pattern
		}
	}
	return "unmatched"
}

func (m *HTTPServerMetrics) ObserveRetrieval(mode string, results int, duration time.Duration) {
	if mode == "" {
		mode = "unknown"
	}
	m.retrievalTotal.WithLabelValues(m.service, mode).Inc()
	m.retrievalResults.WithLabelValues(m.service, mode).Observe(float64(results))
	m.retrievalDuration.WithLabelValues(m.service, mode).Observe(duration.Seconds())
}

func (m *HTTPServerMetrics) ObserveStrategyResults(strategy domain.StrategyName, results int) {
	if results <= 0 {
		return
	}
	m.strategyResults.WithLabelValues(m.service, string(strategy)).Add(float64(results))
}

func (m *HTTPServerMetrics) ObserveStrategyFailure(strategy domain.StrategyName, reason string) {
	if reason == "" {
		reason = "unknown"
	}
	m.strategyFailures.WithLabelValues(m.service, string(strategy), reason).Inc()
}

func (m *HTTPServerMetrics) ObserveFeedback(perf domain.StrategyPerformance, success bool) {
	outcome := "failure"
	if success {
		outcome = "success"
	}
	m.feedbackTotal.WithLabelValues(m.service, string(perf.Strategy), outcome).Inc()
	m.strategySuccess.WithLabelValues(m.service, string(perf.Strategy)).Set(perf.SuccessRate)
}

func (m *HTTPServerMetrics) ObserveLexicalIndexSize(docs int) {
	m.lexicalDocuments.Set(float64(docs))
}

type statusRecorder struct {
	http.ResponseWriter
	statusCode int
}

func (w *statusRecorder) WriteHeader(statusCode int) {
	w.statusCode = statusCode
	w.ResponseWriter.WriteHeader(statusCode)
}

func (w *statusRecorder) Flush() {
	flusher, ok := w.ResponseWriter.(http.Flusher)
	if ok {
		flusher.Flush()
	}
}

func (w *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	hijacker, ok := w.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, fmt.Errorf("response writer does not implement http.Hijacker")
	}
	return hijacker.Hijack()
}
