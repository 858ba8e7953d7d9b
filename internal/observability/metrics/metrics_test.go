package metrics

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/whatsgood/brand-retrieval/internal/core/domain"
)

func scrape(t *testing.T, h http.Handler) string {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("scrape status = %d", rec.Code)
	}
	return rec.Body.String()
}

func assertSample(t *testing.T, body, sample string) {
	t.Helper()
	if !strings.Contains(body, sample+"\n") {
		t.Fatalf("missing sample %q in scrape:\n%s", sample, body)
	}
}

func TestMiddlewareLabelsByRoutePattern(t *testing.T) {
	m := NewHTTPServerMetrics("api")
	r := chi.NewRouter()
	r.Use(m.Middleware)
	r.Get("/v1/strategies", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	})

	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/v1/strategies", nil))
	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/nope/123", nil))

	body := scrape(t, m.Handler())
	assertSample(t, body, `retrieval_http_requests_total{method="GET",path="/v1/strategies",service="api",status="418"} 1`)
	assertSample(t, body, `retrieval_http_requests_total{method="GET",path="unmatched",service="api",status="404"} 1`)
}

func TestRetrievalObserverRecordsFeedbackAndIndexSize(t *testing.T) {
	m := NewHTTPServerMetrics("api")

	m.ObserveRetrieval("blend", 4, 20*time.Millisecond)
	m.ObserveStrategyResults(domain.StrategyHyDE, 3)
	m.ObserveStrategyFailure(domain.StrategySelfQuery, "")
	m.ObserveFeedback(domain.StrategyPerformance{Strategy: domain.StrategyFewShot, SuccessRate: 0.75, Uses: 4}, true)
	m.ObserveLexicalIndexSize(12)

	body := scrape(t, m.Handler())
	assertSample(t, body, `retrieval_search_requests_total{mode="blend",service="api"} 1`)
	assertSample(t, body, `retrieval_strategy_candidates_total{service="api",strategy="hyde"} 3`)
	assertSample(t, body, `retrieval_strategy_failures_total{reason="unknown",service="api",strategy="self_query"} 1`)
	assertSample(t, body, `retrieval_feedback_outcomes_total{outcome="success",service="api",strategy="few_shot"} 1`)
	assertSample(t, body, `retrieval_strategy_success_rate{service="api",strategy="few_shot"} 0.75`)
	assertSample(t, body, `retrieval_lexical_documents{service="api"} 12`)
}

func TestDependencyMetricsTrackBreakerAndCache(t *testing.T) {
	m := NewWorkerMetrics("worker")

	m.RecordBreakerState("qdrant.search", "closed", "open")
	m.RecordBreakerState("ollama.embed", "closed", "open")
	m.RecordBreakerState("ollama.embed", "open", "half-open")
	m.RecordEmbeddingCache("hit")
	m.RecordEmbeddingCache("hit")

	body := scrape(t, m.Handler())
	assertSample(t, body, `retrieval_breaker_state{operation="qdrant.search",service="worker"} 2`)
	assertSample(t, body, `retrieval_breaker_state{operation="ollama.embed",service="worker"} 1`)
	assertSample(t, body, `retrieval_embedding_cache_lookups_total{result="hit",service="worker"} 2`)
}

func TestWorkerMetricsTrackInFlight(t *testing.T) {
	m := NewWorkerMetrics("worker")

	m.StartArticle()
	assertSample(t, scrape(t, m.Handler()), `retrieval_worker_article_index_in_flight{service="worker"} 1`)

	m.FinishArticle(time.Millisecond, errors.New("boom"))
	m.RecordNotification(nil)

	body := scrape(t, m.Handler())
	assertSample(t, body, `retrieval_worker_article_index_in_flight{service="worker"} 0`)
	assertSample(t, body, `retrieval_worker_article_index_total{service="worker",status="error"} 1`)
	assertSample(t, body, `retrieval_worker_index_notifications_total{service="worker",status="success"} 1`)
}
