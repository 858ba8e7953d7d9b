package httpadapter

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/whatsgood/brand-retrieval/internal/core/domain"
	"github.com/whatsgood/brand-retrieval/internal/core/ports"
)

type retrieverFake struct {
	lastRetrieval ports.RetrievalRequest
	lastHybrid    ports.HybridRequest
	err           error
	rebuilt       int
}

func (f *retrieverFake) Blend(_ context.Context, req ports.RetrievalRequest) (*domain.RetrievalResult, error) {
	f.lastRetrieval = req
	if f.err != nil {
		return nil, f.err
	}
	return &domain.RetrievalResult{
		Mode:       "blend",
		Candidates: []domain.ScoredCandidate{{ArticleID: "a1", Category: "technology", FinalScore: 0.9, SourceStrategy: domain.StrategyHyDE}},
		Articles:   []domain.RankedArticle{{Article: domain.Article{ArticleID: "a1", Title: "Chips"}, Score: 0.9, Strategy: domain.StrategyHyDE}},
	}, nil
}

func (f *retrieverFake) Adaptive(_ context.Context, req ports.RetrievalRequest) (*domain.RetrievalResult, error) {
	f.lastRetrieval = req
	if f.err != nil {
		return nil, f.err
	}
	return &domain.RetrievalResult{Mode: "adaptive", Strategy: domain.StrategySelfQuery, Candidates: []domain.ScoredCandidate{}, Articles: []domain.RankedArticle{}}, nil
}

func (f *retrieverFake) Hybrid(_ context.Context, req ports.HybridRequest) (*domain.RetrievalResult, error) {
	f.lastHybrid = req
	if f.err != nil {
		return nil, f.err
	}
	return &domain.RetrievalResult{Mode: "hybrid", Strategy: domain.StrategyHybrid, Candidates: []domain.ScoredCandidate{}, Articles: []domain.RankedArticle{}}, nil
}

func (f *retrieverFake) RebuildLexicalIndex(context.Context) (int, error) {
	if f.err != nil {
		return 0, f.err
	}
	return f.rebuilt, nil
}

type feedbackFake struct {
	last ports.FeedbackInput
	err  error
}

func (f *feedbackFake) Submit(_ context.Context, input ports.FeedbackInput) (*ports.FeedbackOutcome, error) {
	f.last = input
	if f.err != nil {
		return nil, f.err
	}
	return &ports.FeedbackOutcome{SuccessFraction: 1, HybridWeights: domain.DefaultHybridWeights()}, nil
}

func (f *feedbackFake) Performance() []domain.StrategyPerformance {
	return []domain.StrategyPerformance{domain.NewStrategyPerformance(domain.StrategyHyDE)}
}

type publisherFake struct {
	ids []string
	err error
}

func (p *publisherFake) PublishArticleReady(_ context.Context, articleID string) error {
	if p.err != nil {
		return p.err
	}
	p.ids = append(p.ids, articleID)
	return nil
}

func newTestRouter(retriever *retrieverFake, feedback *feedbackFake, publisher ArticlePublisher, opts Options) http.Handler {
	return NewRouter(retriever, feedback, feedback, publisher, opts).Handler()
}

func doJSON(t *testing.T, h http.Handler, method, path string, payload any) *httptest.ResponseRecorder {
	t.Helper()
	var body bytes.Buffer
	if payload != nil {
		if err := json.NewEncoder(&body).Encode(payload); err != nil {
			t.Fatalf("encode payload: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &body)
	req.Header.Set("Content-Type", "application/json")
	res := httptest.NewRecorder()
	h.ServeHTTP(res, req)
	return res
}

func TestRetrieveBlendPassesBrandAndDefaultLimit(t *testing.T) {
	retriever := &retrieverFake{}
	h := newTestRouter(retriever, &feedbackFake{}, nil, Options{})

	res := doJSON(t, h, http.MethodPost, "/v1/retrieve", map[string]any{
		"brand":            map[string]string{"industry": "fintech", "values": "trust", "audience": "smb owners"},
		"category_weights": map[string]float64{"finance": 0.9},
	})
	if res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", res.Code, res.Body.String())
	}
	if retriever.lastRetrieval.Limit != defaultLimit {
		t.Fatalf("expected default limit %d, got %d", defaultLimit, retriever.lastRetrieval.Limit)
	}
	if retriever.lastRetrieval.Weights["finance"] != 0.9 || retriever.lastRetrieval.Brand.Industry != "fintech" {
		t.Fatalf("unexpected request: %+v", retriever.lastRetrieval)
	}

	var result domain.RetrievalResult
	if err := json.NewDecoder(res.Body).Decode(&result); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(result.Articles) != 1 || result.Articles[0].Article.ArticleID != "a1" {
		t.Fatalf("unexpected articles: %+v", result.Articles)
	}
	if res.Header().Get(requestIDHeader) == "" {
		t.Fatal("expected request id header")
	}
}

func TestRetrieveRejectsEmptyBrand(t *testing.T) {
	h := newTestRouter(&retrieverFake{}, &feedbackFake{}, nil, Options{})

	res := doJSON(t, h, http.MethodPost, "/v1/retrieve/adaptive", map[string]any{"brand": map[string]string{}})
	if res.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", res.Code)
	}
}

func TestRetrieveRejectsLimitOutOfRange(t *testing.T) {
	h := newTestRouter(&retrieverFake{}, &feedbackFake{}, nil, Options{})

	res := doJSON(t, h, http.MethodPost, "/v1/retrieve", map[string]any{
		"brand": map[string]string{"industry": "retail"},
		"limit": 1000,
	})
	if res.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", res.Code)
	}
}

func TestRetrieveMapsDomainInvalidInputTo400(t *testing.T) {
	retriever := &retrieverFake{err: domain.WrapError(domain.ErrInvalidInput, "validate category weights", errors.New("unknown category"))}
	h := newTestRouter(retriever, &feedbackFake{}, nil, Options{})

	res := doJSON(t, h, http.MethodPost, "/v1/retrieve/adaptive", map[string]any{
		"brand":            map[string]string{"industry": "retail"},
		"category_weights": map[string]float64{"gardening": 0.5},
	})
	if res.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", res.Code)
	}
}

func TestInvalidJSONReturns400(t *testing.T) {
	h := newTestRouter(&retrieverFake{}, &feedbackFake{}, nil, Options{})

	req := httptest.NewRequest(http.MethodPost, "/v1/search/hybrid", bytes.NewBufferString("{"))
	res := httptest.NewRecorder()
	h.ServeHTTP(res, req)
	if res.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", res.Code)
	}
}

func TestHybridSearchRequiresBothWeights(t *testing.T) {
	retriever := &retrieverFake{}
	h := newTestRouter(retriever, &feedbackFake{}, nil, Options{})

	res := doJSON(t, h, http.MethodPost, "/v1/search/hybrid", map[string]any{"query": "ai chips", "vector_weight": 0.5})
	if res.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for lone weight, got %d", res.Code)
	}

	res = doJSON(t, h, http.MethodPost, "/v1/search/hybrid", map[string]any{
		"query": "ai chips", "vector_weight": 0.4, "keyword_weight": 0.6, "limit": 5,
	})
	if res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", res.Code, res.Body.String())
	}
	if retriever.lastHybrid.Hybrid == nil || retriever.lastHybrid.Hybrid.Keyword != 0.6 || retriever.lastHybrid.Limit != 5 {
		t.Fatalf("unexpected hybrid request: %+v", retriever.lastHybrid)
	}
}

func TestHybridSearchWithoutWeightsUsesLearned(t *testing.T) {
	retriever := &retrieverFake{}
	h := newTestRouter(retriever, &feedbackFake{}, nil, Options{})

	res := doJSON(t, h, http.MethodPost, "/v1/search/hybrid", map[string]any{"query": "ai chips"})
	if res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", res.Code)
	}
	if retriever.lastHybrid.Hybrid != nil {
		t.Fatalf("expected no explicit weights, got %+v", retriever.lastHybrid.Hybrid)
	}
}

func TestFeedbackForwardsResults(t *testing.T) {
	feedback := &feedbackFake{}
	h := newTestRouter(&retrieverFake{}, feedback, nil, Options{})

	res := doJSON(t, h, http.MethodPost, "/v1/feedback", map[string]any{
		"brand_description": "fintech trust",
		"results":           []map[string]any{{"article_id": "a1", "category": "finance", "source_strategy": "hyde"}},
		"relevant_ids":      []string{"a1"},
	})
	if res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", res.Code, res.Body.String())
	}
	if len(feedback.last.Results) != 1 || feedback.last.Results[0].SourceStrategy != domain.StrategyHyDE {
		t.Fatalf("unexpected feedback input: %+v", feedback.last)
	}
}

func TestStrategiesListsPerformance(t *testing.T) {
	h := newTestRouter(&retrieverFake{}, &feedbackFake{}, nil, Options{})

	res := doJSON(t, h, http.MethodGet, "/v1/strategies", nil)
	if res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", res.Code)
	}
	var body struct {
		Strategies []domain.StrategyPerformance `json:"strategies"`
	}
	if err := json.NewDecoder(res.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(body.Strategies) != 1 || body.Strategies[0].SuccessRate != domain.InitialSuccessRate {
		t.Fatalf("unexpected strategies: %+v", body.Strategies)
	}
}

func TestRebuildIndexMapsTemporaryTo503(t *testing.T) {
	retriever := &retrieverFake{err: domain.WrapError(domain.ErrUpstreamUnavailable, "snapshot", errors.New("qdrant down"))}
	h := newTestRouter(retriever, &feedbackFake{}, nil, Options{})

	res := doJSON(t, h, http.MethodPost, "/v1/index/rebuild", nil)
	if res.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", res.Code)
	}
}

func TestQueueArticlePublishes(t *testing.T) {
	publisher := &publisherFake{}
	h := newTestRouter(&retrieverFake{}, &feedbackFake{}, publisher, Options{})

	res := doJSON(t, h, http.MethodPost, "/v1/articles/a-42/index", nil)
	if res.Code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d", res.Code)
	}
	if len(publisher.ids) != 1 || publisher.ids[0] != "a-42" {
		t.Fatalf("unexpected published ids: %v", publisher.ids)
	}
}

func TestQueueArticleWithoutPublisherReturns503(t *testing.T) {
	h := newTestRouter(&retrieverFake{}, &feedbackFake{}, nil, Options{})

	res := doJSON(t, h, http.MethodPost, "/v1/articles/a-42/index", nil)
	if res.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", res.Code)
	}
}

func TestMetricsRouteMountedWhenConfigured(t *testing.T) {
	metrics := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("# metrics"))
	})
	h := newTestRouter(&retrieverFake{}, &feedbackFake{}, nil, Options{MetricsHandler: metrics})

	res := doJSON(t, h, http.MethodGet, "/metrics", nil)
	if res.Code != http.StatusOK || res.Body.String() != "# metrics" {
		t.Fatalf("unexpected metrics response %d %q", res.Code, res.Body.String())
	}
}
