package httpadapter

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/whatsgood/brand-retrieval/internal/core/domain"
	"github.com/whatsgood/brand-retrieval/internal/core/ports"
	"github.com/whatsgood/brand-retrieval/internal/observability/logging"
)

const (
	defaultLimit   = 10
	maxLimit       = 100
	maxBodyBytes   = 1 << 20
	defaultOverrun = 2 * time.Second
)

// ArticlePublisher queues an article for asynchronous indexing.
type ArticlePublisher interface {
	PublishArticleReady(ctx context.Context, articleID string) error
}

type Options struct {
	RateLimitRPS   float64
	RateLimitBurst int
	// MaxInFlight bounds concurrent retrieval requests; zero disables the gate.
	MaxInFlight     int
	OverloadTimeout time.Duration

	Middleware     []func(http.Handler) http.Handler
	MetricsHandler http.Handler
}

type Router struct {
	retriever ports.ArticleRetriever
	feedback  ports.FeedbackReceiver
	reporter  ports.StrategyReporter
	publisher ArticlePublisher
	opts      Options
}

func NewRouter(
	retriever ports.ArticleRetriever,
	feedback ports.FeedbackReceiver,
	reporter ports.StrategyReporter,
	publisher ArticlePublisher,
	opts Options,
) *Router {
	if opts.OverloadTimeout <= 0 {
		opts.OverloadTimeout = defaultOverrun
	}
	return &Router{
		retriever: retriever,
		feedback:  feedback,
		reporter:  reporter,
		publisher: publisher,
		opts:      opts,
	}
}

func (rt *Router) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(requestIDMiddleware)
	r.Use(loggerMiddleware)
	r.Use(accessLogMiddleware)
	for _, mw := range rt.opts.Middleware {
		r.Use(mw)
	}

	r.Get("/healthz", rt.healthz)
	if rt.opts.MetricsHandler != nil {
		r.Method(http.MethodGet, "/metrics", rt.opts.MetricsHandler)
	}

	r.Route("/v1", func(r chi.Router) {
		if rt.opts.RateLimitRPS > 0 {
			r.Use(rateLimitMiddleware(rt.opts.RateLimitRPS, rt.opts.RateLimitBurst))
		}
		r.Group(func(r chi.Router) {
			if rt.opts.MaxInFlight > 0 {
				r.Use(func(next http.Handler) http.Handler {
					return backpressureMiddleware(next, rt.opts.MaxInFlight, rt.opts.OverloadTimeout)
				})
			}
			r.Post("/retrieve", rt.retrieveBlend)
			r.Post("/retrieve/adaptive", rt.retrieveAdaptive)
			r.Post("/search/hybrid", rt.searchHybrid)
		})
		r.Post("/feedback", rt.submitFeedback)
		r.Get("/strategies", rt.listStrategies)
		r.Post("/index/rebuild", rt.rebuildIndex)
		r.Post("/articles/{articleID}/index", rt.queueArticle)
	})
	return r
}

func (rt *Router) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type retrieveRequest struct {
	Brand           domain.BrandContext    `json:"brand"`
	CategoryWeights domain.CategoryWeights `json:"category_weights"`
	Limit           *int                   `json:"limit"`
}

func (req retrieveRequest) toPort() (ports.RetrievalRequest, error) {
	limit, err := resolveLimit(req.Limit)
	if err != nil {
		return ports.RetrievalRequest{}, err
	}
	if strings.TrimSpace(req.Brand.Description()) == "" {
		return ports.RetrievalRequest{}, domain.WrapError(domain.ErrInvalidInput, "decode retrieval request", errors.New("brand industry, values or audience is required"))
	}
	return ports.RetrievalRequest{Brand: req.Brand, Weights: req.CategoryWeights, Limit: limit}, nil
}

func (rt *Router) retrieveBlend(w http.ResponseWriter, r *http.Request) {
	rt.retrieve(w, r, rt.retriever.Blend)
}

func (rt *Router) retrieveAdaptive(w http.ResponseWriter, r *http.Request) {
	rt.retrieve(w, r, rt.retriever.Adaptive)
}

func (rt *Router) retrieve(
	w http.ResponseWriter,
	r *http.Request,
	run func(context.Context, ports.RetrievalRequest) (*domain.RetrievalResult, error),
) {
	var body retrieveRequest
	if err := decodeJSON(w, r, &body); err != nil {
		writeError(w, r, err)
		return
	}
	req, err := body.toPort()
	if err != nil {
		writeError(w, r, err)
		return
	}
	result, err := run(r.Context(), req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

type hybridRequest struct {
	Query           string                 `json:"query"`
	CategoryWeights domain.CategoryWeights `json:"category_weights"`
	Limit           *int                   `json:"limit"`
	VectorWeight    *float64               `json:"vector_weight"`
	KeywordWeight   *float64               `json:"keyword_weight"`
}

func (rt *Router) searchHybrid(w http.ResponseWriter, r *http.Request) {
	var body hybridRequest
	if err := decodeJSON(w, r, &body); err != nil {
		writeError(w, r, err)
		return
	}
	limit, err := resolveLimit(body.Limit)
	if err != nil {
		writeError(w, r, err)
		return
	}
	req := ports.HybridRequest{Query: body.Query, Weights: body.CategoryWeights, Limit: limit}
	switch {
	case body.VectorWeight != nil && body.KeywordWeight != nil:
		hw := domain.HybridWeights{Vector: *body.VectorWeight, Keyword: *body.KeywordWeight}
		if err := hw.Validate(); err != nil {
			writeError(w, r, err)
			return
		}
		req.Hybrid = &hw
	case body.VectorWeight != nil || body.KeywordWeight != nil:
		writeError(w, r, domain.WrapError(domain.ErrInvalidInput, "decode hybrid request", errors.New("vector_weight and keyword_weight must be set together")))
		return
	}

	result, err := rt.retriever.Hybrid(r.Context(), req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

type feedbackRequest struct {
	BrandDescription string                   `json:"brand_description"`
	Results          []domain.ScoredCandidate `json:"results"`
	RelevantIDs      []string                 `json:"relevant_ids"`
}

func (rt *Router) submitFeedback(w http.ResponseWriter, r *http.Request) {
	var body feedbackRequest
	if err := decodeJSON(w, r, &body); err != nil {
		writeError(w, r, err)
		return
	}
	outcome, err := rt.feedback.Submit(r.Context(), ports.FeedbackInput{
		BrandDescription: body.BrandDescription,
		Results:          body.Results,
		RelevantIDs:      body.RelevantIDs,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, outcome)
}

func (rt *Router) listStrategies(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"strategies": rt.reporter.Performance()})
}

func (rt *Router) rebuildIndex(w http.ResponseWriter, r *http.Request) {
	n, err := rt.retriever.RebuildLexicalIndex(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"documents": n})
}

func (rt *Router) queueArticle(w http.ResponseWriter, r *http.Request) {
	articleID := strings.TrimSpace(chi.URLParam(r, "articleID"))
	if articleID == "" {
		writeError(w, r, domain.WrapError(domain.ErrInvalidInput, "queue article", errors.New("article id is required")))
		return
	}
	if rt.publisher == nil {
		writeError(w, r, domain.WrapError(domain.ErrTemporary, "queue article", errors.New("indexing queue is not configured")))
		return
	}
	if err := rt.publisher.PublishArticleReady(r.Context(), articleID); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"article_id": articleID, "status": "queued"})
}

func resolveLimit(limit *int) (int, error) {
	if limit == nil {
		return defaultLimit, nil
	}
	if *limit < 0 || *limit > maxLimit {
		return 0, domain.WrapError(domain.ErrInvalidInput, "decode request", fmt.Errorf("limit must be within [0,%d], got %d", maxLimit, *limit))
	}
	return *limit, nil
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return domain.WrapError(domain.ErrInvalidInput, "decode request", fmt.Errorf("invalid json: %w", err))
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := mapErrorToHTTPStatus(err)
	if status >= http.StatusInternalServerError {
		logging.FromContext(r.Context()).Error("request_failed", "path", r.URL.Path, "error", err)
	}
	writeJSON(w, status, map[string]string{"error": err.Error()})
}
