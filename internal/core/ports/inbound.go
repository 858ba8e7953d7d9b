package ports

import (
	"context"

	"github.com/whatsgood/brand-retrieval/internal/core/domain"
)

type RetrievalRequest struct {
	Brand   domain.BrandContext
	Weights domain.CategoryWeights
	Limit   int
}

type HybridRequest struct {
	Query   string
	Weights domain.CategoryWeights
	Limit   int
	Hybrid  *domain.HybridWeights
}

type FeedbackInput struct {
	BrandDescription string
	Results          []domain.ScoredCandidate
	RelevantIDs      []string
}

type FeedbackOutcome struct {
	SuccessFraction  float64                         `json:"success_fraction"`
	StrategyOutcomes map[domain.StrategyName]float64 `json:"strategy_outcomes"`
	ExamplesAdded    int                             `json:"examples_added"`
	HybridWeights    domain.HybridWeights            `json:"hybrid_weights"`
}

type IndexReport struct {
	Indexed int `json:"indexed"`
	Skipped int `json:"skipped"`
	Failed  int `json:"failed"`
}

type ArticleRetriever interface {
	Blend(ctx context.Context, req RetrievalRequest) (*domain.RetrievalResult, error)
	Adaptive(ctx context.Context, req RetrievalRequest) (*domain.RetrievalResult, error)
	Hybrid(ctx context.Context, req HybridRequest) (*domain.RetrievalResult, error)
	RebuildLexicalIndex(ctx context.Context) (int, error)
}

type FeedbackReceiver interface {
	Submit(ctx context.Context, input FeedbackInput) (*FeedbackOutcome, error)
}

type StrategyReporter interface {
	Performance() []domain.StrategyPerformance
}

type ArticleIndexer interface {
	IndexByID(ctx context.Context, articleID string) error
	Reindex(ctx context.Context) (IndexReport, error)
}
