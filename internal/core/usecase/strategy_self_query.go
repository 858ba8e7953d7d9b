package usecase

import (
	"context"

	"github.com/whatsgood/brand-retrieval/internal/core/domain"
	"github.com/whatsgood/brand-retrieval/internal/core/ports"
	"github.com/whatsgood/brand-retrieval/internal/observability/logging"
)

const (
	selfQueryMaxWords = 50
	selfQueryFetch    = 3
)

// SelfQueryStrategy asks the generator for a short search phrase and ranks the
// dense results purely by category weight.
type SelfQueryStrategy struct {
	generator ports.TextGenerator
	dense     *DenseRetriever
	cfg       StrategyConfig
	observer  RetrievalObserver
}

func NewSelfQueryStrategy(generator ports.TextGenerator, dense *DenseRetriever, cfg StrategyConfig, observer RetrievalObserver) *SelfQueryStrategy {
	return &SelfQueryStrategy{
		generator: generator,
		dense:     dense,
		cfg:       cfg.normalize(),
		observer:  observerOrNoop(observer),
	}
}

func (s *SelfQueryStrategy) Name() domain.StrategyName {
	return domain.StrategySelfQuery
}

func (s *SelfQueryStrategy) Retrieve(ctx context.Context, brand domain.BrandContext, weights domain.CategoryWeights, limit int) []domain.ScoredCandidate {
	if limit <= 0 {
		return []domain.ScoredCandidate{}
	}
	logger := logging.FromContext(ctx).With("strategy", domain.StrategySelfQuery, "brand_id", brand.BrandID)

	generated, err := generateText(ctx, s.generator, buildSelfQueryPrompt(brand, weights), s.cfg.GenerateTimeout)
	if err != nil {
		logger.Warn("self_query_generation_failed", "error", err)
		s.observer.ObserveStrategyFailure(domain.StrategySelfQuery, "generation_error")
		return []domain.ScoredCandidate{}
	}
	phrase := firstWords(generated, selfQueryMaxWords)
	if phrase == "" {
		logger.Warn("self_query_generation_failed", "error", "empty phrase")
		s.observer.ObserveStrategyFailure(domain.StrategySelfQuery, "empty_generation")
		return []domain.ScoredCandidate{}
	}

	hits := s.dense.SearchText(ctx, phrase, limit*selfQueryFetch)
	out := make([]domain.ScoredCandidate, 0, len(hits))
	for _, hit := range hits {
		candidate := candidateFromHit(hit, domain.StrategySelfQuery)
		candidate.CategoryWeight = weights.WeightFor(hit.Document.Category, s.cfg.FallbackWeight)
		candidate.HybridScore = hit.Similarity
		candidate.FinalScore = candidate.CategoryWeight
		out = append(out, candidate)
	}
	out = dedupeCandidates(out)
	sortByFinalScore(out)
	return trimCandidates(out, limit)
}
