package usecase

import (
	"context"
	"fmt"

	"github.com/whatsgood/brand-retrieval/internal/core/domain"
	"github.com/whatsgood/brand-retrieval/internal/core/ports"
	"github.com/whatsgood/brand-retrieval/internal/observability/logging"
)

const hydeMinWords = 20

// HyDEStrategy searches with the embedding of a generated hypothetical article.
type HyDEStrategy struct {
	generator ports.TextGenerator
	dense     *DenseRetriever
	cfg       StrategyConfig
	observer  RetrievalObserver
}

func NewHyDEStrategy(generator ports.TextGenerator, dense *DenseRetriever, cfg StrategyConfig, observer RetrievalObserver) *HyDEStrategy {
	return &HyDEStrategy{
		generator: generator,
		dense:     dense,
		cfg:       cfg.normalize(),
		observer:  observerOrNoop(observer),
	}
}

func (s *HyDEStrategy) Name() domain.StrategyName {
	return domain.StrategyHyDE
}

func (s *HyDEStrategy) Retrieve(ctx context.Context, brand domain.BrandContext, weights domain.CategoryWeights, limit int) []domain.ScoredCandidate {
	if limit <= 0 {
		return []domain.ScoredCandidate{}
	}
	logger := logging.FromContext(ctx).With("strategy", domain.StrategyHyDE, "brand_id", brand.BrandID)

	doc, err := generateText(ctx, s.generator, buildHyDEPrompt(brand, weights), s.cfg.GenerateTimeout)
	if err != nil {
		logger.Warn("hyde_generation_failed", "error", err)
		s.observer.ObserveStrategyFailure(domain.StrategyHyDE, "generation_error")
		return []domain.ScoredCandidate{}
	}
	if err := checkHypotheticalDocument(doc); err != nil {
		logger.Warn("hyde_low_quality_generation", "error", err)
		s.observer.ObserveStrategyFailure(domain.StrategyHyDE, "low_quality_generation")
		return []domain.ScoredCandidate{}
	}

	vector, ok := s.dense.Embed(ctx, doc)
	if !ok {
		s.observer.ObserveStrategyFailure(domain.StrategyHyDE, "embedding_error")
		return []domain.ScoredCandidate{}
	}

	hits := s.dense.SearchVector(ctx, vector, limit*2)
	out := make([]domain.ScoredCandidate, 0, len(hits))
	for _, hit := range hits {
		candidate := candidateFromHit(hit, domain.StrategyHyDE)
		candidate.CategoryWeight = weights.WeightFor(hit.Document.Category, s.cfg.FallbackWeight)
		candidate.HybridScore = hit.Similarity
		candidate.FinalScore = hit.Similarity * candidate.CategoryWeight
		out = append(out, candidate)
	}
	out = dedupeCandidates(out)
	sortByFinalScore(out)
	return trimCandidates(out, limit)
}

func checkHypotheticalDocument(doc string) error {
	if words := domain.WordCount(doc); words < hydeMinWords {
		return domain.WrapError(domain.ErrLowQualityGeneration, "check hypothetical document", fmt.Errorf("%d words, need at least %d", words, hydeMinWords))
	}
	return nil
}
