package usecase

import (
	"context"

	"github.com/whatsgood/brand-retrieval/internal/core/domain"
	"github.com/whatsgood/brand-retrieval/internal/core/ports"
	"github.com/whatsgood/brand-retrieval/internal/observability/logging"
)

const (
	fewShotPromptExamples = 3
	fewShotFetch          = 3
)

// FewShotStrategy prompts with previously confirmed matches and scores
// candidates by how closely they resemble stored examples.
type FewShotStrategy struct {
	generator ports.TextGenerator
	dense     *DenseRetriever
	state     *LearningState
	cfg       StrategyConfig
	observer  RetrievalObserver
}

func NewFewShotStrategy(generator ports.TextGenerator, dense *DenseRetriever, state *LearningState, cfg StrategyConfig, observer RetrievalObserver) *FewShotStrategy {
	return &FewShotStrategy{
		generator: generator,
		dense:     dense,
		state:     state,
		cfg:       cfg.normalize(),
		observer:  observerOrNoop(observer),
	}
}

func (s *FewShotStrategy) Name() domain.StrategyName {
	return domain.StrategyFewShot
}

func (s *FewShotStrategy) Retrieve(ctx context.Context, brand domain.BrandContext, weights domain.CategoryWeights, limit int) []domain.ScoredCandidate {
	if limit <= 0 {
		return []domain.ScoredCandidate{}
	}
	logger := logging.FromContext(ctx).With("strategy", domain.StrategyFewShot, "brand_id", brand.BrandID)

	prompt := buildFewShotPrompt(brand, weights, s.state.RelevantExamples(weights, fewShotPromptExamples))
	generated, err := generateText(ctx, s.generator, prompt, s.cfg.GenerateTimeout)
	if err != nil {
		logger.Warn("few_shot_generation_failed", "error", err)
		s.observer.ObserveStrategyFailure(domain.StrategyFewShot, "generation_error")
		return []domain.ScoredCandidate{}
	}
	query := firstWords(generated, selfQueryMaxWords)
	if query == "" {
		logger.Warn("few_shot_generation_failed", "error", "empty query")
		s.observer.ObserveStrategyFailure(domain.StrategyFewShot, "empty_generation")
		return []domain.ScoredCandidate{}
	}

	hits := s.dense.SearchText(ctx, query, limit*fewShotFetch)
	examples := s.state.Examples()
	needVectors := hasEmbeddings(examples)

	out := make([]domain.ScoredCandidate, 0, len(hits))
	for _, hit := range hits {
		candidate := candidateFromHit(hit, domain.StrategyFewShot)
		candidate.CategoryWeight = weights.WeightFor(hit.Document.Category, s.cfg.FallbackWeight)
		if needVectors && len(candidate.Vector) == 0 {
			if vector, ok := s.dense.Embed(ctx, hit.Document.Text); ok {
				candidate.Vector = vector
			}
		}
		similarity := exampleSimilarity(examples, candidate.Vector, candidate.Category, weights)
		candidate.HybridScore = similarity
		candidate.FinalScore = candidate.CategoryWeight * similarity
		out = append(out, candidate)
	}
	out = dedupeCandidates(out)
	sortByFinalScore(out)
	return trimCandidates(out, limit)
}

func hasEmbeddings(examples []domain.Example) bool {
	for _, ex := range examples {
		if len(ex.Embedding) > 0 {
			return true
		}
	}
	return false
}
