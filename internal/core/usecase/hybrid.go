package usecase

import (
	"context"
	"sort"

	"github.com/whatsgood/brand-retrieval/internal/core/domain"
	"github.com/whatsgood/brand-retrieval/internal/core/lexical"
)

const (
	hybridOverfetchFactor = 5
	defaultHybridMaxFetch = 100
)

// HybridScorer blends dense similarity with normalized BM25 scores and then
// scales the blend by the brand's category weight.
type HybridScorer struct {
	dense          *DenseRetriever
	lexical        *lexical.Holder
	fallbackWeight float64
	maxFetch       int
}

func NewHybridScorer(dense *DenseRetriever, lexicalIndex *lexical.Holder, fallbackWeight float64, maxFetch int) *HybridScorer {
	if fallbackWeight <= 0 {
		fallbackWeight = domain.DefaultFallbackCategoryWeight
	}
	if maxFetch <= 0 {
		maxFetch = defaultHybridMaxFetch
	}
	return &HybridScorer{
		dense:          dense,
		lexical:        lexicalIndex,
		fallbackWeight: fallbackWeight,
		maxFetch:       maxFetch,
	}
}

func (s *HybridScorer) Search(
	ctx context.Context,
	query string,
	weights domain.CategoryWeights,
	topK int,
	hybrid domain.HybridWeights,
) ([]domain.ScoredCandidate, error) {
	if err := hybrid.Validate(); err != nil {
		return nil, err
	}
	if err := weights.Validate(); err != nil {
		return nil, err
	}
	if topK <= 0 {
		return []domain.ScoredCandidate{}, nil
	}

	fetchK := topK * hybridOverfetchFactor
	if fetchK > s.maxFetch {
		fetchK = s.maxFetch
	}
	hits := s.dense.SearchText(ctx, query, fetchK)
	lexScores := s.lexical.Load().Scores(query)

	seen := make(map[string]struct{}, len(hits))
	out := make([]domain.ScoredCandidate, 0, len(hits))
	for _, hit := range hits {
		id := hit.Document.ArticleID
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}

		lexScore := lexScores[id]
		categoryWeight := weights.WeightFor(hit.Document.Category, s.fallbackWeight)
		hybridScore := hybrid.Vector*hit.Similarity + hybrid.Keyword*lexScore

		candidate := candidateFromHit(hit, domain.StrategyHybrid)
		candidate.LexicalScore = lexScore
		candidate.CategoryWeight = categoryWeight
		candidate.HybridScore = hybridScore
		candidate.FinalScore = hybridScore * categoryWeight
		out = append(out, candidate)
	}

	sortByFinalScore(out)
	return trimCandidates(out, topK), nil
}

func candidateFromHit(hit DenseHit, strategy domain.StrategyName) domain.ScoredCandidate {
	return domain.ScoredCandidate{
		ArticleID:      hit.Document.ArticleID,
		Title:          hit.Document.Metadata.Title,
		Category:       hit.Document.Category,
		Text:           hit.Document.Text,
		RawSimilarity:  hit.Similarity,
		SourceStrategy: strategy,
		Vector:         hit.Document.Vector,
	}
}

func sortByFinalScore(candidates []domain.ScoredCandidate) {
	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].FinalScore > candidates[j].FinalScore
	})
}

func trimCandidates(candidates []domain.ScoredCandidate, limit int) []domain.ScoredCandidate {
	if limit <= 0 {
		return []domain.ScoredCandidate{}
	}
	if len(candidates) <= limit {
		return candidates
	}
	return candidates[:limit]
}
