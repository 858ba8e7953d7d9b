package usecase

import "github.com/whatsgood/brand-retrieval/internal/core/domain"

type RankedList struct {
	Strategy   domain.StrategyName
	Weight     float64
	Candidates []domain.ScoredCandidate
}

// MergeRanked combines strategy lists in the order given. The first list to
// contribute an article wins; its score is scaled by that list's weight.
func MergeRanked(lists []RankedList, limit int) []domain.ScoredCandidate {
	if limit <= 0 {
		return []domain.ScoredCandidate{}
	}

	seen := make(map[string]struct{})
	out := make([]domain.ScoredCandidate, 0)
	for _, list := range lists {
		for _, candidate := range list.Candidates {
			if _, dup := seen[candidate.ArticleID]; dup {
				continue
			}
			seen[candidate.ArticleID] = struct{}{}
			candidate.FinalScore *= list.Weight
			if candidate.SourceStrategy == "" {
				candidate.SourceStrategy = list.Strategy
			}
			out = append(out, candidate)
		}
	}

	sortByFinalScore(out)
	return trimCandidates(out, limit)
}
