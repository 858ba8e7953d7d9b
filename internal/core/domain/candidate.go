package domain

import (
	"fmt"
	"math"
)

type StrategyName string

const (
	StrategyHyDE      StrategyName = "hyde"
	StrategySelfQuery StrategyName = "self_query"
	StrategyFewShot   StrategyName = "few_shot"
	StrategyHybrid    StrategyName = "hybrid"
)

// StrategyPriority orders strategies for tie-breaking and merge precedence.
var StrategyPriority = []StrategyName{StrategyHyDE, StrategySelfQuery, StrategyFewShot}

func ParseStrategyName(raw string) (StrategyName, error) {
	switch name := StrategyName(raw); name {
	case StrategyHyDE, StrategySelfQuery, StrategyFewShot, StrategyHybrid:
		return name, nil
	default:
		return "", WrapError(ErrInvalidInput, "parse strategy", fmt.Errorf("unknown strategy %q", raw))
	}
}

type ScoredCandidate struct {
	ArticleID      string       `json:"article_id"`
	Title          string       `json:"title,omitempty"`
	Category       string       `json:"category"`
	Text           string       `json:"text,omitempty"`
	RawSimilarity  float64      `json:"raw_similarity"`
	LexicalScore   float64      `json:"lexical_score"`
	CategoryWeight float64      `json:"category_weight"`
	HybridScore    float64      `json:"hybrid_score"`
	FinalScore     float64      `json:"final_score"`
	SourceStrategy StrategyName `json:"source_strategy"`
	Vector         []float32    `json:"-"`
}

const WeightSumTolerance = 1e-6

type HybridWeights struct {
	Vector  float64 `json:"vector_weight"`
	Keyword float64 `json:"keyword_weight"`
}

func DefaultHybridWeights() HybridWeights {
	return HybridWeights{Vector: 0.7, Keyword: 0.3}
}

func (w HybridWeights) Validate() error {
	if w.Vector < 0 || w.Keyword < 0 {
		return WrapError(ErrInvalidInput, "validate hybrid weights", fmt.Errorf("weights must be non-negative, got vector=%v keyword=%v", w.Vector, w.Keyword))
	}
	if math.Abs(w.Vector+w.Keyword-1) > WeightSumTolerance {
		return WrapError(ErrInvalidInput, "validate hybrid weights", fmt.Errorf("vector_weight + keyword_weight must equal 1, got %v", w.Vector+w.Keyword))
	}
	return nil
}

type RankedArticle struct {
	Article  Article      `json:"article"`
	Score    float64      `json:"score"`
	Strategy StrategyName `json:"strategy"`
}

type RetrievalResult struct {
	Mode       string            `json:"mode"`
	Strategy   StrategyName      `json:"strategy,omitempty"`
	Candidates []ScoredCandidate `json:"candidates"`
	Articles   []RankedArticle   `json:"articles"`
}
