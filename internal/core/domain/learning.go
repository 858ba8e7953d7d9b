package domain

import "time"

const (
	InitialSuccessRate       = 0.5
	ExampleRelevanceMinimum  = 0.7
	FeedbackSuccessThreshold = 0.5
	ExampleAdmissionFraction = 0.7
)

type StrategyPerformance struct {
	Strategy    StrategyName `json:"strategy"`
	SuccessRate float64      `json:"success_rate"`
	Uses        int          `json:"uses"`
}

func NewStrategyPerformance(name StrategyName) StrategyPerformance {
	return StrategyPerformance{Strategy: name, SuccessRate: InitialSuccessRate}
}

// Record folds one outcome in [0,1] into the cumulative mean.
func (p StrategyPerformance) Record(outcome float64) StrategyPerformance {
	p.SuccessRate = (p.SuccessRate*float64(p.Uses) + outcome) / float64(p.Uses+1)
	p.Uses++
	return p
}

type Example struct {
	BrandDescription string          `json:"brand_description"`
	MatchedContent   ScoredCandidate `json:"matched_content"`
	Embedding        []float32       `json:"embedding,omitempty"`
	RelevanceScore   float64         `json:"relevance_score"`
	Timestamp        time.Time       `json:"timestamp"`
}

type LearningSnapshot struct {
	Performance   []StrategyPerformance `json:"performance"`
	Examples      []Example             `json:"examples"`
	HybridWeights HybridWeights         `json:"hybrid_weights"`
}
