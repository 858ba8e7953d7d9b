package usecase

import "github.com/whatsgood/brand-retrieval/internal/core/domain"

const (
	hydeDescriptionWords    = 50
	hydeStrongWeight        = 0.7
	selfQueryFocusWeight    = 0.8
	selfQueryMinWords       = 20
	selfQueryMaxDescWords   = 100
	fewShotMinExamples      = 5
	fewShotBalancedVariance = 0.1
)

// StrategySelector picks a strategy from learned success rates plus bonuses
// derived from the brand profile.
type StrategySelector struct {
	state *LearningState
}

func NewStrategySelector(state *LearningState) *StrategySelector {
	return &StrategySelector{state: state}
}

func (s *StrategySelector) Fitness(brand domain.BrandContext, weights domain.CategoryWeights) map[domain.StrategyName]float64 {
	words := domain.WordCount(brand.Description())

	hyde := s.state.Performance(domain.StrategyHyDE).SuccessRate
	if words > hydeDescriptionWords {
		hyde += 0.2
	}
	if weights.CountAbove(hydeStrongWeight) >= 2 {
		hyde += 0.1
	}

	selfQuery := s.state.Performance(domain.StrategySelfQuery).SuccessRate
	if weights.Max() > selfQueryFocusWeight {
		selfQuery += 0.2
	}
	if words >= selfQueryMinWords && words <= selfQueryMaxDescWords {
		selfQuery += 0.1
	}

	fewShot := s.state.Performance(domain.StrategyFewShot).SuccessRate
	if s.state.ExampleCount() > fewShotMinExamples {
		fewShot += 0.2
	}
	if weights.Variance() < fewShotBalancedVariance {
		fewShot += 0.1
	}

	return map[domain.StrategyName]float64{
		domain.StrategyHyDE:      hyde,
		domain.StrategySelfQuery: selfQuery,
		domain.StrategyFewShot:   fewShot,
	}
}

// Select returns the fittest strategy; ties resolve in priority order.
func (s *StrategySelector) Select(brand domain.BrandContext, weights domain.CategoryWeights) domain.StrategyName {
	fitness := s.Fitness(brand, weights)
	best := domain.StrategyPriority[0]
	for _, name := range domain.StrategyPriority[1:] {
		if fitness[name] > fitness[best] {
			best = name
		}
	}
	return best
}
