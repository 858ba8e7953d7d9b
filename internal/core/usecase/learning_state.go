package usecase

import (
	"math"
	"sort"
	"sync"
	"time"

	"github.com/whatsgood/brand-retrieval/internal/core/domain"
)

const (
	DefaultExampleCap        = 500
	relevantExampleMinWeight = 0.5
	exampleEmbeddingWeight   = 0.7
	exampleCategoryWeight    = 0.3
)

// LearningState holds strategy performance, the few-shot example store and the
// tuned hybrid weights. All methods are safe for concurrent use.
type LearningState struct {
	mu          sync.RWMutex
	performance map[domain.StrategyName]domain.StrategyPerformance
	examples    []domain.Example
	exampleCap  int
	hybrid      domain.HybridWeights
	now         func() time.Time
}

func NewLearningState(exampleCap int) *LearningState {
	if exampleCap <= 0 {
		exampleCap = DefaultExampleCap
	}
	performance := make(map[domain.StrategyName]domain.StrategyPerformance, len(domain.StrategyPriority))
	for _, name := range domain.StrategyPriority {
		performance[name] = domain.NewStrategyPerformance(name)
	}
	return &LearningState{
		performance: performance,
		exampleCap:  exampleCap,
		hybrid:      domain.DefaultHybridWeights(),
		now:         time.Now,
	}
}

func (s *LearningState) Performance(name domain.StrategyName) domain.StrategyPerformance {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if perf, ok := s.performance[name]; ok {
		return perf
	}
	return domain.NewStrategyPerformance(name)
}

// AllPerformance lists the built-in strategies in priority order followed by
// any other strategy that has recorded outcomes.
func (s *LearningState) AllPerformance() []domain.StrategyPerformance {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.allPerformanceLocked()
}

func (s *LearningState) allPerformanceLocked() []domain.StrategyPerformance {
	out := make([]domain.StrategyPerformance, 0, len(s.performance))
	listed := make(map[domain.StrategyName]struct{}, len(s.performance))
	for _, name := range domain.StrategyPriority {
		perf, ok := s.performance[name]
		if !ok {
			perf = domain.NewStrategyPerformance(name)
		}
		out = append(out, perf)
		listed[name] = struct{}{}
	}
	extra := make([]domain.StrategyPerformance, 0)
	for name, perf := range s.performance {
		if _, ok := listed[name]; !ok {
			extra = append(extra, perf)
		}
	}
	sort.Slice(extra, func(i, j int) bool { return extra[i].Strategy < extra[j].Strategy })
	return append(out, extra...)
}

func (s *LearningState) RecordOutcome(name domain.StrategyName, outcome float64) domain.StrategyPerformance {
	s.mu.Lock()
	defer s.mu.Unlock()
	perf, ok := s.performance[name]
	if !ok {
		perf = domain.NewStrategyPerformance(name)
	}
	perf = perf.Record(outcome)
	s.performance[name] = perf
	return perf
}

// AddExample stores ex when its relevance reaches the admission minimum. When
// the store is full the lowest scoring, then oldest, example is evicted.
func (s *LearningState) AddExample(ex domain.Example) bool {
	if ex.RelevanceScore < domain.ExampleRelevanceMinimum {
		return false
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if ex.Timestamp.IsZero() {
		ex.Timestamp = s.now().UTC()
	}
	s.examples = append(s.examples, ex)
	for len(s.examples) > s.exampleCap {
		s.evictOneLocked()
	}
	return true
}

func (s *LearningState) evictOneLocked() {
	victim := 0
	for i := 1; i < len(s.examples); i++ {
		cur, worst := s.examples[i], s.examples[victim]
		if cur.RelevanceScore < worst.RelevanceScore ||
			(cur.RelevanceScore == worst.RelevanceScore && cur.Timestamp.Before(worst.Timestamp)) {
			victim = i
		}
	}
	s.examples = append(s.examples[:victim], s.examples[victim+1:]...)
}

func (s *LearningState) ExampleCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.examples)
}

func (s *LearningState) Examples() []domain.Example {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.Example, len(s.examples))
	copy(out, s.examples)
	return out
}

// RelevantExamples returns up to n examples whose matched category carries a
// brand weight above 0.5, best relevance first and newest first on ties.
func (s *LearningState) RelevantExamples(weights domain.CategoryWeights, n int) []domain.Example {
	if n <= 0 {
		return []domain.Example{}
	}
	s.mu.RLock()
	out := make([]domain.Example, 0, len(s.examples))
	for _, ex := range s.examples {
		if weights[ex.MatchedContent.Category] > relevantExampleMinWeight {
			out = append(out, ex)
		}
	}
	s.mu.RUnlock()

	sort.SliceStable(out, func(i, j int) bool {
		if out[i].RelevanceScore != out[j].RelevanceScore {
			return out[i].RelevanceScore > out[j].RelevanceScore
		}
		return out[i].Timestamp.After(out[j].Timestamp)
	})
	if len(out) > n {
		out = out[:n]
	}
	return out
}

func (s *LearningState) HybridWeights() domain.HybridWeights {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.hybrid
}

func (s *LearningState) SetHybridWeights(w domain.HybridWeights) error {
	if err := w.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	s.hybrid = w
	s.mu.Unlock()
	return nil
}

func (s *LearningState) Snapshot() domain.LearningSnapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	examples := make([]domain.Example, len(s.examples))
	copy(examples, s.examples)
	return domain.LearningSnapshot{
		Performance:   s.allPerformanceLocked(),
		Examples:      examples,
		HybridWeights: s.hybrid,
	}
}

// Restore replaces the state with snap. Unknown strategies are dropped,
// examples over the cap are evicted and invalid hybrid weights fall back to
// the defaults.
func (s *LearningState) Restore(snap domain.LearningSnapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, perf := range snap.Performance {
		if _, err := domain.ParseStrategyName(string(perf.Strategy)); err != nil {
			continue
		}
		s.performance[perf.Strategy] = perf
	}
	s.examples = append([]domain.Example(nil), snap.Examples...)
	for len(s.examples) > s.exampleCap {
		s.evictOneLocked()
	}
	if snap.HybridWeights.Validate() == nil {
		s.hybrid = snap.HybridWeights
	} else {
		s.hybrid = domain.DefaultHybridWeights()
	}
}

// exampleSimilarity scores a candidate against stored examples. With no
// examples it returns 1 so ranking falls back to category weight alone.
func exampleSimilarity(examples []domain.Example, vector []float32, category string, weights domain.CategoryWeights) float64 {
	if len(examples) == 0 {
		return 1
	}
	best := math.Inf(-1)
	for _, ex := range examples {
		score := exampleEmbeddingWeight * cosineSimilarity(vector, ex.Embedding)
		if ex.MatchedContent.Category == category {
			score += exampleCategoryWeight * weights[category]
		}
		if score > best {
			best = score
		}
	}
	return best
}

func cosineSimilarity(a, b []float32) float64 {
	if len(a) == 0 || len(a) != len(b) {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
