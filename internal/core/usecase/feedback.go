package usecase

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/whatsgood/brand-retrieval/internal/core/domain"
	"github.com/whatsgood/brand-retrieval/internal/core/ports"
	"github.com/whatsgood/brand-retrieval/internal/observability/logging"
)

// FeedbackUseCase folds relevance judgements back into the learning state and
// persists the result when a store is configured.
type FeedbackUseCase struct {
	mu       sync.Mutex
	state    *LearningState
	embedder ports.Embedder
	store    ports.LearningStateStore
	observer RetrievalObserver
	now      func() time.Time

	embedTimeout time.Duration
}

func NewFeedbackUseCase(state *LearningState, embedder ports.Embedder, store ports.LearningStateStore, observer RetrievalObserver) *FeedbackUseCase {
	return &FeedbackUseCase{
		state:    state,
		embedder: embedder,
		store:    store,
		observer: observerOrNoop(observer),
		now:      time.Now,

		embedTimeout: defaultDenseTimeout,
	}
}

// WithEmbedTimeout bounds each example embedding call. Non-positive values keep
// the current timeout.
func (uc *FeedbackUseCase) WithEmbedTimeout(timeout time.Duration) *FeedbackUseCase {
	if timeout > 0 {
		uc.embedTimeout = timeout
	}
	return uc
}

func (uc *FeedbackUseCase) Submit(ctx context.Context, input ports.FeedbackInput) (*ports.FeedbackOutcome, error) {
	if len(input.Results) == 0 {
		return nil, domain.WrapError(domain.ErrInvalidInput, "submit feedback", fmt.Errorf("results are required"))
	}
	for _, result := range input.Results {
		if result.SourceStrategy == "" {
			continue
		}
		if _, err := domain.ParseStrategyName(string(result.SourceStrategy)); err != nil {
			return nil, fmt.Errorf("submit feedback: %w", err)
		}
	}

	relevant := make(map[string]struct{}, len(input.RelevantIDs))
	for _, id := range input.RelevantIDs {
		relevant[id] = struct{}{}
	}

	uc.mu.Lock()
	defer uc.mu.Unlock()

	outcome := &ports.FeedbackOutcome{
		SuccessFraction:  relevantFraction(input.Results, relevant),
		StrategyOutcomes: make(map[domain.StrategyName]float64),
	}

	for _, name := range strategiesInOrder(input.Results) {
		fraction := relevantFraction(filterByStrategy(input.Results, name), relevant)
		success := fraction > domain.FeedbackSuccessThreshold
		value := 0.0
		if success {
			value = 1
		}
		perf := uc.state.RecordOutcome(name, value)
		outcome.StrategyOutcomes[name] = fraction
		uc.observer.ObserveFeedback(perf, success)
	}

	if outcome.SuccessFraction > domain.ExampleAdmissionFraction {
		outcome.ExamplesAdded = uc.addExamples(ctx, input, relevant, outcome.SuccessFraction)
	}

	if hybrid := filterByStrategy(input.Results, domain.StrategyHybrid); len(hybrid) > 0 {
		tuned := TuneHybridWeights(hybrid, relevant)
		if err := uc.state.SetHybridWeights(tuned); err != nil {
			logging.FromContext(ctx).Warn("hybrid_weight_tuning_rejected", "error", err)
		}
	}
	outcome.HybridWeights = uc.state.HybridWeights()

	uc.persist(ctx)
	return outcome, nil
}

func (uc *FeedbackUseCase) Performance() []domain.StrategyPerformance {
	return uc.state.AllPerformance()
}

func (uc *FeedbackUseCase) addExamples(ctx context.Context, input ports.FeedbackInput, relevant map[string]struct{}, fraction float64) int {
	added := 0
	seen := make(map[string]struct{}, len(relevant))
	for _, result := range input.Results {
		if _, ok := relevant[result.ArticleID]; !ok {
			continue
		}
		if _, dup := seen[result.ArticleID]; dup {
			continue
		}
		seen[result.ArticleID] = struct{}{}

		embedding := result.Vector
		if len(embedding) == 0 {
			embedding = uc.embedExample(ctx, result)
		}
		matched := result
		matched.Vector = nil
		ok := uc.state.AddExample(domain.Example{
			BrandDescription: input.BrandDescription,
			MatchedContent:   matched,
			Embedding:        embedding,
			RelevanceScore:   fraction,
			Timestamp:        uc.now().UTC(),
		})
		if ok {
			added++
		}
	}
	return added
}

func (uc *FeedbackUseCase) embedExample(ctx context.Context, result domain.ScoredCandidate) []float32 {
	if uc.embedder == nil {
		return nil
	}
	text := result.Text
	if text == "" {
		text = result.Title
	}
	if text == "" {
		return nil
	}
	embedCtx, cancel := context.WithTimeout(ctx, uc.embedTimeout)
	defer cancel()

	vector, err := uc.embedder.EmbedQuery(embedCtx, text)
	if err != nil {
		logging.FromContext(ctx).Warn("example_embedding_failed", "article_id", result.ArticleID, "error", err)
		return nil
	}
	return vector
}

func (uc *FeedbackUseCase) persist(ctx context.Context) {
	if uc.store == nil {
		return
	}
	if err := uc.store.Save(ctx, uc.state.Snapshot()); err != nil {
		logging.FromContext(ctx).Warn("learning_state_persist_failed", "error", err)
	}
}

// TuneHybridWeights derives hybrid weights from the mean dense and lexical
// scores of the relevant results. Without usable signal the defaults apply.
func TuneHybridWeights(results []domain.ScoredCandidate, relevant map[string]struct{}) domain.HybridWeights {
	var sumVector, sumKeyword float64
	count := 0
	for _, r := range results {
		if _, ok := relevant[r.ArticleID]; !ok {
			continue
		}
		sumVector += r.RawSimilarity
		sumKeyword += r.LexicalScore
		count++
	}
	if count == 0 {
		return domain.DefaultHybridWeights()
	}
	avgVector := sumVector / float64(count)
	avgKeyword := sumKeyword / float64(count)
	total := avgVector + avgKeyword
	if total <= 0 || avgVector < 0 || avgKeyword < 0 {
		return domain.DefaultHybridWeights()
	}
	vector := avgVector / total
	return domain.HybridWeights{Vector: vector, Keyword: 1 - vector}
}

func relevantFraction(results []domain.ScoredCandidate, relevant map[string]struct{}) float64 {
	if len(results) == 0 {
		return 0
	}
	hits := 0
	for _, r := range results {
		if _, ok := relevant[r.ArticleID]; ok {
			hits++
		}
	}
	return float64(hits) / float64(len(results))
}

func filterByStrategy(results []domain.ScoredCandidate, name domain.StrategyName) []domain.ScoredCandidate {
	out := make([]domain.ScoredCandidate, 0, len(results))
	for _, r := range results {
		if r.SourceStrategy == name {
			out = append(out, r)
		}
	}
	return out
}

func strategiesInOrder(results []domain.ScoredCandidate) []domain.StrategyName {
	seen := make(map[domain.StrategyName]struct{})
	out := make([]domain.StrategyName, 0, len(domain.StrategyPriority))
	for _, r := range results {
		if r.SourceStrategy == "" {
			continue
		}
		if _, ok := seen[r.SourceStrategy]; ok {
			continue
		}
		seen[r.SourceStrategy] = struct{}{}
		out = append(out, r.SourceStrategy)
	}
	return out
}
