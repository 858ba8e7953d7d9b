package usecase

import (
	"context"
	"fmt"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/whatsgood/brand-retrieval/internal/core/domain"
	"github.com/whatsgood/brand-retrieval/internal/core/lexical"
	"github.com/whatsgood/brand-retrieval/internal/core/ports"
	"github.com/whatsgood/brand-retrieval/internal/observability/logging"
)

const (
	DefaultLexicalSnapshotLimit = 10000
	blendFetchFactor            = 2
)

type BlendComponent struct {
	Strategy domain.StrategyName
	Weight   float64
}

func DefaultBlend() []BlendComponent {
	return []BlendComponent{
		{Strategy: domain.StrategyHyDE, Weight: 0.6},
		{Strategy: domain.StrategySelfQuery, Weight: 0.4},
	}
}

type RetrievalConfig struct {
	Blend                []BlendComponent
	LexicalSnapshotLimit int
}

type RetrievalUseCase struct {
	strategies map[domain.StrategyName]Strategy
	selector   *StrategySelector
	hybrid     *HybridScorer
	dense      *DenseRetriever
	lexical    *lexical.Holder
	articles   ports.ArticleStore
	state      *LearningState
	cfg        RetrievalConfig
	observer   RetrievalObserver
}

func NewRetrievalUseCase(
	strategies []Strategy,
	selector *StrategySelector,
	hybrid *HybridScorer,
	dense *DenseRetriever,
	lexicalIndex *lexical.Holder,
	articles ports.ArticleStore,
	state *LearningState,
	cfg RetrievalConfig,
	observer RetrievalObserver,
) *RetrievalUseCase {
	byName := make(map[domain.StrategyName]Strategy, len(strategies))
	for _, s := range strategies {
		byName[s.Name()] = s
	}
	if len(cfg.Blend) == 0 {
		cfg.Blend = DefaultBlend()
	}
	if cfg.LexicalSnapshotLimit <= 0 {
		cfg.LexicalSnapshotLimit = DefaultLexicalSnapshotLimit
	}
	return &RetrievalUseCase{
		strategies: byName,
		selector:   selector,
		hybrid:     hybrid,
		dense:      dense,
		lexical:    lexicalIndex,
		articles:   articles,
		state:      state,
		cfg:        cfg,
		observer:   observerOrNoop(observer),
	}
}

// Blend runs the configured strategies concurrently and merges their lists
// by blend order.
func (uc *RetrievalUseCase) Blend(ctx context.Context, req ports.RetrievalRequest) (*domain.RetrievalResult, error) {
	if err := req.Weights.Validate(); err != nil {
		return nil, err
	}
	started := time.Now()
	result := &domain.RetrievalResult{Mode: "blend", Candidates: []domain.ScoredCandidate{}, Articles: []domain.RankedArticle{}}
	if req.Limit <= 0 {
		return result, nil
	}

	lists := make([]RankedList, len(uc.cfg.Blend))
	g, gctx := errgroup.WithContext(ctx)
	for i, component := range uc.cfg.Blend {
		strategy, ok := uc.strategies[component.Strategy]
		if !ok {
			logging.FromContext(ctx).Warn("blend_strategy_missing", "strategy", component.Strategy)
			lists[i] = RankedList{Strategy: component.Strategy, Weight: component.Weight}
			continue
		}
		g.Go(func() error {
			candidates := strategy.Retrieve(gctx, req.Brand, req.Weights, req.Limit*blendFetchFactor)
			uc.observer.ObserveStrategyResults(component.Strategy, len(candidates))
			lists[i] = RankedList{Strategy: component.Strategy, Weight: component.Weight, Candidates: candidates}
			return nil
		})
	}
	_ = g.Wait()

	result.Candidates = MergeRanked(lists, req.Limit)
	result.Articles = uc.Resolve(ctx, result.Candidates)
	uc.observer.ObserveRetrieval(result.Mode, len(result.Candidates), time.Since(started))
	return result, nil
}

// Adaptive runs only the strategy the selector considers fittest.
func (uc *RetrievalUseCase) Adaptive(ctx context.Context, req ports.RetrievalRequest) (*domain.RetrievalResult, error) {
	if err := req.Weights.Validate(); err != nil {
		return nil, err
	}
	started := time.Now()
	name := uc.selector.Select(req.Brand, req.Weights)
	result := &domain.RetrievalResult{Mode: "adaptive", Strategy: name, Candidates: []domain.ScoredCandidate{}, Articles: []domain.RankedArticle{}}
	if req.Limit <= 0 {
		return result, nil
	}

	strategy, ok := uc.strategies[name]
	if !ok {
		return nil, domain.WrapError(domain.ErrInvalidInput, "adaptive retrieval", fmt.Errorf("strategy %q is not configured", name))
	}
	logging.FromContext(ctx).Info("strategy_selected", "strategy", name, "brand_id", req.Brand.BrandID)

	result.Candidates = strategy.Retrieve(ctx, req.Brand, req.Weights, req.Limit)
	uc.observer.ObserveStrategyResults(name, len(result.Candidates))
	result.Articles = uc.Resolve(ctx, result.Candidates)
	uc.observer.ObserveRetrieval(result.Mode, len(result.Candidates), time.Since(started))
	return result, nil
}

// Hybrid scores a free-text query. Without explicit weights the learned hybrid
// weights are used.
func (uc *RetrievalUseCase) Hybrid(ctx context.Context, req ports.HybridRequest) (*domain.RetrievalResult, error) {
	query := strings.TrimSpace(req.Query)
	if query == "" {
		return nil, domain.WrapError(domain.ErrInvalidInput, "hybrid retrieval", fmt.Errorf("query is required"))
	}
	weights := uc.state.HybridWeights()
	if req.Hybrid != nil {
		weights = *req.Hybrid
	}

	started := time.Now()
	candidates, err := uc.hybrid.Search(ctx, query, req.Weights, req.Limit, weights)
	if err != nil {
		return nil, err
	}
	result := &domain.RetrievalResult{
		Mode:       "hybrid",
		Strategy:   domain.StrategyHybrid,
		Candidates: candidates,
		Articles:   uc.Resolve(ctx, candidates),
	}
	uc.observer.ObserveRetrieval(result.Mode, len(candidates), time.Since(started))
	return result, nil
}

// Resolve maps candidates to stored articles in ranking order. IDs missing
// from the store are dropped.
func (uc *RetrievalUseCase) Resolve(ctx context.Context, candidates []domain.ScoredCandidate) []domain.RankedArticle {
	out := make([]domain.RankedArticle, 0, len(candidates))
	if uc.articles == nil || len(candidates) == 0 {
		return out
	}

	ids := make([]string, 0, len(candidates))
	for _, c := range candidates {
		ids = append(ids, c.ArticleID)
	}
	articles, err := uc.articles.FetchByIDs(ctx, ids)
	if err != nil {
		logging.FromContext(ctx).Warn("article_resolve_failed", "ids", len(ids), "error", err)
		return out
	}

	byID := make(map[string]domain.Article, len(articles))
	for _, a := range articles {
		byID[a.ArticleID] = a
	}
	for _, c := range candidates {
		article, ok := byID[c.ArticleID]
		if !ok {
			continue
		}
		out = append(out, domain.RankedArticle{Article: article, Score: c.FinalScore, Strategy: c.SourceStrategy})
	}
	return out
}

// RebuildLexicalIndex rebuilds the BM25 index from a snapshot of the vector
// index and swaps it in for subsequent hybrid searches.
func (uc *RetrievalUseCase) RebuildLexicalIndex(ctx context.Context) (int, error) {
	docs, err := uc.dense.Snapshot(ctx, uc.cfg.LexicalSnapshotLimit)
	if err != nil {
		return 0, fmt.Errorf("rebuild lexical index: %w", err)
	}

	entries := make([]lexical.Entry, 0, len(docs))
	for _, doc := range docs {
		entries = append(entries, lexical.Entry{ID: doc.ArticleID, Text: doc.Text})
	}
	ix := lexical.Build(entries)
	uc.lexical.Store(ix)
	uc.observer.ObserveLexicalIndexSize(ix.Len())
	logging.FromContext(ctx).Info("lexical_index_rebuilt", "documents", ix.Len())
	return ix.Len(), nil
}
