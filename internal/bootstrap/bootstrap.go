package bootstrap

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/whatsgood/brand-retrieval/internal/config"
	"github.com/whatsgood/brand-retrieval/internal/core/domain"
	"github.com/whatsgood/brand-retrieval/internal/core/lexical"
	"github.com/whatsgood/brand-retrieval/internal/core/ports"
	"github.com/whatsgood/brand-retrieval/internal/core/usecase"
	rediscache "github.com/whatsgood/brand-retrieval/internal/infrastructure/cache/redis"
	"github.com/whatsgood/brand-retrieval/internal/infrastructure/llm/ollama"
	"github.com/whatsgood/brand-retrieval/internal/infrastructure/llm/openai"
	"github.com/whatsgood/brand-retrieval/internal/infrastructure/queue/nats"
	"github.com/whatsgood/brand-retrieval/internal/infrastructure/repository/postgres"
	"github.com/whatsgood/brand-retrieval/internal/infrastructure/repository/sqlite"
	"github.com/whatsgood/brand-retrieval/internal/infrastructure/resilience"
	"github.com/whatsgood/brand-retrieval/internal/infrastructure/vector/qdrant"
	"github.com/whatsgood/brand-retrieval/internal/observability/logging"
)

// Options carries the process-specific collaborators; all fields are optional.
type Options struct {
	Observer        usecase.RetrievalObserver
	BreakerListener resilience.StateListener
	CacheRecorder   rediscache.CacheRecorder
	// NotifyRecorder observes the outcome of every index-updated publish.
	NotifyRecorder func(err error)
	// SkipQueue leaves App.Queue nil for processes that never publish or subscribe.
	SkipQueue bool
}

type App struct {
	Config config.Config

	Queue    *nats.Queue
	Articles *postgres.ArticleRepository

	Retrieval *usecase.RetrievalUseCase
	Feedback  *usecase.FeedbackUseCase
	Indexer   *usecase.IndexArticlesUseCase
	State     *usecase.LearningState

	closeFns []func()
}

func New(ctx context.Context, cfg config.Config, opts Options) (*App, error) {
	app := &App{Config: cfg}
	ok := false
	defer func() {
		if !ok {
			app.Close()
		}
	}()

	db, err := postgres.OpenDB(cfg.PostgresDSN)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	app.onClose(func() { _ = db.Close() })
	articles := postgres.NewArticleRepository(db)
	if err := articles.EnsureSchema(ctx); err != nil {
		return nil, fmt.Errorf("ensure schema: %w", err)
	}
	app.Articles = articles

	resCfg := resilience.DefaultConfig()
	resCfg.BreakerEnabled = cfg.BreakerEnabled
	resCfg.RetryMaxAttempts = cfg.RetryMaxAttempts
	executor := resilience.NewExecutor(resCfg)
	if opts.BreakerListener != nil {
		executor.OnStateChange(opts.BreakerListener)
	}

	if !opts.SkipQueue {
		queue, err := nats.NewWithOptions(cfg.NATSURL, nats.Options{
			ArticleReadySubject: cfg.NATSReadySubject,
			IndexUpdatedSubject: cfg.NATSIndexedSubject,
			Executor:            executor,
		})
		if err != nil {
			return nil, fmt.Errorf("init message queue: %w", err)
		}
		app.onClose(queue.Close)
		app.Queue = queue
	}

	generateTimeout := time.Duration(cfg.GenerateTimeoutSeconds) * time.Second
	searchTimeout := time.Duration(cfg.SearchTimeoutSeconds) * time.Second

	generator, embedder, embedModel := newLLM(cfg, executor, generateTimeout)
	if strings.TrimSpace(cfg.RedisAddr) != "" {
		store, err := rediscache.NewStore(rediscache.StoreConfig{
			Addrs:    []string{cfg.RedisAddr},
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
			TTL:      time.Duration(cfg.EmbeddingCacheTTLSecs) * time.Second,
		})
		if err != nil {
			return nil, fmt.Errorf("init embedding cache: %w", err)
		}
		app.onClose(store.Close)
		embedder = rediscache.NewCachedEmbedder(embedder, store, cfg.LLMProvider+"/"+embedModel, opts.CacheRecorder)
	}

	vectorIndex := qdrant.NewWithOptions(cfg.QdrantURL, cfg.QdrantCollection, qdrant.Options{
		Timeout:  searchTimeout,
		Executor: executor,
	})

	state := usecase.NewLearningState(cfg.ExampleCap)
	if err := state.SetHybridWeights(domain.HybridWeights{Vector: cfg.HybridVectorWeight, Keyword: cfg.HybridKeywordWeight}); err != nil {
		return nil, fmt.Errorf("configure hybrid weights: %w", err)
	}
	var stateStore ports.LearningStateStore
	if strings.TrimSpace(cfg.SQLitePath) != "" {
		repo, err := sqlite.Open(cfg.SQLitePath)
		if err != nil {
			return nil, fmt.Errorf("open learning state store: %w", err)
		}
		app.onClose(func() { _ = repo.Close() })
		snapshot, err := repo.Load(ctx)
		if err != nil {
			return nil, fmt.Errorf("load learning state: %w", err)
		}
		if snapshot != nil {
			state.Restore(*snapshot)
			logging.FromContext(ctx).Info("learning_state_restored", "examples", len(snapshot.Examples), "strategies", len(snapshot.Performance))
		}
		stateStore = repo
	}
	app.State = state

	dense := usecase.NewDenseRetriever(vectorIndex, embedder, cfg.Namespace, searchTimeout)
	holder := &lexical.Holder{}
	strategyCfg := usecase.StrategyConfig{
		FallbackWeight:  cfg.FallbackCategoryWeight,
		GenerateTimeout: generateTimeout,
	}
	strategies := []usecase.Strategy{
		usecase.NewHyDEStrategy(generator, dense, strategyCfg, opts.Observer),
		usecase.NewSelfQueryStrategy(generator, dense, strategyCfg, opts.Observer),
		usecase.NewFewShotStrategy(generator, dense, state, strategyCfg, opts.Observer),
	}

	app.Retrieval = usecase.NewRetrievalUseCase(
		strategies,
		usecase.NewStrategySelector(state),
		usecase.NewHybridScorer(dense, holder, cfg.FallbackCategoryWeight, cfg.MaxFetch),
		dense,
		holder,
		articles,
		state,
		usecase.RetrievalConfig{
			Blend:                blendFromConfig(cfg),
			LexicalSnapshotLimit: cfg.LexicalSnapshotLimit,
		},
		opts.Observer,
	)
	app.Feedback = usecase.NewFeedbackUseCase(state, embedder, stateStore, opts.Observer).WithEmbedTimeout(searchTimeout)

	var notifier usecase.IndexNotifier
	if app.Queue != nil {
		queue := app.Queue
		notifier = usecase.IndexNotifierFunc(func(ctx context.Context, indexed int) error {
			err := queue.PublishIndexUpdated(ctx, indexed)
			if opts.NotifyRecorder != nil {
				opts.NotifyRecorder(err)
			}
			return err
		})
	}
	app.Indexer = usecase.NewIndexArticlesUseCase(articles, embedder, vectorIndex, notifier, usecase.IndexConfig{
		Namespace:   cfg.Namespace,
		BatchSize:   cfg.IndexBatchSize,
		Concurrency: cfg.IndexConcurrency,
	})

	ok = true
	return app, nil
}

func newLLM(cfg config.Config, executor *resilience.Executor, timeout time.Duration) (ports.TextGenerator, ports.Embedder, string) {
	if cfg.LLMProvider == "openai" {
		client := openai.New(openai.Config{
			APIKey:      cfg.OpenAIAPIKey,
			BaseURL:     cfg.OpenAIBaseURL,
			ChatModel:   cfg.OpenAIChatModel,
			EmbedModel:  cfg.OpenAIEmbedModel,
			Temperature: float32(cfg.OpenAITemperature),
			Timeout:     timeout,
			Executor:    executor,
		})
		return openai.NewGenerator(client), openai.NewEmbedder(client), cfg.OpenAIEmbedModel
	}
	client := ollama.NewWithOptions(cfg.OllamaURL, cfg.OllamaGenModel, cfg.OllamaEmbedModel, ollama.Options{
		Timeout:  timeout,
		Executor: executor,
	})
	return ollama.NewGenerator(client), ollama.NewEmbedder(client), cfg.OllamaEmbedModel
}

func blendFromConfig(cfg config.Config) []usecase.BlendComponent {
	var blend []usecase.BlendComponent
	for _, c := range []usecase.BlendComponent{
		{Strategy: domain.StrategyHyDE, Weight: cfg.BlendHyDEWeight},
		{Strategy: domain.StrategySelfQuery, Weight: cfg.BlendSelfQueryWeight},
		{Strategy: domain.StrategyFewShot, Weight: cfg.BlendFewShotWeight},
	} {
		if c.Weight > 0 {
			blend = append(blend, c)
		}
	}
	return blend
}

func (a *App) onClose(fn func()) {
	a.closeFns = append(a.closeFns, fn)
}

// Close releases resources in reverse order of acquisition.
func (a *App) Close() {
	for i := len(a.closeFns) - 1; i >= 0; i-- {
		a.closeFns[i]()
	}
	a.closeFns = nil
}
