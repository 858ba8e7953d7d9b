package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/whatsgood/brand-retrieval/internal/core/domain"
	"github.com/whatsgood/brand-retrieval/internal/core/ports"
	"github.com/whatsgood/brand-retrieval/internal/observability/logging"
)

const (
	DefaultIndexBatchSize   = 100
	DefaultIndexConcurrency = 4
)

// IndexNotifier is told how many documents were written after each
// successful indexing run.
type IndexNotifier interface {
	NotifyIndexUpdated(ctx context.Context, indexed int) error
}

type IndexNotifierFunc func(ctx context.Context, indexed int) error

func (f IndexNotifierFunc) NotifyIndexUpdated(ctx context.Context, indexed int) error {
	return f(ctx, indexed)
}

type IndexConfig struct {
	Namespace   string
	BatchSize   int
	Concurrency int
}

type IndexArticlesUseCase struct {
	articles ports.ArticleStore
	embedder ports.Embedder
	index    ports.VectorIndex
	notifier IndexNotifier
	cfg      IndexConfig
}

func NewIndexArticlesUseCase(
	articles ports.ArticleStore,
	embedder ports.Embedder,
	index ports.VectorIndex,
	notifier IndexNotifier,
	cfg IndexConfig,
) *IndexArticlesUseCase {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = DefaultIndexBatchSize
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = DefaultIndexConcurrency
	}
	return &IndexArticlesUseCase{
		articles: articles,
		embedder: embedder,
		index:    index,
		notifier: notifier,
		cfg:      cfg,
	}
}

func (uc *IndexArticlesUseCase) IndexByID(ctx context.Context, articleID string) error {
	if strings.TrimSpace(articleID) == "" {
		return domain.WrapError(domain.ErrInvalidInput, "index article", errors.New("article id is required"))
	}
	article, err := uc.articles.GetByID(ctx, articleID)
	if err != nil {
		return fmt.Errorf("fetch article by id: %w", err)
	}

	report, err := uc.IndexBatch(ctx, []domain.Article{*article})
	if err != nil {
		return err
	}
	if report.Failed > 0 {
		return domain.WrapError(domain.ErrTemporary, "index article", fmt.Errorf("article %s was not indexed", articleID))
	}
	return nil
}

// IndexBatch embeds and upserts articles in fixed-size batches. Articles with
// an empty summary are skipped. A failed batch is retried one article at a
// time and only the articles that still fail are counted.
func (uc *IndexArticlesUseCase) IndexBatch(ctx context.Context, articles []domain.Article) (ports.IndexReport, error) {
	var report ports.IndexReport

	docs := make([]domain.Document, 0, len(articles))
	for _, article := range articles {
		if strings.TrimSpace(article.Summary) == "" {
			report.Skipped++
			continue
		}
		docs = append(docs, article.Document())
	}
	if len(docs) == 0 {
		return report, nil
	}

	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(uc.cfg.Concurrency)
	for start := 0; start < len(docs); start += uc.cfg.BatchSize {
		end := min(start+uc.cfg.BatchSize, len(docs))
		batch := docs[start:end]
		g.Go(func() error {
			indexed, failed := uc.indexWithFallback(gctx, batch)
			mu.Lock()
			defer mu.Unlock()
			report.Indexed += indexed
			report.Failed += failed
			return nil
		})
	}
	_ = g.Wait()

	if report.Indexed > 0 && uc.notifier != nil {
		if err := uc.notifier.NotifyIndexUpdated(ctx, report.Indexed); err != nil {
			logging.FromContext(ctx).Warn("index_notify_failed", "error", err)
		}
	}
	return report, nil
}

// Reindex pages through every stored article and indexes it.
func (uc *IndexArticlesUseCase) Reindex(ctx context.Context) (ports.IndexReport, error) {
	var total ports.IndexReport
	pageSize := uc.cfg.BatchSize * uc.cfg.Concurrency
	for offset := 0; ; offset += pageSize {
		page, err := uc.articles.ListArticles(ctx, pageSize, offset)
		if err != nil {
			return total, fmt.Errorf("list articles: %w", err)
		}
		if len(page) == 0 {
			break
		}
		report, err := uc.IndexBatch(ctx, page)
		if err != nil {
			return total, err
		}
		total.Indexed += report.Indexed
		total.Skipped += report.Skipped
		total.Failed += report.Failed
		if len(page) < pageSize {
			break
		}
	}
	logging.FromContext(ctx).Info("reindex_completed", "indexed", total.Indexed, "skipped", total.Skipped, "failed", total.Failed)
	return total, nil
}

func (uc *IndexArticlesUseCase) indexWithFallback(ctx context.Context, docs []domain.Document) (indexed, failed int) {
	err := uc.indexDocuments(ctx, docs)
	if err == nil {
		return len(docs), 0
	}
	logger := logging.FromContext(ctx)
	if len(docs) == 1 {
		logger.Error("index_article_failed", "article_id", docs[0].ArticleID, "error", err)
		return 0, 1
	}

	logger.Warn("index_batch_failed", "size", len(docs), "error", err)
	for i := range docs {
		if ctx.Err() != nil {
			return indexed, failed + len(docs) - i
		}
		if err := uc.indexDocuments(ctx, docs[i:i+1]); err != nil {
			logger.Error("index_article_failed", "article_id", docs[i].ArticleID, "error", err)
			failed++
			continue
		}
		indexed++
	}
	return indexed, failed
}

func (uc *IndexArticlesUseCase) indexDocuments(ctx context.Context, docs []domain.Document) error {
	texts := make([]string, 0, len(docs))
	for _, doc := range docs {
		texts = append(texts, doc.Text)
	}
	vectors, err := uc.embedder.Embed(ctx, texts)
	if err != nil {
		return fmt.Errorf("embed documents: %w", err)
	}
	if len(vectors) != len(docs) {
		return fmt.Errorf("embed documents: expected %d vectors, got %d", len(docs), len(vectors))
	}
	if err := uc.index.Upsert(ctx, uc.cfg.Namespace, docs, vectors); err != nil {
		return fmt.Errorf("upsert documents: %w", err)
	}
	return nil
}
