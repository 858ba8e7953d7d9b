package ports

import (
	"context"

	"github.com/whatsgood/brand-retrieval/internal/core/domain"
)

// VectorIndex stores documents with their embeddings. SimilaritySearch reports
// distance where smaller means closer; similarity is 1 - distance.
type VectorIndex interface {
	Upsert(ctx context.Context, namespace string, docs []domain.Document, vectors [][]float32) error
	SimilaritySearch(ctx context.Context, vector []float32, k int, namespace string) ([]domain.DenseMatch, error)
	Snapshot(ctx context.Context, namespace string, limit int) ([]domain.Document, error)
}

type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
}

type TextGenerator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

type ArticleStore interface {
	GetByID(ctx context.Context, articleID string) (*domain.Article, error)
	FetchByIDs(ctx context.Context, articleIDs []string) ([]domain.Article, error)
	ListArticles(ctx context.Context, limit, offset int) ([]domain.Article, error)
}

type LearningStateStore interface {
	Load(ctx context.Context) (*domain.LearningSnapshot, error)
	Save(ctx context.Context, snapshot domain.LearningSnapshot) error
}

type MessageQueue interface {
	PublishArticleReady(ctx context.Context, articleID string) error
	SubscribeArticleReady(ctx context.Context, handler func(context.Context, string) error) error
	PublishIndexUpdated(ctx context.Context, indexed int) error
	SubscribeIndexUpdated(ctx context.Context, handler func(context.Context, int) error) error
}
