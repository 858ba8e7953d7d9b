package usecase

import (
	"context"
	"time"

	"github.com/whatsgood/brand-retrieval/internal/core/domain"
	"github.com/whatsgood/brand-retrieval/internal/core/ports"
	"github.com/whatsgood/brand-retrieval/internal/observability/logging"
)

const defaultDenseTimeout = 10 * time.Second

type DenseHit struct {
	Document   domain.Document
	Similarity float64
}

// DenseRetriever adapts a VectorIndex into similarity-scored hits. Every
// failure is logged and reported as an empty result.
type DenseRetriever struct {
	index     ports.VectorIndex
	embedder  ports.Embedder
	namespace string
	timeout   time.Duration
}

func NewDenseRetriever(index ports.VectorIndex, embedder ports.Embedder, namespace string, timeout time.Duration) *DenseRetriever {
	if timeout <= 0 {
		timeout = defaultDenseTimeout
	}
	return &DenseRetriever{
		index:     index,
		embedder:  embedder,
		namespace: namespace,
		timeout:   timeout,
	}
}

func (r *DenseRetriever) SearchText(ctx context.Context, text string, k int) []DenseHit {
	if k <= 0 {
		return nil
	}
	vector, ok := r.Embed(ctx, text)
	if !ok {
		return nil
	}
	return r.SearchVector(ctx, vector, k)
}

func (r *DenseRetriever) SearchVector(ctx context.Context, vector []float32, k int) []DenseHit {
	if k <= 0 || len(vector) == 0 {
		return nil
	}

	searchCtx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	matches, err := r.index.SimilaritySearch(searchCtx, vector, k, r.namespace)
	if err != nil {
		logging.FromContext(ctx).Warn("dense_search_failed", "namespace", r.namespace, "k", k, "error", err)
		return nil
	}

	hits := make([]DenseHit, 0, len(matches))
	for _, match := range matches {
		hits = append(hits, DenseHit{
			Document:   match.Document,
			Similarity: min(max(1-match.Distance, 0), 1),
		})
	}
	return hits
}

// Embed returns the query embedding for text, or false when it cannot be produced.
func (r *DenseRetriever) Embed(ctx context.Context, text string) ([]float32, bool) {
	if text == "" {
		return nil, false
	}
	embedCtx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	vector, err := r.embedder.EmbedQuery(embedCtx, text)
	if err != nil {
		logging.FromContext(ctx).Warn("dense_embed_failed", "error", err)
		return nil, false
	}
	if len(vector) == 0 {
		return nil, false
	}
	return vector, true
}

// Snapshot lists up to limit documents from the namespace for lexical indexing.
func (r *DenseRetriever) Snapshot(ctx context.Context, limit int) ([]domain.Document, error) {
	docs, err := r.index.Snapshot(ctx, r.namespace, limit)
	if err != nil {
		return nil, domain.WrapError(domain.ErrUpstreamUnavailable, "snapshot vector index", err)
	}
	return docs, nil
}
