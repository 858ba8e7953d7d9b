package usecase

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/whatsgood/brand-retrieval/internal/core/domain"
)

type vectorIndexFake struct {
	mu        sync.Mutex
	matches   []domain.DenseMatch
	byVector  map[float32][]domain.DenseMatch
	snapshot  []domain.Document
	searchErr error
	upsertErr error
	failIDs   map[string]struct{}
	searchKs  []int
	upserts   [][]domain.Document
	namespace string
}

func (f *vectorIndexFake) Upsert(_ context.Context, namespace string, docs []domain.Document, _ [][]float32) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.namespace = namespace
	if f.upsertErr != nil {
		return f.upsertErr
	}
	for _, doc := range docs {
		if _, ok := f.failIDs[doc.ArticleID]; ok {
			return fmt.Errorf("rejected point %s", doc.ArticleID)
		}
	}
	f.upserts = append(f.upserts, docs)
	return nil
}

func (f *vectorIndexFake) SimilaritySearch(_ context.Context, vector []float32, k int, namespace string) ([]domain.DenseMatch, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.searchKs = append(f.searchKs, k)
	f.namespace = namespace
	if f.searchErr != nil {
		return nil, f.searchErr
	}
	matches := f.matches
	if len(vector) > 0 {
		if m, ok := f.byVector[vector[0]]; ok {
			matches = m
		}
	}
	if len(matches) > k {
		matches = matches[:k]
	}
	return append([]domain.DenseMatch(nil), matches...), nil
}

func (f *vectorIndexFake) Snapshot(_ context.Context, _ string, limit int) ([]domain.Document, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.searchErr != nil {
		return nil, f.searchErr
	}
	docs := f.snapshot
	if len(docs) > limit {
		docs = docs[:limit]
	}
	return docs, nil
}

func (f *vectorIndexFake) searchCalls() []int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]int(nil), f.searchKs...)
}

type embedderFake struct {
	mu      sync.Mutex
	vectors map[string][]float32
	err     error
	queries []string
}

func (f *embedderFake) Embed(_ context.Context, texts []string) ([][]float32, error) {
	if f.err != nil {
		return nil, f.err
	}
	out := make([][]float32, 0, len(texts))
	for _, text := range texts {
		out = append(out, f.vectorFor(text))
	}
	return out, nil
}

func (f *embedderFake) EmbedQuery(_ context.Context, text string) ([]float32, error) {
	f.mu.Lock()
	f.queries = append(f.queries, text)
	f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	return f.vectorFor(text), nil
}

func (f *embedderFake) vectorFor(text string) []float32 {
	f.mu.Lock()
	defer f.mu.Unlock()
	for prefix, vector := range f.vectors {
		if strings.HasPrefix(text, prefix) {
			return vector
		}
	}
	return []float32{0, 1}
}

func (f *embedderFake) lastQuery() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.queries) == 0 {
		return ""
	}
	return f.queries[len(f.queries)-1]
}

type generatorFake struct {
	mu      sync.Mutex
	out     string
	err     error
	prompts []string
}

func (f *generatorFake) Generate(_ context.Context, prompt string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.prompts = append(f.prompts, prompt)
	if f.err != nil {
		return "", f.err
	}
	return f.out, nil
}

type articleStoreFake struct {
	articles map[string]domain.Article
	order    []string
	err      error
}

func newArticleStoreFake(articles ...domain.Article) *articleStoreFake {
	f := &articleStoreFake{articles: make(map[string]domain.Article, len(articles))}
	for _, a := range articles {
		f.articles[a.ArticleID] = a
		f.order = append(f.order, a.ArticleID)
	}
	return f
}

func (f *articleStoreFake) GetByID(_ context.Context, id string) (*domain.Article, error) {
	if f.err != nil {
		return nil, f.err
	}
	a, ok := f.articles[id]
	if !ok {
		return nil, domain.ErrArticleNotFound
	}
	return &a, nil
}

func (f *articleStoreFake) FetchByIDs(_ context.Context, ids []string) ([]domain.Article, error) {
	if f.err != nil {
		return nil, f.err
	}
	out := make([]domain.Article, 0, len(ids))
	for _, id := range ids {
		if a, ok := f.articles[id]; ok {
			out = append(out, a)
		}
	}
	return out, nil
}

func (f *articleStoreFake) ListArticles(_ context.Context, limit, offset int) ([]domain.Article, error) {
	if f.err != nil {
		return nil, f.err
	}
	if offset >= len(f.order) {
		return nil, nil
	}
	end := min(offset+limit, len(f.order))
	out := make([]domain.Article, 0, end-offset)
	for _, id := range f.order[offset:end] {
		out = append(out, f.articles[id])
	}
	return out, nil
}

type stateStoreFake struct {
	saved []domain.LearningSnapshot
	err   error
}

func (f *stateStoreFake) Load(context.Context) (*domain.LearningSnapshot, error) {
	if len(f.saved) == 0 {
		return nil, nil
	}
	snap := f.saved[len(f.saved)-1]
	return &snap, nil
}

func (f *stateStoreFake) Save(_ context.Context, snap domain.LearningSnapshot) error {
	if f.err != nil {
		return f.err
	}
	f.saved = append(f.saved, snap)
	return nil
}

func match(id, category, text string, distance float64) domain.DenseMatch {
	return domain.DenseMatch{
		Document: domain.Document{ArticleID: id, Category: category, Text: text},
		Distance: distance,
	}
}

func longText(words int) string {
	parts := make([]string, words)
	for i := range parts {
		parts[i] = "insight"
	}
	return strings.Join(parts, " ")
}
