package redis

import (
	"context"
	"errors"
	"testing"
)

type memoryStore struct {
	data   map[string][]byte
	getErr error
	sets   int
}

func newMemoryStore() *memoryStore {
	return &memoryStore{data: map[string][]byte{}}
}

func (m *memoryStore) Get(_ context.Context, key string) ([]byte, error) {
	if m.getErr != nil {
		return nil, m.getErr
	}
	v, ok := m.data[key]
	if !ok {
		return nil, ErrKeyNotFound
	}
	return v, nil
}

func (m *memoryStore) Set(_ context.Context, key string, value []byte) error {
	m.sets++
	m.data[key] = value
	return nil
}

type countingEmbedder struct {
	batches [][]string
	queries int
	err     error
}

func (e *countingEmbedder) Embed(_ context.Context, texts []string) ([][]float32, error) {
	if e.err != nil {
		return nil, e.err
	}
	e.batches = append(e.batches, texts)
	out := make([][]float32, len(texts))
	for i, text := range texts {
		out[i] = []float32{float32(len(text)), 0.5}
	}
	return out, nil
}

func (e *countingEmbedder) EmbedQuery(_ context.Context, text string) ([]float32, error) {
	if e.err != nil {
		return nil, e.err
	}
	e.queries++
	return []float32{float32(len(text)), 1}, nil
}

type recorderFake struct {
	counts map[string]int
}

func (r *recorderFake) RecordEmbeddingCache(result string) {
	if r.counts == nil {
		r.counts = map[string]int{}
	}
	r.counts[result]++
}

func TestCachedEmbedderEmbedQueryHitsCacheOnSecondCall(t *testing.T) {
	inner := &countingEmbedder{}
	rec := &recorderFake{}
	c := NewCachedEmbedder(inner, newMemoryStore(), "nomic", rec)

	first, err := c.EmbedQuery(context.Background(), "cloud security")
	if err != nil {
		t.Fatalf("EmbedQuery() error = %v", err)
	}
	second, err := c.EmbedQuery(context.Background(), "cloud security")
	if err != nil {
		t.Fatalf("EmbedQuery() error = %v", err)
	}
	if inner.queries != 1 {
		t.Fatalf("expected one upstream call, got %d", inner.queries)
	}
	if len(second) != len(first) || second[0] != first[0] || second[1] != first[1] {
		t.Fatalf("cached vector mismatch: %v vs %v", second, first)
	}
	if rec.counts["hit"] != 1 || rec.counts["miss"] != 1 {
		t.Fatalf("unexpected cache counts: %+v", rec.counts)
	}
}

func TestCachedEmbedderEmbedOnlyForwardsMisses(t *testing.T) {
	inner := &countingEmbedder{}
	c := NewCachedEmbedder(inner, newMemoryStore(), "nomic", nil)
	ctx := context.Background()

	if _, err := c.Embed(ctx, []string{"a", "bb"}); err != nil {
		t.Fatalf("Embed() error = %v", err)
	}
	out, err := c.Embed(ctx, []string{"bb", "ccc", "a"})
	if err != nil {
		t.Fatalf("Embed() error = %v", err)
	}
	if len(inner.batches) != 2 {
		t.Fatalf("expected two upstream batches, got %d", len(inner.batches))
	}
	if got := inner.batches[1]; len(got) != 1 || got[0] != "ccc" {
		t.Fatalf("expected only the miss to be forwarded, got %v", got)
	}
	want := []float32{2, 3, 1}
	for i, vec := range out {
		if vec[0] != want[i] {
			t.Fatalf("vector %d = %v, want first component %v", i, vec, want[i])
		}
	}
}

func TestCachedEmbedderKeyDependsOnModel(t *testing.T) {
	store := newMemoryStore()
	a := NewCachedEmbedder(&countingEmbedder{}, store, "model-a", nil)
	b := NewCachedEmbedder(&countingEmbedder{}, store, "model-b", nil)
	if a.cacheKey("text") == b.cacheKey("text") {
		t.Fatal("expected different keys for different models")
	}
}

func TestCachedEmbedderFallsThroughOnStoreError(t *testing.T) {
	store := newMemoryStore()
	store.getErr = errors.New("connection refused")
	inner := &countingEmbedder{}
	c := NewCachedEmbedder(inner, store, "nomic", nil)

	if _, err := c.EmbedQuery(context.Background(), "q"); err != nil {
		t.Fatalf("EmbedQuery() error = %v", err)
	}
	if inner.queries != 1 {
		t.Fatalf("expected upstream call, got %d", inner.queries)
	}
}

func TestCachedEmbedderPropagatesInnerError(t *testing.T) {
	inner := &countingEmbedder{err: errors.New("upstream down")}
	store := newMemoryStore()
	c := NewCachedEmbedder(inner, store, "nomic", nil)

	if _, err := c.Embed(context.Background(), []string{"x"}); err == nil {
		t.Fatal("expected error")
	}
	if store.sets != 0 {
		t.Fatalf("expected no cache writes, got %d", store.sets)
	}
}

func TestDecodeVectorRejectsTruncatedData(t *testing.T) {
	if _, err := decodeVector([]byte{1, 2, 3}); err == nil {
		t.Fatal("expected error")
	}
	vec, err := decodeVector(encodeVector([]float32{0.25, -1.5}))
	if err != nil {
		t.Fatalf("decodeVector() error = %v", err)
	}
	if vec[0] != 0.25 || vec[1] != -1.5 {
		t.Fatalf("unexpected vector %v", vec)
	}
}
