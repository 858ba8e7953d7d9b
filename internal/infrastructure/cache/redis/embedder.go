package redis

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"errors"
	"fmt"
	"math"

	"github.com/whatsgood/brand-retrieval/internal/core/ports"
	"github.com/whatsgood/brand-retrieval/internal/observability/logging"
)

const keyPrefix = "brand-retrieval:emb:"

type kvStore interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
}

// CacheRecorder counts cache lookups by result ("hit" or "miss").
type CacheRecorder interface {
	RecordEmbeddingCache(result string)
}

// CachedEmbedder decorates an embedder with a key-value cache keyed by model and text.
type CachedEmbedder struct {
	inner    ports.Embedder
	store    kvStore
	model    string
	recorder CacheRecorder
}

var _ ports.Embedder = (*CachedEmbedder)(nil)

func NewCachedEmbedder(inner ports.Embedder, store kvStore, model string, recorder CacheRecorder) *CachedEmbedder {
	return &CachedEmbedder{inner: inner, store: store, model: model, recorder: recorder}
}

func (c *CachedEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	var (
		missTexts []string
		missIdx   []int
	)
	for i, text := range texts {
		if vec, ok := c.lookup(ctx, text); ok {
			out[i] = vec
			continue
		}
		missTexts = append(missTexts, text)
		missIdx = append(missIdx, i)
	}
	if len(missTexts) == 0 {
		return out, nil
	}

	vectors, err := c.inner.Embed(ctx, missTexts)
	if err != nil {
		return nil, err
	}
	if len(vectors) != len(missTexts) {
		return nil, fmt.Errorf("embedding count mismatch: got %d, want %d", len(vectors), len(missTexts))
	}
	for j, vec := range vectors {
		out[missIdx[j]] = vec
		c.put(ctx, missTexts[j], vec)
	}
	return out, nil
}

func (c *CachedEmbedder) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	if vec, ok := c.lookup(ctx, text); ok {
		return vec, nil
	}
	vec, err := c.inner.EmbedQuery(ctx, text)
	if err != nil {
		return nil, err
	}
	c.put(ctx, text, vec)
	return vec, nil
}

func (c *CachedEmbedder) lookup(ctx context.Context, text string) ([]float32, bool) {
	key := c.cacheKey(text)
	data, err := c.store.Get(ctx, key)
	if err != nil || len(data) == 0 {
		if err != nil && !errors.Is(err, ErrKeyNotFound) {
			logging.FromContext(ctx).Warn("embedding_cache_get_failed", "key", key, "error", err)
		}
		c.record("miss")
		return nil, false
	}
	vec, err := decodeVector(data)
	if err != nil {
		logging.FromContext(ctx).Warn("embedding_cache_decode_failed", "key", key, "error", err)
		c.record("miss")
		return nil, false
	}
	c.record("hit")
	return vec, true
}

func (c *CachedEmbedder) put(ctx context.Context, text string, vec []float32) {
	key := c.cacheKey(text)
	if err := c.store.Set(ctx, key, encodeVector(vec)); err != nil {
		logging.FromContext(ctx).Warn("embedding_cache_set_failed", "key", key, "error", err)
	}
}

func (c *CachedEmbedder) record(result string) {
	if c.recorder != nil {
		c.recorder.RecordEmbeddingCache(result)
	}
}

func (c *CachedEmbedder) cacheKey(text string) string {
	h := sha256.Sum256([]byte(c.model + "\x00" + text))
	return keyPrefix + hex.EncodeToString(h[:])
}

func encodeVector(v []float32) []byte {
	buf := make([]byte, len(v)*4)
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return buf
}

func decodeVector(data []byte) ([]float32, error) {
	if len(data)%4 != 0 {
		return nil, fmt.Errorf("invalid cached embedding length %d", len(data))
	}
	vec := make([]float32, len(data)/4)
	for i := range vec {
		vec[i] = math.Float32frombits(binary.LittleEndian.Uint32(data[i*4:]))
	}
	return vec, nil
}
