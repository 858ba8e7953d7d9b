package qdrant

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/whatsgood/brand-retrieval/internal/core/domain"
	"github.com/whatsgood/brand-retrieval/internal/infrastructure/resilience"
)

const scrollPageSize = 256

type Options struct {
	Timeout       time.Duration
	Executor      *resilience.Executor
	ReturnVectors bool
}

// Client talks to the Qdrant REST API. Documents from every namespace share
// one collection and are separated by a payload filter.
type Client struct {
	baseURL       string
	collection    string
	httpClient    *http.Client
	executor      *resilience.Executor
	returnVectors bool

	ensureMu          sync.Mutex
	ensuredCollection bool
	ensuredVectorSize int
}

func New(baseURL, collection string) *Client {
	return NewWithOptions(baseURL, collection, Options{})
}

func NewWithOptions(baseURL, collection string, opts Options) *Client {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &Client{
		baseURL:       strings.TrimRight(baseURL, "/"),
		collection:    collection,
		httpClient:    &http.Client{Timeout: timeout},
		executor:      opts.Executor,
		returnVectors: opts.ReturnVectors,
	}
}

type point struct {
	ID      string         `json:"id"`
	Vector  []float32      `json:"vector"`
	Payload map[string]any `json:"payload"`
}

func (c *Client) Upsert(ctx context.Context, namespace string, docs []domain.Document, vectors [][]float32) error {
	if len(docs) == 0 {
		return nil
	}
	if len(docs) != len(vectors) {
		return fmt.Errorf("documents/vectors mismatch: %d != %d", len(docs), len(vectors))
	}
	if err := c.ensureCollection(ctx, len(vectors[0])); err != nil {
		return err
	}

	points := make([]point, 0, len(docs))
	for i, doc := range docs {
		points = append(points, point{
			ID:      PointID(namespace, doc.ArticleID),
			Vector:  vectors[i],
			Payload: documentPayload(namespace, doc),
		})
	}

	path := fmt.Sprintf("/collections/%s/points?wait=true", c.collection)
	return c.call(ctx, "upsert", http.MethodPut, path, map[string]any{"points": points}, nil)
}

func (c *Client) SimilaritySearch(ctx context.Context, vector []float32, k int, namespace string) ([]domain.DenseMatch, error) {
	if k <= 0 || len(vector) == 0 {
		return nil, nil
	}
	reqBody := map[string]any{
		"vector":       vector,
		"limit":        k,
		"with_payload": true,
		"with_vector":  c.returnVectors,
		"filter":       namespaceFilter(namespace),
	}

	var searchResp struct {
		Result []struct {
			Score   float64        `json:"score"`
			Payload map[string]any `json:"payload"`
			Vector  []float32      `json:"vector"`
		} `json:"result"`
	}
	path := fmt.Sprintf("/collections/%s/points/search", c.collection)
	if err := c.call(ctx, "search", http.MethodPost, path, reqBody, &searchResp); err != nil {
		return nil, err
	}

	out := make([]domain.DenseMatch, 0, len(searchResp.Result))
	for _, r := range searchResp.Result {
		doc := payloadDocument(r.Payload)
		doc.Vector = r.Vector
		// Cosine collections report similarity; convert to distance.
		out = append(out, domain.DenseMatch{Document: doc, Distance: 1 - r.Score})
	}
	return out, nil
}

// Snapshot scrolls the namespace and returns at most limit documents.
func (c *Client) Snapshot(ctx context.Context, namespace string, limit int) ([]domain.Document, error) {
	if limit <= 0 {
		return nil, nil
	}
	out := make([]domain.Document, 0, min(limit, scrollPageSize))
	var offset any
	path := fmt.Sprintf("/collections/%s/points/scroll", c.collection)
	for len(out) < limit {
		reqBody := map[string]any{
			"limit":        min(scrollPageSize, limit-len(out)),
			"with_payload": true,
			"with_vector":  false,
			"filter":       namespaceFilter(namespace),
		}
		if offset != nil {
			reqBody["offset"] = offset
		}

		var scrollResp struct {
			Result struct {
				Points []struct {
					Payload map[string]any `json:"payload"`
				} `json:"points"`
				NextPageOffset any `json:"next_page_offset"`
			} `json:"result"`
		}
		if err := c.call(ctx, "scroll", http.MethodPost, path, reqBody, &scrollResp); err != nil {
			return nil, err
		}
		for _, p := range scrollResp.Result.Points {
			out = append(out, payloadDocument(p.Payload))
		}
		offset = scrollResp.Result.NextPageOffset
		if offset == nil || len(scrollResp.Result.Points) == 0 {
			break
		}
	}
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (c *Client) ensureCollection(ctx context.Context, vectorSize int) error {
	c.ensureMu.Lock()
	if c.ensuredCollection && c.ensuredVectorSize == vectorSize {
		c.ensureMu.Unlock()
		return nil
	}
	c.ensureMu.Unlock()

	reqBody := map[string]any{
		"vectors": map[string]any{
			"size":     vectorSize,
			"distance": "Cosine",
		},
	}
	err := c.call(ctx, "ensure collection", http.MethodPut, "/collections/"+c.collection, reqBody, nil)
	if err != nil && !isStatus(err, http.StatusConflict) {
		return err
	}

	indexBody := map[string]any{"field_name": "namespace", "field_schema": "keyword"}
	err = c.call(ctx, "ensure namespace index", http.MethodPut, fmt.Sprintf("/collections/%s/index?wait=true", c.collection), indexBody, nil)
	if err != nil && !isStatus(err, http.StatusConflict) {
		return err
	}

	c.ensureMu.Lock()
	defer c.ensureMu.Unlock()
	c.ensuredCollection = true
	c.ensuredVectorSize = vectorSize
	return nil
}

func (c *Client) call(ctx context.Context, operation, method, path string, payload any, out any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal %s body: %w", operation, err)
	}
	err = c.executor.Execute(ctx, "qdrant."+strings.ReplaceAll(operation, " ", "_"), func(callCtx context.Context) error {
		return c.do(callCtx, operation, method, path, body, out)
	}, resilience.ClassifyHTTPError)
	return resilience.WrapTemporary("qdrant "+operation, err, resilience.ClassifyHTTPError)
}

func (c *Client) do(ctx context.Context, operation, method, path string, body []byte, out any) error {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create %s request: %w", operation, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("qdrant %s request: %w", operation, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return resilience.NewHTTPStatusError("qdrant", operation, resp)
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s response: %w", operation, err)
	}
	return nil
}

// PointID derives a stable point id so re-indexing an article overwrites it.
func PointID(namespace, articleID string) string {
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte("brand-retrieval/"+namespace+"/"+articleID)).String()
}
