package qdrant

import (
	"context"
	"encoding/json"
	"math"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/whatsgood/brand-retrieval/internal/core/domain"
)

func TestUpsertEnsuresCollectionOncePerVectorSize(t *testing.T) {
	var ensureCalls, indexCalls int32
	var upserted []map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodPut && r.URL.Path == "/collections/articles":
			atomic.AddInt32(&ensureCalls, 1)
			w.WriteHeader(http.StatusCreated)
		case r.Method == http.MethodPut && r.URL.Path == "/collections/articles/index":
			atomic.AddInt32(&indexCalls, 1)
			w.WriteHeader(http.StatusOK)
		case r.Method == http.MethodPut && r.URL.Path == "/collections/articles/points":
			var body struct {
				Points []map[string]any `json:"points"`
			}
			if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
				t.Errorf("decode upsert: %v", err)
			}
			upserted = append(upserted, body.Points...)
			_, _ = w.Write([]byte(`{"status":"ok"}`))
		default:
			http.NotFound(w, r)
		}
	}))
	defer server.Close()

	client := New(server.URL, "articles")
	docs := []domain.Document{{ArticleID: "a1", Text: "summary", Category: "technology", Metadata: domain.DocumentMetadata{Title: "T"}}}
	vectors := [][]float32{{0.1, 0.2}}

	for i := 0; i < 2; i++ {
		if err := client.Upsert(context.Background(), "brand-news", docs, vectors); err != nil {
			t.Fatalf("Upsert() #%d error = %v", i, err)
		}
	}
	if atomic.LoadInt32(&ensureCalls) != 1 || atomic.LoadInt32(&indexCalls) != 1 {
		t.Fatalf("expected collection and index ensured once, got %d/%d", ensureCalls, indexCalls)
	}
	if len(upserted) != 2 {
		t.Fatalf("expected 2 upserted points, got %d", len(upserted))
	}
	if upserted[0]["id"] != upserted[1]["id"] || upserted[0]["id"] != PointID("brand-news", "a1") {
		t.Fatalf("expected stable point id, got %v and %v", upserted[0]["id"], upserted[1]["id"])
	}
	payload := upserted[0]["payload"].(map[string]any)
	if payload["namespace"] != "brand-news" || payload["article_id"] != "a1" || payload["title"] != "T" {
		t.Fatalf("unexpected payload %v", payload)
	}
}

func TestUpsertTreatsExistingCollectionAsReady(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/collections/articles", "/collections/articles/index":
			http.Error(w, "already exists", http.StatusConflict)
		case "/collections/articles/points":
			_, _ = w.Write([]byte(`{"status":"ok"}`))
		default:
			http.NotFound(w, r)
		}
	}))
	defer server.Close()

	client := New(server.URL, "articles")
	err := client.Upsert(context.Background(), "ns", []domain.Document{{ArticleID: "a"}}, [][]float32{{1}})
	if err != nil {
		t.Fatalf("Upsert() error = %v", err)
	}
}

func TestEnsureCollectionIncludesResponseBodyInError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPut && r.URL.Path == "/collections/articles" {
			http.Error(w, "bad vector size", http.StatusBadRequest)
			return
		}
		http.NotFound(w, r)
	}))
	defer server.Close()

	client := New(server.URL, "articles")
	err := client.Upsert(context.Background(), "ns", []domain.Document{{ArticleID: "a"}}, [][]float32{{0.1}})
	if err == nil || !strings.Contains(err.Error(), "bad vector size") {
		t.Fatalf("expected response body in error, got %v", err)
	}
}

func TestSimilaritySearchFiltersNamespaceAndConvertsScore(t *testing.T) {
	var captured map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/collections/articles/points/search" {
			http.NotFound(w, r)
			return
		}
		if err := json.NewDecoder(r.Body).Decode(&captured); err != nil {
			t.Errorf("decode search: %v", err)
		}
		_, _ = w.Write([]byte(`{"result":[
			{"id":"x","score":0.92,"payload":{"article_id":"a1","text":"chips","category":"technology","title":"Chips","summary_word_count":12},"vector":[0.5,0.5]},
			{"id":"y","score":0.40,"payload":{"article_id":"a2","text":"care"}}
		]}`))
	}))
	defer server.Close()

	client := NewWithOptions(server.URL, "articles", Options{ReturnVectors: true})
	matches, err := client.SimilaritySearch(context.Background(), []float32{0.1, 0.2}, 5, "brand-news")
	if err != nil {
		t.Fatalf("SimilaritySearch() error = %v", err)
	}
	if len(matches) != 2 {
		t.Fatalf("expected 2 matches, got %d", len(matches))
	}
	if math.Abs(matches[0].Distance-0.08) > 1e-9 {
		t.Fatalf("expected distance 0.08, got %v", matches[0].Distance)
	}
	if matches[0].Document.Metadata.SummaryWordCount != 12 || len(matches[0].Document.Vector) != 2 {
		t.Fatalf("unexpected document %+v", matches[0].Document)
	}
	if matches[1].Document.Category != domain.CategoryUnknown {
		t.Fatalf("expected unknown category fallback, got %q", matches[1].Document.Category)
	}
	filter, _ := json.Marshal(captured["filter"])
	if !strings.Contains(string(filter), `"brand-news"`) || captured["with_vector"] != true {
		t.Fatalf("unexpected search request %v", captured)
	}
}

func TestSnapshotScrollsUntilLimit(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/collections/articles/points/scroll" {
			http.NotFound(w, r)
			return
		}
		var body map[string]any
		_ = json.NewDecoder(r.Body).Decode(&body)
		if atomic.AddInt32(&calls, 1) == 1 {
			if _, ok := body["offset"]; ok {
				t.Errorf("first page must not send offset")
			}
			_, _ = w.Write([]byte(`{"result":{"points":[{"payload":{"article_id":"a1","text":"one"}},{"payload":{"article_id":"a2","text":"two"}}],"next_page_offset":"p2"}}`))
			return
		}
		if body["offset"] != "p2" {
			t.Errorf("expected offset p2, got %v", body["offset"])
		}
		_, _ = w.Write([]byte(`{"result":{"points":[{"payload":{"article_id":"a3","text":"three"}}],"next_page_offset":null}}`))
	}))
	defer server.Close()

	client := New(server.URL, "articles")
	docs, err := client.Snapshot(context.Background(), "ns", 10)
	if err != nil {
		t.Fatalf("Snapshot() error = %v", err)
	}
	if len(docs) != 3 || docs[2].ArticleID != "a3" {
		t.Fatalf("unexpected snapshot %+v", docs)
	}
	if atomic.LoadInt32(&calls) != 2 {
		t.Fatalf("expected 2 scroll calls, got %d", calls)
	}
}

func TestSearchServerErrorIsTemporary(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "overloaded", http.StatusServiceUnavailable)
	}))
	defer server.Close()

	client := New(server.URL, "articles")
	_, err := client.SimilaritySearch(context.Background(), []float32{1}, 3, "ns")
	if !domain.IsKind(err, domain.ErrTemporary) {
		t.Fatalf("expected temporary error, got %v", err)
	}
}
