package config

import (
	"os"
	"path/filepath"
	"testing"
)

func writeConfigFile(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "retrieval.yaml")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadIncludesRetrievalDefaults(t *testing.T) {
	t.Setenv("RETRIEVAL_CONFIG", "")
	t.Setenv("HYBRID_VECTOR_WEIGHT", "")
	t.Setenv("MAX_FETCH", "")
	t.Setenv("LLM_PROVIDER", "")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.HybridVectorWeight != 0.7 || cfg.HybridKeywordWeight != 0.3 {
		t.Fatalf("expected default hybrid weights 0.7/0.3, got %v/%v", cfg.HybridVectorWeight, cfg.HybridKeywordWeight)
	}
	if cfg.MaxFetch != 100 {
		t.Fatalf("expected default max fetch 100, got %d", cfg.MaxFetch)
	}
	if cfg.ExampleCap != 500 {
		t.Fatalf("expected default example cap 500, got %d", cfg.ExampleCap)
	}
	if cfg.LLMProvider != "ollama" {
		t.Fatalf("expected default provider ollama, got %q", cfg.LLMProvider)
	}
}

func TestLoadLayersYAMLThenEnv(t *testing.T) {
	path := writeConfigFile(t, `
namespace: tech-news
max_fetch: 60
hybrid_vector_weight: 0.5
hybrid_keyword_weight: 0.5
redis_addr: ${TEST_REDIS_HOST}:6379
`)
	t.Setenv("RETRIEVAL_CONFIG", path)
	t.Setenv("TEST_REDIS_HOST", "cache")
	t.Setenv("MAX_FETCH", "80")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Namespace != "tech-news" {
		t.Fatalf("expected namespace from yaml, got %q", cfg.Namespace)
	}
	if cfg.MaxFetch != 80 {
		t.Fatalf("expected env to override yaml max fetch, got %d", cfg.MaxFetch)
	}
	if cfg.HybridVectorWeight != 0.5 {
		t.Fatalf("expected yaml hybrid weight, got %v", cfg.HybridVectorWeight)
	}
	if cfg.RedisAddr != "cache:6379" {
		t.Fatalf("expected expanded redis addr, got %q", cfg.RedisAddr)
	}
	if cfg.QdrantCollection != "articles" {
		t.Fatalf("expected untouched default collection, got %q", cfg.QdrantCollection)
	}
}

func TestLoadRejectsUnbalancedHybridWeights(t *testing.T) {
	t.Setenv("RETRIEVAL_CONFIG", "")
	t.Setenv("HYBRID_VECTOR_WEIGHT", "0.9")
	t.Setenv("HYBRID_KEYWORD_WEIGHT", "0.3")

	if _, err := Load(); err == nil {
		t.Fatal("expected validation error")
	}
}

func TestLoadRequiresOpenAIKey(t *testing.T) {
	t.Setenv("RETRIEVAL_CONFIG", "")
	t.Setenv("LLM_PROVIDER", "OpenAI")
	t.Setenv("OPENAI_API_KEY", "")

	if _, err := Load(); err == nil {
		t.Fatal("expected missing key error")
	}

	t.Setenv("OPENAI_API_KEY", "sk-test")
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.LLMProvider != "openai" {
		t.Fatalf("expected normalized provider, got %q", cfg.LLMProvider)
	}
}

func TestLoadMissingFileFails(t *testing.T) {
	t.Setenv("RETRIEVAL_CONFIG", filepath.Join(t.TempDir(), "absent.yaml"))

	if _, err := Load(); err == nil {
		t.Fatal("expected read error")
	}
}

func TestMustEnvIntFallsBackOnGarbage(t *testing.T) {
	t.Setenv("INDEX_CONCURRENCY", "many")
	if got := mustEnvInt("INDEX_CONCURRENCY", 4); got != 4 {
		t.Fatalf("expected fallback 4, got %d", got)
	}
}
