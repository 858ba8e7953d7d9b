package usecase

import (
	"context"
	"errors"
	"math"
	"strings"
	"testing"
	"time"

	"github.com/whatsgood/brand-retrieval/internal/core/domain"
)

func testBrand() domain.BrandContext {
	return domain.BrandContext{
		BrandID:  "brand-1",
		Industry: "Consumer health technology",
		Values:   "Privacy first wearable devices",
		Audience: "Active adults tracking their wellbeing",
	}
}

func TestHyDEStrategyRejectsShortGeneration(t *testing.T) {
	index := &vectorIndexFake{matches: threeDocCorpus()}
	generator := &generatorFake{out: "Too short to be useful."}
	strategy := NewHyDEStrategy(generator, NewDenseRetriever(index, &embedderFake{}, "articles", 0), StrategyConfig{}, nil)

	out := strategy.Retrieve(context.Background(), testBrand(), nil, 5)
	if len(out) != 0 {
		t.Fatalf("expected empty result for low quality generation, got %d", len(out))
	}
	if len(index.searchCalls()) != 0 {
		t.Fatalf("expected no dense search")
	}
}

func TestHyDEStrategyGenerationError(t *testing.T) {
	index := &vectorIndexFake{matches: threeDocCorpus()}
	generator := &generatorFake{err: errors.New("model unavailable")}
	strategy := NewHyDEStrategy(generator, NewDenseRetriever(index, &embedderFake{}, "articles", 0), StrategyConfig{}, nil)

	if out := strategy.Retrieve(context.Background(), testBrand(), nil, 5); len(out) != 0 {
		t.Fatalf("expected empty result, got %d", len(out))
	}
}

func TestHyDEStrategyScoresSimilarityTimesCategoryWeight(t *testing.T) {
	index := &vectorIndexFake{matches: threeDocCorpus()}
	generator := &generatorFake{out: longText(40)}
	strategy := NewHyDEStrategy(generator, NewDenseRetriever(index, &embedderFake{}, "articles", 0), StrategyConfig{GenerateTimeout: time.Second}, nil)

	weights := domain.CategoryWeights{"healthcare": 1.0, "technology": 0.2}
	out := strategy.Retrieve(context.Background(), testBrand(), weights, 2)
	if len(out) != 2 {
		t.Fatalf("expected 2 results, got %d", len(out))
	}
	if out[0].ArticleID != "health-1" {
		t.Fatalf("expected health-1 first, got %s", out[0].ArticleID)
	}
	if math.Abs(out[0].FinalScore-0.5) > 1e-9 {
		t.Fatalf("expected final score 0.5, got %v", out[0].FinalScore)
	}
	if out[0].SourceStrategy != domain.StrategyHyDE {
		t.Fatalf("expected hyde source, got %s", out[0].SourceStrategy)
	}
	if calls := index.searchCalls(); len(calls) != 1 || calls[0] != 4 {
		t.Fatalf("expected one search with k=4, got %v", calls)
	}
	if !strings.Contains(generator.prompts[0], "Primary categories: healthcare") {
		t.Fatalf("expected primary categories in prompt, got %q", generator.prompts[0])
	}
}

func TestSelfQueryStrategyRanksByCategoryWeightOnly(t *testing.T) {
	index := &vectorIndexFake{matches: threeDocCorpus()}
	embedder := &embedderFake{}
	generator := &generatorFake{out: "wearable health " + longText(80)}
	strategy := NewSelfQueryStrategy(generator, NewDenseRetriever(index, embedder, "articles", 0), StrategyConfig{}, nil)

	weights := domain.CategoryWeights{"sports": 0.9, "technology": 0.3}
	out := strategy.Retrieve(context.Background(), testBrand(), weights, 3)
	if len(out) != 3 {
		t.Fatalf("expected 3 results, got %d", len(out))
	}
	if out[0].ArticleID != "sports-1" {
		t.Fatalf("expected sports-1 first despite lowest similarity, got %s", out[0].ArticleID)
	}
	if out[0].FinalScore != 0.9 {
		t.Fatalf("expected final score equal to category weight, got %v", out[0].FinalScore)
	}
	if words := domain.WordCount(embedder.lastQuery()); words != 50 {
		t.Fatalf("expected phrase truncated to 50 words, got %d", words)
	}
	if calls := index.searchCalls(); calls[0] != 9 {
		t.Fatalf("expected fetch of limit*3, got %v", calls)
	}
}

func TestSelfQueryStrategyGenerationFailure(t *testing.T) {
	index := &vectorIndexFake{matches: threeDocCorpus()}
	strategy := NewSelfQueryStrategy(&generatorFake{err: errors.New("timeout")}, NewDenseRetriever(index, &embedderFake{}, "articles", 0), StrategyConfig{}, nil)
	if out := strategy.Retrieve(context.Background(), testBrand(), nil, 3); len(out) != 0 {
		t.Fatalf("expected empty result, got %d", len(out))
	}

	empty := NewSelfQueryStrategy(&generatorFake{out: "   "}, NewDenseRetriever(index, &embedderFake{}, "articles", 0), StrategyConfig{}, nil)
	if out := empty.Retrieve(context.Background(), testBrand(), nil, 3); len(out) != 0 {
		t.Fatalf("expected empty result for blank phrase, got %d", len(out))
	}
}

func TestFewShotStrategyWithoutExamplesUsesCategoryWeight(t *testing.T) {
	index := &vectorIndexFake{matches: threeDocCorpus()}
	state := NewLearningState(0)
	strategy := NewFewShotStrategy(&generatorFake{out: "health wearables"}, NewDenseRetriever(index, &embedderFake{}, "articles", 0), state, StrategyConfig{}, nil)

	weights := domain.CategoryWeights{"healthcare": 0.9, "technology": 0.6}
	out := strategy.Retrieve(context.Background(), testBrand(), weights, 3)
	if len(out) != 3 {
		t.Fatalf("expected 3 results, got %d", len(out))
	}
	if out[0].ArticleID != "health-1" || out[0].FinalScore != 0.9 {
		t.Fatalf("expected health-1 with score 0.9, got %s %v", out[0].ArticleID, out[0].FinalScore)
	}
	if out[2].FinalScore != domain.DefaultFallbackCategoryWeight {
		t.Fatalf("expected fallback score for sports, got %v", out[2].FinalScore)
	}
}

func TestFewShotStrategyPrefersCandidatesLikeExamples(t *testing.T) {
	matches := []domain.DenseMatch{
		match("tech-a", "technology", "alpha devices", 0.2),
		match("tech-b", "technology", "beta devices", 0.3),
	}
	index := &vectorIndexFake{matches: matches}
	embedder := &embedderFake{vectors: map[string][]float32{
		"alpha": {1, 0},
		"beta":  {0, 1},
	}}
	state := NewLearningState(0)
	state.AddExample(domain.Example{
		BrandDescription: "another wearables brand",
		MatchedContent:   domain.ScoredCandidate{ArticleID: "old", Category: "technology"},
		Embedding:        []float32{0, 1},
		RelevanceScore:   0.9,
	})

	strategy := NewFewShotStrategy(&generatorFake{out: "devices"}, NewDenseRetriever(index, embedder, "articles", 0), state, StrategyConfig{}, nil)
	weights := domain.CategoryWeights{"technology": 0.8}
	out := strategy.Retrieve(context.Background(), testBrand(), weights, 2)
	if len(out) != 2 {
		t.Fatalf("expected 2 results, got %d", len(out))
	}
	if out[0].ArticleID != "tech-b" {
		t.Fatalf("expected tech-b closest to example, got %s", out[0].ArticleID)
	}
	want := 0.8 * (0.7*1 + 0.3*0.8)
	if math.Abs(out[0].FinalScore-want) > 1e-9 {
		t.Fatalf("expected final score %v, got %v", want, out[0].FinalScore)
	}
}

func TestStrategiesReturnEmptyForZeroLimit(t *testing.T) {
	dense := NewDenseRetriever(&vectorIndexFake{matches: threeDocCorpus()}, &embedderFake{}, "articles", 0)
	generator := &generatorFake{out: longText(30)}
	strategies := []Strategy{
		NewHyDEStrategy(generator, dense, StrategyConfig{}, nil),
		NewSelfQueryStrategy(generator, dense, StrategyConfig{}, nil),
		NewFewShotStrategy(generator, dense, NewLearningState(0), StrategyConfig{}, nil),
	}
	for _, s := range strategies {
		if out := s.Retrieve(context.Background(), testBrand(), nil, 0); len(out) != 0 {
			t.Fatalf("%s: expected empty result, got %d", s.Name(), len(out))
		}
	}
	if len(generator.prompts) != 0 {
		t.Fatalf("expected no generation for zero limit")
	}
}

func TestStrategiesReturnEmptyForEmptyCorpus(t *testing.T) {
	index := &vectorIndexFake{}
	dense := NewDenseRetriever(index, &embedderFake{}, "articles", 0)
	generator := &generatorFake{out: longText(30)}

	withExamples := NewLearningState(0)
	withExamples.AddExample(domain.Example{
		BrandDescription: "wearables brand",
		MatchedContent:   domain.ScoredCandidate{ArticleID: "old", Category: "healthcare"},
		Embedding:        []float32{1, 0},
		RelevanceScore:   0.9,
	})

	strategies := []Strategy{
		NewHyDEStrategy(generator, dense, StrategyConfig{}, nil),
		NewSelfQueryStrategy(generator, dense, StrategyConfig{}, nil),
		NewFewShotStrategy(generator, dense, NewLearningState(0), StrategyConfig{}, nil),
		NewFewShotStrategy(generator, dense, withExamples, StrategyConfig{}, nil),
	}
	weights := domain.CategoryWeights{"healthcare": 0.9}
	for _, s := range strategies {
		out := s.Retrieve(context.Background(), testBrand(), weights, 5)
		if out == nil || len(out) != 0 {
			t.Fatalf("%s: expected non-nil empty result, got %#v", s.Name(), out)
		}
	}
	if calls := index.searchCalls(); len(calls) != len(strategies) {
		t.Fatalf("expected every strategy to search the empty index, got %v", calls)
	}
}

func TestCheckHypotheticalDocument(t *testing.T) {
	err := checkHypotheticalDocument("Too short to be useful.")
	if !domain.IsKind(err, domain.ErrLowQualityGeneration) {
		t.Fatalf("expected ErrLowQualityGeneration, got %v", err)
	}
	if err := checkHypotheticalDocument(longText(hydeMinWords)); err != nil {
		t.Fatalf("expected %d words to pass, got %v", hydeMinWords, err)
	}
}
