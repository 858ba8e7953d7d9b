package usecase

import (
	"context"
	"strings"
	"time"

	"github.com/whatsgood/brand-retrieval/internal/core/domain"
	"github.com/whatsgood/brand-retrieval/internal/core/ports"
)

const defaultGenerateTimeout = 30 * time.Second

// Strategy retrieves candidates for a brand. Implementations never fail:
// any internal error yields an empty slice.
type Strategy interface {
	Name() domain.StrategyName
	Retrieve(ctx context.Context, brand domain.BrandContext, weights domain.CategoryWeights, limit int) []domain.ScoredCandidate
}

type StrategyConfig struct {
	FallbackWeight  float64
	GenerateTimeout time.Duration
}

func (c StrategyConfig) normalize() StrategyConfig {
	if c.FallbackWeight <= 0 {
		c.FallbackWeight = domain.DefaultFallbackCategoryWeight
	}
	if c.GenerateTimeout <= 0 {
		c.GenerateTimeout = defaultGenerateTimeout
	}
	return c
}

func generateText(ctx context.Context, generator ports.TextGenerator, prompt string, timeout time.Duration) (string, error) {
	genCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	out, err := generator.Generate(genCtx, prompt)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(out), nil
}

// dedupeCandidates keeps the first occurrence of every article ID.
func dedupeCandidates(in []domain.ScoredCandidate) []domain.ScoredCandidate {
	seen := make(map[string]struct{}, len(in))
	out := make([]domain.ScoredCandidate, 0, len(in))
	for _, c := range in {
		if _, dup := seen[c.ArticleID]; dup {
			continue
		}
		seen[c.ArticleID] = struct{}{}
		out = append(out, c)
	}
	return out
}
