package commands

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/whatsgood/brand-retrieval/internal/bootstrap"
	"github.com/whatsgood/brand-retrieval/internal/core/domain"
	"github.com/whatsgood/brand-retrieval/internal/core/ports"
)

func newRetrieveCmd(g *globals) *cobra.Command {
	var (
		brand   domain.BrandContext
		weights []string
		limit   int
		mode    string
	)
	cmd := &cobra.Command{
		Use:   "retrieve",
		Short: "Retrieve articles for a brand profile",
		Example: `  retrievalctl retrieve --industry fintech --values "trust, transparency" \
    --audience "small business owners" --weight finance=0.9 --weight technology=0.6`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			categoryWeights, err := parseWeights(weights)
			if err != nil {
				return err
			}
			req := ports.RetrievalRequest{Brand: brand, Weights: categoryWeights, Limit: limit}
			return g.withApp(cmd.Context(), bootstrap.Options{SkipQueue: true}, func(app *bootstrap.App) error {
				var (
					result *domain.RetrievalResult
					err    error
				)
				switch mode {
				case "blend":
					result, err = app.Retrieval.Blend(cmd.Context(), req)
				case "adaptive":
					result, err = app.Retrieval.Adaptive(cmd.Context(), req)
				default:
					return fmt.Errorf("unknown mode %q (want blend or adaptive)", mode)
				}
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), result)
			})
		},
	}
	cmd.Flags().StringVar(&brand.BrandID, "brand-id", "", "Brand identifier used in logs")
	cmd.Flags().StringVar(&brand.Industry, "industry", "", "Brand industry")
	cmd.Flags().StringVar(&brand.Values, "values", "", "Brand values")
	cmd.Flags().StringVar(&brand.Audience, "audience", "", "Target audience")
	cmd.Flags().StringArrayVar(&weights, "weight", nil, "Category weight as category=value (repeatable)")
	cmd.Flags().IntVar(&limit, "limit", 10, "Maximum number of results")
	cmd.Flags().StringVar(&mode, "mode", "blend", "Retrieval mode: blend or adaptive")
	return cmd
}

func newSearchCmd(g *globals) *cobra.Command {
	var (
		query         string
		weights       []string
		limit         int
		vectorWeight  float64
		keywordWeight float64
	)
	cmd := &cobra.Command{
		Use:   "search",
		Short: "Run a hybrid dense and BM25 search for a free-text query",
		RunE: func(cmd *cobra.Command, _ []string) error {
			categoryWeights, err := parseWeights(weights)
			if err != nil {
				return err
			}
			req := ports.HybridRequest{Query: query, Weights: categoryWeights, Limit: limit}
			if cmd.Flags().Changed("vector-weight") || cmd.Flags().Changed("keyword-weight") {
				req.Hybrid = &domain.HybridWeights{Vector: vectorWeight, Keyword: keywordWeight}
			}
			return g.withApp(cmd.Context(), bootstrap.Options{SkipQueue: true}, func(app *bootstrap.App) error {
				if _, err := app.Retrieval.RebuildLexicalIndex(cmd.Context()); err != nil {
					g.logger.Warn("lexical_rebuild_failed", "error", err)
				}
				result, err := app.Retrieval.Hybrid(cmd.Context(), req)
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), result)
			})
		},
	}
	cmd.Flags().StringVar(&query, "query", "", "Query text (required)")
	cmd.Flags().StringArrayVar(&weights, "weight", nil, "Category weight as category=value (repeatable)")
	cmd.Flags().IntVar(&limit, "limit", 10, "Maximum number of results")
	cmd.Flags().Float64Var(&vectorWeight, "vector-weight", 0.7, "Dense score weight")
	cmd.Flags().Float64Var(&keywordWeight, "keyword-weight", 0.3, "BM25 score weight")
	_ = cmd.MarkFlagRequired("query")
	return cmd
}

// parseWeights turns category=value pairs into category weights.
func parseWeights(pairs []string) (domain.CategoryWeights, error) {
	weights := make(domain.CategoryWeights, len(pairs))
	for _, pair := range pairs {
		category, raw, ok := strings.Cut(pair, "=")
		category = strings.ToLower(strings.TrimSpace(category))
		if !ok || category == "" {
			return nil, fmt.Errorf("invalid weight %q (want category=value)", pair)
		}
		value, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
		if err != nil {
			return nil, fmt.Errorf("invalid weight value in %q: %w", pair, err)
		}
		weights[category] = value
	}
	if err := weights.Validate(); err != nil {
		return nil, err
	}
	return weights, nil
}
