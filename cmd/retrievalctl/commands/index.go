package commands

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/whatsgood/brand-retrieval/internal/bootstrap"
	"github.com/whatsgood/brand-retrieval/internal/core/domain"
)

func newImportCmd(g *globals) *cobra.Command {
	var (
		file string
		sync bool
	)
	cmd := &cobra.Command{
		Use:   "import",
		Short: "Import articles from a JSON file into the article store",
		Long: `Reads a JSON array of articles (article_id, title, summary, category,
source, url, published_at), upserts them into the article store and queues each
one for indexing. With --sync the articles are embedded and indexed in-process
instead of being queued.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			articles, err := readArticles(file)
			if err != nil {
				return err
			}
			return g.withApp(cmd.Context(), bootstrap.Options{}, func(app *bootstrap.App) error {
				ctx := cmd.Context()
				for _, article := range articles {
					if err := app.Articles.Upsert(ctx, article); err != nil {
						return err
					}
				}
				if sync {
					report, err := app.Indexer.IndexBatch(ctx, articles)
					if err != nil {
						return err
					}
					return printJSON(cmd.OutOrStdout(), report)
				}
				for _, article := range articles {
					if err := app.Queue.PublishArticleReady(ctx, article.ArticleID); err != nil {
						return fmt.Errorf("queue article %s: %w", article.ArticleID, err)
					}
				}
				return printJSON(cmd.OutOrStdout(), map[string]int{"queued": len(articles)})
			})
		},
	}
	cmd.Flags().StringVar(&file, "file", "", "Path to a JSON array of articles (required)")
	cmd.Flags().BoolVar(&sync, "sync", false, "Index in-process instead of queueing")
	_ = cmd.MarkFlagRequired("file")
	return cmd
}

func newReindexCmd(g *globals) *cobra.Command {
	return &cobra.Command{
		Use:   "reindex",
		Short: "Re-embed and upsert every stored article",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return g.withApp(cmd.Context(), bootstrap.Options{}, func(app *bootstrap.App) error {
				report, err := app.Indexer.Reindex(cmd.Context())
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), report)
			})
		},
	}
}

func newStrategiesCmd(g *globals) *cobra.Command {
	return &cobra.Command{
		Use:   "strategies",
		Short: "Print learned strategy performance and hybrid weights",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return g.withApp(cmd.Context(), bootstrap.Options{SkipQueue: true}, func(app *bootstrap.App) error {
				return printJSON(cmd.OutOrStdout(), map[string]any{
					"strategies":     app.Feedback.Performance(),
					"hybrid_weights": app.State.HybridWeights(),
					"examples":       app.State.ExampleCount(),
				})
			})
		},
	}
}

func readArticles(path string) ([]domain.Article, error) {
	f, err := os.Open(filepath.Clean(path))
	if err != nil {
		return nil, fmt.Errorf("open articles file: %w", err)
	}
	defer f.Close()
	return decodeArticles(f)
}

func decodeArticles(r io.Reader) ([]domain.Article, error) {
	var articles []domain.Article
	if err := json.NewDecoder(r).Decode(&articles); err != nil {
		return nil, fmt.Errorf("decode articles: %w", err)
	}
	for i, article := range articles {
		if article.ArticleID == "" {
			return nil, fmt.Errorf("article %d has no article_id", i)
		}
	}
	return articles, nil
}
