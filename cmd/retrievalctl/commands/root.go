// Package commands defines the Cobra commands of the retrievalctl binary.
package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/whatsgood/brand-retrieval/internal/bootstrap"
	"github.com/whatsgood/brand-retrieval/internal/config"
	"github.com/whatsgood/brand-retrieval/internal/observability/logging"
)

const serviceName = "retrievalctl"

type globals struct {
	configPath string
	cfg        config.Config
	logger     *slog.Logger
}

// NewRootCmd constructs the root command that all subcommands attach to.
func NewRootCmd() *cobra.Command {
	g := &globals{}
	root := &cobra.Command{
		Use:   "retrievalctl",
		Short: "Operate the brand-aware article retrieval engine",
		Long: `retrievalctl runs retrievals against the configured vector index and
article store, imports and reindexes articles, and prints learned strategy
performance.

Configuration is read from the environment, optionally layered on a YAML
file given by --config or RETRIEVAL_CONFIG.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if g.configPath != "" {
				if err := os.Setenv("RETRIEVAL_CONFIG", g.configPath); err != nil {
					return fmt.Errorf("set config path: %w", err)
				}
			}
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			g.cfg = cfg
			g.logger = logging.NewLogger(serviceName, cfg.LogLevel, "text")
			slog.SetDefault(g.logger)
			cmd.SetContext(logging.WithLogger(cmd.Context(), g.logger))
			return nil
		},
	}

	root.PersistentFlags().StringVar(&g.configPath, "config", "", "Path to YAML config file (overrides RETRIEVAL_CONFIG)")

	root.AddCommand(
		newRetrieveCmd(g),
		newSearchCmd(g),
		newImportCmd(g),
		newReindexCmd(g),
		newStrategiesCmd(g),
	)
	return root
}

// withApp wires the application for the duration of one command.
func (g *globals) withApp(ctx context.Context, opts bootstrap.Options, fn func(*bootstrap.App) error) error {
	app, err := bootstrap.New(ctx, g.cfg, opts)
	if err != nil {
		return fmt.Errorf("bootstrap: %w", err)
	}
	defer app.Close()
	return fn(app)
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
