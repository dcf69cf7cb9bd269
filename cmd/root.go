// Package cmd defines the tgcrag CLI: ingest builds the article index, serve
// answers questions over HTTP, inspect prints what the index holds.
package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/JakeFAU/tgc-rag/internal/app"
	"github.com/JakeFAU/tgc-rag/internal/config"
	"github.com/JakeFAU/tgc-rag/internal/crawler"
	"github.com/JakeFAU/tgc-rag/internal/logging"
	"github.com/JakeFAU/tgc-rag/internal/openai"
	"github.com/JakeFAU/tgc-rag/internal/publisher"
	"github.com/JakeFAU/tgc-rag/internal/store"
	"github.com/JakeFAU/tgc-rag/internal/vectorstore"
)

// appKeyType is the key for storing the App in the command context.
type appKeyType string

const appKey appKeyType = "app"

// App is the service container the subcommands use. Tests can swap the
// factory for one that returns a fake.
type App interface {
	Config() config.Config
	Logger() *zap.Logger
	OpenAI() (*openai.Client, error)
	OpenIndex(ctx context.Context, mustExist bool) (vectorstore.Store, error)
	RunStore(ctx context.Context) (store.RunRepository, error)
	Archive(ctx context.Context) (crawler.BlobStore, error)
	Publisher(ctx context.Context) (publisher.Publisher, error)
	Close() error
}

var newApp = func(cfg config.Config, logger *zap.Logger) App {
	return app.New(cfg, logger)
}

func newRootCmd() *cobra.Command {
	var cfgFile string
	cmd := &cobra.Command{
		Use:           "tgcrag",
		Short:         "Question answering over The Gospel Coalition articles.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(cfgFile)
			if err != nil {
				return err
			}
			logger, err := logging.New(logging.Options{
				Development: cfg.Logging.Development,
				Level:       cfg.Logging.Level,
			})
			if err != nil {
				return fmt.Errorf("init logger: %w", err)
			}
			zap.ReplaceGlobals(logger)

			ctx := context.WithValue(cmd.Context(), appKey, newApp(cfg, logger))
			cmd.SetContext(ctx)
			return nil
		},
		PersistentPostRunE: func(cmd *cobra.Command, _ []string) error {
			if a, ok := cmd.Context().Value(appKey).(App); ok && a != nil {
				return a.Close()
			}
			return nil
		},
	}

	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (YAML); env TGCRAG_* overrides")

	cmd.AddCommand(newIngestCmd())
	cmd.AddCommand(newServeCmd())
	cmd.AddCommand(newInspectCmd())
	return cmd
}

// Execute runs the CLI and exits non-zero on failure.
func Execute() {
	if err := newRootCmd().ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func resolveApp(ctx context.Context) (App, error) {
	a, ok := ctx.Value(appKey).(App)
	if !ok || a == nil {
		return nil, errors.New("application services not initialized")
	}
	return a, nil
}
