package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/JakeFAU/tgc-rag/internal/api"
	uuidgen "github.com/JakeFAU/tgc-rag/internal/id/uuid"
	"github.com/JakeFAU/tgc-rag/internal/metrics"
	"github.com/JakeFAU/tgc-rag/internal/rag"
	"github.com/JakeFAU/tgc-rag/internal/vectorstore"
)

const shutdownTimeout = 10 * time.Second

func newServeCmd() *cobra.Command {
	var port int
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the question-answering API",
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := resolveApp(cmd.Context())
			if err != nil {
				return err
			}
			cfg := a.Config()
			if port > 0 {
				cfg.Server.Port = port
			}
			handler, err := buildHandler(cmd.Context(), a)
			if err != nil {
				return err
			}
			srv := &http.Server{
				Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
				Handler:           handler,
				ReadHeaderTimeout: 5 * time.Second,
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return listenAndServe(ctx, srv, a.Logger())
		},
	}
	cmd.Flags().IntVar(&port, "port", 0, "listen port (overrides server.port)")
	return cmd
}

// buildHandler wires the API. A missing index or API key degrades the
// affected endpoints instead of failing startup.
func buildHandler(ctx context.Context, a App) (http.Handler, error) {
	cfg := a.Config()
	logger := a.Logger()
	metrics.Init()

	index := rag.NewLazyCollection(func(ctx context.Context) (vectorstore.Store, error) {
		return a.OpenIndex(ctx, true)
	}, cfg.Index.Collection)

	deps := api.Deps{
		Index:      index,
		RequestIDs: uuidgen.NewGenerator(),
		Logger:     logger,
	}
	client, err := a.OpenAI()
	if err != nil {
		logger.Warn("question answering disabled", zap.Error(err))
	} else {
		deps.Retriever = rag.NewRetriever(index, client, logger)
		deps.Answerer = rag.NewAnswerer(client, 0)
	}
	if cfg.DB.DSN != "" {
		runs, err := a.RunStore(ctx)
		if err != nil {
			return nil, err
		}
		deps.Runs = runs
	}
	return api.NewServer(cfg, deps).Handler(), nil
}

func listenAndServe(ctx context.Context, srv *http.Server, logger *zap.Logger) error {
	errCh := make(chan error, 1)
	go func() {
		logger.Info("http server starting", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err, ok := <-errCh:
		if ok {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info("http server shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}
