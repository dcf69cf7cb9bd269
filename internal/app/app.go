// Package app initializes and holds the long-lived services shared by the CLI
// commands. Optional backends are opened on first use and released by Close.
package app

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/tgc-rag/internal/config"
	"github.com/JakeFAU/tgc-rag/internal/crawler"
	"github.com/JakeFAU/tgc-rag/internal/openai"
	"github.com/JakeFAU/tgc-rag/internal/publisher"
	pubsubpublisher "github.com/JakeFAU/tgc-rag/internal/publisher/pubsub"
	"github.com/JakeFAU/tgc-rag/internal/storage/gcs"
	"github.com/JakeFAU/tgc-rag/internal/storage/local"
	"github.com/JakeFAU/tgc-rag/internal/storage/memory"
	"github.com/JakeFAU/tgc-rag/internal/storage/postgres"
	"github.com/JakeFAU/tgc-rag/internal/store"
	"github.com/JakeFAU/tgc-rag/internal/vectorstore"
	"github.com/JakeFAU/tgc-rag/internal/vectorstore/sqlite"
)

// App holds the configuration, the logger and every backend opened on its
// behalf.
type App struct {
	cfg    config.Config
	logger *zap.Logger

	mu      sync.Mutex
	closers []closer
}

type closer struct {
	name string
	fn   func() error
}

// New creates an App. No backend is contacted until it is requested.
func New(cfg config.Config, logger *zap.Logger) *App {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &App{cfg: cfg, logger: logger}
}

// Config returns the loaded configuration.
func (a *App) Config() config.Config { return a.cfg }

// Logger returns the shared zap logger.
func (a *App) Logger() *zap.Logger { return a.logger }

// OpenAI builds the provider client. It returns openai.ErrMissingAPIKey when
// no key is configured.
func (a *App) OpenAI() (*openai.Client, error) {
	o := a.cfg.OpenAI
	client, err := openai.New(openai.Config{
		APIKey:         o.APIKey,
		BaseURL:        o.BaseURL,
		EmbeddingModel: o.EmbeddingModel,
		ChatModel:      o.ChatModel,
		Timeout:        time.Duration(o.TimeoutSeconds) * time.Second,
	}, a.logger)
	if err != nil {
		return nil, fmt.Errorf("init openai client: %w", err)
	}
	return client, nil
}

// OpenIndex opens the vector store at index.path. With mustExist a missing
// store fails with vectorstore.ErrStoreNotFound instead of being created.
func (a *App) OpenIndex(ctx context.Context, mustExist bool) (vectorstore.Store, error) {
	s, err := sqlite.Open(ctx, sqlite.Config{
		Dir:          a.cfg.Index.Path,
		MaxBatchSize: a.cfg.Index.MaxBatchSize,
		MustExist:    mustExist,
	}, a.logger)
	if err != nil {
		return nil, fmt.Errorf("open index: %w", err)
	}
	a.track("index", s.Close)
	return s, nil
}

// RunStore returns the ingest-run ledger: Postgres when db.dsn is set,
// otherwise an in-process store that lives as long as the App.
func (a *App) RunStore(ctx context.Context) (store.RunRepository, error) {
	if a.cfg.DB.DSN == "" {
		return memory.NewRunStore(), nil
	}
	rs, err := postgres.NewRunStore(ctx, postgres.RunStoreConfig{
		DSN:      a.cfg.DB.DSN,
		MaxConns: a.cfg.DB.MaxConns,
	})
	if err != nil {
		return nil, fmt.Errorf("open run ledger: %w", err)
	}
	a.track("run ledger", func() error {
		rs.Close()
		return nil
	})
	a.logger.Info("run ledger connected")
	return rs, nil
}

// Archive returns the raw page archive, or nil when archiving is off.
func (a *App) Archive(ctx context.Context) (crawler.BlobStore, error) {
	ac := a.cfg.Archive
	switch ac.Backend {
	case "", config.ArchiveNone:
		return nil, nil
	case config.ArchiveMemory:
		return memory.NewBlobStore(), nil
	case config.ArchiveLocal:
		bs, err := local.New(local.Config{BaseDir: ac.BaseDir})
		if err != nil {
			return nil, fmt.Errorf("open local archive: %w", err)
		}
		return bs, nil
	case config.ArchiveGCS:
		bs, err := gcs.Open(ctx, gcs.Config{Bucket: ac.GCSBucket})
		if err != nil {
			return nil, fmt.Errorf("open gcs archive: %w", err)
		}
		a.track("gcs archive", bs.Close)
		a.logger.Info("archiving pages to gcs", zap.String("bucket", ac.GCSBucket))
		return bs, nil
	default:
		return nil, fmt.Errorf("archive backend %q is not supported", ac.Backend)
	}
}

// Publisher returns the index-rebuilt notifier, or nil when no topic is set.
func (a *App) Publisher(ctx context.Context) (publisher.Publisher, error) {
	ps := a.cfg.PubSub
	if ps.TopicName == "" {
		return nil, nil
	}
	pub, err := pubsubpublisher.Open(ctx, ps.ProjectID, ps.TopicName)
	if err != nil {
		return nil, fmt.Errorf("open pubsub publisher: %w", err)
	}
	a.track("pubsub publisher", pub.Close)
	return pub, nil
}

func (a *App) track(name string, fn func() error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.closers = append(a.closers, closer{name: name, fn: fn})
}

// Close releases opened backends in reverse order and flushes the logger.
func (a *App) Close() error {
	a.mu.Lock()
	closers := a.closers
	a.closers = nil
	a.mu.Unlock()

	var errs []error
	for i := len(closers) - 1; i >= 0; i-- {
		if err := closers[i].fn(); err != nil {
			a.logger.Warn("close failed", zap.String("service", closers[i].name), zap.Error(err))
			errs = append(errs, fmt.Errorf("close %s: %w", closers[i].name, err))
		}
	}
	_ = a.logger.Sync()
	return errors.Join(errs...)
}
