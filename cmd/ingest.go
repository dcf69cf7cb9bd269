package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/JakeFAU/tgc-rag/internal/chunker"
	"github.com/JakeFAU/tgc-rag/internal/clock/system"
	"github.com/JakeFAU/tgc-rag/internal/crawler"
	collyfetcher "github.com/JakeFAU/tgc-rag/internal/fetcher/colly"
	"github.com/JakeFAU/tgc-rag/internal/hash/sha256"
	uuidgen "github.com/JakeFAU/tgc-rag/internal/id/uuid"
	"github.com/JakeFAU/tgc-rag/internal/index"
	"github.com/JakeFAU/tgc-rag/internal/ingest"
	"github.com/JakeFAU/tgc-rag/internal/parser"
	"github.com/JakeFAU/tgc-rag/internal/policy/ratelimit"
	"github.com/JakeFAU/tgc-rag/internal/progress"
	"github.com/JakeFAU/tgc-rag/internal/progress/sinks"
	"github.com/JakeFAU/tgc-rag/internal/sitemap"
)

const hubCloseTimeout = 10 * time.Second

type ingestOptions struct {
	limit        int
	sitemapLimit int
	workers      int
	dryRun       bool
}

func newIngestCmd() *cobra.Command {
	var opts ingestOptions
	cmd := &cobra.Command{
		Use:   "ingest",
		Short: "Crawl the site, then chunk, embed and index its articles",
		Long: `Resolves article URLs from the site's sitemaps, fetches and parses each
page, splits articles into overlapping chunks, embeds them and rebuilds the
vector index. Ctrl+C stops the crawl and saves what was gathered; a second
Ctrl+C exits without saving.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runIngest(cmd, opts)
		},
	}
	cmd.Flags().IntVar(&opts.limit, "limit", 0, "max article URLs to crawl (0 = all)")
	cmd.Flags().IntVar(&opts.sitemapLimit, "sitemap-limit", 0,
		"max sitemap documents to fetch (default: limit/25 clamped to [80, 400] when --limit is set)")
	cmd.Flags().IntVar(&opts.workers, "workers", 0, "concurrent fetches; 1 crawls sequentially with a politeness delay")
	cmd.Flags().BoolVar(&opts.dryRun, "dry-run", false, "parse and chunk only; skip embedding and indexing")
	return cmd
}

func runIngest(cmd *cobra.Command, opts ingestOptions) error {
	ctx := cmd.Context()
	a, err := resolveApp(ctx)
	if err != nil {
		return err
	}
	cfg := a.Config()
	logger := a.Logger()
	if !opts.dryRun && !cfg.HasOpenAIKey() {
		return ingest.ErrIndexingUnavailable
	}
	workers := cfg.Crawler.Workers
	if opts.workers > 0 {
		workers = opts.workers
	}

	runs, err := a.RunStore(ctx)
	if err != nil {
		return err
	}
	promSink, err := sinks.NewPrometheusSink(prometheus.NewRegistry())
	if err != nil {
		return fmt.Errorf("init prometheus sink: %w", err)
	}
	hub := progress.NewHub(progress.Config{Logger: logger},
		sinks.NewLogSink(logger),
		promSink,
		sinks.NewStoreSink(runs, logger),
	)
	defer closeHub(hub, logger)

	fetcher := collyfetcher.New(collyfetcher.Config{
		UserAgent:   cfg.Site.UserAgent,
		Timeout:     cfg.FetchTimeout(),
		MaxBodySize: cfg.HTTP.MaxBodyMB << 20,
	})
	clock := system.New()
	crawlOpts := []crawler.Option{
		crawler.WithLogger(logger),
		crawler.WithEmitter(hub),
		crawler.WithClock(clock),
		crawler.WithPacerFactory(func(interval time.Duration) crawler.Pacer {
			return ratelimit.NewPacer(interval)
		}),
	}
	archive, err := a.Archive(ctx)
	if err != nil {
		return err
	}
	if archive != nil {
		crawlOpts = append(crawlOpts, crawler.WithArchive(archive, sha256.New()))
	}

	deps := ingest.Deps{
		Resolver: sitemap.NewResolver(fetcher, sitemap.Config{Workers: cfg.Sitemap.Workers}, logger),
		Crawler: crawler.New(crawler.Config{
			Workers:       workers,
			RequestDelay:  cfg.RequestDelay(),
			ProgressEvery: cfg.Crawler.ProgressEvery,
			ArchivePrefix: cfg.Archive.Prefix,
		}, fetcher, parser.New(), crawlOpts...),
		Chunker:  chunker.New(chunker.Config{}),
		Emitter:  hub,
		Clock:    clock,
		NewRunID: uuidgen.NewGenerator().NewRunID,
		Logger:   logger,
	}
	if !opts.dryRun {
		client, err := a.OpenAI()
		if err != nil {
			return err
		}
		vs, err := a.OpenIndex(ctx, false)
		if err != nil {
			return err
		}
		pub, err := a.Publisher(ctx)
		if err != nil {
			return err
		}
		deps.Embedder = client
		deps.Index = index.NewBuilder(vs, cfg.Index.Collection, logger)
		deps.Publisher = pub
	}

	pipeline, err := ingest.New(ingest.Config{
		BaseURL:        cfg.Site.BaseURL,
		Limit:          opts.limit,
		SitemapLimit:   opts.sitemapLimit,
		EmbedBatchSize: cfg.Index.EmbedBatchSize,
		DryRun:         opts.dryRun,
	}, deps)
	if err != nil {
		return err
	}

	sigs := make(chan os.Signal, 2)
	signal.Notify(sigs, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigs)
	runCtx, saveCtx, stop := ingest.WatchSignals(ctx, sigs, logger)
	defer stop()

	logger.Info("ingest starting",
		zap.String("base_url", cfg.Site.BaseURL),
		zap.Int("limit", opts.limit),
		zap.Int("workers", workers),
		zap.Bool("dry_run", opts.dryRun),
	)
	res, err := pipeline.Run(runCtx, saveCtx)
	if err != nil {
		return fmt.Errorf("ingest run %s: %w", res.RunID, err)
	}
	printIngestSummary(cmd.OutOrStdout(), res)
	return nil
}

func closeHub(hub *progress.Hub, logger *zap.Logger) {
	ctx, cancel := context.WithTimeout(context.Background(), hubCloseTimeout)
	defer cancel()
	if err := hub.Close(ctx); err != nil {
		logger.Warn("progress hub close failed", zap.Error(err))
	}
}

func printIngestSummary(w io.Writer, res ingest.Result) {
	switch res.Status {
	case ingest.StatusCompleted:
		if res.Indexed == 0 {
			fmt.Fprintf(w, "No articles to index (%d URLs processed).\n", res.Processed)
		} else {
			fmt.Fprintf(w, "Done. Indexed %d articles, %d chunks.\n", res.Articles, res.Indexed)
		}
	case ingest.StatusDryRun:
		fmt.Fprintf(w, "Dry run: parsed %d articles into %d chunks from %d URLs.\n", res.Articles, res.Chunks, res.URLs)
	case ingest.StatusCancelled:
		if res.Checkpoint.Saved {
			fmt.Fprintf(w, "Interrupted. Saved %d articles, %d chunks.\n", res.Checkpoint.Articles, res.Checkpoint.Chunks)
		} else {
			fmt.Fprintf(w, "Interrupted. Nothing saved: %s.\n", res.Checkpoint.Reason)
		}
	}
	fmt.Fprintf(w, "Run %s finished in %s.\n", res.RunID, res.Elapsed.Round(time.Millisecond))
}
