// Package ingest runs sitemap resolution, crawling, chunking, embedding and
// indexing as one cancellable run with an interrupt checkpoint.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/JakeFAU/tgc-rag/internal/chunker"
	"github.com/JakeFAU/tgc-rag/internal/crawler"
	"github.com/JakeFAU/tgc-rag/internal/progress"
	"github.com/JakeFAU/tgc-rag/internal/publisher"
)

// ErrIndexingUnavailable is returned by New when a non-dry run has no
// embedder or index writer, usually because no API key is configured.
var ErrIndexingUnavailable = errors.New("indexing needs OPENAI_API_KEY; set it or use --dry-run")

// Status is the terminal state of a run.
type Status string

// Run statuses.
const (
	StatusCompleted Status = "completed"
	StatusCancelled Status = "cancelled"
	StatusDryRun    Status = "dry_run"
	StatusFailed    Status = "failed"
)

const defaultEmbedBatchSize = 100

// URLResolver discovers candidate article URLs.
type URLResolver interface {
	Resolve(ctx context.Context, baseURL string, maxFetches int) ([]string, error)
}

// ArticleCrawler fetches and parses URLs.
type ArticleCrawler interface {
	Crawl(ctx context.Context, runID uuid.UUID, urls []string) crawler.Result
}

// Splitter chunks articles.
type Splitter interface {
	SplitAll(articles []crawler.Article) []chunker.Chunk
}

// BatchEmbedder embeds many texts per call.
type BatchEmbedder interface {
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
}

// IndexWriter persists embedded chunks.
type IndexWriter interface {
	Add(ctx context.Context, chunks []chunker.Chunk, embeddings [][]float32) error
	ClearAndAdd(ctx context.Context, chunks []chunker.Chunk, embeddings [][]float32) error
	Collection() string
}

// Config holds per-run options.
type Config struct {
	BaseURL string
	// Limit caps the URLs crawled; 0 means no cap.
	Limit int
	// SitemapLimit caps sitemap documents fetched; 0 derives it from Limit.
	SitemapLimit   int
	EmbedBatchSize int
	DryRun         bool
}

// SitemapLimitFor returns the sitemap budget used when only a URL limit is
// given: limit/25 clamped to [80, 400].
func SitemapLimitFor(limit int) int {
	if limit <= 0 {
		return 0
	}
	return min(400, max(80, limit/25))
}

// Deps are the collaborators of a Pipeline. Embedder, Index and Publisher may
// be nil.
type Deps struct {
	Resolver  URLResolver
	Crawler   ArticleCrawler
	Chunker   Splitter
	Embedder  BatchEmbedder
	Index     IndexWriter
	Publisher publisher.Publisher
	Emitter   progress.Emitter
	Clock     crawler.Clock
	NewRunID  func() (uuid.UUID, error)
	Logger    *zap.Logger
}

// Checkpoint describes the interrupt save.
type Checkpoint struct {
	Attempted bool
	Saved     bool
	Articles  int
	Chunks    int
	// Reason explains why nothing was saved.
	Reason string
}

// Result summarises a run.
type Result struct {
	RunID      uuid.UUID
	Status     Status
	URLs       int
	Processed  int
	Articles   int
	Chunks     int
	Indexed    int
	Checkpoint Checkpoint
	Elapsed    time.Duration
}

// Pipeline runs ingests.
type Pipeline struct {
	cfg             Config
	deps            Deps
	indexingEnabled bool
	logger          *zap.Logger
}

// New validates deps and returns a Pipeline.
func New(cfg Config, deps Deps) (*Pipeline, error) {
	if deps.Resolver == nil || deps.Crawler == nil || deps.Chunker == nil {
		return nil, errors.New("ingest: resolver, crawler and chunker are required")
	}
	if cfg.EmbedBatchSize <= 0 {
		cfg.EmbedBatchSize = defaultEmbedBatchSize
	}
	indexingEnabled := !cfg.DryRun && deps.Embedder != nil && deps.Index != nil
	if !cfg.DryRun && !indexingEnabled {
		return nil, ErrIndexingUnavailable
	}
	if deps.Emitter == nil {
		deps.Emitter = progress.Discard
	}
	if deps.Clock == nil {
		deps.Clock = utcClock{}
	}
	if deps.NewRunID == nil {
		deps.NewRunID = uuid.NewV7
	}
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	return &Pipeline{
		cfg:             cfg,
		deps:            deps,
		indexingEnabled: indexingEnabled,
		logger:          deps.Logger.Named("ingest"),
	}, nil
}

// Run executes one ingest. Cancelling ctx stops discovery and crawling and
// triggers a checkpoint of the articles gathered so far; the checkpoint runs
// on saveCtx, so cancelling saveCtx abandons it. Cancellation is reported
// through Result.Status, not as an error.
func (p *Pipeline) Run(ctx, saveCtx context.Context) (Result, error) {
	start := time.Now()
	runID, err := p.deps.NewRunID()
	if err != nil {
		return Result{}, fmt.Errorf("new run id: %w", err)
	}
	res := Result{RunID: runID}
	log := p.logger.With(zap.String("run_id", runID.String()))
	p.emit(runID, progress.Event{Stage: progress.StageRunStart})

	finish := func(status Status) (Result, error) {
		res.Status = status
		res.Elapsed = time.Since(start)
		log.Info("ingest finished",
			zap.String("status", string(status)),
			zap.Int("urls", res.URLs),
			zap.Int("articles", res.Articles),
			zap.Int("chunks", res.Chunks),
			zap.Int("indexed", res.Indexed),
			zap.Duration("elapsed", res.Elapsed),
		)
		return res, nil
	}

	sitemapLimit := p.cfg.SitemapLimit
	if sitemapLimit <= 0 {
		sitemapLimit = SitemapLimitFor(p.cfg.Limit)
	}
	log.Info("fetching sitemap urls", zap.String("base_url", p.cfg.BaseURL), zap.Int("sitemap_limit", sitemapLimit))
	urls, err := p.deps.Resolver.Resolve(ctx, p.cfg.BaseURL, sitemapLimit)
	if err != nil {
		if ctx.Err() != nil {
			res.Checkpoint = p.checkpoint(saveCtx, runID, nil)
			p.emit(runID, progress.Event{Stage: progress.StageRunCancelled, Dur: time.Since(start)})
			return finish(StatusCancelled)
		}
		return p.fail(runID, res, start, fmt.Errorf("resolve sitemap: %w", err))
	}
	if p.cfg.Limit > 0 && len(urls) > p.cfg.Limit {
		urls = urls[:p.cfg.Limit]
	}
	res.URLs = len(urls)
	p.emit(runID, progress.Event{Stage: progress.StageSitemapDone, Items: int64(len(urls))})
	log.Info("content urls resolved", zap.Int("urls", len(urls)))

	crawled := p.deps.Crawler.Crawl(ctx, runID, urls)
	res.Processed = crawled.Processed
	res.Articles = len(crawled.Articles)
	if crawled.Cancelled {
		return p.cancelled(saveCtx, runID, res, start, crawled.Articles, finish)
	}
	if len(crawled.Articles) == 0 {
		log.Info("no articles to index")
		p.emit(runID, progress.Event{Stage: progress.StageRunDone, Dur: time.Since(start), Note: noteFor(p.cfg.DryRun)})
		return finish(statusFor(p.cfg.DryRun))
	}

	chunks := p.deps.Chunker.SplitAll(crawled.Articles)
	res.Chunks = len(chunks)
	log.Info("articles chunked", zap.Int("articles", res.Articles), zap.Int("chunks", res.Chunks))

	if !p.indexingEnabled {
		log.Info("dry run: skipping embed and index")
		p.emit(runID, progress.Event{Stage: progress.StageRunDone, Dur: time.Since(start), Note: progress.NoteDryRun})
		return finish(StatusDryRun)
	}

	embeddings, err := p.embedAll(ctx, chunks)
	if err == nil {
		err = p.deps.Index.ClearAndAdd(ctx, chunks, embeddings)
	}
	if err != nil {
		if ctx.Err() != nil {
			return p.cancelled(saveCtx, runID, res, start, crawled.Articles, finish)
		}
		return p.fail(runID, res, start, err)
	}
	res.Indexed = len(chunks)
	p.emit(runID, progress.Event{Stage: progress.StageIndexed, Items: int64(len(chunks))})
	p.announce(ctx, runID, res)
	p.emit(runID, progress.Event{Stage: progress.StageRunDone, Dur: time.Since(start)})
	return finish(StatusCompleted)
}

func (p *Pipeline) cancelled(saveCtx context.Context, runID uuid.UUID, res Result, start time.Time,
	articles []crawler.Article, finish func(Status) (Result, error),
) (Result, error) {
	p.logger.Warn("interrupted: saving partial progress", zap.Int("articles", len(articles)))
	res.Checkpoint = p.checkpoint(saveCtx, runID, articles)
	res.Indexed = 0
	if res.Checkpoint.Saved {
		res.Indexed = res.Checkpoint.Chunks
	}
	p.emit(runID, progress.Event{Stage: progress.StageRunCancelled, Dur: time.Since(start), Note: res.Checkpoint.Reason})
	return finish(StatusCancelled)
}

// checkpoint chunks, embeds and adds articles without clearing the
// collection first.
func (p *Pipeline) checkpoint(saveCtx context.Context, runID uuid.UUID, articles []crawler.Article) Checkpoint {
	cp := Checkpoint{Attempted: true, Articles: len(articles)}
	switch {
	case len(articles) == 0:
		cp.Reason = "no articles to save"
	case !p.indexingEnabled:
		cp.Reason = "dry run or no API key; nothing embedded"
	}
	if cp.Reason != "" {
		p.logger.Info("checkpoint skipped", zap.String("reason", cp.Reason))
		return cp
	}

	chunks := p.deps.Chunker.SplitAll(articles)
	cp.Chunks = len(chunks)
	embeddings, err := p.embedAll(saveCtx, chunks)
	if err == nil {
		err = p.deps.Index.Add(saveCtx, chunks, embeddings)
	}
	if err != nil {
		if saveCtx.Err() != nil {
			cp.Reason = "save abandoned"
		} else {
			cp.Reason = "save failed: " + err.Error()
		}
		p.logger.Warn("checkpoint not saved", zap.String("reason", cp.Reason), zap.Error(err))
		return cp
	}
	cp.Saved = true
	p.emit(runID, progress.Event{Stage: progress.StageCheckpoint, Items: int64(len(chunks))})
	p.logger.Info("checkpoint saved", zap.Int("articles", cp.Articles), zap.Int("chunks", cp.Chunks))
	return cp
}

func (p *Pipeline) embedAll(ctx context.Context, chunks []chunker.Chunk) ([][]float32, error) {
	out := make([][]float32, 0, len(chunks))
	batch := p.cfg.EmbedBatchSize
	for start := 0; start < len(chunks); start += batch {
		end := min(start+batch, len(chunks))
		texts := make([]string, end-start)
		for i, c := range chunks[start:end] {
			texts[i] = c.Text
		}
		vecs, err := p.deps.Embedder.EmbedBatch(ctx, texts)
		if err != nil {
			return nil, fmt.Errorf("embed chunks %d-%d: %w", start, end, err)
		}
		if len(vecs) != len(texts) {
			return nil, fmt.Errorf("embed chunks %d-%d: got %d vectors", start, end, len(vecs))
		}
		out = append(out, vecs...)
		p.logger.Debug("embedded", zap.Int("done", end), zap.Int("total", len(chunks)))
	}
	return out, nil
}

func (p *Pipeline) announce(ctx context.Context, runID uuid.UUID, res Result) {
	if p.deps.Publisher == nil {
		return
	}
	msgID, err := p.deps.Publisher.Publish(ctx, publisher.IndexRebuilt{
		RunID:      runID.String(),
		Status:     string(StatusCompleted),
		Articles:   res.Articles,
		Chunks:     res.Indexed,
		Collection: p.deps.Index.Collection(),
	})
	if err != nil {
		p.logger.Warn("index rebuilt notification failed", zap.Error(err))
		return
	}
	p.logger.Info("index rebuilt notification sent", zap.String("message_id", msgID))
}

func (p *Pipeline) fail(runID uuid.UUID, res Result, start time.Time, err error) (Result, error) {
	res.Status = StatusFailed
	res.Elapsed = time.Since(start)
	p.emit(runID, progress.Event{Stage: progress.StageRunError, Dur: res.Elapsed, Note: err.Error()})
	p.logger.Error("ingest failed", zap.String("run_id", runID.String()), zap.Error(err))
	return res, err
}

func (p *Pipeline) emit(runID uuid.UUID, evt progress.Event) {
	evt.RunID = progress.UUIDToBytes(runID)
	evt.TS = p.deps.Clock.Now()
	p.deps.Emitter.Emit(evt)
}

func noteFor(dryRun bool) string {
	if dryRun {
		return progress.NoteDryRun
	}
	return ""
}

func statusFor(dryRun bool) Status {
	if dryRun {
		return StatusDryRun
	}
	return StatusCompleted
}

type utcClock struct{}

func (utcClock) Now() time.Time { return time.Now().UTC() }
