package crawler

import (
	"bytes"
	"context"
	"errors"
	"path"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/JakeFAU/tgc-rag/internal/metrics"
	"github.com/JakeFAU/tgc-rag/internal/progress"
)

const (
	defaultWorkers       = 20
	defaultProgressEvery = 50
)

// Config tunes a Crawler.
type Config struct {
	// Workers > 1 selects the concurrent pool; 1 selects paced sequential mode.
	Workers int
	// RequestDelay is the minimum gap between sequential requests.
	RequestDelay time.Duration
	// ProgressEvery logs a progress line after this many completions.
	ProgressEvery int
	// ArchivePrefix is the key prefix for raw HTML when an archive is set.
	ArchivePrefix string
}

// PacerFactory builds the Pacer for one sequential crawl.
type PacerFactory func(interval time.Duration) Pacer

// Option customizes a Crawler.
type Option func(*Crawler)

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) Option {
	return func(c *Crawler) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithEmitter sends per-URL FETCH_DONE events to e.
func WithEmitter(e progress.Emitter) Option {
	return func(c *Crawler) {
		if e != nil {
			c.emitter = e
		}
	}
}

// WithArchive stores each fetched page body under prefix/<sha256(url)>.html.
func WithArchive(store BlobStore, hasher Hasher) Option {
	return func(c *Crawler) {
		c.archive = store
		c.hasher = hasher
	}
}

// WithClock overrides the event timestamp source.
func WithClock(clock Clock) Option {
	return func(c *Crawler) {
		if clock != nil {
			c.clock = clock
		}
	}
}

// WithPacerFactory sets how sequential crawls build their Pacer.
func WithPacerFactory(f PacerFactory) Option {
	return func(c *Crawler) {
		c.newPacer = f
	}
}

// Crawler fetches and parses article pages.
type Crawler struct {
	cfg      Config
	fetcher  Fetcher
	parser   Parser
	newPacer PacerFactory
	archive  BlobStore
	hasher   Hasher
	clock    Clock
	emitter  progress.Emitter
	logger   *zap.Logger
}

// New constructs a Crawler.
func New(cfg Config, fetcher Fetcher, parser Parser, opts ...Option) *Crawler {
	if cfg.Workers <= 0 {
		cfg.Workers = defaultWorkers
	}
	if cfg.ProgressEvery <= 0 {
		cfg.ProgressEvery = defaultProgressEvery
	}
	if cfg.ArchivePrefix == "" {
		cfg.ArchivePrefix = "pages"
	}
	c := &Crawler{
		cfg:     cfg,
		fetcher: fetcher,
		parser:  parser,
		clock:   wallClock{},
		emitter: progress.Discard,
		logger:  zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.logger = c.logger.Named("crawler")
	return c
}

type outcome struct {
	url     string
	article Article
	kind    progress.Outcome
	// aborted marks a fetch cut short by cancellation; it is not counted.
	aborted bool
}

// Crawl processes urls and returns what it gathered. It never returns an
// error: per-URL failures are counted, and cancellation sets Result.Cancelled.
func (c *Crawler) Crawl(ctx context.Context, runID uuid.UUID, urls []string) Result {
	start := time.Now()
	t := &tally{total: len(urls), every: c.cfg.ProgressEvery, logger: c.logger}

	if c.cfg.Workers == 1 {
		c.crawlSequential(ctx, runID, urls, t)
	} else {
		c.crawlConcurrent(ctx, runID, urls, t)
	}

	res := Result{
		Articles:  t.articles,
		Total:     len(urls),
		Processed: t.processed,
		Failed:    t.failed,
		Cancelled: ctx.Err() != nil && t.processed < len(urls),
		Elapsed:   time.Since(start),
	}
	c.logger.Info("crawl finished",
		zap.Int("processed", res.Processed),
		zap.Int("total", res.Total),
		zap.Int("articles", len(res.Articles)),
		zap.Int("failed", res.Failed),
		zap.Bool("cancelled", res.Cancelled),
		zap.Duration("elapsed", res.Elapsed),
	)
	return res
}

func (c *Crawler) crawlSequential(ctx context.Context, runID uuid.UUID, urls []string, t *tally) {
	var pacer Pacer = noPacer{}
	if c.newPacer != nil {
		pacer = c.newPacer(c.cfg.RequestDelay)
	}
	for _, u := range urls {
		if ctx.Err() != nil {
			return
		}
		if err := pacer.Wait(ctx, u); err != nil {
			return
		}
		out := c.process(ctx, runID, u)
		if out.aborted {
			return
		}
		t.record(out)
	}
}

func (c *Crawler) crawlConcurrent(ctx context.Context, runID uuid.UUID, urls []string, t *tally) {
	workers := c.cfg.Workers
	if workers > len(urls) {
		workers = len(urls)
	}
	jobs := make(chan string)
	results := make(chan outcome, workers)

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for u := range jobs {
				if ctx.Err() != nil {
					return
				}
				results <- c.process(ctx, runID, u)
			}
		}()
	}

	go func() {
		defer close(jobs)
		for _, u := range urls {
			select {
			case <-ctx.Done():
				return
			case jobs <- u:
			}
		}
	}()

	go func() {
		wg.Wait()
		close(results)
	}()

	for out := range results {
		if out.aborted {
			continue
		}
		t.record(out)
	}
}

// process fetches and parses one URL.
func (c *Crawler) process(ctx context.Context, runID uuid.UUID, rawURL string) outcome {
	out := outcome{url: rawURL, kind: progress.OutcomeFailed}
	evt := progress.Event{
		RunID: progress.UUIDToBytes(runID),
		Stage: progress.StageFetchDone,
		Site:  SiteLabel(rawURL),
		URL:   rawURL,
	}

	resp, err := c.fetcher.Fetch(ctx, FetchRequest{URL: rawURL})
	if err != nil {
		if ctx.Err() != nil {
			out.aborted = true
			return out
		}
		var statusErr *StatusError
		if errors.As(err, &statusErr) {
			evt.StatusClass = progress.ClassifyStatus(statusErr.StatusCode)
		} else {
			evt.StatusClass = progress.StatusOther
		}
		c.logger.Debug("fetch failed", zap.String("url", rawURL), zap.Error(err))
		c.finish(evt, out, 0)
		return out
	}
	evt.StatusClass = progress.ClassifyStatus(resp.StatusCode)
	evt.Bytes = int64(len(resp.Body))
	evt.Dur = resp.Duration

	c.archivePage(ctx, rawURL, resp.Body)

	article, ok := c.parser.Parse(resp.Body, rawURL)
	if ok {
		out.article = article
		out.kind = progress.OutcomeArticle
	} else {
		out.kind = progress.OutcomeRejected
	}
	c.finish(evt, out, len(resp.Body))
	return out
}

func (c *Crawler) finish(evt progress.Event, out outcome, size int) {
	evt.Outcome = out.kind
	evt.TS = c.clock.Now()
	c.emitter.Emit(evt)
	metrics.ObserveFetch(out.url, string(out.kind), size)
}

func (c *Crawler) archivePage(ctx context.Context, rawURL string, body []byte) {
	if c.archive == nil || c.hasher == nil {
		return
	}
	digest, err := c.hasher.Hash([]byte(rawURL))
	if err != nil {
		c.logger.Warn("archive key failed", zap.String("url", rawURL), zap.Error(err))
		return
	}
	key := path.Join(c.cfg.ArchivePrefix, digest+".html")
	if _, err := c.archive.PutObject(ctx, key, "text/html; charset=utf-8", bytes.NewReader(body)); err != nil {
		c.logger.Warn("archive page failed", zap.String("url", rawURL), zap.String("key", key), zap.Error(err))
	}
}

// tally aggregates outcomes on the collecting goroutine only.
type tally struct {
	total     int
	every     int
	processed int
	failed    int
	articles  []Article
	logger    *zap.Logger
}

func (t *tally) record(out outcome) {
	t.processed++
	if out.kind == progress.OutcomeArticle {
		t.articles = append(t.articles, out.article)
	} else {
		t.failed++
	}
	if t.processed%t.every == 0 {
		t.logger.Info("crawl progress",
			zap.Int("processed", t.processed),
			zap.Int("total", t.total),
			zap.Int("articles", len(t.articles)),
		)
	}
}

type noPacer struct{}

func (noPacer) Wait(context.Context, string) error { return nil }

type wallClock struct{}

func (wallClock) Now() time.Time { return time.Now().UTC() }
