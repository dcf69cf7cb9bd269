package ingest

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/JakeFAU/tgc-rag/internal/chunker"
	"github.com/JakeFAU/tgc-rag/internal/crawler"
	"github.com/JakeFAU/tgc-rag/internal/progress"
	"github.com/JakeFAU/tgc-rag/internal/publisher"
	pubmemory "github.com/JakeFAU/tgc-rag/internal/publisher/memory"
)

type fakeResolver struct {
	urls      []string
	err       error
	gotBudget int
}

func (f *fakeResolver) Resolve(_ context.Context, _ string, maxFetches int) ([]string, error) {
	f.gotBudget = maxFetches
	return f.urls, f.err
}

type fakeCrawler struct {
	result  crawler.Result
	gotURLs []string
}

func (f *fakeCrawler) Crawl(_ context.Context, _ uuid.UUID, urls []string) crawler.Result {
	f.gotURLs = urls
	res := f.result
	res.Total = len(urls)
	return res
}

type fakeEmbedder struct {
	mu      sync.Mutex
	batches []int
	err     error
}

func (f *fakeEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if f.err != nil {
		return nil, f.err
	}
	f.mu.Lock()
	f.batches = append(f.batches, len(texts))
	f.mu.Unlock()
	out := make([][]float32, len(texts))
	for i := range out {
		out[i] = []float32{float32(len(texts[i])), 1}
	}
	return out, nil
}

type fakeIndex struct {
	adds   int
	clears int
	chunks int
}

func (f *fakeIndex) Add(ctx context.Context, chunks []chunker.Chunk, _ [][]float32) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	f.adds++
	f.chunks += len(chunks)
	return nil
}

func (f *fakeIndex) ClearAndAdd(ctx context.Context, chunks []chunker.Chunk, _ [][]float32) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	f.clears++
	f.chunks = len(chunks)
	return nil
}

func (f *fakeIndex) Collection() string { return "tgc-articles" }

type recordingEmitter struct {
	mu     sync.Mutex
	events []progress.Event
}

func (e *recordingEmitter) Emit(evt progress.Event) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.events = append(e.events, evt)
}

func (e *recordingEmitter) stages() []progress.Stage {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]progress.Stage, len(e.events))
	for i, evt := range e.events {
		out[i] = evt.Stage
	}
	return out
}

func articles(n int) []crawler.Article {
	out := make([]crawler.Article, n)
	for i := range out {
		out[i] = crawler.Article{
			URL:     "https://x.org/article/" + strings.Repeat("a", i+1) + "/",
			Title:   "T",
			Content: strings.Repeat("Word after word. ", 60),
		}
	}
	return out
}

func newPipeline(t *testing.T, cfg Config, deps Deps) *Pipeline {
	t.Helper()
	if deps.Chunker == nil {
		deps.Chunker = chunker.New(chunker.Config{})
	}
	deps.Logger = zap.NewNop()
	p, err := New(cfg, deps)
	require.NoError(t, err)
	return p
}

func TestSitemapLimitFor(t *testing.T) {
	t.Parallel()

	require.Zero(t, SitemapLimitFor(0))
	require.Equal(t, 80, SitemapLimitFor(100))
	require.Equal(t, 80, SitemapLimitFor(2000))
	require.Equal(t, 200, SitemapLimitFor(5000))
	require.Equal(t, 400, SitemapLimitFor(100000))
}

func TestNewRequiresIndexingUnlessDryRun(t *testing.T) {
	t.Parallel()

	deps := Deps{Resolver: &fakeResolver{}, Crawler: &fakeCrawler{}, Chunker: chunker.New(chunker.Config{})}
	_, err := New(Config{}, deps)
	require.ErrorIs(t, err, ErrIndexingUnavailable)

	_, err = New(Config{DryRun: true}, deps)
	require.NoError(t, err)

	_, err = New(Config{}, Deps{})
	require.Error(t, err)
}

func TestRunCompletedRebuildsIndex(t *testing.T) {
	t.Parallel()

	resolver := &fakeResolver{urls: []string{"u1", "u2", "u3", "u4"}}
	crawl := &fakeCrawler{result: crawler.Result{Processed: 2, Articles: articles(2)}}
	emb := &fakeEmbedder{}
	idx := &fakeIndex{}
	pub := pubmemory.New()
	emitter := &recordingEmitter{}
	p := newPipeline(t, Config{BaseURL: "https://x.org", Limit: 2, EmbedBatchSize: 1}, Deps{
		Resolver: resolver, Crawler: crawl, Embedder: emb, Index: idx, Publisher: pub, Emitter: emitter,
	})

	res, err := p.Run(context.Background(), context.Background())
	require.NoError(t, err)
	require.Equal(t, StatusCompleted, res.Status)
	require.Equal(t, 80, resolver.gotBudget)
	require.Equal(t, []string{"u1", "u2"}, crawl.gotURLs)
	require.Equal(t, 2, res.URLs)
	require.Equal(t, 2, res.Articles)
	require.Equal(t, 2, res.Chunks)
	require.Equal(t, 2, res.Indexed)
	require.Equal(t, []int{1, 1}, emb.batches)
	require.Equal(t, 1, idx.clears)
	require.Zero(t, idx.adds)
	require.False(t, res.Checkpoint.Attempted)
	require.Equal(t, []progress.Stage{
		progress.StageRunStart, progress.StageSitemapDone, progress.StageIndexed, progress.StageRunDone,
	}, emitter.stages())

	msgs := pub.Messages()
	require.Len(t, msgs, 1)
	require.Equal(t, 2, msgs[0].(publisher.IndexRebuilt).Chunks)
}

func TestRunExplicitSitemapLimit(t *testing.T) {
	t.Parallel()

	resolver := &fakeResolver{}
	p := newPipeline(t, Config{Limit: 10000, SitemapLimit: 7, DryRun: true}, Deps{Resolver: resolver, Crawler: &fakeCrawler{}})
	_, err := p.Run(context.Background(), context.Background())
	require.NoError(t, err)
	require.Equal(t, 7, resolver.gotBudget)
}

func TestRunDryRunSkipsEmbedding(t *testing.T) {
	t.Parallel()

	emitter := &recordingEmitter{}
	p := newPipeline(t, Config{DryRun: true}, Deps{
		Resolver: &fakeResolver{urls: []string{"u"}},
		Crawler:  &fakeCrawler{result: crawler.Result{Processed: 1, Articles: articles(1)}},
		Embedder: &fakeEmbedder{err: errors.New("must not be called")},
		Index:    &fakeIndex{},
		Emitter:  emitter,
	})
	res, err := p.Run(context.Background(), context.Background())
	require.NoError(t, err)
	require.Equal(t, StatusDryRun, res.Status)
	require.Equal(t, 1, res.Chunks)
	require.Zero(t, res.Indexed)

	emitter.mu.Lock()
	last := emitter.events[len(emitter.events)-1]
	emitter.mu.Unlock()
	require.Equal(t, progress.StageRunDone, last.Stage)
	require.Equal(t, progress.NoteDryRun, last.Note)
}

func TestRunNoArticlesLeavesIndexAlone(t *testing.T) {
	t.Parallel()

	idx := &fakeIndex{}
	p := newPipeline(t, Config{}, Deps{
		Resolver: &fakeResolver{urls: []string{"u"}},
		Crawler:  &fakeCrawler{result: crawler.Result{Processed: 1, Failed: 1}},
		Embedder: &fakeEmbedder{},
		Index:    idx,
	})
	res, err := p.Run(context.Background(), context.Background())
	require.NoError(t, err)
	require.Equal(t, StatusCompleted, res.Status)
	require.Zero(t, idx.clears+idx.adds)
}

func TestRunCancelledCrawlCheckpointsWithoutClearing(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	idx := &fakeIndex{}
	emitter := &recordingEmitter{}
	p := newPipeline(t, Config{}, Deps{
		Resolver: &fakeResolver{urls: []string{"a", "b", "c"}},
		Crawler:  &fakeCrawler{result: crawler.Result{Processed: 2, Articles: articles(2), Cancelled: true}},
		Embedder: &fakeEmbedder{},
		Index:    idx,
		Emitter:  emitter,
	})

	res, err := p.Run(ctx, context.Background())
	require.NoError(t, err)
	require.Equal(t, StatusCancelled, res.Status)
	require.True(t, res.Checkpoint.Saved)
	require.Equal(t, 2, res.Checkpoint.Articles)
	require.Equal(t, 2, res.Checkpoint.Chunks)
	require.Equal(t, 2, res.Indexed)
	require.Equal(t, 1, idx.adds)
	require.Zero(t, idx.clears)
	require.Equal(t, []progress.Stage{
		progress.StageRunStart, progress.StageSitemapDone, progress.StageCheckpoint, progress.StageRunCancelled,
	}, emitter.stages())
}

func TestRunCheckpointAbandonedBySecondSignal(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	saveCtx, cancelSave := context.WithCancel(context.Background())
	cancelSave()
	idx := &fakeIndex{}
	p := newPipeline(t, Config{}, Deps{
		Resolver: &fakeResolver{urls: []string{"a"}},
		Crawler:  &fakeCrawler{result: crawler.Result{Articles: articles(1), Processed: 1, Cancelled: true}},
		Embedder: &fakeEmbedder{},
		Index:    idx,
	})

	res, err := p.Run(ctx, saveCtx)
	require.NoError(t, err)
	require.Equal(t, StatusCancelled, res.Status)
	require.False(t, res.Checkpoint.Saved)
	require.Equal(t, "save abandoned", res.Checkpoint.Reason)
	require.Zero(t, idx.adds)
}

func TestRunCancelledDuringEmbeddingCheckpoints(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	idx := &fakeIndex{}
	crawl := &cancellingCrawler{cancel: cancel, articles: articles(3)}
	p := newPipeline(t, Config{}, Deps{
		Resolver: &fakeResolver{urls: []string{"a", "b", "c"}},
		Crawler:  crawl,
		Embedder: &fakeEmbedder{},
		Index:    idx,
	})

	res, err := p.Run(ctx, context.Background())
	require.NoError(t, err)
	require.Equal(t, StatusCancelled, res.Status)
	require.True(t, res.Checkpoint.Saved)
	require.Equal(t, 3, res.Checkpoint.Articles)
	require.Zero(t, idx.clears)
	require.Equal(t, 1, idx.adds)
}

// cancellingCrawler finishes every URL and then cancels, as if the signal
// arrived just after the crawl.
type cancellingCrawler struct {
	cancel   context.CancelFunc
	articles []crawler.Article
}

func (c *cancellingCrawler) Crawl(_ context.Context, _ uuid.UUID, urls []string) crawler.Result {
	c.cancel()
	return crawler.Result{Total: len(urls), Processed: len(urls), Articles: c.articles}
}

func TestRunCancelledDuringSitemap(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	p := newPipeline(t, Config{}, Deps{
		Resolver: &fakeResolver{err: context.Canceled},
		Crawler:  &fakeCrawler{},
		Embedder: &fakeEmbedder{},
		Index:    &fakeIndex{},
	})
	res, err := p.Run(ctx, context.Background())
	require.NoError(t, err)
	require.Equal(t, StatusCancelled, res.Status)
	require.Equal(t, "no articles to save", res.Checkpoint.Reason)
}

func TestRunDryRunCancelledHasNothingToSave(t *testing.T) {
	t.Parallel()

	p := newPipeline(t, Config{DryRun: true}, Deps{
		Resolver: &fakeResolver{urls: []string{"a"}},
		Crawler:  &fakeCrawler{result: crawler.Result{Articles: articles(1), Processed: 1, Cancelled: true}},
	})
	res, err := p.Run(context.Background(), context.Background())
	require.NoError(t, err)
	require.Equal(t, StatusCancelled, res.Status)
	require.False(t, res.Checkpoint.Saved)
	require.Contains(t, res.Checkpoint.Reason, "dry run")
}

func TestRunEmbeddingFailure(t *testing.T) {
	t.Parallel()

	boom := errors.New("provider down")
	emitter := &recordingEmitter{}
	p := newPipeline(t, Config{}, Deps{
		Resolver: &fakeResolver{urls: []string{"a"}},
		Crawler:  &fakeCrawler{result: crawler.Result{Articles: articles(1), Processed: 1}},
		Embedder: &fakeEmbedder{err: boom},
		Index:    &fakeIndex{},
		Emitter:  emitter,
	})
	res, err := p.Run(context.Background(), context.Background())
	require.ErrorIs(t, err, boom)
	require.Equal(t, StatusFailed, res.Status)
	stages := emitter.stages()
	require.Equal(t, progress.StageRunError, stages[len(stages)-1])
}

func TestRunResolverFailure(t *testing.T) {
	t.Parallel()

	p := newPipeline(t, Config{DryRun: true}, Deps{
		Resolver: &fakeResolver{err: errors.New("bad base url")},
		Crawler:  &fakeCrawler{},
	})
	res, err := p.Run(context.Background(), context.Background())
	require.Error(t, err)
	require.Equal(t, StatusFailed, res.Status)
}
