package rag

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/JakeFAU/tgc-rag/internal/openai"
	"github.com/JakeFAU/tgc-rag/internal/vectorstore"
	"github.com/JakeFAU/tgc-rag/internal/vectorstore/sqlite"
)

type fakeCollection struct {
	count    int
	countErr error
	hits     []vectorstore.Hit
	lastOpts vectorstore.QueryOptions
	queried  bool
}

func (f *fakeCollection) Name() string { return "fake" }
func (f *fakeCollection) Add(context.Context, []vectorstore.Record) error {
	return nil
}
func (f *fakeCollection) Count(context.Context) (int, error) { return f.count, f.countErr }
func (f *fakeCollection) Peek(context.Context, int) ([]vectorstore.Record, error) {
	return nil, nil
}
func (f *fakeCollection) MaxBatchSize() int { return 10 }
func (f *fakeCollection) Query(_ context.Context, _ []float32, opts vectorstore.QueryOptions) ([]vectorstore.Hit, error) {
	f.queried = true
	f.lastOpts = opts
	if opts.N < len(f.hits) {
		return f.hits[:opts.N], nil
	}
	return f.hits, nil
}

type fakeEmbedder struct {
	calls int
	err   error
}

func (f *fakeEmbedder) Embed(context.Context, string) ([]float32, error) {
	f.calls++
	return []float32{1, 0}, f.err
}

type fakeChat struct {
	calls int
	got   openai.ChatRequest
	reply string
	err   error
}

func (f *fakeChat) Complete(_ context.Context, req openai.ChatRequest) (string, error) {
	f.calls++
	f.got = req
	return f.reply, f.err
}

func TestRetrieveEmptyCollectionSkipsEmbedding(t *testing.T) {
	t.Parallel()

	col := &fakeCollection{}
	emb := &fakeEmbedder{}
	out, err := NewRetriever(StaticCollection{C: col}, emb, zap.NewNop()).Retrieve(context.Background(), "q", Options{N: 5})
	require.NoError(t, err)
	require.Empty(t, out)
	require.Zero(t, emb.calls)
	require.False(t, col.queried)
}

func TestRetrieveClampsToCollectionSize(t *testing.T) {
	t.Parallel()

	col := &fakeCollection{count: 2, hits: []vectorstore.Hit{
		{ID: "1", Document: "one", Metadata: map[string]string{"title": "T1", "author": "A1", "section": "S", "date": "2024-01-01", "source_url": "https://x/1"}},
		{ID: "2", Document: "two", Metadata: map[string]string{"title": "T2"}},
	}}
	r := NewRetriever(StaticCollection{C: col}, &fakeEmbedder{}, nil)
	out, err := r.Retrieve(context.Background(), "q", Options{
		N:             20,
		Where:         map[string]string{"section": "S"},
		WhereDocument: vectorstore.DocumentFilter{Contains: "one"},
	})
	require.NoError(t, err)
	require.Equal(t, 2, col.lastOpts.N)
	require.Equal(t, "S", col.lastOpts.Where["section"])
	require.Equal(t, "one", col.lastOpts.WhereDocument.Contains)
	require.Equal(t, []RetrievedChunk{
		{Text: "one", Title: "T1", Author: "A1", Section: "S", Date: "2024-01-01", SourceURL: "https://x/1"},
		{Text: "two", Title: "T2"},
	}, out)
}

func TestRetrievePropagatesErrors(t *testing.T) {
	t.Parallel()

	boom := errors.New("boom")
	_, err := NewRetriever(StaticCollection{C: &fakeCollection{countErr: boom}}, &fakeEmbedder{}, nil).
		Retrieve(context.Background(), "q", Options{N: 1})
	require.ErrorIs(t, err, boom)

	_, err = NewRetriever(StaticCollection{C: &fakeCollection{count: 1}}, &fakeEmbedder{err: openai.ErrRateLimited}, nil).
		Retrieve(context.Background(), "q", Options{N: 1})
	require.ErrorIs(t, err, openai.ErrRateLimited)
}

func TestLazyCollectionReportsMissingIndex(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	dir := filepath.Join(t.TempDir(), "chroma")
	opens := 0
	lazy := NewLazyCollection(func(ctx context.Context) (vectorstore.Store, error) {
		opens++
		return sqlite.Open(ctx, sqlite.Config{Dir: dir, MustExist: true}, nil)
	}, "tgc-articles")
	t.Cleanup(func() { _ = lazy.Close() })

	_, err := lazy.Collection(ctx)
	require.ErrorIs(t, err, ErrIndexUnavailable)

	store, err := sqlite.Open(ctx, sqlite.Config{Dir: dir}, nil)
	require.NoError(t, err)
	_, err = lazy.Collection(ctx)
	require.ErrorIs(t, err, ErrIndexUnavailable, "store exists but collection does not")

	col, err := store.GetOrCreateCollection(ctx, "tgc-articles")
	require.NoError(t, err)
	require.NoError(t, col.Add(ctx, []vectorstore.Record{{ID: "x_0", Embedding: []float32{1}, Document: "d"}}))
	require.NoError(t, store.Close())

	got, err := lazy.Collection(ctx)
	require.NoError(t, err)
	n, err := got.Count(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, n)
	require.Equal(t, 2, opens)
}

func TestAnswerWithoutChunksSkipsModel(t *testing.T) {
	t.Parallel()

	chat := &fakeChat{}
	out, err := NewAnswerer(chat, 0).Answer(context.Background(), "anything", nil)
	require.NoError(t, err)
	require.Equal(t, NoContextAnswer, out)
	require.Zero(t, chat.calls)
}

func TestAnswerBuildsPrompt(t *testing.T) {
	t.Parallel()

	chat := &fakeChat{reply: "Because of grace."}
	chunks := []RetrievedChunk{
		{Text: "First text.", Title: "On Grace", Author: "Ann"},
		{Text: "Second text.", Title: "On Law", Author: "Bo"},
	}
	out, err := NewAnswerer(chat, 0).Answer(context.Background(), "Why?", chunks)
	require.NoError(t, err)
	require.Equal(t, "Because of grace.", out)
	require.Equal(t, SystemPrompt, chat.got.System)
	require.Equal(t, 500, chat.got.MaxTokens)
	require.Equal(t,
		"Use the following excerpts from TGC articles to answer the question.\n\nExcerpts:\n"+
			"[1] From \"On Grace\" by Ann:\nFirst text.\n\n[2] From \"On Law\" by Bo:\nSecond text."+
			"\n\nQuestion: Why?",
		chat.got.User)
}

func TestAnswerWrapsProviderError(t *testing.T) {
	t.Parallel()

	chat := &fakeChat{err: &openai.APIError{StatusCode: 401, Message: "bad key"}}
	_, err := NewAnswerer(chat, 100).Answer(context.Background(), "q", []RetrievedChunk{{Text: "t"}})
	require.ErrorIs(t, err, openai.ErrAuthentication)
	require.Equal(t, 100, chat.got.MaxTokens)
}
