package app

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/JakeFAU/tgc-rag/internal/config"
	"github.com/JakeFAU/tgc-rag/internal/openai"
	"github.com/JakeFAU/tgc-rag/internal/storage/local"
	"github.com/JakeFAU/tgc-rag/internal/storage/memory"
	"github.com/JakeFAU/tgc-rag/internal/vectorstore"
)

func TestOpenAIRequiresKey(t *testing.T) {
	t.Parallel()

	_, err := New(config.Config{}, nil).OpenAI()
	require.ErrorIs(t, err, openai.ErrMissingAPIKey)

	client, err := New(config.Config{OpenAI: config.OpenAIConfig{APIKey: "sk-test", ChatModel: "gpt-4o-mini"}}, nil).OpenAI()
	require.NoError(t, err)
	require.Equal(t, "gpt-4o-mini", client.ChatModel())
}

func TestOpenIndex(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	dir := filepath.Join(t.TempDir(), "index")
	a := New(config.Config{Index: config.IndexConfig{Path: dir, MaxBatchSize: 10}}, zap.NewNop())

	_, err := a.OpenIndex(ctx, true)
	require.ErrorIs(t, err, vectorstore.ErrStoreNotFound)

	s, err := a.OpenIndex(ctx, false)
	require.NoError(t, err)
	_, err = s.GetOrCreateCollection(ctx, "tgc-articles")
	require.NoError(t, err)
	require.NoError(t, a.Close())

	again, err := a.OpenIndex(ctx, true)
	require.NoError(t, err)
	_, err = again.GetCollection(ctx, "tgc-articles")
	require.NoError(t, err)
	require.NoError(t, a.Close())
}

func TestRunStoreDefaultsToMemory(t *testing.T) {
	t.Parallel()

	rs, err := New(config.Config{}, nil).RunStore(context.Background())
	require.NoError(t, err)
	require.IsType(t, &memory.RunStore{}, rs)
}

func TestRunStoreBadDSN(t *testing.T) {
	t.Parallel()

	_, err := New(config.Config{DB: config.DBConfig{DSN: "postgres://%zz"}}, nil).RunStore(context.Background())
	require.Error(t, err)
}

func TestArchiveBackends(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	bs, err := New(config.Config{}, nil).Archive(ctx)
	require.NoError(t, err)
	require.Nil(t, bs)

	bs, err = New(config.Config{Archive: config.ArchiveConfig{Backend: config.ArchiveMemory}}, nil).Archive(ctx)
	require.NoError(t, err)
	require.IsType(t, &memory.BlobStore{}, bs)

	dir := t.TempDir()
	bs, err = New(config.Config{Archive: config.ArchiveConfig{Backend: config.ArchiveLocal, BaseDir: dir}}, nil).Archive(ctx)
	require.NoError(t, err)
	require.IsType(t, &local.BlobStore{}, bs)

	_, err = New(config.Config{Archive: config.ArchiveConfig{Backend: "s3"}}, nil).Archive(ctx)
	require.Error(t, err)
}

func TestPublisherDisabledWithoutTopic(t *testing.T) {
	t.Parallel()

	pub, err := New(config.Config{}, nil).Publisher(context.Background())
	require.NoError(t, err)
	require.Nil(t, pub)
}

func TestCloseReversesAndJoinsErrors(t *testing.T) {
	t.Parallel()

	a := New(config.Config{}, nil)
	var order []string
	a.track("first", func() error { order = append(order, "first"); return nil })
	a.track("second", func() error { order = append(order, "second"); return errors.New("boom") })

	err := a.Close()
	require.ErrorContains(t, err, "close second: boom")
	require.Equal(t, []string{"second", "first"}, order)
	require.NoError(t, a.Close())
}
