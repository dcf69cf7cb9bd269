// Package index writes embedded chunks into the vector collection.
package index

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"go.uber.org/zap"

	"github.com/JakeFAU/tgc-rag/internal/chunker"
	"github.com/JakeFAU/tgc-rag/internal/hash/sha256"
	"github.com/JakeFAU/tgc-rag/internal/metrics"
	"github.com/JakeFAU/tgc-rag/internal/vectorstore"
)

// DefaultCollection is the collection queried by the API.
const DefaultCollection = "tgc-articles"

const idHashLength = 12

// Metadata keys stored with every chunk.
const (
	MetaTitle     = "title"
	MetaAuthor    = "author"
	MetaSection   = "section"
	MetaDate      = "date"
	MetaSourceURL = "source_url"
)

// ChunkID is the first 12 hex characters of sha256(sourceURL), an underscore,
// and the chunk index.
func ChunkID(sourceURL string, chunkIndex int) string {
	return sha256.Prefix(sourceURL, idHashLength) + "_" + strconv.Itoa(chunkIndex)
}

// Metadata returns the stored metadata for a chunk.
func Metadata(c chunker.Chunk) map[string]string {
	return map[string]string{
		MetaTitle:     c.Title,
		MetaAuthor:    c.Author,
		MetaSection:   c.Section,
		MetaDate:      c.Date,
		MetaSourceURL: c.SourceURL,
	}
}

// Builder writes chunks to one named collection.
type Builder struct {
	store      vectorstore.Store
	collection string
	logger     *zap.Logger
}

// NewBuilder constructs a Builder. An empty collection selects DefaultCollection.
func NewBuilder(store vectorstore.Store, collection string, logger *zap.Logger) *Builder {
	if collection == "" {
		collection = DefaultCollection
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Builder{store: store, collection: collection, logger: logger.Named("index")}
}

// Collection returns the target collection name.
func (b *Builder) Collection() string { return b.collection }

// Add writes chunks with their embeddings, creating the collection if needed.
// Writes are split to respect the store's batch limit.
func (b *Builder) Add(ctx context.Context, chunks []chunker.Chunk, embeddings [][]float32) error {
	if len(chunks) != len(embeddings) {
		return fmt.Errorf("%w: %d chunks, %d embeddings", vectorstore.ErrLengthMismatch, len(chunks), len(embeddings))
	}
	col, err := b.store.GetOrCreateCollection(ctx, b.collection)
	if err != nil {
		return fmt.Errorf("open collection: %w", err)
	}
	if len(chunks) == 0 {
		return nil
	}

	records := make([]vectorstore.Record, len(chunks))
	for i, c := range chunks {
		records[i] = vectorstore.Record{
			ID:        ChunkID(c.SourceURL, c.ChunkIndex),
			Embedding: embeddings[i],
			Document:  c.Text,
			Metadata:  Metadata(c),
		}
	}

	step := max(col.MaxBatchSize(), 1)
	for start := 0; start < len(records); start += step {
		end := min(start+step, len(records))
		if err := col.Add(ctx, records[start:end]); err != nil {
			return fmt.Errorf("add records %d-%d: %w", start, end, err)
		}
		metrics.ObserveChunksIndexed(end - start)
	}
	b.logger.Info("chunks indexed", zap.String("collection", b.collection), zap.Int("chunks", len(records)))
	return nil
}

// ClearAndAdd deletes the collection, if it exists, and then adds.
func (b *Builder) ClearAndAdd(ctx context.Context, chunks []chunker.Chunk, embeddings [][]float32) error {
	if len(chunks) != len(embeddings) {
		return fmt.Errorf("%w: %d chunks, %d embeddings", vectorstore.ErrLengthMismatch, len(chunks), len(embeddings))
	}
	if err := b.store.DeleteCollection(ctx, b.collection); err != nil && !errors.Is(err, vectorstore.ErrCollectionNotFound) {
		return fmt.Errorf("clear collection: %w", err)
	}
	return b.Add(ctx, chunks, embeddings)
}
