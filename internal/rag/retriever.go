package rag

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/JakeFAU/tgc-rag/internal/index"
	"github.com/JakeFAU/tgc-rag/internal/vectorstore"
)

// QueryEmbedder embeds a single query string.
type QueryEmbedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// Options narrows a retrieval.
type Options struct {
	N             int
	Where         map[string]string
	WhereDocument vectorstore.DocumentFilter
}

// Retriever returns the chunks nearest to a query.
type Retriever struct {
	source   CollectionSource
	embedder QueryEmbedder
	logger   *zap.Logger
}

// NewRetriever constructs a Retriever.
func NewRetriever(source CollectionSource, embedder QueryEmbedder, logger *zap.Logger) *Retriever {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Retriever{source: source, embedder: embedder, logger: logger.Named("retriever")}
}

// Retrieve returns at most opts.N chunks, nearest first. An empty collection
// returns no chunks without embedding the query.
func (r *Retriever) Retrieve(ctx context.Context, query string, opts Options) ([]RetrievedChunk, error) {
	col, err := r.source.Collection(ctx)
	if err != nil {
		return nil, err
	}
	count, err := col.Count(ctx)
	if err != nil {
		return nil, fmt.Errorf("count collection: %w", err)
	}
	if count == 0 || opts.N <= 0 {
		return []RetrievedChunk{}, nil
	}

	vec, err := r.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	hits, err := col.Query(ctx, vec, vectorstore.QueryOptions{
		N:             min(opts.N, count),
		Where:         opts.Where,
		WhereDocument: opts.WhereDocument,
	})
	if err != nil {
		return nil, fmt.Errorf("query collection: %w", err)
	}

	out := make([]RetrievedChunk, len(hits))
	for i, h := range hits {
		out[i] = RetrievedChunk{
			Text:      h.Document,
			Title:     h.Metadata[index.MetaTitle],
			Author:    h.Metadata[index.MetaAuthor],
			Section:   h.Metadata[index.MetaSection],
			Date:      h.Metadata[index.MetaDate],
			SourceURL: h.Metadata[index.MetaSourceURL],
		}
	}
	r.logger.Debug("retrieved", zap.Int("requested", opts.N), zap.Int("returned", len(out)), zap.Int("collection_size", count))
	return out, nil
}
