// Package vectorstore defines persisted embedding collections and the typed
// records that flow through them.
package vectorstore

import (
	"context"
	"errors"
	"math"
)

var (
	// ErrCollectionNotFound is returned when a named collection does not exist.
	ErrCollectionNotFound = errors.New("vectorstore: collection not found")
	// ErrStoreNotFound is returned when opening a store that must already exist.
	ErrStoreNotFound = errors.New("vectorstore: store not found")
	// ErrLengthMismatch is returned when parallel inputs differ in length.
	ErrLengthMismatch = errors.New("vectorstore: length mismatch")
	// ErrBatchTooLarge is returned when Add exceeds MaxBatchSize.
	ErrBatchTooLarge = errors.New("vectorstore: batch too large")
	// ErrDimensionMismatch is returned when an embedding has the wrong width.
	ErrDimensionMismatch = errors.New("vectorstore: dimension mismatch")
	// ErrInvalidFilter is returned by Query when a caller-supplied filter
	// cannot be evaluated, such as a malformed full-text expression.
	ErrInvalidFilter = errors.New("vectorstore: invalid filter")
)

// Record is one stored entry.
type Record struct {
	ID        string
	Embedding []float32
	Document  string
	Metadata  map[string]string
}

// Hit is one query result. Lower Distance is closer.
type Hit struct {
	ID       string
	Document string
	Metadata map[string]string
	Distance float64
}

// DocumentFilter restricts hits by their document text.
type DocumentFilter struct {
	// Contains keeps documents containing this exact substring.
	Contains string `json:"$contains,omitempty"`
	// Match is an FTS5 full-text expression.
	Match string `json:"$match,omitempty"`
}

// IsZero reports whether the filter restricts nothing.
func (f DocumentFilter) IsZero() bool {
	return f.Contains == "" && f.Match == ""
}

// QueryOptions controls Collection.Query.
type QueryOptions struct {
	// N is the maximum number of hits.
	N int
	// Where keeps hits whose metadata equals every given value.
	Where map[string]string
	// WhereDocument filters on document text.
	WhereDocument DocumentFilter
}

// Collection is a named set of records.
type Collection interface {
	Name() string
	// Add inserts records, replacing any with the same ID.
	Add(ctx context.Context, records []Record) error
	Query(ctx context.Context, embedding []float32, opts QueryOptions) ([]Hit, error)
	Count(ctx context.Context) (int, error)
	// Peek returns up to limit records in insertion order, without embeddings.
	Peek(ctx context.Context, limit int) ([]Record, error)
	MaxBatchSize() int
}

// Store manages collections.
type Store interface {
	// GetOrCreateCollection returns the named collection, creating it if needed.
	GetOrCreateCollection(ctx context.Context, name string) (Collection, error)
	// GetCollection fails with ErrCollectionNotFound for unknown names.
	GetCollection(ctx context.Context, name string) (Collection, error)
	// DeleteCollection fails with ErrCollectionNotFound for unknown names.
	DeleteCollection(ctx context.Context, name string) error
	Close() error
}

// CosineDistance returns 1 - cos(a, b). Zero vectors are maximally distant.
func CosineDistance(a, b []float32) float64 {
	var dot, na, nb float64
	for i := range a {
		x, y := float64(a[i]), float64(b[i])
		dot += x * y
		na += x * x
		nb += y * y
	}
	if na == 0 || nb == 0 {
		return 1
	}
	return 1 - dot/(math.Sqrt(na)*math.Sqrt(nb))
}
