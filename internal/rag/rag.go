// Package rag retrieves indexed chunks for a question and answers it with a
// chat model grounded on those chunks.
package rag

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/JakeFAU/tgc-rag/internal/vectorstore"
)

// ErrIndexUnavailable is returned when the store or collection has not been
// built yet.
var ErrIndexUnavailable = errors.New("index unavailable: run the ingest first")

// RetrievedChunk is one retrieved excerpt with its article metadata.
type RetrievedChunk struct {
	Text      string `json:"text"`
	Title     string `json:"title"`
	Author    string `json:"author"`
	Section   string `json:"section"`
	Date      string `json:"date"`
	SourceURL string `json:"source_url"`
}

// CollectionSource yields the collection to query.
type CollectionSource interface {
	Collection(ctx context.Context) (vectorstore.Collection, error)
}

// StoreOpener opens the backing store.
type StoreOpener func(ctx context.Context) (vectorstore.Store, error)

// LazyCollection opens the store on first use and retries on later calls
// until it exists, so a server can start before the first ingest.
type LazyCollection struct {
	open StoreOpener
	name string

	mu    sync.Mutex
	store vectorstore.Store
}

// NewLazyCollection returns a CollectionSource for the named collection.
func NewLazyCollection(open StoreOpener, name string) *LazyCollection {
	return &LazyCollection{open: open, name: name}
}

// Collection implements CollectionSource. A missing store or collection is
// reported as ErrIndexUnavailable.
func (l *LazyCollection) Collection(ctx context.Context) (vectorstore.Collection, error) {
	store, err := l.ensureStore(ctx)
	if err != nil {
		return nil, err
	}
	col, err := store.GetCollection(ctx, l.name)
	if errors.Is(err, vectorstore.ErrCollectionNotFound) {
		return nil, fmt.Errorf("%w: %v", ErrIndexUnavailable, err)
	}
	if err != nil {
		return nil, fmt.Errorf("get collection: %w", err)
	}
	return col, nil
}

func (l *LazyCollection) ensureStore(ctx context.Context) (vectorstore.Store, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.store != nil {
		return l.store, nil
	}
	store, err := l.open(ctx)
	if errors.Is(err, vectorstore.ErrStoreNotFound) {
		return nil, fmt.Errorf("%w: %v", ErrIndexUnavailable, err)
	}
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}
	l.store = store
	return store, nil
}

// Close closes the store if it was opened.
func (l *LazyCollection) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.store == nil {
		return nil
	}
	err := l.store.Close()
	l.store = nil
	return err
}

// StaticCollection wraps an already-open collection.
type StaticCollection struct {
	C vectorstore.Collection
}

// Collection implements CollectionSource.
func (s StaticCollection) Collection(context.Context) (vectorstore.Collection, error) {
	return s.C, nil
}
