// Package sqlite persists vector collections in a single SQLite file using the
// pure-Go modernc driver.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"
	_ "modernc.org/sqlite" // registers the "sqlite" driver

	"github.com/JakeFAU/tgc-rag/internal/vectorstore"
)

const (
	// FileName is the database file created inside Config.Dir.
	FileName            = "index.sqlite3"
	defaultMaxBatchSize = 5000
)

// Config locates the store.
type Config struct {
	Dir string
	// MaxBatchSize bounds a single Add call.
	MaxBatchSize int
	// MustExist makes Open fail with vectorstore.ErrStoreNotFound instead of
	// creating a new database.
	MustExist bool
}

// Store is a vectorstore.Store backed by SQLite.
type Store struct {
	db       *sql.DB
	path     string
	maxBatch int
	logger   *zap.Logger
}

var _ vectorstore.Store = (*Store)(nil)

// Open opens or creates the database under cfg.Dir and applies the schema.
func Open(ctx context.Context, cfg Config, logger *zap.Logger) (*Store, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Dir == "" {
		return nil, fmt.Errorf("vectorstore dir is required")
	}
	if cfg.MaxBatchSize <= 0 {
		cfg.MaxBatchSize = defaultMaxBatchSize
	}
	path := filepath.Join(cfg.Dir, FileName)
	if cfg.MustExist {
		if _, err := os.Stat(path); err != nil {
			if errors.Is(err, os.ErrNotExist) {
				return nil, fmt.Errorf("%w: %s", vectorstore.ErrStoreNotFound, path)
			}
			return nil, fmt.Errorf("stat vectorstore: %w", err)
		}
	} else if err := os.MkdirAll(cfg.Dir, 0o755); err != nil {
		return nil, fmt.Errorf("create vectorstore dir: %w", err)
	}

	dsn := "file:" + path +
		"?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)&_pragma=foreign_keys(1)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open vectorstore: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping vectorstore: %w", err)
	}
	if _, err := db.ExecContext(ctx, schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("apply vectorstore schema: %w", err)
	}

	logger = logger.Named("vectorstore")
	logger.Debug("vectorstore opened", zap.String("path", path))
	return &Store{db: db, path: path, maxBatch: cfg.MaxBatchSize, logger: logger}, nil
}

// Path returns the database file path.
func (s *Store) Path() string { return s.path }

// GetOrCreateCollection implements vectorstore.Store.
func (s *Store) GetOrCreateCollection(ctx context.Context, name string) (vectorstore.Collection, error) {
	if _, err := s.db.ExecContext(ctx,
		`INSERT INTO collections (name) VALUES (?) ON CONFLICT(name) DO NOTHING`, name); err != nil {
		return nil, fmt.Errorf("create collection %q: %w", name, err)
	}
	return s.collection(name), nil
}

// GetCollection implements vectorstore.Store.
func (s *Store) GetCollection(ctx context.Context, name string) (vectorstore.Collection, error) {
	if _, err := lookupCollection(ctx, s.db, name); err != nil {
		return nil, err
	}
	return s.collection(name), nil
}

// DeleteCollection implements vectorstore.Store.
func (s *Store) DeleteCollection(ctx context.Context, name string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin delete collection: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	info, err := lookupCollection(ctx, tx, name)
	if err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM embeddings WHERE collection_id = ?`, info.id); err != nil {
		return fmt.Errorf("delete embeddings of %q: %w", name, err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM collections WHERE id = ?`, info.id); err != nil {
		return fmt.Errorf("delete collection %q: %w", name, err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit delete collection: %w", err)
	}
	s.logger.Info("collection deleted", zap.String("collection", name))
	return nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) collection(name string) *Collection {
	return &Collection{db: s.db, name: name, maxBatch: s.maxBatch}
}

type queryer interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

type collectionInfo struct {
	id        int64
	dimension sql.NullInt64
}

func lookupCollection(ctx context.Context, q queryer, name string) (collectionInfo, error) {
	var info collectionInfo
	err := q.QueryRowContext(ctx, `SELECT id, dimension FROM collections WHERE name = ?`, name).
		Scan(&info.id, &info.dimension)
	if errors.Is(err, sql.ErrNoRows) {
		return collectionInfo{}, fmt.Errorf("%w: %s", vectorstore.ErrCollectionNotFound, name)
	}
	if err != nil {
		return collectionInfo{}, fmt.Errorf("lookup collection %q: %w", name, err)
	}
	return info, nil
}
