package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/JakeFAU/tgc-rag/internal/store"
)

// RunStoreConfig controls the pool used for the ledger.
type RunStoreConfig struct {
	DSN             string
	MaxConns        int32
	MaxConnLifetime time.Duration
}

type querier interface {
	Exec(context.Context, string, ...any) (pgconn.CommandTag, error)
	Query(context.Context, string, ...any) (pgx.Rows, error)
	QueryRow(context.Context, string, ...any) pgx.Row
	Close()
}

// RunStore implements store.RunRepository on the ingest_runs table.
type RunStore struct {
	db querier
}

var _ store.RunRepository = (*RunStore)(nil)

const schemaDDL = `
CREATE TABLE IF NOT EXISTS ingest_runs (
	id            uuid PRIMARY KEY,
	started_at    timestamptz NOT NULL,
	finished_at   timestamptz,
	updated_at    timestamptz NOT NULL,
	status        text NOT NULL,
	urls          bigint NOT NULL DEFAULT 0,
	articles      bigint NOT NULL DEFAULT 0,
	rejected      bigint NOT NULL DEFAULT 0,
	failed        bigint NOT NULL DEFAULT 0,
	bytes_total   bigint NOT NULL DEFAULT 0,
	chunks        bigint NOT NULL DEFAULT 0,
	error_message text
);`

// NewRunStore connects to Postgres and ensures the ledger table exists.
func NewRunStore(ctx context.Context, cfg RunStoreConfig) (*RunStore, error) {
	if cfg.DSN == "" {
		return nil, errors.New("db.dsn is required")
	}
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	}
	if cfg.MaxConnLifetime > 0 {
		poolCfg.MaxConnLifetime = cfg.MaxConnLifetime
	}
	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("create postgres pool: %w", err)
	}
	s := &RunStore{db: pool}
	if err := s.EnsureSchema(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return s, nil
}

// NewRunStoreWithPool wraps an existing pool (used by tests).
func NewRunStoreWithPool(db querier) *RunStore {
	return &RunStore{db: db}
}

// EnsureSchema creates the ledger table when missing.
func (s *RunStore) EnsureSchema(ctx context.Context) error {
	if _, err := s.db.Exec(ctx, schemaDDL); err != nil {
		return fmt.Errorf("ensure ingest_runs schema: %w", err)
	}
	return nil
}

// Close releases the pool.
func (s *RunStore) Close() {
	if s != nil && s.db != nil {
		s.db.Close()
	}
}

// StartRun inserts a running row; repeated starts leave it untouched.
func (s *RunStore) StartRun(ctx context.Context, runID uuid.UUID, startedAt time.Time) error {
	const q = `
		INSERT INTO ingest_runs (id, started_at, updated_at, status)
		VALUES ($1, $2, $2, $3)
		ON CONFLICT (id) DO NOTHING;`
	if _, err := s.db.Exec(ctx, q, runID, startedAt, store.RunRunning); err != nil {
		return fmt.Errorf("insert ingest run: %w", err)
	}
	return nil
}

// AddCounters increments the run totals.
func (s *RunStore) AddCounters(ctx context.Context, runID uuid.UUID, delta store.RunCounters, at time.Time) error {
	const q = `
		UPDATE ingest_runs SET
			urls = urls + $1,
			articles = articles + $2,
			rejected = rejected + $3,
			failed = failed + $4,
			bytes_total = bytes_total + $5,
			chunks = chunks + $6,
			updated_at = GREATEST(updated_at, $7)
		WHERE id = $8;`
	tag, err := s.db.Exec(ctx, q,
		delta.URLs, delta.Articles, delta.Rejected, delta.Failed, delta.Bytes, delta.Chunks, at, runID)
	if err != nil {
		return fmt.Errorf("update ingest run counters: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("update ingest run %s counters: %w", runID, store.ErrNotFound)
	}
	return nil
}

// FinishRun records the terminal status.
func (s *RunStore) FinishRun(
	ctx context.Context,
	runID uuid.UUID,
	finishedAt time.Time,
	status store.RunStatus,
	errMsg *string,
) error {
	const q = `
		UPDATE ingest_runs
		SET finished_at = $1, updated_at = $1, status = $2, error_message = $3
		WHERE id = $4;`
	tag, err := s.db.Exec(ctx, q, finishedAt, status, errMsg, runID)
	if err != nil {
		return fmt.Errorf("finish ingest run: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("finish ingest run %s: %w", runID, store.ErrNotFound)
	}
	return nil
}

const selectRun = `
	SELECT id, started_at, finished_at, status, urls, articles, rejected, failed, bytes_total, chunks, error_message
	FROM ingest_runs`

// GetRun loads a single run.
func (s *RunStore) GetRun(ctx context.Context, runID uuid.UUID) (store.Run, error) {
	run, err := scanRun(s.db.QueryRow(ctx, selectRun+" WHERE id = $1;", runID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return store.Run{}, store.ErrNotFound
		}
		return store.Run{}, fmt.Errorf("get ingest run: %w", err)
	}
	return run, nil
}

// ListRuns returns up to limit runs, newest first.
func (s *RunStore) ListRuns(ctx context.Context, limit int) ([]store.Run, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.Query(ctx, selectRun+" ORDER BY started_at DESC LIMIT $1;", limit)
	if err != nil {
		return nil, fmt.Errorf("list ingest runs: %w", err)
	}
	defer rows.Close()

	var runs []store.Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("scan ingest run: %w", err)
		}
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate ingest runs: %w", err)
	}
	return runs, nil
}

func scanRun(row pgx.Row) (store.Run, error) {
	var (
		run    store.Run
		status string
	)
	err := row.Scan(
		&run.ID,
		&run.StartedAt,
		&run.FinishedAt,
		&status,
		&run.Counters.URLs,
		&run.Counters.Articles,
		&run.Counters.Rejected,
		&run.Counters.Failed,
		&run.Counters.Bytes,
		&run.Counters.Chunks,
		&run.ErrorMessage,
	)
	if err != nil {
		return store.Run{}, err
	}
	run.Status = store.RunStatus(status)
	return run, nil
}
