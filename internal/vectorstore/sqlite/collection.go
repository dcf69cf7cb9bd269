package sqlite

import (
	"cmp"
	"context"
	"database/sql"
	"fmt"
	"slices"
	"strings"

	"github.com/JakeFAU/tgc-rag/internal/vectorstore"
)

// Collection is a handle on a named collection. It resolves the name on every
// call, so a handle stays valid across a delete and re-create.
type Collection struct {
	db       *sql.DB
	name     string
	maxBatch int
}

var _ vectorstore.Collection = (*Collection)(nil)

// Name implements vectorstore.Collection.
func (c *Collection) Name() string { return c.name }

// MaxBatchSize implements vectorstore.Collection.
func (c *Collection) MaxBatchSize() int { return c.maxBatch }

// Add implements vectorstore.Collection. All records must share one
// embedding width, fixed by the first Add into the collection.
func (c *Collection) Add(ctx context.Context, records []vectorstore.Record) error {
	if len(records) == 0 {
		return nil
	}
	if len(records) > c.maxBatch {
		return fmt.Errorf("%w: %d records, max %d", vectorstore.ErrBatchTooLarge, len(records), c.maxBatch)
	}
	dim := len(records[0].Embedding)
	for _, r := range records {
		if r.ID == "" {
			return fmt.Errorf("add to %q: empty record id", c.name)
		}
		if len(r.Embedding) == 0 || len(r.Embedding) != dim {
			return fmt.Errorf("%w: record %s has %d values, want %d", vectorstore.ErrDimensionMismatch, r.ID, len(r.Embedding), dim)
		}
	}

	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin add: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	info, err := lookupCollection(ctx, tx, c.name)
	if err != nil {
		return err
	}
	switch {
	case !info.dimension.Valid:
		if _, err := tx.ExecContext(ctx, `UPDATE collections SET dimension = ? WHERE id = ?`, dim, info.id); err != nil {
			return fmt.Errorf("set collection dimension: %w", err)
		}
	case int(info.dimension.Int64) != dim:
		return fmt.Errorf("%w: collection %q stores %d values, got %d", vectorstore.ErrDimensionMismatch, c.name, info.dimension.Int64, dim)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO embeddings (collection_id, id, embedding, document, metadata)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(collection_id, id) DO UPDATE SET
			embedding = excluded.embedding,
			document = excluded.document,
			metadata = excluded.metadata`)
	if err != nil {
		return fmt.Errorf("prepare add: %w", err)
	}
	defer stmt.Close() //nolint:errcheck // closed with the tx

	for _, r := range records {
		meta, err := encodeMetadata(r.Metadata)
		if err != nil {
			return err
		}
		if _, err := stmt.ExecContext(ctx, info.id, r.ID, encodeVector(r.Embedding), r.Document, meta); err != nil {
			return fmt.Errorf("insert %s: %w", r.ID, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit add: %w", err)
	}
	return nil
}

// Count implements vectorstore.Collection.
func (c *Collection) Count(ctx context.Context) (int, error) {
	info, err := lookupCollection(ctx, c.db, c.name)
	if err != nil {
		return 0, err
	}
	var n int
	if err := c.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM embeddings WHERE collection_id = ?`, info.id).Scan(&n); err != nil {
		return 0, fmt.Errorf("count %q: %w", c.name, err)
	}
	return n, nil
}

// Peek implements vectorstore.Collection.
func (c *Collection) Peek(ctx context.Context, limit int) ([]vectorstore.Record, error) {
	info, err := lookupCollection(ctx, c.db, c.name)
	if err != nil {
		return nil, err
	}
	if limit <= 0 {
		return nil, nil
	}
	rows, err := c.db.QueryContext(ctx,
		`SELECT id, document, metadata FROM embeddings WHERE collection_id = ? ORDER BY seq LIMIT ?`, info.id, limit)
	if err != nil {
		return nil, fmt.Errorf("peek %q: %w", c.name, err)
	}
	defer rows.Close() //nolint:errcheck // read-only

	var out []vectorstore.Record
	for rows.Next() {
		var r vectorstore.Record
		var meta string
		if err := rows.Scan(&r.ID, &r.Document, &meta); err != nil {
			return nil, fmt.Errorf("scan peek row: %w", err)
		}
		if r.Metadata, err = decodeMetadata(meta); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// Query implements vectorstore.Collection. Candidates are narrowed in SQL by
// the metadata and document filters, then ranked by cosine distance.
func (c *Collection) Query(ctx context.Context, embedding []float32, opts vectorstore.QueryOptions) ([]vectorstore.Hit, error) {
	info, err := lookupCollection(ctx, c.db, c.name)
	if err != nil {
		return nil, err
	}
	if opts.N <= 0 {
		return nil, nil
	}
	if info.dimension.Valid && int(info.dimension.Int64) != len(embedding) {
		return nil, fmt.Errorf("%w: collection %q stores %d values, query has %d",
			vectorstore.ErrDimensionMismatch, c.name, info.dimension.Int64, len(embedding))
	}

	if expr := opts.WhereDocument.Match; expr != "" {
		if err := c.checkMatch(ctx, expr); err != nil {
			return nil, err
		}
	}

	query, args := buildCandidateQuery(info.id, opts)
	rows, err := c.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query %q: %w", c.name, err)
	}
	defer rows.Close() //nolint:errcheck // read-only

	var hits []vectorstore.Hit
	for rows.Next() {
		var (
			h    vectorstore.Hit
			blob []byte
			meta string
		)
		if err := rows.Scan(&h.ID, &blob, &h.Document, &meta); err != nil {
			return nil, fmt.Errorf("scan query row: %w", err)
		}
		vec, err := decodeVector(blob)
		if err != nil {
			return nil, fmt.Errorf("record %s: %w", h.ID, err)
		}
		if h.Metadata, err = decodeMetadata(meta); err != nil {
			return nil, err
		}
		h.Distance = vectorstore.CosineDistance(embedding, vec)
		hits = append(hits, h)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate query rows: %w", err)
	}

	slices.SortStableFunc(hits, func(a, b vectorstore.Hit) int {
		return cmp.Compare(a.Distance, b.Distance)
	})
	if len(hits) > opts.N {
		hits = hits[:opts.N]
	}
	return hits, nil
}

// checkMatch runs expr against the full-text index alone so that a syntax
// error is reported as ErrInvalidFilter rather than a storage failure.
func (c *Collection) checkMatch(ctx context.Context, expr string) error {
	rows, err := c.db.QueryContext(ctx, `SELECT rowid FROM embeddings_fts WHERE embeddings_fts MATCH ? LIMIT 1`, expr)
	if err == nil {
		for rows.Next() {
		}
		err = rows.Err()
		_ = rows.Close()
	}
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return fmt.Errorf("%w: $match %q: %v", vectorstore.ErrInvalidFilter, expr, err)
	}
	return nil
}

func buildCandidateQuery(collectionID int64, opts vectorstore.QueryOptions) (string, []any) {
	var sb strings.Builder
	sb.WriteString(`SELECT e.id, e.embedding, e.document, e.metadata FROM embeddings e WHERE e.collection_id = ?`)
	args := []any{collectionID}

	keys := make([]string, 0, len(opts.Where))
	for k := range opts.Where {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	for _, k := range keys {
		sb.WriteString(` AND json_extract(e.metadata, ?) = ?`)
		args = append(args, jsonPath(k), opts.Where[k])
	}
	if doc := opts.WhereDocument; doc.Contains != "" {
		sb.WriteString(` AND instr(e.document, ?) > 0`)
		args = append(args, doc.Contains)
	}
	if doc := opts.WhereDocument; doc.Match != "" {
		sb.WriteString(` AND e.seq IN (SELECT rowid FROM embeddings_fts WHERE embeddings_fts MATCH ?)`)
		args = append(args, doc.Match)
	}
	sb.WriteString(` ORDER BY e.seq`)
	return sb.String(), args
}

// jsonPath quotes a metadata key as a JSON path member.
func jsonPath(key string) string {
	return `$."` + strings.ReplaceAll(key, `"`, `\"`) + `"`
}
