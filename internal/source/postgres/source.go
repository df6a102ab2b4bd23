// Package postgres reads entity records from a Postgres table with a pgvector column.
package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/lib/pq"
	"github.com/pgvector/pgvector-go"

	"github.com/kailas-cloud/zoomgraph/internal/domain/entity"
	"github.com/kailas-cloud/zoomgraph/internal/source"
)

// Source reads records from a table with columns id, content, embedding (vector)
// and metadata (json or jsonb). A NULL embedding leaves the record to the embedder.
type Source struct {
	db    *sql.DB
	table string
	limit int
}

// Open connects to dsn with the lib/pq driver.
func Open(dsn, table string, limit int) (*Source, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	return New(db, table, limit), nil
}

// New creates a source over an existing connection pool. limit 0 reads every row.
func New(db *sql.DB, table string, limit int) *Source {
	return &Source{db: db, table: table, limit: limit}
}

// Ping checks the connection.
func (s *Source) Ping(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return fmt.Errorf("ping postgres: %w", err)
	}
	return nil
}

// Close releases the connection pool.
func (s *Source) Close() error { return s.db.Close() }

// Records reads every row ordered by id.
func (s *Source) Records(ctx context.Context) ([]entity.Record, error) {
	rows, err := s.db.QueryContext(ctx, selectQuery(s.table, s.limit))
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", s.table, err)
	}
	defer func() { _ = rows.Close() }()

	var out []entity.Record
	for rows.Next() {
		var (
			rec      entity.Record
			vec      sql.Null[pgvector.Vector]
			metadata string
		)
		if err := rows.Scan(&rec.ID, &rec.Content, &vec, &metadata); err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}
		if vec.Valid {
			rec.Embeddings = [][]float32{vec.V.Slice()}
		}
		md, err := source.DecodeMetadata([]byte(metadata))
		if err != nil {
			return nil, fmt.Errorf("entity %q: %w", rec.ID, err)
		}
		rec.Metadata = md
		if err := source.Check(&rec); err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate rows: %w", err)
	}
	return out, nil
}

func selectQuery(table string, limit int) string {
	parts := strings.Split(table, ".")
	for i, p := range parts {
		parts[i] = pq.QuoteIdentifier(p)
	}
	q := `SELECT id::text, COALESCE(content, ''), embedding, COALESCE(metadata::text, '')
		FROM ` + strings.Join(parts, ".") + `
		ORDER BY id`
	if limit > 0 {
		q += fmt.Sprintf(" LIMIT %d", limit)
	}
	return q
}
