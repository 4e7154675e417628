// Package postgres stores search history in PostgreSQL through a pgx pool.
package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/FranksOps/haggle/internal/storage"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ensure postgresBackend implements storage.Backend
var _ storage.Backend = (*postgresBackend)(nil)

type postgresBackend struct {
	pool *pgxpool.Pool
}

const schema = `
CREATE TABLE IF NOT EXISTS searches (
	id TEXT PRIMARY KEY,
	title TEXT NOT NULL,
	result_count INTEGER NOT NULL,
	statistics JSONB NOT NULL,
	results JSONB NOT NULL,
	sources JSONB NOT NULL,
	created_at TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS searches_created_at ON searches (created_at DESC);
`

// New connects to dsn and ensures the schema exists.
func New(ctx context.Context, dsn string) (storage.Backend, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("postgres: connect: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres: ping: %w", err)
	}

	if _, err := pool.Exec(ctx, schema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres: schema: %w", err)
	}

	return &postgresBackend{pool: pool}, nil
}

func (b *postgresBackend) Save(ctx context.Context, record *storage.SearchRecord) error {
	stats, err := json.Marshal(record.Statistics)
	if err != nil {
		return fmt.Errorf("postgres: encode statistics: %w", err)
	}
	results, err := json.Marshal(record.Results)
	if err != nil {
		return fmt.Errorf("postgres: encode results: %w", err)
	}
	sources, err := json.Marshal(record.Sources)
	if err != nil {
		return fmt.Errorf("postgres: encode sources: %w", err)
	}

	query := `
	INSERT INTO searches (
		id, title, result_count, statistics, results, sources, created_at
	) VALUES ($1, $2, $3, $4, $5, $6, $7)
	`

	_, err = b.pool.Exec(ctx, query,
		record.ID,
		record.Title,
		record.Count,
		stats,
		results,
		sources,
		record.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("postgres: insert: %w", err)
	}

	return nil
}

func (b *postgresBackend) Query(ctx context.Context, filter storage.Filter) ([]*storage.SearchRecord, error) {
	query := `SELECT id, title, result_count, statistics, results, sources, created_at FROM searches WHERE 1=1`
	args := []any{}
	paramCount := 1

	if filter.Title != "" {
		query += fmt.Sprintf(` AND strpos(lower(title), lower($%d)) > 0`, paramCount)
		args = append(args, filter.Title)
		paramCount++
	}
	if filter.Since != nil {
		query += fmt.Sprintf(` AND created_at >= $%d`, paramCount)
		args = append(args, *filter.Since)
		paramCount++
	}

	query += ` ORDER BY created_at DESC`

	if filter.Limit > 0 {
		query += fmt.Sprintf(` LIMIT $%d`, paramCount)
		args = append(args, filter.Limit)
		paramCount++
	}
	if filter.Offset > 0 {
		query += fmt.Sprintf(` OFFSET $%d`, paramCount)
		args = append(args, filter.Offset)
	}

	rows, err := b.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("postgres: query: %w", err)
	}
	defer rows.Close()

	records := []*storage.SearchRecord{}
	for rows.Next() {
		var (
			r                       storage.SearchRecord
			stats, results, sources []byte
		)

		err := rows.Scan(&r.ID, &r.Title, &r.Count, &stats, &results, &sources, &r.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("postgres: scan: %w", err)
		}

		if err := json.Unmarshal(stats, &r.Statistics); err != nil {
			return nil, fmt.Errorf("postgres: decode statistics: %w", err)
		}
		if err := json.Unmarshal(results, &r.Results); err != nil {
			return nil, fmt.Errorf("postgres: decode results: %w", err)
		}
		if err := json.Unmarshal(sources, &r.Sources); err != nil {
			return nil, fmt.Errorf("postgres: decode sources: %w", err)
		}
		r.CreatedAt = r.CreatedAt.UTC()

		records = append(records, &r)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: rows: %w", err)
	}

	return records, nil
}

func (b *postgresBackend) Close() error {
	b.pool.Close()
	return nil
}
