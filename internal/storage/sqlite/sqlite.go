// Package sqlite stores search history in a SQLite database.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/FranksOps/haggle/internal/storage"
	_ "modernc.org/sqlite"
)

// ensure sqliteBackend implements storage.Backend
var _ storage.Backend = (*sqliteBackend)(nil)

type sqliteBackend struct {
	db *sql.DB
}

const schema = `
CREATE TABLE IF NOT EXISTS searches (
	id TEXT PRIMARY KEY,
	title TEXT NOT NULL,
	result_count INTEGER NOT NULL,
	statistics TEXT NOT NULL,
	results TEXT NOT NULL,
	sources TEXT NOT NULL,
	created_at INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS searches_created_at ON searches (created_at);
`

// New opens (creating if needed) the database at dsn.
func New(dsn string) (storage.Backend, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("sqlite: open: %w", err)
	}

	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("sqlite: schema: %w", err)
	}

	return &sqliteBackend{db: db}, nil
}

func (b *sqliteBackend) Save(ctx context.Context, record *storage.SearchRecord) error {
	stats, results, sources, err := encode(record)
	if err != nil {
		return err
	}

	query := `
	INSERT INTO searches (
		id, title, result_count, statistics, results, sources, created_at
	) VALUES (?, ?, ?, ?, ?, ?, ?)
	`

	_, err = b.db.ExecContext(ctx, query,
		record.ID,
		record.Title,
		record.Count,
		stats,
		results,
		sources,
		record.CreatedAt.UnixNano(),
	)
	if err != nil {
		return fmt.Errorf("sqlite: insert: %w", err)
	}

	return nil
}

func (b *sqliteBackend) Query(ctx context.Context, filter storage.Filter) ([]*storage.SearchRecord, error) {
	query := `SELECT id, title, result_count, statistics, results, sources, created_at FROM searches WHERE 1=1`
	args := []any{}

	if filter.Title != "" {
		query += ` AND instr(lower(title), lower(?)) > 0`
		args = append(args, filter.Title)
	}
	if filter.Since != nil {
		query += ` AND created_at >= ?`
		args = append(args, filter.Since.UnixNano())
	}

	query += ` ORDER BY created_at DESC`

	// SQLite only accepts OFFSET after a LIMIT; -1 means no limit.
	if filter.Limit > 0 || filter.Offset > 0 {
		limit := filter.Limit
		if limit <= 0 {
			limit = -1
		}
		query += ` LIMIT ?`
		args = append(args, limit)
	}
	if filter.Offset > 0 {
		query += ` OFFSET ?`
		args = append(args, filter.Offset)
	}

	rows, err := b.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("sqlite: query: %w", err)
	}
	defer rows.Close()

	records := []*storage.SearchRecord{}
	for rows.Next() {
		var (
			r                       storage.SearchRecord
			stats, results, sources string
			createdAt               int64
		)

		err := rows.Scan(&r.ID, &r.Title, &r.Count, &stats, &results, &sources, &createdAt)
		if err != nil {
			return nil, fmt.Errorf("sqlite: scan: %w", err)
		}

		if err := decode(&r, []byte(stats), []byte(results), []byte(sources)); err != nil {
			return nil, err
		}
		r.CreatedAt = time.Unix(0, createdAt).UTC()

		records = append(records, &r)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: rows: %w", err)
	}

	return records, nil
}

func (b *sqliteBackend) Close() error {
	return b.db.Close()
}

func encode(r *storage.SearchRecord) (stats, results, sources string, err error) {
	s, err := json.Marshal(r.Statistics)
	if err != nil {
		return "", "", "", fmt.Errorf("sqlite: encode statistics: %w", err)
	}
	res, err := json.Marshal(r.Results)
	if err != nil {
		return "", "", "", fmt.Errorf("sqlite: encode results: %w", err)
	}
	src, err := json.Marshal(r.Sources)
	if err != nil {
		return "", "", "", fmt.Errorf("sqlite: encode sources: %w", err)
	}
	return string(s), string(res), string(src), nil
}

func decode(r *storage.SearchRecord, stats, results, sources []byte) error {
	if err := json.Unmarshal(stats, &r.Statistics); err != nil {
		return fmt.Errorf("sqlite: decode statistics: %w", err)
	}
	if err := json.Unmarshal(results, &r.Results); err != nil {
		return fmt.Errorf("sqlite: decode results: %w", err)
	}
	if err := json.Unmarshal(sources, &r.Sources); err != nil {
		return fmt.Errorf("sqlite: decode sources: %w", err)
	}
	return nil
}
