package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/FranksOps/pulse/internal/runstore"
	_ "modernc.org/sqlite"
)

// ensure sqliteBackend implements runstore.Backend
var _ runstore.Backend = (*sqliteBackend)(nil)

type sqliteBackend struct {
	db *sql.DB
}

const schema = `
CREATE TABLE IF NOT EXISTS runs (
	id TEXT PRIMARY KEY,
	topic TEXT NOT NULL,
	status TEXT NOT NULL,
	ok BOOLEAN NOT NULL,
	item_count INTEGER NOT NULL,
	items TEXT,
	sentiment TEXT,
	error TEXT,
	duration_ms INTEGER NOT NULL,
	created_at DATETIME NOT NULL
);
`

// New creates a new SQLite-backed runstore.Backend.
func New(dsn string) (runstore.Backend, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite run store: %w", err)
	}

	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create runs table: %w", err)
	}

	return &sqliteBackend{db: db}, nil
}

func (b *sqliteBackend) Save(ctx context.Context, rec *runstore.RunRecord) error {
	query := `
	INSERT INTO runs (
		id, topic, status, ok, item_count, items, sentiment, error, duration_ms, created_at
	) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := b.db.ExecContext(ctx, query,
		rec.ID,
		rec.Topic,
		rec.Status,
		rec.OK,
		rec.ItemCount,
		string(rec.Items),
		string(rec.Sentiment),
		rec.Error,
		rec.DurationMs,
		rec.CreatedAt,
	)

	if err != nil {
		return fmt.Errorf("insert run record: %w", err)
	}

	return nil
}

func (b *sqliteBackend) Query(ctx context.Context, filter runstore.Filter) ([]*runstore.RunRecord, error) {
	query := `SELECT id, topic, status, ok, item_count, items, sentiment, error, duration_ms, created_at FROM runs WHERE 1=1`
	args := []any{}

	if filter.Topic != "" {
		query += ` AND topic = ?`
		args = append(args, filter.Topic)
	}
	if filter.Status != "" {
		query += ` AND status = ?`
		args = append(args, filter.Status)
	}
	if filter.OK != nil {
		query += ` AND ok = ?`
		args = append(args, *filter.OK)
	}
	if filter.Since != nil {
		query += ` AND created_at >= ?`
		args = append(args, *filter.Since)
	}

	query += ` ORDER BY created_at DESC`

	if filter.Limit > 0 {
		query += ` LIMIT ?`
		args = append(args, filter.Limit)
	}
	if filter.Offset > 0 {
		query += ` OFFSET ?`
		args = append(args, filter.Offset)
	}

	rows, err := b.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	var results []*runstore.RunRecord
	for rows.Next() {
		var r runstore.RunRecord
		var items, sentiment string

		err := rows.Scan(
			&r.ID, &r.Topic, &r.Status, &r.OK, &r.ItemCount,
			&items, &sentiment, &r.Error, &r.DurationMs, &r.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan run record: %w", err)
		}

		if items != "" {
			r.Items = []byte(items)
		}
		if sentiment != "" {
			r.Sentiment = []byte(sentiment)
		}

		results = append(results, &r)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate runs: %w", err)
	}

	return results, nil
}

func (b *sqliteBackend) Close() error {
	return b.db.Close()
}
