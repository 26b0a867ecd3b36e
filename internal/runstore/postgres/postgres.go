package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/FranksOps/pulse/internal/runstore"
)

// ensure postgresBackend implements runstore.Backend
var _ runstore.Backend = (*postgresBackend)(nil)

type postgresBackend struct {
	pool *pgxpool.Pool
}

const schema = `
CREATE TABLE IF NOT EXISTS runs (
	id TEXT PRIMARY KEY,
	topic TEXT NOT NULL,
	status TEXT NOT NULL,
	ok BOOLEAN NOT NULL,
	item_count INTEGER NOT NULL,
	items JSONB,
	sentiment JSONB,
	error TEXT,
	duration_ms BIGINT NOT NULL,
	created_at TIMESTAMPTZ NOT NULL
);
`

// New creates a new Postgres-backed runstore.Backend.
func New(ctx context.Context, dsn string) (runstore.Backend, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("connect postgres run store: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres run store: %w", err)
	}

	_, err = pool.Exec(ctx, schema)
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("create runs table: %w", err)
	}

	return &postgresBackend{pool: pool}, nil
}

func (b *postgresBackend) Save(ctx context.Context, rec *runstore.RunRecord) error {
	query := `
	INSERT INTO runs (
		id, topic, status, ok, item_count, items, sentiment, error, duration_ms, created_at
	) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`

	_, err := b.pool.Exec(ctx, query,
		rec.ID,
		rec.Topic,
		rec.Status,
		rec.OK,
		rec.ItemCount,
		nullableJSON(rec.Items),
		nullableJSON(rec.Sentiment),
		rec.Error,
		rec.DurationMs,
		rec.CreatedAt,
	)

	if err != nil {
		return fmt.Errorf("insert run record: %w", err)
	}

	return nil
}

// nullableJSON keeps empty payloads as SQL NULL instead of invalid JSONB.
func nullableJSON(raw []byte) any {
	if len(raw) == 0 {
		return nil
	}
	return raw
}

func (b *postgresBackend) Query(ctx context.Context, filter runstore.Filter) ([]*runstore.RunRecord, error) {
	query := `SELECT id, topic, status, ok, item_count, items, sentiment, error, duration_ms, created_at FROM runs WHERE 1=1`
	args := []any{}
	paramCount := 1

	if filter.Topic != "" {
		query += fmt.Sprintf(` AND topic = $%d`, paramCount)
		args = append(args, filter.Topic)
		paramCount++
	}
	if filter.Status != "" {
		query += fmt.Sprintf(` AND status = $%d`, paramCount)
		args = append(args, filter.Status)
		paramCount++
	}
	if filter.OK != nil {
		query += fmt.Sprintf(` AND ok = $%d`, paramCount)
		args = append(args, *filter.OK)
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
		paramCount++
	}

	rows, err := b.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	var results []*runstore.RunRecord
	for rows.Next() {
		var r runstore.RunRecord
		var items, sentiment []byte

		err := rows.Scan(
			&r.ID, &r.Topic, &r.Status, &r.OK, &r.ItemCount,
			&items, &sentiment, &r.Error, &r.DurationMs, &r.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan run record: %w", err)
		}

		r.Items = items
		r.Sentiment = sentiment

		results = append(results, &r)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate runs: %w", err)
	}

	return results, nil
}

func (b *postgresBackend) Close() error {
	b.pool.Close()
	return nil
}
