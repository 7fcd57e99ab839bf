package db

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// DB is the Postgres record store.
type DB struct {
	pool *pgxpool.Pool
}

func New(ctx context.Context, databaseURL string) (*DB, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// Test connection
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &DB{pool: pool}, nil
}

func (db *DB) Close() {
	db.pool.Close()
}

// RunMigrations creates the records table.
func (db *DB) RunMigrations(ctx context.Context) error {
	_, err := db.pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS records (
			form TEXT NOT NULL,
			key TEXT NOT NULL,
			entity_code TEXT NOT NULL,
			report_date TEXT NOT NULL,
			data JSONB NOT NULL,
			net_cash NUMERIC NOT NULL,
			profit NUMERIC NOT NULL,
			status TEXT NOT NULL,
			version BIGINT NOT NULL,
			submitted_by TEXT NOT NULL,
			submitted_at TIMESTAMPTZ NOT NULL,
			PRIMARY KEY (form, key)
		);
		CREATE INDEX IF NOT EXISTS idx_records_entity ON records(form, entity_code);
	`)
	return err
}
