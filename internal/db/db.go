// Package db stores comparison reports in PostgreSQL.
package db

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// DB wraps a PostgreSQL connection pool
type DB struct {
	pool *pgxpool.Pool
}

// Connect establishes a connection pool to the database
func Connect(ctx context.Context, databaseURL string) (*DB, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &DB{pool: pool}, nil
}

// Close closes the connection pool
func (db *DB) Close() {
	if db.pool != nil {
		db.pool.Close()
	}
}

const schemaSQL = `
CREATE TABLE IF NOT EXISTS compare_runs (
	id           UUID PRIMARY KEY,
	group_name   TEXT NOT NULL,
	build        TEXT NOT NULL,
	mode         TEXT NOT NULL,
	status       TEXT NOT NULL,
	error        TEXT,
	total        INTEGER NOT NULL DEFAULT 0,
	created_at   TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	completed_at TIMESTAMPTZ
);

CREATE TABLE IF NOT EXISTS compare_counts (
	run_id UUID NOT NULL REFERENCES compare_runs(id) ON DELETE CASCADE,
	level  TEXT NOT NULL,
	count  INTEGER NOT NULL,
	PRIMARY KEY (run_id, level)
);

CREATE TABLE IF NOT EXISTS compare_units (
	run_id      UUID NOT NULL REFERENCES compare_runs(id) ON DELETE CASCADE,
	campaign    TEXT NOT NULL,
	size        TEXT NOT NULL,
	type        TEXT NOT NULL,
	score       DOUBLE PRECISION,
	level       TEXT NOT NULL,
	pairs       JSONB,
	diagnostics TEXT[],
	error       TEXT,
	elapsed_ms  BIGINT NOT NULL DEFAULT 0,
	PRIMARY KEY (run_id, campaign, size, type)
);

CREATE INDEX IF NOT EXISTS compare_units_level_idx ON compare_units (run_id, level);
`

// EnsureSchema creates the report tables if they do not exist.
func (db *DB) EnsureSchema(ctx context.Context) error {
	if _, err := db.pool.Exec(ctx, schemaSQL); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}
	return nil
}
