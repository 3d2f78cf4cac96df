// Package postgres opens the local record database and bootstraps its schema.
// The local store is the durable source of truth for transaction records, so
// failing to reach it at startup is fatal.
package postgres

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/lib/pq"

	"veritrail/internal/platform/config"
)

// Open connects to PostgreSQL, verifies the connection, and applies pool
// settings from config.
func Open(ctx context.Context, cfg config.PostgresConfig) (*sql.DB, error) {
	db, err := sql.Open("postgres", cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}

	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return db, nil
}

// Health checks database reachability.
func Health(ctx context.Context, db *sql.DB) error {
	return db.PingContext(ctx)
}
