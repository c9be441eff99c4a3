package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"

	"github.com/clearbasin/planengine/internal/config"
)

// Common errors.
var (
	ErrNotFound = errors.New("record not found")
)

// DB represents a database connection interface.
type DB interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// Open connects to the configured database driver.
func Open(cfg config.DatabaseConfig) (*sql.DB, error) {
	switch cfg.Driver {
	case "sqlite":
		db, err := sql.Open("sqlite3", cfg.SQLite.Path+"?_busy_timeout=5000&_journal_mode=WAL")
		if err != nil {
			return nil, fmt.Errorf("open sqlite: %w", err)
		}
		if cfg.SQLite.MaxOpenConns > 0 {
			db.SetMaxOpenConns(cfg.SQLite.MaxOpenConns)
		}
		return db, nil
	case "postgres":
		db, err := sql.Open("postgres", cfg.Postgres.DSN)
		if err != nil {
			return nil, fmt.Errorf("open postgres: %w", err)
		}
		db.SetMaxOpenConns(cfg.Postgres.MaxOpenConns)
		db.SetMaxIdleConns(cfg.Postgres.MaxIdleConns)
		db.SetConnMaxLifetime(cfg.Postgres.ConnMaxLifetime)
		return db, nil
	default:
		return nil, fmt.Errorf("unknown database driver %q", cfg.Driver)
	}
}

// schemaDDL bootstraps the tables the core reads and writes. Relational
// schema ownership is external; this DDL is idempotent and only covers what
// the pipeline touches.
var schemaDDL = []string{
	`CREATE TABLE IF NOT EXISTS uploads (
		id TEXT PRIMARY KEY,
		slug TEXT NOT NULL,
		path TEXT NOT NULL,
		original_name TEXT NOT NULL DEFAULT '',
		created_at TIMESTAMP NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS page_records (
		id TEXT PRIMARY KEY,
		upload_id TEXT NOT NULL,
		page_number INTEGER NOT NULL,
		page_pdf_path TEXT,
		extracted_text TEXT,
		extracted_html TEXT,
		structured_result TEXT,
		raw_model_output TEXT,
		status TEXT NOT NULL,
		created_at TIMESTAMP NOT NULL,
		updated_at TIMESTAMP NOT NULL,
		UNIQUE (upload_id, page_number)
	)`,
	`CREATE TABLE IF NOT EXISTS table_artifacts (
		id TEXT PRIMARY KEY,
		page_record_id TEXT NOT NULL,
		idx INTEGER NOT NULL,
		path TEXT NOT NULL,
		created_at TIMESTAMP NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS image_artifacts (
		id TEXT PRIMARY KEY,
		page_record_id TEXT NOT NULL,
		idx INTEGER NOT NULL,
		path TEXT NOT NULL,
		created_at TIMESTAMP NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS entity_records (
		id TEXT PRIMARY KEY,
		upload_id TEXT NOT NULL,
		category TEXT NOT NULL,
		fields TEXT NOT NULL,
		created_at TIMESTAMP NOT NULL,
		updated_at TIMESTAMP NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_entity_records_parent
		ON entity_records (upload_id, category)`,
}

// EnsureSchema creates the core's tables when absent.
func EnsureSchema(ctx context.Context, db DB) error {
	for _, ddl := range schemaDDL {
		if _, err := db.ExecContext(ctx, ddl); err != nil {
			return fmt.Errorf("ensure schema: %w", err)
		}
	}
	return nil
}
