package database

import (
	"database/sql"
	"fmt"
)

var tables = []string{
	`CREATE TABLE IF NOT EXISTS events (
		event_id UUID PRIMARY KEY,
		session_id TEXT NOT NULL,
		user_id TEXT NOT NULL,
		page TEXT NOT NULL DEFAULT '',
		category TEXT NOT NULL,
		action TEXT NOT NULL,
		data JSONB NOT NULL DEFAULT '{}'::jsonb,
		viewport_w INTEGER NOT NULL DEFAULT 0,
		viewport_h INTEGER NOT NULL DEFAULT 0,
		device_class TEXT NOT NULL DEFAULT '',
		occurred_at TIMESTAMPTZ NOT NULL,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE TABLE IF NOT EXISTS sessions (
		session_id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL,
		user_agent TEXT NOT NULL DEFAULT '',
		screen_resolution TEXT NOT NULL DEFAULT '',
		language TEXT NOT NULL DEFAULT '',
		referrer TEXT NOT NULL DEFAULT '',
		started_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		last_activity TIMESTAMPTZ NOT NULL DEFAULT now(),
		page_views INTEGER NOT NULL DEFAULT 0,
		total_events INTEGER NOT NULL DEFAULT 0
	)`,
	`CREATE TABLE IF NOT EXISTS recommendations (
		id SERIAL PRIMARY KEY,
		generated_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		category TEXT NOT NULL,
		priority TEXT NOT NULL,
		title TEXT NOT NULL,
		description TEXT NOT NULL DEFAULT '',
		evidence TEXT NOT NULL DEFAULT '',
		impact TEXT NOT NULL DEFAULT '',
		effort TEXT NOT NULL DEFAULT '',
		status TEXT NOT NULL DEFAULT 'new',
		source_model TEXT NOT NULL DEFAULT ''
	)`,
	`CREATE TABLE IF NOT EXISTS snapshots (
		snapshot_date DATE PRIMARY KEY,
		metrics JSONB NOT NULL DEFAULT '{}'::jsonb,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE TABLE IF NOT EXISTS users (
		id SERIAL PRIMARY KEY,
		email TEXT NOT NULL UNIQUE,
		hashed_password BYTEA NOT NULL,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
}

var indexes = []string{
	`CREATE INDEX IF NOT EXISTS idx_events_created_at ON events (created_at)`,
	`CREATE INDEX IF NOT EXISTS idx_events_category_created_at ON events (category, created_at)`,
	`CREATE INDEX IF NOT EXISTS idx_events_session_id ON events (session_id)`,
	`CREATE INDEX IF NOT EXISTS idx_sessions_last_activity ON sessions (last_activity)`,
	`CREATE INDEX IF NOT EXISTS idx_recommendations_status ON recommendations (status)`,
}

// EnsureSchema idempotently creates all tables and indexes at startup.
func EnsureSchema(db *sql.DB) error {
	for _, tableSQL := range tables {
		if _, err := db.Exec(tableSQL); err != nil {
			return fmt.Errorf("failed to create table for query [%s]: %w", tableSQL, err)
		}
	}
	for _, indexSQL := range indexes {
		if _, err := db.Exec(indexSQL); err != nil {
			return fmt.Errorf("failed to create index for query [%s]: %w", indexSQL, err)
		}
	}
	return nil
}
