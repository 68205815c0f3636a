package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

const settingsSchema = `
CREATE TABLE IF NOT EXISTS travelmate_settings (
	setting_key   TEXT PRIMARY KEY,
	setting_value TEXT NOT NULL,
	updated_at    TIMESTAMP NOT NULL
)`

// SQLStore implements KVStore on a single table in SQLite or PostgreSQL.
// Queries are written with ? placeholders and rebound per driver.
type SQLStore struct {
	db *DB
}

// NewSQLStore creates the settings table if needed
func NewSQLStore(ctx context.Context, db *DB) (*SQLStore, error) {
	if _, err := db.conn.ExecContext(ctx, settingsSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create settings table: %w", err)
	}
	return &SQLStore{db: db}, nil
}

// Get returns the value for key
func (s *SQLStore) Get(ctx context.Context, key string) (string, error) {
	var value string
	query := s.db.conn.Rebind(`SELECT setting_value FROM travelmate_settings WHERE setting_key = ?`)

	err := s.db.conn.GetContext(ctx, &value, query, key)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", ErrKeyNotFound
		}
		return "", fmt.Errorf("failed to get setting %q: %w", key, err)
	}

	return value, nil
}

// Set upserts value under key
func (s *SQLStore) Set(ctx context.Context, key, value string) error {
	query := s.db.conn.Rebind(`
		INSERT INTO travelmate_settings (setting_key, setting_value, updated_at)
		VALUES (?, ?, ?)
		ON CONFLICT (setting_key) DO UPDATE
		SET setting_value = excluded.setting_value, updated_at = excluded.updated_at
	`)

	if _, err := s.db.conn.ExecContext(ctx, query, key, value, time.Now().UTC()); err != nil {
		return fmt.Errorf("failed to set setting %q: %w", key, err)
	}
	return nil
}

// Delete removes key
func (s *SQLStore) Delete(ctx context.Context, key string) error {
	query := s.db.conn.Rebind(`DELETE FROM travelmate_settings WHERE setting_key = ?`)

	if _, err := s.db.conn.ExecContext(ctx, query, key); err != nil {
		return fmt.Errorf("failed to delete setting %q: %w", key, err)
	}
	return nil
}

// Health checks the underlying database
func (s *SQLStore) Health(ctx context.Context) error {
	return s.db.Health(ctx)
}

// Close closes the database connection
func (s *SQLStore) Close() error {
	return s.db.Close()
}
