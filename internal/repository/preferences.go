package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"go.uber.org/zap"
)

// ErrPreferenceNotFound key has never been written.
var ErrPreferenceNotFound = errors.New("preference not found")

// Schema creates the ui_preferences table.
const Schema = `
CREATE TABLE IF NOT EXISTS ui_preferences (
	key        TEXT PRIMARY KEY,
	value      TEXT NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
)`

// PreferencesRepository stores UI preference values in PostgreSQL.
type PreferencesRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

func NewPreferencesRepository(db *sql.DB, logger *zap.Logger) *PreferencesRepository {
	return &PreferencesRepository{
		db:     db,
		logger: logger,
	}
}

// EnsureSchema creates the table if it is missing.
func (r *PreferencesRepository) EnsureSchema(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, Schema); err != nil {
		return fmt.Errorf("failed to create ui_preferences: %w", err)
	}
	return nil
}

// Get returns the raw value for key.
func (r *PreferencesRepository) Get(ctx context.Context, key string) (string, error) {
	var value string
	err := r.db.QueryRowContext(ctx, `SELECT value FROM ui_preferences WHERE key = $1`, key).Scan(&value)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", ErrPreferenceNotFound
		}
		return "", fmt.Errorf("failed to query preference %s: %w", key, err)
	}
	return value, nil
}

// Put upserts key.
func (r *PreferencesRepository) Put(ctx context.Context, key, value string) error {
	query := `
		INSERT INTO ui_preferences (key, value, updated_at)
		VALUES ($1, $2, NOW())
		ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value, updated_at = NOW()
	`
	if _, err := r.db.ExecContext(ctx, query, key, value); err != nil {
		return fmt.Errorf("failed to save preference %s: %w", key, err)
	}
	r.logger.Debug("Preference saved", zap.String("key", key))
	return nil
}

// Delete removes key; a missing key is not an error.
func (r *PreferencesRepository) Delete(ctx context.Context, key string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM ui_preferences WHERE key = $1`, key); err != nil {
		return fmt.Errorf("failed to delete preference %s: %w", key, err)
	}
	r.logger.Debug("Preference deleted", zap.String("key", key))
	return nil
}
