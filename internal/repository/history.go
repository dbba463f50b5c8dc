package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/atinyakov/zkkeeper/internal/models"
	"github.com/jmoiron/sqlx"
)

// PostgresHistoryRepository stores the operation log and its settings.
type PostgresHistoryRepository struct {
	db *sqlx.DB
}

// NewPostgresHistoryRepository wraps db, which must use the postgres driver
// name so named parameters bind as $n.
func NewPostgresHistoryRepository(db *sqlx.DB) *PostgresHistoryRepository {
	return &PostgresHistoryRepository{db: db}
}

// InsertOperation appends one entry. Insertion order is kept by the seq column.
func (r *PostgresHistoryRepository) InsertOperation(ctx context.Context, entry models.OperationLogEntry) error {
	_, err := r.db.NamedExecContext(ctx, `
		INSERT INTO operations (id, operation, identity, origin, outcome, created_at)
		VALUES (:id, :operation, :identity, :origin, :outcome, :created_at)`, entry)
	if err != nil {
		return fmt.Errorf("insert operation: %w", err)
	}
	return nil
}

// ListOperations returns every entry in insertion order.
func (r *PostgresHistoryRepository) ListOperations(ctx context.Context) ([]models.OperationLogEntry, error) {
	var out []models.OperationLogEntry
	err := r.db.SelectContext(ctx, &out, `
		SELECT id, operation, identity, origin, outcome, created_at
		  FROM operations
		 ORDER BY seq`)
	if err != nil {
		return nil, fmt.Errorf("list operations: %w", err)
	}
	return out, nil
}

// ClearOperations removes every entry.
func (r *PostgresHistoryRepository) ClearOperations(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM operations`); err != nil {
		return fmt.Errorf("clear operations: %w", err)
	}
	return nil
}

// Settings returns the history settings. History is enabled until a setting
// is saved.
func (r *PostgresHistoryRepository) Settings(ctx context.Context) (models.HistorySettings, error) {
	var s models.HistorySettings
	err := r.db.GetContext(ctx, &s, `SELECT is_enabled FROM history_settings WHERE id = 1`)
	if errors.Is(err, sql.ErrNoRows) {
		return models.HistorySettings{IsEnabled: true}, nil
	}
	if err != nil {
		return models.HistorySettings{}, fmt.Errorf("load history settings: %w", err)
	}
	return s, nil
}

// SaveSettings upserts the single settings row.
func (r *PostgresHistoryRepository) SaveSettings(ctx context.Context, settings models.HistorySettings) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO history_settings (id, is_enabled) VALUES (1, $1)
		ON CONFLICT (id) DO UPDATE SET is_enabled = EXCLUDED.is_enabled`, settings.IsEnabled)
	if err != nil {
		return fmt.Errorf("save history settings: %w", err)
	}
	return nil
}
