// Package repository provides PostgreSQL persistence for approvers and the
// operation log.
package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
)

// PostgresApproverRepository stores approval-surface operators in PostgreSQL.
type PostgresApproverRepository struct {
	db *sqlx.DB
}

// NewPostgresApproverRepository creates a repository over db.
func NewPostgresApproverRepository(db *sqlx.DB) *PostgresApproverRepository {
	return &PostgresApproverRepository{db: db}
}

// ApproverExists checks whether an approver with the specified login exists.
func (r *PostgresApproverRepository) ApproverExists(ctx context.Context, login string) (bool, error) {
	var exists bool
	if err := r.db.GetContext(ctx, &exists,
		`SELECT EXISTS(SELECT 1 FROM approvers WHERE login = $1)`, login); err != nil {
		return false, fmt.Errorf("approver exists: %w", err)
	}
	return exists, nil
}

// RegisterApprover inserts an approver. Registering an existing login is a
// no-op.
func (r *PostgresApproverRepository) RegisterApprover(ctx context.Context, login string) error {
	if _, err := r.db.ExecContext(ctx,
		`INSERT INTO approvers (login) VALUES ($1) ON CONFLICT DO NOTHING`, login); err != nil {
		return fmt.Errorf("register approver: %w", err)
	}
	return nil
}
