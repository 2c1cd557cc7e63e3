package database

import (
	"context"
	"database/sql"
	"fmt"

	"sickleave_notifier/internal/domain/notification"
)

// PostgresTransactor runs read-decide-write sequences inside one transaction.
type PostgresTransactor struct {
	db *sql.DB
}

func NewPostgresTransactor(db *sql.DB) *PostgresTransactor {
	return &PostgresTransactor{db: db}
}

func (t *PostgresTransactor) RunInTx(ctx context.Context, fn func(repo notification.Repository) error) error {
	txn, err := t.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer txn.Rollback() // Rollback if not committed

	if err := fn(NewPostgresNotificationRepository(txn)); err != nil {
		return err
	}
	if err := txn.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}
