package postgres

import (
	"context"
	_ "embed"
	"fmt"

	"prodledger/pkg/logger"
)

// Schema is the full DDL. Every statement is idempotent.
//
//go:embed schema/schema.sql
var Schema string

// migrationLockID serializes concurrent Migrate calls across processes.
const migrationLockID = 727_2024

// Migrate applies Schema inside one transaction guarded by an advisory lock.
func Migrate(ctx context.Context, txm *TxManager) error {
	err := txm.RunInTransaction(ctx, func(ctx context.Context) error {
		q := txm.GetQuerier(ctx)
		if _, err := q.Exec(ctx, "SELECT pg_advisory_xact_lock($1)", migrationLockID); err != nil {
			return fmt.Errorf("acquire migration lock: %w", err)
		}
		if _, err := q.Exec(ctx, Schema); err != nil {
			return fmt.Errorf("apply schema: %w", err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	logger.Info(ctx, "database schema is up to date")
	return nil
}
