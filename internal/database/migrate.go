package database

import (
	"context"
	"database/sql"
	_ "embed"
	"fmt"
	"log/slog"
)

//go:embed migrations/001_initial.up.sql
var initialMigrationSQL string

var requiredTables = []string{
	"users",
}

func (db *DB) EnsureSchema(ctx context.Context) error {
	if db == nil || db.SQL == nil {
		return fmt.Errorf("database pool is not initialized")
	}
	return EnsureSchema(ctx, db.SQL)
}

// EnsureSchema applies the initial migration when any required table is missing.
// The migration only uses IF NOT EXISTS statements so re-running it is safe.
func EnsureSchema(ctx context.Context, conn *sql.DB) error {
	exists, err := hasAllRequiredTables(ctx, conn)
	if err != nil {
		return fmt.Errorf("check existing tables: %w", err)
	}

	if !exists {
		slog.Info("database schema missing tables; applying initial migration")
		if _, err := conn.ExecContext(ctx, initialMigrationSQL); err != nil {
			return fmt.Errorf("apply initial migration: %w", err)
		}

		exists, err = hasAllRequiredTables(ctx, conn)
		if err != nil {
			return fmt.Errorf("re-check tables after migration: %w", err)
		}

		if !exists {
			return fmt.Errorf("schema initialization incomplete: required tables are still missing")
		}
	}

	slog.Info("database schema ensured")
	return nil
}

func hasAllRequiredTables(ctx context.Context, conn *sql.DB) (bool, error) {
	for _, table := range requiredTables {
		var exists bool
		err := conn.QueryRowContext(ctx, `
			SELECT EXISTS (
				SELECT 1 FROM information_schema.tables
				WHERE table_schema = 'public'
				  AND table_name = $1
			)
		`, table).Scan(&exists)
		if err != nil {
			return false, err
		}
		if !exists {
			return false, nil
		}
	}

	return true, nil
}
