package migration

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// Executor applies migrations to a database and tracks them in schema_migrations.
type Executor struct {
	db  *sql.DB
	now func() time.Time
}

// NewExecutor creates a new SQLite migration executor
func NewExecutor(db *sql.DB) *Executor {
	return &Executor{db: db, now: time.Now}
}

// InitializeVersionTable creates the schema_migrations table if it doesn't exist
func (e *Executor) InitializeVersionTable(ctx context.Context) error {
	const createTableSQL = `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version TEXT PRIMARY KEY,
			applied_at TEXT NOT NULL,
			checksum TEXT NOT NULL DEFAULT '',
			execution_time_ms INTEGER NOT NULL DEFAULT 0
		)
	`
	if _, err := e.db.ExecContext(ctx, createTableSQL); err != nil {
		return NewDatabaseError("", "create schema_migrations table", err)
	}
	return nil
}

// Execute runs a migration and records it within one transaction.
func (e *Executor) Execute(ctx context.Context, migration Migration) (err error) {
	started := e.now()

	tx, err := e.db.BeginTx(ctx, nil)
	if err != nil {
		return NewDatabaseError(migration.Version, "begin transaction", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	for i, stmt := range splitStatements(migration.SQL) {
		if _, err = tx.ExecContext(ctx, stmt); err != nil {
			return NewDatabaseError(migration.Version, fmt.Sprintf("execute statement %d", i+1), err)
		}
	}

	const insertSQL = `
		INSERT INTO schema_migrations (version, applied_at, checksum, execution_time_ms)
		VALUES (?, ?, ?, ?)
	`
	elapsed := e.now().Sub(started)
	if _, err = tx.ExecContext(ctx, insertSQL,
		migration.Version,
		e.now().UTC().Format(time.RFC3339),
		migration.Checksum,
		elapsed.Milliseconds(),
	); err != nil {
		return NewDatabaseError(migration.Version, "record migration", err)
	}

	if err = tx.Commit(); err != nil {
		return NewDatabaseError(migration.Version, "commit transaction", err)
	}
	return nil
}

// Applied returns all applied migrations ordered by version.
func (e *Executor) Applied(ctx context.Context) ([]AppliedMigration, error) {
	const querySQL = `
		SELECT version, applied_at, checksum, execution_time_ms
		FROM schema_migrations
		ORDER BY CAST(version AS INTEGER) ASC
	`
	rows, err := e.db.QueryContext(ctx, querySQL)
	if err != nil {
		return nil, NewDatabaseError("", "get applied versions", err)
	}
	defer rows.Close()

	var applied []AppliedMigration
	for rows.Next() {
		var (
			version, appliedAt, checksum string
			executionMs                  int64
		)
		if err := rows.Scan(&version, &appliedAt, &checksum, &executionMs); err != nil {
			return nil, NewDatabaseError("", "scan applied migration", err)
		}
		at, err := time.Parse(time.RFC3339, appliedAt)
		if err != nil {
			return nil, NewDatabaseError(version, "parse applied_at", err)
		}
		applied = append(applied, AppliedMigration{
			Version:       version,
			AppliedAt:     at,
			ExecutionTime: time.Duration(executionMs) * time.Millisecond,
			Checksum:      checksum,
		})
	}
	if err := rows.Err(); err != nil {
		return nil, NewDatabaseError("", "iterate applied migrations", err)
	}
	return applied, nil
}
