// Package migration applies versioned SQL migrations to a SQLite database.
//
// Migration files follow the naming convention {version}_{description}.sql
// (e.g. "001_initial_schema.sql") and are read from an fs.FS, normally an
// embedded directory. Each migration runs in its own transaction together with
// the schema_migrations row that records it, so a failed migration leaves no
// trace.
//
// Example usage:
//
//	manager := migration.NewManager(migration.NewScanner(files, "migrations"), migration.NewExecutor(db), logger)
//	if _, err := manager.Run(ctx); err != nil {
//		return fmt.Errorf("migrate: %w", err)
//	}
package migration
