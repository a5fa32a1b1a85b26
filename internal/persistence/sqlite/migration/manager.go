package migration

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// Manager orchestrates the migration process.
type Manager struct {
	scanner  *Scanner
	executor *Executor
	logger   *slog.Logger
}

// NewManager creates a Manager. A nil logger falls back to slog.Default.
func NewManager(scanner *Scanner, executor *Executor, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{
		scanner:  scanner,
		executor: executor,
		logger:   logger.With("component", "migration"),
	}
}

// Run executes all pending migrations in version order and returns how many were applied.
func (m *Manager) Run(ctx context.Context) (int, error) {
	started := time.Now()

	status, err := m.Status(ctx)
	if err != nil {
		return 0, err
	}
	m.logger.Info("schema version", "current", status.CurrentVersion, "pending", len(status.Pending))

	for i, migration := range status.Pending {
		logger := m.logger.With("version", migration.Version, "file", migration.FilePath)
		logger.Info("applying migration", "description", migration.Description, "step", i+1, "of", len(status.Pending))

		if err := m.executor.Execute(ctx, migration); err != nil {
			logger.Error("migration failed", "error", err)
			return i, NewMigrationError(migration.Version, migration.FilePath, "execute migration",
				fmt.Errorf("%w: %v", ErrMigrationFailed, err))
		}
	}

	if len(status.Pending) > 0 {
		m.logger.Info("migrations complete", "applied", len(status.Pending), "duration", time.Since(started))
	}
	return len(status.Pending), nil
}

// Status compares the migration files with the schema_migrations table. An
// applied migration whose file changed since it ran is reported as an error.
func (m *Manager) Status(ctx context.Context) (Status, error) {
	if err := m.executor.InitializeVersionTable(ctx); err != nil {
		return Status{}, fmt.Errorf("failed to initialize version table: %w", err)
	}

	migrations, err := m.scanner.Scan()
	if err != nil {
		return Status{}, fmt.Errorf("failed to scan migrations: %w", err)
	}
	applied, err := m.executor.Applied(ctx)
	if err != nil {
		return Status{}, fmt.Errorf("failed to get applied versions: %w", err)
	}

	checksums := make(map[string]string, len(applied))
	for _, a := range applied {
		checksums[a.Version] = a.Checksum
	}

	status := Status{Applied: applied}
	if len(applied) > 0 {
		status.CurrentVersion = applied[len(applied)-1].Version
	}
	for _, migration := range migrations {
		checksum, ok := checksums[migration.Version]
		if !ok {
			status.Pending = append(status.Pending, migration)
			continue
		}
		if checksum != "" && checksum != migration.Checksum {
			return Status{}, NewMigrationError(migration.Version, migration.FilePath, "verify checksum", ErrChecksumMismatch)
		}
	}
	return status, nil
}
