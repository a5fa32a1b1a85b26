// Package sqlite implements the persistence boundary on SQLite through the
// pure-Go modernc.org/sqlite driver. The schema is managed by embedded
// migrations.
package sqlite

import (
	"context"
	"embed"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/example/studio-scheduler/internal/persistence"
	"github.com/example/studio-scheduler/internal/persistence/sqlite/migration"
)

//go:embed migrations/*.sql
var migrationFiles embed.FS

// timeLayout is fixed width so stored instants sort lexically.
const timeLayout = "2006-01-02T15:04:05Z"

// Store is a SQLite-backed persistence.Store.
type Store struct {
	pool   *ConnectionPool
	logger *slog.Logger
	now    func() time.Time
	newID  func() string
}

var _ persistence.Store = (*Store)(nil)

// Option customises a Store.
type Option func(*Store)

// WithLogger sets the logger used for migrations.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Store) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithClock overrides the timestamp source.
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		if now != nil {
			s.now = now
		}
	}
}

// WithIDGenerator overrides the generator used for records without an ID.
func WithIDGenerator(fn func() string) Option {
	return func(s *Store) {
		if fn != nil {
			s.newID = fn
		}
	}
}

// Open connects to the database at dsn. Call Migrate before use.
func Open(dsn string, opts ...Option) (*Store, error) {
	pool, err := NewConnectionPool(migration.DefaultSQLiteConfig(dsn))
	if err != nil {
		return nil, err
	}
	s := &Store{
		pool:   pool,
		logger: slog.Default(),
		now:    time.Now,
		newID:  uuid.NewString,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Close releases the connection pool.
func (s *Store) Close() error {
	return s.pool.Close()
}

// Migrate applies pending schema migrations and returns how many ran.
func (s *Store) Migrate(ctx context.Context) (int, error) {
	manager := s.migrations()
	applied, err := manager.Run(ctx)
	if err != nil {
		return applied, fmt.Errorf("sqlite: migrate: %w", err)
	}
	return applied, nil
}

// MigrationStatus reports applied and pending migrations.
func (s *Store) MigrationStatus(ctx context.Context) (migration.Status, error) {
	return s.migrations().Status(ctx)
}

func (s *Store) migrations() *migration.Manager {
	return migration.NewManager(
		migration.NewScanner(migrationFiles, "migrations"),
		migration.NewExecutor(s.pool.DB()),
		s.logger,
	)
}

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(value string) (time.Time, error) {
	t, err := time.Parse(timeLayout, value)
	if err != nil {
		return time.Time{}, fmt.Errorf("sqlite: parse time %q: %w", value, err)
	}
	return t, nil
}
