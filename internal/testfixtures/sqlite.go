package testfixtures

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/example/studio-scheduler/internal/persistence/sqlite"
)

// NewSQLiteStore opens a migrated store in a temporary directory. The store
// is closed when the test ends.
func (f *ServiceFactory) NewSQLiteStore(tb testing.TB) *sqlite.Store {
	tb.Helper()

	path := filepath.Join(tb.TempDir(), "scheduler.db")
	store, err := sqlite.Open(path,
		sqlite.WithClock(f.Clock.NowFunc()),
		sqlite.WithIDGenerator(f.IDGenerator.KindFunc("entry")),
		sqlite.WithLogger(f.Logger),
	)
	if err != nil {
		tb.Fatalf("failed to open storage: %v", err)
	}
	tb.Cleanup(func() { _ = store.Close() })

	if _, err := store.Migrate(context.Background()); err != nil {
		tb.Fatalf("failed to migrate storage: %v", err)
	}
	return store
}

// NewSQLiteHarness wires application services over a fresh SQLite store.
func (f *ServiceFactory) NewSQLiteHarness(tb testing.TB) *Harness {
	tb.Helper()
	return f.NewHarness(f.NewSQLiteStore(tb))
}
