package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/studio-scheduler/internal/persistence"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()

	store, err := Open(filepath.Join(t.TempDir(), "scheduler.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestMigrateIsIdempotent(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := newTestStore(t)

	applied, err := store.Migrate(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, applied)

	applied, err = store.Migrate(ctx)
	require.NoError(t, err)
	assert.Zero(t, applied)

	status, err := store.MigrationStatus(ctx)
	require.NoError(t, err)
	assert.Equal(t, "001", status.CurrentVersion)
	assert.Empty(t, status.Pending)
}

func TestWithTransactionRollsBack(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := newTestStore(t)
	_, err := store.Migrate(ctx)
	require.NoError(t, err)

	boom := errors.New("boom")
	err = store.pool.WithTransaction(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, "INSERT INTO trainers (id, name, created_at, updated_at) VALUES ('t1', 'Ana', 'x', 'x')"); err != nil {
			return err
		}
		return boom
	})
	require.ErrorIs(t, err, boom)

	_, err = store.GetTrainer(ctx, "t1")
	assert.ErrorIs(t, err, persistence.ErrNotFound)
}

func TestMapError(t *testing.T) {
	t.Parallel()

	assert.NoError(t, mapError(nil))
	assert.ErrorIs(t, mapError(sql.ErrNoRows), persistence.ErrNotFound)
	assert.ErrorIs(t, mapError(fmt.Errorf("wrapped: %w", sql.ErrNoRows)), persistence.ErrNotFound)

	other := errors.New("disk on fire")
	assert.Equal(t, other, mapError(other))
}

func TestSchemaRejectsInvalidEntries(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := newTestStore(t)
	_, err := store.Migrate(ctx)
	require.NoError(t, err)

	_, err = store.pool.DB().ExecContext(ctx, `
		INSERT INTO availability_entries (id, trainer_id, recurring, day_of_week, entry_date, start_minute, end_minute, entry_type)
		VALUES ('e1', 't1', 1, 1, NULL, 600, 540, 'available')`)
	assert.ErrorIs(t, mapError(err), persistence.ErrConstraintViolation)
}
