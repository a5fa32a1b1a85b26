package persistence_test

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/studio-scheduler/internal/availability"
	"github.com/example/studio-scheduler/internal/calendar"
	"github.com/example/studio-scheduler/internal/persistence"
	"github.com/example/studio-scheduler/internal/persistence/memory"
	"github.com/example/studio-scheduler/internal/persistence/sqlite"
	"github.com/example/studio-scheduler/internal/registry"
)

var reference = time.Date(2024, 3, 11, 0, 0, 0, 0, time.UTC)

func sequence(prefix string) func() string {
	n := 0
	return func() string {
		n++
		return fmt.Sprintf("%s-%d", prefix, n)
	}
}

type factory func(t *testing.T) persistence.Store

func stores() map[string]factory {
	clock := func() time.Time { return reference }
	return map[string]factory{
		"memory": func(t *testing.T) persistence.Store {
			return memory.New(memory.WithClock(clock), memory.WithIDGenerator(sequence("id")))
		},
		"sqlite": func(t *testing.T) persistence.Store {
			t.Helper()
			store, err := sqlite.Open(filepath.Join(t.TempDir(), "scheduler.db"),
				sqlite.WithClock(clock),
				sqlite.WithIDGenerator(sequence("id")),
				sqlite.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
			)
			require.NoError(t, err)
			t.Cleanup(func() { _ = store.Close() })
			_, err = store.Migrate(context.Background())
			require.NoError(t, err)
			return store
		},
	}
}

func session(id, trainerID string, hour, minutes int) registry.Session {
	return registry.Session{
		ID:              id,
		Start:           reference.Add(time.Duration(hour) * time.Hour),
		DurationMinutes: minutes,
		Status:          registry.StatusScheduled,
		TrainerID:       trainerID,
		ClientID:        "client-" + id,
		Location:        "studio A",
	}
}

func TestSessionRepository(t *testing.T) {
	t.Parallel()

	for name, open := range stores() {
		open := open
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			ctx := context.Background()
			store := open(t)

			withPackage := session("a", "trainer-1", 10, 60)
			withPackage.Package = &registry.PackageInfo{Name: "10 pack", SessionsRemaining: 3, TotalSessions: 10}
			created, err := store.CreateSession(ctx, withPackage)
			require.NoError(t, err)
			assert.Equal(t, 1, created.Version)

			for _, s := range []registry.Session{session("b", "trainer-1", 14, 60), session("c", "trainer-2", 40, 30)} {
				_, err := store.CreateSession(ctx, s)
				require.NoError(t, err)
			}

			_, err = store.CreateSession(ctx, session("a", "trainer-1", 8, 30))
			assert.ErrorIs(t, err, persistence.ErrConstraintViolation)

			invalid := session("d", "trainer-1", 8, 0)
			_, err = store.CreateSession(ctx, invalid)
			assert.ErrorIs(t, err, persistence.ErrConstraintViolation)

			fetched, err := store.GetSession(ctx, "a")
			require.NoError(t, err)
			assert.True(t, fetched.Start.Equal(withPackage.Start))
			assert.Equal(t, registry.StatusScheduled, fetched.Status)
			require.NotNil(t, fetched.Package)
			assert.Equal(t, 3, fetched.Package.SessionsRemaining)

			_, err = store.GetSession(ctx, "missing")
			assert.ErrorIs(t, err, persistence.ErrNotFound)

			day, err := store.LoadSessions(ctx, calendar.Range{Start: reference, End: reference.Add(24 * time.Hour)})
			require.NoError(t, err)
			require.Len(t, day, 2)
			assert.Equal(t, "a", day[0].ID)
			assert.Equal(t, "b", day[1].ID)

			// A session ending exactly at the window start is outside the half-open range.
			edge, err := store.LoadSessions(ctx, calendar.Range{Start: reference.Add(11 * time.Hour), End: reference.Add(14 * time.Hour)})
			require.NoError(t, err)
			assert.Empty(t, edge)

			all, err := store.LoadSessions(ctx, calendar.Range{})
			require.NoError(t, err)
			assert.Len(t, all, 3)
		})
	}
}

func TestApplyMove(t *testing.T) {
	t.Parallel()

	for name, open := range stores() {
		open := open
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			ctx := context.Background()
			store := open(t)
			_, err := store.CreateSession(ctx, session("a", "trainer-1", 10, 60))
			require.NoError(t, err)

			target := reference.Add(15 * time.Hour)
			moved, err := store.ApplyMove(ctx, persistence.Move{
				SessionID:       "a",
				Start:           target,
				TrainerID:       "trainer-2",
				ExpectedVersion: 1,
			})
			require.NoError(t, err)
			assert.Equal(t, 2, moved.Version)
			assert.Equal(t, "trainer-2", moved.TrainerID)
			assert.Equal(t, 60, moved.DurationMinutes)
			assert.True(t, moved.Start.Equal(target))

			stored, err := store.GetSession(ctx, "a")
			require.NoError(t, err)
			assert.Equal(t, moved.Version, stored.Version)
			assert.True(t, stored.Start.Equal(target))

			_, err = store.ApplyMove(ctx, persistence.Move{SessionID: "a", Start: reference, ExpectedVersion: 1})
			require.ErrorIs(t, err, persistence.ErrStaleWrite)
			var stale *persistence.StaleWriteError
			require.True(t, errors.As(err, &stale))
			assert.Equal(t, 1, stale.Expected)
			assert.Equal(t, 2, stale.Actual)

			_, err = store.ApplyMove(ctx, persistence.Move{SessionID: "missing", Start: reference, ExpectedVersion: 1})
			assert.ErrorIs(t, err, persistence.ErrNotFound)

			_, err = store.ApplyMove(ctx, persistence.Move{SessionID: "a", ExpectedVersion: 2})
			assert.ErrorIs(t, err, persistence.ErrConstraintViolation)
		})
	}
}

func TestAvailabilityRepository(t *testing.T) {
	t.Parallel()

	for name, open := range stores() {
		open := open
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			ctx := context.Background()
			store := open(t)

			saved, err := store.SaveAvailability(ctx, "trainer-1", []availability.Entry{
				{DayOfWeek: time.Monday, Start: calendar.At(13, 0), End: calendar.At(17, 0), Type: availability.TypeAvailable},
				{DayOfWeek: time.Monday, Start: calendar.At(9, 0), End: calendar.At(12, 0), Type: availability.TypeAvailable},
			})
			require.NoError(t, err)
			require.Len(t, saved, 2)
			assert.Equal(t, calendar.At(9, 0), saved[0].Start)
			assert.NotEmpty(t, saved[0].ID)

			date := calendar.MustDate("2024-03-18")
			override, err := store.AddOverride(ctx, availability.Entry{
				TrainerID: "trainer-1",
				Date:      &date,
				Start:     calendar.At(0, 0),
				End:       calendar.EndOfDay,
				Type:      availability.TypeVacation,
			})
			require.NoError(t, err)
			assert.False(t, override.Recurring)

			_, err = store.SaveAvailability(ctx, "trainer-1", []availability.Entry{
				{DayOfWeek: time.Tuesday, Start: calendar.At(10, 0), End: calendar.At(9, 0), Type: availability.TypeAvailable},
			})
			assert.ErrorIs(t, err, availability.ErrInvalidEntry)

			entries, err := store.LoadAvailability(ctx, "trainer-1")
			require.NoError(t, err)
			require.Len(t, entries, 3, "failed save leaves the schedule untouched")

			replaced, err := store.SaveAvailability(ctx, "trainer-1", []availability.Entry{
				{DayOfWeek: time.Friday, Start: calendar.At(8, 0), End: calendar.At(12, 0), Type: availability.TypeAvailable},
			})
			require.NoError(t, err)
			require.Len(t, replaced, 1)

			entries, err = store.LoadAvailability(ctx, "trainer-1")
			require.NoError(t, err)
			require.Len(t, entries, 2)
			assert.True(t, entries[0].Recurring)
			assert.Equal(t, time.Friday, entries[0].DayOfWeek)
			require.NotNil(t, entries[1].Date)
			assert.Equal(t, date, *entries[1].Date)
			assert.Equal(t, availability.TypeVacation, entries[1].Type)

			_, err = store.SaveAvailability(ctx, "trainer-2", []availability.Entry{
				{DayOfWeek: time.Monday, Start: calendar.At(9, 0), End: calendar.At(10, 0), Type: availability.TypeAvailable},
			})
			require.NoError(t, err)
			all, err := store.LoadAllAvailability(ctx)
			require.NoError(t, err)
			assert.Len(t, all, 3)

			pruned, err := store.PruneOverrides(ctx, calendar.MustDate("2024-03-18"))
			require.NoError(t, err)
			assert.Zero(t, pruned)
			pruned, err = store.PruneOverrides(ctx, calendar.MustDate("2024-03-19"))
			require.NoError(t, err)
			assert.Equal(t, 1, pruned)

			assert.ErrorIs(t, store.RemoveOverride(ctx, "trainer-1", override.ID), persistence.ErrNotFound)
		})
	}
}

func TestRemoveOverride(t *testing.T) {
	t.Parallel()

	for name, open := range stores() {
		open := open
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			ctx := context.Background()
			store := open(t)
			date := calendar.MustDate("2024-03-12")
			override, err := store.AddOverride(ctx, availability.Entry{
				TrainerID: "trainer-1",
				Date:      &date,
				Start:     calendar.At(9, 0),
				End:       calendar.At(11, 0),
				Type:      availability.TypeAvailable,
			})
			require.NoError(t, err)

			assert.ErrorIs(t, store.RemoveOverride(ctx, "trainer-2", override.ID), persistence.ErrNotFound)
			require.NoError(t, store.RemoveOverride(ctx, "trainer-1", override.ID))

			entries, err := store.LoadAvailability(ctx, "trainer-1")
			require.NoError(t, err)
			assert.Empty(t, entries)
		})
	}
}

func TestTrainerRepository(t *testing.T) {
	t.Parallel()

	for name, open := range stores() {
		open := open
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			ctx := context.Background()
			store := open(t)

			_, err := store.UpsertTrainer(ctx, persistence.Trainer{ID: "t2", Name: "Zoe"})
			require.NoError(t, err)
			created, err := store.UpsertTrainer(ctx, persistence.Trainer{ID: "t1", Name: "Ana", Email: "ana@example.com"})
			require.NoError(t, err)
			assert.True(t, created.CreatedAt.Equal(reference))

			updated, err := store.UpsertTrainer(ctx, persistence.Trainer{ID: "t1", Name: "Ana B"})
			require.NoError(t, err)
			assert.Equal(t, "Ana B", updated.Name)

			trainers, err := store.ListTrainers(ctx)
			require.NoError(t, err)
			require.Len(t, trainers, 2)
			assert.Equal(t, "t1", trainers[0].ID)

			_, err = store.GetTrainer(ctx, "missing")
			assert.ErrorIs(t, err, persistence.ErrNotFound)

			_, err = store.UpsertTrainer(ctx, persistence.Trainer{Name: "No ID"})
			assert.ErrorIs(t, err, persistence.ErrConstraintViolation)
		})
	}
}

func TestMoveApply(t *testing.T) {
	t.Parallel()

	current := session("a", "trainer-1", 10, 60)
	current.Version = 3

	next, err := persistence.Move{SessionID: "a", Start: reference, DurationMinutes: 90, ExpectedVersion: 3}.Apply(current)
	require.NoError(t, err)
	assert.Equal(t, 4, next.Version)
	assert.Equal(t, 90, next.DurationMinutes)
	assert.Equal(t, "trainer-1", next.TrainerID)
	assert.Equal(t, 3, current.Version)

	_, err = persistence.Move{SessionID: "a", Start: reference, ExpectedVersion: 2}.Apply(current)
	assert.ErrorIs(t, err, persistence.ErrStaleWrite)
}
