package application_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/studio-scheduler/internal/application"
	"github.com/example/studio-scheduler/internal/availability"
	"github.com/example/studio-scheduler/internal/calendar"
	"github.com/example/studio-scheduler/internal/notify"
	"github.com/example/studio-scheduler/internal/testfixtures"
)

func newAvailabilityHarness(t *testing.T) *testfixtures.Harness {
	t.Helper()
	h := testfixtures.NewServiceFactory().NewMemoryHarness()
	h.SeedTrainers(t, testfixtures.NewTrainer("trainer-1", "Ana"))
	return h
}

func TestUpdateScheduleStoresAndPublishes(t *testing.T) {
	h := newAvailabilityHarness(t)
	ctx := context.Background()

	saved, err := h.Availability.UpdateSchedule(ctx, "trainer-1", testfixtures.WorkWeek("trainer-1", "09:00", "17:00"))
	require.NoError(t, err)
	require.Len(t, saved, 5)
	for _, e := range saved {
		assert.NotEmpty(t, e.ID)
		assert.True(t, e.Recurring)
	}

	events := h.Events.Events()
	require.Len(t, events, 1)
	assert.Equal(t, notify.KindAvailabilityChanged, events[0].Kind)
	assert.Equal(t, "trainer-1", events[0].TrainerID)
}

func TestUpdateScheduleRejectsInvalidBatch(t *testing.T) {
	h := newAvailabilityHarness(t)
	ctx := context.Background()

	_, err := h.Availability.UpdateSchedule(ctx, "trainer-1", testfixtures.WorkWeek("trainer-1", "09:00", "17:00"))
	require.NoError(t, err)

	entries := testfixtures.WorkWeek("trainer-1", "09:00", "17:00")
	entries[2].End = calendar.MustTime("08:00")
	_, err = h.Availability.UpdateSchedule(ctx, "trainer-1", entries)

	var vErr *application.ValidationError
	require.ErrorAs(t, err, &vErr)
	assert.Contains(t, vErr.FieldErrors, "entries[2].end_time")

	stored, err := h.Availability.Entries(ctx, "trainer-1")
	require.NoError(t, err)
	assert.Len(t, stored, 5, "previous schedule must survive a rejected batch")
}

func TestUpdateScheduleUnknownTrainer(t *testing.T) {
	h := newAvailabilityHarness(t)

	_, err := h.Availability.UpdateSchedule(context.Background(), "ghost", nil)
	require.ErrorIs(t, err, application.ErrNotFound)

	_, err = h.Availability.UpdateSchedule(context.Background(), " ", nil)
	var vErr *application.ValidationError
	require.ErrorAs(t, err, &vErr)
}

func TestEntriesCacheIsFlushedOnWrite(t *testing.T) {
	h := newAvailabilityHarness(t)
	ctx := context.Background()

	h.SeedSchedule(t, "trainer-1", testfixtures.WorkWeek("trainer-1", "09:00", "17:00")...)
	before, err := h.Availability.Entries(ctx, "trainer-1")
	require.NoError(t, err)
	require.Len(t, before, 5)

	override, err := h.Availability.AddOverride(ctx, testfixtures.Override("trainer-1", monday, "12:00", "13:00", availability.TypeBlocked))
	require.NoError(t, err)

	after, err := h.Availability.Entries(ctx, "trainer-1")
	require.NoError(t, err)
	assert.Len(t, after, 6)

	snap, err := h.Availability.Snapshot(ctx)
	require.NoError(t, err)
	entries, overridden := snap.Effective("trainer-1", monday)
	assert.True(t, overridden)
	assert.Len(t, entries, 1)

	require.NoError(t, h.Availability.RemoveOverride(ctx, "trainer-1", override.ID))
	err = h.Availability.RemoveOverride(ctx, "trainer-1", override.ID)
	require.ErrorIs(t, err, application.ErrNotFound)
}

func TestAddOverrideValidation(t *testing.T) {
	h := newAvailabilityHarness(t)

	entry := testfixtures.Override("trainer-1", monday, "12:00", "13:00", availability.TypeBlocked)
	entry.Date = nil
	_, err := h.Availability.AddOverride(context.Background(), entry)

	var vErr *application.ValidationError
	require.ErrorAs(t, err, &vErr)
	assert.Contains(t, vErr.FieldErrors, "date")
	assert.Empty(t, h.Events.Events())
}

func TestGridRoundTrip(t *testing.T) {
	h := newAvailabilityHarness(t)
	ctx := context.Background()

	var grid availability.Grid
	for hour := 9; hour < 12; hour++ {
		grid.Set(time.Monday, hour, true)
	}
	for hour := 14; hour < 18; hour++ {
		grid.Set(time.Monday, hour, true)
	}
	grid.Set(time.Saturday, 10, true)

	saved, err := h.Availability.SaveGrid(ctx, "trainer-1", grid)
	require.NoError(t, err)
	assert.Len(t, saved, 3)

	loaded, err := h.Availability.Grid(ctx, "trainer-1")
	require.NoError(t, err)
	assert.Equal(t, grid, loaded)
	assert.Equal(t, 8, loaded.Hours())
}

func TestCalendarAppliesOverrides(t *testing.T) {
	h := newAvailabilityHarness(t)
	ctx := context.Background()

	h.SeedSchedule(t, "trainer-1", append(testfixtures.WorkWeek("trainer-1", "09:00", "17:00"),
		testfixtures.Override("trainer-1", monday.AddDays(1), "00:00", "24:00", availability.TypeVacation),
		testfixtures.Override("trainer-1", monday.AddDays(2), "12:00", "18:00", availability.TypeAvailable),
	)...)

	occurrences, err := h.Availability.Calendar(ctx, "trainer-1", monday, monday.AddDays(6))
	require.NoError(t, err)
	require.Len(t, occurrences, 4)

	assert.Equal(t, monday, occurrences[0].Date)
	assert.Equal(t, monday.AddDays(2), occurrences[1].Date)
	assert.True(t, occurrences[1].Overridden)
	assert.Equal(t, calendar.Window{Start: calendar.At(12, 0), End: calendar.At(18, 0)}, occurrences[1].Window)

	_, err = h.Availability.Calendar(ctx, "trainer-1", monday, monday.AddDays(-1))
	var vErr *application.ValidationError
	require.ErrorAs(t, err, &vErr)
	assert.Contains(t, vErr.FieldErrors, "range")
}

func TestPruneOverrides(t *testing.T) {
	h := newAvailabilityHarness(t)
	ctx := context.Background()

	h.SeedSchedule(t, "trainer-1",
		testfixtures.Override("trainer-1", monday.AddDays(-7), "09:00", "10:00", availability.TypeBlocked),
		testfixtures.Override("trainer-1", monday.AddDays(7), "09:00", "10:00", availability.TypeBlocked),
	)
	before := len(h.Events.Events())

	removed, err := h.Availability.PruneOverrides(ctx, monday)
	require.NoError(t, err)
	assert.Equal(t, 1, removed)
	assert.Len(t, h.Events.Events(), before+1)

	removed, err = h.Availability.PruneOverrides(ctx, monday)
	require.NoError(t, err)
	assert.Zero(t, removed)
	assert.Len(t, h.Events.Events(), before+1, "no-op prune publishes nothing")
}

func TestEditGridWritesOnlyWhatChanged(t *testing.T) {
	h := newAvailabilityHarness(t)
	ctx := context.Background()
	h.SeedSchedule(t, "trainer-1", testfixtures.WorkWeek("trainer-1", "09:00", "17:00")...)
	before := len(h.Events.Events())

	tuesday := monday.AddDays(1)
	grid, err := h.Availability.EditGrid(ctx, "trainer-1",
		[]availability.GridEdit{{Day: time.Monday, From: 9, To: 17, Available: true}},
		[]availability.Entry{testfixtures.Override("trainer-1", tuesday, "12:00", "13:00", availability.TypeBlocked)})
	require.NoError(t, err)
	assert.Equal(t, 40, grid.Hours())

	events := h.Events.Events()[before:]
	require.Len(t, events, 1, "an unchanged grid must not rewrite the schedule")
	assert.Equal(t, notify.KindAvailabilityChanged, events[0].Kind)

	grid, err = h.Availability.EditGrid(ctx, "trainer-1",
		[]availability.GridEdit{{Day: time.Friday, From: 13, To: 17}}, nil)
	require.NoError(t, err)
	assert.Equal(t, 36, grid.Hours())

	stored, err := h.Availability.Grid(ctx, "trainer-1")
	require.NoError(t, err)
	assert.Equal(t, grid, stored)

	_, err = h.Availability.EditGrid(ctx, "trainer-1",
		[]availability.GridEdit{{Day: time.Friday, From: 5, To: 2, Available: true}},
		[]availability.Entry{testfixtures.Override("trainer-1", tuesday, "13:00", "12:00", availability.TypeBlocked)})
	var vErr *application.ValidationError
	require.ErrorAs(t, err, &vErr)
	assert.Contains(t, vErr.FieldErrors, "edits[0].to")
	assert.Contains(t, vErr.FieldErrors, "overrides[0].end_time")

	stored, err = h.Availability.Grid(ctx, "trainer-1")
	require.NoError(t, err)
	assert.Equal(t, 36, stored.Hours(), "a rejected edit must not write")
}

func TestEntriesReturnsDeepCopies(t *testing.T) {
	h := newAvailabilityHarness(t)
	ctx := context.Background()
	_, err := h.Availability.AddOverride(ctx, testfixtures.Override("trainer-1", monday, "12:00", "13:00", availability.TypeBlocked))
	require.NoError(t, err)

	first, err := h.Availability.Entries(ctx, "trainer-1")
	require.NoError(t, err)
	require.Len(t, first, 1)
	*first[0].Date = first[0].Date.AddDays(30)

	second, err := h.Availability.Entries(ctx, "trainer-1")
	require.NoError(t, err)
	require.NotNil(t, second[0].Date)
	assert.Equal(t, monday, *second[0].Date)

	*second[0].Date = second[0].Date.AddDays(30)
	third, err := h.Availability.Entries(ctx, "trainer-1")
	require.NoError(t, err)
	assert.Equal(t, monday, *third[0].Date, "cached entries must not share dates with callers")
}
