package testfixtures

import (
	"context"
	"testing"
	"time"

	"github.com/example/studio-scheduler/internal/availability"
	"github.com/example/studio-scheduler/internal/calendar"
	"github.com/example/studio-scheduler/internal/registry"
)

func TestReferenceDateIsMonday(t *testing.T) {
	if got := ReferenceDate().Weekday(); got != time.Monday {
		t.Fatalf("expected Monday, got %v", got)
	}
}

func TestSessionFixtureDefaultsAndOptions(t *testing.T) {
	f := NewSessionFixture(
		WithSessionID("a"),
		WithSlot(calendar.MustDate("2024-03-12"), "14:30"),
		WithStatus(registry.StatusBlocked),
	)
	s := f.Session()
	if s.ID != "a" || s.ClientID != "" {
		t.Fatalf("unexpected session: %#v", s)
	}
	if want := time.Date(2024, 3, 12, 14, 30, 0, 0, time.UTC); !s.Start.Equal(want) {
		t.Fatalf("expected start %v, got %v", want, s.Start)
	}
	if err := s.Validate(); err != nil {
		t.Fatalf("fixture session should be valid: %v", err)
	}
}

func TestWorkWeek(t *testing.T) {
	entries := WorkWeek("trainer-1", "09:00", "17:00")
	if len(entries) != 5 {
		t.Fatalf("expected 5 entries, got %d", len(entries))
	}
	if err := availability.ValidateAll(entries); err != nil {
		t.Fatalf("work week should validate: %v", err)
	}
}

func TestMemoryHarnessSeeds(t *testing.T) {
	factory := NewServiceFactory()
	h := factory.NewMemoryHarness()

	h.SeedTrainers(t, NewTrainer("trainer-1", "Ana"))
	h.SeedSchedule(t, "trainer-1", append(WorkWeek("trainer-1", "09:00", "17:00"),
		Override("trainer-1", ReferenceDate(), "12:00", "13:00", availability.TypeBlocked))...)
	sessions := h.SeedSessions(t, NewSessionFixture(WithSessionID("a")))

	if sessions[0].Version != 1 {
		t.Fatalf("expected version 1, got %d", sessions[0].Version)
	}
	entries, err := h.Availability.Entries(context.Background(), "trainer-1")
	if err != nil {
		t.Fatalf("Entries failed: %v", err)
	}
	if len(entries) != 6 {
		t.Fatalf("expected 6 entries, got %d", len(entries))
	}
}
