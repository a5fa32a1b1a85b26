package testfixtures

import (
	"context"
	"strings"
	"testing"

	"github.com/example/studio-scheduler/internal/application"
	"github.com/example/studio-scheduler/internal/calendar"
)

func TestIDGeneratorCountsPerKind(t *testing.T) {
	gen := NewIDGenerator("")
	sessions := gen.KindFunc("session")
	gestures := gen.KindFunc("gesture")

	got := []string{sessions(), gestures(), sessions(), gen.Next()}
	want := []string{"session-1", "gesture-1", "session-2", "id-1"}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("identifier %d: expected %q, got %q", i, want[i], got[i])
		}
	}

	var unset *IDGenerator
	if id := unset.KindFunc("session")(); id != "" {
		t.Fatalf("nil generator should yield empty IDs, got %q", id)
	}
}

func TestHarnessNamesIDsByKind(t *testing.T) {
	h := NewServiceFactory().NewMemoryHarness()
	h.SeedTrainers(t, NewTrainer("trainer-1", "Ana"))
	h.SeedSchedule(t, "trainer-1", WorkWeek("trainer-1", "09:00", "17:00")...)
	ctx := context.Background()

	session, _, err := h.Scheduling.CreateSession(ctx, application.CreateSessionParams{
		TrainerID:       "trainer-1",
		ClientID:        "client-1",
		Date:            ReferenceDate(),
		Start:           calendar.MustTime("10:00"),
		DurationMinutes: 60,
	})
	if err != nil {
		t.Fatalf("create session: %v", err)
	}
	if session.ID != "session-1" {
		t.Fatalf("expected session-1, got %q", session.ID)
	}

	gestureID, err := h.Gestures.Start(ctx, session.ID)
	if err != nil {
		t.Fatalf("start gesture: %v", err)
	}
	if !strings.HasPrefix(gestureID, "gesture-") {
		t.Fatalf("expected a gesture ID, got %q", gestureID)
	}
}
