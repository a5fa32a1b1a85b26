package testfixtures

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/example/studio-scheduler/internal/application"
	"github.com/example/studio-scheduler/internal/availability"
	"github.com/example/studio-scheduler/internal/notify"
	"github.com/example/studio-scheduler/internal/persistence"
	"github.com/example/studio-scheduler/internal/persistence/memory"
	"github.com/example/studio-scheduler/internal/registry"
	"github.com/example/studio-scheduler/internal/scheduler"
)

// ServiceFactory assists tests with constructing application services using
// deterministic identifiers and clocks.
type ServiceFactory struct {
	Clock       *Clock
	IDGenerator *IDGenerator
	Policy      scheduler.Policy
	Logger      *slog.Logger
}

// ServiceFactoryOption configures a ServiceFactory instance.
type ServiceFactoryOption func(*ServiceFactory)

// NewServiceFactory constructs a ServiceFactory with defaults.
func NewServiceFactory(opts ...ServiceFactoryOption) *ServiceFactory {
	factory := &ServiceFactory{
		Clock:       NewClock(time.Time{}),
		IDGenerator: NewIDGenerator("id"),
		Policy:      scheduler.DefaultPolicy(),
		Logger:      slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(factory)
	}
	if factory.Clock == nil {
		factory.Clock = NewClock(time.Time{})
	}
	if factory.IDGenerator == nil {
		factory.IDGenerator = NewIDGenerator("id")
	}
	return factory
}

// WithClock overrides the clock used by the factory.
func WithClock(clock *Clock) ServiceFactoryOption {
	return func(factory *ServiceFactory) {
		factory.Clock = clock
	}
}

// WithIDGenerator overrides the identifier generator used by the factory.
func WithIDGenerator(generator *IDGenerator) ServiceFactoryOption {
	return func(factory *ServiceFactory) {
		factory.IDGenerator = generator
	}
}

// WithPolicy overrides the checker policy.
func WithPolicy(policy scheduler.Policy) ServiceFactoryOption {
	return func(factory *ServiceFactory) {
		factory.Policy = policy
	}
}

// Harness bundles the services of one test together with their store and a
// recorder of every published event.
type Harness struct {
	Store        persistence.Store
	Events       *notify.Recorder
	Availability *application.AvailabilityService
	Scheduling   *application.SchedulingService
	Gestures     *application.GestureService
}

// NewHarness wires application services over store.
func (f *ServiceFactory) NewHarness(store persistence.Store) *Harness {
	events := &notify.Recorder{}
	avail := application.NewAvailabilityService(store, application.AvailabilityServiceConfig{
		Trainers:  store,
		Publisher: events,
		Location:  f.Policy.Location,
		Logger:    f.Logger,
	})
	scheduling := application.NewSchedulingService(store, avail, application.SchedulingServiceConfig{
		Policy:      f.Policy,
		Publisher:   events,
		Now:         f.Clock.NowFunc(),
		IDGenerator: f.IDGenerator.KindFunc("session"),
		Logger:      f.Logger,
	})
	return &Harness{
		Store:        store,
		Events:       events,
		Availability: avail,
		Scheduling:   scheduling,
		Gestures: application.NewGestureService(scheduling, application.GestureServiceConfig{
			Publisher:   events,
			Logger:      f.Logger,
			IDGenerator: f.IDGenerator.KindFunc("gesture"),
		}),
	}
}

// NewMemoryHarness wires application services over a fresh in-memory store.
func (f *ServiceFactory) NewMemoryHarness() *Harness {
	store := memory.New(memory.WithClock(f.Clock.NowFunc()), memory.WithIDGenerator(f.IDGenerator.KindFunc("entry")))
	return f.NewHarness(store)
}

// SeedTrainers stores trainer profiles, failing the test on error.
func (h *Harness) SeedTrainers(tb testing.TB, trainers ...persistence.Trainer) {
	tb.Helper()
	for _, trainer := range trainers {
		if _, err := h.Store.UpsertTrainer(context.Background(), trainer); err != nil {
			tb.Fatalf("seed trainer %s: %v", trainer.ID, err)
		}
	}
}

// SeedSessions stores sessions directly, bypassing conflict checks.
func (h *Harness) SeedSessions(tb testing.TB, fixtures ...SessionFixture) []registry.Session {
	tb.Helper()
	out := make([]registry.Session, 0, len(fixtures))
	for _, f := range fixtures {
		created, err := h.Store.CreateSession(context.Background(), f.Session())
		if err != nil {
			tb.Fatalf("seed session %s: %v", f.ID, err)
		}
		out = append(out, created)
	}
	return out
}

// SeedSchedule stores a trainer's recurring schedule and overrides.
func (h *Harness) SeedSchedule(tb testing.TB, trainerID string, entries ...availability.Entry) {
	tb.Helper()
	ctx := context.Background()
	var recurring []availability.Entry
	for _, e := range entries {
		if e.Recurring {
			recurring = append(recurring, e)
			continue
		}
		if _, err := h.Availability.AddOverride(ctx, e); err != nil {
			tb.Fatalf("seed override for %s: %v", trainerID, err)
		}
	}
	if len(recurring) > 0 {
		if _, err := h.Availability.UpdateSchedule(ctx, trainerID, recurring); err != nil {
			tb.Fatalf("seed schedule for %s: %v", trainerID, err)
		}
	}
}
