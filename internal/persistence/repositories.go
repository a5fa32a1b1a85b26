package persistence

import (
	"context"

	"github.com/example/studio-scheduler/internal/availability"
	"github.com/example/studio-scheduler/internal/calendar"
	"github.com/example/studio-scheduler/internal/registry"
)

// SessionRepository stores session records.
type SessionRepository interface {
	LoadSessions(ctx context.Context, window calendar.Range) ([]registry.Session, error)
	GetSession(ctx context.Context, id string) (registry.Session, error)
	CreateSession(ctx context.Context, session registry.Session) (registry.Session, error)
	ApplyMove(ctx context.Context, move Move) (registry.Session, error)
}

// AvailabilityRepository stores recurring schedules and date overrides.
type AvailabilityRepository interface {
	LoadAvailability(ctx context.Context, trainerID string) ([]availability.Entry, error)
	LoadAllAvailability(ctx context.Context) ([]availability.Entry, error)
	SaveAvailability(ctx context.Context, trainerID string, entries []availability.Entry) ([]availability.Entry, error)
	AddOverride(ctx context.Context, entry availability.Entry) (availability.Entry, error)
	RemoveOverride(ctx context.Context, trainerID, id string) error
	PruneOverrides(ctx context.Context, before calendar.Date) (int, error)
}

// TrainerRepository stores trainer profiles.
type TrainerRepository interface {
	UpsertTrainer(ctx context.Context, trainer Trainer) (Trainer, error)
	GetTrainer(ctx context.Context, id string) (Trainer, error)
	ListTrainers(ctx context.Context) ([]Trainer, error)
}

// Store is the full persistence boundary used by the application layer.
type Store interface {
	SessionRepository
	AvailabilityRepository
	TrainerRepository
	Close() error
}
