// Package memory provides an in-process implementation of the persistence
// boundary. Every read returns copies so callers cannot mutate stored state.
package memory

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/example/studio-scheduler/internal/availability"
	"github.com/example/studio-scheduler/internal/calendar"
	"github.com/example/studio-scheduler/internal/persistence"
	"github.com/example/studio-scheduler/internal/registry"
)

// Option customises a Storage.
type Option func(*Storage)

// WithClock overrides the timestamp source.
func WithClock(now func() time.Time) Option {
	return func(s *Storage) {
		if now != nil {
			s.now = now
		}
	}
}

// WithIDGenerator overrides the generator used for sessions and entries without an ID.
func WithIDGenerator(fn func() string) Option {
	return func(s *Storage) {
		if fn != nil {
			s.newID = fn
		}
	}
}

// Storage keeps sessions, trainers and availability in memory.
type Storage struct {
	mu       sync.RWMutex
	sessions map[string]registry.Session
	trainers map[string]persistence.Trainer
	entries  *availability.Store
	now      func() time.Time
	newID    func() string
}

var _ persistence.Store = (*Storage)(nil)

// New returns an empty Storage.
func New(opts ...Option) *Storage {
	s := &Storage{
		sessions: make(map[string]registry.Session),
		trainers: make(map[string]persistence.Trainer),
		now:      time.Now,
		newID:    uuid.NewString,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.entries = availability.NewStore(s.newID)
	return s
}

// Close releases resources held by the storage. No-op for the in-memory implementation.
func (s *Storage) Close() error {
	return nil
}

// --- SessionRepository implementation ---

// LoadSessions returns the sessions intersecting window ordered by start.
func (s *Storage) LoadSessions(ctx context.Context, window calendar.Range) ([]registry.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sessions := make([]registry.Session, 0)
	for _, session := range s.sessions {
		if !window.Intersects(session.Start, session.End()) {
			continue
		}
		sessions = append(sessions, session.Clone())
	}

	sort.Slice(sessions, func(i, j int) bool {
		if sessions[i].Start.Equal(sessions[j].Start) {
			return sessions[i].ID < sessions[j].ID
		}
		return sessions[i].Start.Before(sessions[j].Start)
	})

	return sessions, nil
}

// GetSession retrieves a session by ID.
func (s *Storage) GetSession(ctx context.Context, id string) (registry.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	session, ok := s.sessions[id]
	if !ok {
		return registry.Session{}, persistence.ErrNotFound
	}
	return session.Clone(), nil
}

// CreateSession stores a new session at version 1.
func (s *Storage) CreateSession(ctx context.Context, session registry.Session) (registry.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if session.ID == "" {
		session.ID = s.newID()
	}
	if _, ok := s.sessions[session.ID]; ok {
		return registry.Session{}, fmt.Errorf("%w: session %s already exists", persistence.ErrConstraintViolation, session.ID)
	}
	if err := session.Validate(); err != nil {
		return registry.Session{}, fmt.Errorf("%w: %v", persistence.ErrConstraintViolation, err)
	}

	session.Version = 1
	s.sessions[session.ID] = session.Clone()
	return session.Clone(), nil
}

// ApplyMove relocates a session if it is still at the expected version.
func (s *Storage) ApplyMove(ctx context.Context, move persistence.Move) (registry.Session, error) {
	if err := move.Validate(); err != nil {
		return registry.Session{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	current, ok := s.sessions[move.SessionID]
	if !ok {
		return registry.Session{}, persistence.ErrNotFound
	}
	next, err := move.Apply(current)
	if err != nil {
		return registry.Session{}, err
	}

	s.sessions[next.ID] = next
	return next.Clone(), nil
}

// --- AvailabilityRepository implementation ---

// LoadAvailability returns the recurring entries and overrides of a trainer.
func (s *Storage) LoadAvailability(ctx context.Context, trainerID string) ([]availability.Entry, error) {
	return s.entries.Entries(trainerID), nil
}

// LoadAllAvailability returns the entries of every trainer.
func (s *Storage) LoadAllAvailability(ctx context.Context) ([]availability.Entry, error) {
	var all []availability.Entry
	for _, trainerID := range s.entries.Trainers() {
		all = append(all, s.entries.Entries(trainerID)...)
	}
	return all, nil
}

// SaveAvailability replaces the recurring schedule of a trainer. Overrides are kept.
func (s *Storage) SaveAvailability(ctx context.Context, trainerID string, entries []availability.Entry) ([]availability.Entry, error) {
	saved, err := s.entries.UpdateSchedule(trainerID, entries)
	if err != nil {
		return nil, err
	}
	return saved, nil
}

// AddOverride stores a one-off entry.
func (s *Storage) AddOverride(ctx context.Context, entry availability.Entry) (availability.Entry, error) {
	return s.entries.AddOverride(entry)
}

// RemoveOverride deletes an override.
func (s *Storage) RemoveOverride(ctx context.Context, trainerID, id string) error {
	if !s.entries.RemoveOverride(trainerID, id) {
		return persistence.ErrNotFound
	}
	return nil
}

// PruneOverrides drops overrides dated before the given date.
func (s *Storage) PruneOverrides(ctx context.Context, before calendar.Date) (int, error) {
	return s.entries.PruneOverrides(before), nil
}

// --- TrainerRepository implementation ---

// UpsertTrainer creates or updates a trainer profile.
func (s *Storage) UpsertTrainer(ctx context.Context, trainer persistence.Trainer) (persistence.Trainer, error) {
	if strings.TrimSpace(trainer.ID) == "" {
		return persistence.Trainer{}, fmt.Errorf("%w: trainer id is required", persistence.ErrConstraintViolation)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now().UTC()
	if existing, ok := s.trainers[trainer.ID]; ok {
		trainer.CreatedAt = existing.CreatedAt
	} else {
		trainer.CreatedAt = now
	}
	trainer.UpdatedAt = now
	s.trainers[trainer.ID] = trainer
	return trainer, nil
}

// GetTrainer retrieves a trainer by ID.
func (s *Storage) GetTrainer(ctx context.Context, id string) (persistence.Trainer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	trainer, ok := s.trainers[id]
	if !ok {
		return persistence.Trainer{}, persistence.ErrNotFound
	}
	return trainer, nil
}

// ListTrainers returns all trainers ordered by name.
func (s *Storage) ListTrainers(ctx context.Context) ([]persistence.Trainer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	trainers := make([]persistence.Trainer, 0, len(s.trainers))
	for _, trainer := range s.trainers {
		trainers = append(trainers, trainer)
	}

	sort.Slice(trainers, func(i, j int) bool {
		if trainers[i].Name == trainers[j].Name {
			return trainers[i].ID < trainers[j].ID
		}
		return trainers[i].Name < trainers[j].Name
	})

	return trainers, nil
}
