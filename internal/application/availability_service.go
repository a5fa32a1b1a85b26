package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	gocache "github.com/patrickmn/go-cache"

	"github.com/example/studio-scheduler/internal/availability"
	"github.com/example/studio-scheduler/internal/calendar"
	"github.com/example/studio-scheduler/internal/notify"
	"github.com/example/studio-scheduler/internal/persistence"
	"github.com/example/studio-scheduler/internal/recurrence"
)

const snapshotCacheKey = "availability:snapshot"

// AvailabilityService manages trainer schedules and date overrides and serves
// the availability snapshot conflict checks run against.
type AvailabilityService struct {
	repo      persistence.AvailabilityRepository
	trainers  persistence.TrainerRepository
	publisher notify.Publisher
	engine    *recurrence.Engine
	cache     *gocache.Cache
	logger    *slog.Logger

	mu         sync.Mutex
	listeners  []func()
	generation uint64
}

// AvailabilityServiceConfig carries the optional collaborators of an AvailabilityService.
type AvailabilityServiceConfig struct {
	Trainers  persistence.TrainerRepository
	Publisher notify.Publisher
	Location  *time.Location
	CacheTTL  time.Duration
	Logger    *slog.Logger
}

// NewAvailabilityService wires dependencies for availability operations.
func NewAvailabilityService(repo persistence.AvailabilityRepository, cfg AvailabilityServiceConfig) *AvailabilityService {
	if cfg.Publisher == nil {
		cfg.Publisher = notify.Discard
	}
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = time.Minute
	}
	return &AvailabilityService{
		repo:      repo,
		trainers:  cfg.Trainers,
		publisher: cfg.Publisher,
		engine:    recurrence.NewEngine(cfg.Location),
		cache:     gocache.New(cfg.CacheTTL, 2*cfg.CacheTTL),
		logger:    defaultLogger(cfg.Logger),
	}
}

// OnChange registers fn to run after every successful availability write.
func (s *AvailabilityService) OnChange(fn func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listeners = append(s.listeners, fn)
}

// Snapshot returns the availability of every trainer. Loads are cached until
// the next write or the cache TTL.
func (s *AvailabilityService) Snapshot(ctx context.Context) (*availability.Snapshot, error) {
	if cached, ok := s.cache.Get(snapshotCacheKey); ok {
		return cached.(*availability.Snapshot), nil
	}
	generation := s.currentGeneration()
	snapshot, err := s.FreshSnapshot(ctx)
	if err != nil {
		return nil, err
	}
	s.store(snapshotCacheKey, generation, snapshot)
	return snapshot, nil
}

// FreshSnapshot loads the availability of every trainer, bypassing the cache.
func (s *AvailabilityService) FreshSnapshot(ctx context.Context) (*availability.Snapshot, error) {
	entries, err := s.repo.LoadAllAvailability(ctx)
	if err != nil {
		return nil, fmt.Errorf("load availability: %w", err)
	}
	return availability.NewSnapshot(entries), nil
}

// Entries returns the recurring schedule and overrides of a trainer.
func (s *AvailabilityService) Entries(ctx context.Context, trainerID string) ([]availability.Entry, error) {
	if err := s.ensureTrainer(ctx, trainerID); err != nil {
		return nil, err
	}
	key := "availability:trainer:" + trainerID
	if cached, ok := s.cache.Get(key); ok {
		return cloneEntries(cached.([]availability.Entry)), nil
	}
	generation := s.currentGeneration()
	entries, err := s.repo.LoadAvailability(ctx, trainerID)
	if err != nil {
		return nil, fmt.Errorf("load availability for %s: %w", trainerID, err)
	}
	s.store(key, generation, cloneEntries(entries))
	return entries, nil
}

func (s *AvailabilityService) currentGeneration() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.generation
}

// store caches value unless a write happened since generation was read.
func (s *AvailabilityService) store(key string, generation uint64, value any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if generation != s.generation {
		return
	}
	s.cache.SetDefault(key, value)
}

func cloneEntries(entries []availability.Entry) []availability.Entry {
	if entries == nil {
		return nil
	}
	out := make([]availability.Entry, len(entries))
	for i, e := range entries {
		out[i] = e.Clone()
	}
	return out
}

// UpdateSchedule replaces the recurring schedule of a trainer. Nothing is
// written when any entry is invalid.
func (s *AvailabilityService) UpdateSchedule(ctx context.Context, trainerID string, entries []availability.Entry) ([]availability.Entry, error) {
	logger := serviceLogger(ctx, s.logger, "AvailabilityService", "UpdateSchedule", "trainer_id", trainerID, "entries", len(entries))

	if strings.TrimSpace(trainerID) == "" {
		vErr := &ValidationError{}
		vErr.add("trainer_id", "is required")
		return nil, vErr
	}
	if err := s.ensureTrainer(ctx, trainerID); err != nil {
		return nil, err
	}

	saved, err := s.repo.SaveAvailability(ctx, trainerID, entries)
	if err != nil {
		err = mapAvailabilityError(err)
		logger.Warn("schedule update rejected", "error_kind", ErrorKind(err), "error", err)
		return nil, err
	}

	s.changed(ctx, trainerID)
	logger.Info("schedule updated", "saved", len(saved))
	return saved, nil
}

// SaveGrid replaces the recurring schedule with the runs of an hourly grid.
func (s *AvailabilityService) SaveGrid(ctx context.Context, trainerID string, grid availability.Grid) ([]availability.Entry, error) {
	return s.UpdateSchedule(ctx, trainerID, availability.Compress(trainerID, grid))
}

// Grid returns the hourly grid of a trainer's recurring schedule.
func (s *AvailabilityService) Grid(ctx context.Context, trainerID string) (availability.Grid, error) {
	entries, err := s.Entries(ctx, trainerID)
	if err != nil {
		return availability.Grid{}, err
	}
	grid, err := availability.Expand(entries)
	if err != nil {
		if vErr, ok := entryValidationError(err); ok {
			return availability.Grid{}, vErr
		}
		return availability.Grid{}, err
	}
	return grid, nil
}

// EditGrid applies hour range edits and new overrides to a trainer's
// availability through an editor. Every edit and override is validated before
// anything is written; the recurring schedule is only rewritten when the grid
// changed.
func (s *AvailabilityService) EditGrid(ctx context.Context, trainerID string, edits []availability.GridEdit, overrides []availability.Entry) (availability.Grid, error) {
	logger := serviceLogger(ctx, s.logger, "AvailabilityService", "EditGrid", "trainer_id", trainerID, "edits", len(edits), "overrides", len(overrides))

	entries, err := s.Entries(ctx, trainerID)
	if err != nil {
		return availability.Grid{}, err
	}
	editor, err := availability.NewEditor(trainerID, entries)
	if err != nil {
		if vErr, ok := entryValidationError(err); ok {
			return availability.Grid{}, vErr
		}
		return availability.Grid{}, err
	}

	vErr := &ValidationError{}
	for i, edit := range edits {
		addEntryErrors(vErr, fmt.Sprintf("edits[%d]", i), editor.Apply(edit))
	}
	for i, o := range overrides {
		if o.Date == nil {
			vErr.add(fmt.Sprintf("overrides[%d].date", i), "is required")
			continue
		}
		_, err := editor.AddOverride(*o.Date, o.Start, o.End, o.Type)
		addEntryErrors(vErr, fmt.Sprintf("overrides[%d]", i), err)
	}
	if vErr.HasErrors() {
		logger.Warn("grid edit rejected", "error_kind", ErrorKind(vErr), "error", vErr)
		return availability.Grid{}, vErr
	}
	if !editor.Dirty() {
		return editor.Grid(), nil
	}

	if editor.GridChanged() {
		if _, err := s.UpdateSchedule(ctx, trainerID, editor.Schedule()); err != nil {
			return availability.Grid{}, err
		}
	}
	for _, o := range editor.PendingOverrides() {
		if _, err := s.AddOverride(ctx, o); err != nil {
			return availability.Grid{}, err
		}
	}
	logger.Info("grid edited", "grid_changed", editor.GridChanged(), "hours", editor.Grid().Hours())
	return editor.Grid(), nil
}

// AddOverride stores a one-off entry for a date.
func (s *AvailabilityService) AddOverride(ctx context.Context, entry availability.Entry) (availability.Entry, error) {
	logger := serviceLogger(ctx, s.logger, "AvailabilityService", "AddOverride", "trainer_id", entry.TrainerID)

	if err := s.ensureTrainer(ctx, entry.TrainerID); err != nil {
		return availability.Entry{}, err
	}
	saved, err := s.repo.AddOverride(ctx, entry)
	if err != nil {
		err = mapAvailabilityError(err)
		logger.Warn("override rejected", "error_kind", ErrorKind(err), "error", err)
		return availability.Entry{}, err
	}

	s.changed(ctx, entry.TrainerID)
	logger.Info("override added", "entry_id", saved.ID, "date", saved.Date, "type", saved.Type)
	return saved, nil
}

// RemoveOverride deletes a one-off entry.
func (s *AvailabilityService) RemoveOverride(ctx context.Context, trainerID, id string) error {
	if err := s.repo.RemoveOverride(ctx, trainerID, id); err != nil {
		if errors.Is(err, persistence.ErrNotFound) {
			return &NotFoundError{Kind: "override", ID: id}
		}
		return err
	}
	s.changed(ctx, trainerID)
	return nil
}

// PruneOverrides drops overrides dated before the given date.
func (s *AvailabilityService) PruneOverrides(ctx context.Context, before calendar.Date) (int, error) {
	removed, err := s.repo.PruneOverrides(ctx, before)
	if err != nil {
		return 0, err
	}
	if removed > 0 {
		s.changed(ctx, "")
	}
	serviceLogger(ctx, s.logger, "AvailabilityService", "PruneOverrides").Info("overrides pruned", "before", before, "removed", removed)
	return removed, nil
}

// Calendar expands a trainer's availability into dated open windows for [from, to].
func (s *AvailabilityService) Calendar(ctx context.Context, trainerID string, from, to calendar.Date) ([]recurrence.Occurrence, error) {
	if err := s.ensureTrainer(ctx, trainerID); err != nil {
		return nil, err
	}
	snapshot, err := s.Snapshot(ctx)
	if err != nil {
		return nil, err
	}
	occurrences, err := s.engine.Expand(snapshot, trainerID, from, to)
	if err != nil {
		vErr := &ValidationError{}
		vErr.add("range", err.Error())
		return nil, vErr
	}
	return occurrences, nil
}

func (s *AvailabilityService) ensureTrainer(ctx context.Context, trainerID string) error {
	if s.trainers == nil || trainerID == "" {
		return nil
	}
	if _, err := s.trainers.GetTrainer(ctx, trainerID); err != nil {
		if errors.Is(err, persistence.ErrNotFound) {
			return &NotFoundError{Kind: "trainer", ID: trainerID}
		}
		return fmt.Errorf("load trainer %s: %w", trainerID, err)
	}
	return nil
}

func (s *AvailabilityService) changed(ctx context.Context, trainerID string) {
	s.mu.Lock()
	s.generation++
	s.cache.Flush()
	listeners := append([]func(){}, s.listeners...)
	s.mu.Unlock()
	for _, fn := range listeners {
		fn()
	}

	s.publisher.Publish(ctx, notify.Event{Kind: notify.KindAvailabilityChanged, TrainerID: trainerID})
}

// addEntryErrors records the entry field errors of err under prefix.
func addEntryErrors(vErr *ValidationError, prefix string, err error) {
	if err == nil {
		return
	}
	var list availability.EntryErrors
	if errors.As(err, &list) {
		for _, fe := range list {
			vErr.add(prefix+"."+fe.Field, fe.Message)
		}
		return
	}
	var single *availability.EntryError
	if errors.As(err, &single) {
		vErr.add(prefix+"."+single.Field, single.Message)
		return
	}
	vErr.add(prefix, err.Error())
}

func mapAvailabilityError(err error) error {
	if vErr, ok := entryValidationError(err); ok {
		return vErr
	}
	if errors.Is(err, persistence.ErrConstraintViolation) {
		vErr := &ValidationError{}
		vErr.add("entry", "violates a storage constraint")
		return vErr
	}
	return err
}
