package availability

import (
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/example/studio-scheduler/internal/calendar"
)

// Store owns the availability entries of every trainer. It is safe for concurrent use.
type Store struct {
	mu          sync.RWMutex
	recurring   map[string][]Entry
	overrides   map[string][]Entry
	idGenerator func() string
}

// NewStore constructs an empty store. A nil idGenerator falls back to random UUIDs.
func NewStore(idGenerator func() string) *Store {
	if idGenerator == nil {
		idGenerator = uuid.NewString
	}
	return &Store{
		recurring:   make(map[string][]Entry),
		overrides:   make(map[string][]Entry),
		idGenerator: idGenerator,
	}
}

// PrepareSchedule turns entries into the recurring schedule of trainerID:
// every entry is marked recurring, validated, and given an ID if it has none.
// Nothing is assigned when any entry is invalid.
func PrepareSchedule(trainerID string, entries []Entry, newID func() string) ([]Entry, error) {
	normalized := make([]Entry, len(entries))
	for i, e := range entries {
		e = e.Clone()
		e.TrainerID = trainerID
		e.Recurring = true
		e.Date = nil
		normalized[i] = e
	}
	if err := ValidateAll(normalized); err != nil {
		return nil, err
	}
	for i := range normalized {
		if normalized[i].ID == "" {
			normalized[i].ID = newID()
		}
	}
	SortEntries(normalized)
	return normalized, nil
}

// PrepareOverride validates a one-off entry and gives it an ID if it has none.
func PrepareOverride(entry Entry, newID func() string) (Entry, error) {
	entry = entry.Clone()
	entry.Recurring = false
	if err := entry.Validate(); err != nil {
		return Entry{}, err
	}
	if entry.ID == "" {
		entry.ID = newID()
	}
	return entry, nil
}

// UpdateSchedule replaces the recurring schedule of trainerID. Every entry is
// validated before the store is touched; on error nothing changes.
func (s *Store) UpdateSchedule(trainerID string, entries []Entry) ([]Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	normalized, err := PrepareSchedule(trainerID, entries, s.idGenerator)
	if err != nil {
		return nil, err
	}
	if len(normalized) == 0 {
		delete(s.recurring, trainerID)
	} else {
		s.recurring[trainerID] = normalized
	}
	return cloneEntries(normalized), nil
}

// AddOverride appends a one-off entry for a specific date.
func (s *Store) AddOverride(entry Entry) (Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, err := PrepareOverride(entry, s.idGenerator)
	if err != nil {
		return Entry{}, err
	}
	s.overrides[entry.TrainerID] = append(s.overrides[entry.TrainerID], entry)
	return entry.Clone(), nil
}

// RemoveOverride deletes the override with the given ID and reports whether it existed.
func (s *Store) RemoveOverride(trainerID, id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	list := s.overrides[trainerID]
	for i, e := range list {
		if e.ID == id {
			s.overrides[trainerID] = append(list[:i:i], list[i+1:]...)
			return true
		}
	}
	return false
}

// PruneOverrides drops overrides dated before the given date and returns how many were removed.
func (s *Store) PruneOverrides(before calendar.Date) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for trainerID, list := range s.overrides {
		kept := list[:0]
		for _, e := range list {
			if e.Date != nil && e.Date.Before(before) {
				removed++
				continue
			}
			kept = append(kept, e)
		}
		if len(kept) == 0 {
			delete(s.overrides, trainerID)
			continue
		}
		s.overrides[trainerID] = kept
	}
	return removed
}

// Entries returns the recurring entries and overrides of trainerID.
func (s *Store) Entries(trainerID string) []Entry {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := cloneEntries(s.recurring[trainerID])
	out = append(out, cloneEntries(s.overrides[trainerID])...)
	SortEntries(out)
	return out
}

// Trainers returns the sorted IDs of trainers with stored entries.
func (s *Store) Trainers() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	seen := make(map[string]struct{})
	for id := range s.recurring {
		seen[id] = struct{}{}
	}
	for id := range s.overrides {
		seen[id] = struct{}{}
	}
	ids := make([]string, 0, len(seen))
	for id := range seen {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Snapshot returns an immutable copy of the current state.
func (s *Store) Snapshot() *Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var all []Entry
	for _, list := range s.recurring {
		all = append(all, list...)
	}
	for _, list := range s.overrides {
		all = append(all, list...)
	}
	return NewSnapshot(all)
}
