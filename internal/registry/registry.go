package registry

import (
	"sort"
	"time"

	"github.com/example/studio-scheduler/internal/calendar"
)

// Registry is an immutable snapshot of the sessions loaded for a window.
// Every accessor returns copies so callers cannot mutate the snapshot.
type Registry struct {
	window    calendar.Range
	byID      map[string]Session
	byTrainer map[string][]Session
	byClient  map[string][]Session
}

// New builds a registry snapshot. Later duplicates of an ID replace earlier ones.
func New(window calendar.Range, sessions []Session) *Registry {
	r := &Registry{
		window:    window,
		byID:      make(map[string]Session, len(sessions)),
		byTrainer: make(map[string][]Session),
		byClient:  make(map[string][]Session),
	}
	for _, s := range sessions {
		r.byID[s.ID] = s.Clone()
	}
	for _, s := range r.byID {
		if s.TrainerID != "" {
			r.byTrainer[s.TrainerID] = append(r.byTrainer[s.TrainerID], s)
		}
		if s.ClientID != "" {
			r.byClient[s.ClientID] = append(r.byClient[s.ClientID], s)
		}
	}
	for _, list := range r.byTrainer {
		sortSessions(list)
	}
	for _, list := range r.byClient {
		sortSessions(list)
	}
	return r
}

// Window returns the range the snapshot was loaded for.
func (r *Registry) Window() calendar.Range {
	if r == nil {
		return calendar.Range{}
	}
	return r.window
}

// Len returns the number of sessions in the snapshot.
func (r *Registry) Len() int {
	if r == nil {
		return 0
	}
	return len(r.byID)
}

// Get returns the session with the given ID.
func (r *Registry) Get(id string) (Session, bool) {
	if r == nil {
		return Session{}, false
	}
	s, ok := r.byID[id]
	if !ok {
		return Session{}, false
	}
	return s.Clone(), true
}

// All returns every session ordered by start then ID.
func (r *Registry) All() []Session {
	if r == nil {
		return nil
	}
	out := make([]Session, 0, len(r.byID))
	for _, s := range r.byID {
		out = append(out, s.Clone())
	}
	sortSessions(out)
	return out
}

// Trainers returns the sorted IDs of trainers owning at least one session.
func (r *Registry) Trainers() []string {
	if r == nil {
		return nil
	}
	ids := make([]string, 0, len(r.byTrainer))
	for id := range r.byTrainer {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// ForTrainer returns the trainer's sessions ordered by start.
func (r *Registry) ForTrainer(trainerID string) []Session {
	if r == nil {
		return nil
	}
	return cloneAll(r.byTrainer[trainerID])
}

// Occupying returns the trainer's non-cancelled sessions overlapping [start, end),
// skipping the session identified by excludeID.
func (r *Registry) Occupying(trainerID string, start, end time.Time, excludeID string) []Session {
	if r == nil {
		return nil
	}
	return overlapping(r.byTrainer[trainerID], start, end, excludeID)
}

// ClientOccupying returns the client's non-cancelled sessions overlapping [start, end),
// skipping the session identified by excludeID.
func (r *Registry) ClientOccupying(clientID string, start, end time.Time, excludeID string) []Session {
	if r == nil || clientID == "" {
		return nil
	}
	return overlapping(r.byClient[clientID], start, end, excludeID)
}

// Neighbours returns the closest non-cancelled sessions of the trainer ending at or
// before start and beginning at or after end. Either result may be nil.
func (r *Registry) Neighbours(trainerID string, start, end time.Time, excludeID string) (prev, next *Session) {
	if r == nil {
		return nil, nil
	}
	for _, s := range r.byTrainer[trainerID] {
		if s.ID == excludeID || !s.Status.Occupies() {
			continue
		}
		if !s.End().After(start) {
			if prev == nil || s.End().After(prev.End()) {
				c := s.Clone()
				prev = &c
			}
			continue
		}
		if !s.Start.Before(end) {
			if next == nil || s.Start.Before(next.Start) {
				c := s.Clone()
				next = &c
			}
		}
	}
	return prev, next
}

// Equal reports whether two snapshots hold the same records.
func (r *Registry) Equal(other *Registry) bool {
	if r.Len() != other.Len() {
		return false
	}
	if r == nil || other == nil {
		return true
	}
	for id, s := range r.byID {
		o, ok := other.byID[id]
		if !ok || !sameSession(s, o) {
			return false
		}
	}
	return true
}

func overlapping(list []Session, start, end time.Time, excludeID string) []Session {
	var out []Session
	for _, s := range list {
		if s.ID == excludeID || !s.Status.Occupies() {
			continue
		}
		if s.Overlaps(start, end) {
			out = append(out, s.Clone())
		}
	}
	return out
}

func sameSession(a, b Session) bool {
	if (a.Package == nil) != (b.Package == nil) {
		return false
	}
	if a.Package != nil && *a.Package != *b.Package {
		return false
	}
	a.Package, b.Package = nil, nil
	return a.Start.Equal(b.Start) && a.ID == b.ID && a.DurationMinutes == b.DurationMinutes &&
		a.Status == b.Status && a.TrainerID == b.TrainerID && a.ClientID == b.ClientID &&
		a.Location == b.Location && a.Version == b.Version
}

func sortSessions(list []Session) {
	sort.Slice(list, func(i, j int) bool {
		if list[i].Start.Equal(list[j].Start) {
			return list[i].ID < list[j].ID
		}
		return list[i].Start.Before(list[j].Start)
	})
}

func cloneAll(list []Session) []Session {
	if len(list) == 0 {
		return nil
	}
	out := make([]Session, len(list))
	for i, s := range list {
		out[i] = s.Clone()
	}
	return out
}
