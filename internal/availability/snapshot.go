package availability

import (
	"sort"

	"github.com/example/studio-scheduler/internal/calendar"
)

// Day is the effective availability of one trainer on one date.
type Day struct {
	TrainerID string
	Date      calendar.Date
	// Overridden is true when one-off entries for the date replaced the recurring schedule.
	Overridden bool
	// Available holds the merged available windows.
	Available []calendar.Window
	// Closed holds the merged blocked and vacation windows.
	Closed []calendar.Window
}

// Covers reports whether [start, end) lies inside one available window and
// touches no closed window. Ranges crossing midnight are never covered.
func (d Day) Covers(start, end calendar.TimeOfDay) bool {
	if start < 0 || start >= end || end > calendar.EndOfDay {
		return false
	}
	inside := false
	for _, w := range d.Available {
		if w.Contains(start, end) {
			inside = true
			break
		}
	}
	if !inside {
		return false
	}
	for _, w := range d.Closed {
		if w.Intersects(start, end) {
			return false
		}
	}
	return true
}

// Open returns the available windows with every closed window carved out.
func (d Day) Open() []calendar.Window {
	var out []calendar.Window
	for _, a := range d.Available {
		cur := a.Start
		for _, c := range d.Closed {
			if c.End <= cur || c.Start >= a.End {
				continue
			}
			if c.Start > cur {
				out = append(out, calendar.Window{Start: cur, End: c.Start})
			}
			if c.End > cur {
				cur = c.End
			}
		}
		if cur < a.End {
			out = append(out, calendar.Window{Start: cur, End: a.End})
		}
	}
	return out
}

// Snapshot is an immutable view of availability entries for any number of trainers.
type Snapshot struct {
	recurring map[string][]Entry
	overrides map[string]map[calendar.Date][]Entry
}

// NewSnapshot copies entries into a snapshot. Overrides without a date are ignored.
func NewSnapshot(entries []Entry) *Snapshot {
	s := &Snapshot{
		recurring: make(map[string][]Entry),
		overrides: make(map[string]map[calendar.Date][]Entry),
	}
	for _, e := range entries {
		e = e.Clone()
		if e.Recurring {
			s.recurring[e.TrainerID] = append(s.recurring[e.TrainerID], e)
			continue
		}
		if e.Date == nil {
			continue
		}
		byDate, ok := s.overrides[e.TrainerID]
		if !ok {
			byDate = make(map[calendar.Date][]Entry)
			s.overrides[e.TrainerID] = byDate
		}
		byDate[*e.Date] = append(byDate[*e.Date], e)
	}
	return s
}

// Effective returns the entries that apply to the trainer on date. Overrides for
// the exact date replace the recurring entries of that weekday entirely.
func (s *Snapshot) Effective(trainerID string, date calendar.Date) ([]Entry, bool) {
	if s == nil {
		return nil, false
	}
	if list := s.overrides[trainerID][date]; len(list) > 0 {
		return cloneEntries(list), true
	}
	weekday := date.Weekday()
	var out []Entry
	for _, e := range s.recurring[trainerID] {
		if e.DayOfWeek == weekday {
			out = append(out, e.Clone())
		}
	}
	return out, false
}

// Day resolves the effective availability of the trainer on date.
func (s *Snapshot) Day(trainerID string, date calendar.Date) Day {
	entries, overridden := s.Effective(trainerID, date)
	day := Day{TrainerID: trainerID, Date: date, Overridden: overridden}
	var open, closed []calendar.Window
	for _, e := range entries {
		if e.Type.Closes() {
			closed = append(closed, e.Window())
		} else if e.Type == TypeAvailable {
			open = append(open, e.Window())
		}
	}
	day.Available = calendar.MergeWindows(open)
	day.Closed = calendar.MergeWindows(closed)
	return day
}

// Trainers returns the sorted IDs of trainers with at least one entry.
func (s *Snapshot) Trainers() []string {
	if s == nil {
		return nil
	}
	seen := make(map[string]struct{}, len(s.recurring)+len(s.overrides))
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

// Entries returns every entry of the trainer in SortEntries order.
func (s *Snapshot) Entries(trainerID string) []Entry {
	if s == nil {
		return nil
	}
	out := cloneEntries(s.recurring[trainerID])
	for _, list := range s.overrides[trainerID] {
		out = append(out, cloneEntries(list)...)
	}
	SortEntries(out)
	return out
}

func cloneEntries(list []Entry) []Entry {
	if len(list) == 0 {
		return nil
	}
	out := make([]Entry, len(list))
	for i, e := range list {
		out[i] = e.Clone()
	}
	return out
}
