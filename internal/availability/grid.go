package availability

import (
	"fmt"
	"time"

	"github.com/example/studio-scheduler/internal/calendar"
)

// HoursPerDay is the number of cells in one grid row.
const HoursPerDay = 24

// Grid is a weekly availability grid indexed by weekday (Sunday first) and hour.
type Grid [7][HoursPerDay]bool

// Set marks the cell for day and hour. Out of range cells are ignored.
func (g *Grid) Set(day time.Weekday, hour int, available bool) {
	if day < time.Sunday || day > time.Saturday || hour < 0 || hour >= HoursPerDay {
		return
	}
	g[day][hour] = available
}

// At reports whether the cell for day and hour is available.
func (g Grid) At(day time.Weekday, hour int) bool {
	if day < time.Sunday || day > time.Saturday || hour < 0 || hour >= HoursPerDay {
		return false
	}
	return g[day][hour]
}

// Hours counts the available cells.
func (g Grid) Hours() int {
	n := 0
	for _, row := range g {
		for _, v := range row {
			if v {
				n++
			}
		}
	}
	return n
}

// Compress turns the grid into the minimal set of recurring available entries:
// one entry per maximal run of available hours. A run reaching midnight ends at 24:00.
func Compress(trainerID string, g Grid) []Entry {
	var out []Entry
	for day := time.Sunday; day <= time.Saturday; day++ {
		row := g[day]
		for hour := 0; hour < HoursPerDay; {
			if !row[hour] {
				hour++
				continue
			}
			start := hour
			for hour < HoursPerDay && row[hour] {
				hour++
			}
			out = append(out, Entry{
				TrainerID: trainerID,
				DayOfWeek: day,
				Start:     calendar.At(start, 0),
				End:       calendar.At(hour, 0),
				Recurring: true,
				Type:      TypeAvailable,
			})
		}
	}
	return out
}

// Expand rebuilds the grid from recurring entries. Available entries set cells,
// then blocked and vacation entries clear them. Overrides are ignored. Entries
// not aligned on whole hours are rejected.
func Expand(entries []Entry) (Grid, error) {
	var g Grid
	var errs EntryErrors
	var recurring []Entry
	for i, e := range entries {
		if !e.Recurring {
			continue
		}
		if fe := e.check(i); len(fe) > 0 {
			errs = append(errs, fe...)
			continue
		}
		if misaligned := hourMisalignment(e); misaligned != "" {
			errs = append(errs, &EntryError{Index: i, Field: misaligned, Message: "must be aligned on whole hours for the weekly grid"})
			continue
		}
		recurring = append(recurring, e)
	}
	if len(errs) > 0 {
		return Grid{}, errs
	}

	for _, e := range recurring {
		if e.Type == TypeAvailable {
			fill(&g, e, true)
		}
	}
	for _, e := range recurring {
		if e.Type.Closes() {
			fill(&g, e, false)
		}
	}
	return g, nil
}

// hourMisalignment names the first bound of e that is not on a whole hour.
func hourMisalignment(e Entry) string {
	switch {
	case e.Start.Minute() != 0:
		return "start_time"
	case e.End.Minute() != 0:
		return "end_time"
	}
	return ""
}

func fill(g *Grid, e Entry, value bool) {
	for hour := e.Start.Hour(); hour < e.End.Hour(); hour++ {
		g[e.DayOfWeek][hour] = value
	}
}

// GridEdit assigns the hours [From, To) of Day.
type GridEdit struct {
	Day       time.Weekday
	From      int
	To        int
	Available bool
}

// Editor holds the in-progress weekly grid and pending overrides of one trainer.
// Edits are validated as they are made so nothing invalid reaches the store.
type Editor struct {
	trainerID string
	original  Grid
	grid      Grid
	overrides []Entry
}

// NewEditor loads the trainer's entries into an editor.
func NewEditor(trainerID string, entries []Entry) (*Editor, error) {
	g, err := Expand(entries)
	if err != nil {
		return nil, err
	}
	return &Editor{trainerID: trainerID, original: g, grid: g}, nil
}

// Grid returns a copy of the current grid.
func (e *Editor) Grid() Grid { return e.grid }

// GridChanged reports whether the grid differs from the loaded schedule.
func (e *Editor) GridChanged() bool { return e.grid != e.original }

// Dirty reports whether the grid changed or overrides are queued.
func (e *Editor) Dirty() bool { return e.GridChanged() || len(e.overrides) > 0 }

// Apply assigns the cells of edit.
func (e *Editor) Apply(edit GridEdit) error {
	if edit.Day < time.Sunday || edit.Day > time.Saturday {
		return &EntryError{Index: -1, Field: "day_of_week", Message: "must be between 0 and 6"}
	}
	if edit.From < 0 || edit.To > HoursPerDay || edit.From >= edit.To {
		return &EntryError{Index: -1, Field: "to", Message: fmt.Sprintf("must be after from within 0-24 (got %d-%d)", edit.From, edit.To)}
	}
	for hour := edit.From; hour < edit.To; hour++ {
		e.grid.Set(edit.Day, hour, edit.Available)
	}
	return nil
}

// AddOverride validates and queues a one-off entry for the trainer.
func (e *Editor) AddOverride(date calendar.Date, start, end calendar.TimeOfDay, kind EntryType) (Entry, error) {
	d := date
	entry := Entry{
		TrainerID: e.trainerID,
		Date:      &d,
		Start:     start,
		End:       end,
		Type:      kind,
	}
	if err := entry.Validate(); err != nil {
		return Entry{}, err
	}
	e.overrides = append(e.overrides, entry)
	return entry.Clone(), nil
}

// Schedule returns the compressed recurring entries of the current grid.
func (e *Editor) Schedule() []Entry {
	return Compress(e.trainerID, e.grid)
}

// PendingOverrides returns the queued overrides.
func (e *Editor) PendingOverrides() []Entry {
	return cloneEntries(e.overrides)
}
