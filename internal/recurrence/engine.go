// Package recurrence expands recurring weekly availability and date overrides
// into concrete dated windows.
package recurrence

import (
	"errors"
	"time"

	"github.com/example/studio-scheduler/internal/availability"
	"github.com/example/studio-scheduler/internal/calendar"
)

// MaxRangeDays bounds a single expansion.
const MaxRangeDays = 370

// ErrInvalidWindow indicates the expansion range ends before it starts.
var ErrInvalidWindow = errors.New("recurrence: range end precedes range start")

// ErrRangeTooLarge indicates the expansion range exceeds MaxRangeDays.
var ErrRangeTooLarge = errors.New("recurrence: range exceeds maximum span")

// Source resolves the effective availability of a trainer on a date.
type Source interface {
	Day(trainerID string, date calendar.Date) availability.Day
}

// Occurrence is one open window of a trainer on a concrete date.
type Occurrence struct {
	TrainerID  string
	Date       calendar.Date
	Window     calendar.Window
	Start      time.Time
	End        time.Time
	Overridden bool
}

// Engine expands availability into occurrences in a fixed location.
type Engine struct {
	location *time.Location
}

// NewEngine constructs an Engine that places occurrences in loc.
// If loc is nil, UTC is used.
func NewEngine(loc *time.Location) *Engine {
	if loc == nil {
		loc = time.UTC
	}
	return &Engine{location: loc}
}

// Location returns the engine's time zone.
func (e *Engine) Location() *time.Location {
	if e == nil || e.location == nil {
		return time.UTC
	}
	return e.location
}

// Expand produces the open windows of trainerID for every date in [from, to],
// in chronological order.
//
// Overrides for a date replace that weekday's recurring entries; blocked and
// vacation windows are carved out of the available ones.
func (e *Engine) Expand(src Source, trainerID string, from, to calendar.Date) ([]Occurrence, error) {
	if to.Before(from) {
		return nil, ErrInvalidWindow
	}
	if from.DaysUntil(to) >= MaxRangeDays {
		return nil, ErrRangeTooLarge
	}
	loc := e.Location()

	var out []Occurrence
	for date := from; !date.After(to); date = date.AddDays(1) {
		day := src.Day(trainerID, date)
		for _, w := range day.Open() {
			out = append(out, Occurrence{
				TrainerID:  trainerID,
				Date:       date,
				Window:     w,
				Start:      date.At(w.Start, loc),
				End:        date.At(w.End, loc),
				Overridden: day.Overridden,
			})
		}
	}
	return out, nil
}
