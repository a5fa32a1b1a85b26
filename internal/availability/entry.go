// Package availability holds trainer availability: recurring weekly entries,
// one-off date overrides, the store that owns them and the weekly grid editor.
package availability

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/example/studio-scheduler/internal/calendar"
)

// EntryType classifies an availability window.
type EntryType string

const (
	// TypeAvailable marks bookable trainer time.
	TypeAvailable EntryType = "available"
	// TypeBlocked marks time the trainer cannot be booked.
	TypeBlocked EntryType = "blocked"
	// TypeVacation marks a day or part of a day away from the studio.
	TypeVacation EntryType = "vacation"
)

// Valid reports whether t is a known entry type.
func (t EntryType) Valid() bool {
	switch t {
	case TypeAvailable, TypeBlocked, TypeVacation:
		return true
	default:
		return false
	}
}

// Closes reports whether entries of this type remove availability.
func (t EntryType) Closes() bool {
	return t == TypeBlocked || t == TypeVacation
}

// Entry is a recurring weekly window or a one-off override for a specific date.
type Entry struct {
	ID        string
	TrainerID string
	DayOfWeek time.Weekday
	Date      *calendar.Date
	Start     calendar.TimeOfDay
	End       calendar.TimeOfDay
	Recurring bool
	Type      EntryType
}

// ErrInvalidEntry indicates an availability entry failed validation.
var ErrInvalidEntry = errors.New("availability: invalid entry")

// EntryError describes one invalid field of an entry. Index is the position of
// the entry in the submitted batch, or -1 for a single entry.
type EntryError struct {
	Index   int
	Field   string
	Message string
}

func (e *EntryError) Error() string {
	if e.Index >= 0 {
		return fmt.Sprintf("availability: entries[%d].%s %s", e.Index, e.Field, e.Message)
	}
	return fmt.Sprintf("availability: %s %s", e.Field, e.Message)
}

// Unwrap allows errors.Is(err, ErrInvalidEntry).
func (e *EntryError) Unwrap() error { return ErrInvalidEntry }

// EntryErrors aggregates every problem found in a batch.
type EntryErrors []*EntryError

func (e EntryErrors) Error() string {
	parts := make([]string, 0, len(e))
	for _, fe := range e {
		parts = append(parts, fe.Error())
	}
	return strings.Join(parts, "; ")
}

// Unwrap allows errors.Is(err, ErrInvalidEntry) and errors.As to each field error.
func (e EntryErrors) Unwrap() []error {
	out := make([]error, len(e))
	for i, fe := range e {
		out[i] = fe
	}
	return out
}

// Validate checks e and returns nil or an EntryErrors value.
func (e Entry) Validate() error {
	if errs := e.check(-1); len(errs) > 0 {
		return errs
	}
	return nil
}

func (e Entry) check(index int) EntryErrors {
	var errs EntryErrors
	add := func(field, msg string) {
		errs = append(errs, &EntryError{Index: index, Field: field, Message: msg})
	}

	if strings.TrimSpace(e.TrainerID) == "" {
		add("trainer_id", "is required")
	}
	if !e.Type.Valid() {
		add("type", fmt.Sprintf("must be one of available, blocked, vacation (got %q)", e.Type))
	}
	if !e.Start.Valid() || e.Start == calendar.EndOfDay {
		add("start_time", "must be between 00:00 and 23:59")
	}
	if !e.End.Valid() {
		add("end_time", "must be between 00:00 and 24:00")
	}
	if e.Start >= e.End {
		add("end_time", "must be after start_time")
	}
	if e.Recurring {
		if e.DayOfWeek < time.Sunday || e.DayOfWeek > time.Saturday {
			add("day_of_week", "must be between 0 and 6")
		}
		if e.Date != nil {
			add("date", "must be empty for recurring entries")
		}
	} else if e.Date == nil || e.Date.IsZero() {
		add("date", "is required for overrides")
	}
	return errs
}

// ValidateAll checks every entry and reports all problems at once.
func ValidateAll(entries []Entry) error {
	var errs EntryErrors
	for i, e := range entries {
		errs = append(errs, e.check(i)...)
	}
	if len(errs) > 0 {
		return errs
	}
	return nil
}

// Window returns the entry's time-of-day range.
func (e Entry) Window() calendar.Window {
	return calendar.Window{Start: e.Start, End: e.End}
}

// Clone returns a deep copy of e.
func (e Entry) Clone() Entry {
	out := e
	if e.Date != nil {
		d := *e.Date
		out.Date = &d
	}
	return out
}

// SortEntries orders entries by recurrence, weekday or date, start, end, type then ID.
func SortEntries(entries []Entry) {
	sort.SliceStable(entries, func(i, j int) bool {
		a, b := entries[i], entries[j]
		if a.Recurring != b.Recurring {
			return a.Recurring
		}
		if a.Recurring && a.DayOfWeek != b.DayOfWeek {
			return a.DayOfWeek < b.DayOfWeek
		}
		if !a.Recurring {
			da, db := dateOrZero(a.Date), dateOrZero(b.Date)
			if da != db {
				return da.Before(db)
			}
		}
		if a.Start != b.Start {
			return a.Start < b.Start
		}
		if a.End != b.End {
			return a.End < b.End
		}
		if a.Type != b.Type {
			return a.Type < b.Type
		}
		return a.ID < b.ID
	})
}

func dateOrZero(d *calendar.Date) calendar.Date {
	if d == nil {
		return calendar.Date{}
	}
	return *d
}
