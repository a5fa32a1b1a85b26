// Package calendar holds the wall-clock values shared by the scheduling packages:
// civil dates, minute-of-day times and half-open range arithmetic.
package calendar

import (
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"
)

const (
	// MinutesPerDay is the number of minutes between two midnights.
	MinutesPerDay = 24 * 60
	// EndOfDay is the exclusive upper bound of a day, rendered as "24:00".
	EndOfDay TimeOfDay = MinutesPerDay

	dateLayout = "2006-01-02"
)

var (
	// ErrInvalidTime indicates a malformed or out of range time-of-day value.
	ErrInvalidTime = errors.New("calendar: invalid time of day")
	// ErrInvalidDate indicates a malformed civil date.
	ErrInvalidDate = errors.New("calendar: invalid date")
)

// TimeOfDay is a local wall-clock time expressed in minutes since midnight.
// The value EndOfDay is accepted as an exclusive end bound.
type TimeOfDay int

// At builds a TimeOfDay from an hour and minute.
func At(hour, minute int) TimeOfDay {
	return TimeOfDay(hour*60 + minute)
}

// ParseTimeOfDay parses "HH:MM" (or "H:MM"). "24:00" is accepted as EndOfDay.
func ParseTimeOfDay(value string) (TimeOfDay, error) {
	value = strings.TrimSpace(value)
	hourPart, minutePart, ok := strings.Cut(value, ":")
	if !ok {
		return 0, fmt.Errorf("%w: %q", ErrInvalidTime, value)
	}
	hour, err := strconv.Atoi(hourPart)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrInvalidTime, value)
	}
	minute, err := strconv.Atoi(minutePart)
	if err != nil || len(minutePart) != 2 {
		return 0, fmt.Errorf("%w: %q", ErrInvalidTime, value)
	}
	if hour < 0 || minute < 0 || minute > 59 {
		return 0, fmt.Errorf("%w: %q", ErrInvalidTime, value)
	}
	t := At(hour, minute)
	if !t.Valid() {
		return 0, fmt.Errorf("%w: %q", ErrInvalidTime, value)
	}
	return t, nil
}

// MustTime parses value and panics on failure. Intended for fixtures.
func MustTime(value string) TimeOfDay {
	t, err := ParseTimeOfDay(value)
	if err != nil {
		panic(err)
	}
	return t
}

// Valid reports whether t lies within [00:00, 24:00].
func (t TimeOfDay) Valid() bool {
	return t >= 0 && t <= EndOfDay
}

// Hour returns the hour component.
func (t TimeOfDay) Hour() int { return int(t) / 60 }

// Minute returns the minute component.
func (t TimeOfDay) Minute() int { return int(t) % 60 }

// Add shifts t by the given number of minutes without wrapping.
func (t TimeOfDay) Add(minutes int) TimeOfDay { return t + TimeOfDay(minutes) }

// String renders t as "HH:MM".
func (t TimeOfDay) String() string {
	return fmt.Sprintf("%02d:%02d", t.Hour(), t.Minute())
}

// MarshalText implements encoding.TextMarshaler.
func (t TimeOfDay) MarshalText() ([]byte, error) {
	return []byte(t.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (t *TimeOfDay) UnmarshalText(text []byte) error {
	parsed, err := ParseTimeOfDay(string(text))
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}

// Date is a civil calendar date without a time zone.
type Date struct {
	Year  int
	Month time.Month
	Day   int
}

// NewDate normalises the supplied components (e.g. day 32 rolls into the next month).
func NewDate(year int, month time.Month, day int) Date {
	return DateOf(time.Date(year, month, day, 0, 0, 0, 0, time.UTC))
}

// DateOf returns the civil date of t in t's own location.
func DateOf(t time.Time) Date {
	y, m, d := t.Date()
	return Date{Year: y, Month: m, Day: d}
}

// ParseDate parses an ISO "YYYY-MM-DD" date.
func ParseDate(value string) (Date, error) {
	t, err := time.Parse(dateLayout, strings.TrimSpace(value))
	if err != nil {
		return Date{}, fmt.Errorf("%w: %q", ErrInvalidDate, value)
	}
	return DateOf(t), nil
}

// MustDate parses value and panics on failure. Intended for fixtures.
func MustDate(value string) Date {
	d, err := ParseDate(value)
	if err != nil {
		panic(err)
	}
	return d
}

// IsZero reports whether d is the zero date.
func (d Date) IsZero() bool { return d == (Date{}) }

// Weekday returns the day of the week of d.
func (d Date) Weekday() time.Weekday {
	return d.midnightUTC().Weekday()
}

// AddDays returns d shifted by n days.
func (d Date) AddDays(n int) Date {
	return DateOf(d.midnightUTC().AddDate(0, 0, n))
}

// Before reports whether d is strictly earlier than other.
func (d Date) Before(other Date) bool {
	return d.midnightUTC().Before(other.midnightUTC())
}

// After reports whether d is strictly later than other.
func (d Date) After(other Date) bool {
	return d.midnightUTC().After(other.midnightUTC())
}

// DaysUntil returns the signed number of days from d to other.
func (d Date) DaysUntil(other Date) int {
	return int(other.midnightUTC().Sub(d.midnightUTC()).Hours() / 24)
}

// At combines d and a time of day into an instant in loc.
func (d Date) At(t TimeOfDay, loc *time.Location) time.Time {
	if loc == nil {
		loc = time.UTC
	}
	return time.Date(d.Year, d.Month, d.Day, t.Hour(), t.Minute(), 0, 0, loc)
}

// String renders d as "YYYY-MM-DD".
func (d Date) String() string {
	return d.midnightUTC().Format(dateLayout)
}

// MarshalText implements encoding.TextMarshaler.
func (d Date) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *Date) UnmarshalText(text []byte) error {
	parsed, err := ParseDate(string(text))
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

func (d Date) midnightUTC() time.Time {
	return time.Date(d.Year, d.Month, d.Day, 0, 0, 0, 0, time.UTC)
}

// Split converts an instant into its civil date and time of day in loc.
func Split(t time.Time, loc *time.Location) (Date, TimeOfDay) {
	if loc != nil {
		t = t.In(loc)
	}
	return DateOf(t), At(t.Hour(), t.Minute())
}

// Overlaps reports whether the half-open ranges [aStart, aEnd) and [bStart, bEnd) intersect.
func Overlaps(aStart, aEnd, bStart, bEnd time.Time) bool {
	return aStart.Before(bEnd) && bStart.Before(aEnd)
}

// Window is a half-open range of wall-clock minutes within a single day.
type Window struct {
	Start TimeOfDay
	End   TimeOfDay
}

// Contains reports whether [start, end) lies entirely within w.
func (w Window) Contains(start, end TimeOfDay) bool {
	return start >= w.Start && end <= w.End
}

// Intersects reports whether [start, end) and w share at least one minute.
func (w Window) Intersects(start, end TimeOfDay) bool {
	return start < w.End && w.Start < end
}

// Minutes returns the length of w.
func (w Window) Minutes() int { return int(w.End - w.Start) }

// MergeWindows sorts windows and joins those that overlap or touch.
func MergeWindows(windows []Window) []Window {
	if len(windows) == 0 {
		return nil
	}
	sorted := make([]Window, len(windows))
	copy(sorted, windows)
	sort.Slice(sorted, func(i, j int) bool {
		if sorted[i].Start == sorted[j].Start {
			return sorted[i].End < sorted[j].End
		}
		return sorted[i].Start < sorted[j].Start
	})

	merged := []Window{sorted[0]}
	for _, w := range sorted[1:] {
		last := &merged[len(merged)-1]
		if w.Start <= last.End {
			if w.End > last.End {
				last.End = w.End
			}
			continue
		}
		merged = append(merged, w)
	}
	return merged
}

// Range is a half-open range of instants, used to load registry windows.
type Range struct {
	Start time.Time
	End   time.Time
}

// Contains reports whether t lies in [r.Start, r.End).
func (r Range) Contains(t time.Time) bool {
	return !t.Before(r.Start) && t.Before(r.End)
}

// Intersects reports whether [start, end) intersects r. A zero bound is unbounded.
func (r Range) Intersects(start, end time.Time) bool {
	if !r.Start.IsZero() && !end.After(r.Start) {
		return false
	}
	if !r.End.IsZero() && !start.Before(r.End) {
		return false
	}
	return true
}

// WeekOf returns the Monday-start week containing d as a range in loc.
func WeekOf(d Date, loc *time.Location) Range {
	offset := (int(d.Weekday()) + 6) % 7
	start := d.AddDays(-offset)
	return Range{Start: start.At(0, loc), End: start.AddDays(7).At(0, loc)}
}
