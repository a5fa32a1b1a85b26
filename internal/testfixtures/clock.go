package testfixtures

import (
	"sync"
	"time"

	"github.com/example/studio-scheduler/internal/calendar"
)

// Clock is a controllable time source. It starts at ReferenceTime, the Monday
// the fixture week begins on, and only moves when a test moves it.
type Clock struct {
	mu      sync.Mutex
	current time.Time
}

// NewClock returns a clock set to start, or to ReferenceTime when start is zero.
func NewClock(start time.Time) *Clock {
	if start.IsZero() {
		start = ReferenceTime()
	}
	return &Clock{current: start}
}

func (c *Clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.current
}

// NowFunc exposes Now for injection; a nil clock falls back to time.Now.
func (c *Clock) NowFunc() func() time.Time {
	if c == nil {
		return time.Now
	}
	return c.Now
}

// Advance moves the clock forward by d and returns the new time.
func (c *Clock) Advance(d time.Duration) time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.current = c.current.Add(d)
	return c.current
}

// MoveTo sets the clock to the wall time at ("HH:MM") on date in loc, UTC when loc is nil.
func (c *Clock) MoveTo(date calendar.Date, at string, loc *time.Location) time.Time {
	if loc == nil {
		loc = time.UTC
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.current = date.At(calendar.MustTime(at), loc)
	return c.current
}
