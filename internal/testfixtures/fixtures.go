package testfixtures

import (
	"fmt"
	"sync/atomic"
	"time"

	"github.com/example/studio-scheduler/internal/availability"
	"github.com/example/studio-scheduler/internal/calendar"
	"github.com/example/studio-scheduler/internal/persistence"
	"github.com/example/studio-scheduler/internal/registry"
)

var (
	sessionCounter uint64
	trainerCounter uint64
)

// referenceTime is a Monday midnight so fixture weeks start on it.
var referenceTime = time.Date(2024, time.March, 11, 0, 0, 0, 0, time.UTC)

// ReferenceTime returns the canonical baseline timestamp used by fixtures.
func ReferenceTime() time.Time {
	return referenceTime
}

// ReferenceDate returns the calendar date of ReferenceTime.
func ReferenceDate() calendar.Date {
	return calendar.DateOf(referenceTime)
}

// ---------------------------- Session fixtures ----------------------------

// SessionFixture represents a deterministic session record.
type SessionFixture struct {
	ID              string
	TrainerID       string
	ClientID        string
	Date            calendar.Date
	Start           calendar.TimeOfDay
	DurationMinutes int
	Status          registry.Status
	Location        string
	Package         *registry.PackageInfo
	Version         int
}

// SessionOption configures the generated session fixture.
type SessionOption func(*SessionFixture)

// NewSessionFixture returns a one hour scheduled session at 10:00 on the
// reference date, with optional overrides.
func NewSessionFixture(opts ...SessionOption) SessionFixture {
	idx := atomic.AddUint64(&sessionCounter, 1)
	fixture := SessionFixture{
		ID:              fmt.Sprintf("session-%03d", idx),
		TrainerID:       "trainer-1",
		ClientID:        fmt.Sprintf("client-%03d", idx),
		Date:            ReferenceDate(),
		Start:           calendar.At(10, 0),
		DurationMinutes: 60,
		Status:          registry.StatusScheduled,
		Location:        "Studio A",
		Version:         1,
	}
	for _, opt := range opts {
		opt(&fixture)
	}
	return fixture
}

// WithSessionID overrides the generated session ID.
func WithSessionID(id string) SessionOption {
	return func(f *SessionFixture) {
		f.ID = id
	}
}

// WithTrainer assigns the session to a trainer.
func WithTrainer(trainerID string) SessionOption {
	return func(f *SessionFixture) {
		f.TrainerID = trainerID
	}
}

// WithClient assigns the session to a client.
func WithClient(clientID string) SessionOption {
	return func(f *SessionFixture) {
		f.ClientID = clientID
	}
}

// WithSlot places the session at start ("HH:MM") on date.
func WithSlot(date calendar.Date, start string) SessionOption {
	return func(f *SessionFixture) {
		f.Date = date
		f.Start = calendar.MustTime(start)
	}
}

// WithDuration overrides the session length in minutes.
func WithDuration(minutes int) SessionOption {
	return func(f *SessionFixture) {
		f.DurationMinutes = minutes
	}
}

// WithStatus overrides the session status. Blocked sessions lose their client.
func WithStatus(status registry.Status) SessionOption {
	return func(f *SessionFixture) {
		f.Status = status
		if !status.HasClient() {
			f.ClientID = ""
		}
	}
}

// WithPackage attaches a credit package.
func WithPackage(name string, remaining, total int) SessionOption {
	return func(f *SessionFixture) {
		f.Package = &registry.PackageInfo{Name: name, SessionsRemaining: remaining, TotalSessions: total}
	}
}

// WithVersion overrides the concurrency version.
func WithVersion(version int) SessionOption {
	return func(f *SessionFixture) {
		f.Version = version
	}
}

// Session returns the fixture as a registry.Session placed in UTC.
func (f SessionFixture) Session() registry.Session {
	s := registry.Session{
		ID:              f.ID,
		Start:           f.Date.At(f.Start, time.UTC),
		DurationMinutes: f.DurationMinutes,
		Status:          f.Status,
		TrainerID:       f.TrainerID,
		ClientID:        f.ClientID,
		Location:        f.Location,
		Version:         f.Version,
	}
	if f.Package != nil {
		pkg := *f.Package
		s.Package = &pkg
	}
	return s
}

// ---------------------------- Trainer fixtures ----------------------------

// NewTrainer returns a trainer record. An empty id is generated.
func NewTrainer(id, name string) persistence.Trainer {
	idx := atomic.AddUint64(&trainerCounter, 1)
	if id == "" {
		id = fmt.Sprintf("trainer-%03d", idx)
	}
	if name == "" {
		name = fmt.Sprintf("Trainer %03d", idx)
	}
	return persistence.Trainer{
		ID:        id,
		Name:      name,
		Email:     id + "@studio.example.com",
		CreatedAt: referenceTime,
		UpdatedAt: referenceTime,
	}
}

// ------------------------- Availability fixtures --------------------------

// Weekly returns a recurring entry on day from start to end ("HH:MM").
func Weekly(trainerID string, day time.Weekday, start, end string, kind availability.EntryType) availability.Entry {
	return availability.Entry{
		TrainerID: trainerID,
		DayOfWeek: day,
		Start:     calendar.MustTime(start),
		End:       calendar.MustTime(end),
		Recurring: true,
		Type:      kind,
	}
}

// Override returns a one-off entry on date from start to end ("HH:MM").
func Override(trainerID string, date calendar.Date, start, end string, kind availability.EntryType) availability.Entry {
	d := date
	return availability.Entry{
		TrainerID: trainerID,
		Date:      &d,
		Start:     calendar.MustTime(start),
		End:       calendar.MustTime(end),
		Type:      kind,
	}
}

// WorkWeek returns available entries from start to end on Monday through Friday.
func WorkWeek(trainerID, start, end string) []availability.Entry {
	entries := make([]availability.Entry, 0, 5)
	for day := time.Monday; day <= time.Friday; day++ {
		entries = append(entries, Weekly(trainerID, day, start, end, availability.TypeAvailable))
	}
	return entries
}
