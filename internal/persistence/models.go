package persistence

import (
	"fmt"
	"strings"
	"time"

	"github.com/example/studio-scheduler/internal/registry"
)

// Trainer is a staff member whose calendar the studio schedules.
type Trainer struct {
	ID        string
	Name      string
	Email     string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Move relocates a session. An empty TrainerID keeps the current trainer and a
// zero DurationMinutes keeps the current length.
type Move struct {
	SessionID       string
	Start           time.Time
	DurationMinutes int
	TrainerID       string
	ExpectedVersion int
}

// Validate checks the fields every implementation relies on.
func (m Move) Validate() error {
	switch {
	case strings.TrimSpace(m.SessionID) == "":
		return fmt.Errorf("%w: move requires a session id", ErrConstraintViolation)
	case m.Start.IsZero():
		return fmt.Errorf("%w: move requires a start", ErrConstraintViolation)
	case m.DurationMinutes < 0:
		return fmt.Errorf("%w: move duration cannot be negative", ErrConstraintViolation)
	}
	return nil
}

// Apply returns current relocated by m with its version advanced. It fails
// with a *StaleWriteError when current is not at m.ExpectedVersion.
func (m Move) Apply(current registry.Session) (registry.Session, error) {
	if current.Version != m.ExpectedVersion {
		return registry.Session{}, &StaleWriteError{SessionID: current.ID, Expected: m.ExpectedVersion, Actual: current.Version}
	}
	next := current.Clone()
	next.Start = m.Start
	if m.TrainerID != "" {
		next.TrainerID = m.TrainerID
	}
	if m.DurationMinutes > 0 {
		next.DurationMinutes = m.DurationMinutes
	}
	next.Version++
	return next, nil
}
