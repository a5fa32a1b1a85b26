// Package registry models the session records of a time window and keeps an
// immutable, trainer-indexed snapshot of them for conflict evaluation.
package registry

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Status is the lifecycle state of a session.
type Status string

const (
	// StatusAvailable marks an open slot a client may book.
	StatusAvailable Status = "available"
	// StatusRequested marks a slot a client asked for but the studio has not confirmed.
	StatusRequested Status = "requested"
	// StatusScheduled marks a booked session.
	StatusScheduled Status = "scheduled"
	// StatusConfirmed marks a booked session confirmed by the trainer.
	StatusConfirmed Status = "confirmed"
	// StatusCompleted marks a session that took place.
	StatusCompleted Status = "completed"
	// StatusCancelled marks a soft-deleted session. Cancelled sessions occupy no time.
	StatusCancelled Status = "cancelled"
	// StatusNoShow marks a session the client missed.
	StatusNoShow Status = "no_show"
	// StatusBlocked marks trainer time reserved for non-client work.
	StatusBlocked Status = "blocked"
)

// ParseStatus maps a persisted status string onto a Status. "booked" is
// accepted as an alias of scheduled.
func ParseStatus(value string) (Status, error) {
	switch s := Status(strings.ToLower(strings.TrimSpace(value))); s {
	case StatusAvailable, StatusRequested, StatusScheduled, StatusConfirmed,
		StatusCompleted, StatusCancelled, StatusNoShow, StatusBlocked:
		return s, nil
	case "booked":
		return StatusScheduled, nil
	case "no-show":
		return StatusNoShow, nil
	default:
		return "", fmt.Errorf("registry: unknown session status %q", value)
	}
}

// Occupies reports whether a session in this status holds trainer time.
func (s Status) Occupies() bool {
	return s != StatusCancelled && s != ""
}

// HasClient reports whether sessions in this status normally carry a client.
func (s Status) HasClient() bool {
	switch s {
	case StatusAvailable, StatusBlocked:
		return false
	default:
		return true
	}
}

// PackageInfo references the credit package a session draws from.
type PackageInfo struct {
	Name              string
	SessionsRemaining int
	TotalSessions     int
	Unlimited         bool
}

// Exhausted reports whether the package has no sessions left.
func (p *PackageInfo) Exhausted() bool {
	return p != nil && !p.Unlimited && p.SessionsRemaining <= 0
}

// Session is a bookable unit of trainer time.
type Session struct {
	ID              string
	Start           time.Time
	DurationMinutes int
	Status          Status
	TrainerID       string
	ClientID        string
	Location        string
	Package         *PackageInfo
	// Version increases on every persisted change and guards moves against stale snapshots.
	Version int
}

var (
	// ErrInvalidSession indicates a session violating the record invariants.
	ErrInvalidSession = errors.New("registry: invalid session")
)

// End returns the exclusive end of the occupied interval.
func (s Session) End() time.Time {
	return s.Start.Add(s.Duration())
}

// Duration returns the session length.
func (s Session) Duration() time.Duration {
	return time.Duration(s.DurationMinutes) * time.Minute
}

// Overlaps reports whether s occupies any instant of [start, end).
func (s Session) Overlaps(start, end time.Time) bool {
	return s.Start.Before(end) && start.Before(s.End())
}

// Validate checks the record invariants.
func (s Session) Validate() error {
	switch {
	case strings.TrimSpace(s.ID) == "":
		return fmt.Errorf("%w: id is required", ErrInvalidSession)
	case s.Start.IsZero():
		return fmt.Errorf("%w: start is required", ErrInvalidSession)
	case s.DurationMinutes <= 0:
		return fmt.Errorf("%w: duration must be positive", ErrInvalidSession)
	case s.Status == StatusBlocked && s.ClientID != "":
		return fmt.Errorf("%w: blocked sessions cannot have a client", ErrInvalidSession)
	}
	if _, err := ParseStatus(string(s.Status)); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidSession, err)
	}
	return nil
}

// Clone returns a deep copy of s.
func (s Session) Clone() Session {
	out := s
	if s.Package != nil {
		pkg := *s.Package
		out.Package = &pkg
	}
	return out
}
