package application

import (
	"github.com/example/studio-scheduler/internal/calendar"
	"github.com/example/studio-scheduler/internal/registry"
)

// MoveSessionParams describes a direct move outside a drag gesture.
type MoveSessionParams struct {
	SessionID       string
	Date            calendar.Date
	Start           calendar.TimeOfDay
	TrainerID       string
	DurationMinutes int
	ExpectedVersion int
}

// CreateSessionParams describes a new session slot.
type CreateSessionParams struct {
	TrainerID       string
	ClientID        string
	Date            calendar.Date
	Start           calendar.TimeOfDay
	DurationMinutes int
	Status          registry.Status
	Location        string
	Package         *registry.PackageInfo
}

func (p CreateSessionParams) validate() *ValidationError {
	vErr := &ValidationError{}
	if p.TrainerID == "" {
		vErr.add("trainer_id", "is required")
	}
	if p.Date.IsZero() {
		vErr.add("date", "is required")
	}
	if !p.Start.Valid() || p.Start == calendar.EndOfDay {
		vErr.add("start", "must be between 00:00 and 23:59")
	}
	if p.DurationMinutes <= 0 {
		vErr.add("duration_minutes", "must be positive")
	}
	if p.Status != "" {
		if _, err := registry.ParseStatus(string(p.Status)); err != nil {
			vErr.add("status", "is not a known status")
		}
	}
	if p.Status == registry.StatusBlocked && p.ClientID != "" {
		vErr.add("client_id", "must be empty for blocked time")
	}
	return vErr
}

func (p MoveSessionParams) validate() *ValidationError {
	vErr := &ValidationError{}
	if p.SessionID == "" {
		vErr.add("session_id", "is required")
	}
	if p.Date.IsZero() {
		vErr.add("date", "is required")
	}
	if !p.Start.Valid() || p.Start == calendar.EndOfDay {
		vErr.add("start", "must be between 00:00 and 23:59")
	}
	if p.DurationMinutes < 0 {
		vErr.add("duration_minutes", "cannot be negative")
	}
	return vErr
}
