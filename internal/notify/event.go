// Package notify carries scheduling events from the core to whatever the
// hosting application wants to do with them: toasts, resolution dialogs or
// reminder scheduling. Publishing is fire-and-forget.
package notify

import (
	"context"
	"sync"
	"time"

	"github.com/example/studio-scheduler/internal/calendar"
	"github.com/example/studio-scheduler/internal/registry"
	"github.com/example/studio-scheduler/internal/scheduler"
)

// Kind identifies an event.
type Kind string

const (
	// KindCommit is published after a move was persisted.
	KindCommit Kind = "commit"
	// KindCommitFailed is published when persisting a valid move failed.
	KindCommitFailed Kind = "commit_failed"
	// KindRejection is published when a drop was refused because of hard conflicts.
	KindRejection Kind = "rejection"
	// KindAvailabilityChanged is published after a trainer's availability was saved.
	KindAvailabilityChanged Kind = "availability_changed"
)

// Target is the placement an event refers to.
type Target struct {
	TrainerID string
	Date      calendar.Date
	Start     calendar.TimeOfDay
}

// Event describes something the hosting application may react to.
type Event struct {
	ID           string
	Kind         Kind
	GestureID    string
	SessionID    string
	TrainerID    string
	Session      *registry.Session
	Target       *Target
	Conflicts    []scheduler.Conflict
	Alternatives []scheduler.Alternative
	Error        string
	OccurredAt   time.Time
}

// Publisher accepts events without blocking the caller on delivery.
type Publisher interface {
	Publish(ctx context.Context, event Event)
}

// Handler consumes delivered events.
type Handler interface {
	Handle(ctx context.Context, event Event) error
}

// HandlerFunc adapts a function to Handler.
type HandlerFunc func(ctx context.Context, event Event) error

// Handle calls f.
func (f HandlerFunc) Handle(ctx context.Context, event Event) error { return f(ctx, event) }

// Discard is a Publisher that drops every event.
var Discard Publisher = discard{}

type discard struct{}

func (discard) Publish(context.Context, Event) {}

// Recorder is a Publisher that keeps every event in memory.
type Recorder struct {
	mu     sync.Mutex
	events []Event
}

// Publish records the event.
func (r *Recorder) Publish(_ context.Context, event Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
}

// Events returns a copy of the recorded events.
func (r *Recorder) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Event, len(r.events))
	copy(out, r.events)
	return out
}

// Kinds returns the kinds of the recorded events in order.
func (r *Recorder) Kinds() []Kind {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Kind, len(r.events))
	for i, e := range r.events {
		out[i] = e.Kind
	}
	return out
}
