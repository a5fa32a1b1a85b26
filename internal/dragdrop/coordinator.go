// Package dragdrop coordinates a single drag gesture over the schedule: live
// conflict checks while hovering, and a commit or rejection on drop.
package dragdrop

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/example/studio-scheduler/internal/calendar"
	"github.com/example/studio-scheduler/internal/notify"
	"github.com/example/studio-scheduler/internal/registry"
	"github.com/example/studio-scheduler/internal/scheduler"
)

var (
	// ErrNoGesture indicates an operation that needs an active gesture was called while idle.
	ErrNoGesture = errors.New("dragdrop: no active gesture")
	// ErrGestureActive indicates Start was called while a gesture is in progress.
	ErrGestureActive = errors.New("dragdrop: gesture already active")
)

// State is the coordinator state.
type State int

const (
	// StateIdle means no gesture is in progress.
	StateIdle State = iota
	// StateDragging means a session is being dragged.
	StateDragging
)

func (s State) String() string {
	if s == StateDragging {
		return "dragging"
	}
	return "idle"
}

// Outcome is how a gesture ended.
type Outcome string

const (
	// OutcomeCommitted means a move intent was emitted.
	OutcomeCommitted Outcome = "committed"
	// OutcomeRejected means the drop target had hard conflicts.
	OutcomeRejected Outcome = "rejected"
	// OutcomeCancelled means the gesture was abandoned without side effects.
	OutcomeCancelled Outcome = "cancelled"
)

// Target is a candidate placement under the pointer. An empty TrainerID keeps
// the session's trainer.
type Target struct {
	Date      calendar.Date
	Start     calendar.TimeOfDay
	TrainerID string
}

// Checker evaluates a placement. Implementations may perform a round trip and
// must honour ctx cancellation.
type Checker interface {
	CheckMove(ctx context.Context, req scheduler.Request) (scheduler.Result, error)
}

// MoveIntent is the commit request emitted on a valid drop.
type MoveIntent struct {
	ID              string
	GestureID       string
	SessionID       string
	Date            calendar.Date
	Start           calendar.TimeOfDay
	TrainerID       string
	ExpectedVersion int
}

// MoveApplier persists a move intent.
type MoveApplier interface {
	CommitMove(ctx context.Context, intent MoveIntent) (registry.Session, error)
}

// DropResult reports what a drop did.
type DropResult struct {
	Outcome Outcome
	Check   scheduler.Result
	Intent  *MoveIntent
	Session *registry.Session
}

// Option customises a Coordinator.
type Option func(*Coordinator)

// WithIDGenerator overrides gesture and intent ID generation.
func WithIDGenerator(fn func() string) Option {
	return func(c *Coordinator) {
		if fn != nil {
			c.newID = fn
		}
	}
}

// WithBufferMinutes sets the buffer rendered around the ghost placement.
func WithBufferMinutes(minutes int) Option {
	return func(c *Coordinator) { c.bufferMinutes = minutes }
}

// WithLocation sets the zone used to place the ghost session.
func WithLocation(loc *time.Location) Option {
	return func(c *Coordinator) {
		if loc != nil {
			c.location = loc
		}
	}
}

// Stats counts checks issued and stale results thrown away.
type Stats struct {
	Checks    int
	Discarded int
}

// Coordinator owns one gesture at a time. It is safe for concurrent use.
type Coordinator struct {
	checker       Checker
	applier       MoveApplier
	publisher     notify.Publisher
	logger        *slog.Logger
	newID         func() string
	bufferMinutes int
	location      *time.Location

	mu      sync.Mutex
	gesture *gesture
	stats   Stats
}

type gesture struct {
	id      string
	ctx     context.Context
	cancel  context.CancelFunc
	session registry.Session
	target  *Target
	key     string
	check   *check
	result  *scheduler.Result
	err     error
}

type check struct {
	key    string
	req    scheduler.Request
	cancel context.CancelFunc
	done   chan struct{}
	result scheduler.Result
	err    error
}

// NewCoordinator constructs an idle coordinator.
func NewCoordinator(checker Checker, applier MoveApplier, publisher notify.Publisher, logger *slog.Logger, opts ...Option) *Coordinator {
	if publisher == nil {
		publisher = notify.Discard
	}
	if logger == nil {
		logger = slog.Default()
	}
	c := &Coordinator{
		checker:   checker,
		applier:   applier,
		publisher: publisher,
		logger:    logger.With("component", "dragdrop"),
		newID:     uuid.NewString,
		location:  time.UTC,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// State returns the current state.
func (c *Coordinator) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.gesture == nil {
		return StateIdle
	}
	return StateDragging
}

// Stats returns the check counters.
func (c *Coordinator) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stats
}

// Start begins dragging a snapshot of session and returns the gesture ID.
func (c *Coordinator) Start(ctx context.Context, session registry.Session) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.gesture != nil {
		return "", ErrGestureActive
	}
	gctx, cancel := context.WithCancel(ctx)
	c.gesture = &gesture{
		id:      c.newID(),
		ctx:     gctx,
		cancel:  cancel,
		session: session.Clone(),
	}
	c.logger.Debug("gesture started", "gesture_id", c.gesture.id, "session_id", session.ID)
	return c.gesture.id, nil
}

// Hover records the target under the pointer. An unchanged target is a no-op;
// a new target supersedes any in-flight check and starts a fresh one. It
// reports whether a check was issued.
func (c *Coordinator) Hover(target Target) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	g := c.gesture
	if g == nil {
		return false, ErrNoGesture
	}
	req := g.request(target)
	t := target
	g.target = &t
	if req.Key() == g.key {
		return false, nil
	}

	if g.check != nil {
		g.check.cancel()
	}
	g.key = req.Key()
	g.result = nil
	g.err = nil

	ctx, cancel := context.WithCancel(g.ctx)
	chk := &check{key: g.key, req: req, cancel: cancel, done: make(chan struct{})}
	g.check = chk
	c.stats.Checks++
	go c.run(ctx, g.id, chk)
	return true, nil
}

func (c *Coordinator) run(ctx context.Context, gestureID string, chk *check) {
	result, err := c.checker.CheckMove(ctx, chk.req)

	c.mu.Lock()
	defer c.mu.Unlock()

	chk.result, chk.err = result, err
	close(chk.done)

	g := c.gesture
	if g == nil || g.id != gestureID {
		return
	}
	if g.key != chk.key || ctx.Err() != nil {
		c.stats.Discarded++
		c.logger.Debug("discarding stale check", "gesture_id", gestureID, "key", chk.key)
		return
	}
	if err != nil {
		g.err = err
		return
	}
	r := result
	g.result = &r
}

// Settle blocks until the check for the current target finishes or ctx is done.
func (c *Coordinator) Settle(ctx context.Context) error {
	c.mu.Lock()
	g := c.gesture
	if g == nil {
		c.mu.Unlock()
		return ErrNoGesture
	}
	chk := g.check
	c.mu.Unlock()
	if chk == nil {
		return nil
	}
	select {
	case <-chk.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Cancel abandons the gesture. It has no side effects and reports whether a gesture was active.
func (c *Coordinator) Cancel() bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	g := c.gesture
	if g == nil {
		return false
	}
	c.gesture = nil
	g.cancel()
	c.logger.Debug("gesture cancelled", "gesture_id", g.id)
	return true
}

// Drop ends the gesture over target. A nil target means the pointer left every
// valid target and the gesture is cancelled. A target without hard conflicts
// emits exactly one move intent; otherwise a rejection event is published.
func (c *Coordinator) Drop(ctx context.Context, target *Target) (DropResult, error) {
	c.mu.Lock()
	g := c.gesture
	if g == nil {
		c.mu.Unlock()
		return DropResult{}, ErrNoGesture
	}
	// Detach first so the gesture can emit at most one intent.
	c.gesture = nil
	if target == nil {
		c.mu.Unlock()
		g.cancel()
		c.logger.Debug("gesture dropped outside targets", "gesture_id", g.id)
		return DropResult{Outcome: OutcomeCancelled}, nil
	}

	req := g.request(*target)
	var known *scheduler.Result
	var pending *check
	if req.Key() == g.key {
		known = g.result
		if known == nil && g.err == nil {
			pending = g.check
		}
	} else if g.check != nil {
		g.check.cancel()
	}
	c.mu.Unlock()
	defer g.cancel()

	logger := c.logger.With("gesture_id", g.id, "session_id", g.session.ID)

	result, err := c.resolve(ctx, req, known, pending)
	if err != nil {
		logger.Warn("drop check failed", "error", err)
		return DropResult{}, fmt.Errorf("check drop target: %w", err)
	}

	if result.HasHardConflict() {
		c.publisher.Publish(ctx, notify.Event{
			Kind:         notify.KindRejection,
			GestureID:    g.id,
			SessionID:    g.session.ID,
			TrainerID:    result.TrainerID,
			Session:      sessionPtr(g.session),
			Target:       notifyTarget(req),
			Conflicts:    result.Conflicts,
			Alternatives: result.Alternatives,
		})
		logger.Info("drop rejected", "conflicts", len(result.HardConflicts()), "alternatives", len(result.Alternatives))
		return DropResult{Outcome: OutcomeRejected, Check: result}, nil
	}

	intent := MoveIntent{
		ID:              c.newID(),
		GestureID:       g.id,
		SessionID:       g.session.ID,
		Date:            req.Date,
		Start:           req.Start,
		TrainerID:       req.TrainerID,
		ExpectedVersion: g.session.Version,
	}
	drop := DropResult{Outcome: OutcomeCommitted, Check: result, Intent: &intent}

	updated, err := c.applier.CommitMove(ctx, intent)
	if err != nil {
		c.publisher.Publish(ctx, notify.Event{
			Kind:      notify.KindCommitFailed,
			GestureID: g.id,
			SessionID: g.session.ID,
			TrainerID: intent.TrainerID,
			Session:   sessionPtr(g.session),
			Target:    notifyTarget(req),
			Conflicts: result.Conflicts,
			Error:     err.Error(),
		})
		logger.Warn("commit failed", "intent_id", intent.ID, "error", err)
		return drop, fmt.Errorf("commit move %s: %w", intent.SessionID, err)
	}

	drop.Session = sessionPtr(updated)
	c.publisher.Publish(ctx, notify.Event{
		Kind:      notify.KindCommit,
		GestureID: g.id,
		SessionID: updated.ID,
		TrainerID: updated.TrainerID,
		Session:   sessionPtr(updated),
		Target:    notifyTarget(req),
		Conflicts: result.Conflicts,
	})
	logger.Info("drop committed", "intent_id", intent.ID, "soft_conflicts", len(result.SoftConflicts()))
	return drop, nil
}

func (c *Coordinator) resolve(ctx context.Context, req scheduler.Request, known *scheduler.Result, pending *check) (scheduler.Result, error) {
	if known != nil {
		return *known, nil
	}
	if pending != nil {
		select {
		case <-pending.done:
			if pending.err == nil {
				return pending.result, nil
			}
		case <-ctx.Done():
			return scheduler.Result{}, ctx.Err()
		}
	}
	return c.checker.CheckMove(ctx, req)
}

func (g *gesture) request(target Target) scheduler.Request {
	trainerID := target.TrainerID
	if trainerID == "" {
		trainerID = g.session.TrainerID
	}
	return scheduler.Request{
		SessionID: g.session.ID,
		Date:      target.Date,
		Start:     target.Start,
		TrainerID: trainerID,
	}
}

func sessionPtr(s registry.Session) *registry.Session {
	c := s.Clone()
	return &c
}

func notifyTarget(req scheduler.Request) *notify.Target {
	return &notify.Target{TrainerID: req.TrainerID, Date: req.Date, Start: req.Start}
}
