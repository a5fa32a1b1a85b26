package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/example/studio-scheduler/internal/calendar"
	"github.com/example/studio-scheduler/internal/dragdrop"
	"github.com/example/studio-scheduler/internal/notify"
	"github.com/example/studio-scheduler/internal/persistence"
	"github.com/example/studio-scheduler/internal/registry"
	"github.com/example/studio-scheduler/internal/scheduler"
)

// SchedulingService loads the state a check needs, evaluates placements and
// commits moves. It serves as both the checker and the move applier of a
// drag gesture.
type SchedulingService struct {
	sessions     persistence.SessionRepository
	availability *AvailabilityService
	checker      *scheduler.Checker
	cache        *resultCache
	publisher    notify.Publisher
	logger       *slog.Logger
	newID        func() string
}

var (
	_ dragdrop.Checker     = (*SchedulingService)(nil)
	_ dragdrop.MoveApplier = (*SchedulingService)(nil)
)

// SchedulingServiceConfig carries the tunables of a SchedulingService.
type SchedulingServiceConfig struct {
	Policy      scheduler.Policy
	Publisher   notify.Publisher
	CacheTTL    time.Duration
	CacheSize   int
	Now         func() time.Time
	IDGenerator func() string
	Logger      *slog.Logger
}

// NewSchedulingService wires dependencies for scheduling operations. Cached
// check results are dropped whenever availability changes.
func NewSchedulingService(sessions persistence.SessionRepository, avail *AvailabilityService, cfg SchedulingServiceConfig) *SchedulingService {
	if cfg.Publisher == nil {
		cfg.Publisher = notify.Discard
	}
	if cfg.IDGenerator == nil {
		cfg.IDGenerator = uuid.NewString
	}
	s := &SchedulingService{
		sessions:     sessions,
		availability: avail,
		checker:      scheduler.NewChecker(cfg.Policy),
		cache:        newResultCache(cfg.CacheTTL, cfg.CacheSize, cfg.Now),
		publisher:    cfg.Publisher,
		logger:       defaultLogger(cfg.Logger),
		newID:        cfg.IDGenerator,
	}
	if avail != nil {
		avail.OnChange(s.cache.Invalidate)
	}
	return s
}

// Policy returns the rule constants in effect.
func (s *SchedulingService) Policy() scheduler.Policy {
	return s.checker.Policy()
}

// CheckMove evaluates moving a session to the requested slot. Results are
// cached per placement until the next write.
func (s *SchedulingService) CheckMove(ctx context.Context, req scheduler.Request) (scheduler.Result, error) {
	key := cacheKey(req)
	if result, ok := s.cache.Get(key); ok {
		return result, nil
	}
	generation := s.cache.Generation()

	session, err := s.getSession(ctx, req.SessionID)
	if err != nil {
		return scheduler.Result{}, err
	}
	result, err := s.evaluate(ctx, session, req, false)
	if err != nil {
		return scheduler.Result{}, err
	}

	s.cache.Store(key, generation, result)
	return result, nil
}

// CommitMove applies the move intent of a valid drop. The placement is
// checked again against fresh state before it is written.
func (s *SchedulingService) CommitMove(ctx context.Context, intent dragdrop.MoveIntent) (registry.Session, error) {
	moved, _, err := s.move(ctx, MoveSessionParams{
		SessionID:       intent.SessionID,
		Date:            intent.Date,
		Start:           intent.Start,
		TrainerID:       intent.TrainerID,
		ExpectedVersion: intent.ExpectedVersion,
	}, "intent_id", intent.ID, "gesture_id", intent.GestureID)
	return moved, err
}

// MoveSession moves a session outside a drag gesture and publishes the outcome.
func (s *SchedulingService) MoveSession(ctx context.Context, params MoveSessionParams) (registry.Session, scheduler.Result, error) {
	moved, result, err := s.move(ctx, params)

	target := &notify.Target{TrainerID: result.TrainerID, Date: params.Date, Start: params.Start}
	var conflictErr *ConflictError
	switch {
	case err == nil:
		s.publisher.Publish(ctx, notify.Event{
			Kind:      notify.KindCommit,
			SessionID: moved.ID,
			TrainerID: moved.TrainerID,
			Session:   &moved,
			Target:    target,
			Conflicts: result.Conflicts,
		})
	case errors.As(err, &conflictErr):
		s.publisher.Publish(ctx, notify.Event{
			Kind:         notify.KindRejection,
			SessionID:    params.SessionID,
			TrainerID:    result.TrainerID,
			Target:       target,
			Conflicts:    conflictErr.Conflicts,
			Alternatives: conflictErr.Alternatives,
		})
	}
	return moved, result, err
}

func (s *SchedulingService) move(ctx context.Context, params MoveSessionParams, attrs ...any) (registry.Session, scheduler.Result, error) {
	logger := serviceLogger(ctx, s.logger, "SchedulingService", "MoveSession",
		append([]any{"session_id", params.SessionID}, attrs...)...)

	if vErr := params.validate(); vErr.HasErrors() {
		return registry.Session{}, scheduler.Result{}, vErr
	}

	session, err := s.getSession(ctx, params.SessionID)
	if err != nil {
		return registry.Session{}, scheduler.Result{}, err
	}
	if session.Version != params.ExpectedVersion {
		err := &ConcurrencyError{SessionID: session.ID, Expected: params.ExpectedVersion, Actual: session.Version}
		logger.Warn("move rejected", "error_kind", ErrorKind(err), "error", err)
		return registry.Session{}, scheduler.Result{}, err
	}

	result, err := s.evaluate(ctx, session, scheduler.Request{
		SessionID:       session.ID,
		Date:            params.Date,
		Start:           params.Start,
		TrainerID:       params.TrainerID,
		DurationMinutes: params.DurationMinutes,
	}, true)
	if err != nil {
		return registry.Session{}, scheduler.Result{}, err
	}
	if result.HasHardConflict() {
		err := &ConflictError{SessionID: session.ID, Conflicts: result.HardConflicts(), Alternatives: result.Alternatives}
		logger.Info("move rejected", "error_kind", ErrorKind(err), "conflicts", len(err.Conflicts), "alternatives", len(err.Alternatives))
		return registry.Session{}, result, err
	}

	moved, err := s.sessions.ApplyMove(ctx, persistence.Move{
		SessionID:       session.ID,
		Start:           result.Start,
		DurationMinutes: params.DurationMinutes,
		TrainerID:       result.TrainerID,
		ExpectedVersion: params.ExpectedVersion,
	})
	if err != nil {
		err = mapSessionError(err, session.ID)
		logger.Error("move failed", "error_kind", ErrorKind(err), "error", err)
		return registry.Session{}, result, err
	}

	s.cache.Invalidate()
	logger.Info("session moved", "trainer_id", moved.TrainerID, "start", moved.Start, "version", moved.Version, "soft_conflicts", len(result.SoftConflicts()))
	return moved, result, nil
}

// CreateSession stores a new session after checking its placement. Hard
// conflicts reject it with a *ConflictError; soft ones are returned.
func (s *SchedulingService) CreateSession(ctx context.Context, params CreateSessionParams) (registry.Session, scheduler.Result, error) {
	logger := serviceLogger(ctx, s.logger, "SchedulingService", "CreateSession", "trainer_id", params.TrainerID)

	if vErr := params.validate(); vErr.HasErrors() {
		return registry.Session{}, scheduler.Result{}, vErr
	}
	status := params.Status
	if status == "" {
		status = registry.StatusScheduled
	}
	candidate := registry.Session{
		ID:              s.newID(),
		Start:           params.Date.At(params.Start, s.Policy().Location),
		DurationMinutes: params.DurationMinutes,
		Status:          status,
		TrainerID:       params.TrainerID,
		ClientID:        params.ClientID,
		Location:        params.Location,
		Package:         params.Package,
	}

	result, err := s.evaluate(ctx, candidate, scheduler.Request{
		SessionID: candidate.ID,
		Date:      params.Date,
		Start:     params.Start,
	}, true)
	if err != nil {
		return registry.Session{}, scheduler.Result{}, err
	}
	if result.HasHardConflict() {
		err := &ConflictError{SessionID: candidate.ID, Conflicts: result.HardConflicts(), Alternatives: result.Alternatives}
		logger.Info("session rejected", "error_kind", ErrorKind(err))
		return registry.Session{}, result, err
	}

	created, err := s.sessions.CreateSession(ctx, candidate)
	if err != nil {
		err = mapSessionError(err, candidate.ID)
		logger.Error("create session failed", "error_kind", ErrorKind(err), "error", err)
		return registry.Session{}, result, err
	}

	s.cache.Invalidate()
	logger.Info("session created", "session_id", created.ID, "start", created.Start)
	return created, result, nil
}

// GetSession returns a single session.
func (s *SchedulingService) GetSession(ctx context.Context, id string) (registry.Session, error) {
	return s.getSession(ctx, id)
}

// ListSessions returns the sessions intersecting window.
func (s *SchedulingService) ListSessions(ctx context.Context, window calendar.Range) ([]registry.Session, error) {
	sessions, err := s.sessions.LoadSessions(ctx, window)
	if err != nil {
		return nil, fmt.Errorf("load sessions: %w", err)
	}
	return sessions, nil
}

// BufferZones returns the buffer zones of the sessions intersecting window.
func (s *SchedulingService) BufferZones(ctx context.Context, window calendar.Range) ([]scheduler.BufferZone, error) {
	sessions, err := s.ListSessions(ctx, window)
	if err != nil {
		return nil, err
	}
	return scheduler.RenderBuffers(sessions, s.Policy().BufferMinutes), nil
}

// evaluate checks req for session. Writes pass fresh so availability is read
// past the cache.
func (s *SchedulingService) evaluate(ctx context.Context, session registry.Session, req scheduler.Request, fresh bool) (scheduler.Result, error) {
	if err := ctx.Err(); err != nil {
		return scheduler.Result{}, err
	}
	snap, err := s.snapshot(ctx, req.Date, fresh)
	if err != nil {
		return scheduler.Result{}, err
	}
	if err := ctx.Err(); err != nil {
		return scheduler.Result{}, err
	}
	result, err := s.checker.CheckCandidate(snap, session, req)
	if err != nil {
		if errors.Is(err, scheduler.ErrInvalidRequest) {
			vErr := &ValidationError{}
			vErr.add("request", err.Error())
			return scheduler.Result{}, vErr
		}
		return scheduler.Result{}, err
	}
	return result, nil
}

// snapshot loads every session and availability entry the checker may
// consult for a placement on date, including the alternative search horizon.
func (s *SchedulingService) snapshot(ctx context.Context, date calendar.Date, fresh bool) (scheduler.Snapshot, error) {
	policy := s.Policy()
	span := policy.AlternativeHorizonDays + 1
	window := calendar.Range{
		Start: date.AddDays(-span).At(0, policy.Location),
		End:   date.AddDays(span+1).At(0, policy.Location),
	}
	sessions, err := s.sessions.LoadSessions(ctx, window)
	if err != nil {
		return scheduler.Snapshot{}, fmt.Errorf("load sessions: %w", err)
	}

	var avail scheduler.AvailabilitySource
	if s.availability != nil {
		load := s.availability.Snapshot
		if fresh {
			load = s.availability.FreshSnapshot
		}
		snap, err := load(ctx)
		if err != nil {
			return scheduler.Snapshot{}, err
		}
		avail = snap
	}
	return scheduler.Snapshot{Sessions: registry.New(window, sessions), Availability: avail}, nil
}

func (s *SchedulingService) getSession(ctx context.Context, id string) (registry.Session, error) {
	session, err := s.sessions.GetSession(ctx, id)
	if err != nil {
		return registry.Session{}, mapSessionError(err, id)
	}
	return session, nil
}

func cacheKey(req scheduler.Request) string {
	key := req.Key() + "|" + strconv.Itoa(req.DurationMinutes)
	if !req.NotBefore.IsZero() {
		key += "|" + strconv.FormatInt(req.NotBefore.Unix(), 10)
	}
	return key
}

func mapSessionError(err error, sessionID string) error {
	if err == nil {
		return nil
	}
	var stale *persistence.StaleWriteError
	switch {
	case errors.As(err, &stale):
		return &ConcurrencyError{SessionID: stale.SessionID, Expected: stale.Expected, Actual: stale.Actual}
	case errors.Is(err, persistence.ErrStaleWrite):
		return &ConcurrencyError{SessionID: sessionID}
	case errors.Is(err, persistence.ErrNotFound):
		return &NotFoundError{Kind: "session", ID: sessionID}
	case errors.Is(err, persistence.ErrConstraintViolation):
		vErr := &ValidationError{}
		vErr.add("session", err.Error())
		return vErr
	}
	return err
}
