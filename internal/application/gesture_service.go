package application

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	gocache "github.com/patrickmn/go-cache"

	"github.com/example/studio-scheduler/internal/dragdrop"
	"github.com/example/studio-scheduler/internal/notify"
)

// ErrTooManyGestures is returned by Start when the gesture limit is reached.
var ErrTooManyGestures = errors.New("application: too many open gestures")

// GestureService hosts drag gestures for remote clients. Each gesture gets
// its own coordinator backed by the scheduling service. A gesture left idle
// for longer than the idle timeout is cancelled and forgotten.
type GestureService struct {
	scheduling *SchedulingService
	publisher  notify.Publisher
	logger     *slog.Logger
	newID      func() string
	maxActive  int

	mu       sync.Mutex
	gestures *gocache.Cache
}

type hostedGesture struct {
	coordinator *dragdrop.Coordinator
	detached    atomic.Bool
	evicted     atomic.Bool
}

// GestureServiceConfig carries the optional collaborators and limits of a GestureService.
type GestureServiceConfig struct {
	Publisher   notify.Publisher
	Logger      *slog.Logger
	IDGenerator func() string
	IdleTimeout time.Duration
	MaxActive   int
}

// NewGestureService wires dependencies for hosted gestures.
func NewGestureService(scheduling *SchedulingService, cfg GestureServiceConfig) *GestureService {
	if cfg.Publisher == nil {
		cfg.Publisher = notify.Discard
	}
	if cfg.IDGenerator == nil {
		cfg.IDGenerator = uuid.NewString
	}
	if cfg.IdleTimeout <= 0 {
		cfg.IdleTimeout = 2 * time.Minute
	}
	if cfg.MaxActive <= 0 {
		cfg.MaxActive = 1024
	}
	s := &GestureService{
		scheduling: scheduling,
		publisher:  cfg.Publisher,
		logger:     defaultLogger(cfg.Logger),
		newID:      cfg.IDGenerator,
		maxActive:  cfg.MaxActive,
		gestures:   gocache.New(cfg.IdleTimeout, cfg.IdleTimeout/2),
	}
	// Called for Delete and for expiry. Detached gestures are owned by their caller.
	s.gestures.OnEvicted(func(id string, value interface{}) {
		hosted := value.(*hostedGesture)
		hosted.evicted.Store(true)
		if hosted.detached.Load() {
			return
		}
		if hosted.coordinator.Cancel() {
			s.logger.Info("idle gesture expired", "gesture_id", id)
		}
	})
	return s
}

// Start begins dragging a session and returns the gesture ID. The gesture
// outlives ctx; it ends on Drop, Cancel or after the idle timeout.
func (s *GestureService) Start(ctx context.Context, sessionID string) (string, error) {
	session, err := s.scheduling.GetSession(ctx, sessionID)
	if err != nil {
		return "", err
	}

	policy := s.scheduling.Policy()
	coordinator := dragdrop.NewCoordinator(s.scheduling, s.scheduling, s.publisher, s.logger,
		dragdrop.WithIDGenerator(s.newID),
		dragdrop.WithBufferMinutes(policy.BufferMinutes),
		dragdrop.WithLocation(policy.Location),
	)
	id, err := coordinator.Start(context.WithoutCancel(ctx), session)
	if err != nil {
		return "", err
	}

	s.mu.Lock()
	s.gestures.DeleteExpired()
	if s.gestures.ItemCount() >= s.maxActive {
		s.mu.Unlock()
		coordinator.Cancel()
		serviceLogger(ctx, s.logger, "GestureService", "Start", "session_id", sessionID).Warn("gesture rejected", "error_kind", ErrorKind(ErrTooManyGestures), "limit", s.maxActive)
		return "", ErrTooManyGestures
	}
	s.gestures.SetDefault(id, &hostedGesture{coordinator: coordinator})
	s.mu.Unlock()

	serviceLogger(ctx, s.logger, "GestureService", "Start", "gesture_id", id, "session_id", sessionID).Debug("gesture started")
	return id, nil
}

// Hover moves the gesture over target. When wait is set it blocks until the
// check for target finished or ctx is done.
func (s *GestureService) Hover(ctx context.Context, gestureID string, target dragdrop.Target, wait bool) (dragdrop.Preview, error) {
	coordinator, err := s.lookup(gestureID)
	if err != nil {
		return dragdrop.Preview{}, err
	}
	if _, err := coordinator.Hover(target); err != nil {
		return dragdrop.Preview{}, err
	}
	if wait {
		if err := coordinator.Settle(ctx); err != nil {
			return dragdrop.Preview{}, err
		}
	}
	return coordinator.Preview(), nil
}

// Preview returns the render state of a gesture.
func (s *GestureService) Preview(gestureID string) (dragdrop.Preview, error) {
	coordinator, err := s.lookup(gestureID)
	if err != nil {
		return dragdrop.Preview{}, err
	}
	return coordinator.Preview(), nil
}

// Drop ends a gesture over target; a nil target cancels it.
func (s *GestureService) Drop(ctx context.Context, gestureID string, target *dragdrop.Target) (dragdrop.DropResult, error) {
	coordinator, err := s.detach(gestureID)
	if err != nil {
		return dragdrop.DropResult{}, err
	}
	return coordinator.Drop(ctx, target)
}

// Cancel abandons a gesture without side effects.
func (s *GestureService) Cancel(gestureID string) error {
	coordinator, err := s.detach(gestureID)
	if err != nil {
		return err
	}
	coordinator.Cancel()
	return nil
}

// Active returns the number of open gestures. Expired gestures are
// cancelled before counting.
func (s *GestureService) Active() int {
	s.gestures.DeleteExpired()
	return s.gestures.ItemCount()
}

// lookup returns the coordinator of an open gesture and restarts its idle timer.
func (s *GestureService) lookup(gestureID string) (*dragdrop.Coordinator, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	value, ok := s.gestures.Get(gestureID)
	if !ok || value.(*hostedGesture).evicted.Load() {
		return nil, &NotFoundError{Kind: "gesture", ID: gestureID}
	}
	hosted := value.(*hostedGesture)
	s.gestures.SetDefault(gestureID, hosted)
	return hosted.coordinator, nil
}

func (s *GestureService) detach(gestureID string) (*dragdrop.Coordinator, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	value, ok := s.gestures.Get(gestureID)
	if !ok || value.(*hostedGesture).evicted.Load() {
		return nil, &NotFoundError{Kind: "gesture", ID: gestureID}
	}
	hosted := value.(*hostedGesture)
	hosted.detached.Store(true)
	s.gestures.Delete(gestureID)
	return hosted.coordinator, nil
}
