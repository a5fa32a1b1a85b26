package notify

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
)

const (
	defaultWorkers   = 2
	defaultQueueSize = 64
)

// Dispatcher fans events out to registered handlers on a pool of workers.
// When the queue is full new events are dropped and logged.
type Dispatcher struct {
	size     int
	jobs     chan Event
	logger   *slog.Logger
	now      func() time.Time
	mu       sync.RWMutex
	handlers []Handler
	wg       sync.WaitGroup
	start    sync.Once
	stop     sync.Once
	done     chan struct{}
}

// NewDispatcher creates a dispatcher with the given pool and queue size.
func NewDispatcher(workers, queueSize int, logger *slog.Logger) *Dispatcher {
	if workers <= 0 {
		workers = defaultWorkers
	}
	if queueSize <= 0 {
		queueSize = defaultQueueSize
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Dispatcher{
		size:   workers,
		jobs:   make(chan Event, queueSize),
		logger: logger.With("component", "notify"),
		now:    time.Now,
		done:   make(chan struct{}),
	}
}

// Subscribe registers a handler for every subsequent event.
func (d *Dispatcher) Subscribe(h Handler) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.handlers = append(d.handlers, h)
}

// Start launches the worker goroutines. Workers exit when ctx is done or Close is called.
func (d *Dispatcher) Start(ctx context.Context) {
	d.start.Do(func() {
		for i := 0; i < d.size; i++ {
			d.wg.Add(1)
			go d.worker(ctx, i)
		}
	})
}

// Close stops accepting work, drains queued events and waits for the workers.
func (d *Dispatcher) Close() {
	d.stop.Do(func() { close(d.done) })
	d.wg.Wait()
}

// Publish queues the event. It never blocks.
func (d *Dispatcher) Publish(ctx context.Context, event Event) {
	select {
	case <-d.done:
		d.logger.WarnContext(ctx, "dispatcher closed, dropping event", "kind", event.Kind, "session_id", event.SessionID)
		return
	default:
	}

	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.OccurredAt.IsZero() {
		event.OccurredAt = d.now()
	}

	select {
	case d.jobs <- event:
	default:
		d.logger.WarnContext(ctx, "notification queue full, dropping event", "kind", event.Kind, "session_id", event.SessionID)
	}
}

func (d *Dispatcher) worker(ctx context.Context, id int) {
	defer d.wg.Done()
	logger := d.logger.With("worker", id)
	logger.Debug("worker started")
	for {
		select {
		case event := <-d.jobs:
			d.deliver(ctx, logger, event)
		case <-d.done:
			for {
				select {
				case event := <-d.jobs:
					d.deliver(ctx, logger, event)
				default:
					logger.Debug("worker stopped")
					return
				}
			}
		case <-ctx.Done():
			logger.Debug("worker shutting down")
			return
		}
	}
}

func (d *Dispatcher) deliver(ctx context.Context, logger *slog.Logger, event Event) {
	d.mu.RLock()
	handlers := make([]Handler, len(d.handlers))
	copy(handlers, d.handlers)
	d.mu.RUnlock()

	for _, h := range handlers {
		if err := h.Handle(ctx, event); err != nil {
			logger.Error("notification handler failed", "kind", event.Kind, "event_id", event.ID, "error", err)
		}
	}
}

// LogHandler returns a handler that writes each event to logger.
func LogHandler(logger *slog.Logger) Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return HandlerFunc(func(ctx context.Context, event Event) error {
		attrs := []any{
			"event_id", event.ID,
			"kind", event.Kind,
			"session_id", event.SessionID,
			"conflicts", len(event.Conflicts),
			"alternatives", len(event.Alternatives),
		}
		if event.GestureID != "" {
			attrs = append(attrs, "gesture_id", event.GestureID)
		}
		if event.Error != "" {
			attrs = append(attrs, "error", event.Error)
		}
		logger.InfoContext(ctx, "scheduling event", attrs...)
		return nil
	})
}
