package analytics

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/BhargavRaval15/url-shortner/internal/model"
	"github.com/BhargavRaval15/url-shortner/internal/observability"
	"golang.org/x/sync/errgroup"
)

// Sink persists or forwards one enriched click event.
type Sink interface {
	Store(ctx context.Context, event *model.ClickEvent) error
}

// SinkFunc adapts a function to Sink
type SinkFunc func(ctx context.Context, event *model.ClickEvent) error

func (f SinkFunc) Store(ctx context.Context, event *model.ClickEvent) error {
	return f(ctx, event)
}

type Options struct {
	BufferSize   int
	Workers      int
	WriteTimeout time.Duration
}

// Recorder appends click events off the request path. Record never
// blocks: when the buffer is full the event is dropped and counted.
type Recorder struct {
	sink    Sink
	opts    Options
	logger  *slog.Logger
	metrics *observability.Metrics

	events chan model.ClickEvent
	group  errgroup.Group

	mu      sync.RWMutex
	started bool
	closed  bool
}

func NewRecorder(sink Sink, opts Options, logger *slog.Logger, metrics *observability.Metrics) *Recorder {
	if opts.BufferSize < 1 {
		opts.BufferSize = 1
	}
	if opts.Workers < 1 {
		opts.Workers = 1
	}
	if opts.WriteTimeout <= 0 {
		opts.WriteTimeout = 5 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Recorder{
		sink:    sink,
		opts:    opts,
		logger:  logger,
		metrics: metrics,
		events:  make(chan model.ClickEvent, opts.BufferSize),
	}
}

// Start launches the workers. Calling it more than once has no effect.
func (r *Recorder) Start() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.started || r.closed {
		return
	}
	r.started = true

	r.logger.Info("click recorder starting", "workers", r.opts.Workers, "buffer", r.opts.BufferSize)
	for i := 0; i < r.opts.Workers; i++ {
		r.group.Go(func() error {
			for event := range r.events {
				r.write(event)
			}
			return nil
		})
	}
}

// Record queues event and reports whether it was accepted
func (r *Recorder) Record(event model.ClickEvent) bool {
	ctx := context.Background()

	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.closed {
		r.metrics.ClickDropped(ctx)
		return false
	}

	select {
	case r.events <- event:
		r.metrics.ClickQueued(ctx)
		return true
	default:
		r.logger.Warn("click buffer full, dropping event", "link_id", event.LinkID)
		r.metrics.ClickDropped(ctx)
		return false
	}
}

// Stop refuses new events, drains the buffer and waits for the workers.
func (r *Recorder) Stop() error {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return nil
	}
	r.closed = true
	close(r.events)
	started := r.started
	r.mu.Unlock()

	if !started {
		for event := range r.events {
			r.write(event)
		}
		return nil
	}
	err := r.group.Wait()
	r.logger.Info("click recorder stopped")
	return err
}

func (r *Recorder) write(event model.ClickEvent) {
	Enrich(&event)

	ctx, cancel := context.WithTimeout(context.Background(), r.opts.WriteTimeout)
	defer cancel()

	if err := r.sink.Store(ctx, &event); err != nil {
		r.logger.Error("failed to record click event", "link_id", event.LinkID, "error", err)
		r.metrics.ClickFailed(ctx)
	}
}
