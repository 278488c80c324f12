// Package audit persists security events emitted by the authenticator.
package audit

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/goliatone/go-errors"

	auth "github.com/messfeedback/go-auth"
	"github.com/messfeedback/go-auth/activitymap"
)

const (
	DefaultQueueSize    = 1024
	DefaultWriteTimeout = 5 * time.Second
)

// Writer stores normalized events. repository.SecurityEvents is the
// database backed implementation.
type Writer interface {
	Append(ctx context.Context, records ...activitymap.Normalized) error
}

// WriterFunc adapts a function to Writer.
type WriterFunc func(ctx context.Context, records ...activitymap.Normalized) error

func (f WriterFunc) Append(ctx context.Context, records ...activitymap.Normalized) error {
	return f(ctx, records...)
}

// ErrSinkClosed is returned by Record after Close.
var ErrSinkClosed = errors.New("audit sink closed", errors.CategoryInternal).
	WithTextCode("AUDIT_SINK_CLOSED")

// ErrQueueFull is returned when an event is dropped.
var ErrQueueFull = errors.New("audit queue is full", errors.CategoryInternal).
	WithTextCode("AUDIT_QUEUE_FULL")

// AsyncSink is an auth.ActivitySink that queues events and writes them
// from a background worker, so Record never waits on the database.
type AsyncSink struct {
	writer       Writer
	logger       auth.Logger
	queue        chan activitymap.Normalized
	normalize    []activitymap.Option
	writeTimeout time.Duration

	closed  atomic.Bool
	dropped atomic.Int64
	mu      sync.RWMutex
	done    chan struct{}
}

var _ auth.ActivitySink = (*AsyncSink)(nil)

type Option func(*AsyncSink)

// WithQueueSize sets the capacity of the pending event buffer.
func WithQueueSize(n int) Option {
	return func(s *AsyncSink) {
		if n > 0 {
			s.queue = make(chan activitymap.Normalized, n)
		}
	}
}

func WithLogger(l auth.Logger) Option {
	return func(s *AsyncSink) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithNormalizeOptions forwards options to activitymap.Normalize.
func WithNormalizeOptions(opts ...activitymap.Option) Option {
	return func(s *AsyncSink) {
		s.normalize = append(s.normalize, opts...)
	}
}

func WithWriteTimeout(d time.Duration) Option {
	return func(s *AsyncSink) {
		if d > 0 {
			s.writeTimeout = d
		}
	}
}

// NewAsyncSink starts the worker writing to w.
func NewAsyncSink(w Writer, opts ...Option) *AsyncSink {
	s := &AsyncSink{
		writer:       w,
		logger:       nopLogger{},
		queue:        make(chan activitymap.Normalized, DefaultQueueSize),
		writeTimeout: DefaultWriteTimeout,
		done:         make(chan struct{}),
	}

	for _, opt := range opts {
		opt(s)
	}

	go s.run()

	return s
}

// Record normalizes the event and enqueues it. A full queue drops the
// event and returns ErrQueueFull.
func (s *AsyncSink) Record(_ context.Context, event auth.ActivityEvent) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed.Load() {
		return ErrSinkClosed
	}

	record := activitymap.Normalize(event, s.normalize...)

	select {
	case s.queue <- record:
		return nil
	default:
		s.dropped.Add(1)
		s.logger.Warn("audit queue full, dropping event",
			"event_type", record.Verb,
			"identifier", record.Identifier,
		)
		return ErrQueueFull
	}
}

// Dropped returns the number of events discarded because the queue was full.
func (s *AsyncSink) Dropped() int64 {
	return s.dropped.Load()
}

// Close stops accepting events and waits for the queue to drain or for
// ctx to end.
func (s *AsyncSink) Close(ctx context.Context) error {
	s.mu.Lock()
	if !s.closed.Swap(true) {
		close(s.queue)
	}
	s.mu.Unlock()

	select {
	case <-s.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *AsyncSink) run() {
	defer close(s.done)

	for record := range s.queue {
		batch := []activitymap.Normalized{record}
	drain:
		for len(batch) < 64 {
			select {
			case next, ok := <-s.queue:
				if !ok {
					break drain
				}
				batch = append(batch, next)
			default:
				break drain
			}
		}
		s.write(batch)
	}
}

func (s *AsyncSink) write(batch []activitymap.Normalized) {
	ctx, cancel := context.WithTimeout(context.Background(), s.writeTimeout)
	defer cancel()

	if err := s.writer.Append(ctx, batch...); err != nil {
		s.logger.Error("failed to write audit events", "error", err, "count", len(batch))
	}
}

type nopLogger struct{}

func (nopLogger) Debug(string, ...any) {}
func (nopLogger) Info(string, ...any)  {}
func (nopLogger) Warn(string, ...any)  {}
func (nopLogger) Error(string, ...any) {}
