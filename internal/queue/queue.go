// Package queue provides the time-keyed bounded buffer that connects the
// variable workers of a concurrent run.
package queue

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/shepherdmeng/smrf/internal/domain"
	"github.com/shepherdmeng/smrf/internal/observability"
)

// Config controls depth and staleness detection.
type Config struct {
	// MaxDepth bounds the buffered timesteps; Put blocks while the queue
	// is full. Zero or less means unbounded.
	MaxDepth int
	// Timeout fails a blocked Put or Get with domain.ErrQueueTimeout.
	// Zero waits forever.
	Timeout time.Duration
	// Clock defaults to the real clock.
	Clock clockwork.Clock
	// Metrics is optional.
	Metrics *observability.Metrics
}

// DateQueue is a bounded map from timestamp to value. Get does not remove
// entries so several consumers can read the same timestep; Clear does.
// A Put is visible to every later Get and Clear once it returns.
type DateQueue[T any] struct {
	name    string
	cfg     Config
	mu      sync.Mutex
	items   map[int64]T
	changed chan struct{} // closed and replaced on every mutation
}

// New returns an empty queue.
func New[T any](name string, cfg Config) *DateQueue[T] {
	if cfg.Clock == nil {
		cfg.Clock = clockwork.NewRealClock()
	}
	return &DateQueue[T]{
		name:    name,
		cfg:     cfg,
		items:   make(map[int64]T),
		changed: make(chan struct{}),
	}
}

// Name returns the queue's variable name.
func (q *DateQueue[T]) Name() string { return q.name }

// Put stores v at t, blocking while the queue is full. Replacing an
// existing timestep never blocks.
func (q *DateQueue[T]) Put(ctx context.Context, t time.Time, v T) error {
	key := t.UnixNano()
	w := q.newWaiter()
	defer w.stop()

	for {
		q.mu.Lock()
		_, exists := q.items[key]
		if exists || q.cfg.MaxDepth <= 0 || len(q.items) < q.cfg.MaxDepth {
			q.items[key] = v
			q.notifyLocked()
			q.mu.Unlock()
			w.observe("put")
			return nil
		}
		ch := q.changed
		q.mu.Unlock()

		if err := w.wait(ctx, ch); err != nil {
			return q.fail("put", t, err)
		}
	}
}

// Get returns the value at t, blocking until it is present.
func (q *DateQueue[T]) Get(ctx context.Context, t time.Time) (T, error) {
	key := t.UnixNano()
	w := q.newWaiter()
	defer w.stop()

	for {
		q.mu.Lock()
		v, ok := q.items[key]
		ch := q.changed
		q.mu.Unlock()
		if ok {
			w.observe("get")
			return v, nil
		}

		if err := w.wait(ctx, ch); err != nil {
			var zero T
			return zero, q.fail("get", t, err)
		}
	}
}

// Has reports whether t is buffered, without blocking.
func (q *DateQueue[T]) Has(t time.Time) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	_, ok := q.items[t.UnixNano()]
	return ok
}

// Clear removes t and wakes blocked producers.
func (q *DateQueue[T]) Clear(t time.Time) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if _, ok := q.items[t.UnixNano()]; !ok {
		return
	}
	delete(q.items, t.UnixNano())
	q.notifyLocked()
}

// Len returns the number of buffered timesteps.
func (q *DateQueue[T]) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

func (q *DateQueue[T]) notifyLocked() {
	close(q.changed)
	q.changed = make(chan struct{})
	if q.cfg.Metrics != nil {
		q.cfg.Metrics.QueueDepth.WithLabelValues(q.name).Set(float64(len(q.items)))
	}
}

func (q *DateQueue[T]) fail(op string, t time.Time, err error) error {
	return fmt.Errorf("queue %s %s %s: %w", q.name, op, t.Format(time.RFC3339), err)
}

// waiter tracks one blocking call. The timeout timer starts on the first
// wait so calls that never block leave the clock alone.
type waiter struct {
	clock   clockwork.Clock
	timeout time.Duration
	metrics *observability.Metrics
	start   time.Time
	timer   clockwork.Timer
	blocked bool
}

func (q *DateQueue[T]) newWaiter() *waiter {
	return &waiter{clock: q.cfg.Clock, timeout: q.cfg.Timeout, metrics: q.cfg.Metrics}
}

func (w *waiter) wait(ctx context.Context, changed <-chan struct{}) error {
	if !w.blocked {
		w.blocked = true
		w.start = w.clock.Now()
		if w.timeout > 0 {
			w.timer = w.clock.NewTimer(w.timeout)
		}
	}

	var expired <-chan time.Time
	if w.timer != nil {
		expired = w.timer.Chan()
	}

	select {
	case <-changed:
		return nil
	case <-expired:
		return fmt.Errorf("%w after %s", domain.ErrQueueTimeout, w.timeout)
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (w *waiter) observe(op string) {
	if w.metrics == nil || !w.blocked {
		return
	}
	w.metrics.QueueWait.WithLabelValues(op).Observe(w.clock.Since(w.start).Seconds())
}

func (w *waiter) stop() {
	if w.timer != nil {
		w.timer.Stop()
	}
}
