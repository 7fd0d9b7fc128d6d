// Package queue implements the pool's work-item queue collaborator.
//
// It wraps github.com/eapache/queue's ring buffer with the capacity
// bookkeeping spec.md §6 requires of the queue collaborator: a bounded or
// unbounded mode, non-blocking and timed takes, and the "extended capacity"
// concept the pool manager grows under sustained backlog (§4.5 step 5)
// instead of spawning a worker that may be blocked by the same stall that
// caused the backlog.
package queue

import (
	"context"
	"sync"
	"time"

	eapacheq "github.com/eapache/queue"
)

// Queue is a generic FIFO of work items. A capacity <= 0 means unbounded;
// extendCapacity has no effect on an unbounded queue.
type Queue[T any] struct {
	mu   sync.Mutex
	cond *sync.Cond
	ring *eapacheq.Queue

	baseCapacity     int
	extendedCapacity int
	closed           bool
}

// New creates a Queue. capacity <= 0 means unbounded.
func New[T any](capacity int) *Queue[T] {
	q := &Queue[T]{
		ring:             eapacheq.New(),
		baseCapacity:     capacity,
		extendedCapacity: capacity,
	}
	q.cond = sync.NewCond(&q.mu)
	return q
}

// Bounded reports whether the queue enforces a capacity limit.
func (q *Queue[T]) Bounded() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.baseCapacity > 0
}

// Capacity returns the queue's current effective capacity (base +
// extensions); 0 for an unbounded queue.
func (q *Queue[T]) Capacity() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.baseCapacity <= 0 {
		return 0
	}
	return q.extendedCapacity
}

// BaseCapacity returns the capacity the queue was constructed with.
func (q *Queue[T]) BaseCapacity() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.baseCapacity
}

// ExtendedCapacity returns the capacity after any extensions applied by
// ExtendCapacity.
func (q *Queue[T]) ExtendedCapacity() int {
	return q.Capacity()
}

// Size returns the number of items currently queued.
func (q *Queue[T]) Size() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.ring.Length()
}

// TryAdd appends item without blocking. It returns false if the queue is
// bounded and at (extended) capacity, or if the queue is closed.
func (q *Queue[T]) TryAdd(item T) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return false
	}
	if q.baseCapacity > 0 && q.ring.Length() >= q.extendedCapacity {
		return false
	}
	q.ring.Add(item)
	q.cond.Signal()
	return true
}

// Add appends item, blocking while a bounded queue is at capacity. It
// returns false if ctx is cancelled first, or the queue is closed.
func (q *Queue[T]) Add(ctx context.Context, item T) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	for !q.closed && q.baseCapacity > 0 && q.ring.Length() >= q.extendedCapacity {
		if !q.waitWithContext(ctx) {
			return false
		}
	}
	if q.closed {
		return false
	}
	q.ring.Add(item)
	q.cond.Signal()
	return true
}

// TryTake attempts a non-blocking take, then (if timeout != 0) waits up to
// timeout for an item to arrive or ctx to be cancelled. A timeout < 0 means
// wait indefinitely, subject only to ctx and Close. It returns the item and
// true on success.
func (q *Queue[T]) TryTake(ctx context.Context, timeout time.Duration) (T, bool) {
	var zero T

	q.mu.Lock()
	if v, ok := q.popLocked(); ok {
		q.mu.Unlock()
		return v, true
	}
	if timeout == 0 {
		q.mu.Unlock()
		return zero, false
	}
	q.mu.Unlock()

	deadline := make(chan struct{})
	var timer *time.Timer
	if timeout > 0 {
		timer = time.AfterFunc(timeout, func() { close(deadline) })
		defer timer.Stop()
	}

	done := make(chan struct{})
	go func() {
		select {
		case <-ctx.Done():
		case <-deadline:
		case <-done:
		}
		q.mu.Lock()
		q.cond.Broadcast()
		q.mu.Unlock()
	}()
	defer close(done)

	q.mu.Lock()
	defer q.mu.Unlock()
	for {
		if v, ok := q.popLocked(); ok {
			return v, true
		}
		if q.closed {
			return zero, false
		}
		select {
		case <-ctx.Done():
			return zero, false
		case <-deadline:
			return zero, false
		default:
		}
		q.cond.Wait()
	}
}

func (q *Queue[T]) popLocked() (T, bool) {
	var zero T
	if q.ring.Length() == 0 {
		return zero, false
	}
	v := q.ring.Peek()
	q.ring.Remove()
	return v.(T), true
}

// ExtendCapacity grows a bounded queue's extended capacity to n, never
// shrinking it and never affecting an unbounded queue.
func (q *Queue[T]) ExtendCapacity(n int) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.baseCapacity <= 0 {
		return
	}
	if n > q.extendedCapacity {
		q.extendedCapacity = n
		q.cond.Broadcast()
	}
}

// Close marks the queue closed, unblocking any waiters in Add or TryTake.
func (q *Queue[T]) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return
	}
	q.closed = true
	q.cond.Broadcast()
}

// Drain removes and returns every remaining item, in FIFO order.
func (q *Queue[T]) Drain() []T {
	q.mu.Lock()
	defer q.mu.Unlock()
	items := make([]T, 0, q.ring.Length())
	for q.ring.Length() > 0 {
		v := q.ring.Peek()
		q.ring.Remove()
		items = append(items, v.(T))
	}
	return items
}

// waitWithContext waits on q.cond but also observes ctx cancellation. It
// must be called with q.mu held and returns false (with q.mu re-acquired)
// if ctx was cancelled.
func (q *Queue[T]) waitWithContext(ctx context.Context) bool {
	if ctx.Err() != nil {
		return false
	}
	done := make(chan struct{})
	stop := context.AfterFunc(ctx, func() {
		q.mu.Lock()
		q.cond.Broadcast()
		q.mu.Unlock()
		close(done)
	})
	defer stop()
	q.cond.Wait()
	select {
	case <-done:
		return ctx.Err() == nil
	default:
	}
	return ctx.Err() == nil
}
