package engine

import (
	"context"
	"sync"
)

// Result is the reply to a submitted request.
type Result struct {
	Outcome Outcome
	Err     error
}

// pending is a queued request with its reply channel.
type pending struct {
	ctx   context.Context
	req   Request
	reply chan Result
}

// requestQueue is an unbounded FIFO of pending requests.
//
// Any goroutine may enqueue; only the Run loop dequeues. signal has a
// buffer of one so bursts of Enqueue coalesce into one wakeup.
type requestQueue struct {
	mu      sync.Mutex
	entries []pending
	closed  bool
	signal  chan struct{}
}

func newRequestQueue() *requestQueue {
	return &requestQueue{
		entries: make([]pending, 0, 64),
		signal:  make(chan struct{}, 1),
	}
}

// Enqueue adds p to the back of the queue.
// Returns false if the queue is closed.
func (q *requestQueue) Enqueue(p pending) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return false
	}

	q.entries = append(q.entries, p)

	select {
	case q.signal <- struct{}{}:
	default:
	}

	return true
}

// TryDequeue removes the front entry without blocking.
func (q *requestQueue) TryDequeue() (pending, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.entries) == 0 {
		return pending{}, false
	}

	p := q.entries[0]

	// Clear the slot so the backing array drops the reply channel.
	q.entries[0] = pending{}
	if len(q.entries) == 1 {
		q.entries = q.entries[:0]
	} else {
		q.entries = q.entries[1:]
	}

	return p, true
}

// Wait returns a channel that fires when entries may be available.
// It is closed once the queue is closed.
func (q *requestQueue) Wait() <-chan struct{} {
	return q.signal
}

// Len returns the current queue length.
func (q *requestQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.entries)
}

// Closed reports whether Close was called.
func (q *requestQueue) Closed() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.closed
}

// Close stops further enqueues and wakes the waiter.
func (q *requestQueue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return
	}

	q.closed = true
	close(q.signal)
}
