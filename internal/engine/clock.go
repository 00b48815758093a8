package engine

import "sync/atomic"

// SeqSource hands out strictly increasing sequence numbers.
// Implemented by Clock and testutil.DeterministicClock.
type SeqSource interface {
	Next() int64
}

// Clock is the monotonic logical clock that orders the operation log.
// Safe for concurrent use.
type Clock struct {
	seq atomic.Int64
}

// NewClock creates a clock at 0. The first Next returns 1.
func NewClock() *Clock {
	return &Clock{}
}

// NewClockAt creates a clock positioned at start, so a reopened ledger
// continues after the highest seq already in its log.
func NewClockAt(start int64) *Clock {
	c := &Clock{}
	c.seq.Store(start)
	return c
}

// Next increments the clock and returns the new value.
func (c *Clock) Next() int64 {
	return c.seq.Add(1)
}

// Current returns the last value handed out.
func (c *Clock) Current() int64 {
	return c.seq.Load()
}
