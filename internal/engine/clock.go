package engine

import "sync/atomic"

// Clock is the logical clock that numbers committed updates.
//
// Every log entry is stamped with the next value, so seq order is commit
// order and replay never consults wall time. Only the writer advances the
// clock; readers may call Current at any time.
type Clock struct {
	seq atomic.Int64
}

// NewClock creates a new clock starting at 0.
func NewClock() *Clock {
	return &Clock{}
}

// NewClockAt creates a clock positioned at start. Used after recovery to
// continue numbering after the last committed entry.
func NewClockAt(start int64) *Clock {
	c := &Clock{}
	c.seq.Store(start)
	return c
}

// Next advances the clock and returns the new value.
func (c *Clock) Next() int64 {
	return c.seq.Add(1)
}

// Peek returns the value Next would return, without advancing.
func (c *Clock) Peek() int64 {
	return c.seq.Load() + 1
}

// Current returns the last value handed out.
func (c *Clock) Current() int64 {
	return c.seq.Load()
}

// Reset repositions the clock. Used when the log is wiped.
func (c *Clock) Reset(to int64) {
	c.seq.Store(to)
}
