package engine

import "sync/atomic"

// Clock hands out the logical sequence numbers stamped on dispatch events.
// Numbers start at 1, increase strictly and are never reused, so a trace
// orders by dispatch order rather than wall time. Safe for concurrent use.
type Clock struct {
	seq atomic.Int64
}

// NewClock returns a clock whose first Next is 1.
func NewClock() *Clock {
	return &Clock{}
}

// Next advances the clock and returns the new value.
func (c *Clock) Next() int64 {
	return c.seq.Add(1)
}

// Current returns the last value handed out, 0 before the first Next.
func (c *Clock) Current() int64 {
	return c.seq.Load()
}
