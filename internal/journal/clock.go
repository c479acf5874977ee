package journal

import "sync/atomic"

// Clock is a monotonic logical clock for entry ordering.
//
// Entries are stamped with seq numbers instead of wall-clock time, so
// ordering is stable across machines and identical on replay.
//
// Thread-safety: Clock is safe for concurrent use (atomic operations).
type Clock struct {
	seq atomic.Int64
}

// NewClock creates a clock whose first Next returns 1.
func NewClock() *Clock {
	return &Clock{}
}

// NewClockAt creates a clock whose first Next returns start+1.
// Open uses it to resume after the last stored entry.
func NewClockAt(start int64) *Clock {
	c := &Clock{}
	c.seq.Store(start)
	return c
}

// Next returns the next sequence number.
func (c *Clock) Next() int64 {
	return c.seq.Add(1)
}

// Current returns the last issued sequence number.
func (c *Clock) Current() int64 {
	return c.seq.Load()
}
