package engine

import "sync/atomic"

// Clock is the logical frame clock. Every call to Engine.Frame takes the next
// sequence number, so journal rows from the same frame share a seq and rows
// from later frames always sort after them.
//
// Clock is safe for concurrent use, though the engine calls it from the
// single goroutine that runs frames.
type Clock struct {
	seq atomic.Int64
}

// NewClock creates a clock whose first frame is 1.
func NewClock() *Clock {
	return &Clock{}
}

// NewClockAt creates a clock that resumes after start, for example after
// reopening a journal that already holds frames up to start.
func NewClockAt(start int64) *Clock {
	c := &Clock{}
	c.seq.Store(start)
	return c
}

// Next advances the clock and returns the new frame number.
func (c *Clock) Next() int64 {
	return c.seq.Add(1)
}

// Current returns the last frame number handed out, 0 before the first frame.
func (c *Clock) Current() int64 {
	return c.seq.Load()
}
