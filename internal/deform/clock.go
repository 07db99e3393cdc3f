package deform

import "time"

// Clock supplies monotonic elapsed seconds since animation start.
type Clock interface {
	Elapsed() float32
}

// Stopwatch is a Clock backed by the monotonic wall clock.
type Stopwatch struct {
	start time.Time
}

// NewStopwatch starts a stopwatch now.
func NewStopwatch() *Stopwatch {
	return &Stopwatch{start: time.Now()}
}

// Elapsed returns seconds since the stopwatch started.
func (s *Stopwatch) Elapsed() float32 {
	return float32(time.Since(s.start).Seconds())
}

// ManualClock is a Clock that only moves when told to.
type ManualClock struct {
	t float32
}

// Set jumps to t.
func (c *ManualClock) Set(t float32) { c.t = t }

// Advance moves forward by dt.
func (c *ManualClock) Advance(dt float32) { c.t += dt }

// Elapsed returns the current time.
func (c *ManualClock) Elapsed() float32 { return c.t }
