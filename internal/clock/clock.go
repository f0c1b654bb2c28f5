package clock

import "time"

// Clock provides an abstraction for time operations to enable deterministic testing.
type Clock interface {
	// Now returns the current time.
	Now() time.Time

	// Sleep blocks for the given duration.
	Sleep(d time.Duration)
}

// RealClock implements Clock using the system time.
type RealClock struct{}

// Now returns the current system time.
func (c *RealClock) Now() time.Time {
	return time.Now()
}

// Sleep sleeps for the given duration.
func (c *RealClock) Sleep(d time.Duration) {
	time.Sleep(d)
}

// FakeClock implements Clock with a fixed time for testing.
// Sleep advances the fixed time instead of blocking and records each call.
type FakeClock struct {
	current time.Time
	slept   []time.Duration
}

// NewFakeClock creates a new FakeClock with the given time.
func NewFakeClock(t time.Time) *FakeClock {
	return &FakeClock{current: t}
}

// Now returns the fixed time.
func (c *FakeClock) Now() time.Time {
	return c.current
}

// Sleep advances the fixed time by d without blocking.
func (c *FakeClock) Sleep(d time.Duration) {
	c.current = c.current.Add(d)
	c.slept = append(c.slept, d)
}

// Slept returns the durations passed to Sleep, in order.
func (c *FakeClock) Slept() []time.Duration {
	return c.slept
}

// Set updates the fixed time.
func (c *FakeClock) Set(t time.Time) {
	c.current = t
}

// Advance moves the fixed time forward by the given duration.
func (c *FakeClock) Advance(d time.Duration) {
	c.current = c.current.Add(d)
}
