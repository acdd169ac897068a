package testutil

import (
	"sync"
	"time"
)

// DeterministicClock is a settable clock for tests.
//
// Each call to Now returns the current time and then advances it by Step,
// so records created in sequence get strictly increasing timestamps. A
// zero Step keeps time frozen.
//
// Thread-safety: All methods are safe for concurrent use via internal mutex.
type DeterministicClock struct {
	mu   sync.Mutex
	now  time.Time
	Step time.Duration
}

// Epoch is the default start time of a DeterministicClock.
var Epoch = time.Date(2024, 6, 15, 12, 0, 0, 0, time.UTC)

// NewDeterministicClock creates a clock starting at Epoch that advances
// one millisecond per call.
func NewDeterministicClock() *DeterministicClock {
	return &DeterministicClock{now: Epoch, Step: time.Millisecond}
}

// NewFrozenClock creates a clock that always returns t.
func NewFrozenClock(t time.Time) *DeterministicClock {
	return &DeterministicClock{now: t.UTC()}
}

// Now returns the current time and advances the clock by Step.
func (c *DeterministicClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := c.now
	c.now = c.now.Add(c.Step)
	return t
}

// Current returns the current time without advancing.
func (c *DeterministicClock) Current() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// Advance moves the clock forward by d.
func (c *DeterministicClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// Reset returns the clock to Epoch.
func (c *DeterministicClock) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = Epoch
}
