// Package testutil holds helpers shared by tests.
package testutil

import (
	"sync"
	"time"
)

// StepClock is a deterministic wall clock for tests. Every call to Now
// advances it by Step, so timestamps are distinct and ordered.
//
// Safe for concurrent use.
type StepClock struct {
	mu   sync.Mutex
	at   time.Time
	Step time.Duration
}

// NewStepClock returns a clock whose first reading is start+step.
func NewStepClock(start time.Time, step time.Duration) *StepClock {
	return &StepClock{at: start, Step: step}
}

// Now advances the clock and returns the new time.
func (c *StepClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.at = c.at.Add(c.Step)
	return c.at
}

// Current returns the last reading without advancing.
func (c *StepClock) Current() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.at
}

// Reset moves the clock back to start.
func (c *StepClock) Reset(start time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.at = start
}
