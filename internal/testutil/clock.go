// Package testutil holds deterministic stand-ins shared by package tests.
package testutil

import (
	"sync"
	"time"
)

// FixedClock is an interval.Clock that returns a settable instant.
//
// Unlike the system clock, FixedClock makes "**" aliases and alias base
// dates reproducible, so the same case builds byte-identical datasets.
//
// Thread-safety: All methods are safe for concurrent use via internal mutex.
type FixedClock struct {
	mu  sync.Mutex
	now time.Time
}

// NewFixedClock creates a clock frozen at now.
func NewFixedClock(now time.Time) *FixedClock {
	return &FixedClock{now: now}
}

// MustParse creates a clock frozen at a "YYYY-MM-DD HH:MM:SS" instant (UTC).
// Panics on malformed input: only used with literals in tests.
func MustParse(s string) *FixedClock {
	t, err := time.Parse(time.DateTime, s)
	if err != nil {
		panic("testutil: " + err.Error())
	}
	return NewFixedClock(t)
}

// Now returns the frozen instant.
func (c *FixedClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// Set moves the clock to t.
func (c *FixedClock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = t
}

// Advance moves the clock forward by d.
func (c *FixedClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}
