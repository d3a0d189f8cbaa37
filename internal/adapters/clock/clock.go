package clock

import (
	"sync"
	"time"

	"github.com/trebuchet-org/govopt/internal/usecase"
)

// ManualClock only moves when told to. Scenarios and tests drive it.
type ManualClock struct {
	mu  sync.RWMutex
	now time.Time
}

// NewManualClock creates a ManualClock at the Unix epoch
func NewManualClock() *ManualClock {
	return &ManualClock{now: time.Unix(0, 0).UTC()}
}

// Now returns the clock's current time
func (c *ManualClock) Now() time.Time {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.now
}

// Set moves the clock to t; it never moves backwards
func (c *ManualClock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if t.After(c.now) {
		c.now = t.UTC()
	}
}

// Advance moves the clock forward by d and returns the new time
func (c *ManualClock) Advance(d time.Duration) time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	if d > 0 {
		c.now = c.now.Add(d)
	}
	return c.now
}

var (
	_ usecase.Clock           = (*ManualClock)(nil)
	_ usecase.ClockController = (*ManualClock)(nil)
)
