// Package clocktest provides a deterministic dhtnode.Clock for tests.
package clocktest

import "time"

// Epoch is the start time of every new Clock.
var Epoch = time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)

// Clock is a manual clock. Sleep advances the clock instead of blocking, so
// bounded wait loops run instantly and their total duration can be asserted.
type Clock struct {
	now    time.Time
	slept  time.Duration
	sleeps int
	// OnSleep, if set, is called after every Sleep with the new time.
	OnSleep func(now time.Time)
}

// New returns a Clock set to Epoch.
func New() *Clock { return &Clock{now: Epoch} }

func (c *Clock) Now() time.Time { return c.now }

func (c *Clock) Sleep(d time.Duration) {
	if d < 0 {
		d = 0
	}
	c.now = c.now.Add(d)
	c.slept += d
	c.sleeps++
	if c.OnSleep != nil {
		c.OnSleep(c.now)
	}
}

// Advance moves the clock forward without counting as a sleep.
func (c *Clock) Advance(d time.Duration) { c.now = c.now.Add(d) }

// Slept returns the accumulated duration of all Sleep calls.
func (c *Clock) Slept() time.Duration { return c.slept }

// Sleeps returns the number of Sleep calls.
func (c *Clock) Sleeps() int { return c.sleeps }

// Elapsed returns the time passed since Epoch.
func (c *Clock) Elapsed() time.Duration { return c.now.Sub(Epoch) }
