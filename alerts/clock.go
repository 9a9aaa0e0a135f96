package alerts

import (
	"sync"
	"time"
)

// Clock is source of timestamps for the engine
type Clock interface {
	Now() time.Time
}

// SystemClock uses time.Now. Values carry monotonic reading, so wall clock jumps
// do not affect window and cooldown arithmetic.
type SystemClock struct{}

// Now returns current time
func (SystemClock) Now() time.Time {
	return time.Now()
}

// ManualClock is a clock moved by hand. Useful for replaying recorded streams and for tests.
type ManualClock struct {
	mu  sync.Mutex
	now time.Time
}

// NewManualClock creates clock stopped at start
func NewManualClock(start time.Time) *ManualClock {
	return &ManualClock{now: start}
}

// Now returns current time of the clock
func (clock *ManualClock) Now() time.Time {
	clock.mu.Lock()
	defer clock.mu.Unlock()
	return clock.now
}

// Set moves clock to the given time. Moving backwards is allowed.
func (clock *ManualClock) Set(t time.Time) {
	clock.mu.Lock()
	defer clock.mu.Unlock()
	clock.now = t
}

// Advance moves clock forward by d
func (clock *ManualClock) Advance(d time.Duration) {
	clock.mu.Lock()
	defer clock.mu.Unlock()
	clock.now = clock.now.Add(d)
}
