package host

import (
	"sync"
	"time"
)

// Clock supplies the scheduler's time value: game time elapsed since start.
type Clock interface {
	Elapsed() time.Duration
}

// Pauser is implemented by clocks whose game time can be frozen.
type Pauser interface {
	Pause()
	Resume()
}

// MonotonicClock measures real elapsed time minus time spent paused.
type MonotonicClock struct {
	mu sync.Mutex

	now         func() time.Time
	start       time.Time
	paused      bool
	pausedAt    time.Time
	pausedTotal time.Duration
}

// NewMonotonicClock starts a clock at zero. time.Now carries a monotonic
// reading, so wall-clock adjustments do not move game time.
func NewMonotonicClock() *MonotonicClock {
	return newMonotonicClock(time.Now)
}

func newMonotonicClock(now func() time.Time) *MonotonicClock {
	return &MonotonicClock{now: now, start: now()}
}

func (c *MonotonicClock) Elapsed() time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	ref := c.now()
	if c.paused {
		ref = c.pausedAt
	}
	return ref.Sub(c.start) - c.pausedTotal
}

// Pause freezes game time. Pausing twice is a no-op.
func (c *MonotonicClock) Pause() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.paused {
		return
	}
	c.paused = true
	c.pausedAt = c.now()
}

// Resume continues game time from where Pause froze it.
func (c *MonotonicClock) Resume() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.paused {
		return
	}
	c.pausedTotal += c.now().Sub(c.pausedAt)
	c.paused = false
	c.pausedAt = time.Time{}
}

func (c *MonotonicClock) IsPaused() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.paused
}

// ManualClock is a controllable clock for tests and replays.
type ManualClock struct {
	mu      sync.RWMutex
	elapsed time.Duration
}

func NewManualClock(start time.Duration) *ManualClock {
	return &ManualClock{elapsed: start}
}

func (m *ManualClock) Elapsed() time.Duration {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.elapsed
}

func (m *ManualClock) Set(d time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.elapsed = d
}

func (m *ManualClock) Advance(d time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.elapsed += d
}
