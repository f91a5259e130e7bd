package host

import (
	"testing"
	"time"
)

type fakeWall struct{ t time.Time }

func (f *fakeWall) now() time.Time          { return f.t }
func (f *fakeWall) advance(d time.Duration) { f.t = f.t.Add(d) }

func TestMonotonicClockPause(t *testing.T) {
	wall := &fakeWall{t: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)}
	c := newMonotonicClock(wall.now)

	wall.advance(2 * time.Second)
	if got := c.Elapsed(); got != 2*time.Second {
		t.Fatalf("Elapsed = %v, want 2s", got)
	}

	c.Pause()
	c.Pause()
	wall.advance(5 * time.Second)
	if got := c.Elapsed(); got != 2*time.Second {
		t.Fatalf("Elapsed while paused = %v, want 2s", got)
	}
	if !c.IsPaused() {
		t.Fatal("IsPaused = false")
	}

	c.Resume()
	wall.advance(time.Second)
	if got := c.Elapsed(); got != 3*time.Second {
		t.Fatalf("Elapsed after resume = %v, want 3s", got)
	}
	c.Resume()
	if got := c.Elapsed(); got != 3*time.Second {
		t.Fatalf("second Resume moved time: %v", got)
	}
}

func TestMonotonicClockAdvancesInRealTime(t *testing.T) {
	c := NewMonotonicClock()
	t1 := c.Elapsed()
	time.Sleep(5 * time.Millisecond)
	t2 := c.Elapsed()
	if t2-t1 < 5*time.Millisecond {
		t.Fatalf("expected at least 5ms to pass, got %v", t2-t1)
	}
}

func TestManualClock(t *testing.T) {
	c := NewManualClock(time.Second)
	if c.Elapsed() != time.Second {
		t.Fatalf("initial = %v", c.Elapsed())
	}
	c.Advance(500 * time.Millisecond)
	if c.Elapsed() != 1500*time.Millisecond {
		t.Fatalf("after Advance = %v", c.Elapsed())
	}
	c.Set(10 * time.Second)
	if c.Elapsed() != 10*time.Second {
		t.Fatalf("after Set = %v", c.Elapsed())
	}
}
