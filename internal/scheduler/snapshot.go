package scheduler

import "time"

// TaskInfo describes one task at snapshot time.
type TaskInfo struct {
	Handle       Handle
	Name         string
	Period       time.Duration
	NextEligible time.Duration
	Dispatches   uint64
	Panics       uint64
	LastFiredAt  time.Duration // meaningful only when Dispatches > 0
	MaxLateness  time.Duration // worst gap between due time and actual run, after the first run

	// Pending is set when the task was due at the last tick but did not run.
	// Overdue is how long it has been waiting as of that tick.
	Pending bool
	Overdue time.Duration
}

// Snapshot is the scheduler-wide view returned by Scheduler.Snapshot.
type Snapshot struct {
	State      State
	LastTick   time.Duration
	Ticks      uint64 // running ticks only
	IdleTicks  uint64 // running ticks with nothing due
	Dispatches uint64
	Tasks      []TaskInfo // dispatch order
}

// Snapshot returns a point-in-time copy of the scheduler's bookkeeping.
// Intended for the HUD, logs and session summaries.
func (s *Scheduler[D]) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap := Snapshot{
		State:      s.state,
		LastTick:   s.lastTick,
		Ticks:      s.ticks,
		IdleTicks:  s.idleTicks,
		Dispatches: s.dispatches,
		Tasks:      make([]TaskInfo, 0, len(s.order)),
	}
	for _, h := range s.order {
		e := s.entries[h]
		ti := TaskInfo{
			Handle:       h,
			Name:         e.name,
			Period:       e.period,
			NextEligible: e.nextEligible,
			Dispatches:   e.dispatches,
			Panics:       e.panics,
			LastFiredAt:  e.lastFiredAt,
			MaxLateness:  e.maxLateness,
		}
		ranAtLastTick := e.dispatches > 0 && e.lastFiredAt == s.lastTick
		if s.ticks > 0 && s.lastTick >= e.nextEligible && !ranAtLastTick {
			ti.Pending = true
			ti.Overdue = s.lastTick - e.nextEligible
		}
		snap.Tasks = append(snap.Tasks, ti)
	}
	return snap
}
