package scheduler

import (
	"strconv"
	"sync/atomic"
	"time"
)

// Task is one periodic unit of work.
//
// Invoke receives the scheduler clock value, the driver context of the current
// tick and the value this task returned last time (nil on the first run).
// Its return value is handed back on the next run.
type Task[D any] interface {
	Invoke(now time.Duration, driver D, prev any) any
}

// TaskFunc adapts a plain function to Task.
type TaskFunc[D any] func(now time.Duration, driver D, prev any) any

func (f TaskFunc[D]) Invoke(now time.Duration, driver D, prev any) any {
	return f(now, driver, prev)
}

// Handle identifies a registered task. The zero Handle means "no handle".
type Handle struct{ id uint64 }

// handleSeq is process-wide so handles never collide across schedulers.
var handleSeq atomic.Uint64

func newHandle() Handle { return Handle{id: handleSeq.Add(1)} }

func (h Handle) IsZero() bool { return h.id == 0 }

func (h Handle) String() string {
	if h.id == 0 {
		return "task-none"
	}
	return "task-" + strconv.FormatUint(h.id, 10)
}

// State is the scheduler lifecycle state.
type State int

const (
	StateAccepting State = iota
	StateRunning
	StateStopped
)

func (s State) String() string {
	switch s {
	case StateAccepting:
		return "accepting"
	case StateRunning:
		return "running"
	case StateStopped:
		return "stopped"
	default:
		return "unknown"
	}
}

// TaskOption configures a registration.
type TaskOption func(*taskOptions)

type taskOptions struct {
	name string
}

// WithName labels the task in logs, snapshots and session summaries.
func WithName(name string) TaskOption {
	return func(o *taskOptions) { o.name = name }
}

type entry[D any] struct {
	handle Handle
	name   string
	period time.Duration
	task   Task[D]

	nextEligible time.Duration
	lastResult   any

	dispatches  uint64
	panics      uint64
	lastFiredAt time.Duration
	maxLateness time.Duration
}
