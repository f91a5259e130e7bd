package scheduler

import (
	"fmt"
	"runtime/debug"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"framesched/internal/eventbus"
	logx "framesched/pkg/logx"
)

// Scheduler dispatches at most one due task per Tick. D is the driver context
// type handed through to tasks unmodified.
type Scheduler[D any] struct {
	tickMu sync.Mutex // held for a whole Tick
	mu     sync.Mutex // guards everything below

	log    logx.Logger
	reject logx.Logger // sampled; misuse after Start can repeat every frame
	bus    eventbus.Bus

	state   State
	order   []Handle
	entries map[Handle]*entry[D]

	ticks      uint64
	idleTicks  uint64
	dispatches uint64
	lastTick   time.Duration
}

// New creates a scheduler in the accepting state. bus may be nil.
func New[D any](log logx.Logger, bus eventbus.Bus) *Scheduler[D] {
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Scheduler[D]{
		log:     log,
		reject:  log.Sampled(rate.NewLimiter(rate.Every(time.Second), 5)),
		bus:     bus,
		state:   StateAccepting,
		entries: map[Handle]*entry[D]{},
	}
}

// Register adds a task at the end of the dispatch sequence. The task is due on
// the first running tick.
//
// Registration is only open before the first Start; afterwards the zero
// Handle and ErrRegistrationClosed are returned and nothing changes.
func (s *Scheduler[D]) Register(period time.Duration, task Task[D], opts ...TaskOption) (Handle, error) {
	if task == nil {
		return Handle{}, ErrNilTask
	}
	if period < 0 {
		return Handle{}, fmt.Errorf("%w: got %s", ErrInvalidPeriod, period)
	}
	var o taskOptions
	for _, opt := range opts {
		if opt != nil {
			opt(&o)
		}
	}

	s.mu.Lock()
	if s.state != StateAccepting {
		st := s.state
		s.mu.Unlock()
		s.reject.Warn("task registration rejected", logx.String("state", st.String()), logx.String("task", o.name))
		return Handle{}, fmt.Errorf("%w: scheduler is %s", ErrRegistrationClosed, st)
	}

	h := newHandle()
	name := strings.TrimSpace(o.name)
	if name == "" {
		name = h.String()
	}
	s.entries[h] = &entry[D]{handle: h, name: name, period: period, task: task}
	s.order = append(s.order, h)
	n := len(s.order)
	s.mu.Unlock()

	s.log.Debug("task registered",
		logx.String("task", name),
		logx.String("handle", h.String()),
		logx.Duration("period", period),
		logx.Int("priority", n-1))
	if period == 0 {
		s.log.Warn("task has zero period; it is due on every tick and starves later tasks", logx.String("task", name))
	}
	return h, nil
}

// Remove deletes a task from the registry. Like Register it only works before
// the first Start.
func (s *Scheduler[D]) Remove(h Handle) error {
	s.mu.Lock()
	if s.state != StateAccepting {
		st := s.state
		s.mu.Unlock()
		s.reject.Warn("task removal rejected", logx.String("state", st.String()), logx.String("handle", h.String()))
		return fmt.Errorf("%w: scheduler is %s", ErrRegistrationClosed, st)
	}
	e, ok := s.entries[h]
	if !ok {
		s.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrUnknownHandle, h)
	}
	delete(s.entries, h)
	for i, cur := range s.order {
		if cur == h {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
	s.mu.Unlock()

	s.log.Debug("task removed", logx.String("task", e.name), logx.String("handle", h.String()))
	return nil
}

// Start switches to running. It reports whether the state changed; calling it
// while already running is a no-op.
func (s *Scheduler[D]) Start() bool {
	s.mu.Lock()
	if s.state == StateRunning {
		s.mu.Unlock()
		return false
	}
	from := s.state
	s.state = StateRunning
	n := len(s.order)
	s.mu.Unlock()

	s.log.Info("scheduler started", logx.String("from", from.String()), logx.Int("tasks", n))
	s.publish(eventbus.Event{Type: eventbus.TypeSchedulerStarted, Data: n})
	return true
}

// Stop pauses dispatch. The registry and every task's timing and last result
// are kept, and registration stays closed. It reports whether the state changed.
func (s *Scheduler[D]) Stop() bool {
	s.mu.Lock()
	if s.state != StateRunning {
		s.mu.Unlock()
		return false
	}
	s.state = StateStopped
	dispatches := s.dispatches
	s.mu.Unlock()

	s.log.Info("scheduler stopped", logx.Uint64("dispatches", dispatches))
	s.publish(eventbus.Event{Type: eventbus.TypeSchedulerStopped, Data: dispatches})
	return true
}

// Tick runs the first due task in dispatch order, if any. It is a no-op unless
// the scheduler is running. now is expected to be non-decreasing; it is not
// validated.
//
// The task runs without the registry lock, so it may read the scheduler or
// Stop it. A Tick that overlaps another one, including a nested call from a
// task, is dropped and logged.
func (s *Scheduler[D]) Tick(now time.Duration, driver D) {
	if !s.tickMu.TryLock() {
		s.reject.Warn("overlapping tick dropped", logx.Duration("now", now))
		return
	}
	defer s.tickMu.Unlock()

	s.mu.Lock()
	if s.state != StateRunning {
		s.mu.Unlock()
		return
	}
	s.ticks++
	s.lastTick = now

	var due *entry[D]
	for _, h := range s.order {
		if e := s.entries[h]; now >= e.nextEligible {
			due = e
			break
		}
	}
	if due == nil {
		s.idleTicks++
		s.mu.Unlock()
		return
	}
	if due.dispatches > 0 {
		if late := now - due.nextEligible; late > due.maxLateness {
			due.maxLateness = late
		}
	}
	prev := due.lastResult
	s.mu.Unlock()

	// Entries are never removed once running, so due stays valid unlocked.
	result, pan := invoke(due.task, now, driver, prev)

	s.mu.Lock()
	if pan == nil {
		due.lastResult = result
	} else {
		due.panics++
	}
	// Re-base from the actual fire time, not the previous deadline.
	due.nextEligible = now + due.period
	due.lastFiredAt = now
	due.dispatches++
	s.dispatches++
	s.mu.Unlock()

	if pan != nil {
		s.log.Error("task panicked",
			logx.String("task", due.name),
			logx.Duration("now", now),
			logx.Any("panic", pan.value),
			logx.Stack(pan.stack))
		s.publish(eventbus.Event{
			Type: eventbus.TypeTaskPanic,
			Data: eventbus.TaskPanic{Task: due.name, At: now, Panic: fmt.Sprint(pan.value)},
		})
	}
}

type recovered struct {
	value any
	stack string
}

// invoke runs the task, converting a panic into a recovered value. A failed
// run keeps the previous result.
func invoke[D any](task Task[D], now time.Duration, driver D, prev any) (result any, pan *recovered) {
	defer func() {
		if r := recover(); r != nil {
			pan = &recovered{value: r, stack: string(debug.Stack())}
		}
	}()
	return task.Invoke(now, driver, prev), nil
}

func (s *Scheduler[D]) publish(e eventbus.Event) {
	if s.bus != nil {
		s.bus.Publish(e)
	}
}

// State returns the lifecycle state.
func (s *Scheduler[D]) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Len returns the number of registered tasks.
func (s *Scheduler[D]) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.order)
}

// Handles returns a copy of the dispatch sequence, highest priority first.
func (s *Scheduler[D]) Handles() []Handle {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Handle(nil), s.order...)
}
