package scheduler

import (
	"errors"
	"testing"
	"time"

	"framesched/internal/eventbus"
	logx "framesched/pkg/logx"
)

type frame struct{ n int }

// recorder is a task that logs every invocation it sees.
type recorder struct {
	fired []time.Duration
	prevs []any
	out   func(prev any) any
}

func (r *recorder) Invoke(now time.Duration, _ frame, prev any) any {
	r.fired = append(r.fired, now)
	r.prevs = append(r.prevs, prev)
	if r.out != nil {
		return r.out(prev)
	}
	return len(r.fired)
}

func newTestScheduler() *Scheduler[frame] {
	return New[frame](logx.Nop(), nil)
}

func mustRegister(t *testing.T, s *Scheduler[frame], period time.Duration, task Task[frame], opts ...TaskOption) Handle {
	t.Helper()
	h, err := s.Register(period, task, opts...)
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	if h.IsZero() {
		t.Fatal("Register returned zero handle")
	}
	return h
}

func tickRange(s *Scheduler[frame], from, to int) {
	for i := from; i <= to; i++ {
		s.Tick(time.Duration(i), frame{n: i})
	}
}

func equalDurations(a []time.Duration, b ...time.Duration) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func TestDispatchOrderMatchesRegistrationOrder(t *testing.T) {
	s := newTestScheduler()
	var want []Handle
	for i := 0; i < 5; i++ {
		want = append(want, mustRegister(t, s, 1, &recorder{}))
	}
	got := s.Handles()
	if len(got) != len(want) {
		t.Fatalf("len = %d, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("Handles()[%d] = %s, want %s", i, got[i], want[i])
		}
	}
}

func TestRegisterAfterStartRejected(t *testing.T) {
	s := newTestScheduler()
	mustRegister(t, s, 1, &recorder{})
	s.Start()

	h, err := s.Register(1, &recorder{})
	if !errors.Is(err, ErrRegistrationClosed) {
		t.Fatalf("err = %v, want ErrRegistrationClosed", err)
	}
	if !h.IsZero() {
		t.Fatalf("handle = %s, want zero", h)
	}
	if s.Len() != 1 {
		t.Fatalf("Len = %d, want 1", s.Len())
	}
}

func TestRemoveAfterStartRejected(t *testing.T) {
	s := newTestScheduler()
	a := mustRegister(t, s, 1, &recorder{})
	b := mustRegister(t, s, 1, &recorder{})
	s.Start()

	if err := s.Remove(a); !errors.Is(err, ErrRegistrationClosed) {
		t.Fatalf("err = %v, want ErrRegistrationClosed", err)
	}
	got := s.Handles()
	if len(got) != 2 || got[0] != a || got[1] != b {
		t.Fatalf("dispatch order changed: %v", got)
	}
}

func TestRemoveBeforeStart(t *testing.T) {
	s := newTestScheduler()
	a := mustRegister(t, s, 1, &recorder{})
	b := mustRegister(t, s, 1, &recorder{})
	c := mustRegister(t, s, 1, &recorder{})

	if err := s.Remove(b); err != nil {
		t.Fatalf("Remove: %v", err)
	}
	got := s.Handles()
	if len(got) != 2 || got[0] != a || got[1] != c {
		t.Fatalf("Handles = %v, want [%s %s]", got, a, c)
	}

	if err := s.Remove(b); !errors.Is(err, ErrUnknownHandle) {
		t.Fatalf("second Remove err = %v, want ErrUnknownHandle", err)
	}
	if err := s.Remove(Handle{}); !errors.Is(err, ErrUnknownHandle) {
		t.Fatalf("zero handle err = %v, want ErrUnknownHandle", err)
	}
	if s.Len() != 2 {
		t.Fatalf("Len = %d, want 2", s.Len())
	}
}

func TestRemovedTaskNeverRuns(t *testing.T) {
	s := newTestScheduler()
	gone := &recorder{}
	h := mustRegister(t, s, 1, gone)
	if err := s.Remove(h); err != nil {
		t.Fatalf("Remove: %v", err)
	}
	s.Start()
	tickRange(s, 0, 10)
	if len(gone.fired) != 0 {
		t.Fatalf("removed task fired at %v", gone.fired)
	}
}

func TestRegisterValidation(t *testing.T) {
	s := newTestScheduler()
	if _, err := s.Register(1, nil); !errors.Is(err, ErrNilTask) {
		t.Fatalf("nil task err = %v", err)
	}
	if _, err := s.Register(-1, &recorder{}); !errors.Is(err, ErrInvalidPeriod) {
		t.Fatalf("negative period err = %v", err)
	}
	if s.Len() != 0 {
		t.Fatalf("Len = %d, want 0", s.Len())
	}
}

func TestTwoTaskCadence(t *testing.T) {
	s := newTestScheduler()
	a, b := &recorder{}, &recorder{}
	mustRegister(t, s, 10, a)
	mustRegister(t, s, 5, b)
	s.Start()

	tickRange(s, 0, 21)

	if !equalDurations(a.fired, 0, 10, 20) {
		t.Fatalf("A fired at %v, want [0 10 20]", a.fired)
	}
	if !equalDurations(b.fired, 1, 6, 11, 16, 21) {
		t.Fatalf("B fired at %v, want [1 6 11 16 21]", b.fired)
	}
}

func TestEarlierTaskWinsWhenBothDue(t *testing.T) {
	s := newTestScheduler()
	a, b := &recorder{}, &recorder{}
	mustRegister(t, s, 10, a)
	mustRegister(t, s, 9, b)
	s.Start()

	// t=0 A (next 10), t=1 B (next 10); at t=10 both are due.
	tickRange(s, 0, 11)

	if !equalDurations(a.fired, 0, 10) {
		t.Fatalf("A fired at %v, want [0 10]", a.fired)
	}
	if !equalDurations(b.fired, 1, 11) {
		t.Fatalf("B fired at %v, want [1 11]", b.fired)
	}
}

func TestAtMostOneInvocationPerTick(t *testing.T) {
	s := newTestScheduler()
	recs := make([]*recorder, 5)
	for i := range recs {
		recs[i] = &recorder{}
		mustRegister(t, s, 100, recs[i])
	}
	s.Start()

	for i := 0; i < len(recs); i++ {
		s.Tick(0, frame{})
		total := 0
		for _, r := range recs {
			total += len(r.fired)
		}
		if total != i+1 {
			t.Fatalf("after %d ticks: %d invocations", i+1, total)
		}
	}
	// Every task ran exactly once, in registration order.
	for i, r := range recs {
		if len(r.fired) != 1 {
			t.Fatalf("task %d fired %d times", i, len(r.fired))
		}
	}
}

func TestPreviousResultThreading(t *testing.T) {
	s := newTestScheduler()
	x := &recorder{out: func(prev any) any { return "v1" }}
	mustRegister(t, s, 3, x)
	s.Start()

	s.Tick(0, frame{})
	if len(x.fired) != 1 || x.prevs[0] != nil {
		t.Fatalf("first run: fired=%v prevs=%v", x.fired, x.prevs)
	}
	s.Tick(1, frame{})
	if len(x.fired) != 1 {
		t.Fatalf("task ran at t=1 before it was due")
	}
	s.Tick(3, frame{})
	if len(x.fired) != 2 || x.prevs[1] != "v1" {
		t.Fatalf("second run: fired=%v prevs=%v", x.fired, x.prevs)
	}
}

func TestResultsAreIsolatedPerTask(t *testing.T) {
	s := newTestScheduler()
	a := &recorder{out: func(prev any) any { return "a" }}
	b := &recorder{out: func(prev any) any { return "b" }}
	mustRegister(t, s, 2, a)
	mustRegister(t, s, 2, b)
	s.Start()

	tickRange(s, 0, 3)

	for _, p := range a.prevs {
		if p != nil && p != "a" {
			t.Fatalf("A observed foreign result %v", p)
		}
	}
	for _, p := range b.prevs {
		if p != nil && p != "b" {
			t.Fatalf("B observed foreign result %v", p)
		}
	}
	if len(a.prevs) != 2 || a.prevs[1] != "a" {
		t.Fatalf("A prevs = %v", a.prevs)
	}
}

func TestDriverContextPassedThrough(t *testing.T) {
	s := newTestScheduler()
	var got []frame
	mustRegister(t, s, 0, TaskFunc[frame](func(now time.Duration, f frame, prev any) any {
		got = append(got, f)
		return nil
	}))
	s.Start()
	s.Tick(0, frame{n: 7})
	s.Tick(1, frame{n: 8})
	if len(got) != 2 || got[0].n != 7 || got[1].n != 8 {
		t.Fatalf("driver contexts = %v", got)
	}
}

func TestTickBeforeStartIsNoop(t *testing.T) {
	s := newTestScheduler()
	y := &recorder{}
	mustRegister(t, s, 1, y)

	s.Tick(5, frame{})
	if len(y.fired) != 0 {
		t.Fatalf("task ran before Start: %v", y.fired)
	}
	if snap := s.Snapshot(); snap.Ticks != 0 {
		t.Fatalf("Ticks = %d, want 0", snap.Ticks)
	}
}

func TestStopAndRestartKeepsState(t *testing.T) {
	s := newTestScheduler()
	x := &recorder{}
	mustRegister(t, s, 3, x)

	s.Start()
	s.Tick(0, frame{}) // returns 1, next eligible 3

	if !s.Stop() {
		t.Fatal("Stop should report a state change")
	}
	if s.State() != StateStopped {
		t.Fatalf("State = %s", s.State())
	}
	s.Tick(100, frame{})
	if len(x.fired) != 1 {
		t.Fatalf("task ran while stopped: %v", x.fired)
	}

	if !s.Start() {
		t.Fatal("Start after Stop should report a state change")
	}
	s.Tick(101, frame{})
	if !equalDurations(x.fired, 0, 101) {
		t.Fatalf("fired = %v, want [0 101]", x.fired)
	}
	if x.prevs[1] != 1 {
		t.Fatalf("prev after restart = %v, want 1", x.prevs[1])
	}
}

func TestStopStartWithoutTicksKeepsNextEligible(t *testing.T) {
	s := newTestScheduler()
	x := &recorder{}
	mustRegister(t, s, 10, x)
	s.Start()
	s.Tick(0, frame{})
	s.Stop()
	s.Start()

	s.Tick(5, frame{})
	if len(x.fired) != 1 {
		t.Fatalf("restart reset the task's timing: fired=%v", x.fired)
	}
	s.Tick(10, frame{})
	if len(x.fired) != 2 {
		t.Fatalf("task did not fire at its original next eligible time: %v", x.fired)
	}
}

func TestRegistrationStaysClosedAfterStop(t *testing.T) {
	s := newTestScheduler()
	h := mustRegister(t, s, 1, &recorder{})
	s.Start()
	s.Stop()

	if _, err := s.Register(1, &recorder{}); !errors.Is(err, ErrRegistrationClosed) {
		t.Fatalf("Register after Stop err = %v", err)
	}
	if err := s.Remove(h); !errors.Is(err, ErrRegistrationClosed) {
		t.Fatalf("Remove after Stop err = %v", err)
	}
	if s.Len() != 1 {
		t.Fatalf("Len = %d, want 1", s.Len())
	}
}

func TestStopBeforeStartIsNoop(t *testing.T) {
	s := newTestScheduler()
	if s.Stop() {
		t.Fatal("Stop before Start should not change state")
	}
	if s.State() != StateAccepting {
		t.Fatalf("State = %s, want accepting", s.State())
	}
	mustRegister(t, s, 1, &recorder{})
}

func TestStartIsIdempotent(t *testing.T) {
	s := newTestScheduler()
	x := &recorder{}
	mustRegister(t, s, 5, x)

	if !s.Start() {
		t.Fatal("first Start should report a state change")
	}
	if s.Start() {
		t.Fatal("second Start should be a no-op")
	}
	if s.State() != StateRunning {
		t.Fatalf("State = %s", s.State())
	}
	s.Tick(0, frame{})
	s.Tick(1, frame{})
	if !equalDurations(x.fired, 0) {
		t.Fatalf("fired = %v, want [0]", x.fired)
	}
}

// Re-basing uses the actual fire time, so a late tick shifts the cadence.
func TestLateTickShiftsCadence(t *testing.T) {
	s := newTestScheduler()
	x := &recorder{}
	mustRegister(t, s, 10, x)
	s.Start()

	for _, now := range []time.Duration{0, 13, 20, 22, 23, 33} {
		s.Tick(now, frame{})
	}
	if !equalDurations(x.fired, 0, 13, 23, 33) {
		t.Fatalf("fired = %v, want [0 13 23 33]", x.fired)
	}
	snap := s.Snapshot()
	if snap.Tasks[0].MaxLateness != 3 {
		t.Fatalf("MaxLateness = %v, want 3", snap.Tasks[0].MaxLateness)
	}
}

// With one invocation per tick, a task that is always due starves every task
// registered after it.
func TestLowPriorityTaskStarves(t *testing.T) {
	s := newTestScheduler()
	hot, cold := &recorder{}, &recorder{}
	mustRegister(t, s, 1, hot, WithName("hot"))
	mustRegister(t, s, 1, cold, WithName("cold"))
	s.Start()

	tickRange(s, 0, 99)

	if len(hot.fired) != 100 {
		t.Fatalf("hot fired %d times, want 100", len(hot.fired))
	}
	if len(cold.fired) != 0 {
		t.Fatalf("cold fired %d times, want 0", len(cold.fired))
	}
	snap := s.Snapshot()
	if !snap.Tasks[1].Pending || snap.Tasks[1].Overdue != 99 {
		t.Fatalf("cold info = %+v, want pending and 99 overdue", snap.Tasks[1])
	}
}

func TestThirdTaskStarvesWhenTickRateMatchesLoad(t *testing.T) {
	s := newTestScheduler()
	a, b, c := &recorder{}, &recorder{}, &recorder{}
	mustRegister(t, s, 2, a)
	mustRegister(t, s, 2, b)
	mustRegister(t, s, 2, c)
	s.Start()

	tickRange(s, 0, 49)

	if len(a.fired) != 25 || len(b.fired) != 25 {
		t.Fatalf("a=%d b=%d, want 25 each", len(a.fired), len(b.fired))
	}
	if len(c.fired) != 0 {
		t.Fatalf("c fired %d times, want 0", len(c.fired))
	}
}

func TestTaskPanicIsRecovered(t *testing.T) {
	bus := eventbus.New()
	events, unsub := bus.Subscribe(8)
	defer unsub()

	s := New[frame](logx.Nop(), bus)
	calls := 0
	var prevs []any
	mustRegister(t, s, 5, TaskFunc[frame](func(now time.Duration, _ frame, prev any) any {
		calls++
		prevs = append(prevs, prev)
		if calls == 1 {
			panic("boom")
		}
		return calls
	}), WithName("flaky"))
	s.Start()

	s.Tick(0, frame{})
	s.Tick(1, frame{}) // not due: the failed run was still re-based
	s.Tick(5, frame{})

	if calls != 2 {
		t.Fatalf("calls = %d, want 2", calls)
	}
	if prevs[1] != nil {
		t.Fatalf("prev after panic = %v, want nil", prevs[1])
	}
	info := s.Snapshot().Tasks[0]
	if info.Panics != 1 || info.Dispatches != 2 {
		t.Fatalf("info = %+v", info)
	}

	var sawPanic bool
	for len(events) > 0 {
		e := <-events
		if e.Type == eventbus.TypeTaskPanic {
			p, ok := e.Data.(eventbus.TaskPanic)
			if !ok || p.Task != "flaky" || p.Panic != "boom" {
				t.Fatalf("panic payload = %#v", e.Data)
			}
			sawPanic = true
		}
	}
	if !sawPanic {
		t.Fatal("no task panic event published")
	}
}

func TestLifecycleEventsPublished(t *testing.T) {
	bus := eventbus.New()
	events, unsub := bus.Subscribe(8)
	defer unsub()

	s := New[frame](logx.Nop(), bus)
	s.Start()
	s.Start()
	s.Stop()

	var types []string
	for len(events) > 0 {
		types = append(types, (<-events).Type)
	}
	if len(types) != 2 || types[0] != eventbus.TypeSchedulerStarted || types[1] != eventbus.TypeSchedulerStopped {
		t.Fatalf("events = %v", types)
	}
}

func TestHandlesAreUniqueAcrossSchedulers(t *testing.T) {
	s1, s2 := newTestScheduler(), newTestScheduler()
	seen := map[Handle]bool{}
	for i := 0; i < 10; i++ {
		for _, s := range []*Scheduler[frame]{s1, s2} {
			h := mustRegister(t, s, 1, &recorder{})
			if seen[h] {
				t.Fatalf("duplicate handle %s", h)
			}
			seen[h] = true
		}
	}
	if (Handle{}).String() != "task-none" {
		t.Fatalf("zero handle String = %q", Handle{}.String())
	}
}

func TestStateString(t *testing.T) {
	t.Parallel()
	tests := []struct {
		state State
		want  string
	}{
		{StateAccepting, "accepting"},
		{StateRunning, "running"},
		{StateStopped, "stopped"},
		{State(99), "unknown"},
	}
	for _, tt := range tests {
		if got := tt.state.String(); got != tt.want {
			t.Fatalf("State(%d).String() = %q, want %q", tt.state, got, tt.want)
		}
	}
}

func TestTaskMayCallBackIntoScheduler(t *testing.T) {
	s := newTestScheduler()
	var (
		seenLen   int
		seenTicks uint64
		regErr    error
		nested    int
	)
	mustRegister(t, s, 10, TaskFunc[frame](func(now time.Duration, f frame, prev any) any {
		seenLen = s.Len()
		seenTicks = s.Snapshot().Ticks
		_, regErr = s.Register(1, &recorder{})
		if f.n == 0 {
			s.Tick(now, frame{n: 1})
		}
		nested++
		return nil
	}))
	s.Start()

	done := make(chan struct{})
	go func() {
		defer close(done)
		s.Tick(0, frame{})
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Tick deadlocked on a task calling back into the scheduler")
	}

	if seenLen != 1 || seenTicks != 1 {
		t.Fatalf("len=%d ticks=%d", seenLen, seenTicks)
	}
	if !errors.Is(regErr, ErrRegistrationClosed) {
		t.Fatalf("Register from task err = %v", regErr)
	}
	if nested != 1 {
		t.Fatalf("task ran %d times, want 1 (nested tick dropped)", nested)
	}
	if snap := s.Snapshot(); snap.Ticks != 1 || snap.Dispatches != 1 {
		t.Fatalf("ticks=%d dispatches=%d", snap.Ticks, snap.Dispatches)
	}
}

func TestTaskMayStopScheduler(t *testing.T) {
	s := newTestScheduler()
	r := &recorder{}
	mustRegister(t, s, 1, TaskFunc[frame](func(time.Duration, frame, any) any {
		s.Stop()
		return "stopped"
	}))
	mustRegister(t, s, 1, r)
	s.Start()

	s.Tick(0, frame{})
	s.Tick(1, frame{})
	if s.State() != StateStopped {
		t.Fatalf("state = %s", s.State())
	}
	if len(r.fired) != 0 {
		t.Fatalf("second task fired after Stop: %v", r.fired)
	}
	if got := s.Snapshot().Tasks[0]; got.Dispatches != 1 || got.NextEligible != 1 {
		t.Fatalf("stopping run not recorded: %+v", got)
	}
}
