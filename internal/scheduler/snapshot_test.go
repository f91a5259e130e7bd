package scheduler

import "testing"

func TestSnapshotCounters(t *testing.T) {
	s := newTestScheduler()
	mustRegister(t, s, 4, &recorder{}, WithName("energy"))
	h := mustRegister(t, s, 4, &recorder{})
	s.Start()

	tickRange(s, 0, 5)

	snap := s.Snapshot()
	if snap.State != StateRunning {
		t.Fatalf("State = %s", snap.State)
	}
	// t0 energy, t1 second, t4 energy, t5 second; t2,t3 idle.
	if snap.Ticks != 6 || snap.Dispatches != 4 || snap.IdleTicks != 2 {
		t.Fatalf("ticks=%d dispatches=%d idle=%d", snap.Ticks, snap.Dispatches, snap.IdleTicks)
	}
	if snap.LastTick != 5 {
		t.Fatalf("LastTick = %v", snap.LastTick)
	}
	if len(snap.Tasks) != 2 {
		t.Fatalf("tasks = %d", len(snap.Tasks))
	}

	energy := snap.Tasks[0]
	if energy.Name != "energy" || energy.Dispatches != 2 || energy.LastFiredAt != 4 || energy.NextEligible != 8 {
		t.Fatalf("energy = %+v", energy)
	}
	if energy.Pending {
		t.Fatal("energy should not be pending")
	}

	second := snap.Tasks[1]
	if second.Handle != h || second.Name != h.String() {
		t.Fatalf("default name = %q, handle = %s", second.Name, second.Handle)
	}
}

func TestSnapshotBeforeStart(t *testing.T) {
	s := newTestScheduler()
	mustRegister(t, s, 1, &recorder{})

	snap := s.Snapshot()
	if snap.State != StateAccepting || snap.Ticks != 0 {
		t.Fatalf("snap = %+v", snap)
	}
	if snap.Tasks[0].Pending {
		t.Fatal("nothing is pending before the first tick")
	}
}

func TestSnapshotPending(t *testing.T) {
	s := newTestScheduler()
	mustRegister(t, s, 0, &recorder{}, WithName("hog"))
	mustRegister(t, s, 3, &recorder{}, WithName("starved"))
	s.Start()

	tickRange(s, 0, 4)

	snap := s.Snapshot()
	hog, starved := snap.Tasks[0], snap.Tasks[1]
	if hog.Pending || hog.Overdue != 0 {
		t.Fatalf("task that ran at the last tick reported pending: %+v", hog)
	}
	if !starved.Pending || starved.Overdue != 4 {
		t.Fatalf("starved = %+v, want pending with overdue 4", starved)
	}
}
