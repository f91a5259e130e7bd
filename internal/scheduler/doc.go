// Package scheduler multiplexes periodic game tasks onto an external frame tick.
//
// The scheduler owns no goroutine or timer. The host calls Tick once per frame
// with its clock value and an opaque driver context; Tick runs at most one due
// task and returns.
//
// Lifecycle:
//   - Accepting: Register and Remove are allowed, Tick is a no-op.
//   - Running: the task set is frozen, Tick dispatches.
//   - Stopped: Tick is a no-op again, but registration stays closed.
//     Start resumes with every task's timing and last result intact.
//
// Dispatch rules:
//   - Tasks are scanned in registration order; the first due task runs.
//     Later tasks wait, even if they are due too.
//   - After a run, the next eligible time is now + period. A late tick shifts
//     the task's cadence later; lag accumulates as phase drift.
//   - A task's previous result is handed only to that task's next run.
//
// Tasks run synchronously on the goroutine that called Tick. A task may read
// the scheduler (Len, Snapshot) or Stop it; Register and Remove fail with
// ErrRegistrationClosed and a nested Tick is dropped.
package scheduler
