// Package tasks holds the game's periodic tasks and turns config entries
// into scheduler registrations.
//
// Every task here is stateless; the state lives in the value it returns,
// which the scheduler hands back on the next run.
package tasks
