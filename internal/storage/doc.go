// Package storage keeps a record of past runs.
//
// One SessionSummary is appended when the app shuts down. Nothing the
// scheduler needs to run is persisted; a restart always starts with a fresh
// task set.
package storage
