package storage

import (
	"errors"
	"time"

	"github.com/spf13/afero"
)

var ErrDisabled = errors.New("storage disabled")

// Config configures storage.
//
// Driver values:
//   - "file": JSON Lines file
//   - "sqlite": SQLite database file
//
// If Driver is empty or "none", storage is disabled.
type Config struct {
	Driver      string
	Path        string
	BusyTimeout time.Duration // sqlite only; 0 means default

	// FS backs the file driver. Nil means the OS filesystem.
	FS afero.Fs
}

// SessionSummary describes one run of the frame loop.
type SessionSummary struct {
	ID         int64     `json:"id"`
	StartedAt  time.Time `json:"started_at"`
	EndedAt    time.Time `json:"ended_at"`
	Frames     uint64    `json:"frames"`
	Ticks      uint64    `json:"ticks"`
	IdleTicks  uint64    `json:"idle_ticks"`
	Dispatches uint64    `json:"dispatches"`
	StopReason string    `json:"stop_reason,omitempty"`

	Tasks []TaskSummary `json:"tasks,omitempty"` // dispatch order
}

type TaskSummary struct {
	Name        string        `json:"name"`
	Period      time.Duration `json:"period_ns"`
	Dispatches  uint64        `json:"dispatches"`
	Panics      uint64        `json:"panics,omitempty"`
	MaxLateness time.Duration `json:"max_lateness_ns,omitempty"`
}

func (s SessionSummary) Duration() time.Duration {
	if s.StartedAt.IsZero() || s.EndedAt.Before(s.StartedAt) {
		return 0
	}
	return s.EndedAt.Sub(s.StartedAt)
}
