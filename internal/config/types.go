package config

// Config is the on-disk configuration (JSON or YAML).
type Config struct {
	Logging LoggingConfig `json:"logging"`
	Host    HostConfig    `json:"host"`

	// Storage receives one session summary per run. Nil disables it.
	Storage *StorageConfig `json:"storage,omitempty"`

	// Tasks are registered in list order; earlier entries get dispatch priority.
	// Changes only take effect on restart: the live task set is frozen once the
	// scheduler runs.
	Tasks []TaskConfig `json:"tasks"`
}

type LoggingConfig struct {
	Level   string            `json:"level"`
	Console bool              `json:"console"`
	File    LoggingFileConfig `json:"file"`
}

type LoggingFileConfig struct {
	Enabled bool   `json:"enabled"`
	Path    string `json:"path,omitempty"`
}

// HostConfig controls the frame loop.
//
// Defaults (when fields are omitted/zero):
//   - frame_interval: "16ms"
//   - hud: false
//   - hud_every: 1
type HostConfig struct {
	FrameInterval string `json:"frame_interval,omitempty"`
	HUD           bool   `json:"hud,omitempty"`
	HUDEvery      int    `json:"hud_every,omitempty"`
}

// StorageConfig controls where session summaries go.
//
// Example:
//
//	"storage": { "driver": "sqlite", "path": "./data/sessions.db" }
type StorageConfig struct {
	Driver      string `json:"driver"`
	Path        string `json:"path"`
	BusyTimeout string `json:"busy_timeout,omitempty"` // Go duration string (sqlite)
}

// TaskConfig declares one periodic game task.
//
// Kind selects the implementation; the remaining numeric knobs are
// interpreted per kind (step/max for energy_regen, frames for animation).
type TaskConfig struct {
	Name     string `json:"name"`
	Kind     string `json:"kind"`
	Period   string `json:"period"` // see scheduler.ParsePeriod
	Disabled bool   `json:"disabled,omitempty"`

	Step   int `json:"step,omitempty"`
	Max    int `json:"max,omitempty"`
	Frames int `json:"frames,omitempty"`
}
