package config

import (
	"errors"
	"fmt"
	"strings"

	"framesched/internal/scheduler"
)

// Validate checks structure and durations. Task kinds are checked by the
// tasks package when the config is turned into scheduler registrations.
func Validate(cfg *Config) error {
	if cfg == nil {
		return errors.New("config is nil")
	}
	var errs []error

	if _, err := ParseDurationField("host.frame_interval", cfg.Host.FrameInterval); err != nil {
		errs = append(errs, err)
	}
	if cfg.Host.HUDEvery < 0 {
		errs = append(errs, errors.New("host.hud_every must be >= 0"))
	}

	if cfg.Storage != nil {
		if _, err := ParseDurationField("storage.busy_timeout", cfg.Storage.BusyTimeout); err != nil {
			errs = append(errs, err)
		}
	}

	seen := map[string]bool{}
	for i, tc := range cfg.Tasks {
		path := fmt.Sprintf("tasks[%d]", i)
		name := strings.TrimSpace(tc.Name)
		if name == "" {
			errs = append(errs, fmt.Errorf("%s.name required", path))
		} else if seen[name] {
			errs = append(errs, fmt.Errorf("%s.name %q is duplicated", path, name))
		}
		seen[name] = true

		if strings.TrimSpace(tc.Kind) == "" {
			errs = append(errs, fmt.Errorf("%s.kind required", path))
		}
		if _, err := scheduler.ParsePeriod(tc.Period); err != nil {
			errs = append(errs, fmt.Errorf("%s.period: %w", path, err))
		}
		if tc.Step < 0 || tc.Max < 0 || tc.Frames < 0 {
			errs = append(errs, fmt.Errorf("%s: step/max/frames must be >= 0", path))
		}
	}

	return errors.Join(errs...)
}
