package tasks

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"framesched/internal/config"
	"framesched/internal/host"
	"framesched/internal/scheduler"
	logx "framesched/pkg/logx"
)

const (
	KindEnergyRegen = "energy_regen"
	KindOpponentAI  = "opponent_ai"
	KindAnimation   = "animation"
)

var ErrUnknownKind = errors.New("tasks: unknown kind")

// Registrar is the part of the scheduler RegisterAll needs.
type Registrar interface {
	Register(period time.Duration, task scheduler.Task[host.Frame], opts ...scheduler.TaskOption) (scheduler.Handle, error)
}

// Build turns one config entry into a task and its period.
func Build(tc config.TaskConfig) (scheduler.Task[host.Frame], time.Duration, error) {
	period, err := scheduler.ParsePeriod(tc.Period)
	if err != nil {
		return nil, 0, fmt.Errorf("task %q: %w", tc.Name, err)
	}

	switch strings.ToLower(strings.TrimSpace(tc.Kind)) {
	case KindEnergyRegen:
		step := tc.Step
		if step == 0 {
			step = 1
		}
		return EnergyRegen{Step: step, Max: tc.Max}, period, nil
	case KindOpponentAI:
		return OpponentAI{}, period, nil
	case KindAnimation:
		return Animation{Frames: tc.Frames}, period, nil
	default:
		return nil, 0, fmt.Errorf("task %q: %w %q", tc.Name, ErrUnknownKind, tc.Kind)
	}
}

// RegisterAll registers enabled entries in list order, so list position is
// dispatch priority. It stops at the first error.
func RegisterAll(r Registrar, list []config.TaskConfig, log logx.Logger) ([]scheduler.Handle, error) {
	if log.IsZero() {
		log = logx.Nop()
	}
	handles := make([]scheduler.Handle, 0, len(list))
	for _, tc := range list {
		if tc.Disabled {
			log.Info("task disabled", logx.String("task", tc.Name))
			continue
		}
		task, period, err := Build(tc)
		if err != nil {
			return handles, err
		}
		h, err := r.Register(period, task, scheduler.WithName(tc.Name))
		if err != nil {
			return handles, fmt.Errorf("task %q: %w", tc.Name, err)
		}
		log.Debug("task registered",
			logx.String("task", tc.Name),
			logx.String("kind", tc.Kind),
			logx.Duration("period", period),
			logx.String("handle", h.String()),
		)
		handles = append(handles, h)
	}
	return handles, nil
}
