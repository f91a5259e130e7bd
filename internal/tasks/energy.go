package tasks

import (
	"time"

	"framesched/internal/host"
)

// EnergyRegen refills the player's energy bar. Its result is the current
// level as an int.
type EnergyRegen struct {
	Step int
	Max  int // 0 means uncapped
}

func (e EnergyRegen) Invoke(_ time.Duration, _ host.Frame, prev any) any {
	level, _ := prev.(int)
	level += e.Step
	if e.Max > 0 && level > e.Max {
		level = e.Max
	}
	return level
}
