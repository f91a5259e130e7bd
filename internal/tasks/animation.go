package tasks

import (
	"time"

	"framesched/internal/host"
)

// Animation advances a sprite through Frames cells. Its result is the
// current cell index, starting at 0.
type Animation struct {
	Frames int
}

func (a Animation) Invoke(_ time.Duration, _ host.Frame, prev any) any {
	n := a.Frames
	if n <= 0 {
		n = 1
	}
	idx, ok := prev.(int)
	if !ok {
		return 0
	}
	return (idx + 1) % n
}
