package host

import (
	"context"
	"sync"
	"time"

	logx "framesched/pkg/logx"
)

// Frame is the driver context handed to every task on a tick.
type Frame struct {
	Number  uint64        // 1-based frame counter
	Elapsed time.Duration // same value the scheduler receives as now
	Delta   time.Duration // time since the previous frame (0 on the first)
}

// Ticker is the scheduler's per-frame entry point.
type Ticker interface {
	Tick(now time.Duration, f Frame)
}

// Lifecycle is implemented by tickers that can be paused.
type Lifecycle interface {
	Start() bool
	Stop() bool
}

// Config tunes the frame loop.
type Config struct {
	FrameInterval time.Duration // default 16ms
	HUDEvery      int           // render the HUD every N frames; default 1
}

const defaultFrameInterval = 16 * time.Millisecond

// Loop is the single coupling point between the render loop and the scheduler.
// Each Step reads the clock once and ticks exactly once.
type Loop struct {
	mu sync.Mutex

	clock  Clock
	target Ticker
	cfg    Config
	log    logx.Logger
	hud    *HUD

	frames uint64
	last   time.Duration
	paused bool
}

// NewLoop builds a loop that ticks target with clock readings.
func NewLoop(clock Clock, target Ticker, cfg Config, log logx.Logger) *Loop {
	if cfg.FrameInterval <= 0 {
		cfg.FrameInterval = defaultFrameInterval
	}
	if cfg.HUDEvery <= 0 {
		cfg.HUDEvery = 1
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Loop{clock: clock, target: target, cfg: cfg, log: log}
}

// SetHUD attaches an overlay rendered after ticks. Call before Run.
func (l *Loop) SetHUD(h *HUD) {
	l.mu.Lock()
	l.hud = h
	l.mu.Unlock()
}

// Step advances one frame: read the clock, tick the scheduler, draw the HUD.
// The time value never goes backwards even if the clock does.
func (l *Loop) Step() Frame {
	l.mu.Lock()
	now := l.clock.Elapsed()
	if now < l.last {
		now = l.last
	}
	var delta time.Duration
	if l.frames > 0 {
		delta = now - l.last
	}
	l.frames++
	l.last = now
	f := Frame{Number: l.frames, Elapsed: now, Delta: delta}
	hud := l.hud
	drawHUD := hud != nil && f.Number%uint64(l.cfg.HUDEvery) == 0
	l.mu.Unlock()

	l.target.Tick(now, f)

	if drawHUD {
		hud.Render(f)
	}
	return f
}

// Run steps once per frame interval until ctx is cancelled.
func (l *Loop) Run(ctx context.Context) error {
	t := time.NewTicker(l.cfg.FrameInterval)
	defer t.Stop()

	l.log.Info("host loop started", logx.Duration("frame_interval", l.cfg.FrameInterval))
	defer func() {
		l.log.Info("host loop stopped", logx.Uint64("frames", l.Frames()))
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-t.C:
			l.Step()
		}
	}
}

// Pause freezes game time and stops dispatch. Tasks keep their state and
// resume where they left off.
func (l *Loop) Pause() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.paused {
		return false
	}
	l.paused = true
	if p, ok := l.clock.(Pauser); ok {
		p.Pause()
	}
	if lc, ok := l.target.(Lifecycle); ok {
		lc.Stop()
	}
	l.log.Debug("host loop paused", logx.Duration("at", l.last))
	return true
}

// Resume undoes Pause. It reports whether the state changed.
func (l *Loop) Resume() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	if !l.paused {
		return false
	}
	l.paused = false
	if p, ok := l.clock.(Pauser); ok {
		p.Resume()
	}
	if lc, ok := l.target.(Lifecycle); ok {
		lc.Start()
	}
	l.log.Debug("host loop resumed", logx.Duration("at", l.last))
	return true
}

// Paused reports whether the loop is paused.
func (l *Loop) Paused() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.paused
}

// Frames returns how many frames have been stepped.
func (l *Loop) Frames() uint64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.frames
}
