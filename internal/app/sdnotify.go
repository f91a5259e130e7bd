package app

import (
	"context"
	"time"

	"github.com/coreos/go-systemd/v22/daemon"

	logx "framesched/pkg/logx"
)

// notifySystemd sends state to the service manager. Outside systemd
// (NOTIFY_SOCKET unset) it does nothing.
func (a *App) notifySystemd(state string) {
	sent, err := daemon.SdNotify(false, state)
	if err != nil {
		a.log.Debug("sd_notify failed", logx.String("state", state), logx.Err(err))
		return
	}
	if sent {
		a.log.Debug("sd_notify sent", logx.String("state", state))
	}
}

// watchdogLoop pets the systemd watchdog while the frame loop makes
// progress. A stalled loop stops the pings, so systemd restarts the unit.
func (a *App) watchdogLoop(ctx context.Context) error {
	interval, err := daemon.SdWatchdogEnabled(false)
	if err != nil || interval <= 0 {
		return nil
	}
	t := time.NewTicker(interval / 2)
	defer t.Stop()

	a.log.Info("systemd watchdog enabled", logx.Duration("interval", interval))
	var lastFrames uint64
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-t.C:
			frames := a.loop.Frames()
			if frames == lastFrames && !a.loop.Paused() {
				a.log.Warn("frame loop stalled; skipping watchdog ping", logx.Uint64("frames", frames))
				continue
			}
			lastFrames = frames
			a.notifySystemd(daemon.SdNotifyWatchdog)
		}
	}
}
