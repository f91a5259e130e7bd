package host

import (
	"context"
	"fmt"
	"time"

	"github.com/gdamore/tcell/v2"

	"framesched/internal/scheduler"
)

// SnapshotSource is satisfied by *scheduler.Scheduler.
type SnapshotSource interface {
	Snapshot() scheduler.Snapshot
}

// HUD draws the scheduler's task table on a terminal screen.
type HUD struct {
	screen tcell.Screen
	src    SnapshotSource

	title   tcell.Style
	normal  tcell.Style
	pending tcell.Style
}

func NewHUD(screen tcell.Screen, src SnapshotSource) *HUD {
	return &HUD{
		screen:  screen,
		src:     src,
		title:   tcell.StyleDefault.Bold(true),
		normal:  tcell.StyleDefault,
		pending: tcell.StyleDefault.Foreground(tcell.ColorYellow),
	}
}

// Render redraws the whole overlay for frame f.
func (h *HUD) Render(f Frame) {
	snap := h.src.Snapshot()
	w, rows := h.screen.Size()

	h.screen.Clear()
	h.drawLine(0, w, h.title, fmt.Sprintf("frame %d  t=%s  state=%s  runs=%d  idle=%d",
		f.Number, fmtDur(f.Elapsed), snap.State, snap.Dispatches, snap.IdleTicks))
	h.drawLine(2, w, h.title, fmt.Sprintf("%-20s %8s %8s %10s %8s", "TASK", "PERIOD", "RUNS", "NEXT", "WAIT"))

	for i, ti := range snap.Tasks {
		y := 3 + i
		if y >= rows {
			break
		}
		style, wait := h.normal, "-"
		if ti.Pending {
			style, wait = h.pending, fmtDur(ti.Overdue)
		}
		h.drawLine(y, w, style, fmt.Sprintf("%-20.20s %8s %8d %10s %8s",
			ti.Name, fmtDur(ti.Period), ti.Dispatches, fmtDur(ti.NextEligible), wait))
	}
	h.screen.Show()
}

func (h *HUD) drawLine(y, width int, style tcell.Style, text string) {
	x := 0
	for _, r := range text {
		if x >= width {
			return
		}
		h.screen.SetContent(x, y, r, nil, style)
		x++
	}
}

// WatchKeys blocks reading terminal events and calls quit on Esc, Ctrl-C or
// 'q', and toggle on 'p'. It returns when ctx is done or the screen is finalized.
func (h *HUD) WatchKeys(ctx context.Context, quit func(), toggle func()) {
	for ctx.Err() == nil {
		ev := h.screen.PollEvent()
		if ev == nil {
			return
		}
		switch ev := ev.(type) {
		case *tcell.EventKey:
			switch {
			case ev.Key() == tcell.KeyEscape, ev.Key() == tcell.KeyCtrlC, ev.Rune() == 'q':
				quit()
				return
			case ev.Rune() == 'p' && toggle != nil:
				toggle()
			}
		case *tcell.EventResize:
			h.screen.Sync()
		}
	}
}

func fmtDur(d time.Duration) string {
	return d.Round(time.Millisecond).String()
}
