package app

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/coreos/go-systemd/v22/daemon"
	"github.com/gdamore/tcell/v2"

	"framesched/internal/config"
	"framesched/internal/eventbus"
	"framesched/internal/host"
	"framesched/internal/runtime/supervisor"
	"framesched/internal/scheduler"
	"framesched/internal/storage"
	"framesched/internal/tasks"
	logx "framesched/pkg/logx"
)

type App struct {
	cfgPath string
	cfgm    *config.ConfigManager

	log   logx.Logger
	logs  *logx.Service
	bus   eventbus.Bus
	store storage.Store

	sched  *scheduler.Scheduler[host.Frame]
	clock  host.Clock
	loop   *host.Loop
	hud    *host.HUD
	screen tcell.Screen

	sup       *supervisor.Supervisor
	startedAt time.Time
	stopOnce  sync.Once
	stopped   atomic.Bool
}

type Option func(*options)

type options struct {
	clock  host.Clock
	screen tcell.Screen
}

// WithClock replaces the monotonic game clock.
func WithClock(c host.Clock) Option { return func(o *options) { o.clock = c } }

// WithScreen supplies the HUD screen instead of opening the terminal. It is
// only used when host.hud is enabled.
func WithScreen(s tcell.Screen) Option { return func(o *options) { o.screen = s } }

// New loads the config and builds every component. The task set is
// registered here; it cannot change once Start runs.
func New(cfgPath string, opts ...Option) (*App, error) {
	var o options
	for _, fn := range opts {
		fn(&o)
	}

	cfgm := config.NewConfigManager(cfgPath)
	cfgm.SetValidator(validateTasks)
	cfg, err := cfgm.Load()
	if err != nil {
		return nil, err
	}

	logSvc, log := logx.NewService(mapLoggingConfig(cfg))
	appLog := log.With(logx.String("comp", "app"))

	bus := eventbus.New()
	sched := scheduler.New[host.Frame](log.With(logx.String("comp", "scheduler")), bus)

	if _, err := tasks.RegisterAll(sched, cfg.Tasks, log.With(logx.String("comp", "tasks"))); err != nil {
		_ = logSvc.Close()
		return nil, err
	}
	if sched.Len() == 0 {
		appLog.Warn("no tasks configured; the loop will only idle")
	}

	interval, err := cfg.Host.FrameIntervalOrDefault()
	if err != nil {
		_ = logSvc.Close()
		return nil, err
	}

	clock := o.clock
	if clock == nil {
		clock = host.NewMonotonicClock()
	}
	loop := host.NewLoop(clock, sched, host.Config{
		FrameInterval: interval,
		HUDEvery:      cfg.Host.HUDEvery,
	}, log.With(logx.String("comp", "host")))

	a := &App{
		cfgPath: cfgPath,
		cfgm:    cfgm,
		log:     appLog,
		logs:    logSvc,
		bus:     bus,
		sched:   sched,
		clock:   clock,
		loop:    loop,
	}

	if sc, enabled, err := mapStorageConfig(cfg); err != nil {
		_ = a.release()
		return nil, err
	} else if enabled {
		st, err := storage.Open(sc, log.With(logx.String("comp", "storage")))
		if err != nil {
			_ = a.release()
			return nil, err
		}
		a.store = st
		appLog.Info("storage enabled", logx.String("driver", sc.Driver), logx.String("path", sc.Path))
	}

	if cfg.Host.HUD {
		screen := o.screen
		if screen == nil {
			if screen, err = tcell.NewScreen(); err != nil {
				_ = a.release()
				return nil, fmt.Errorf("hud: %w", err)
			}
		}
		if err := screen.Init(); err != nil {
			_ = a.release()
			return nil, fmt.Errorf("hud: %w", err)
		}
		a.screen = screen
		a.hud = host.NewHUD(screen, sched)
		loop.SetHUD(a.hud)
	}

	return a, nil
}

// release frees everything New acquired.
func (a *App) release() error {
	var errs []error
	if a.screen != nil {
		a.screen.Fini()
	}
	if a.store != nil {
		if err := a.store.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close store: %w", err))
		}
	}
	if a.logs != nil {
		_ = a.logs.Close()
	}
	return errors.Join(errs...)
}

// validateTasks rejects configs whose tasks could not be built, so a bad
// hot-reload is reported instead of silently accepted.
func validateTasks(_ context.Context, cfg *config.Config) error {
	var errs []error
	for _, tc := range cfg.Tasks {
		if _, _, err := tasks.Build(tc); err != nil {
			errs = append(errs, err)
		}
	}
	if _, _, err := mapStorageConfig(cfg); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

func (a *App) Scheduler() *scheduler.Scheduler[host.Frame] { return a.sched }

func (a *App) Loop() *host.Loop { return a.loop }

// Done is closed when the app supervisor context is canceled (fatal error,
// HUD quit or Stop).
func (a *App) Done() <-chan struct{} {
	if a.sup == nil {
		ch := make(chan struct{})
		close(ch)
		return ch
	}
	return a.sup.Context().Done()
}

// Err returns the first fatal error observed by the supervisor (if any).
func (a *App) Err() error {
	if a.sup == nil {
		return nil
	}
	return a.sup.Err()
}

func (a *App) Start(ctx context.Context) error {
	if a.stopped.Load() {
		return errors.New("app already stopped")
	}
	if a.sup != nil {
		return errors.New("app already started")
	}
	a.sup = supervisor.New(ctx, supervisor.WithLogger(a.log), supervisor.WithCancelOnError(true))
	a.cfgm.SetLogger(a.log.With(logx.String("comp", "config")))

	if a.bus != nil {
		events, unsub := a.bus.Subscribe(128)
		a.sup.Go("eventbus.log", func(c context.Context) error {
			defer unsub()
			a.logEvents(c, events)
			return nil
		})
	}

	a.startedAt = time.Now()
	a.sched.Start()

	a.sup.Go("host.loop", a.loop.Run)

	if a.hud != nil {
		a.sup.Go("hud.keys", func(c context.Context) error {
			a.hud.WatchKeys(c, a.sup.Cancel, a.togglePause)
			return nil
		})
	}

	sub := a.cfgm.Subscribe(8)
	a.sup.Go("config.reload", func(c context.Context) error {
		defer a.cfgm.Unsubscribe(sub)
		a.applyConfigUpdates(c, sub)
		return nil
	})
	a.sup.GoRestart("config.watch", a.cfgm.Watch, 250*time.Millisecond, 5*time.Second)
	a.sup.Go("systemd.watchdog", a.watchdogLoop)
	a.notifySystemd(daemon.SdNotifyReady)

	a.log.Info("app started",
		logx.Int("tasks", a.sched.Len()),
		logx.Bool("hud", a.hud != nil),
		logx.Bool("storage", a.store != nil),
	)
	return nil
}

func (a *App) togglePause() {
	if a.loop.Paused() {
		a.loop.Resume()
		return
	}
	a.loop.Pause()
}

func (a *App) logEvents(ctx context.Context, events <-chan eventbus.Event) {
	for {
		select {
		case <-ctx.Done():
			return
		case e, ok := <-events:
			if !ok {
				return
			}
			switch e.Type {
			case eventbus.TypeTaskPanic:
				if p, ok := e.Data.(eventbus.TaskPanic); ok {
					a.log.Warn("task panicked",
						logx.String("task", p.Task),
						logx.Duration("at", p.At),
						logx.String("panic", p.Panic),
					)
					continue
				}
				a.log.Warn("task panicked")
			default:
				a.log.Debug("event", logx.String("type", e.Type), logx.Time("time", e.Time))
			}
		}
	}
}

// applyConfigUpdates handles hot reloads. Only logging applies live: tasks,
// storage and the host loop are fixed for the life of the process.
func (a *App) applyConfigUpdates(ctx context.Context, sub <-chan *config.Config) {
	lastApplied := a.cfgm.Get()
	for {
		select {
		case <-ctx.Done():
			return
		case newCfg, ok := <-sub:
			if !ok {
				return
			}
			sections, attrs, changedTasks := config.SummarizeConfigChange(lastApplied, newCfg)
			lastApplied = newCfg
			if len(sections) == 0 {
				a.log.Info("config reloaded (no changes)")
				continue
			}

			fields := append([]logx.Field{logx.String("changed", strings.Join(sections, ","))}, attrs...)
			for _, s := range sections {
				switch s {
				case "logging":
					a.logs.Apply(mapLoggingConfig(newCfg))
				case "tasks":
					a.log.Warn("task config changed; restart required for changes to take effect",
						logx.Any("tasks", changedTasks))
				default:
					a.log.Warn(s + " config changed; restart required for changes to take effect")
				}
			}
			a.log.Info("config reloaded", fields...)
		}
	}
}

// Stop halts the loop and scheduler, records the session and releases
// resources. An app that never started only releases resources. Calls after
// the first are no-ops.
func (a *App) Stop(ctx context.Context, reason StopReason) error {
	if reason == "" {
		reason = StopUnknown
	}
	var err error
	a.stopOnce.Do(func() {
		a.stopped.Store(true)
		if a.sup == nil {
			a.log.Info("released without starting", logx.String("reason", string(reason)))
			err = a.release()
			return
		}
		err = a.stop(ctx, reason)
	})
	return err
}

func (a *App) stop(ctx context.Context, reason StopReason) error {
	a.log.Info("stopping", logx.String("reason", string(reason)))
	a.notifySystemd(daemon.SdNotifyStopping)

	a.sup.Cancel()
	if a.screen != nil {
		// Wake the key reader so it sees the cancelled context.
		_ = a.screen.PostEvent(tcell.NewEventInterrupt(nil))
	}

	waitCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	supErr := a.sup.Wait(waitCtx)
	cancel()
	if supErr != nil && !errors.Is(supErr, context.DeadlineExceeded) {
		a.log.Warn("supervised goroutine failed", logx.Err(supErr))
	} else if supErr != nil {
		a.log.Warn("supervisor wait timed out (continuing)", logx.Int64("active", a.sup.Active()))
	}
	a.logGoroutineStats()

	a.sched.Stop()

	var errs []error
	if a.store != nil {
		sum := a.sessionSummary(reason)
		id, err := a.store.AppendSession(ctx, sum)
		if err != nil {
			errs = append(errs, fmt.Errorf("save session: %w", err))
		} else {
			a.log.Info("session saved",
				logx.Int64("id", id),
				logx.Uint64("frames", sum.Frames),
				logx.Uint64("dispatches", sum.Dispatches),
			)
		}
	}

	a.log.Info("stopped")
	errs = append(errs, a.release())
	return errors.Join(errs...)
}

// logGoroutineStats reports supervised goroutines that restarted or panicked.
func (a *App) logGoroutineStats() {
	for _, st := range a.sup.Snapshot() {
		fields := []logx.Field{
			logx.String("name", st.Name),
			logx.Uint64("started", st.Started),
			logx.Uint64("restarts", st.Restarts),
			logx.Uint64("panics", st.Panics),
			logx.Duration("last_runtime", st.LastRuntime),
		}
		if st.Restarts == 0 && st.Panics == 0 {
			a.log.Debug("goroutine stats", fields...)
			continue
		}
		if st.LastErr != "" {
			fields = append(fields, logx.String("last_err", st.LastErr))
		}
		if st.LastPanic != "" {
			fields = append(fields, logx.String("last_panic", st.LastPanic))
		}
		a.log.Warn("goroutine was unhealthy", fields...)
	}
}

func (a *App) sessionSummary(reason StopReason) storage.SessionSummary {
	snap := a.sched.Snapshot()
	sum := storage.SessionSummary{
		StartedAt:  a.startedAt,
		EndedAt:    time.Now(),
		Frames:     a.loop.Frames(),
		Ticks:      snap.Ticks,
		IdleTicks:  snap.IdleTicks,
		Dispatches: snap.Dispatches,
		StopReason: string(reason),
		Tasks:      make([]storage.TaskSummary, 0, len(snap.Tasks)),
	}
	for _, t := range snap.Tasks {
		name := t.Name
		if name == "" {
			name = t.Handle.String()
		}
		sum.Tasks = append(sum.Tasks, storage.TaskSummary{
			Name:        name,
			Period:      t.Period,
			Dispatches:  t.Dispatches,
			Panics:      t.Panics,
			MaxLateness: t.MaxLateness,
		})
	}
	return sum
}
