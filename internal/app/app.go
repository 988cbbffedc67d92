// Package app wires the daemon together: config, logging, event bus,
// scheduler, cron bridge, history and the tick loop.
package app

import (
	"context"
	"sync"
	"time"

	"ticksched/internal/config"
	"ticksched/internal/cronbridge"
	"ticksched/internal/debughttp"
	"ticksched/internal/driver"
	"ticksched/internal/eventbus"
	"ticksched/internal/history"
	logx "ticksched/pkg/logx"
	"ticksched/pkg/ticksched"
)

type App struct {
	cfgm *config.Manager

	log  logx.Logger
	logs *logx.Service

	bus    eventbus.Bus
	sched  *ticksched.Scheduler
	bridge *cronbridge.Bridge
	loop   *driver.Loop
	store  history.Store
	rec    *history.Recorder
	pprof  *debughttp.Server

	wg     sync.WaitGroup
	cancel context.CancelFunc
}

func New(cfgPath string) (*App, error) {
	cfgm := config.NewManager(cfgPath)
	cfg, err := cfgm.Load()
	if err != nil {
		return nil, err
	}

	logs, log := logx.New(cfg.Logging.Logx())
	cfgm.SetLogger(log.With(logx.String("comp", "config")))

	bus := eventbus.New()
	sched := ticksched.New(ticksched.Config{
		Log: log.With(logx.String("comp", "sched")),
		Bus: bus,
	})
	bridge := cronbridge.New(sched, log.With(logx.String("comp", "bridge")))
	loop := driver.New(driver.Config{TicksPerSecond: cfg.Driver.TicksPerSecond},
		sched, bus, log.With(logx.String("comp", "driver")))

	store, err := history.Open(history.Config{
		Enabled:     cfg.History.Enabled,
		Path:        cfg.History.Path,
		BusyTimeout: cfg.History.BusyTimeout.Std(),
		MaxRows:     cfg.History.MaxRows,
	}, log.With(logx.String("comp", "history")))
	if err != nil {
		_ = logs.Close()
		return nil, err
	}

	return &App{
		cfgm:   cfgm,
		log:    log.With(logx.String("comp", "app")),
		logs:   logs,
		bus:    bus,
		sched:  sched,
		bridge: bridge,
		loop:   loop,
		store:  store,
		rec:    history.NewRecorder(store, bus, log.With(logx.String("comp", "history"))),
		pprof:  debughttp.NewServer(log.With(logx.String("comp", "pprof"))),
	}, nil
}

func pprofConfig(c config.PprofConfig) debughttp.Config {
	return debughttp.Config{
		Enabled:              c.Enabled,
		Address:              c.Address,
		BlockProfileRate:     c.BlockProfileRate,
		MutexProfileFraction: c.MutexProfileFraction,
	}
}

// Start launches the background goroutines and registers configured jobs.
// It returns immediately; Stop tears everything down.
func (a *App) Start(ctx context.Context) error {
	runCtx, cancel := context.WithCancel(ctx)
	a.cancel = cancel

	cfg := a.cfgm.Get()
	if err := a.applyJobs(nil, cfg.Jobs); err != nil {
		cancel()
		return err
	}
	if cfg.Driver.Watchdog {
		a.armWatchdog()
	}
	a.pprof.Apply(runCtx, pprofConfig(cfg.Pprof))

	a.wg.Add(3)
	go func() {
		defer a.wg.Done()
		a.rec.Run(runCtx)
	}()
	go func() {
		defer a.wg.Done()
		_ = a.cfgm.Watch(runCtx)
	}()
	go func() {
		defer a.wg.Done()
		a.watchConfig(runCtx)
	}()

	// The tick loop is the driver thread; everything scheduled runs on it.
	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		_ = a.loop.Run(runCtx)
	}()

	a.log.Info("started",
		logx.Int("jobs", len(cfg.Jobs)),
		logx.Bool("history", cfg.History.Enabled))
	return nil
}

// Stop cancels the background goroutines and waits for them.
func (a *App) Stop() {
	if a.cancel != nil {
		a.cancel()
	}
	a.wg.Wait()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	a.pprof.Stop(shutdownCtx)
	cancel()
	if a.store != nil {
		_ = a.store.Close()
	}
	_ = a.logs.Close()
	a.log.Info("stopped")
}

// watchConfig applies hot reloads: log level/sinks, tick rate and the job
// set. Scheduler-internal state is never rebuilt; only the job registrations
// are reconciled.
func (a *App) watchConfig(ctx context.Context) {
	ch := a.cfgm.Subscribe(1)
	defer a.cfgm.Unsubscribe(ch)

	prev := a.cfgm.Get()
	for {
		select {
		case <-ctx.Done():
			return
		case cfg, ok := <-ch:
			if !ok || cfg == nil {
				return
			}
			a.logs.Apply(cfg.Logging.Logx())
			a.pprof.Apply(ctx, pprofConfig(cfg.Pprof))
			if cfg.Driver.TicksPerSecond != prev.Driver.TicksPerSecond {
				a.loop.SetTicksPerSecond(cfg.Driver.TicksPerSecond)
			}
			if err := a.applyJobs(prev.Jobs, cfg.Jobs); err != nil {
				a.log.Warn("job reconcile failed", logx.Err(err))
			}
			prev = cfg
		}
	}
}
