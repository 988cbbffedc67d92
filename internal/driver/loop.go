// Package driver runs the tick loop that powers a scheduler instance.
package driver

import (
	"context"
	"time"

	"golang.org/x/time/rate"

	"ticksched/internal/eventbus"
	logx "ticksched/pkg/logx"
	"ticksched/pkg/ticksched"
)

// DefaultTicksPerSecond is used when the config leaves the rate unset.
const DefaultTicksPerSecond = 20

// statsEvery is how many ticks pass between tick.stats events.
const statsEvery = 1000

// EventTickStats is published periodically on the bus.
const EventTickStats = "tick.stats"

// TickStats is the bus payload for EventTickStats.
type TickStats struct {
	Tick    int64
	Elapsed float64 // seconds since loop start
	Actions int     // live actions at publish time
}

type Config struct {
	TicksPerSecond float64
}

// Loop drives Scheduler.Execute at a fixed cadence. It is the single tick
// driver: Execute is only ever called from Run's goroutine, once per tick,
// with seconds-since-start and a tick counter starting at 0.
type Loop struct {
	sched *ticksched.Scheduler
	bus   eventbus.Bus
	log   logx.Logger
	lim   *rate.Limiter
}

func New(cfg Config, sched *ticksched.Scheduler, bus eventbus.Bus, log logx.Logger) *Loop {
	tps := cfg.TicksPerSecond
	if tps <= 0 {
		tps = DefaultTicksPerSecond
	}
	return &Loop{
		sched: sched,
		bus:   bus,
		log:   log,
		lim:   rate.NewLimiter(rate.Limit(tps), 1),
	}
}

// SetTicksPerSecond retunes the cadence at runtime (config hot reload).
func (l *Loop) SetTicksPerSecond(tps float64) {
	if tps <= 0 {
		tps = DefaultTicksPerSecond
	}
	l.lim.SetLimit(rate.Limit(tps))
	l.log.Info("tick rate changed", logx.Float64("tps", tps))
}

// Run blocks until ctx is done. The limiter paces the loop; a pass that
// overruns its slot delays subsequent ticks rather than firing them
// concurrently (ticks are late, never doubled).
func (l *Loop) Run(ctx context.Context) error {
	start := time.Now()
	var tick int64

	l.log.Info("tick loop started", logx.Float64("tps", float64(l.lim.Limit())))
	for {
		if err := l.lim.Wait(ctx); err != nil {
			l.log.Info("tick loop stopped",
				logx.Int64("ticks", tick),
				logx.Duration("ran", time.Since(start)))
			return nil
		}
		elapsed := time.Since(start).Seconds()
		l.sched.Execute(elapsed, tick)

		if l.bus != nil && tick > 0 && tick%statsEvery == 0 {
			l.bus.Publish(eventbus.Event{Type: EventTickStats, Data: TickStats{
				Tick:    tick,
				Elapsed: elapsed,
				Actions: l.sched.Count(),
			}})
		}
		tick++
	}
}
