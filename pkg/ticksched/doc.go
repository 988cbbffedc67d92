// Package ticksched provides deferred, repeating and tick-based callback
// execution for a host application driven by an external clock.
//
// # Overview
//
// The host calls Scheduler.Execute once per tick with the current time in
// seconds since start and a monotonically increasing tick counter. Client
// code schedules work against that clock instead of writing its own timers:
// one-shot delays (RunOnceAfterSeconds, RunOnceAfterTicks, RunOnceNextTick),
// fixed-cadence repeats (RepeatEverySeconds, RepeatEveryTicks,
// RepeatRandomSeconds), per-tick polling (RunEveryTick), and multi-step
// chains (Sequence).
//
// # Timing
//
// Precision is tick granularity: an action due between two ticks fires on
// the later one. Interval and delay parameters are not validated; zero or
// negative values make the action due on the next check, which repeating
// policies turn into firing every pass.
//
// # Concurrency
//
// All callbacks run on the goroutine that calls Execute; nothing here runs
// work in parallel or blocks. The scheduling and control API may be called
// from any goroutine and from inside running callbacks; one mutex guards the
// registry, and callbacks are always invoked with it released.
//
// # Failure isolation
//
// A callback returning an error, or panicking, retires its own action
// permanently (logged, never retried) and leaves every other action
// untouched. Execute itself never fails.
package ticksched
