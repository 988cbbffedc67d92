package ticksched

import (
	"fmt"
	"math/rand"
	"runtime/debug"
	"time"

	"ticksched/internal/eventbus"
	logx "ticksched/pkg/logx"
)

// Scheduler owns a registry of scheduled actions and executes the due ones
// once per tick. Create one per driver loop; instances are independent, so
// tests can run their own without touching anything global.
//
// All due-ness checks, callback invocations and bookkeeping happen on the
// goroutine that calls Execute. The scheduling and control API may be called
// from any goroutine, including from inside a running callback.
type Scheduler struct {
	reg *registry

	// Guarded by reg.mu alongside the registry itself (one lock for the
	// whole scheduling surface, per the concurrency model).
	nextID  ActionID
	nowTime float64
	nowTick int64
	rng     *rand.Rand

	log logx.Logger
	bus eventbus.Bus
}

func New(cfg Config) *Scheduler {
	seed := cfg.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	return &Scheduler{
		reg:     newRegistry(),
		nowTick: -1, // no pass has run yet; "next tick" means the first one
		rng:     rand.New(rand.NewSource(seed)),
		log:     cfg.Log,
		bus:     cfg.Bus,
	}
}

// Execute runs one pass: it visits a snapshot of the registry, fires every
// due action, and batch-removes retired ones at the end.
//
// The driver contract: called exactly once per tick, never concurrently with
// itself, with non-decreasing currentTime (seconds since start) and
// currentTick.
//
// A callback may schedule, cancel, pause or resume any action, including
// itself, without corrupting the pass. Actions registered during a pass are
// first visited on the next one. Within a pass, due actions fire in
// registration order.
func (s *Scheduler) Execute(currentTime float64, currentTick int64) {
	s.reg.mu.Lock()
	s.nowTime = currentTime
	s.nowTick = currentTick
	snap := make([]*record, len(s.reg.order))
	copy(snap, s.reg.order)
	s.reg.mu.Unlock()

	var retired []ActionID

	for _, rec := range snap {
		s.reg.mu.Lock()
		if _, live := s.reg.index[rec.id]; !live {
			// Cancelled or cleared earlier in this same pass.
			s.reg.mu.Unlock()
			continue
		}
		if rec.cancelled {
			retired = append(retired, rec.id)
			s.reg.mu.Unlock()
			continue
		}
		if !rec.active {
			s.reg.mu.Unlock()
			continue
		}
		fire, oneShot := s.dueLocked(rec, currentTime, currentTick)
		s.reg.mu.Unlock()
		if !fire {
			continue
		}

		started := time.Now()
		err := s.invoke(rec)
		dur := time.Since(started)

		s.reg.mu.Lock()
		if err != nil {
			// Fail fast: the offending action is retired permanently and
			// never retried. Other actions are unaffected.
			retired = append(retired, rec.id)
			s.reg.mu.Unlock()
			s.log.Warn("action failed; retiring",
				logx.Uint64("action", uint64(rec.id)),
				logx.String("policy", rec.policy.String()),
				logx.Int64("tick", currentTick),
				logx.Err(err))
			s.publish(EventActionFailed, rec, currentTime, currentTick, dur, err)
			continue
		}
		rec.executions++
		done := oneShot || rec.cancelled ||
			(rec.maxExecutions > 0 && rec.executions >= rec.maxExecutions)
		if done {
			retired = append(retired, rec.id)
		}
		s.reg.mu.Unlock()

		s.publish(EventActionFired, rec, currentTime, currentTick, dur, nil)
	}

	if len(retired) == 0 {
		return
	}
	s.reg.mu.Lock()
	removed := retired[:0]
	for _, id := range retired {
		if s.reg.removeLocked(id) {
			removed = append(removed, id)
		}
	}
	s.reg.mu.Unlock()
	for _, id := range removed {
		s.publishRetired(id, currentTime, currentTick)
	}
}

// dueLocked evaluates and updates the record's timing state. It returns
// whether the action fires this pass and whether it is a one-shot that must
// retire after firing. Call with reg.mu held.
func (s *Scheduler) dueLocked(rec *record, now float64, tick int64) (fire, oneShot bool) {
	switch rec.policy {
	case policyEveryTick:
		if rec.lastRanOnTick == tick {
			return false, false
		}
		rec.lastRanOnTick = tick
		return true, false
	case policyOnceNextTick, policyOnceAfterTicks:
		return tick >= rec.nextDueTick, true
	case policyRepeatTicks:
		if tick >= rec.nextDueTick {
			rec.nextDueTick = tick + rec.tickInterval
			return true, false
		}
	case policyOnceAfterSeconds:
		return now >= rec.nextDueTime, true
	case policyRepeatSeconds:
		if now >= rec.nextDueTime {
			rec.nextDueTime = now + rec.interval
			return true, false
		}
	case policyRepeatRandomSeconds:
		if now >= rec.nextDueTime {
			rec.nextDueTime = now + s.sampleLocked(rec.minInterval, rec.maxInterval)
			return true, false
		}
	}
	return false, false
}

// invoke runs the callback with the registry lock released. A panic is
// converted to an error so one broken action cannot take down the pass.
func (s *Scheduler) invoke(rec *record) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("callback panic: %v", r)
			s.log.Error("panic in scheduled callback",
				logx.Uint64("action", uint64(rec.id)),
				logx.Any("panic", r),
				logx.Stack(string(debug.Stack())))
		}
	}()
	if rec.runCancelable != nil {
		return rec.runCancelable(s.cancelHandle(rec))
	}
	return rec.run()
}

// cancelHandle returns the idempotent capability handed to cancel-aware
// callbacks. It only flags the record; removal happens at end of pass.
func (s *Scheduler) cancelHandle(rec *record) func() {
	return func() {
		s.reg.mu.Lock()
		rec.cancelled = true
		s.reg.mu.Unlock()
	}
}

// Now returns the time and tick reported by the most recent pass
// (0.0 and -1 before the first one).
func (s *Scheduler) Now() (float64, int64) {
	s.reg.mu.Lock()
	defer s.reg.mu.Unlock()
	return s.nowTime, s.nowTick
}

func (s *Scheduler) sample(min, max float64) float64 {
	s.reg.mu.Lock()
	defer s.reg.mu.Unlock()
	return s.sampleLocked(min, max)
}

// sampleLocked draws a uniform interval from [min, max] seconds. An inverted
// range collapses to min. Call with reg.mu held (the RNG shares the lock).
func (s *Scheduler) sampleLocked(min, max float64) float64 {
	span := max - min
	if span <= 0 {
		return min
	}
	return min + s.rng.Float64()*span
}

func (s *Scheduler) publish(typ string, rec *record, now float64, tick int64, dur time.Duration, err error) {
	if s.bus == nil {
		return
	}
	ev := ActionEvent{
		ID:         rec.id,
		Policy:     rec.policy.String(),
		Tick:       tick,
		Time:       now,
		DurationMS: dur.Milliseconds(),
	}
	s.reg.mu.Lock()
	ev.Executions = rec.executions
	s.reg.mu.Unlock()
	if err != nil {
		ev.Error = err.Error()
	}
	s.bus.Publish(eventbus.Event{Type: typ, Data: ev})
}

func (s *Scheduler) publishRetired(id ActionID, now float64, tick int64) {
	if s.bus == nil {
		return
	}
	s.bus.Publish(eventbus.Event{Type: EventActionRetired, Data: ActionEvent{ID: id, Tick: tick, Time: now}})
}
