package ticksched

import logx "ticksched/pkg/logx"

// Scheduling surface. Every timing policy comes in a plain-callback and a
// cancel-aware variant. None of the interval/delay parameters are validated:
// a zero or negative interval simply makes the action due on the next check
// (constant re-fire for repeating policies). That mirrors how callers use
// zero delays to mean "as soon as possible".
//
// Delays and intervals are measured against the scheduler's notion of "now",
// which is whatever the most recent Execute() pass reported. Actions
// registered before the first pass arm against time 0.0 / tick -1.

// RunEveryTick schedules cb to fire on every Execute pass.
// maxExecutions caps the number of fires; pass Unbounded for no cap.
func (s *Scheduler) RunEveryTick(cb Callback, maxExecutions int) ActionID {
	return s.add(&record{run: cb, policy: policyEveryTick, maxExecutions: maxExecutions})
}

// RunEveryTickCancelable is RunEveryTick with a cancel-aware callback.
func (s *Scheduler) RunEveryTickCancelable(cb CancelableCallback, maxExecutions int) ActionID {
	return s.add(&record{runCancelable: cb, policy: policyEveryTick, maxExecutions: maxExecutions})
}

// RunOnceNextTick schedules cb to fire exactly once, on the next pass.
func (s *Scheduler) RunOnceNextTick(cb Callback) ActionID {
	return s.add(&record{run: cb, policy: policyOnceNextTick})
}

func (s *Scheduler) RunOnceNextTickCancelable(cb CancelableCallback) ActionID {
	return s.add(&record{runCancelable: cb, policy: policyOnceNextTick})
}

// RepeatEverySeconds fires cb whenever at least interval seconds have elapsed
// since the previous fire (re-armed as currentTime+interval at fire time).
func (s *Scheduler) RepeatEverySeconds(cb Callback, interval float64, maxExecutions int) ActionID {
	return s.add(&record{run: cb, policy: policyRepeatSeconds, interval: interval, maxExecutions: maxExecutions})
}

func (s *Scheduler) RepeatEverySecondsCancelable(cb CancelableCallback, interval float64, maxExecutions int) ActionID {
	return s.add(&record{runCancelable: cb, policy: policyRepeatSeconds, interval: interval, maxExecutions: maxExecutions})
}

// RepeatEveryTicks fires cb every tickInterval ticks.
func (s *Scheduler) RepeatEveryTicks(cb Callback, tickInterval int64, maxExecutions int) ActionID {
	return s.add(&record{run: cb, policy: policyRepeatTicks, tickInterval: tickInterval, maxExecutions: maxExecutions})
}

func (s *Scheduler) RepeatEveryTicksCancelable(cb CancelableCallback, tickInterval int64, maxExecutions int) ActionID {
	return s.add(&record{runCancelable: cb, policy: policyRepeatTicks, tickInterval: tickInterval, maxExecutions: maxExecutions})
}

// RunOnceAfterSeconds fires cb once, no earlier than delay seconds from now.
func (s *Scheduler) RunOnceAfterSeconds(cb Callback, delay float64) ActionID {
	return s.add(&record{run: cb, policy: policyOnceAfterSeconds, interval: delay})
}

func (s *Scheduler) RunOnceAfterSecondsCancelable(cb CancelableCallback, delay float64) ActionID {
	return s.add(&record{runCancelable: cb, policy: policyOnceAfterSeconds, interval: delay})
}

// RunOnceAfterTicks fires cb once, no earlier than delayTicks ticks from now.
func (s *Scheduler) RunOnceAfterTicks(cb Callback, delayTicks int64) ActionID {
	return s.add(&record{run: cb, policy: policyOnceAfterTicks, tickInterval: delayTicks})
}

func (s *Scheduler) RunOnceAfterTicksCancelable(cb CancelableCallback, delayTicks int64) ActionID {
	return s.add(&record{runCancelable: cb, policy: policyOnceAfterTicks, tickInterval: delayTicks})
}

// RepeatRandomSeconds fires cb at a fresh uniform interval in [minInterval,
// maxInterval] seconds, re-sampled on every re-arm. An inverted range
// (maxInterval < minInterval) collapses to the constant minInterval.
func (s *Scheduler) RepeatRandomSeconds(cb Callback, minInterval, maxInterval float64, maxExecutions int) ActionID {
	return s.add(&record{run: cb, policy: policyRepeatRandomSeconds, minInterval: minInterval, maxInterval: maxInterval, maxExecutions: maxExecutions})
}

func (s *Scheduler) RepeatRandomSecondsCancelable(cb CancelableCallback, minInterval, maxInterval float64, maxExecutions int) ActionID {
	return s.add(&record{runCancelable: cb, policy: policyRepeatRandomSeconds, minInterval: minInterval, maxInterval: maxInterval, maxExecutions: maxExecutions})
}

// add assigns an id, arms the due value relative to the scheduler's current
// time/tick, and inserts the record. Safe to call from inside a running
// callback; the new action is first visited on the NEXT pass.
func (s *Scheduler) add(rec *record) ActionID {
	s.reg.mu.Lock()
	s.nextID++
	rec.id = s.nextID
	rec.active = true
	rec.lastRanOnTick = -1
	if rec.maxExecutions <= 0 {
		rec.maxExecutions = Unbounded
	}
	switch rec.policy {
	case policyOnceNextTick:
		rec.nextDueTick = s.nowTick + 1
	case policyOnceAfterTicks, policyRepeatTicks:
		rec.nextDueTick = s.nowTick + rec.tickInterval
	case policyOnceAfterSeconds, policyRepeatSeconds:
		rec.nextDueTime = s.nowTime + rec.interval
	case policyRepeatRandomSeconds:
		rec.nextDueTime = s.nowTime + s.sampleLocked(rec.minInterval, rec.maxInterval)
	}
	s.reg.order = append(s.reg.order, rec)
	s.reg.index[rec.id] = rec
	id := rec.id
	pol := rec.policy
	s.reg.mu.Unlock()

	s.log.Debug("action registered",
		logx.Uint64("action", uint64(id)), logx.String("policy", pol.String()))
	return id
}

// Cancel removes the action immediately: the id is unreachable as soon as
// Cancel returns. A callback of that action already executing in the current
// pass still runs to completion. Returns false for unknown ids.
func (s *Scheduler) Cancel(id ActionID) bool {
	s.reg.mu.Lock()
	rec, ok := s.reg.index[id]
	if ok {
		rec.cancelled = true
		s.reg.removeLocked(id)
	}
	s.reg.mu.Unlock()
	if ok {
		s.log.Debug("action cancelled", logx.Uint64("action", uint64(id)))
	}
	return ok
}

// Pause deactivates the action without losing its timing state.
// Returns false for unknown ids.
func (s *Scheduler) Pause(id ActionID) bool {
	s.reg.mu.Lock()
	rec, ok := s.reg.index[id]
	if ok {
		rec.active = false
	}
	s.reg.mu.Unlock()
	return ok
}

// Resume reactivates a paused action. The precomputed due value is NOT
// recomputed: a time-based repeater whose nextDueTime elapsed while paused
// fires on the next pass.
func (s *Scheduler) Resume(id ActionID) bool {
	s.reg.mu.Lock()
	rec, ok := s.reg.index[id]
	if ok {
		rec.active = true
	}
	s.reg.mu.Unlock()
	return ok
}

// Count reports the number of live actions.
func (s *Scheduler) Count() int { return s.reg.len() }

// GetExecutionCount returns how many times the action has fired, or
// Unbounded for unknown ids.
func (s *Scheduler) GetExecutionCount(id ActionID) int {
	s.reg.mu.Lock()
	defer s.reg.mu.Unlock()
	rec, ok := s.reg.index[id]
	if !ok {
		return Unbounded
	}
	return rec.executions
}

// GetMaxExecutions returns the action's execution cap. Both an unknown id
// and an uncapped action yield Unbounded.
func (s *Scheduler) GetMaxExecutions(id ActionID) int {
	s.reg.mu.Lock()
	defer s.reg.mu.Unlock()
	rec, ok := s.reg.index[id]
	if !ok {
		return Unbounded
	}
	return rec.maxExecutions
}

// GetRemainingExecutions returns how many fires are left before the action
// retires. Unknown ids and uncapped actions yield Unbounded.
func (s *Scheduler) GetRemainingExecutions(id ActionID) int {
	s.reg.mu.Lock()
	defer s.reg.mu.Unlock()
	rec, ok := s.reg.index[id]
	if !ok || rec.maxExecutions == Unbounded {
		return Unbounded
	}
	left := rec.maxExecutions - rec.executions
	if left < 0 {
		left = 0
	}
	return left
}

// Info returns a copy of the action's bookkeeping. The second return is
// false for unknown (cancelled, retired, never-registered) ids.
func (s *Scheduler) Info(id ActionID) (ActionInfo, bool) {
	s.reg.mu.Lock()
	defer s.reg.mu.Unlock()
	rec, ok := s.reg.index[id]
	if !ok {
		return ActionInfo{}, false
	}
	return rec.info(), true
}

// Snapshot lists all live actions in registration order.
func (s *Scheduler) Snapshot() []ActionInfo {
	snap := s.reg.snapshot()
	out := make([]ActionInfo, 0, len(snap))
	s.reg.mu.Lock()
	for _, rec := range snap {
		if _, live := s.reg.index[rec.id]; live {
			out = append(out, rec.info())
		}
	}
	s.reg.mu.Unlock()
	return out
}

// ClearAll empties the registry. A pass that already took its snapshot keeps
// iterating but re-validates each entry, so none of the cleared actions fire.
func (s *Scheduler) ClearAll() {
	s.reg.clear()
	s.log.Debug("all actions cleared")
}
