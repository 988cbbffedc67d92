package ticksched

import (
	"ticksched/internal/eventbus"
	logx "ticksched/pkg/logx"
)

// ActionID identifies a scheduled action. IDs are issued monotonically per
// Scheduler and are never reused; 0 is never a valid id.
type ActionID uint64

// Unbounded disables the execution cap on repeating actions. It is also the
// sentinel returned by the read-only queries for unknown ids.
const Unbounded = -1

// Callback is the plain callback shape. A non-nil error (or a panic) retires
// the action permanently.
type Callback func() error

// CancelableCallback additionally receives a cancel capability. Calling
// cancel flags the action for removal at the end of the current pass; it is
// idempotent and safe to call more than once.
type CancelableCallback func(cancel func()) error

// Config controls a Scheduler instance.
//
// Seed feeds the RNG used by the random-interval policies; zero means
// "derive from wall clock". Bus is optional; when set, the scheduler
// publishes ActionEvent payloads on it.
type Config struct {
	Log  logx.Logger
	Bus  eventbus.Bus
	Seed int64
}

// Event types published on the bus.
const (
	EventActionFired   = "action.fired"
	EventActionFailed  = "action.failed"
	EventActionRetired = "action.retired"
)

// ActionEvent is the bus payload for action lifecycle events.
type ActionEvent struct {
	ID         ActionID
	Policy     string
	Tick       int64
	Time       float64 // scheduler seconds at the pass that produced the event
	DurationMS int64
	Executions int
	Error      string
}

// ActionInfo is a point-in-time copy of one action's bookkeeping, for
// introspection and status surfaces. It never aliases live scheduler state.
type ActionInfo struct {
	ID            ActionID
	Policy        string
	Active        bool
	Executions    int
	MaxExecutions int
	NextDueTime   float64
	NextDueTick   int64
}

type policy int

const (
	policyEveryTick policy = iota
	policyOnceNextTick
	policyRepeatSeconds
	policyRepeatTicks
	policyOnceAfterSeconds
	policyOnceAfterTicks
	policyRepeatRandomSeconds
)

func (p policy) String() string {
	switch p {
	case policyEveryTick:
		return "every_tick"
	case policyOnceNextTick:
		return "once_next_tick"
	case policyRepeatSeconds:
		return "repeat_seconds"
	case policyRepeatTicks:
		return "repeat_ticks"
	case policyOnceAfterSeconds:
		return "once_after_seconds"
	case policyOnceAfterTicks:
		return "once_after_ticks"
	case policyRepeatRandomSeconds:
		return "repeat_random_seconds"
	default:
		return "unknown"
	}
}

// record is the schedulable unit. Exactly one of run/runCancelable is set.
// All fields are guarded by the owning registry's mutex; callbacks are
// invoked with that mutex released.
type record struct {
	id ActionID

	run           Callback
	runCancelable CancelableCallback

	policy       policy
	interval     float64 // seconds, repeatSeconds/onceAfterSeconds
	tickInterval int64   // repeatTicks
	minInterval  float64 // repeatRandomSeconds
	maxInterval  float64

	nextDueTime   float64
	nextDueTick   int64
	lastRanOnTick int64 // -1 = never ran

	active    bool
	cancelled bool

	maxExecutions int // Unbounded = no cap
	executions    int
}

func (r *record) info() ActionInfo {
	return ActionInfo{
		ID:            r.id,
		Policy:        r.policy.String(),
		Active:        r.active,
		Executions:    r.executions,
		MaxExecutions: r.maxExecutions,
		NextDueTime:   r.nextDueTime,
		NextDueTick:   r.nextDueTick,
	}
}
