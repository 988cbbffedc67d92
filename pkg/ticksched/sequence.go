package ticksched

import (
	"fmt"
	"sync"
)

// SequenceState tracks where a Sequence is in its lifecycle.
type SequenceState int

const (
	SequenceIdle SequenceState = iota
	SequenceRunning
	SequenceWaiting
	SequenceExecuting
	SequenceComplete
	SequenceCancelled
)

func (st SequenceState) String() string {
	switch st {
	case SequenceIdle:
		return "idle"
	case SequenceRunning:
		return "running"
	case SequenceWaiting:
		return "waiting"
	case SequenceExecuting:
		return "executing"
	case SequenceComplete:
		return "complete"
	case SequenceCancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

type stepKind int

const (
	stepRun stepKind = iota
	stepWaitSeconds
	stepWaitTicks
	stepWaitRandom
)

type seqStep struct {
	kind          stepKind
	run           Callback
	runCancelable CancelableCallback
	seconds       float64
	ticks         int64
	minSeconds    float64
	maxSeconds    float64
}

// Sequence chains execution and wait steps into one ordered run backed by a
// single every-tick action, so callers get multi-step behavior without a
// hand-written state machine.
//
// Build with Then/ThenWait/... while idle, then call Execute once. Per tick
// the driving callback either checks an active wait (advancing past it when
// elapsed) or runs the next execution step / begins the next wait. At most
// one execution step runs per tick. Reaching the end of the step list
// self-cancels the backing action; there is no implicit looping.
//
// A step error or panic cancels the remainder of the sequence; an external
// Cancel, or a step invoking its cancel capability, does the same.
type Sequence struct {
	sched *Scheduler

	mu            sync.Mutex
	steps         []seqStep
	state         SequenceState
	cursor        int
	waitArmed     bool
	waitUntilTime float64
	waitUntilTick int64
	cancelled     bool
	id            ActionID
}

// NewSequence returns an empty sequence bound to s.
func (s *Scheduler) NewSequence() *Sequence {
	return &Sequence{sched: s}
}

// Then appends an execution step. Steps appended after Execute are ignored.
func (q *Sequence) Then(cb Callback) *Sequence {
	return q.append(seqStep{kind: stepRun, run: cb})
}

// ThenCancelable appends an execution step whose cancel capability cancels
// the whole sequence.
func (q *Sequence) ThenCancelable(cb CancelableCallback) *Sequence {
	return q.append(seqStep{kind: stepRun, runCancelable: cb})
}

// ThenWait appends a fixed wait of the given seconds.
func (q *Sequence) ThenWait(seconds float64) *Sequence {
	return q.append(seqStep{kind: stepWaitSeconds, seconds: seconds})
}

// ThenWaitTicks appends a fixed wait of n ticks.
func (q *Sequence) ThenWaitTicks(n int64) *Sequence {
	return q.append(seqStep{kind: stepWaitTicks, ticks: n})
}

// ThenWaitRandom appends a wait whose duration is sampled uniformly from
// [minSeconds, maxSeconds] when the wait begins, not when it is declared.
func (q *Sequence) ThenWaitRandom(minSeconds, maxSeconds float64) *Sequence {
	return q.append(seqStep{kind: stepWaitRandom, minSeconds: minSeconds, maxSeconds: maxSeconds})
}

func (q *Sequence) append(st seqStep) *Sequence {
	q.mu.Lock()
	if q.state == SequenceIdle {
		q.steps = append(q.steps, st)
	}
	q.mu.Unlock()
	return q
}

// Execute registers the sequence as one every-tick action and starts it.
// Calling it again (or after Cancel) returns the existing id and does
// nothing else.
func (q *Sequence) Execute() ActionID {
	q.mu.Lock()
	if q.state != SequenceIdle {
		id := q.id
		q.mu.Unlock()
		return id
	}
	q.state = SequenceRunning
	q.mu.Unlock()

	id := q.sched.RunEveryTickCancelable(q.tick, Unbounded)
	q.mu.Lock()
	q.id = id
	q.mu.Unlock()
	return id
}

// Cancel aborts the sequence and removes its backing action immediately.
// Safe to call at any point, from any goroutine, including step callbacks.
func (q *Sequence) Cancel() {
	q.mu.Lock()
	q.cancelled = true
	q.state = SequenceCancelled
	id := q.id
	q.mu.Unlock()
	if id != 0 {
		q.sched.Cancel(id)
	}
}

// State reports the current lifecycle state.
func (q *Sequence) State() SequenceState {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.state
}

// ID returns the backing action id, or 0 before Execute.
func (q *Sequence) ID() ActionID {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.id
}

// tick is the driving callback. It holds q.mu for its own bookkeeping but
// releases it around step invocation, so steps may call Cancel or schedule
// further work freely.
func (q *Sequence) tick(cancel func()) error {
	now, tickNo := q.sched.Now()

	q.mu.Lock()
	for {
		if q.cancelled {
			q.state = SequenceCancelled
			q.mu.Unlock()
			cancel()
			return nil
		}
		if q.cursor >= len(q.steps) {
			q.state = SequenceComplete
			q.mu.Unlock()
			cancel()
			return nil
		}
		st := q.steps[q.cursor]
		stepIdx := q.cursor
		if st.kind == stepRun {
			q.state = SequenceExecuting
			q.mu.Unlock()
			err := q.invokeStep(st)
			q.mu.Lock()
			if err != nil {
				// Fail fast: no resume at the next step. The error also
				// retires the backing action via the scheduler.
				q.cancelled = true
				q.state = SequenceCancelled
				q.mu.Unlock()
				cancel()
				return fmt.Errorf("sequence step %d: %w", stepIdx, err)
			}
			if q.cancelled {
				continue
			}
			q.cursor++
			q.mu.Unlock()
			return nil // one execution step per tick
		}

		// Wait step: arm on first visit, then poll until elapsed.
		if !q.waitArmed {
			switch st.kind {
			case stepWaitSeconds:
				q.waitUntilTime = now + st.seconds
			case stepWaitTicks:
				q.waitUntilTick = tickNo + st.ticks
			case stepWaitRandom:
				q.waitUntilTime = now + q.sched.sample(st.minSeconds, st.maxSeconds)
			}
			q.waitArmed = true
			q.state = SequenceWaiting
			q.mu.Unlock()
			return nil
		}
		elapsed := false
		if st.kind == stepWaitTicks {
			elapsed = tickNo >= q.waitUntilTick
		} else {
			elapsed = now >= q.waitUntilTime
		}
		if !elapsed {
			q.mu.Unlock()
			return nil
		}
		q.waitArmed = false
		q.cursor++
		// Fall through to start the next step on this same tick.
	}
}

func (q *Sequence) invokeStep(st seqStep) error {
	if st.runCancelable != nil {
		return st.runCancelable(q.flagCancelled)
	}
	return st.run()
}

func (q *Sequence) flagCancelled() {
	q.mu.Lock()
	q.cancelled = true
	q.mu.Unlock()
}
