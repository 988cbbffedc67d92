package ticksched

import (
	"errors"
	"testing"
)

func TestSequenceRunsStepsInOrderWithWait(t *testing.T) {
	t.Parallel()
	s := newTestScheduler()
	s.Execute(0, 0)

	var got []string
	q := s.NewSequence().
		Then(func() error {
			got = append(got, "a")
			return nil
		}).
		ThenWait(2.0).
		Then(func() error {
			got = append(got, "b")
			return nil
		})
	q.Execute()

	// 0.5s per tick. Step a on the first visit, b only after >= 2s of wait.
	for tick := int64(1); tick <= 10; tick++ {
		s.Execute(float64(tick)*0.5, tick)
	}

	if len(got) != 2 || got[0] != "a" || got[1] != "b" {
		t.Fatalf("steps ran as %v, want [a b]", got)
	}
	if st := q.State(); st != SequenceComplete {
		t.Fatalf("state = %v, want complete", st)
	}
	if s.Count() != 0 {
		t.Fatalf("Count() = %d after sequence completed, want 0", s.Count())
	}
}

func TestSequenceWaitDelaysFollowingStep(t *testing.T) {
	t.Parallel()
	s := newTestScheduler()
	s.Execute(0, 0)

	var bAt float64 = -1
	s.NewSequence().
		Then(func() error { return nil }).
		ThenWait(2.0).
		Then(func() error {
			bAt, _ = s.Now()
			return nil
		}).
		Execute()

	for tick := int64(1); tick <= 12; tick++ {
		s.Execute(float64(tick)*0.5, tick)
	}

	// a fires at t=0.5, the wait arms at t=1.0, so b may not run before t=3.0.
	if bAt < 3.0 {
		t.Fatalf("second step ran at t=%.2f, want >= 3.0", bAt)
	}
}

func TestSequenceWaitTicks(t *testing.T) {
	t.Parallel()
	s := newTestScheduler()
	s.Execute(0, 0)

	var bTick int64 = -1
	s.NewSequence().
		Then(func() error { return nil }).
		ThenWaitTicks(4).
		Then(func() error {
			_, bTick = s.Now()
			return nil
		}).
		Execute()

	for tick := int64(1); tick <= 10; tick++ {
		s.Execute(0, tick)
	}

	// a at tick 1, wait armed at tick 2 until tick 6, b at tick 6.
	if bTick != 6 {
		t.Fatalf("second step ran at tick %d, want 6", bTick)
	}
}

func TestSequenceWaitRandomWithinBounds(t *testing.T) {
	t.Parallel()
	s := newTestScheduler()
	s.Execute(0, 0)

	var armAt, bAt float64 = -1, -1
	s.NewSequence().
		Then(func() error {
			armAt, _ = s.Now()
			return nil
		}).
		ThenWaitRandom(1.0, 2.0).
		Then(func() error {
			bAt, _ = s.Now()
			return nil
		}).
		Execute()

	for tick := int64(1); tick <= 40; tick++ {
		s.Execute(float64(tick)*0.1, tick)
	}
	if bAt < 0 {
		t.Fatal("sequence never finished")
	}
	// The wait is armed one tick after the step that preceded it ran.
	gap := bAt - (armAt + 0.1)
	if gap < 1.0 || gap > 2.0+0.1 {
		t.Fatalf("random wait lasted %.2fs, want within [1.0, 2.0]", gap)
	}
}

func TestSequenceStepErrorCancelsRemainder(t *testing.T) {
	t.Parallel()
	s := newTestScheduler()

	thirdRan := false
	q := s.NewSequence().
		Then(func() error { return nil }).
		Then(func() error { return errors.New("boom") }).
		Then(func() error {
			thirdRan = true
			return nil
		})
	q.Execute()

	for tick := int64(0); tick < 6; tick++ {
		s.Execute(0, tick)
	}
	if thirdRan {
		t.Fatal("step after failing step still ran")
	}
	if st := q.State(); st != SequenceCancelled {
		t.Fatalf("state = %v, want cancelled", st)
	}
	if s.Count() != 0 {
		t.Fatalf("Count() = %d, want 0 (backing action retired)", s.Count())
	}
}

func TestSequenceExternalCancel(t *testing.T) {
	t.Parallel()
	s := newTestScheduler()

	ran := 0
	q := s.NewSequence().
		Then(func() error {
			ran++
			return nil
		}).
		ThenWaitTicks(100).
		Then(func() error {
			ran++
			return nil
		})
	q.Execute()

	s.Execute(0, 0) // runs step 1
	s.Execute(0, 1) // arms the wait
	q.Cancel()
	for tick := int64(2); tick < 10; tick++ {
		s.Execute(0, tick)
	}

	if ran != 1 {
		t.Fatalf("%d steps ran, want 1", ran)
	}
	if st := q.State(); st != SequenceCancelled {
		t.Fatalf("state = %v, want cancelled", st)
	}
	if s.Count() != 0 {
		t.Fatalf("Count() = %d after Cancel, want 0", s.Count())
	}
}

func TestSequenceStepCancelCapability(t *testing.T) {
	t.Parallel()
	s := newTestScheduler()

	laterRan := false
	q := s.NewSequence().
		ThenCancelable(func(cancel func()) error {
			cancel()
			return nil
		}).
		Then(func() error {
			laterRan = true
			return nil
		})
	q.Execute()

	for tick := int64(0); tick < 4; tick++ {
		s.Execute(0, tick)
	}
	if laterRan {
		t.Fatal("step after self-cancelling step still ran")
	}
	if st := q.State(); st != SequenceCancelled {
		t.Fatalf("state = %v, want cancelled", st)
	}
}

func TestSequenceStateTransitions(t *testing.T) {
	t.Parallel()
	s := newTestScheduler()
	s.Execute(0, 0)

	q := s.NewSequence().
		Then(func() error { return nil }).
		ThenWait(10).
		Then(func() error { return nil })

	if st := q.State(); st != SequenceIdle {
		t.Fatalf("state before Execute = %v, want idle", st)
	}
	q.Execute()
	if st := q.State(); st != SequenceRunning {
		t.Fatalf("state after Execute = %v, want running", st)
	}

	s.Execute(0.5, 1) // runs step 1
	s.Execute(1.0, 2) // arms the wait
	if st := q.State(); st != SequenceWaiting {
		t.Fatalf("state during wait = %v, want waiting", st)
	}
}

func TestSequenceExecuteIsIdempotent(t *testing.T) {
	t.Parallel()
	s := newTestScheduler()

	count := 0
	q := s.NewSequence().Then(func() error {
		count++
		return nil
	})
	id1 := q.Execute()
	id2 := q.Execute()
	if id1 != id2 {
		t.Fatalf("second Execute returned new id %d, want %d", id2, id1)
	}
	if s.Count() != 1 {
		t.Fatalf("Count() = %d, want a single backing action", s.Count())
	}

	for tick := int64(0); tick < 3; tick++ {
		s.Execute(0, tick)
	}
	if count != 1 {
		t.Fatalf("step ran %d times, want 1", count)
	}
}

func TestSequenceStepsAfterExecuteIgnored(t *testing.T) {
	t.Parallel()
	s := newTestScheduler()

	lateRan := false
	q := s.NewSequence().Then(func() error { return nil })
	q.Execute()
	q.Then(func() error {
		lateRan = true
		return nil
	})

	for tick := int64(0); tick < 4; tick++ {
		s.Execute(0, tick)
	}
	if lateRan {
		t.Fatal("step appended after Execute ran")
	}
	if st := q.State(); st != SequenceComplete {
		t.Fatalf("state = %v, want complete", st)
	}
}

func TestSequenceOneExecutionStepPerTick(t *testing.T) {
	t.Parallel()
	s := newTestScheduler()

	var ticks []int64
	step := func() error {
		_, tick := s.Now()
		ticks = append(ticks, tick)
		return nil
	}
	s.NewSequence().Then(step).Then(step).Then(step).Execute()

	for tick := int64(0); tick < 6; tick++ {
		s.Execute(0, tick)
	}
	if len(ticks) != 3 {
		t.Fatalf("%d steps ran, want 3", len(ticks))
	}
	for i := 1; i < len(ticks); i++ {
		if ticks[i] == ticks[i-1] {
			t.Fatalf("two execution steps ran on tick %d", ticks[i])
		}
	}
}
