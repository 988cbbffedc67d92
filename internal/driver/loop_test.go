package driver

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"ticksched/internal/eventbus"
	logx "ticksched/pkg/logx"
	"ticksched/pkg/ticksched"
)

func TestLoopDrivesScheduler(t *testing.T) {
	t.Parallel()
	sched := ticksched.New(ticksched.Config{})

	var passes atomic.Int64
	var lastTick atomic.Int64
	sched.RunEveryTick(func() error {
		passes.Add(1)
		_, tick := sched.Now()
		lastTick.Store(tick)
		return nil
	}, ticksched.Unbounded)

	l := New(Config{TicksPerSecond: 200}, sched, eventbus.New(), logx.Nop())

	ctx, cancel := context.WithTimeout(context.Background(), 300*time.Millisecond)
	defer cancel()
	if err := l.Run(ctx); err != nil {
		t.Fatalf("Run: %v", err)
	}

	if passes.Load() < 10 {
		t.Fatalf("only %d passes in 300ms at 200 tps", passes.Load())
	}
	if lastTick.Load() != passes.Load()-1 {
		t.Fatalf("ticks not contiguous: last tick %d after %d passes", lastTick.Load(), passes.Load())
	}
}

func TestLoopStopsOnContextCancel(t *testing.T) {
	t.Parallel()
	sched := ticksched.New(ticksched.Config{})
	l := New(Config{TicksPerSecond: 100}, sched, nil, logx.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = l.Run(ctx)
	}()
	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("loop did not stop on cancel")
	}
}

func TestDefaultTickRate(t *testing.T) {
	t.Parallel()
	sched := ticksched.New(ticksched.Config{})
	l := New(Config{}, sched, nil, logx.Nop())
	if got := float64(l.lim.Limit()); got != DefaultTicksPerSecond {
		t.Fatalf("default rate = %v, want %v", got, DefaultTicksPerSecond)
	}

	l.SetTicksPerSecond(55)
	if got := float64(l.lim.Limit()); got != 55 {
		t.Fatalf("rate after SetTicksPerSecond = %v, want 55", got)
	}
	l.SetTicksPerSecond(0)
	if got := float64(l.lim.Limit()); got != DefaultTicksPerSecond {
		t.Fatalf("rate after reset = %v, want default", got)
	}
}
