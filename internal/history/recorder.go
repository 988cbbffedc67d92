package history

import (
	"context"
	"time"

	"ticksched/internal/eventbus"
	logx "ticksched/pkg/logx"
	"ticksched/pkg/ticksched"
)

// Recorder consumes scheduler events from the bus and appends them to a
// store. It is the only writer; the bus keeps the scheduler decoupled from
// storage latency (a slow disk drops history events, never delays ticks).
type Recorder struct {
	store Store
	bus   eventbus.Bus
	log   logx.Logger
}

func NewRecorder(store Store, bus eventbus.Bus, log logx.Logger) *Recorder {
	return &Recorder{store: store, bus: bus, log: log}
}

// Run blocks until ctx is done.
func (r *Recorder) Run(ctx context.Context) {
	ch, unsub := r.bus.Subscribe(64)
	defer unsub()

	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-ch:
			if !ok {
				return
			}
			r.record(ev)
		}
	}
}

func (r *Recorder) record(ev eventbus.Event) {
	switch ev.Type {
	case ticksched.EventActionFired, ticksched.EventActionFailed, ticksched.EventActionRetired:
	default:
		return
	}
	ae, ok := ev.Data.(ticksched.ActionEvent)
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	err := r.store.Append(ctx, Entry{
		At:           ev.Time,
		Action:       uint64(ae.ID),
		Policy:       ae.Policy,
		Event:        ev.Type,
		Tick:         ae.Tick,
		SchedSeconds: ae.Time,
		TookMS:       ae.DurationMS,
		Executions:   ae.Executions,
		Error:        ae.Error,
	})
	if err != nil {
		r.log.Warn("history append failed",
			logx.Uint64("action", uint64(ae.ID)), logx.Err(err))
	}
}
