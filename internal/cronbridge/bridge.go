package cronbridge

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	logx "ticksched/pkg/logx"
	"ticksched/pkg/ticksched"
)

// Bridge registers named wall-clock jobs on a tick scheduler.
type Bridge struct {
	sched *ticksched.Scheduler
	log   logx.Logger
	now   func() time.Time // injectable for tests

	mu   sync.Mutex
	jobs map[string]*job
}

type job struct {
	name      string
	schedule  string
	parsed    ParsedSchedule
	cronSched cron.Schedule
	run       ticksched.Callback
	action    ticksched.ActionID
	runs      int
	maxRuns   int // 0 = unbounded
	removed   bool
}

// JobInfo is a copy of one job's registration state.
type JobInfo struct {
	Name     string
	Schedule string
	Runs     int
	MaxRuns  int
}

func New(sched *ticksched.Scheduler, log logx.Logger) *Bridge {
	return &Bridge{
		sched: sched,
		log:   log,
		now:   time.Now,
		jobs:  map[string]*job{},
	}
}

// Add registers (or replaces, by name) a job. maxRuns retires the job after
// that many runs; 0 means unbounded.
//
// A failing run is logged but never kills the schedule; the next occurrence
// still happens. That intentionally differs from the scheduler's own
// fail-fast retirement, because wall-clock jobs (backups, probes) are
// expected to survive flaky runs.
func (b *Bridge) Add(name, schedule string, maxRuns int, run ticksched.Callback) error {
	ps, err := ParseSchedule(schedule)
	if err != nil {
		return err
	}

	j := &job{name: name, schedule: schedule, parsed: ps, run: run, maxRuns: maxRuns}

	b.mu.Lock()
	if old, ok := b.jobs[name]; ok {
		old.removed = true
		b.sched.Cancel(old.action)
	}
	b.jobs[name] = j
	b.mu.Unlock()

	switch ps.Kind {
	case SpecCron:
		cs, err := specParser.Parse(ps.Cron)
		if err != nil {
			// ParseSchedule already validated the spec.
			return fmt.Errorf("invalid cron spec %q: %w", ps.Cron, err)
		}
		j.cronSched = cs
		b.scheduleNext(j)
	case SpecInterval:
		id := b.sched.RepeatEverySeconds(b.wrapInterval(j), ps.Every.Seconds(), ticksched.Unbounded)
		b.commitAction(j, id)
	}

	b.log.Debug("job registered",
		logx.String("job", name),
		logx.String("schedule", schedule),
		logx.String("source", ps.Source))
	return nil
}

// Remove unregisters the named job and cancels its pending action.
// Returns false if the name is unknown.
func (b *Bridge) Remove(name string) bool {
	b.mu.Lock()
	j, ok := b.jobs[name]
	if ok {
		j.removed = true
		delete(b.jobs, name)
	}
	b.mu.Unlock()
	if !ok {
		return false
	}
	b.sched.Cancel(j.action)
	b.log.Debug("job removed", logx.String("job", name))
	return true
}

// List returns all registered jobs, sorted by name.
func (b *Bridge) List() []JobInfo {
	b.mu.Lock()
	out := make([]JobInfo, 0, len(b.jobs))
	for _, j := range b.jobs {
		out = append(out, JobInfo{Name: j.name, Schedule: j.schedule, Runs: j.runs, MaxRuns: j.maxRuns})
	}
	b.mu.Unlock()
	sort.Slice(out, func(i, k int) bool { return out[i].Name < out[k].Name })
	return out
}

// scheduleNext arms one one-shot action for the job's next cron activation.
// The action's callback runs the job and re-registers the occurrence after
// it, so the chain survives failing runs.
func (b *Bridge) scheduleNext(j *job) {
	now := b.now()
	next := j.cronSched.Next(now)
	if next.IsZero() {
		b.log.Warn("job has no next activation", logx.String("job", j.name))
		return
	}
	delay := next.Sub(now).Seconds()

	id := b.sched.RunOnceAfterSeconds(func() error {
		runs, done, removed := b.countRun(j)
		if removed {
			return nil
		}
		if err := j.run(); err != nil {
			b.log.Warn("job run failed",
				logx.String("job", j.name), logx.Int("runs", runs), logx.Err(err))
		}
		if done {
			b.Remove(j.name)
			return nil
		}
		b.scheduleNext(j)
		return nil
	}, delay)
	b.commitAction(j, id)
}

// wrapInterval adapts the job for a native repeating action. Errors are
// swallowed after logging so the repeat is not retired by the scheduler.
func (b *Bridge) wrapInterval(j *job) ticksched.Callback {
	return func() error {
		runs, done, removed := b.countRun(j)
		if removed {
			return nil
		}
		if err := j.run(); err != nil {
			b.log.Warn("job run failed",
				logx.String("job", j.name), logx.Int("runs", runs), logx.Err(err))
		}
		if done {
			b.Remove(j.name)
		}
		return nil
	}
}

func (b *Bridge) countRun(j *job) (runs int, done, removed bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if j.removed {
		return j.runs, false, true
	}
	j.runs++
	return j.runs, j.maxRuns > 0 && j.runs >= j.maxRuns, false
}

// commitAction records the job's current backing action, cancelling it
// straight away if the job was removed while unlocked.
func (b *Bridge) commitAction(j *job, id ticksched.ActionID) {
	b.mu.Lock()
	if j.removed {
		b.mu.Unlock()
		b.sched.Cancel(id)
		return
	}
	j.action = id
	b.mu.Unlock()
}
