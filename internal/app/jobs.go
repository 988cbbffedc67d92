package app

import (
	"context"
	"fmt"
	"os/exec"
	"strings"
	"sync"
	"time"

	"ticksched/internal/config"
	logx "ticksched/pkg/logx"
	"ticksched/pkg/ticksched"
)

// applyJobs reconciles the bridge's job set with the config: every job in
// next is upserted, jobs present in prev but gone from next are removed.
func (a *App) applyJobs(prev, next []config.JobConfig) error {
	want := map[string]bool{}
	var firstErr error
	for _, j := range next {
		want[j.Name] = true
		cb := commandJob(j, a.log.With(logx.String("job", j.Name)))
		if err := a.bridge.Add(j.Name, j.Schedule, j.MaxRuns, cb); err != nil {
			a.log.Warn("job register failed",
				logx.String("job", j.Name),
				logx.String("schedule", j.Schedule),
				logx.Err(err))
			if firstErr == nil {
				firstErr = fmt.Errorf("job %s: %w", j.Name, err)
			}
		}
	}
	for _, j := range prev {
		if !want[j.Name] {
			a.bridge.Remove(j.Name)
		}
	}
	return firstErr
}

// commandJob adapts a configured command into a scheduler callback.
//
// The process runs on its own goroutine so a slow command never delays the
// tick loop; if the previous run is still going the new one is skipped
// (overlap is more often a bug than a feature for command jobs). The
// callback itself therefore never returns an error; run failures are logged.
func commandJob(j config.JobConfig, log logx.Logger) ticksched.Callback {
	argv := append([]string(nil), j.Command...)
	timeout := j.Timeout.Std()

	var (
		mu      sync.Mutex
		running bool
	)
	return func() error {
		mu.Lock()
		if running {
			mu.Unlock()
			log.Debug("run skipped (previous run still going)")
			return nil
		}
		running = true
		mu.Unlock()

		go func() {
			defer func() {
				mu.Lock()
				running = false
				mu.Unlock()
			}()

			ctx := context.Background()
			if timeout > 0 {
				var cancel context.CancelFunc
				ctx, cancel = context.WithTimeout(ctx, timeout)
				defer cancel()
			}

			start := time.Now()
			cmd := exec.CommandContext(ctx, argv[0], argv[1:]...)
			out, err := cmd.CombinedOutput()
			dur := time.Since(start)
			if err != nil {
				log.Warn("command failed",
					logx.Duration("dur", dur),
					logx.Err(err),
					logx.String("output", trimOutput(out)))
				return
			}
			log.Debug("command ok", logx.Duration("dur", dur))
		}()
		return nil
	}
}

func trimOutput(b []byte) string {
	const maxLen = 512
	s := strings.TrimSpace(string(b))
	if len(s) > maxLen {
		s = s[:maxLen-3] + "..."
	}
	return s
}
