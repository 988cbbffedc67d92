package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	yaml "go.yaml.in/yaml/v3"

	logx "ticksched/pkg/logx"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestManagerLoad(t *testing.T) {
	t.Parallel()
	path := writeConfig(t, `
logging:
  level: debug
driver:
  ticks_per_second: 50
  watchdog: true
history:
  enabled: true
  path: /tmp/hist.db
  busy_timeout: 2s
  max_rows: 500
jobs:
  - name: backup
    schedule: "@hourly"
    command: ["/usr/local/bin/backup", "--fast"]
    timeout: 5m
    max_runs: 10
`)

	m := NewManager(path)
	cfg, err := m.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Driver.TicksPerSecond != 50 || !cfg.Driver.Watchdog {
		t.Fatalf("driver section = %+v", cfg.Driver)
	}
	if cfg.History.BusyTimeout.Std() != 2*time.Second {
		t.Fatalf("busy_timeout = %v", cfg.History.BusyTimeout)
	}
	if len(cfg.Jobs) != 1 || cfg.Jobs[0].Name != "backup" || cfg.Jobs[0].Timeout.Std() != 5*time.Minute {
		t.Fatalf("jobs = %+v", cfg.Jobs)
	}
	if got := m.Get(); got != cfg {
		t.Fatal("Get did not return the committed config")
	}
}

func TestManagerLoadRejectsUnknownKeys(t *testing.T) {
	t.Parallel()
	path := writeConfig(t, `
driver:
  tick_rate: 50
`)
	if _, err := NewManager(path).Load(); err == nil {
		t.Fatal("expected error for unknown key")
	}
}

func TestManagerLoadRejectsInvalid(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name string
		yaml string
	}{
		{"negative tick rate", "driver:\n  ticks_per_second: -1\n"},
		{"job without name", "jobs:\n  - schedule: 10m\n    command: [\"true\"]\n"},
		{"job without schedule", "jobs:\n  - name: a\n    command: [\"true\"]\n"},
		{"job without command", "jobs:\n  - name: a\n    schedule: 10m\n"},
		{"duplicate job name", "jobs:\n  - name: a\n    schedule: 10m\n    command: [\"true\"]\n  - name: a\n    schedule: 20m\n    command: [\"true\"]\n"},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			path := writeConfig(t, tt.yaml)
			if _, err := NewManager(path).Load(); err == nil {
				t.Fatal("expected validation error")
			}
		})
	}
}

func TestLoggingDefaults(t *testing.T) {
	t.Parallel()
	var lc LoggingConfig
	if got := lc.Logx(); !got.Console {
		t.Fatal("console should default to true when omitted")
	}

	off := false
	lc.Console = &off
	if got := lc.Logx(); got.Console {
		t.Fatal("explicit console: false ignored")
	}
}

func TestDurationUnmarshal(t *testing.T) {
	t.Parallel()
	tests := []struct {
		raw  string
		want time.Duration
		ok   bool
	}{
		{`"500ms"`, 500 * time.Millisecond, true},
		{`"1m30s"`, 90 * time.Second, true},
		{`""`, 0, true},
		{`"-1s"`, 0, false},
		{`"ten minutes"`, 0, false},
	}
	for _, tt := range tests {
		var d Duration
		err := yaml.Unmarshal([]byte(tt.raw), &d)
		if tt.ok != (err == nil) {
			t.Fatalf("unmarshal %s: err = %v, want ok=%v", tt.raw, err, tt.ok)
		}
		if tt.ok && d.Std() != tt.want {
			t.Fatalf("unmarshal %s = %v, want %v", tt.raw, d.Std(), tt.want)
		}
	}
}

func TestPublishDropsStaleForSlowSubscriber(t *testing.T) {
	t.Parallel()
	m := NewManager("unused")
	m.SetLogger(logx.Nop())

	ch := m.Subscribe(1)
	defer m.Unsubscribe(ch)

	first := &Config{}
	second := &Config{}
	m.publish(first)
	m.publish(second) // buffer full: stale item dropped, newest pushed

	got := <-ch
	if got != second {
		t.Fatal("subscriber did not receive the newest config")
	}
	select {
	case extra := <-ch:
		t.Fatalf("unexpected extra config %v", extra)
	default:
	}
}

func TestReloadCommitsOnlyValidConfig(t *testing.T) {
	t.Parallel()
	path := writeConfig(t, "driver:\n  ticks_per_second: 10\n")
	m := NewManager(path)
	m.SetLogger(logx.Nop())
	if _, err := m.Load(); err != nil {
		t.Fatalf("Load: %v", err)
	}

	ch := m.Subscribe(1)
	defer m.Unsubscribe(ch)

	// Broken content: rejected, nothing published, old config kept.
	if err := os.WriteFile(path, []byte("driver:\n  ticks_per_second: -5\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	m.reload()
	if m.Get().Driver.TicksPerSecond != 10 {
		t.Fatal("invalid reload replaced the committed config")
	}
	select {
	case <-ch:
		t.Fatal("invalid config was published")
	default:
	}

	// Valid content: committed and published.
	if err := os.WriteFile(path, []byte("driver:\n  ticks_per_second: 25\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	m.reload()
	select {
	case cfg := <-ch:
		if cfg.Driver.TicksPerSecond != 25 {
			t.Fatalf("published ticks_per_second = %v, want 25", cfg.Driver.TicksPerSecond)
		}
	case <-time.After(time.Second):
		t.Fatal("valid reload was not published")
	}

	// Same content again: hash dedupe, no second publish.
	m.reload()
	select {
	case <-ch:
		t.Fatal("unchanged config was republished")
	default:
	}
}
