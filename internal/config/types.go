package config

import (
	"fmt"
	"strings"

	logx "ticksched/pkg/logx"
)

// Config is the daemon configuration, loaded from a YAML file.
//
// Unknown keys are rejected so typos surface at load time instead of
// silently falling back to defaults.
type Config struct {
	Logging LoggingConfig `yaml:"logging"`
	Driver  DriverConfig  `yaml:"driver"`
	History HistoryConfig `yaml:"history"`
	Pprof   PprofConfig   `yaml:"pprof"`
	Jobs    []JobConfig   `yaml:"jobs"`
}

type LoggingConfig struct {
	Level   string     `yaml:"level"`
	Console *bool      `yaml:"console"` // pointer: omitted means true
	File    FileConfig `yaml:"file"`
}

type FileConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
}

// DriverConfig controls the tick loop.
type DriverConfig struct {
	// TicksPerSecond is the Execute() cadence. Default 20.
	TicksPerSecond float64 `yaml:"ticks_per_second"`
	// Watchdog feeds the systemd watchdog (when running under systemd with
	// WatchdogSec set) via a repeating action on the scheduler itself.
	Watchdog bool `yaml:"watchdog"`
}

// PprofConfig controls the optional debug HTTP listener.
type PprofConfig struct {
	Enabled              bool   `yaml:"enabled"`
	Address              string `yaml:"address"` // default 127.0.0.1:6060
	BlockProfileRate     int    `yaml:"block_profile_rate"`
	MutexProfileFraction int    `yaml:"mutex_profile_fraction"`
}

type HistoryConfig struct {
	Enabled     bool     `yaml:"enabled"`
	Path        string   `yaml:"path"`
	BusyTimeout Duration `yaml:"busy_timeout"`
	MaxRows     int      `yaml:"max_rows"`
}

// JobConfig declares one scheduled command job.
//
// Schedule accepts the formats understood by cronbridge.ParseSchedule:
// cron specs ("*/5 * * * *", "@hourly", "@every 55m"), bare durations
// ("55m"), HH:MM interval shorthand ("02:30"), and the explicit prefixes
// "cron:", "interval:", "every:".
type JobConfig struct {
	Name     string   `yaml:"name"`
	Schedule string   `yaml:"schedule"`
	Command  []string `yaml:"command"`
	Timeout  Duration `yaml:"timeout"`
	// MaxRuns retires the job after that many runs; 0 = unbounded.
	MaxRuns int `yaml:"max_runs"`
}

// Logx maps the logging section onto the logx service config.
func (c LoggingConfig) Logx() logx.Config {
	console := true
	if c.Console != nil {
		console = *c.Console
	}
	return logx.Config{
		Level:   c.Level,
		Console: console,
		File: logx.FileConfig{
			Enabled: c.File.Enabled,
			Path:    c.File.Path,
		},
	}
}

// Validate rejects configs the daemon cannot act on. It does not fill
// defaults; zero values keep their documented meaning at the point of use.
func (c *Config) Validate() error {
	if c.Driver.TicksPerSecond < 0 {
		return fmt.Errorf("driver.ticks_per_second must be >= 0")
	}
	seen := map[string]bool{}
	for i, j := range c.Jobs {
		name := strings.TrimSpace(j.Name)
		if name == "" {
			return fmt.Errorf("jobs[%d]: name required", i)
		}
		if seen[name] {
			return fmt.Errorf("jobs[%d]: duplicate name %q", i, name)
		}
		seen[name] = true
		if strings.TrimSpace(j.Schedule) == "" {
			return fmt.Errorf("jobs[%d] (%s): schedule required", i, name)
		}
		if len(j.Command) == 0 {
			return fmt.Errorf("jobs[%d] (%s): command required", i, name)
		}
	}
	return nil
}
