package cronbridge

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
)

type SpecKind int

const (
	SpecCron SpecKind = iota
	SpecInterval
)

// ParsedSchedule is the normalized form of a schedule string.
// Source records which syntax matched ("cron", "duration", "hhmm").
type ParsedSchedule struct {
	Kind   SpecKind
	Cron   string
	Every  time.Duration
	Source string
}

// specParser accepts both 5-field and 6-field (with seconds) cron specs
// plus descriptors like "@hourly" and "@every 55m".
var specParser = cron.NewParser(
	cron.SecondOptional | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor,
)

// ParseSchedule normalizes a schedule string (see package doc for the
// accepted formats).
func ParseSchedule(raw string) (ParsedSchedule, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return ParsedSchedule{}, fmt.Errorf("empty schedule")
	}

	if rest, ok := strings.CutPrefix(s, "cron:"); ok {
		return parseCron(strings.TrimSpace(rest))
	}
	for _, p := range []string{"interval:", "every:"} {
		if rest, ok := strings.CutPrefix(s, p); ok {
			return parseInterval(strings.TrimSpace(rest))
		}
	}

	// Unprefixed: cron specs contain spaces or start with "@"; anything
	// else is an interval.
	if strings.HasPrefix(s, "@") || strings.ContainsAny(s, " \t") {
		return parseCron(s)
	}
	return parseInterval(s)
}

func parseCron(spec string) (ParsedSchedule, error) {
	if _, err := specParser.Parse(spec); err != nil {
		return ParsedSchedule{}, fmt.Errorf("invalid cron spec %q: %w", spec, err)
	}
	return ParsedSchedule{Kind: SpecCron, Cron: spec, Source: "cron"}, nil
}

func parseInterval(s string) (ParsedSchedule, error) {
	if d, err := time.ParseDuration(s); err == nil {
		if d <= 0 {
			return ParsedSchedule{}, fmt.Errorf("interval must be > 0, got %q", s)
		}
		return ParsedSchedule{Kind: SpecInterval, Every: d, Source: "duration"}, nil
	}
	if h, m, err := parseHHMM(s); err == nil {
		d := time.Duration(h)*time.Hour + time.Duration(m)*time.Minute
		if d <= 0 {
			return ParsedSchedule{}, fmt.Errorf("interval must be > 0, got %q", s)
		}
		return ParsedSchedule{Kind: SpecInterval, Every: d, Source: "hhmm"}, nil
	}
	return ParsedSchedule{}, fmt.Errorf("unrecognized schedule %q", s)
}

func parseHHMM(s string) (hour int, minute int, err error) {
	s = strings.TrimSpace(s)
	parts := strings.Split(s, ":")
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("invalid time %q, expected HH:MM", s)
	}
	h, err := strconv.Atoi(parts[0])
	if err != nil || h < 0 || h > 23 {
		return 0, 0, fmt.Errorf("invalid hour in %q", s)
	}
	m, err := strconv.Atoi(parts[1])
	if err != nil || m < 0 || m > 59 {
		return 0, 0, fmt.Errorf("invalid minute in %q", s)
	}
	return h, m, nil
}
