// Package history records what the scheduler ran: one row per action fire,
// failure or retirement, consumed from the event bus. It journals runs, not
// schedules; nothing here survives a restart as far as scheduling goes.
package history

import (
	"context"
	"errors"
	"time"
)

// ErrDisabled is returned by operations on a store that has no backend.
var ErrDisabled = errors.New("history: store disabled")

type Config struct {
	Enabled     bool
	Path        string
	BusyTimeout time.Duration
	MaxRows     int
}

// Entry is one recorded scheduler event.
type Entry struct {
	At           time.Time
	Action       uint64
	Policy       string
	Event        string // "action.fired", "action.failed", "action.retired"
	Tick         int64
	SchedSeconds float64
	TookMS       int64
	Executions   int
	Error        string
}

// Store persists entries. Implementations must tolerate concurrent Append
// and Recent calls.
type Store interface {
	Append(ctx context.Context, e Entry) error
	Recent(ctx context.Context, limit int) ([]Entry, error)
	Close() error
}
