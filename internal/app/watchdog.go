package app

import (
	"github.com/coreos/go-systemd/v22/daemon"

	logx "ticksched/pkg/logx"
	"ticksched/pkg/ticksched"
)

// armWatchdog keeps the systemd watchdog fed by the scheduler itself: the
// notify action only fires while Execute passes keep happening, so a stalled
// tick loop makes the watchdog trip. No-op outside systemd or when
// WatchdogSec is unset.
func (a *App) armWatchdog() {
	wd, err := daemon.SdWatchdogEnabled(false)
	if err != nil || wd <= 0 {
		a.log.Debug("systemd watchdog not enabled", logx.Err(err))
		return
	}
	interval := (wd / 2).Seconds()
	a.sched.RepeatEverySeconds(func() error {
		_, err := daemon.SdNotify(false, daemon.SdNotifyWatchdog)
		return err
	}, interval, ticksched.Unbounded)
	a.log.Info("systemd watchdog armed", logx.Float64("interval_s", interval))
}
