// Package systemd reports service state to systemd over sd_notify. Every
// call is a no-op when the process was not started by systemd.
package systemd

import (
	"context"
	"time"

	"github.com/coreos/go-systemd/v22/daemon"

	logx "taskpanel/pkg/logx"
)

func notify(log logx.Logger, state string) {
	sent, err := daemon.SdNotify(false, state)
	if err != nil {
		log.Warn("sd_notify failed", logx.String("state", state), logx.Err(err))
		return
	}
	if sent {
		log.Debug("sd_notify sent", logx.String("state", state))
	}
}

func Ready(log logx.Logger)    { notify(log, daemon.SdNotifyReady) }
func Stopping(log logx.Logger) { notify(log, daemon.SdNotifyStopping) }

// Reloading must be followed by Ready once the reload is done.
func Reloading(log logx.Logger) { notify(log, daemon.SdNotifyReloading) }

// Status sets the free-form status line shown by systemctl status.
func Status(log logx.Logger, msg string) { notify(log, "STATUS="+msg) }

// Watchdog pings the systemd watchdog at half the configured interval until
// ctx ends. It returns at once when WatchdogSec is not set for the unit.
func Watchdog(ctx context.Context, log logx.Logger) {
	interval, err := daemon.SdWatchdogEnabled(false)
	if err != nil || interval <= 0 {
		return
	}
	t := time.NewTicker(interval / 2)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			notify(log, daemon.SdNotifyWatchdog)
		}
	}
}
