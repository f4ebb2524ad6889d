package keepalive

import (
	"context"
	"time"

	"github.com/coreos/go-systemd/v22/daemon"

	"leadbot/pkg/logx"
)

// Watchdog reports readiness to systemd and, when WatchdogSec is configured
// for the unit, pings the watchdog at half its interval until ctx is done.
// Outside systemd (no NOTIFY_SOCKET) it returns immediately.
func Watchdog(ctx context.Context, log logx.Logger) {
	sent, err := daemon.SdNotify(false, daemon.SdNotifyReady)
	if err != nil {
		log.Warn("sd_notify READY failed", logx.Err(err))
		return
	}
	if !sent {
		log.Debug("not running under systemd notify; watchdog idle")
		return
	}

	every, err := daemon.SdWatchdogEnabled(false)
	if err != nil {
		log.Warn("systemd watchdog config invalid", logx.Err(err))
		return
	}
	if every <= 0 {
		log.Info("systemd notified ready (watchdog off)")
		return
	}
	log.Info("systemd watchdog enabled", logx.Duration("interval", every))

	t := time.NewTicker(every / 2)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			_, _ = daemon.SdNotify(false, daemon.SdNotifyStopping)
			return
		case <-t.C:
			if _, err := daemon.SdNotify(false, daemon.SdNotifyWatchdog); err != nil {
				log.Warn("sd_notify WATCHDOG failed", logx.Err(err))
			}
		}
	}
}
