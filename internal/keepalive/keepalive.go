// Package keepalive keeps the process from being idled by its hosting
// platform: a single background loop periodically GETs the service's own
// /ping endpoint. Under systemd, Watchdog reports liveness via sd_notify
// instead, which needs no network round-trip.
package keepalive

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	rtsup "leadbot/internal/runtime/supervisor"
	"leadbot/pkg/logx"
)

const (
	DefaultInitialDelay = 60 * time.Second
	DefaultInterval     = 840 * time.Second
	DefaultTimeout      = 30 * time.Second
	DefaultPath         = "/ping"
)

type Config struct {
	// Disabled is set in debug/development mode; Start then does nothing.
	Disabled bool
	// SelfURL is the service's public base URL. Empty means "warn and wait".
	SelfURL      string
	Path         string
	InitialDelay time.Duration
	Schedule     cron.Schedule
	Timeout      time.Duration
}

// Supervisor owns the keepalive loop. Build one per process; Start is
// idempotent and safe for concurrent callers.
type Supervisor struct {
	cfg  Config
	log  logx.Logger
	http *http.Client

	mu      sync.Mutex
	started bool
	sup     *rtsup.Supervisor

	// loop is the goroutine entry point; tests replace it to count starts.
	loop func(ctx context.Context)
}

func New(cfg Config, log logx.Logger) *Supervisor {
	if log.IsZero() {
		log = logx.Nop()
	}
	if cfg.Path == "" {
		cfg.Path = DefaultPath
	}
	if cfg.InitialDelay < 0 {
		cfg.InitialDelay = 0
	}
	if cfg.Schedule == nil {
		cfg.Schedule = Every(DefaultInterval)
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	cfg.SelfURL = strings.TrimRight(strings.TrimSpace(cfg.SelfURL), "/")

	k := &Supervisor{cfg: cfg, log: log, http: &http.Client{Timeout: cfg.Timeout}}
	k.loop = k.run
	return k
}

// Start launches the loop once. It reports whether this call started it;
// it returns false when already running or disabled.
func (k *Supervisor) Start(ctx context.Context) bool {
	k.mu.Lock()
	defer k.mu.Unlock()
	if k.started {
		return false
	}
	if k.cfg.Disabled {
		k.log.Info("keepalive disabled (debug mode)")
		return false
	}
	k.started = true
	k.sup = rtsup.New(ctx, rtsup.WithLogger(k.log))
	k.sup.Go0("keepalive.loop", k.loop)
	return true
}

func (k *Supervisor) Running() bool {
	k.mu.Lock()
	defer k.mu.Unlock()
	return k.started
}

// Stop cancels the loop at process shutdown. The supervisor cannot be
// restarted afterwards.
func (k *Supervisor) Stop(ctx context.Context) error {
	k.mu.Lock()
	sup := k.sup
	k.mu.Unlock()
	if sup == nil {
		return nil
	}
	return sup.Stop(ctx)
}

func (k *Supervisor) run(ctx context.Context) {
	k.log.Info("keepalive started",
		logx.String("target", k.target()),
		logx.Duration("initial_delay", k.cfg.InitialDelay),
	)
	if !sleep(ctx, k.cfg.InitialDelay) {
		return
	}
	for {
		if k.cfg.SelfURL == "" {
			k.log.Warn("keepalive: SITE_NAME not set, skipping ping")
		} else if err := k.Ping(ctx); err != nil {
			var se *StatusError
			if errors.As(err, &se) {
				k.log.Warn("keepalive ping returned non-200", logx.Int("status", se.StatusCode), logx.String("url", k.target()))
			} else if ctx.Err() == nil {
				k.log.Error("keepalive ping failed", logx.Err(err), logx.String("url", k.target()))
			}
		} else {
			k.log.Debug("keepalive ping ok", logx.String("url", k.target()))
		}

		now := time.Now()
		if !sleep(ctx, k.cfg.Schedule.Next(now).Sub(now)) {
			return
		}
	}
}

func (k *Supervisor) target() string {
	if k.cfg.SelfURL == "" {
		return ""
	}
	return k.cfg.SelfURL + k.cfg.Path
}

// StatusError is a non-200 answer from the ping target.
type StatusError struct {
	StatusCode int
}

func (e *StatusError) Error() string { return fmt.Sprintf("keepalive: http %d", e.StatusCode) }

// Ping issues one GET to the self URL.
func (k *Supervisor) Ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, k.target(), http.NoBody)
	if err != nil {
		return err
	}
	req.Header.Set("User-Agent", "leadbot-keepalive/1")
	resp, err := k.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4<<10))
	if resp.StatusCode != http.StatusOK {
		return &StatusError{StatusCode: resp.StatusCode}
	}
	return nil
}

// sleep waits d or until ctx is done; it reports false on cancellation.
func sleep(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
