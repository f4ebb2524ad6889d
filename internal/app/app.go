package app

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"time"

	"leadbot/internal/config"
	"leadbot/internal/keepalive"
	"leadbot/internal/lead"
	rtsup "leadbot/internal/runtime/supervisor"
	"leadbot/internal/transport"
	"leadbot/internal/transport/telegram"
	"leadbot/internal/web"
	"leadbot/pkg/logx"
)

// maxWatchRestarts bounds config watcher restarts; past it the app keeps
// running on the config it has.
const maxWatchRestarts = 10

type App struct {
	cfgm *config.Manager
	cfg  *config.Config

	log  logx.Logger
	logs *logx.Service

	web       *web.Service
	keepalive *keepalive.Supervisor

	sup *rtsup.Supervisor
}

// New loads the config from cfgPath (optional) and the environment.
func New(cfgPath string) (*App, error) {
	return NewWithManager(config.NewManager(cfgPath, nil))
}

func NewWithManager(cfgm *config.Manager) (*App, error) {
	cfg, err := cfgm.Load()
	if err != nil {
		return nil, err
	}

	var opsSender transport.Sender
	if cfg.Logging.Telegram.Enabled && strings.TrimSpace(cfg.Telegram.Token) != "" {
		bot, err := telegram.NewBot(cfg.Telegram.Token, cfg.Telegram.APIURL)
		if err != nil {
			return nil, err
		}
		opsSender = bot
	}
	logs, log := logx.New(mapLogConfig(cfg), opsSender)
	cfgm.SetLogger(log.With(logx.String("comp", "config")))

	if cfg.Telegram.Token == "" || cfg.Telegram.ChatID == "" {
		log.Warn("TELEGRAM_BOT_TOKEN or TELEGRAM_CHAT_ID is not set; lead delivery will fail", logx.String("comp", "app"))
	}

	delivery := telegram.NewClient(telegram.ClientConfig{
		Token:   cfg.Telegram.Token,
		ChatID:  cfg.Telegram.ChatID,
		BaseURL: cfg.Telegram.APIURL,
		Timeout: config.DurationOr(cfg.Telegram.Timeout, telegram.DefaultTimeout),
	})

	site, err := web.NewServer(web.Options{
		SiteLabel: cfg.SiteLabel(),
		PublicURL: cfg.PublicURL(),
		StaticDir: cfg.Site.StaticDir,
		Now:       lead.Now,
	}, delivery, log.With(logx.String("comp", "web")))
	if err != nil {
		return nil, err
	}
	httpSvc := web.NewService(web.ServiceConfig{
		Addr:            cfg.Addr(),
		ReadTimeout:     config.DurationOr(cfg.Server.ReadTimeout, 0),
		WriteTimeout:    config.DurationOr(cfg.Server.WriteTimeout, 0),
		IdleTimeout:     config.DurationOr(cfg.Server.IdleTimeout, 0),
		ShutdownTimeout: config.DurationOr(cfg.Server.ShutdownTimeout, 5*time.Second),
	}, site.Handler(), log.With(logx.String("comp", "http")))

	sched, err := keepalive.ParseSchedule(cfg.Keepalive.Interval)
	if err != nil {
		return nil, errors.Join(errors.New("keepalive.interval"), err)
	}
	ka := keepalive.New(keepalive.Config{
		Disabled:     !cfg.KeepaliveEnabled(),
		SelfURL:      cfg.SelfURL(),
		InitialDelay: config.DurationOr(cfg.Keepalive.InitialDelay, keepalive.DefaultInitialDelay),
		Schedule:     sched,
		Timeout:      config.DurationOr(cfg.Keepalive.Timeout, keepalive.DefaultTimeout),
	}, log.With(logx.String("comp", "keepalive")))

	return &App{
		cfgm:      cfgm,
		cfg:       cfg,
		log:       log.With(logx.String("comp", "app")),
		logs:      logs,
		web:       httpSvc,
		keepalive: ka,
	}, nil
}

func mapLogConfig(cfg *config.Config) logx.Config {
	chatID, _ := strconv.ParseInt(strings.TrimSpace(cfg.Logging.Telegram.ChatID), 10, 64)
	return logx.Config{
		Level:   cfg.Logging.Level,
		Console: cfg.Logging.Console,
		File: logx.FileConfig{
			Enabled: cfg.Logging.File.Enabled,
			Path:    cfg.Logging.File.Path,
		},
		Telegram: logx.TelegramConfig{
			Enabled:    cfg.Logging.Telegram.Enabled,
			ChatID:     chatID,
			ThreadID:   cfg.Logging.Telegram.ThreadID,
			MinLevel:   cfg.Logging.Telegram.MinLevel,
			RatePerSec: cfg.Logging.Telegram.RatePerSec,
		},
	}
}

// Start binds the HTTP server, then launches keepalive and the config watcher.
func (a *App) Start(ctx context.Context) error {
	a.sup = rtsup.New(ctx, rtsup.WithLogger(a.log))

	if err := a.web.Start(a.sup.Context()); err != nil {
		a.sup.Cancel()
		return err
	}
	a.keepalive.Start(a.sup.Context())

	if a.cfg.Keepalive.Watchdog {
		a.sup.Go0("systemd.watchdog", func(c context.Context) {
			keepalive.Watchdog(c, a.log.With(logx.String("comp", "watchdog")))
		})
	}
	if a.cfgm.Path() != "" {
		updates := a.cfgm.Subscribe(1)
		a.sup.GoRestart("config.watch", a.cfgm.Watch,
			rtsup.WithRestartBackoff(time.Second, 30*time.Second),
			rtsup.WithMaxRestarts(maxWatchRestarts),
		)
		a.sup.Go0("config.apply", func(c context.Context) {
			defer a.cfgm.Unsubscribe(updates)
			for {
				select {
				case <-c.Done():
					return
				case cfg := <-updates:
					a.applyConfig(cfg)
				}
			}
		})
	}

	a.log.Info("started",
		logx.String("addr", a.web.Addr()),
		logx.String("site", a.cfg.SiteLabel()),
		logx.Bool("debug", a.cfg.Debug),
		logx.Bool("keepalive", a.keepalive.Running()),
	)
	return nil
}

// applyConfig swaps what can change live (logging); the rest needs a restart.
func (a *App) applyConfig(cfg *config.Config) {
	a.logs.Apply(mapLogConfig(cfg))
	next := *a.cfg
	next.Logging = cfg.Logging
	a.cfg = &next
	if config.Equal(&next, cfg) {
		a.log.Info("logging config applied")
		return
	}
	a.log.Warn("config changed outside logging; restart required to apply")
}

func (a *App) Addr() string { return a.web.Addr() }

// Done is closed when the HTTP server stops on its own.
func (a *App) Done() <-chan struct{} { return a.web.Done() }

func (a *App) Stop(ctx context.Context) error {
	a.log.Info("stopping")
	var errs []error
	if err := a.web.Stop(ctx); err != nil {
		errs = append(errs, err)
	}
	if err := a.keepalive.Stop(ctx); err != nil {
		errs = append(errs, err)
	}
	if a.sup != nil {
		before := a.sup.Counters()
		if err := a.sup.Stop(ctx); err != nil {
			errs = append(errs, err)
		}
		a.log.Info("stopped",
			logx.Int64("goroutines_active", before.Active),
			logx.Int64("goroutines_started", int64(before.Started)),
			logx.Int64("goroutines_left", a.sup.Counters().Active),
		)
	}
	_ = a.logs.Close()
	return errors.Join(errs...)
}
