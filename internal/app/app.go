// Package app wires the process together: config, logging, storage, the
// Telegram adapter, the dispatcher, the reminder scheduler, the webhook
// server and the conversational bot.
package app

import (
	"context"
	"fmt"
	"sync"
	"time"

	"latebot/internal/bot"
	"latebot/internal/config"
	"latebot/internal/directory"
	"latebot/internal/dispatch"
	"latebot/internal/latepoint"
	"latebot/internal/reminder"
	"latebot/internal/server"
	"latebot/internal/storage"
	telegram "latebot/internal/transport/telegram"
	logx "latebot/pkg/logx"
)

type App struct {
	cfgm *config.Manager
	logs *logx.Service
	log  logx.Logger

	store   storage.Store
	adapter *telegram.Adapter
	disp    *dispatch.Dispatcher
	sched   *reminder.Scheduler
	srv     *server.Server
	bot     *bot.Bot

	cancel context.CancelFunc
	wg     sync.WaitGroup

	errCh chan error
}

func New(cfgPath string) (*App, error) {
	cfgm := config.NewManager(cfgPath)
	cfg, err := cfgm.Load()
	if err != nil {
		return nil, err
	}

	logSvc, log := logx.New(logx.Config{
		Level:   cfg.Logging.Level,
		Console: cfg.Logging.Console,
		File: logx.FileConfig{
			Enabled: cfg.Logging.File.Enabled,
			Path:    cfg.Logging.File.Path,
		},
	})
	log = log.With(logx.String("comp", "app"))
	cfgm.SetLogger(log.With(logx.String("comp", "config")))

	pollTimeout, err := config.ParseDurationOrDefault("telegram.poll_timeout", cfg.Telegram.PollTimeout, 10*time.Second)
	if err != nil {
		return nil, err
	}
	adapter, err := telegram.New(telegram.Config{
		Token:       cfg.Telegram.Token,
		PollTimeout: pollTimeout,
		RatePerSec:  cfg.Telegram.RatePerSec,
	}, log.With(logx.String("comp", "telegram")))
	if err != nil {
		return nil, err
	}

	busyTimeout, err := config.ParseDurationOrDefault("storage.busy_timeout", cfg.Storage.BusyTimeout, 5*time.Second)
	if err != nil {
		return nil, err
	}
	store, err := storage.Open(storage.Config{
		Driver:      cfg.Storage.Driver,
		Path:        cfg.Storage.Path,
		BusyTimeout: busyTimeout,
	}, log.With(logx.String("comp", "storage")))
	if err != nil {
		return nil, err
	}

	lpTimeout, err := config.ParseDurationOrDefault("latepoint.timeout", cfg.LatePoint.Timeout, 30*time.Second)
	if err != nil {
		return nil, err
	}
	lp := latepoint.New(latepoint.Config{
		BaseURL: cfg.LatePoint.BaseURL,
		Timeout: lpTimeout,
	}, log.With(logx.String("comp", "latepoint")))

	dir := directory.New(store, cfg.Reminder.DefaultLeadMinutes)
	disp := dispatch.New(dir, adapter, store, cfg.Reminder.Timezone,
		log.With(logx.String("comp", "dispatch")))

	checkInterval, err := config.ParseDurationOrDefault("reminder.check_interval", cfg.Reminder.CheckInterval, time.Minute)
	if err != nil {
		return nil, err
	}
	sched, err := reminder.New(reminder.Config{
		Enabled:            cfg.Reminder.Enabled,
		CheckInterval:      checkInterval,
		Timezone:           cfg.Reminder.Timezone,
		DefaultLeadMinutes: cfg.Reminder.DefaultLeadMinutes,
	}, store, dir, lp, disp, log.With(logx.String("comp", "reminder")))
	if err != nil {
		return nil, err
	}

	srv := server.New(server.Config{
		Addr:          cfg.Server.Addr,
		WebhookSecret: cfg.Server.WebhookSecret,
	}, disp, store, log.With(logx.String("comp", "server")))

	tgBot := bot.New(bot.Config{
		AdminUserIDs: cfg.Telegram.AdminUserIDs,
		SourceZone:   cfg.Reminder.Timezone,
	}, adapter, store, dir, lp, log.With(logx.String("comp", "bot")))

	return &App{
		cfgm:    cfgm,
		logs:    logSvc,
		log:     log,
		store:   store,
		adapter: adapter,
		disp:    disp,
		sched:   sched,
		srv:     srv,
		bot:     tgBot,
		errCh:   make(chan error, 1),
	}, nil
}

func (a *App) Start(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	a.cancel = cancel

	if err := a.bot.Start(ctx); err != nil {
		cancel()
		return fmt.Errorf("start bot: %w", err)
	}
	if err := a.sched.Start(ctx); err != nil {
		cancel()
		return fmt.Errorf("start reminder scheduler: %w", err)
	}

	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		if err := a.srv.Start(); err != nil {
			a.log.Error("http server failed", logx.Err(err))
			select {
			case a.errCh <- err:
			default:
			}
		}
	}()

	// Hot reload: logging changes apply live; everything else needs a restart
	// and is called out when it changes.
	sub := a.cfgm.Subscribe()
	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		defer a.cfgm.Unsubscribe(sub)
		lastApplied := a.cfgm.Current()
		for {
			select {
			case <-ctx.Done():
				return
			case cfg, ok := <-sub:
				if !ok {
					return
				}
				a.applyReload(lastApplied, cfg)
				lastApplied = cfg
			}
		}
	}()

	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		if err := a.cfgm.Watch(ctx); err != nil {
			a.log.Warn("config watch stopped", logx.Err(err))
		}
	}()

	a.log.Info("started")
	return nil
}

func (a *App) applyReload(prev, cfg *config.Config) {
	if cfg == nil {
		return
	}
	a.logs.Apply(logx.Config{
		Level:   cfg.Logging.Level,
		Console: cfg.Logging.Console,
		File: logx.FileConfig{
			Enabled: cfg.Logging.File.Enabled,
			Path:    cfg.Logging.File.Path,
		},
	})

	if prev != nil {
		if cfg.Telegram.Token != prev.Telegram.Token ||
			cfg.Server != prev.Server ||
			cfg.Storage != prev.Storage {
			a.log.Warn("telegram/server/storage config changed; restart required to take effect")
		}
	}
	a.log.Info("config applied")
}

// Err delivers the first fatal background error (currently only the HTTP
// server failing to listen).
func (a *App) Err() <-chan error { return a.errCh }

func (a *App) Stop(ctx context.Context) error {
	if a.cancel == nil {
		return nil
	}
	a.log.Info("stopping")

	// Bounded shutdown steps so one stuck component can't stall the rest.
	step := func(name string, max time.Duration, fn func(context.Context) error) {
		stepCtx, cancel := context.WithTimeout(ctx, max)
		defer cancel()
		if err := fn(stepCtx); err != nil {
			a.log.Warn("stop step error", logx.String("name", name), logx.Err(err))
		}
	}

	step("server", 3*time.Second, a.srv.Stop)
	step("reminder", 3*time.Second, a.sched.Stop)
	step("bot", 3*time.Second, a.bot.Stop)

	a.cancel()
	a.wg.Wait()

	step("storage", time.Second, func(context.Context) error { return a.store.Close() })

	a.log.Info("stopped")
	a.logs.Close()
	return nil
}
