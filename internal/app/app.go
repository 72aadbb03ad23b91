// Package app assembles the bot: configuration, storage, catalog,
// services, transport and the trigger loop.
package app

import (
	"context"
	"fmt"
	"sync"

	"github.com/rs/zerolog"

	"lectio/internal/bot"
	"lectio/internal/broadcast"
	"lectio/internal/catalog"
	"lectio/internal/config"
	"lectio/internal/logging"
	"lectio/internal/progress"
	"lectio/internal/reading"
	"lectio/internal/scheduler"
	"lectio/internal/storage"
	telegram "lectio/internal/transport/telegram"
)

type App struct {
	cfgm     *config.Manager
	log      zerolog.Logger
	closeLog func() error

	store   storage.Store
	adapter *telegram.Adapter
	engine  *broadcast.Engine
	sched   *scheduler.Service
	svc     *reading.Service
	router  *bot.Router

	watchWG sync.WaitGroup
}

func New(cfgPath string) (*App, error) {
	cfgm := config.NewManager(cfgPath, zerolog.Nop())
	cfg, err := cfgm.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	log, closeLog, err := logging.New(logging.Config{
		Level:   cfg.Logging.Level,
		Console: cfg.Logging.Console,
		File:    cfg.Logging.File,
	})
	if err != nil {
		return nil, fmt.Errorf("init logging: %w", err)
	}
	cfgm.SetLogger(log.With().Str("comp", "config").Logger())

	cat, err := catalog.Load(cfg.Catalog)
	if err != nil {
		_ = closeLog()
		return nil, fmt.Errorf("load catalog: %w", err)
	}
	log.Info().Int("labels", cat.Len()).Str("path", cfg.Catalog).Msg("catalog loaded")

	store, err := storage.Open(storage.Config{
		Driver:      cfg.Storage.Driver,
		Path:        cfg.Storage.Path,
		BusyTimeout: cfg.Storage.BusyTimeout.Std(),
	}, log.With().Str("comp", "storage").Logger())
	if err != nil {
		_ = closeLog()
		return nil, fmt.Errorf("open storage: %w", err)
	}

	adapter, err := telegram.New(telegram.Config{
		Token:       cfg.Telegram.Token,
		PollTimeout: cfg.Telegram.PollTimeout.Std(),
	}, log.With().Str("comp", "telegram").Logger())
	if err != nil {
		_ = store.Close()
		_ = closeLog()
		return nil, fmt.Errorf("telegram adapter: %w", err)
	}

	engine := broadcast.New(broadcast.Config{
		Workers:    cfg.Broadcast.Workers,
		RatePerSec: cfg.Broadcast.RatePerSec,
	}, adapter, log.With().Str("comp", "broadcast").Logger())

	ledger := progress.New(store, log.With().Str("comp", "progress").Logger())
	state := reading.NewState(store, cat)
	picker := reading.NewRandomDaily(store, cat)

	svc := reading.NewService(reading.ServiceConfig{
		Policy:    reading.Policy(cfg.Policy),
		AdminID:   cfg.Telegram.AdminID,
		Location:  cfg.Location(),
		AckMarkup: bot.AckMarkup(),
	}, state, picker, cat, store, ledger, engine, adapter,
		log.With().Str("comp", "reading").Logger())

	sched := scheduler.New(schedulerConfig(cfg),
		func(ctx context.Context, a scheduler.Action) error {
			return svc.HandleAction(ctx, string(a))
		},
		log.With().Str("comp", "scheduler").Logger())

	router := bot.NewRouter(svc, adapter, cfg.Telegram.AdminID,
		log.With().Str("comp", "router").Logger())

	return &App{
		cfgm:     cfgm,
		log:      log,
		closeLog: closeLog,
		store:    store,
		adapter:  adapter,
		engine:   engine,
		sched:    sched,
		svc:      svc,
		router:   router,
	}, nil
}

func schedulerConfig(cfg *config.Config) scheduler.Config {
	triggers := make([]scheduler.Trigger, 0, len(cfg.Triggers))
	for _, tr := range cfg.Triggers {
		triggers = append(triggers, scheduler.Trigger{At: tr.At, Action: scheduler.Action(tr.Action)})
	}
	return scheduler.Config{Timezone: cfg.Timezone, Triggers: triggers}
}

// Start brings everything up and begins watching the config file.
// Schedule and broadcast settings apply live on reload; the token,
// storage driver and catalog require a restart.
func (a *App) Start(ctx context.Context) error {
	a.router.Attach(ctx, a.adapter.Bot())
	a.adapter.Start(ctx)
	if err := a.sched.Start(ctx); err != nil {
		return fmt.Errorf("start scheduler: %w", err)
	}

	a.cfgm.Subscribe(func(cfg *config.Config) {
		a.engine.Apply(broadcast.Config{
			Workers:    cfg.Broadcast.Workers,
			RatePerSec: cfg.Broadcast.RatePerSec,
		})
		if err := a.sched.Apply(schedulerConfig(cfg)); err != nil {
			a.log.Warn().Err(err).Msg("scheduler config not applied")
		}
	})
	a.watchWG.Add(1)
	go func() {
		defer a.watchWG.Done()
		if err := a.cfgm.Watch(ctx); err != nil {
			a.log.Warn().Err(err).Msg("config watch stopped")
		}
	}()

	a.log.Info().Msg("started")
	return nil
}

func (a *App) Stop(ctx context.Context) error {
	a.sched.Stop(ctx)
	err := a.adapter.Stop(ctx)
	a.watchWG.Wait()
	if cerr := a.store.Close(); cerr != nil && err == nil {
		err = cerr
	}
	a.log.Info().Msg("stopped")
	if a.closeLog != nil {
		_ = a.closeLog()
	}
	return err
}
