package bot

import (
	"context"
	"log/slog"
	"math/rand"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/valpere/landwatch/internal/browser"
	"github.com/valpere/landwatch/internal/config"
	lwerrors "github.com/valpere/landwatch/internal/errors"
	"github.com/valpere/landwatch/internal/filter"
	"github.com/valpere/landwatch/internal/monitoring"
	"github.com/valpere/landwatch/internal/notify"
	"github.com/valpere/landwatch/internal/pacing"
	"github.com/valpere/landwatch/internal/scraper"
	"github.com/valpere/landwatch/internal/session"
	"github.com/valpere/landwatch/internal/storage"
	"github.com/valpere/landwatch/internal/utils"
	"github.com/valpere/landwatch/pkg/types"
)

// Options carries process-level settings that are not part of the config
// file.
type Options struct {
	ConfigPath string
	Version    string
	Errors     *lwerrors.Service
	Logger     *slog.Logger
	// Optional replacements for the timer, harvester and store.
	Sleeper   pacing.Sleeper
	Harvester session.Harvester
	Store     storage.Store
}

// App owns every long-lived component of the poller.
type App struct {
	cfg       *config.Config
	opts      Options
	logger    *slog.Logger
	metrics   *monitoring.Metrics
	health    *monitoring.HealthManager
	errors    *lwerrors.Service
	store     storage.Store
	sessions  *session.Manager
	pacer     *pacing.Engine
	runner    *Runner
	scheduler *Scheduler
}

// NewApp wires the components described by cfg.
func NewApp(ctx context.Context, cfg *config.Config, opts Options) (*App, error) {
	if opts.Logger == nil {
		opts.Logger = utils.NewComponentLogger("bot")
	}
	if opts.Errors == nil {
		opts.Errors = lwerrors.NewService()
	}
	a := &App{
		cfg:     cfg,
		opts:    opts,
		logger:  opts.Logger,
		metrics: monitoring.NewMetrics(cfg.Metrics.Options()),
		health:  monitoring.NewHealthManager(opts.Version),
		errors:  opts.Errors,
	}

	seed := cfg.Pacing.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	rnd := rand.New(rand.NewSource(seed))

	pacer, err := pacing.NewEngine(pacing.Config{
		Profile:  cfg.Pacing.Profile,
		Rand:     rnd,
		Sleeper:  opts.Sleeper,
		Logger:   utils.NewComponentLogger("pacing"),
		Observer: a.metrics,
	})
	if err != nil {
		return nil, err
	}
	a.pacer = pacer

	harvester := opts.Harvester
	if harvester == nil {
		if cfg.Session.Harvester == config.HarvesterBrowser {
			harvester = browser.NewChromeHarvester(cfg.Session.Browser, utils.NewComponentLogger("browser"))
		} else {
			harvester = session.NewHTTPHarvester(cfg.HTTP.Timeout)
		}
	}
	a.sessions = session.NewManager(session.Config{
		BaseURL:   cfg.Session.BaseURL,
		MaxAge:    cfg.Session.MaxAge,
		Profiles:  cfg.BrowserProfiles(),
		Harvester: harvester,
		Rand:      rnd,
		Logger:    utils.NewComponentLogger("session"),
		Observer:  a.metrics,
	})

	fetcher := scraper.NewFetcher(scraper.FetcherConfig{
		Client: scraper.NewHTTPClient(scraper.ClientConfig{
			Timeout:   cfg.HTTP.Timeout,
			RateLimit: cfg.HTTP.RateLimit,
		}),
		Sessions:     a.sessions,
		Pacer:        pacer,
		Retry:        cfg.Retry,
		RequestDelay: cfg.Traversal.RequestDelay,
		VisitLanding: cfg.Traversal.VisitLanding,
		Logger:       utils.NewComponentLogger("fetcher"),
		Observer:     a.metrics,
	})
	api := scraper.NewLandClient(fetcher, cfg.Session.BaseURL, utils.NewComponentLogger("api"))
	scr := scraper.NewScraper(api, pacer, cfg.Traversal, utils.NewComponentLogger("scraper"))

	evaluator, err := filter.New(cfg.Filters, utils.NewComponentLogger("filter"))
	if err != nil {
		return nil, err
	}

	a.store = opts.Store
	if a.store == nil {
		a.store, err = storage.Open(ctx, cfg.Storage)
		if err != nil {
			return nil, err
		}
	}

	notifier, err := notify.New(cfg.Telegram, utils.NewComponentLogger("notify"))
	if err != nil {
		a.store.Close()
		return nil, err
	}

	a.runner, err = NewRunner(RunnerConfig{
		Regions:       cfg.Regions,
		TradeTypes:    cfg.TradeTypes,
		ResendPending: cfg.Telegram.ResendPending,
		NextRun:       cfg.Schedule.Interval,
		Scraper:       scr,
		Filter:        evaluator,
		Store:         a.store,
		Notifier:      notifier,
		Breaker:       a.errors.Breaker("telegram"),
		Metrics:       a.metrics,
		Logger:        opts.Logger,
	})
	if err != nil {
		a.store.Close()
		return nil, err
	}
	a.scheduler = NewScheduler(a.runner.Run, cfg.Schedule.Interval, cfg.Schedule.RunOnStart, utils.NewComponentLogger("scheduler"))

	a.health.RegisterCheck(monitoring.DatabaseHealthCheck("store", func(ctx context.Context) error {
		_, err := a.store.Stats(ctx)
		return err
	}))
	a.health.RegisterCheck(monitoring.LastRunHealthCheck(3*cfg.Schedule.Interval, a.runner.LastRun, nil))

	a.logger.Info("poller ready", "config", cfg.Summary(), "store", a.store)
	return a, nil
}

// Runner returns the run executor.
func (a *App) Runner() *Runner { return a.runner }

// Scheduler returns the daemon loop.
func (a *App) Scheduler() *Scheduler { return a.scheduler }

// Metrics returns the metrics registry owner.
func (a *App) Metrics() *monitoring.Metrics { return a.metrics }

// Health returns the health manager.
func (a *App) Health() *monitoring.HealthManager { return a.health }

// Store returns the listing store.
func (a *App) Store() storage.Store { return a.store }

// RunOnce performs a single run.
func (a *App) RunOnce(ctx context.Context) (types.RunSummary, error) {
	return a.runner.Run(ctx)
}

// Daemon runs the scheduler until ctx is done, alongside the metrics server
// and the config watcher when they are enabled.
func (a *App) Daemon(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)

	if a.cfg.Metrics.Enabled {
		srv := monitoring.NewServer(a.cfg.Metrics.Address, a.metrics, a.health, utils.NewComponentLogger("monitoring"))
		g.Go(func() error { return srv.Run(ctx) })
	}

	if a.opts.ConfigPath != "" {
		watcher, err := config.NewConfigWatcher(a.opts.ConfigPath, utils.NewComponentLogger("config"))
		if err != nil {
			a.logger.Warn("config hot reload disabled", "error", err)
		} else {
			watcher.OnChange(a.applyConfig)
			g.Go(func() error { return watcher.Run(ctx) })
		}
	}

	g.Go(func() error { return a.scheduler.Run(ctx) })
	return g.Wait()
}

// applyConfig takes the reloadable parts of a new configuration: filter
// rules and the schedule interval. Other changes need a restart.
func (a *App) applyConfig(cfg *config.Config) {
	evaluator, err := filter.New(cfg.Filters, utils.NewComponentLogger("filter"))
	if err != nil {
		a.logger.Error("reloaded filters rejected", "error", err)
		return
	}
	a.runner.SetFilter(evaluator)
	a.scheduler.SetInterval(cfg.Schedule.Interval)
	a.logger.Info("configuration reloaded", "interval", cfg.Schedule.Interval)
}

// Close releases the store.
func (a *App) Close() error {
	return a.store.Close()
}
