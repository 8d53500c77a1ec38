// Package app wires configuration, infrastructure and the storefront into a
// runnable Telegram bot.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/m3rciful/shopbot/core/bootstrap"
	"github.com/m3rciful/shopbot/core/dedup"
	"github.com/m3rciful/shopbot/core/logger"
	"github.com/m3rciful/shopbot/core/metrics"
	tg "github.com/m3rciful/shopbot/core/telegram"
	"github.com/m3rciful/shopbot/core/telegram/sender"
	"github.com/m3rciful/shopbot/shop/bot"
	"github.com/m3rciful/shopbot/shop/catalog"
	"github.com/m3rciful/shopbot/shop/checkout"
	"github.com/m3rciful/shopbot/shop/journal"
	"github.com/m3rciful/shopbot/shop/render"
	"github.com/m3rciful/shopbot/shop/session"
	"github.com/m3rciful/shopbot/shop/storefront"
)

// App owns every long-lived component of the shop.
type App struct {
	cfg   *Config
	infra *bootstrap.Result

	Catalog    *catalog.Catalog
	Sessions   *session.Store
	Engine     *storefront.Engine
	Bot        *bot.Bot
	Operators  *bot.Operators
	Metrics    *metrics.Metrics
	Dedup      dedup.Store
	Journal    journal.Recorder
	Dispatcher *sender.Dispatcher

	health   []metrics.HealthCheck
	bg       sync.WaitGroup
	stopBg   context.CancelFunc
	stopOnce sync.Once

	// journal writes are tracked apart from bg so Close can drain them
	// before the database goes away.
	journalMu     sync.Mutex
	journalClosed bool
	journalWG     sync.WaitGroup
}

// Options overrides infrastructure steps, mainly for tests.
type Options struct {
	Bootstrap func(context.Context, bootstrap.Options) (*bootstrap.Result, error)
}

// Bootstrap initializes logging and storage, loads the catalog and builds
// the engine. Nothing talks to Telegram until the run options are used.
func Bootstrap(ctx context.Context, cfg *Config, opts Options) (*App, error) {
	if cfg == nil {
		return nil, errors.New("app: nil config")
	}
	run := opts.Bootstrap
	if run == nil {
		run = bootstrap.Run
	}
	infra, err := run(ctx, bootstrap.Options{
		Config:     &cfg.Config,
		Database:   cfg.Database,
		Migrations: journal.Migrations(),
	})
	if err != nil {
		return nil, err
	}

	a := &App{cfg: cfg, infra: infra, Metrics: metrics.New(), Operators: &bot.Operators{}}
	if err := a.build(ctx); err != nil {
		_ = a.Close()
		return nil, err
	}
	return a, nil
}

func (a *App) build(ctx context.Context) error {
	start := time.Now()
	cat, err := catalog.LoadFile(a.cfg.Shop.CatalogPath)
	if err != nil {
		return fmt.Errorf("app: %w", err)
	}
	a.Catalog = cat
	logger.Info(ctx, logger.ComponentCatalog, "catalog.loaded",
		slog.String("status", "ok"),
		slog.String("path", a.cfg.Shop.CatalogPath),
		slog.Int("localities", len(cat.Localities)),
		slog.Duration("duration", logger.Took(start)),
	)

	if a.infra.DB != nil {
		j := journal.New(a.infra.DB, 0)
		a.Journal = j
		a.health = append(a.health, metrics.HealthCheck{Name: "database", Check: j.Ping})
	} else {
		a.Journal = journal.Nop{}
	}

	if url := a.cfg.Redis.URL; url != "" {
		r, err := dedup.NewRedis(ctx, url, a.cfg.Redis.KeyPrefix, a.cfg.Redis.DedupTTL)
		if err != nil {
			return fmt.Errorf("app: %w", err)
		}
		a.Dedup = r
		a.health = append(a.health, metrics.HealthCheck{Name: "redis", Check: r.Ping})
	} else {
		a.Dedup = dedup.NewMemory(a.cfg.Redis.DedupTTL)
	}

	workflow := checkout.NewWorkflow(a.Operators, checkout.Config{
		Operators:   a.cfg.Shop.OperatorIDs,
		Timeout:     a.cfg.Shop.NotifyTimeout,
		Concurrency: a.cfg.Shop.NotifyConcurrency,
		OnDelivery:  a.recordDelivery,
	})

	a.Sessions = session.NewStore()
	a.Engine, err = storefront.New(storefront.Config{
		Catalog:  cat,
		Sessions: a.Sessions,
		Renderer: render.New(cat, render.Options{
			Currency:   a.cfg.Shop.Currency,
			ContactURL: a.cfg.Shop.ContactURL,
		}),
		Checkout: workflow,
		Observer: a.Metrics,
	})
	if err != nil {
		return fmt.Errorf("app: %w", err)
	}
	a.Bot = bot.New(a.Engine)

	a.Dispatcher = sender.NewDispatcher(sender.Options{
		Workers:      a.cfg.Telegram.SendWorkers,
		MaxRetries:   sendRetries,
		RetryBackoff: sendRetryBackoff,
	})
	a.Metrics.GaugeFunc("sessions_live", "Sessions currently held in memory.", func() float64 {
		return float64(a.Sessions.Len())
	})
	a.Metrics.CounterFunc("telegram_send_errors_total", "Outbound Telegram calls that failed after retries.", func() float64 {
		return float64(a.Dispatcher.ErrorCount())
	})
	return nil
}

// recordDelivery feeds metrics inline and writes the journal in the
// background so a slow database never holds up the buyer's checkout.
// Deliveries finishing after Close are counted but not journaled.
func (a *App) recordDelivery(ctx context.Context, o checkout.Order, d checkout.Delivery) {
	a.Metrics.DeliveryFinished(logger.Status(d.Err), d.Duration)

	a.journalMu.Lock()
	if a.journalClosed {
		a.journalMu.Unlock()
		logger.Warn(ctx, logger.ComponentJournal, "journal.delivery",
			slog.String("status", "skipped"),
			slog.String("order_id", o.ID),
			slog.Int64("operator_id", d.OperatorID),
			slog.String("reason", "closed"),
		)
		return
	}
	a.journalWG.Add(1)
	a.journalMu.Unlock()

	go func() {
		defer a.journalWG.Done()
		_ = a.Journal.RecordDelivery(context.WithoutCancel(ctx), o, d)
	}()
}

// closeJournal refuses new journal writes and waits for pending ones.
func (a *App) closeJournal() {
	a.journalMu.Lock()
	a.journalClosed = true
	a.journalMu.Unlock()
	a.journalWG.Wait()
}

// TelegramRunOptions implements cmd.TelegramApp.
func (a *App) TelegramRunOptions() (tg.RunOptions, error) {
	reg := tg.NewRegistry()
	if err := a.Bot.Register(reg); err != nil {
		return tg.RunOptions{}, fmt.Errorf("app: register handlers: %w", err)
	}
	return tg.RunOptions{
		Config:     &a.cfg.Config,
		Registry:   reg,
		Dispatcher: a.Dispatcher,
		Middlewares: tg.DefaultMiddlewares(tg.MiddlewareOptions{
			Dedup:   a.Dedup,
			Updates: a.Metrics,
		}),
		Routes:  a.Bot.Routes(reg),
		OnStart: a.onStart,
		OnStop:  a.onStop,
	}, nil
}

func (a *App) onStart(ctx context.Context, rt tg.Runtime) error {
	a.Operators.Bind(rt)

	bgCtx, cancel := context.WithCancel(ctx)
	a.stopBg = cancel

	idle := a.cfg.Shop.SessionIdleTTL
	a.goBackground(func() {
		a.Sessions.RunSweeper(bgCtx, sweepInterval(idle), idle)
	})

	if listen := a.cfg.Metrics.Listen; listen != "" {
		handler := metrics.NewHandler(a.Metrics, a.health...)
		a.goBackground(func() {
			if err := metrics.Serve(bgCtx, listen, handler); err != nil {
				logger.Error(bgCtx, logger.ComponentOps, "ops.serve",
					slog.String("status", "fail"),
					slog.String("listen", listen),
					slog.String("err", err.Error()),
				)
			}
		})
	}

	logger.Info(ctx, logger.ComponentShop, "shop.ready",
		slog.String("status", "ok"),
		slog.String("catalog", a.Catalog.Title),
		slog.Int("operators", len(a.cfg.Shop.OperatorIDs)),
		slog.Bool("journal", a.infra.DB != nil),
		slog.Bool("redis", a.cfg.Redis.URL != ""),
	)
	return nil
}

func (a *App) onStop(context.Context, tg.Runtime) error {
	a.stopBackground()
	return nil
}

func (a *App) goBackground(fn func()) {
	a.bg.Add(1)
	go func() {
		defer a.bg.Done()
		fn()
	}()
}

func (a *App) stopBackground() {
	a.stopOnce.Do(func() {
		if a.stopBg != nil {
			a.stopBg()
		}
	})
	a.bg.Wait()
}

// Close stops background work and releases storage connections.
func (a *App) Close() error {
	a.stopBackground()
	if a.Dispatcher != nil {
		a.Dispatcher.Close()
	}
	a.closeJournal()
	var errs []error
	if a.Dedup != nil {
		errs = append(errs, a.Dedup.Close())
	}
	errs = append(errs, a.infra.Close())
	return errors.Join(errs...)
}

const (
	// Operator sends run under shop.notify_timeout, which caps the retries.
	sendRetries      = 2
	sendRetryBackoff = time.Second
)

// sweepInterval checks for idle sessions ten times per TTL, at most every
// ten minutes and at least every minute.
func sweepInterval(idle time.Duration) time.Duration {
	return min(max(idle/10, time.Minute), 10*time.Minute)
}
