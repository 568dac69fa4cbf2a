// Package app wires the marketd dependency graph and runs the configured
// operating mode: the API server, the background sync jobs, or both.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/yieldbet/marketd/internal/archive"
	"github.com/yieldbet/marketd/internal/config"
	"github.com/yieldbet/marketd/internal/domain"
	"github.com/yieldbet/marketd/internal/notify"
	"github.com/yieldbet/marketd/internal/scheduler"
	"github.com/yieldbet/marketd/internal/server"
	"github.com/yieldbet/marketd/internal/server/handler"
	"github.com/yieldbet/marketd/internal/server/ws"
	"github.com/yieldbet/marketd/internal/sync"
	"github.com/yieldbet/marketd/internal/yield"
)

// defaultProtocols are the yield protocols seeded at startup. APYs are
// refreshed out of band; these values only bootstrap a fresh database.
var defaultProtocols = []domain.Protocol{
	{Name: "amnis", DisplayName: "Amnis Finance", BaseAPY: 7.2, IsActive: true, Description: "Liquid staking"},
	{Name: "thala", DisplayName: "Thala", BaseAPY: 5.8, IsActive: true, Description: "Stablecoin yield"},
	{Name: "echelon", DisplayName: "Echelon", BaseAPY: 4.5, IsActive: true, Description: "Lending market"},
}

// App owns the application lifecycle: wiring, mode selection, and teardown.
type App struct {
	cfg     *config.Config
	logger  *slog.Logger
	closers []func()
}

// New creates an App from configuration and a root logger.
func New(cfg *config.Config, logger *slog.Logger) *App {
	return &App{
		cfg:    cfg,
		logger: logger,
	}
}

// Run wires dependencies, starts the goroutines for the configured mode, and
// blocks until ctx is cancelled.
func (a *App) Run(ctx context.Context) error {
	a.logger.InfoContext(ctx, "starting marketd",
		slog.String("mode", a.cfg.Mode),
		slog.String("log_level", a.cfg.LogLevel),
	)

	deps, cleanup, err := Wire(ctx, a.cfg, a.logger)
	if err != nil {
		return fmt.Errorf("app: wire dependencies: %w", err)
	}
	a.closers = append(a.closers, cleanup)

	if err := a.seedProtocols(ctx, deps); err != nil {
		return err
	}

	mode := strings.ToLower(a.cfg.Mode)
	runServer := mode == "full" || mode == "server"
	runJobs := mode == "full" || mode == "sync"
	if !runServer && !runJobs {
		return fmt.Errorf("app: unsupported mode %q", a.cfg.Mode)
	}

	// Core services.
	reconciler := sync.NewReconciler(
		deps.Ledger, deps.Markets, deps.Bets, deps.Users,
		a.cfg.Sync.MarketBatchSize, a.cfg.Sync.BetBatchSize,
		a.logger.With(slog.String("component", "reconciler")),
	)
	yieldSvc := yield.NewService(
		deps.Markets, deps.Protocols, a.cfg.Sync.YieldSweepLimit,
		a.logger.With(slog.String("component", "yield")),
	)

	// The sync webhook is its own endpoint, unfiltered by the operator
	// alert event list. Fall back to the operator notifier when unset.
	var syncNotifier sync.SyncNotifier = deps.Notifier
	if a.cfg.Sync.WebhookURL != "" {
		syncNotifier = notify.NewNotifier(
			[]notify.Sender{notify.NewWebhookSender(a.cfg.Sync.WebhookURL)},
			nil, a.logger,
		)
	}
	immediate := sync.NewImmediateSyncer(
		reconciler, deps.Markets, yieldSvc, syncNotifier,
		a.logger.With(slog.String("component", "immediate_sync")),
	)

	var listener scheduler.Runner
	if runJobs && a.cfg.Sync.EnableListener {
		handlerSvc := sync.NewEventHandler(
			reconciler, deps.Markets, deps.Bets, deps.MarketCache, deps.SignalBus,
			a.logger.With(slog.String("component", "event_handler")),
		)
		listener = sync.NewListener(
			deps.PG.ConnString(), handlerSvc, deps.EventLog,
			a.logger.With(slog.String("component", "listener")),
		)
	}

	var archiver scheduler.CronRunner
	if runJobs && deps.BlobWriter != nil {
		archiver = archive.NewArchiver(
			deps.EventLog, deps.BlobWriter, a.cfg.Sync.ArchiveRetentionDays,
			a.logger.With(slog.String("component", "archiver")),
		)
	}

	sched := scheduler.New(
		reconciler, yieldSvc, listener, archiver, a.cfg.Sync,
		a.logger.With(slog.String("component", "scheduler")),
	)

	g, ctx := errgroup.WithContext(ctx)

	if runJobs {
		g.Go(func() error { return sched.Run(ctx) })
	}

	if runServer && a.cfg.Server.Enabled {
		var hub *ws.Hub
		if deps.SignalBus != nil {
			hub = ws.NewHub(deps.SignalBus,
				[]string{sync.BusMarketUpdates, sync.BusSyncEvents},
				a.logger.With(slog.String("component", "ws")),
			)
			g.Go(func() error {
				if err := hub.Run(ctx); err != nil && ctx.Err() == nil {
					return err
				}
				return nil
			})
		}

		srv := server.New(
			server.Config{
				Port:        a.cfg.Server.Port,
				CORSOrigins: a.cfg.Server.CORSOrigins,
				APIKey:      a.cfg.Server.APIKey,
			},
			server.Handlers{
				Health:  handler.NewHealthHandler(deps.PG, pinger(deps), a.logger),
				Markets: handler.NewMarketHandler(deps.Markets, deps.Bets, deps.MarketCache, a.logger),
				Bets:    handler.NewBetHandler(deps.Bets, deps.Users, immediate, a.logger),
				Sync:    handler.NewSyncHandler(sched, deps.Ledger, deps.Markets, deps.Bets, deps.EventLog, a.logger),
			},
			hub,
			a.logger.With(slog.String("component", "server")),
		)

		g.Go(srv.Start)
		g.Go(func() error {
			<-ctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		})
	}

	err = g.Wait()
	if err != nil && ctx.Err() != nil {
		return nil
	}
	return err
}

// pinger adapts the optional Redis client to the health handler; a nil
// client disables the check.
func pinger(deps *Dependencies) handler.Pinger {
	if deps.Redis == nil {
		return nil
	}
	return deps.Redis
}

// seedProtocols upserts the bootstrap protocol rows so the yield sweep has
// APYs to work with on a fresh database.
func (a *App) seedProtocols(ctx context.Context, deps *Dependencies) error {
	for _, p := range defaultProtocols {
		if err := deps.Protocols.Upsert(ctx, p); err != nil {
			return fmt.Errorf("app: seed protocol %s: %w", p.Name, err)
		}
	}
	return nil
}

// Close tears down resources in reverse registration order. Safe to call
// more than once.
func (a *App) Close() {
	a.logger.Info("shutting down marketd")
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}
