// Package scheduler supervises the background jobs: the push-path listener,
// the periodic reconciliation pass, the yield sweep, and the audit archiver.
package scheduler

import (
	"context"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/yieldbet/marketd/internal/config"
	"github.com/yieldbet/marketd/internal/domain"
)

// FullSyncer runs one complete reconciliation pass.
type FullSyncer interface {
	RunFullSync(ctx context.Context) domain.SyncSummary
}

// YieldSweeper refreshes yield estimates across active markets.
type YieldSweeper interface {
	RecalculateAll(ctx context.Context) (int, error)
}

// Runner is a long-running job that stops when its context is cancelled.
type Runner interface {
	Run(ctx context.Context) error
}

// CronRunner is a job driven by a cron expression.
type CronRunner interface {
	RunCron(ctx context.Context, cronExpr string) error
}

// Scheduler owns the background jobs. Construct it explicitly and pass it to
// whatever needs to trigger or inspect it; there is no process-global
// instance.
type Scheduler struct {
	syncer   FullSyncer
	yield    YieldSweeper
	listener Runner
	archiver CronRunner
	cfg      config.SyncConfig
	logger   *slog.Logger
}

// New creates a Scheduler. listener, yield, and archiver may be nil; the
// corresponding jobs are not started.
func New(
	syncer FullSyncer,
	yield YieldSweeper,
	listener Runner,
	archiver CronRunner,
	cfg config.SyncConfig,
	logger *slog.Logger,
) *Scheduler {
	return &Scheduler{
		syncer:   syncer,
		yield:    yield,
		listener: listener,
		archiver: archiver,
		cfg:      cfg,
		logger:   logger,
	}
}

// Run starts the enabled jobs and blocks until ctx is cancelled. The push
// listener is supervised: it reconnects internally, and if it still fails
// permanently only a warning is logged because the periodic reconciliation
// pass keeps the serving store converging without it.
func (s *Scheduler) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)

	if s.listener != nil && s.cfg.EnableListener {
		g.Go(func() error {
			err := s.listener.Run(ctx)
			if ctx.Err() != nil {
				return nil
			}
			s.logger.WarnContext(ctx, "scheduler: listener stopped, relying on periodic sync",
				slog.Any("error", err),
			)
			return nil
		})
	}

	if s.cfg.EnableIndexerSync {
		interval := time.Duration(s.cfg.IndexerSyncIntervalSecs) * time.Second
		g.Go(func() error {
			s.logger.Info("scheduler: indexer sync started", slog.Duration("interval", interval))
			// One pass at startup so a fresh deploy converges immediately.
			s.syncer.RunFullSync(ctx)

			ticker := time.NewTicker(interval)
			defer ticker.Stop()
			for {
				select {
				case <-ctx.Done():
					return nil
				case <-ticker.C:
					s.syncer.RunFullSync(ctx)
				}
			}
		})
	}

	if s.yield != nil && s.cfg.EnableYieldCalc {
		interval := time.Duration(s.cfg.YieldCalcIntervalSecs) * time.Second
		g.Go(func() error {
			s.logger.Info("scheduler: yield sweep started", slog.Duration("interval", interval))
			ticker := time.NewTicker(interval)
			defer ticker.Stop()
			for {
				select {
				case <-ctx.Done():
					return nil
				case <-ticker.C:
					if _, err := s.yield.RecalculateAll(ctx); err != nil {
						s.logger.ErrorContext(ctx, "scheduler: yield sweep failed",
							slog.Any("error", err),
						)
					}
				}
			}
		})
	}

	if s.archiver != nil && s.cfg.ArchiveCron != "" {
		g.Go(func() error {
			err := s.archiver.RunCron(ctx, s.cfg.ArchiveCron)
			if ctx.Err() != nil {
				return nil
			}
			s.logger.WarnContext(ctx, "scheduler: archiver stopped", slog.Any("error", err))
			return nil
		})
	}

	return g.Wait()
}

// TriggerSyncNow runs one reconciliation pass immediately, outside the
// schedule, and returns its summary.
func (s *Scheduler) TriggerSyncNow(ctx context.Context) domain.SyncSummary {
	s.logger.InfoContext(ctx, "scheduler: manual sync triggered")
	return s.syncer.RunFullSync(ctx)
}

// Status reports which jobs are configured and their intervals.
func (s *Scheduler) Status() domain.SchedulerStatus {
	return domain.SchedulerStatus{
		IndexerSyncEnabled:      s.cfg.EnableIndexerSync,
		IndexerSyncIntervalSecs: int64(s.cfg.IndexerSyncIntervalSecs),
		YieldCalcEnabled:        s.cfg.EnableYieldCalc,
		YieldCalcIntervalSecs:   int64(s.cfg.YieldCalcIntervalSecs),
	}
}
