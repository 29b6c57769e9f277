// Package scheduler runs the boost sweep on a cron schedule.
package scheduler

import (
	"context"
	"errors"
	"log/slog"
	"sync/atomic"
	"time"

	"heliactyl/config"
	"heliactyl/internal/service"

	"github.com/robfig/cron/v3"
)

// ErrSweepInProgress is returned when a sweep is already running in this
// process or, with a lock configured, in another replica.
var ErrSweepInProgress = errors.New("a boost sweep is already running")

type Sweepable interface {
	Sweep(ctx context.Context) (service.SweepResult, error)
}

// Locker serializes sweeps across replicas. A nil Locker means a single replica.
type Locker interface {
	TryLock(ctx context.Context, ttl time.Duration) (release func(), ok bool, err error)
}

type Sweeper struct {
	cron     *cron.Cron
	target   Sweepable
	locker   Locker
	schedule string
	lockTTL  time.Duration
	logger   *slog.Logger
	running  atomic.Bool
}

func NewSweeper(target Sweepable, locker Locker, cfg config.BoostConfig, logger *slog.Logger) *Sweeper {
	cronLogger := cron.PrintfLogger(slog.NewLogLogger(logger.Handler(), slog.LevelInfo))
	c := cron.New(cron.WithChain(cron.Recover(cronLogger), cron.SkipIfStillRunning(cronLogger)))
	ttl := cfg.SweepLockTTL
	if ttl <= 0 {
		ttl = time.Minute
	}
	return &Sweeper{
		cron:     c,
		target:   target,
		locker:   locker,
		schedule: cfg.SweepSchedule,
		lockTTL:  ttl,
		logger:   logger,
	}
}

// Start registers the sweep job and starts the cron scheduler.
func (s *Sweeper) Start() error {
	if _, err := s.cron.AddFunc(s.schedule, s.tick); err != nil {
		return err
	}
	s.logger.Info("scheduled boost sweep", "schedule", s.schedule)
	s.cron.Start()
	return nil
}

// Stop stops scheduling; the returned context is done once a running sweep finishes.
func (s *Sweeper) Stop() context.Context {
	return s.cron.Stop()
}

func (s *Sweeper) tick() {
	ctx, cancel := context.WithTimeout(context.Background(), s.lockTTL)
	defer cancel()

	start := time.Now()
	res, err := s.RunOnce(ctx)
	switch {
	case errors.Is(err, ErrSweepInProgress):
		s.logger.Debug("boost sweep skipped, previous run still active")
	case err != nil:
		s.logger.Error("boost sweep failed", "error", err)
	case !res.Empty():
		s.logger.Info("boost sweep finished",
			"activated", res.Activated,
			"failed", res.Failed,
			"expired", res.Expired,
			"reconciled", res.Reconciled,
			"duration_ms", time.Since(start).Milliseconds(),
		)
	}
}

// RunOnce sweeps immediately unless another sweep holds the guard.
func (s *Sweeper) RunOnce(ctx context.Context) (service.SweepResult, error) {
	if !s.running.CompareAndSwap(false, true) {
		return service.SweepResult{}, ErrSweepInProgress
	}
	defer s.running.Store(false)

	if s.locker != nil {
		release, ok, err := s.locker.TryLock(ctx, s.lockTTL)
		if err != nil {
			return service.SweepResult{}, err
		}
		if !ok {
			return service.SweepResult{}, ErrSweepInProgress
		}
		defer release()
	}
	return s.target.Sweep(ctx)
}
