package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"heliactyl/internal/domain"
	"heliactyl/internal/models"
	"heliactyl/internal/repository"
	"heliactyl/pkg/panel"
)

const sweepBatchSize = 100

type SweepResult struct {
	Activated  int `json:"activated"`
	Failed     int `json:"failed"`
	Expired    int `json:"expired"`
	Reconciled int `json:"reconciled"`
}

func (r SweepResult) Empty() bool {
	return r == SweepResult{}
}

// Sweep expires finished boosts, starts due scheduled ones and retries panel
// pushes that previously failed. Every transition is compare-and-swap, so a
// sweep that finds nothing due changes nothing. Callers must not run two
// sweeps at once.
func (s *BoostService) Sweep(ctx context.Context) (SweepResult, error) {
	var res SweepResult
	now := s.clock()

	// Expiry runs first so a boost chained to start when the previous one
	// ends finds the server free.
	expired, err := s.boosts.DueExpired(now, sweepBatchSize)
	if err != nil {
		return res, fmt.Errorf("list expired boosts: %w", err)
	}
	for i := range expired {
		if ctx.Err() != nil {
			return res, ctx.Err()
		}
		if s.expire(ctx, &expired[i]) {
			res.Expired++
		}
	}

	due, err := s.boosts.DueScheduled(now, sweepBatchSize)
	if err != nil {
		return res, fmt.Errorf("list due scheduled boosts: %w", err)
	}
	for i := range due {
		if ctx.Err() != nil {
			return res, ctx.Err()
		}
		switch s.activateScheduled(ctx, &due[i]) {
		case outcomeActivated:
			res.Activated++
		case outcomeFailed:
			res.Failed++
		}
	}

	flagged, err := s.boosts.NeedsReconcile(s.cfg.ReconcileMaxAttempts)
	if err != nil {
		return res, fmt.Errorf("list boosts needing reconciliation: %w", err)
	}
	for i := range flagged {
		if ctx.Err() != nil {
			return res, ctx.Err()
		}
		if s.reconcile(ctx, &flagged[i]) {
			res.Reconciled++
		}
	}
	return res, nil
}

type activationOutcome int

const (
	outcomeSkipped activationOutcome = iota
	outcomeActivated
	outcomeFailed
)

func (s *BoostService) activateScheduled(ctx context.Context, b *models.Boost) activationOutcome {
	log := s.logger.With("boost_id", b.ID, "server_id", b.ServerID)

	user, err := s.loadUser(b.UserID)
	if errors.Is(err, ErrUserNotFound) {
		return s.failScheduled(ctx, b, "user no longer exists")
	}
	if err != nil {
		log.Error("load user for scheduled boost", "error", err)
		return outcomeSkipped
	}
	bt, ok := s.catalog.Get(b.BoostType)
	if !ok {
		return s.failScheduled(ctx, b, "boost type is no longer offered")
	}
	srv, err := s.panel.GetServer(ctx, b.ServerID)
	if errors.Is(err, panel.ErrServerNotFound) {
		return s.failScheduled(ctx, b, "server not found")
	}
	if err != nil {
		// transient; retried next tick
		log.Warn("panel unavailable, scheduled boost postponed", "error", err)
		return outcomeSkipped
	}
	if !user.OwnsPanelUser(srv.User) {
		return s.failScheduled(ctx, b, "server not found")
	}
	if err := s.checkServerFree(b.ServerID); err != nil {
		switch {
		case errors.Is(err, ErrBoostAlreadyActive):
			return s.failScheduled(ctx, b, "another boost is active on this server")
		case errors.Is(err, ErrReconciliationPending):
			return s.failScheduled(ctx, b, "server resources are being reconciled")
		}
		log.Error("check server for scheduled boost", "error", err)
		return outcomeSkipped
	}

	now := s.clock()
	expires := now.Add(time.Duration(b.DurationMs) * time.Millisecond)
	initial := serverLimits(srv)
	boosted := boostedFor(initial, bt)
	change := boosted.Sub(initial)
	slot := b.ServerID

	err = s.inTx(func(r txRepos) error {
		err := r.boosts.Transition(b.ID, domain.BoostStateScheduled, b.Version, map[string]interface{}{
			"state":            domain.BoostStateActive,
			"active_server_id": slot,
			"applied_at":       now,
			"expires_at":       expires,
			"server_name":      srv.Name,
			"initial_ram":      initial.RAM,
			"initial_cpu":      initial.CPU,
			"initial_disk":     initial.Disk,
			"boosted_ram":      boosted.RAM,
			"boosted_cpu":      boosted.CPU,
			"boosted_disk":     boosted.Disk,
			"change_ram":       change.RAM,
			"change_cpu":       change.CPU,
			"change_disk":      change.Disk,
		})
		if err != nil {
			return err
		}
		b.State = domain.BoostStateActive
		b.ActiveServerID = &slot
		b.AppliedAt = &now
		b.ExpiresAt = &expires
		b.ServerName = srv.Name
		b.InitialResources = initial
		b.BoostedResources = boosted
		b.AppliedChange = change
		b.Version++
		return r.history.Append(historyEntry(b, domain.HistoryScheduledApplied, now, nil))
	})
	switch {
	case errors.Is(err, repository.ErrBoostStale):
		// cancelled or activated by someone else in the meantime
		return outcomeSkipped
	case errors.Is(err, repository.ErrActiveSlotTaken):
		return s.failScheduled(ctx, b, "another boost is active on this server")
	case err != nil:
		log.Error("activate scheduled boost", "error", err)
		return outcomeSkipped
	}

	log.Info("scheduled boost applied", "expires_at", expires)
	_ = s.pushLimits(ctx, b, boosted, "activate_scheduled")
	s.notify(ctx, b, domain.HistoryScheduledApplied, nil)
	return outcomeActivated
}

// failScheduled cancels a scheduled boost that cannot start and returns the
// full price. A boost is never left charged but unrealized.
func (s *BoostService) failScheduled(ctx context.Context, b *models.Boost, reason string) activationOutcome {
	now := s.clock()
	err := s.inTx(func(r txRepos) error {
		err := r.boosts.Transition(b.ID, domain.BoostStateScheduled, b.Version, map[string]interface{}{
			"state":         domain.BoostStateCancelled,
			"ended_at":      now,
			"refund_amount": b.Price,
		})
		if err != nil {
			return err
		}
		if b.Price > 0 {
			if err := r.wallets.Credit(b.UserID, b.Price); err != nil {
				return err
			}
			if err := r.wallets.RecordTransaction(b.UserID, b.Price, domain.WalletTxTypeBoostRefund, b.ID); err != nil {
				return err
			}
		}
		return r.history.Append(historyEntry(b, domain.HistoryScheduledFailed, now, map[string]interface{}{
			"reason":       reason,
			"refundAmount": b.Price,
		}))
	})
	if errors.Is(err, repository.ErrBoostStale) {
		return outcomeSkipped
	}
	if err != nil {
		s.logger.Error("fail scheduled boost", "boost_id", b.ID, "server_id", b.ServerID, "error", err)
		return outcomeSkipped
	}
	b.State = domain.BoostStateCancelled
	b.RefundAmount = b.Price

	s.logger.Warn("scheduled boost failed", "boost_id", b.ID, "server_id", b.ServerID, "reason", reason, "refund", b.Price)
	s.notify(ctx, b, domain.HistoryScheduledFailed, map[string]interface{}{"reason": reason, "refundAmount": b.Price})
	return outcomeFailed
}

func (s *BoostService) expire(ctx context.Context, b *models.Boost) bool {
	now := s.clock()
	err := s.inTx(func(r txRepos) error {
		err := r.boosts.Transition(b.ID, domain.BoostStateActive, b.Version, map[string]interface{}{
			"state":            domain.BoostStateExpired,
			"active_server_id": nil,
			"ended_at":         now,
		})
		if err != nil {
			return err
		}
		return r.history.Append(historyEntry(b, domain.HistoryExpired, now, nil))
	})
	if errors.Is(err, repository.ErrBoostStale) {
		return false
	}
	if err != nil {
		s.logger.Error("expire boost", "boost_id", b.ID, "server_id", b.ServerID, "error", err)
		return false
	}
	b.State = domain.BoostStateExpired
	b.ActiveServerID = nil
	b.EndedAt = &now
	b.Version++

	s.logger.Info("boost expired", "boost_id", b.ID, "server_id", b.ServerID)
	_ = s.pushLimits(ctx, b, b.InitialResources, "expire")
	s.notify(ctx, b, domain.HistoryExpired, nil)
	return true
}

// reconcile re-pushes the limits the ledger expects for b.
func (s *BoostService) reconcile(ctx context.Context, b *models.Boost) bool {
	limits := b.DesiredLimits()
	if err := s.panel.SetLimits(ctx, b.ServerID, limits.RAM, limits.CPU, limits.Disk); err != nil {
		attempts := b.ReconcileAttempts + 1
		if flagErr := s.boosts.FlagReconcile(b.ID, err, 1); flagErr != nil {
			s.logger.Error("record reconcile attempt", "boost_id", b.ID, "error", flagErr)
		}
		if attempts >= s.cfg.ReconcileMaxAttempts {
			s.logger.Error("reconciliation abandoned, operator action required",
				"boost_id", b.ID, "server_id", b.ServerID, "attempts", attempts, "error", err)
		} else {
			s.logger.Warn("reconciliation failed", "boost_id", b.ID, "server_id", b.ServerID, "attempts", attempts, "error", err)
		}
		return false
	}
	cleared, err := s.boosts.MarkReconciled(b.ID, b.Version)
	if err != nil {
		s.logger.Error("clear reconcile flag", "boost_id", b.ID, "error", err)
		return false
	}
	if !cleared {
		// boost moved on while we pushed; the next sweep pushes the new target
		return false
	}
	s.logger.Info("boost reconciled", "boost_id", b.ID, "server_id", b.ServerID, "state", b.State)
	return true
}
