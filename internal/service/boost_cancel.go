package service

import (
	"context"
	"errors"

	"heliactyl/internal/domain"
	"heliactyl/internal/repository"
)

// Cancel ends an active boost early and refunds part of the unused time.
// The refund is committed even if reverting the panel limits fails; in that
// case the boost is flagged for reconciliation and ErrPanelUnavailable is
// returned alongside the refund.
func (s *BoostService) Cancel(ctx context.Context, userID uint, serverID, boostID string) (int64, error) {
	b, err := s.boosts.GetByID(boostID)
	if errors.Is(err, repository.ErrBoostNotFound) {
		return 0, ErrBoostNotFound
	}
	if err != nil {
		return 0, err
	}
	if b.UserID != userID || b.ServerID != serverID || !b.IsActive() || b.ExpiresAt == nil {
		return 0, ErrBoostNotFound
	}

	now := s.clock()
	remaining := b.ExpiresAt.Sub(now).Milliseconds()
	refund := cancelRefund(b.Price, b.DurationMs, remaining, s.cfg.CancelRefundRate)

	err = s.inTx(func(r txRepos) error {
		err := r.boosts.Transition(b.ID, domain.BoostStateActive, b.Version, map[string]interface{}{
			"state":            domain.BoostStateCancelled,
			"active_server_id": nil,
			"ended_at":         now,
			"refund_amount":    refund,
		})
		if errors.Is(err, repository.ErrBoostStale) {
			return ErrAlreadyProcessed
		}
		if err != nil {
			return err
		}
		if refund > 0 {
			if err := r.wallets.Credit(userID, refund); err != nil {
				return err
			}
			if err := r.wallets.RecordTransaction(userID, refund, domain.WalletTxTypeBoostRefund, b.ID); err != nil {
				return err
			}
		}
		return r.history.Append(historyEntry(b, domain.HistoryCancelled, now, map[string]interface{}{
			"refundAmount": refund,
			"remainingMs":  clampRemaining(remaining, b.DurationMs),
		}))
	})
	if err != nil {
		return 0, err
	}
	b.State = domain.BoostStateCancelled
	b.ActiveServerID = nil
	b.EndedAt = &now
	b.RefundAmount = refund
	b.Version++

	s.logger.Info("boost cancelled", "boost_id", b.ID, "server_id", b.ServerID, "refund", refund)
	pushErr := s.pushLimits(ctx, b, b.InitialResources, "cancel")
	s.notify(ctx, b, domain.HistoryCancelled, map[string]interface{}{"refundAmount": refund})
	if pushErr != nil {
		return refund, pushErr
	}
	return refund, nil
}

// CancelScheduled withdraws a boost that has not started and refunds it in full.
func (s *BoostService) CancelScheduled(ctx context.Context, userID uint, boostID string) (int64, error) {
	b, err := s.boosts.GetByID(boostID)
	if errors.Is(err, repository.ErrBoostNotFound) {
		return 0, ErrScheduledBoostNotFound
	}
	if err != nil {
		return 0, err
	}
	if b.UserID != userID || !b.IsScheduled() {
		return 0, ErrScheduledBoostNotFound
	}

	now := s.clock()
	refund := b.Price
	err = s.inTx(func(r txRepos) error {
		err := r.boosts.Transition(b.ID, domain.BoostStateScheduled, b.Version, map[string]interface{}{
			"state":         domain.BoostStateCancelled,
			"ended_at":      now,
			"refund_amount": refund,
		})
		if errors.Is(err, repository.ErrBoostStale) {
			return ErrScheduledBoostNotFound
		}
		if err != nil {
			return err
		}
		if refund > 0 {
			if err := r.wallets.Credit(userID, refund); err != nil {
				return err
			}
			if err := r.wallets.RecordTransaction(userID, refund, domain.WalletTxTypeBoostRefund, b.ID); err != nil {
				return err
			}
		}
		return r.history.Append(historyEntry(b, domain.HistoryScheduledCancelled, now, map[string]interface{}{
			"refundAmount": refund,
		}))
	})
	if err != nil {
		return 0, err
	}
	b.State = domain.BoostStateCancelled
	b.RefundAmount = refund

	s.logger.Info("scheduled boost cancelled", "boost_id", b.ID, "server_id", b.ServerID, "refund", refund)
	s.notify(ctx, b, domain.HistoryScheduledCancelled, map[string]interface{}{"refundAmount": refund})
	return refund, nil
}

func clampRemaining(remaining, durationMs int64) int64 {
	if remaining < 0 {
		return 0
	}
	if remaining > durationMs {
		return durationMs
	}
	return remaining
}
