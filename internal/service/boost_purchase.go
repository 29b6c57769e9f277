package service

import (
	"context"
	"errors"
	"time"

	"heliactyl/internal/domain"
	"heliactyl/internal/models"
	"heliactyl/internal/repository"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

type ApplyInput struct {
	ServerID  string
	BoostType string
	Duration  string
}

type ScheduleInput struct {
	ApplyInput
	ScheduledTime time.Time
}

type ExtendInput struct {
	ServerID           string
	BoostID            string
	AdditionalDuration string
}

// Apply buys a boost and applies it to the server right away. Every
// precondition is checked before coins move. When the panel rejects the new
// limits after commit, the boost is returned flagged for reconciliation
// together with an ErrPanelUnavailable error.
func (s *BoostService) Apply(ctx context.Context, userID uint, in ApplyInput) (*models.Boost, error) {
	bt, price, d, err := s.resolveTier(in.BoostType, in.Duration)
	if err != nil {
		return nil, err
	}
	user, err := s.loadUser(userID)
	if err != nil {
		return nil, err
	}
	srv, err := s.ownedServer(ctx, user, in.ServerID)
	if err != nil {
		return nil, err
	}
	if err := s.checkServerFree(in.ServerID); err != nil {
		return nil, err
	}
	if err := s.checkBalance(userID, price); err != nil {
		return nil, err
	}

	now := s.clock()
	expires := now.Add(d)
	initial := serverLimits(srv)
	boosted := boostedFor(initial, bt)
	slot := in.ServerID
	b := &models.Boost{
		ID:               uuid.NewString(),
		UserID:           userID,
		ServerID:         in.ServerID,
		ServerName:       srv.Name,
		BoostType:        bt.ID,
		Duration:         in.Duration,
		DurationMs:       d.Milliseconds(),
		Price:            price,
		InitialResources: initial,
		BoostedResources: boosted,
		AppliedChange:    boosted.Sub(initial),
		State:            domain.BoostStateActive,
		ActiveServerID:   &slot,
		AppliedAt:        &now,
		ExpiresAt:        &expires,
		Version:          1,
		CreatedAt:        now,
	}

	err = s.inTx(func(r txRepos) error {
		if err := r.wallets.Debit(userID, price); err != nil {
			return debitError(err)
		}
		if err := r.wallets.RecordTransaction(userID, -price, domain.WalletTxTypeBoostPurchase, b.ID); err != nil {
			return err
		}
		if err := r.boosts.Create(b); err != nil {
			if errors.Is(err, repository.ErrActiveSlotTaken) {
				return ErrBoostAlreadyActive
			}
			return err
		}
		return r.history.Append(historyEntry(b, domain.HistoryApplied, now, nil))
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("boost applied", "boost_id", b.ID, "server_id", b.ServerID, "user_id", userID, "boost_type", b.BoostType, "price", price)
	pushErr := s.pushLimits(ctx, b, boosted, "apply")
	s.notify(ctx, b, domain.HistoryApplied, nil)
	if pushErr != nil {
		return b, pushErr
	}
	return b, nil
}

// Schedule buys a boost that the sweep will apply at in.ScheduledTime.
// Coins are taken now and returned in full if the boost cannot start.
func (s *BoostService) Schedule(ctx context.Context, userID uint, in ScheduleInput) (*models.Boost, error) {
	bt, price, d, err := s.resolveTier(in.BoostType, in.Duration)
	if err != nil {
		return nil, err
	}
	now := s.clock()
	at := in.ScheduledTime.UTC().Truncate(time.Millisecond)
	if !at.After(now) {
		return nil, ErrScheduledTimeNotInFuture
	}
	user, err := s.loadUser(userID)
	if err != nil {
		return nil, err
	}
	srv, err := s.ownedServer(ctx, user, in.ServerID)
	if err != nil {
		return nil, err
	}
	pending, err := s.boosts.HasPendingReconcile(in.ServerID)
	if err != nil {
		return nil, err
	}
	if pending {
		return nil, ErrReconciliationPending
	}
	active, err := s.boosts.ActiveForServer(in.ServerID)
	if err != nil {
		return nil, err
	}
	// Preview only; the snapshot is retaken when the boost starts.
	initial := serverLimits(srv)
	if active != nil {
		if active.ExpiresAt != nil && active.ExpiresAt.After(at) {
			return nil, ErrBoostAlreadyActive
		}
		initial = active.InitialResources
	}
	if err := s.checkBalance(userID, price); err != nil {
		return nil, err
	}

	boosted := boostedFor(initial, bt)
	b := &models.Boost{
		ID:               uuid.NewString(),
		UserID:           userID,
		ServerID:         in.ServerID,
		ServerName:       srv.Name,
		BoostType:        bt.ID,
		Duration:         in.Duration,
		DurationMs:       d.Milliseconds(),
		Price:            price,
		InitialResources: initial,
		BoostedResources: boosted,
		AppliedChange:    boosted.Sub(initial),
		State:            domain.BoostStateScheduled,
		ScheduledTime:    &at,
		Version:          1,
		CreatedAt:        now,
	}

	err = s.inTx(func(r txRepos) error {
		if err := r.wallets.Debit(userID, price); err != nil {
			return debitError(err)
		}
		if err := r.wallets.RecordTransaction(userID, -price, domain.WalletTxTypeBoostPurchase, b.ID); err != nil {
			return err
		}
		if err := r.boosts.Create(b); err != nil {
			return err
		}
		return r.history.Append(historyEntry(b, domain.HistoryScheduled, now, map[string]interface{}{
			"scheduledTime": at.UnixMilli(),
		}))
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("boost scheduled", "boost_id", b.ID, "server_id", b.ServerID, "user_id", userID, "scheduled_time", at)
	s.notify(ctx, b, domain.HistoryScheduled, nil)
	return b, nil
}

// Extend lengthens a running boost by another tier of the same type.
func (s *BoostService) Extend(ctx context.Context, userID uint, in ExtendInput) (*models.Boost, error) {
	b, err := s.boosts.GetByID(in.BoostID)
	if errors.Is(err, repository.ErrBoostNotFound) {
		return nil, ErrBoostNotFound
	}
	if err != nil {
		return nil, err
	}
	now := s.clock()
	if b.UserID != userID || b.ServerID != in.ServerID || !b.IsActive() || b.ExpiresAt == nil || !b.ExpiresAt.After(now) {
		return nil, ErrBoostNotFound
	}
	_, price, d, err := s.resolveTier(b.BoostType, in.AdditionalDuration)
	if errors.Is(err, ErrInvalidBoostType) {
		// the type was removed from the catalog after purchase
		return nil, ErrInvalidDuration
	}
	if err != nil {
		return nil, err
	}
	if err := s.checkBalance(userID, price); err != nil {
		return nil, err
	}

	expires := b.ExpiresAt.Add(d)
	durationMs := b.DurationMs + d.Milliseconds()
	total := b.Price + price
	err = s.inTx(func(r txRepos) error {
		if err := r.wallets.Debit(userID, price); err != nil {
			return debitError(err)
		}
		if err := r.wallets.RecordTransaction(userID, -price, domain.WalletTxTypeBoostExtend, b.ID); err != nil {
			return err
		}
		err := r.boosts.Transition(b.ID, domain.BoostStateActive, b.Version, map[string]interface{}{
			"expires_at":  expires,
			"duration_ms": durationMs,
			"price":       total,
		})
		if errors.Is(err, repository.ErrBoostStale) {
			return ErrAlreadyProcessed
		}
		if err != nil {
			return err
		}
		b.ExpiresAt = &expires
		b.DurationMs = durationMs
		b.Price = total
		b.Version++
		return r.history.Append(historyEntry(b, domain.HistoryExtended, now, map[string]interface{}{
			"additionalDuration": in.AdditionalDuration,
			"extensionPrice":     price,
		}))
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("boost extended", "boost_id", b.ID, "server_id", b.ServerID, "additional_duration", in.AdditionalDuration)
	s.notify(ctx, b, domain.HistoryExtended, map[string]interface{}{"additionalDuration": in.AdditionalDuration})
	return b, nil
}

func (s *BoostService) checkServerFree(serverID string) error {
	pending, err := s.boosts.HasPendingReconcile(serverID)
	if err != nil {
		return err
	}
	if pending {
		return ErrReconciliationPending
	}
	active, err := s.boosts.ActiveForServer(serverID)
	if err != nil {
		return err
	}
	if active != nil {
		return ErrBoostAlreadyActive
	}
	return nil
}

func (s *BoostService) checkBalance(userID uint, price int64) error {
	bal, err := s.wallets.Balance(userID)
	if err != nil {
		return err
	}
	if bal < price {
		return ErrInsufficientBalance
	}
	return nil
}

func historyEntry(b *models.Boost, kind string, at time.Time, extra map[string]interface{}) *models.BoostHistory {
	details := datatypes.JSONMap{
		"boostType":  b.BoostType,
		"duration":   b.Duration,
		"price":      b.Price,
		"serverName": b.ServerName,
	}
	for k, v := range extra {
		details[k] = v
	}
	return &models.BoostHistory{
		UserID:    b.UserID,
		ServerID:  b.ServerID,
		BoostID:   b.ID,
		Type:      kind,
		Timestamp: at,
		Details:   details,
	}
}
