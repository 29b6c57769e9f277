package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"time"

	"heliactyl/config"
	"heliactyl/internal/boosts"
	"heliactyl/internal/models"
	"heliactyl/internal/repository"
	"heliactyl/pkg/panel"

	"gorm.io/gorm"
)

var (
	ErrInvalidBoostType         = errors.New("invalid boost type")
	ErrInvalidDuration          = errors.New("invalid duration for this boost type")
	ErrInsufficientBalance      = errors.New("insufficient coins")
	ErrBoostAlreadyActive       = errors.New("server already has an active boost")
	ErrServerNotFound           = errors.New("server not found")
	ErrUserNotFound             = errors.New("user not found")
	ErrBoostNotFound            = errors.New("boost not found")
	ErrScheduledBoostNotFound   = errors.New("scheduled boost not found")
	ErrScheduledTimeNotInFuture = errors.New("scheduled time must be in the future")
	ErrAlreadyProcessed         = errors.New("boost was already processed")
	ErrReconciliationPending    = errors.New("server resources are being reconciled, try again shortly")
	ErrPanelUnavailable         = errors.New("hosting panel request failed")
)

// PanelClient is the part of the hosting panel API the boost ledger needs.
type PanelClient interface {
	GetServer(ctx context.Context, serverID string) (*panel.Server, error)
	SetLimits(ctx context.Context, serverID string, memory, cpu, disk int64) error
}

// Notifier is told about every committed boost state change.
type Notifier interface {
	NotifyBoost(ctx context.Context, b *models.Boost, kind string, details map[string]interface{})
}

type BoostService struct {
	db       *gorm.DB
	catalog  *boosts.Catalog
	boosts   *repository.BoostRepository
	history  *repository.HistoryRepository
	wallets  *repository.WalletRepository
	users    *repository.UserRepository
	panel    PanelClient
	notifier Notifier
	cfg      config.BoostConfig
	logger   *slog.Logger
	now      func() time.Time
}

func NewBoostService(
	db *gorm.DB,
	catalog *boosts.Catalog,
	panelClient PanelClient,
	notifier Notifier,
	cfg config.BoostConfig,
	logger *slog.Logger,
) *BoostService {
	return &BoostService{
		db:       db,
		catalog:  catalog,
		boosts:   repository.NewBoostRepository(db),
		history:  repository.NewHistoryRepository(db),
		wallets:  repository.NewWalletRepository(db),
		users:    repository.NewUserRepository(db),
		panel:    panelClient,
		notifier: notifier,
		cfg:      cfg,
		logger:   logger,
		now:      time.Now,
	}
}

// SetClock replaces the time source.
func (s *BoostService) SetClock(now func() time.Time) {
	s.now = now
}

func (s *BoostService) Catalog() *boosts.Catalog {
	return s.catalog
}

func (s *BoostService) clock() time.Time {
	return s.now().UTC().Truncate(time.Millisecond)
}

// txRepos are the repositories bound to one transaction. Only these may be
// used inside a transaction callback.
type txRepos struct {
	boosts  *repository.BoostRepository
	history *repository.HistoryRepository
	wallets *repository.WalletRepository
}

func (s *BoostService) inTx(fn func(r txRepos) error) error {
	return s.db.Transaction(func(tx *gorm.DB) error {
		return fn(txRepos{
			boosts:  s.boosts.WithTx(tx),
			history: s.history.WithTx(tx),
			wallets: s.wallets.WithTx(tx),
		})
	})
}

// Active returns the caller's active boosts keyed by server then boost id.
func (s *BoostService) Active(userID uint) (map[string]map[string]models.Boost, error) {
	list, err := s.boosts.ListActiveByUser(userID)
	if err != nil {
		return nil, err
	}
	out := make(map[string]map[string]models.Boost)
	for _, b := range list {
		if out[b.ServerID] == nil {
			out[b.ServerID] = make(map[string]models.Boost)
		}
		out[b.ServerID][b.ID] = b
	}
	return out, nil
}

// Scheduled returns pending scheduled boosts in trigger order.
func (s *BoostService) Scheduled(userID uint) ([]models.Boost, error) {
	return s.boosts.ListScheduledByUser(userID)
}

const (
	defaultHistoryLimit = 50
	maxHistoryLimit     = 200
)

func (s *BoostService) History(userID uint, limit int) ([]models.BoostHistory, error) {
	if limit <= 0 {
		limit = defaultHistoryLimit
	}
	if limit > maxHistoryLimit {
		limit = maxHistoryLimit
	}
	return s.history.ListByUser(userID, limit)
}

// ListReconcile returns every boost whose panel state is known to diverge.
func (s *BoostService) ListReconcile() ([]models.Boost, error) {
	return s.boosts.NeedsReconcile(0)
}

// resolveTier validates the boost type and duration tier and returns the
// type, its price and the tier length.
func (s *BoostService) resolveTier(boostType, tier string) (boosts.BoostType, int64, time.Duration, error) {
	bt, ok := s.catalog.Get(boostType)
	if !ok {
		return bt, 0, 0, ErrInvalidBoostType
	}
	price, ok := bt.Price(tier)
	if !ok {
		return bt, 0, 0, ErrInvalidDuration
	}
	d, err := boosts.ResolveDuration(tier)
	if err != nil || d <= 0 {
		return bt, 0, 0, ErrInvalidDuration
	}
	return bt, price, d, nil
}

// ownedServer loads the panel server and checks that user owns it.
func (s *BoostService) ownedServer(ctx context.Context, user *models.User, serverID string) (*panel.Server, error) {
	srv, err := s.panel.GetServer(ctx, serverID)
	if errors.Is(err, panel.ErrServerNotFound) {
		return nil, ErrServerNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPanelUnavailable, err)
	}
	if !user.OwnsPanelUser(srv.User) {
		return nil, ErrServerNotFound
	}
	return srv, nil
}

func (s *BoostService) loadUser(userID uint) (*models.User, error) {
	u, err := s.users.GetByID(userID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrUserNotFound
	}
	return u, err
}

func serverLimits(srv *panel.Server) models.Resources {
	return models.Resources{RAM: srv.Limits.Memory, CPU: srv.Limits.CPU, Disk: srv.Limits.Disk}
}

func boostedFor(initial models.Resources, bt boosts.BoostType) models.Resources {
	m := bt.ResourceMultiplier
	return initial.Scale(m.RAM, m.CPU, m.Disk)
}

// pushLimits sets the server limits on the panel. A failure flags the boost
// for reconciliation and is returned wrapped in ErrPanelUnavailable.
func (s *BoostService) pushLimits(ctx context.Context, b *models.Boost, limits models.Resources, action string) error {
	err := s.panel.SetLimits(ctx, b.ServerID, limits.RAM, limits.CPU, limits.Disk)
	if err == nil {
		return nil
	}
	s.logger.Error("panel out of sync with boost ledger",
		"action", action,
		"boost_id", b.ID,
		"server_id", b.ServerID,
		"error", err,
	)
	if flagErr := s.boosts.FlagReconcile(b.ID, err, 0); flagErr != nil {
		s.logger.Error("failed to flag boost for reconciliation", "boost_id", b.ID, "error", flagErr)
	}
	b.NeedsReconcile = true
	return fmt.Errorf("%w: %v", ErrPanelUnavailable, err)
}

func (s *BoostService) notify(ctx context.Context, b *models.Boost, kind string, details map[string]interface{}) {
	if s.notifier == nil {
		return
	}
	s.notifier.NotifyBoost(ctx, b, kind, details)
}

// cancelRefund is the prorated refund for an active boost: the unused
// fraction of the price times rate, rounded half away from zero.
func cancelRefund(price, durationMs, remainingMs int64, rate float64) int64 {
	if durationMs <= 0 || price <= 0 {
		return 0
	}
	remainingMs = clampRemaining(remainingMs, durationMs)
	if rate > 1 {
		rate = 1
	}
	refund := int64(math.Round(float64(price) * rate * float64(remainingMs) / float64(durationMs)))
	if refund > price {
		refund = price
	}
	return refund
}

func debitError(err error) error {
	if errors.Is(err, repository.ErrInsufficientBalance) {
		return ErrInsufficientBalance
	}
	return err
}
