package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"heliactyl/config"
	"heliactyl/internal/domain"
	"heliactyl/internal/models"
	"heliactyl/internal/repository"

	"gorm.io/gorm"
)

var (
	ErrInvalidResourceType = errors.New("invalid resource type")
	ErrInvalidQuantity     = errors.New("amount must be at least 1")
	ErrStoreLimitReached   = errors.New("purchase would exceed the limit for this resource")
)

type StorePrices struct {
	Resources config.StoreResources `json:"resources"`
}

// StoreView is the coin store as seen by one user.
type StoreView struct {
	UserBalance int64                 `json:"userBalance"`
	Prices      StorePrices           `json:"prices"`
	Multipliers config.StoreResources `json:"multipliers"`
	Limits      config.StoreResources `json:"limits"`
	Purchased   config.StoreResources `json:"purchased"`
	CanAfford   map[string]bool       `json:"canAfford"`
}

type StoreService struct {
	db      *gorm.DB
	cfg     config.StoreConfig
	wallets *repository.WalletRepository
	users   *repository.UserRepository
	logger  *slog.Logger
}

func NewStoreService(db *gorm.DB, cfg config.StoreConfig, logger *slog.Logger) *StoreService {
	return &StoreService{
		db:      db,
		cfg:     cfg,
		wallets: repository.NewWalletRepository(db),
		users:   repository.NewUserRepository(db),
		logger:  logger,
	}
}

func pick(r config.StoreResources, resource string) (int64, bool) {
	switch resource {
	case domain.ResourceRAM:
		return r.RAM, true
	case domain.ResourceDisk:
		return r.Disk, true
	case domain.ResourceCPU:
		return r.CPU, true
	case domain.ResourceServers:
		return r.Servers, true
	}
	return 0, false
}

// purchasedUnits converts the user's extra resources back into store units.
func (s *StoreService) purchasedUnits(u *models.User) config.StoreResources {
	units := func(extra, mult int64) int64 {
		if mult <= 0 {
			return 0
		}
		return extra / mult
	}
	m := s.cfg.Multipliers
	return config.StoreResources{
		RAM:     units(u.ExtraRAM, m.RAM),
		Disk:    units(u.ExtraDisk, m.Disk),
		CPU:     units(u.ExtraCPU, m.CPU),
		Servers: units(u.ExtraServers, m.Servers),
	}
}

func (s *StoreService) Config(userID uint) (*StoreView, error) {
	u, err := s.users.GetByID(userID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, err
	}
	bal, err := s.wallets.Balance(userID)
	if err != nil {
		return nil, err
	}
	purchased := s.purchasedUnits(u)
	can := make(map[string]bool, 4)
	for _, r := range []string{domain.ResourceRAM, domain.ResourceDisk, domain.ResourceCPU, domain.ResourceServers} {
		price, _ := pick(s.cfg.Prices, r)
		limit, _ := pick(s.cfg.Limits, r)
		have, _ := pick(purchased, r)
		can[r] = price > 0 && bal >= price && have < limit
	}
	return &StoreView{
		UserBalance: bal,
		Prices:      StorePrices{Resources: s.cfg.Prices},
		Multipliers: s.cfg.Multipliers,
		Limits:      s.cfg.Limits,
		Purchased:   purchased,
		CanAfford:   can,
	}, nil
}

// Buy spends amount × price coins on amount units of a resource.
func (s *StoreService) Buy(ctx context.Context, userID uint, resource string, amount int64) (*models.User, error) {
	price, ok := pick(s.cfg.Prices, resource)
	if !ok || price <= 0 {
		return nil, ErrInvalidResourceType
	}
	if amount < 1 {
		return nil, ErrInvalidQuantity
	}
	mult, _ := pick(s.cfg.Multipliers, resource)
	limit, _ := pick(s.cfg.Limits, resource)

	total := price * amount
	gain := mult * amount
	var add config.StoreResources
	switch resource {
	case domain.ResourceRAM:
		add.RAM = gain
	case domain.ResourceDisk:
		add.Disk = gain
	case domain.ResourceCPU:
		add.CPU = gain
	case domain.ResourceServers:
		add.Servers = gain
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		users := s.users.WithTx(tx)
		wallets := s.wallets.WithTx(tx)
		u, err := users.GetByID(userID)
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrUserNotFound
		}
		if err != nil {
			return err
		}
		have, _ := pick(s.purchasedUnits(u), resource)
		if have+amount > limit {
			return ErrStoreLimitReached
		}
		if err := wallets.Debit(userID, total); err != nil {
			return debitError(err)
		}
		if err := wallets.RecordTransaction(userID, -total, domain.WalletTxTypeStorePurchase, fmt.Sprintf("%s:%d", resource, amount)); err != nil {
			return err
		}
		return users.AddExtraResources(userID, add.RAM, add.Disk, add.CPU, add.Servers)
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info("store purchase", "user_id", userID, "resource", resource, "amount", amount, "cost", total)
	return s.users.GetByID(userID)
}
