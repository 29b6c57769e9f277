package repository

import (
	"errors"

	"heliactyl/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var (
	ErrInsufficientBalance = errors.New("insufficient coin balance")
	ErrInvalidAmount       = errors.New("amount must be positive")
)

type WalletRepository struct {
	db *gorm.DB
}

func NewWalletRepository(db *gorm.DB) *WalletRepository {
	return &WalletRepository{db: db}
}

// WithTx returns a repository bound to tx.
func (r *WalletRepository) WithTx(tx *gorm.DB) *WalletRepository {
	return &WalletRepository{db: tx}
}

func (r *WalletRepository) GetByUserID(userID uint) (*models.Wallet, error) {
	var w models.Wallet
	err := r.db.Where("user_id = ?", userID).First(&w).Error
	if err != nil {
		return nil, err
	}
	return &w, nil
}

func (r *WalletRepository) GetOrCreate(userID uint) (*models.Wallet, error) {
	w, err := r.GetByUserID(userID)
	if err == nil {
		return w, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}
	if err := r.db.Clauses(clause.OnConflict{DoNothing: true}).Create(&models.Wallet{UserID: userID}).Error; err != nil {
		return nil, err
	}
	return r.GetByUserID(userID)
}

// Balance returns the user's coins; users without a wallet have zero.
func (r *WalletRepository) Balance(userID uint) (int64, error) {
	w, err := r.GetByUserID(userID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return w.Coins, nil
}

func (r *WalletRepository) Credit(userID uint, amount int64) error {
	if amount <= 0 {
		return ErrInvalidAmount
	}
	if _, err := r.GetOrCreate(userID); err != nil {
		return err
	}
	return r.db.Model(&models.Wallet{}).Where("user_id = ?", userID).
		Update("coins", gorm.Expr("coins + ?", amount)).Error
}

// Debit removes amount coins in a single conditional update so the balance
// can never go negative.
func (r *WalletRepository) Debit(userID uint, amount int64) error {
	if amount <= 0 {
		return ErrInvalidAmount
	}
	res := r.db.Model(&models.Wallet{}).
		Where("user_id = ? AND coins >= ?", userID, amount).
		Update("coins", gorm.Expr("coins - ?", amount))
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrInsufficientBalance
	}
	return nil
}

// RecordTransaction appends a wallet history row. amount is signed.
func (r *WalletRepository) RecordTransaction(userID uint, amount int64, txType, reference string) error {
	return r.db.Create(&models.WalletTransaction{
		UserID:    userID,
		Amount:    amount,
		Type:      txType,
		Reference: reference,
	}).Error
}

func (r *WalletRepository) ListTransactions(userID uint, limit, offset int) ([]models.WalletTransaction, error) {
	var list []models.WalletTransaction
	err := r.db.Where("user_id = ?", userID).Order("created_at DESC, id DESC").Limit(limit).Offset(offset).Find(&list).Error
	return list, err
}
