package service

import (
	"heliactyl/internal/domain"
	"heliactyl/internal/repository"

	"gorm.io/gorm"
)

// CreditCoins adds coins to a user's wallet with an ADMIN_CREDIT record.
func CreditCoins(db *gorm.DB, userID uint, amount int64, reference string) error {
	if amount <= 0 {
		return repository.ErrInvalidAmount
	}
	if _, err := repository.NewUserRepository(db).GetByID(userID); err != nil {
		return ErrUserNotFound
	}
	return db.Transaction(func(tx *gorm.DB) error {
		wallets := repository.NewWalletRepository(tx)
		if err := wallets.Credit(userID, amount); err != nil {
			return err
		}
		return wallets.RecordTransaction(userID, amount, domain.WalletTxTypeAdminCredit, reference)
	})
}
