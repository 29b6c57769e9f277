package models

import (
	"time"
)

// WalletTransaction records coin credits/debits (boost purchases, refunds, store).
type WalletTransaction struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	UserID    uint      `gorm:"not null;index" json:"user_id"`
	Amount    int64     `gorm:"not null" json:"amount"`             // positive = credit, negative = debit
	Type      string    `gorm:"size:30;not null;index" json:"type"` // BOOST_PURCHASE, BOOST_REFUND, ...
	Reference string    `gorm:"size:128" json:"reference"`          // e.g. boost id
	CreatedAt time.Time `json:"created_at"`
}

func (WalletTransaction) TableName() string {
	return "wallet_transactions"
}
