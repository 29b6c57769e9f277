package repository

import (
	"heliactyl/internal/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type HistoryRepository struct {
	db *gorm.DB
}

func NewHistoryRepository(db *gorm.DB) *HistoryRepository {
	return &HistoryRepository{db: db}
}

func (r *HistoryRepository) WithTx(tx *gorm.DB) *HistoryRepository {
	return &HistoryRepository{db: tx}
}

func (r *HistoryRepository) Append(h *models.BoostHistory) error {
	if h.ID == "" {
		h.ID = uuid.NewString()
	}
	return r.db.Create(h).Error
}

// ListByUser returns the user's history newest first.
func (r *HistoryRepository) ListByUser(userID uint, limit int) ([]models.BoostHistory, error) {
	var list []models.BoostHistory
	err := r.db.Where("user_id = ?", userID).Order("timestamp DESC").Order("seq DESC").Limit(limit).Find(&list).Error
	return list, err
}

func (r *HistoryRepository) ListByBoost(boostID string) ([]models.BoostHistory, error) {
	var list []models.BoostHistory
	err := r.db.Where("boost_id = ?", boostID).Order("timestamp ASC").Order("seq ASC").Find(&list).Error
	return list, err
}
