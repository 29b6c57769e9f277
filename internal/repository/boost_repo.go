package repository

import (
	"errors"
	"strings"
	"time"
	"unicode/utf8"

	"heliactyl/internal/domain"
	"heliactyl/internal/models"

	"gorm.io/gorm"
)

var (
	ErrBoostNotFound = errors.New("boost not found")
	// ErrBoostStale means the record changed state or version since it was read.
	ErrBoostStale = errors.New("boost was modified concurrently")
	// ErrActiveSlotTaken means another active boost already holds the server.
	ErrActiveSlotTaken = errors.New("server already has an active boost")
)

type BoostRepository struct {
	db *gorm.DB
}

func NewBoostRepository(db *gorm.DB) *BoostRepository {
	return &BoostRepository{db: db}
}

func (r *BoostRepository) WithTx(tx *gorm.DB) *BoostRepository {
	return &BoostRepository{db: tx}
}

func (r *BoostRepository) Create(b *models.Boost) error {
	err := r.db.Create(b).Error
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return ErrActiveSlotTaken
	}
	return err
}

func (r *BoostRepository) GetByID(id string) (*models.Boost, error) {
	var b models.Boost
	err := r.db.Where("id = ?", id).First(&b).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrBoostNotFound
	}
	if err != nil {
		return nil, err
	}
	return &b, nil
}

// ActiveForServer returns the active boost on serverID, or nil when there is none.
func (r *BoostRepository) ActiveForServer(serverID string) (*models.Boost, error) {
	var list []models.Boost
	err := r.db.Where("server_id = ? AND state = ?", serverID, domain.BoostStateActive).Limit(1).Find(&list).Error
	if err != nil || len(list) == 0 {
		return nil, err
	}
	return &list[0], nil
}

func (r *BoostRepository) HasPendingReconcile(serverID string) (bool, error) {
	var n int64
	err := r.db.Model(&models.Boost{}).Where("server_id = ? AND needs_reconcile = ?", serverID, true).Count(&n).Error
	return n > 0, err
}

func (r *BoostRepository) ListActiveByUser(userID uint) ([]models.Boost, error) {
	var list []models.Boost
	err := r.db.Where("user_id = ? AND state = ?", userID, domain.BoostStateActive).Order("applied_at ASC").Find(&list).Error
	return list, err
}

func (r *BoostRepository) ListScheduledByUser(userID uint) ([]models.Boost, error) {
	var list []models.Boost
	err := r.db.Where("user_id = ? AND state = ?", userID, domain.BoostStateScheduled).Order("scheduled_time ASC").Find(&list).Error
	return list, err
}

// DueScheduled lists scheduled boosts whose start time has been reached.
func (r *BoostRepository) DueScheduled(now time.Time, limit int) ([]models.Boost, error) {
	var list []models.Boost
	err := r.db.Where("state = ? AND scheduled_time <= ?", domain.BoostStateScheduled, now).
		Order("scheduled_time ASC").Limit(limit).Find(&list).Error
	return list, err
}

// DueExpired lists active boosts whose expiry has been reached.
func (r *BoostRepository) DueExpired(now time.Time, limit int) ([]models.Boost, error) {
	var list []models.Boost
	err := r.db.Where("state = ? AND expires_at <= ?", domain.BoostStateActive, now).
		Order("expires_at ASC").Limit(limit).Find(&list).Error
	return list, err
}

// NeedsReconcile lists flagged boosts with fewer than maxAttempts failed pushes.
// maxAttempts <= 0 lists every flagged boost.
func (r *BoostRepository) NeedsReconcile(maxAttempts int) ([]models.Boost, error) {
	q := r.db.Where("needs_reconcile = ?", true)
	if maxAttempts > 0 {
		q = q.Where("reconcile_attempts < ?", maxAttempts)
	}
	var list []models.Boost
	err := q.Order("updated_at ASC").Find(&list).Error
	return list, err
}

// Transition applies fields to the boost only if it is still in state from at
// the given version, and bumps the version.
func (r *BoostRepository) Transition(id, from string, version int64, fields map[string]interface{}) error {
	updates := make(map[string]interface{}, len(fields)+1)
	for k, v := range fields {
		updates[k] = v
	}
	updates["version"] = gorm.Expr("version + 1")
	res := r.db.Model(&models.Boost{}).
		Where("id = ? AND state = ? AND version = ?", id, from, version).
		Updates(updates)
	if res.Error != nil {
		if errors.Is(res.Error, gorm.ErrDuplicatedKey) {
			return ErrActiveSlotTaken
		}
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrBoostStale
	}
	return nil
}

// MarkReconciled clears the reconciliation flag unless the boost changed
// since version was read.
func (r *BoostRepository) MarkReconciled(id string, version int64) (bool, error) {
	res := r.db.Model(&models.Boost{}).Where("id = ? AND version = ?", id, version).Updates(map[string]interface{}{
		"needs_reconcile":    false,
		"reconcile_attempts": 0,
		"reconcile_error":    "",
	})
	return res.RowsAffected > 0, res.Error
}

// FlagReconcile records a failed panel push. attempt is added to the counter.
func (r *BoostRepository) FlagReconcile(id string, cause error, attempt int) error {
	msg := ""
	if cause != nil {
		msg = truncateRunes(cause.Error(), reconcileErrorLimit)
	}
	return r.db.Model(&models.Boost{}).Where("id = ?", id).Updates(map[string]interface{}{
		"needs_reconcile":    true,
		"reconcile_attempts": gorm.Expr("reconcile_attempts + ?", attempt),
		"reconcile_error":    msg,
	}).Error
}

// reconcileErrorLimit matches the reconcile_error column size, in characters.
const reconcileErrorLimit = 512

// truncateRunes keeps at most n characters of s, dropping invalid UTF-8 and
// never splitting a multi-byte character.
func truncateRunes(s string, n int) string {
	s = strings.ToValidUTF8(s, "")
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	i := 0
	for pos := range s {
		if i == n {
			return s[:pos]
		}
		i++
	}
	return s
}
