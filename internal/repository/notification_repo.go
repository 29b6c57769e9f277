package repository

import (
	"errors"
	"time"

	"heliactyl/internal/models"

	"gorm.io/gorm"
)

var ErrNotificationNotFound = errors.New("notification not found")

type NotificationRepository struct {
	db *gorm.DB
}

func NewNotificationRepository(db *gorm.DB) *NotificationRepository {
	return &NotificationRepository{db: db}
}

// NotificationFilter pages through one user's inbox.
type NotificationFilter struct {
	UnreadOnly bool
	Limit      int
	Offset     int
}

func (r *NotificationRepository) Create(n *models.Notification) error {
	return r.db.Create(n).Error
}

// ListForUser returns notifications newest first.
func (r *NotificationRepository) ListForUser(userID uint, f NotificationFilter) ([]models.Notification, error) {
	q := r.db.Where("user_id = ?", userID)
	if f.UnreadOnly {
		q = q.Where("read_at IS NULL")
	}
	var list []models.Notification
	err := q.Order("created_at DESC, id DESC").Limit(f.Limit).Offset(f.Offset).Find(&list).Error
	return list, err
}

func (r *NotificationRepository) CountUnread(userID uint) (int64, error) {
	var n int64
	err := r.db.Model(&models.Notification{}).Where("user_id = ? AND read_at IS NULL", userID).Count(&n).Error
	return n, err
}

// MarkRead sets read_at on one of the user's notifications. Marking an
// already read notification keeps its original read time.
func (r *NotificationRepository) MarkRead(id, userID uint) error {
	var n models.Notification
	err := r.db.Select("id", "read_at").Where("id = ? AND user_id = ?", id, userID).First(&n).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotificationNotFound
	}
	if err != nil || n.ReadAt != nil {
		return err
	}
	return r.db.Model(&models.Notification{}).Where("id = ? AND read_at IS NULL", id).Update("read_at", time.Now().UTC()).Error
}

// MarkAllRead marks every unread notification of the user and reports how many changed.
func (r *NotificationRepository) MarkAllRead(userID uint) (int64, error) {
	res := r.db.Model(&models.Notification{}).Where("user_id = ? AND read_at IS NULL", userID).Update("read_at", time.Now().UTC())
	return res.RowsAffected, res.Error
}
