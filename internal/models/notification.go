package models

import (
	"time"

	"gorm.io/datatypes"
)

// Notification is a boost lifecycle notice shown in the dashboard inbox.
type Notification struct {
	ID        uint              `gorm:"primaryKey" json:"id"`
	UserID    uint              `gorm:"not null;index:idx_notifications_user_read" json:"userId"`
	Type      string            `gorm:"size:50;not null;index" json:"type"`
	Title     string            `gorm:"size:255" json:"title"`
	Body      string            `gorm:"type:text" json:"body"`
	Data      datatypes.JSONMap `gorm:"type:json" json:"data,omitempty"`
	ReadAt    *time.Time        `gorm:"index:idx_notifications_user_read" json:"readAt"`
	CreatedAt time.Time         `json:"createdAt"`
}

func (Notification) TableName() string {
	return "notifications"
}
