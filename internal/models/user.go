package models

import (
	"time"

	"heliactyl/internal/domain"

	"gorm.io/gorm"
)

// User is a dashboard account. PanelUserID links it to the hosting panel
// user that owns the servers.
type User struct {
	ID           uint           `gorm:"primaryKey" json:"id"`
	Username     string         `gorm:"uniqueIndex;size:64;not null" json:"username"`
	Email        string         `gorm:"uniqueIndex;size:255;not null" json:"email"`
	Role         string         `gorm:"size:20;not null;default:'USER';index" json:"role"`
	PanelUserID  uint           `gorm:"index" json:"panel_user_id"`
	ExtraRAM     int64          `gorm:"not null;default:0" json:"extra_ram"`
	ExtraDisk    int64          `gorm:"not null;default:0" json:"extra_disk"`
	ExtraCPU     int64          `gorm:"not null;default:0" json:"extra_cpu"`
	ExtraServers int64          `gorm:"not null;default:0" json:"extra_servers"`
	CreatedAt    time.Time      `json:"created_at"`
	UpdatedAt    time.Time      `json:"updated_at"`
	DeletedAt    gorm.DeletedAt `gorm:"index" json:"-"`
}

func (User) TableName() string {
	return "users"
}

func (u *User) IsAdmin() bool { return u.Role == domain.RoleAdmin }

// OwnsPanelUser reports whether a panel server owned by panelUserID belongs to u.
func (u *User) OwnsPanelUser(panelUserID uint) bool {
	return u.PanelUserID != 0 && u.PanelUserID == panelUserID
}
