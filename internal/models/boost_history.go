package models

import (
	"encoding/json"
	"time"

	"gorm.io/datatypes"
)

// BoostHistory is an append-only audit record of a boost lifecycle event.
// Seq orders entries written within the same millisecond.
type BoostHistory struct {
	Seq       uint64            `gorm:"primaryKey;autoIncrement"`
	ID        string            `gorm:"size:36;not null;uniqueIndex"`
	UserID    uint              `gorm:"not null;index"`
	ServerID  string            `gorm:"size:64;index"`
	BoostID   string            `gorm:"size:36;index"`
	Type      string            `gorm:"size:32;not null;index"`
	Timestamp time.Time         `gorm:"not null;index"`
	Details   datatypes.JSONMap `gorm:"type:json"`
}

func (BoostHistory) TableName() string {
	return "boost_history"
}

func (h BoostHistory) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		ID        string            `json:"id"`
		Type      string            `json:"type"`
		Timestamp int64             `json:"timestamp"`
		ServerID  string            `json:"serverId"`
		BoostID   string            `json:"boostId"`
		Details   datatypes.JSONMap `json:"details"`
	}{
		ID:        h.ID,
		Type:      h.Type,
		Timestamp: h.Timestamp.UnixMilli(),
		ServerID:  h.ServerID,
		BoostID:   h.BoostID,
		Details:   h.Details,
	})
}
