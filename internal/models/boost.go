package models

import (
	"encoding/json"
	"time"

	"heliactyl/internal/domain"
)

// Boost is a ledger entry. Scheduled and active boosts are live; expired and
// cancelled boosts are kept for audit only.
type Boost struct {
	ID               string     `gorm:"primaryKey;size:36"`
	UserID           uint       `gorm:"not null;index"`
	ServerID         string     `gorm:"size:64;not null;index"`
	ServerName       string     `gorm:"size:191"`
	BoostType        string     `gorm:"size:64;not null"`
	Duration         string     `gorm:"size:16;not null"`
	DurationMs       int64      `gorm:"not null"`
	Price            int64      `gorm:"not null"`
	InitialResources Resources  `gorm:"embedded;embeddedPrefix:initial_"`
	BoostedResources Resources  `gorm:"embedded;embeddedPrefix:boosted_"`
	AppliedChange    Resources  `gorm:"embedded;embeddedPrefix:change_"`
	State            string     `gorm:"size:16;not null;index"`
	ActiveServerID   *string    `gorm:"size:64;uniqueIndex"` // set only while active
	ScheduledTime    *time.Time `gorm:"index"`
	AppliedAt        *time.Time
	ExpiresAt        *time.Time `gorm:"index"`
	EndedAt          *time.Time
	RefundAmount     int64 `gorm:"not null;default:0"`
	Version          int64 `gorm:"not null;default:1"`

	NeedsReconcile    bool   `gorm:"not null;default:false;index"`
	ReconcileAttempts int    `gorm:"not null;default:0"`
	ReconcileError    string `gorm:"size:512"`

	CreatedAt time.Time
	UpdatedAt time.Time
}

func (Boost) TableName() string {
	return "boosts"
}

func (b *Boost) IsActive() bool    { return b.State == domain.BoostStateActive }
func (b *Boost) IsScheduled() bool { return b.State == domain.BoostStateScheduled }

// DesiredLimits is what the hosting panel should currently show for the server.
func (b *Boost) DesiredLimits() Resources {
	if b.IsActive() {
		return b.BoostedResources
	}
	return b.InitialResources
}

type boostJSON struct {
	ID                  string    `json:"id"`
	ServerID            string    `json:"serverId"`
	ServerName          string    `json:"serverName"`
	UserID              uint      `json:"userId"`
	BoostType           string    `json:"boostType"`
	Duration            string    `json:"duration"`
	DurationMs          int64     `json:"durationMs"`
	Price               int64     `json:"price"`
	InitialResources    Resources `json:"initialResources"`
	BoostedResources    Resources `json:"boostedResources"`
	AppliedChange       Resources `json:"appliedChange"`
	State               string    `json:"state"`
	ScheduledTime       *int64    `json:"scheduledTime,omitempty"`
	AppliedAt           *int64    `json:"appliedAt,omitempty"`
	ExpiresAt           *int64    `json:"expiresAt,omitempty"`
	EndedAt             *int64    `json:"endedAt,omitempty"`
	CreatedAt           int64     `json:"createdAt"`
	RefundAmount        int64     `json:"refundAmount,omitempty"`
	NeedsReconciliation bool      `json:"needsReconciliation,omitempty"`
	ReconcileAttempts   int       `json:"reconcileAttempts,omitempty"`
	ReconcileError      string    `json:"reconcileError,omitempty"`
}

// MarshalJSON renders timestamps as epoch milliseconds, which is what the
// dashboard does arithmetic on.
func (b Boost) MarshalJSON() ([]byte, error) {
	return json.Marshal(boostJSON{
		ID:                  b.ID,
		ServerID:            b.ServerID,
		ServerName:          b.ServerName,
		UserID:              b.UserID,
		BoostType:           b.BoostType,
		Duration:            b.Duration,
		DurationMs:          b.DurationMs,
		Price:               b.Price,
		InitialResources:    b.InitialResources,
		BoostedResources:    b.BoostedResources,
		AppliedChange:       b.AppliedChange,
		State:               b.State,
		ScheduledTime:       millis(b.ScheduledTime),
		AppliedAt:           millis(b.AppliedAt),
		ExpiresAt:           millis(b.ExpiresAt),
		EndedAt:             millis(b.EndedAt),
		CreatedAt:           b.CreatedAt.UnixMilli(),
		RefundAmount:        b.RefundAmount,
		NeedsReconciliation: b.NeedsReconcile,
		ReconcileAttempts:   b.ReconcileAttempts,
		ReconcileError:      b.ReconcileError,
	})
}

func millis(t *time.Time) *int64 {
	if t == nil {
		return nil
	}
	ms := t.UnixMilli()
	return &ms
}
