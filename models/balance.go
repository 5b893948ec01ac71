package models

import (
	"time"

	"gorm.io/gorm"
)

// Balance holds a learner's spendable coins, lifetime points and daily streak counters.
// Rows are created zeroed when the account is provisioned and are only ever mutated
// inside a storage transaction that holds the row lock.
type Balance struct {
	UserID        uint   `gorm:"primaryKey;autoIncrement:false" json:"user_id"`
	Username      string `gorm:"size:64" json:"username"`
	Points        int64  `gorm:"not null;default:0;index" json:"points"`
	Coins         int64  `gorm:"not null;default:0" json:"coins"`
	CurrentStreak int    `gorm:"not null;default:0" json:"current_streak"`
	LongestStreak int    `gorm:"not null;default:0" json:"longest_streak"`
	// LastActiveDate is a calendar date (YYYY-MM-DD) in the rewards timezone; empty until the first login.
	LastActiveDate string    `gorm:"size:10" json:"last_active_date"`
	ReferredBy     *uint     `gorm:"index" json:"referred_by,omitempty"`
	CreatedAt      time.Time `gorm:"index" json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// TableName pins the table name used by every backend.
func (Balance) TableName() string { return "user_balances" }

// BeforeCreate hook ensures timestamps are set even when not provided.
func (b *Balance) BeforeCreate(tx *gorm.DB) error {
	now := time.Now()
	if b.CreatedAt.IsZero() {
		b.CreatedAt = now
	}
	b.UpdatedAt = now
	return nil
}
