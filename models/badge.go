package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Badge is an admin-managed achievement unlocked once a learner's points reach PointsRequired.
type Badge struct {
	ID             uint      `gorm:"primaryKey" json:"id"`
	Name           string    `gorm:"size:128;not null" json:"name"`
	Description    string    `gorm:"size:255" json:"description"`
	PointsRequired int64     `gorm:"not null;index" json:"points_required"`
	Category       string    `gorm:"size:32" json:"category"`
	Rarity         string    `gorm:"size:16" json:"rarity"`
	IsActive       bool      `gorm:"not null" json:"is_active"`
	CreatedAt      time.Time `json:"created_at"`
}

func (Badge) TableName() string { return "badges" }

// UserBadge records a badge grant. At most one row exists per (user_id, badge_id).
type UserBadge struct {
	ID       string    `gorm:"type:varchar(36);primaryKey" json:"id"`
	UserID   uint      `gorm:"not null;uniqueIndex:idx_user_badges_user_badge,priority:1" json:"user_id"`
	BadgeID  uint      `gorm:"not null;uniqueIndex:idx_user_badges_user_badge,priority:2" json:"badge_id"`
	EarnedAt time.Time `gorm:"not null" json:"earned_at"`
	Badge    Badge     `gorm:"foreignKey:BadgeID" json:"badge"`
}

func (UserBadge) TableName() string { return "user_badges" }

func (ub *UserBadge) BeforeCreate(tx *gorm.DB) error {
	if ub.ID == "" {
		ub.ID = uuid.NewString()
	}
	return nil
}
