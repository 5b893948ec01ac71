package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ReferralEvent records the one-time payout to a referrer. ReferredUserID is unique.
type ReferralEvent struct {
	ID             string    `gorm:"type:varchar(36);primaryKey" json:"id"`
	ReferrerID     uint      `gorm:"not null;index" json:"referrer_id"`
	ReferredUserID uint      `gorm:"not null;uniqueIndex" json:"referred_user_id"`
	CourseID       string    `gorm:"size:64" json:"course_id"`
	CoinsAwarded   int64     `gorm:"not null" json:"coins_awarded"`
	CreatedAt      time.Time `json:"created_at"`
}

func (ReferralEvent) TableName() string { return "referral_events" }

func (r *ReferralEvent) BeforeCreate(tx *gorm.DB) error {
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	return nil
}
