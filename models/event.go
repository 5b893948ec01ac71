package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// GamificationEvent is one row of the append-only reward ledger.
// DedupeKey is nil for repeatable kinds; otherwise (user_id, dedupe_key) is unique.
type GamificationEvent struct {
	ID            string            `gorm:"type:varchar(36);primaryKey" json:"id"`
	UserID        uint              `gorm:"not null;index:idx_events_user_created,priority:1;uniqueIndex:idx_events_user_dedupe,priority:1" json:"user_id"`
	EventKind     string            `gorm:"size:64;not null;index" json:"event_kind"`
	PointsGranted int64             `gorm:"not null;default:0" json:"points_granted"`
	CoinsGranted  int64             `gorm:"not null;default:0" json:"coins_granted"`
	DedupeKey     *string           `gorm:"size:191;uniqueIndex:idx_events_user_dedupe,priority:2" json:"-"`
	Description   string            `gorm:"size:255" json:"description"`
	Metadata      datatypes.JSONMap `json:"metadata,omitempty"`
	CreatedAt     time.Time         `gorm:"index:idx_events_user_created,priority:2" json:"created_at"`
}

func (GamificationEvent) TableName() string { return "gamification_events" }

func (e *GamificationEvent) BeforeCreate(tx *gorm.DB) error {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	return nil
}
