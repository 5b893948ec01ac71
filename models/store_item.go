package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// UnlimitedStock marks a store item that never runs out.
const UnlimitedStock int64 = -1

// StoreItem is something learners can buy with coins.
type StoreItem struct {
	ID            uint      `gorm:"primaryKey" json:"id"`
	Name          string    `gorm:"size:128;not null" json:"name"`
	Description   string    `gorm:"type:text" json:"description"`
	Price         int64     `gorm:"not null" json:"price"`
	StockQuantity int64     `gorm:"not null" json:"stock_quantity"`
	IsActive      bool      `gorm:"not null;index" json:"is_active"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

func (StoreItem) TableName() string { return "store_items" }

// Unlimited reports whether the item has no stock ceiling.
func (it StoreItem) Unlimited() bool {
	return it.StockQuantity == UnlimitedStock
}

// UserPurchase is written only after the coin debit and stock decrement succeeded.
type UserPurchase struct {
	ID          string    `gorm:"type:varchar(36);primaryKey" json:"id"`
	UserID      uint      `gorm:"not null;index" json:"user_id"`
	ItemID      uint      `gorm:"not null;index" json:"item_id"`
	Quantity    int       `gorm:"not null" json:"quantity"`
	TotalCost   int64     `gorm:"not null" json:"total_cost"`
	PurchasedAt time.Time `gorm:"not null" json:"purchased_at"`
}

func (UserPurchase) TableName() string { return "user_purchases" }

func (p *UserPurchase) BeforeCreate(tx *gorm.DB) error {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	return nil
}
