// Package storage is the persistence boundary of the rewards engine. It exposes row
// reads plus an atomic Transaction whose Tx locks balance and item rows for the
// duration of the unit of work.
package storage

import (
	"context"
	"errors"

	"github.com/edulearn/rewards/models"
)

var (
	// ErrNotFound is returned when a looked-up row does not exist.
	ErrNotFound = errors.New("record not found")
	// ErrDuplicate is returned when an insert violates a uniqueness constraint.
	ErrDuplicate = errors.New("duplicate record")
	// ErrConflict is returned when the transaction lost a race with a concurrent writer and may be retried.
	ErrConflict = errors.New("transaction conflict")
)

// Store is implemented by GormStore and MemoryStore.
type Store interface {
	// Transaction runs fn atomically. If fn returns an error every write made through tx is discarded.
	Transaction(ctx context.Context, fn func(tx Tx) error) error

	Balance(ctx context.Context, userID uint) (models.Balance, error)
	// ListBalances orders by points desc, created_at asc, user_id asc. limit <= 0 means all rows.
	ListBalances(ctx context.Context, limit int) ([]models.Balance, error)
	// UserRank returns the 1-based position of b under the ListBalances ordering.
	UserRank(ctx context.Context, b models.Balance) (int64, error)
	CountBadgesByUser(ctx context.Context, userIDs []uint) (map[uint]int64, error)
	UserBadges(ctx context.Context, userID uint) ([]models.UserBadge, error)
	// EligibleBadges returns active badges with points_required <= points the user does not hold yet.
	EligibleBadges(ctx context.Context, userID uint, points int64) ([]models.Badge, error)
	ActiveBadges(ctx context.Context) ([]models.Badge, error)
	RecentEvents(ctx context.Context, userID uint, limit int) ([]models.GamificationEvent, error)
	ActiveItems(ctx context.Context) ([]models.StoreItem, error)
	Item(ctx context.Context, itemID uint) (models.StoreItem, error)
}

// Tx is the write side of a Store, valid only inside Transaction.
type Tx interface {
	// LockBalance reads the balance row and holds it until the transaction ends.
	LockBalance(userID uint) (models.Balance, error)
	CreateBalance(b *models.Balance) error
	// SaveBalance persists points, coins and streak fields of b.
	SaveBalance(b *models.Balance) error

	HasEvent(userID uint, dedupeKey string) (bool, error)
	AppendEvent(ev *models.GamificationEvent) error

	LockItem(itemID uint) (models.StoreItem, error)
	SetStock(itemID uint, stock int64) error
	CreateItem(it *models.StoreItem) error
	CreatePurchase(p *models.UserPurchase) error

	CreateBadge(b *models.Badge) error
	// GrantBadge inserts ub unless the (user, badge) pair already exists; it reports whether a row was written.
	GrantBadge(ub *models.UserBadge) (bool, error)

	HasReferral(referredUserID uint) (bool, error)
	CreateReferral(r *models.ReferralEvent) error
}
