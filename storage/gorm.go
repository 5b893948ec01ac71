package storage

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/edulearn/rewards/models"
)

// GormStore persists reward state in a relational database through GORM.
type GormStore struct {
	db *gorm.DB
}

// NewGormStore wraps an initialized gorm DB.
func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{db: db}
}

// Models lists every table the store needs, in migration order.
func Models() []interface{} {
	return []interface{}{
		&models.Balance{},
		&models.GamificationEvent{},
		&models.Badge{},
		&models.UserBadge{},
		&models.StoreItem{},
		&models.UserPurchase{},
		&models.ReferralEvent{},
	}
}

// Transaction runs fn inside a database transaction.
func (s *GormStore) Transaction(ctx context.Context, fn func(tx Tx) error) error {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&gormTx{db: tx})
	})
	return translateError(err)
}

func (s *GormStore) Balance(ctx context.Context, userID uint) (models.Balance, error) {
	var b models.Balance
	err := s.db.WithContext(ctx).Where("user_id = ?", userID).First(&b).Error
	return b, translateError(err)
}

func (s *GormStore) ListBalances(ctx context.Context, limit int) ([]models.Balance, error) {
	var out []models.Balance
	q := s.db.WithContext(ctx).Order("points DESC").Order("created_at ASC").Order("user_id ASC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Find(&out).Error; err != nil {
		return nil, translateError(err)
	}
	return out, nil
}

func (s *GormStore) UserRank(ctx context.Context, b models.Balance) (int64, error) {
	var ahead int64
	err := s.db.WithContext(ctx).Model(&models.Balance{}).
		Where("points > ?", b.Points).
		Or("points = ? AND created_at < ?", b.Points, b.CreatedAt).
		Or("points = ? AND created_at = ? AND user_id < ?", b.Points, b.CreatedAt, b.UserID).
		Count(&ahead).Error
	if err != nil {
		return 0, translateError(err)
	}
	return ahead + 1, nil
}

func (s *GormStore) CountBadgesByUser(ctx context.Context, userIDs []uint) (map[uint]int64, error) {
	out := make(map[uint]int64, len(userIDs))
	if len(userIDs) == 0 {
		return out, nil
	}
	type row struct {
		UserID uint
		Cnt    int64
	}
	var rows []row
	err := s.db.WithContext(ctx).Model(&models.UserBadge{}).
		Select("user_id, COUNT(*) AS cnt").
		Where("user_id IN ?", userIDs).
		Group("user_id").
		Scan(&rows).Error
	if err != nil {
		return nil, translateError(err)
	}
	for _, r := range rows {
		out[r.UserID] = r.Cnt
	}
	return out, nil
}

func (s *GormStore) UserBadges(ctx context.Context, userID uint) ([]models.UserBadge, error) {
	var out []models.UserBadge
	err := s.db.WithContext(ctx).Preload("Badge").
		Where("user_id = ?", userID).
		Order("earned_at ASC").Order("badge_id ASC").
		Find(&out).Error
	if err != nil {
		return nil, translateError(err)
	}
	return out, nil
}

func (s *GormStore) EligibleBadges(ctx context.Context, userID uint, points int64) ([]models.Badge, error) {
	var out []models.Badge
	err := s.db.WithContext(ctx).
		Where("is_active = ? AND points_required <= ?", true, points).
		Where("NOT EXISTS (SELECT 1 FROM user_badges ub WHERE ub.badge_id = badges.id AND ub.user_id = ?)", userID).
		Order("points_required ASC").Order("id ASC").
		Find(&out).Error
	if err != nil {
		return nil, translateError(err)
	}
	return out, nil
}

func (s *GormStore) ActiveBadges(ctx context.Context) ([]models.Badge, error) {
	var out []models.Badge
	err := s.db.WithContext(ctx).Where("is_active = ?", true).
		Order("points_required ASC").Order("id ASC").
		Find(&out).Error
	if err != nil {
		return nil, translateError(err)
	}
	return out, nil
}

func (s *GormStore) RecentEvents(ctx context.Context, userID uint, limit int) ([]models.GamificationEvent, error) {
	var out []models.GamificationEvent
	q := s.db.WithContext(ctx).Where("user_id = ?", userID).Order("created_at DESC").Order("id DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Find(&out).Error; err != nil {
		return nil, translateError(err)
	}
	return out, nil
}

func (s *GormStore) ActiveItems(ctx context.Context) ([]models.StoreItem, error) {
	var out []models.StoreItem
	err := s.db.WithContext(ctx).Where("is_active = ?", true).Order("price ASC").Order("id ASC").Find(&out).Error
	if err != nil {
		return nil, translateError(err)
	}
	return out, nil
}

func (s *GormStore) Item(ctx context.Context, itemID uint) (models.StoreItem, error) {
	var it models.StoreItem
	err := s.db.WithContext(ctx).First(&it, itemID).Error
	return it, translateError(err)
}

type gormTx struct {
	db *gorm.DB
}

func (t *gormTx) LockBalance(userID uint) (models.Balance, error) {
	var b models.Balance
	err := t.db.Clauses(clause.Locking{Strength: "UPDATE"}).Where("user_id = ?", userID).First(&b).Error
	return b, translateError(err)
}

func (t *gormTx) CreateBalance(b *models.Balance) error {
	return translateError(t.db.Create(b).Error)
}

func (t *gormTx) SaveBalance(b *models.Balance) error {
	// map form so zero values (coins spent down to 0) are written
	err := t.db.Model(&models.Balance{}).Where("user_id = ?", b.UserID).Updates(map[string]interface{}{
		"points":           b.Points,
		"coins":            b.Coins,
		"current_streak":   b.CurrentStreak,
		"longest_streak":   b.LongestStreak,
		"last_active_date": b.LastActiveDate,
	}).Error
	return translateError(err)
}

func (t *gormTx) HasEvent(userID uint, dedupeKey string) (bool, error) {
	var n int64
	err := t.db.Model(&models.GamificationEvent{}).
		Where("user_id = ? AND dedupe_key = ?", userID, dedupeKey).
		Count(&n).Error
	if err != nil {
		return false, translateError(err)
	}
	return n > 0, nil
}

func (t *gormTx) AppendEvent(ev *models.GamificationEvent) error {
	return translateError(t.db.Create(ev).Error)
}

func (t *gormTx) LockItem(itemID uint) (models.StoreItem, error) {
	var it models.StoreItem
	err := t.db.Clauses(clause.Locking{Strength: "UPDATE"}).First(&it, itemID).Error
	return it, translateError(err)
}

func (t *gormTx) SetStock(itemID uint, stock int64) error {
	err := t.db.Model(&models.StoreItem{}).Where("id = ?", itemID).Update("stock_quantity", stock).Error
	return translateError(err)
}

func (t *gormTx) CreateItem(it *models.StoreItem) error {
	return translateError(t.db.Create(it).Error)
}

func (t *gormTx) CreatePurchase(p *models.UserPurchase) error {
	return translateError(t.db.Create(p).Error)
}

func (t *gormTx) CreateBadge(b *models.Badge) error {
	return translateError(t.db.Create(b).Error)
}

func (t *gormTx) GrantBadge(ub *models.UserBadge) (bool, error) {
	res := t.db.Omit("Badge").Clauses(clause.OnConflict{DoNothing: true}).Create(ub)
	if res.Error != nil {
		return false, translateError(res.Error)
	}
	return res.RowsAffected > 0, nil
}

func (t *gormTx) HasReferral(referredUserID uint) (bool, error) {
	var n int64
	err := t.db.Model(&models.ReferralEvent{}).Where("referred_user_id = ?", referredUserID).Count(&n).Error
	if err != nil {
		return false, translateError(err)
	}
	return n > 0, nil
}

func (t *gormTx) CreateReferral(r *models.ReferralEvent) error {
	return translateError(t.db.Create(r).Error)
}
