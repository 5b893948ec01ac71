package storage

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/edulearn/rewards/models"
)

// MemoryStore keeps all reward state in process memory. Transactions are serialized
// by a single writer lock and work on a private copy that replaces the live state only
// when fn succeeds, so a failed transaction leaves nothing behind.
// Single instance only; used by tests and local development.
type MemoryStore struct {
	mu    sync.RWMutex
	state *memState
}

type memState struct {
	balances   map[uint]models.Balance
	events     []models.GamificationEvent
	dedupe     map[string]struct{}
	badges     map[uint]models.Badge
	userBadges []models.UserBadge
	items      map[uint]models.StoreItem
	purchases  []models.UserPurchase
	referrals  map[uint]models.ReferralEvent
	badgeSeq   uint
	itemSeq    uint
}

// NewMemoryStore returns an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{state: &memState{
		balances:  map[uint]models.Balance{},
		dedupe:    map[string]struct{}{},
		badges:    map[uint]models.Badge{},
		items:     map[uint]models.StoreItem{},
		referrals: map[uint]models.ReferralEvent{},
	}}
}

func (st *memState) clone() *memState {
	c := &memState{
		balances:   make(map[uint]models.Balance, len(st.balances)),
		events:     append([]models.GamificationEvent(nil), st.events...),
		dedupe:     make(map[string]struct{}, len(st.dedupe)),
		badges:     make(map[uint]models.Badge, len(st.badges)),
		userBadges: append([]models.UserBadge(nil), st.userBadges...),
		items:      make(map[uint]models.StoreItem, len(st.items)),
		purchases:  append([]models.UserPurchase(nil), st.purchases...),
		referrals:  make(map[uint]models.ReferralEvent, len(st.referrals)),
		badgeSeq:   st.badgeSeq,
		itemSeq:    st.itemSeq,
	}
	for k, v := range st.balances {
		c.balances[k] = v
	}
	for k := range st.dedupe {
		c.dedupe[k] = struct{}{}
	}
	for k, v := range st.badges {
		c.badges[k] = v
	}
	for k, v := range st.items {
		c.items[k] = v
	}
	for k, v := range st.referrals {
		c.referrals[k] = v
	}
	return c
}

func dedupeIndex(userID uint, key string) string {
	return fmt.Sprintf("%d|%s", userID, key)
}

// RankOrder is the leaderboard ordering: points desc, then earliest account, then lowest user id.
func RankOrder(a, b models.Balance) bool {
	if a.Points != b.Points {
		return a.Points > b.Points
	}
	if !a.CreatedAt.Equal(b.CreatedAt) {
		return a.CreatedAt.Before(b.CreatedAt)
	}
	return a.UserID < b.UserID
}

func (s *MemoryStore) Transaction(ctx context.Context, fn func(tx Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	work := s.state.clone()
	if err := fn(&memTx{st: work}); err != nil {
		return err
	}
	s.state = work
	return nil
}

func (s *MemoryStore) Balance(_ context.Context, userID uint) (models.Balance, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	b, ok := s.state.balances[userID]
	if !ok {
		return models.Balance{}, ErrNotFound
	}
	return b, nil
}

func (s *MemoryStore) ListBalances(_ context.Context, limit int) ([]models.Balance, error) {
	s.mu.RLock()
	out := make([]models.Balance, 0, len(s.state.balances))
	for _, b := range s.state.balances {
		out = append(out, b)
	}
	s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return RankOrder(out[i], out[j]) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *MemoryStore) UserRank(_ context.Context, b models.Balance) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var ahead int64
	for _, other := range s.state.balances {
		if other.UserID != b.UserID && RankOrder(other, b) {
			ahead++
		}
	}
	return ahead + 1, nil
}

func (s *MemoryStore) CountBadgesByUser(_ context.Context, userIDs []uint) (map[uint]int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	want := make(map[uint]bool, len(userIDs))
	for _, id := range userIDs {
		want[id] = true
	}
	out := make(map[uint]int64, len(userIDs))
	for _, ub := range s.state.userBadges {
		if want[ub.UserID] {
			out[ub.UserID]++
		}
	}
	return out, nil
}

func (s *MemoryStore) UserBadges(_ context.Context, userID uint) ([]models.UserBadge, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []models.UserBadge
	for _, ub := range s.state.userBadges {
		if ub.UserID == userID {
			ub.Badge = s.state.badges[ub.BadgeID]
			out = append(out, ub)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].EarnedAt.Equal(out[j].EarnedAt) {
			return out[i].EarnedAt.Before(out[j].EarnedAt)
		}
		return out[i].BadgeID < out[j].BadgeID
	})
	return out, nil
}

func (s *MemoryStore) EligibleBadges(_ context.Context, userID uint, points int64) ([]models.Badge, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	held := map[uint]bool{}
	for _, ub := range s.state.userBadges {
		if ub.UserID == userID {
			held[ub.BadgeID] = true
		}
	}
	var out []models.Badge
	for _, b := range s.state.badges {
		if b.IsActive && b.PointsRequired <= points && !held[b.ID] {
			out = append(out, b)
		}
	}
	sortBadges(out)
	return out, nil
}

func (s *MemoryStore) ActiveBadges(_ context.Context) ([]models.Badge, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []models.Badge
	for _, b := range s.state.badges {
		if b.IsActive {
			out = append(out, b)
		}
	}
	sortBadges(out)
	return out, nil
}

func sortBadges(bs []models.Badge) {
	sort.Slice(bs, func(i, j int) bool {
		if bs[i].PointsRequired != bs[j].PointsRequired {
			return bs[i].PointsRequired < bs[j].PointsRequired
		}
		return bs[i].ID < bs[j].ID
	})
}

func (s *MemoryStore) RecentEvents(_ context.Context, userID uint, limit int) ([]models.GamificationEvent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []models.GamificationEvent
	// events are appended in commit order, walk backwards for newest first
	for i := len(s.state.events) - 1; i >= 0; i-- {
		if s.state.events[i].UserID != userID {
			continue
		}
		out = append(out, s.state.events[i])
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}

func (s *MemoryStore) ActiveItems(_ context.Context) ([]models.StoreItem, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []models.StoreItem
	for _, it := range s.state.items {
		if it.IsActive {
			out = append(out, it)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Price != out[j].Price {
			return out[i].Price < out[j].Price
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (s *MemoryStore) Item(_ context.Context, itemID uint) (models.StoreItem, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	it, ok := s.state.items[itemID]
	if !ok {
		return models.StoreItem{}, ErrNotFound
	}
	return it, nil
}

// Purchases returns every recorded purchase of a user, oldest first.
func (s *MemoryStore) Purchases(userID uint) []models.UserPurchase {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []models.UserPurchase
	for _, p := range s.state.purchases {
		if p.UserID == userID {
			out = append(out, p)
		}
	}
	return out
}

// Referrals returns every recorded referral payout.
func (s *MemoryStore) Referrals() []models.ReferralEvent {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.ReferralEvent, 0, len(s.state.referrals))
	for _, r := range s.state.referrals {
		out = append(out, r)
	}
	return out
}

// memTx mutates a private copy of the state; locking is implicit in the writer lock.
type memTx struct {
	st *memState
}

func (t *memTx) LockBalance(userID uint) (models.Balance, error) {
	b, ok := t.st.balances[userID]
	if !ok {
		return models.Balance{}, ErrNotFound
	}
	return b, nil
}

func (t *memTx) CreateBalance(b *models.Balance) error {
	if _, ok := t.st.balances[b.UserID]; ok {
		return ErrDuplicate
	}
	now := time.Now()
	if b.CreatedAt.IsZero() {
		b.CreatedAt = now
	}
	b.UpdatedAt = now
	t.st.balances[b.UserID] = *b
	return nil
}

func (t *memTx) SaveBalance(b *models.Balance) error {
	cur, ok := t.st.balances[b.UserID]
	if !ok {
		return ErrNotFound
	}
	cur.Points = b.Points
	cur.Coins = b.Coins
	cur.CurrentStreak = b.CurrentStreak
	cur.LongestStreak = b.LongestStreak
	cur.LastActiveDate = b.LastActiveDate
	cur.UpdatedAt = time.Now()
	t.st.balances[b.UserID] = cur
	return nil
}

func (t *memTx) HasEvent(userID uint, dedupeKey string) (bool, error) {
	_, ok := t.st.dedupe[dedupeIndex(userID, dedupeKey)]
	return ok, nil
}

func (t *memTx) AppendEvent(ev *models.GamificationEvent) error {
	if ev.DedupeKey != nil {
		idx := dedupeIndex(ev.UserID, *ev.DedupeKey)
		if _, ok := t.st.dedupe[idx]; ok {
			return ErrDuplicate
		}
		t.st.dedupe[idx] = struct{}{}
	}
	if ev.ID == "" {
		ev.ID = uuid.NewString()
	}
	if ev.CreatedAt.IsZero() {
		ev.CreatedAt = time.Now()
	}
	t.st.events = append(t.st.events, *ev)
	return nil
}

func (t *memTx) LockItem(itemID uint) (models.StoreItem, error) {
	it, ok := t.st.items[itemID]
	if !ok {
		return models.StoreItem{}, ErrNotFound
	}
	return it, nil
}

func (t *memTx) SetStock(itemID uint, stock int64) error {
	it, ok := t.st.items[itemID]
	if !ok {
		return ErrNotFound
	}
	it.StockQuantity = stock
	it.UpdatedAt = time.Now()
	t.st.items[itemID] = it
	return nil
}

func (t *memTx) CreateItem(it *models.StoreItem) error {
	t.st.itemSeq++
	it.ID = t.st.itemSeq
	now := time.Now()
	it.CreatedAt, it.UpdatedAt = now, now
	t.st.items[it.ID] = *it
	return nil
}

func (t *memTx) CreatePurchase(p *models.UserPurchase) error {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	t.st.purchases = append(t.st.purchases, *p)
	return nil
}

func (t *memTx) CreateBadge(b *models.Badge) error {
	t.st.badgeSeq++
	b.ID = t.st.badgeSeq
	if b.CreatedAt.IsZero() {
		b.CreatedAt = time.Now()
	}
	t.st.badges[b.ID] = *b
	return nil
}

func (t *memTx) GrantBadge(ub *models.UserBadge) (bool, error) {
	for _, existing := range t.st.userBadges {
		if existing.UserID == ub.UserID && existing.BadgeID == ub.BadgeID {
			return false, nil
		}
	}
	if ub.ID == "" {
		ub.ID = uuid.NewString()
	}
	t.st.userBadges = append(t.st.userBadges, *ub)
	return true, nil
}

func (t *memTx) HasReferral(referredUserID uint) (bool, error) {
	_, ok := t.st.referrals[referredUserID]
	return ok, nil
}

func (t *memTx) CreateReferral(r *models.ReferralEvent) error {
	if _, ok := t.st.referrals[r.ReferredUserID]; ok {
		return ErrDuplicate
	}
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	if r.CreatedAt.IsZero() {
		r.CreatedAt = time.Now()
	}
	t.st.referrals[r.ReferredUserID] = *r
	return nil
}
