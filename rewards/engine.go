// Package rewards implements the gamification engine: the reward ledger, login
// streaks, badges, the coin store, the leaderboard and referral payouts.
//
// Every balance mutation runs inside a storage transaction that first locks the
// affected balance row (and item row for purchases), so concurrent callers acting for
// the same user are serialized by the persistence layer.
package rewards

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/edulearn/rewards/models"
	"github.com/edulearn/rewards/storage"
)

const (
	dayLayout = "2006-01-02"

	defaultBadgeMaxPasses    = 5
	defaultMaxTxRetries      = 3
	defaultRecentEvents      = 10
	defaultLeaderboardLimit  = 50
	maxLeaderboardLimit      = 500
	defaultCoinsPerCurrency  = 100
	leaderboardCachePrefix   = "rewards:leaderboard:"
	conflictBackoffBaseDelay = 10 * time.Millisecond
)

// Config tunes the engine. Zero values fall back to defaults.
type Config struct {
	Catalog Catalog
	// Location fixes the timezone whose calendar day bounds once-per-day rewards.
	Location         *time.Location
	StreakMilestones []int
	// BadgeMaxPasses caps badge re-evaluation after badge bonuses.
	BadgeMaxPasses    int
	MaxTxRetries      int
	RecentEventsLimit int
	LeaderboardTTL    time.Duration
	// CoinsPerCurrencyUnit is only used to display the coin value in stats.
	CoinsPerCurrencyUnit int64
}

func (c *Config) applyDefaults() {
	if c.Catalog == nil {
		c.Catalog = DefaultCatalog()
	}
	if c.Location == nil {
		c.Location = time.UTC
	}
	if c.StreakMilestones == nil {
		c.StreakMilestones = []int{7, 30, 100}
	}
	if c.BadgeMaxPasses <= 0 {
		c.BadgeMaxPasses = defaultBadgeMaxPasses
	}
	if c.MaxTxRetries < 0 {
		c.MaxTxRetries = 0
	} else if c.MaxTxRetries == 0 {
		c.MaxTxRetries = defaultMaxTxRetries
	}
	if c.RecentEventsLimit <= 0 {
		c.RecentEventsLimit = defaultRecentEvents
	}
	if c.CoinsPerCurrencyUnit <= 0 {
		c.CoinsPerCurrencyUnit = defaultCoinsPerCurrency
	}
}

// Notification is the "reward granted" message handed to the UI layer.
type Notification struct {
	UserID      uint      `json:"user_id"`
	EventID     string    `json:"event_id"`
	Kind        EventKind `json:"kind"`
	Points      int64     `json:"points"`
	Coins       int64     `json:"coins"`
	Description string    `json:"description"`
	GrantedAt   time.Time `json:"granted_at"`
}

// Notifier delivers notifications. Implementations must not block the caller.
type Notifier interface {
	Notify(ctx context.Context, n Notification)
}

// Cache stores derived read models such as leaderboard snapshots. Failures are soft.
type Cache interface {
	GetJSON(ctx context.Context, key string, v interface{}) bool
	SetJSON(ctx context.Context, key string, v interface{}, ttl time.Duration)
	InvalidatePrefix(ctx context.Context, prefix string)
}

type nopNotifier struct{}

func (nopNotifier) Notify(context.Context, Notification) {}

// Engine is safe for concurrent use.
type Engine struct {
	store    storage.Store
	cfg      Config
	log      *zap.Logger
	notifier Notifier
	cache    Cache
	now      func() time.Time
}

// Option customizes an Engine.
type Option func(*Engine)

func WithLogger(l *zap.Logger) Option {
	return func(e *Engine) {
		if l != nil {
			e.log = l
		}
	}
}

func WithNotifier(n Notifier) Option {
	return func(e *Engine) {
		if n != nil {
			e.notifier = n
		}
	}
}

// WithCache enables leaderboard caching.
func WithCache(c Cache) Option {
	return func(e *Engine) { e.cache = c }
}

// WithClock overrides time.Now, mostly for tests that walk across days.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		if now != nil {
			e.now = now
		}
	}
}

// NewEngine builds an engine over store.
func NewEngine(store storage.Store, cfg Config, opts ...Option) *Engine {
	cfg.applyDefaults()
	e := &Engine{
		store:    store,
		cfg:      cfg,
		log:      zap.NewNop(),
		notifier: nopNotifier{},
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Catalog returns the reward rules in effect.
func (e *Engine) Catalog() Catalog {
	return e.cfg.Catalog
}

// today returns the current calendar day and the one before it in the rewards timezone.
func (e *Engine) today() (now time.Time, today, yesterday string) {
	now = e.now().In(e.cfg.Location)
	// noon avoids DST edges when stepping back a day
	noon := time.Date(now.Year(), now.Month(), now.Day(), 12, 0, 0, 0, e.cfg.Location)
	return now, noon.Format(dayLayout), noon.AddDate(0, 0, -1).Format(dayLayout)
}

// runTx executes fn in a transaction, retrying storage conflicts a bounded number of times.
// fn may run more than once and must reset anything it captures.
func (e *Engine) runTx(ctx context.Context, op string, fn func(tx storage.Tx) error) error {
	var err error
	for attempt := 0; attempt <= e.cfg.MaxTxRetries; attempt++ {
		err = e.store.Transaction(ctx, fn)
		if !errors.Is(err, storage.ErrConflict) {
			return err
		}
		e.log.Warn("transaction conflict",
			zap.String("op", op),
			zap.Int("attempt", attempt+1),
			zap.Error(err),
		)
		delay := conflictBackoffBaseDelay * time.Duration(1<<attempt)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
	}
	return fmt.Errorf("%s: %w: %v", op, ErrTransactionConflict, err)
}

// lockBalance maps a missing row to ErrUserNotFound.
func lockBalance(tx storage.Tx, userID uint) (models.Balance, error) {
	b, err := tx.LockBalance(userID)
	if errors.Is(err, storage.ErrNotFound) {
		return b, ErrUserNotFound
	}
	return b, err
}

func (e *Engine) publish(ctx context.Context, events ...*models.GamificationEvent) {
	for _, ev := range events {
		if ev == nil {
			continue
		}
		e.notifier.Notify(ctx, Notification{
			UserID:      ev.UserID,
			EventID:     ev.ID,
			Kind:        EventKind(ev.EventKind),
			Points:      ev.PointsGranted,
			Coins:       ev.CoinsGranted,
			Description: ev.Description,
			GrantedAt:   ev.CreatedAt,
		})
	}
}

// invalidateBoard drops cached leaderboard snapshots after balances changed.
func (e *Engine) invalidateBoard(ctx context.Context) {
	if e.cache == nil {
		return
	}
	e.cache.InvalidatePrefix(ctx, leaderboardCachePrefix)
}
