package rewards

import (
	"context"
	"errors"

	"github.com/shopspring/decimal"

	"github.com/edulearn/rewards/models"
	"github.com/edulearn/rewards/storage"
)

// UserStats is the dashboard view of one learner.
type UserStats struct {
	Balance      models.Balance             `json:"balance"`
	Badges       []models.UserBadge         `json:"badges"`
	RecentEvents []models.GamificationEvent `json:"recent_events"`
	Rank         int64                      `json:"rank"`
	// CoinValue is the coin balance expressed in currency units.
	CoinValue decimal.Decimal `json:"coin_value"`
}

// Stats gathers balance, badges, recent ledger rows and leaderboard position.
// Reads are not locked and may interleave with concurrent awards.
func (e *Engine) Stats(ctx context.Context, userID uint) (UserStats, error) {
	bal, err := e.store.Balance(ctx, userID)
	if errors.Is(err, storage.ErrNotFound) {
		return UserStats{}, ErrUserNotFound
	}
	if err != nil {
		return UserStats{}, err
	}
	badges, err := e.store.UserBadges(ctx, userID)
	if err != nil {
		return UserStats{}, err
	}
	events, err := e.store.RecentEvents(ctx, userID, e.cfg.RecentEventsLimit)
	if err != nil {
		return UserStats{}, err
	}
	rank, err := e.store.UserRank(ctx, bal)
	if err != nil {
		return UserStats{}, err
	}
	if badges == nil {
		badges = []models.UserBadge{}
	}
	if events == nil {
		events = []models.GamificationEvent{}
	}
	return UserStats{
		Balance:      bal,
		Badges:       badges,
		RecentEvents: events,
		Rank:         rank,
		CoinValue:    e.CoinValue(bal.Coins),
	}, nil
}

// CoinValue converts coins to currency units, rounded to cents.
func (e *Engine) CoinValue(coins int64) decimal.Decimal {
	return decimal.NewFromInt(coins).
		DivRound(decimal.NewFromInt(e.cfg.CoinsPerCurrencyUnit), 2)
}
