package rewards

import (
	"context"
	"fmt"
	"sort"

	"go.uber.org/zap"

	"github.com/edulearn/rewards/models"
	"github.com/edulearn/rewards/storage"
)

// LeaderboardEntry is one row of the derived ranking; it is never stored.
type LeaderboardEntry struct {
	Rank          int    `json:"rank"`
	UserID        uint   `json:"user_id"`
	Username      string `json:"username"`
	Points        int64  `json:"points"`
	Coins         int64  `json:"coins"`
	CurrentStreak int    `json:"current_streak"`
	BadgesCount   int64  `json:"badges_count"`
}

func normalizeLimit(limit int) int {
	if limit <= 0 {
		return defaultLeaderboardLimit
	}
	if limit > maxLeaderboardLimit {
		return maxLeaderboardLimit
	}
	return limit
}

// rankEntries orders balances and numbers them 1..n with no shared ranks.
func rankEntries(balances []models.Balance, badges map[uint]int64) []LeaderboardEntry {
	sorted := append([]models.Balance(nil), balances...)
	sort.SliceStable(sorted, func(i, j int) bool { return storage.RankOrder(sorted[i], sorted[j]) })

	out := make([]LeaderboardEntry, len(sorted))
	for i, b := range sorted {
		out[i] = LeaderboardEntry{
			Rank:          i + 1,
			UserID:        b.UserID,
			Username:      b.Username,
			Points:        b.Points,
			Coins:         b.Coins,
			CurrentStreak: b.CurrentStreak,
			BadgesCount:   badges[b.UserID],
		}
	}
	return out
}

// Leaderboard returns the top limit users by points. Ties go to the older account.
// Reads are not locked; a snapshot may be served from the cache until the next mutation.
func (e *Engine) Leaderboard(ctx context.Context, limit int) ([]LeaderboardEntry, error) {
	limit = normalizeLimit(limit)
	key := fmt.Sprintf("%s%d", leaderboardCachePrefix, limit)

	if e.cache != nil {
		var cached []LeaderboardEntry
		if e.cache.GetJSON(ctx, key, &cached) {
			return cached, nil
		}
	}

	balances, err := e.store.ListBalances(ctx, limit)
	if err != nil {
		return nil, err
	}
	ids := make([]uint, len(balances))
	for i, b := range balances {
		ids[i] = b.UserID
	}
	counts, err := e.store.CountBadgesByUser(ctx, ids)
	if err != nil {
		return nil, err
	}
	entries := rankEntries(balances, counts)

	if e.cache != nil && e.cfg.LeaderboardTTL > 0 {
		e.cache.SetJSON(ctx, key, entries, e.cfg.LeaderboardTTL)
	}
	e.log.Debug("leaderboard computed", zap.Int("limit", limit), zap.Int("rows", len(entries)))
	return entries, nil
}
