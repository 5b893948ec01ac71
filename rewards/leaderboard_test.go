package rewards

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/edulearn/rewards/models"
)

type mapCache struct {
	mu      sync.Mutex
	entries map[string][]LeaderboardEntry
	hits    int
}

func newMapCache() *mapCache {
	return &mapCache{entries: map[string][]LeaderboardEntry{}}
}

func (c *mapCache) GetJSON(_ context.Context, key string, v interface{}) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[key]
	if !ok {
		return false
	}
	c.hits++
	*(v.(*[]LeaderboardEntry)) = e
	return true
}

func (c *mapCache) SetJSON(_ context.Context, key string, v interface{}, _ time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = v.([]LeaderboardEntry)
}

func (c *mapCache) InvalidatePrefix(_ context.Context, prefix string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for k := range c.entries {
		if strings.HasPrefix(k, prefix) {
			delete(c.entries, k)
		}
	}
}

func TestRankEntriesBreaksTiesByAccountAge(t *testing.T) {
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	balances := []models.Balance{
		{UserID: 3, Points: 100, CreatedAt: base.Add(2 * time.Hour)},
		{UserID: 1, Points: 50, CreatedAt: base},
		{UserID: 2, Points: 100, CreatedAt: base.Add(time.Hour)},
		{UserID: 5, Points: 100, CreatedAt: base.Add(time.Hour)},
	}
	entries := rankEntries(balances, map[uint]int64{2: 4})

	var got []uint
	for i, e := range entries {
		assert.Equal(t, i+1, e.Rank)
		got = append(got, e.UserID)
	}
	assert.Equal(t, []uint{2, 5, 3, 1}, got)
	assert.Equal(t, int64(4), entries[0].BadgesCount)
	assert.Zero(t, entries[1].BadgesCount)
	assert.Equal(t, uint(3), balances[0].UserID, "input is not reordered")
}

func TestNormalizeLimit(t *testing.T) {
	assert.Equal(t, defaultLeaderboardLimit, normalizeLimit(0))
	assert.Equal(t, defaultLeaderboardLimit, normalizeLimit(-3))
	assert.Equal(t, 10, normalizeLimit(10))
	assert.Equal(t, maxLeaderboardLimit, normalizeLimit(100000))
}

func TestLeaderboardIsDeterministic(t *testing.T) {
	env := newTestEnv(t, Config{})
	ctx := context.Background()
	for id := uint(1); id <= 5; id++ {
		env.user(t, id)
	}
	_, err := env.engine.Award(ctx, 4, KindFirstCourse)
	require.NoError(t, err)
	_, err = env.engine.Award(ctx, 2, KindProfileComplete)
	require.NoError(t, err)
	_, err = env.engine.Award(ctx, 5, KindProfileComplete)
	require.NoError(t, err)

	first, err := env.engine.Leaderboard(ctx, 0)
	require.NoError(t, err)
	require.Len(t, first, 5)
	var order []uint
	for i, e := range first {
		assert.Equal(t, i+1, e.Rank)
		order = append(order, e.UserID)
	}
	assert.Equal(t, []uint{4, 2, 5, 1, 3}, order)

	for i := 0; i < 3; i++ {
		again, err := env.engine.Leaderboard(ctx, 0)
		require.NoError(t, err)
		assert.Equal(t, first, again)
	}

	top, err := env.engine.Leaderboard(ctx, 2)
	require.NoError(t, err)
	assert.Len(t, top, 2)
}

func TestLeaderboardCacheInvalidatedOnAward(t *testing.T) {
	cache := newMapCache()
	env := newTestEnv(t, Config{LeaderboardTTL: time.Minute}, WithCache(cache))
	ctx := context.Background()
	env.user(t, 1)
	env.user(t, 2)

	board, err := env.engine.Leaderboard(ctx, 10)
	require.NoError(t, err)
	assert.Equal(t, uint(1), board[0].UserID)

	_, err = env.engine.Leaderboard(ctx, 10)
	require.NoError(t, err)
	assert.Equal(t, 1, cache.hits)

	_, err = env.engine.Award(ctx, 2, KindProfileComplete)
	require.NoError(t, err)

	board, err = env.engine.Leaderboard(ctx, 10)
	require.NoError(t, err)
	assert.Equal(t, uint(2), board[0].UserID)
	assert.Equal(t, 1, cache.hits)
}
