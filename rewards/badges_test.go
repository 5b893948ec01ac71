package rewards

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/edulearn/rewards/models"
)

func seedBadges(t *testing.T, e *Engine, thresholds ...int64) []models.Badge {
	t.Helper()
	var out []models.Badge
	for i, pts := range thresholds {
		b, err := e.CreateBadge(context.Background(), models.Badge{
			Name:           "Badge " + string(rune('A'+i)),
			PointsRequired: pts,
			Category:       "progress",
			Rarity:         "common",
			IsActive:       true,
		})
		require.NoError(t, err)
		out = append(out, b)
	}
	return out
}

func badgeNames(bs []models.Badge) []string {
	out := make([]string, len(bs))
	for i, b := range bs {
		out[i] = b.Name
	}
	return out
}

func TestBadgeCascade(t *testing.T) {
	env := newTestEnv(t, Config{})
	env.user(t, 1)
	// 10 from the login, then +25 per badge bonus: 35, 60, 85
	seedBadges(t, env.engine, 10, 35, 60, 500)

	res, err := env.engine.TriggerDailyLogin(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, []string{"Badge A", "Badge B", "Badge C"}, badgeNames(res.Badges))

	bal := env.balance(t, 1)
	assert.Equal(t, int64(85), bal.Points)
	assert.Equal(t, int64(5+3*10), bal.Coins)

	held, err := env.store.UserBadges(context.Background(), 1)
	require.NoError(t, err)
	assert.Len(t, held, 3)
	assert.Equal(t, "Badge A", held[0].Badge.Name)
}

func TestBadgeCascadeIsBounded(t *testing.T) {
	env := newTestEnv(t, Config{BadgeMaxPasses: 2})
	env.user(t, 1)
	seedBadges(t, env.engine, 10, 35, 60)
	ctx := context.Background()

	granted, err := env.engine.EvaluateBadges(ctx, 1, 0)
	require.NoError(t, err)
	assert.Empty(t, granted)

	_, err = env.engine.Adjust(ctx, 1, 10, 0, "seed")
	require.NoError(t, err)
	held, err := env.store.UserBadges(ctx, 1)
	require.NoError(t, err)
	assert.Len(t, held, 2)

	// the remaining badge is picked up by the next evaluation
	granted, err = env.engine.EvaluateBadges(ctx, 1, env.balance(t, 1).Points)
	require.NoError(t, err)
	assert.Equal(t, []string{"Badge C"}, badgeNames(granted))
}

func TestBadgeGrantedOnlyOnce(t *testing.T) {
	env := newTestEnv(t, Config{})
	env.user(t, 1)
	seedBadges(t, env.engine, 50)
	ctx := context.Background()

	_, err := env.engine.Adjust(ctx, 1, 100, 0, "seed")
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := env.engine.EvaluateBadges(ctx, 1, 200)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	held, err := env.store.UserBadges(ctx, 1)
	require.NoError(t, err)
	assert.Len(t, held, 1)
	assert.Equal(t, int64(125), env.balance(t, 1).Points)
}

func TestBadgeRequirementRecheckedUnderLock(t *testing.T) {
	env := newTestEnv(t, Config{})
	env.user(t, 1)
	seedBadges(t, env.engine, 50)

	// a stale caller claims more points than the user holds
	granted, err := env.engine.EvaluateBadges(context.Background(), 1, 1000)
	require.NoError(t, err)
	assert.Empty(t, granted)
}

func TestInactiveBadgesAreSkipped(t *testing.T) {
	env := newTestEnv(t, Config{})
	env.user(t, 1)
	_, err := env.engine.CreateBadge(context.Background(), models.Badge{Name: "Retired", PointsRequired: 1})
	require.NoError(t, err)

	res, err := env.engine.Award(context.Background(), 1, KindProfileComplete)
	require.NoError(t, err)
	assert.Empty(t, res.Badges)

	active, err := env.engine.ActiveBadges(context.Background())
	require.NoError(t, err)
	assert.Empty(t, active)
}

func TestCreateBadgeValidation(t *testing.T) {
	env := newTestEnv(t, Config{})
	_, err := env.engine.CreateBadge(context.Background(), models.Badge{Name: "  "})
	assert.ErrorIs(t, err, ErrInvalidInput)
	_, err = env.engine.CreateBadge(context.Background(), models.Badge{Name: "Neg", PointsRequired: -1})
	assert.ErrorIs(t, err, ErrInvalidInput)
}
