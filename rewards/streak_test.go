package rewards

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/edulearn/rewards/models"
	"github.com/edulearn/rewards/storage"
)

func TestStreakAdvance(t *testing.T) {
	const today, yesterday = "2024-03-10", "2024-03-09"
	tests := []struct {
		name        string
		in          streakState
		wantCurrent int
		wantLongest int
		wantChanged bool
	}{
		{"first login", streakState{}, 1, 1, true},
		{"consecutive day", streakState{current: 4, longest: 4, lastActive: yesterday}, 5, 5, true},
		{"consecutive below longest", streakState{current: 2, longest: 9, lastActive: yesterday}, 3, 9, true},
		{"gap resets", streakState{current: 6, longest: 6, lastActive: "2024-03-07"}, 1, 6, true},
		{"same day", streakState{current: 3, longest: 5, lastActive: today}, 3, 5, false},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			next, changed := tc.in.advance(today, yesterday)
			assert.Equal(t, tc.wantChanged, changed)
			assert.Equal(t, tc.wantCurrent, next.current)
			assert.Equal(t, tc.wantLongest, next.longest)
			assert.Equal(t, today, next.lastActive)
		})
	}
}

func TestCrossedMilestones(t *testing.T) {
	ms := []int{7, 30, 100}
	assert.Equal(t, []int{7}, crossedMilestones(ms, 6, 7))
	assert.Nil(t, crossedMilestones(ms, 7, 8))
	assert.Nil(t, crossedMilestones(ms, 40, 1))
	assert.Equal(t, []int{7, 30}, crossedMilestones(ms, 0, 30))
}

func TestDailyLoginStreakScenario(t *testing.T) {
	env := newTestEnv(t, Config{})
	env.user(t, 1)
	ctx := context.Background()

	login := func() LoginResult {
		res, err := env.engine.TriggerDailyLogin(ctx, 1)
		require.NoError(t, err)
		return res
	}

	for day := 1; day <= 3; day++ {
		res := login()
		assert.False(t, res.AlreadyAwarded)
		assert.Equal(t, day, res.CurrentStreak)
		env.clock.Advance(24 * time.Hour)
	}
	bal := env.balance(t, 1)
	assert.Equal(t, 3, bal.CurrentStreak)
	assert.Equal(t, 3, bal.LongestStreak)
	assert.Equal(t, int64(30), bal.Points)
	assert.Equal(t, int64(15), bal.Coins)

	// skip day 4
	env.clock.Advance(24 * time.Hour)
	res := login()
	assert.Equal(t, 1, res.CurrentStreak)
	assert.Equal(t, 3, res.LongestStreak)
	assert.Equal(t, "2024-03-05", env.balance(t, 1).LastActiveDate)
}

func TestDailyLoginTwiceSameDay(t *testing.T) {
	env := newTestEnv(t, Config{})
	env.user(t, 1)
	ctx := context.Background()

	first, err := env.engine.TriggerDailyLogin(ctx, 1)
	require.NoError(t, err)
	require.NotNil(t, first.Event)

	env.clock.Advance(6 * time.Hour)
	second, err := env.engine.TriggerDailyLogin(ctx, 1)
	require.NoError(t, err)
	assert.True(t, second.AlreadyAwarded)
	assert.Equal(t, 1, second.CurrentStreak)
	assert.Equal(t, int64(10), second.Points)
	assert.Equal(t, []EventKind{KindDailyLogin}, env.notifier.kinds())
}

func TestDailyLoginUnknownUser(t *testing.T) {
	env := newTestEnv(t, Config{})
	_, err := env.engine.TriggerDailyLogin(context.Background(), 42)
	assert.ErrorIs(t, err, ErrUserNotFound)
}

func TestStreakMilestoneGrantedOnce(t *testing.T) {
	env := newTestEnv(t, Config{StreakMilestones: []int{3}})
	env.user(t, 1)
	ctx := context.Background()

	var last LoginResult
	for day := 1; day <= 4; day++ {
		res, err := env.engine.TriggerDailyLogin(ctx, 1)
		require.NoError(t, err)
		if day == 3 {
			assert.Equal(t, []int{3}, res.Milestones)
		} else {
			assert.Empty(t, res.Milestones)
		}
		last = res
		env.clock.Advance(24 * time.Hour)
	}
	// 4 daily logins plus one milestone
	assert.Equal(t, int64(4*10+100), last.Points)

	var milestones int
	for _, k := range env.notifier.kinds() {
		if k == KindStreakMilestone {
			milestones++
		}
	}
	assert.Equal(t, 1, milestones)
}

func TestConcurrentDailyLogin(t *testing.T) {
	env := newTestEnv(t, Config{})
	env.user(t, 1)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := env.engine.TriggerDailyLogin(ctx, 1)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	bal := env.balance(t, 1)
	assert.Equal(t, int64(10), bal.Points)
	assert.Equal(t, 1, bal.CurrentStreak)
}

func TestDailyLoginAwardKeepsStreak(t *testing.T) {
	env := newTestEnv(t, Config{})
	env.user(t, 1)
	ctx := context.Background()

	awarded, err := env.engine.Award(ctx, 1, KindDailyLogin)
	require.NoError(t, err)
	assert.False(t, awarded.AlreadyAwarded)
	assert.Equal(t, 1, env.balance(t, 1).CurrentStreak)

	same, err := env.engine.TriggerDailyLogin(ctx, 1)
	require.NoError(t, err)
	assert.True(t, same.AlreadyAwarded)
	assert.Equal(t, 1, same.CurrentStreak)

	env.clock.Advance(24 * time.Hour)
	next, err := env.engine.TriggerDailyLogin(ctx, 1)
	require.NoError(t, err)
	assert.False(t, next.AlreadyAwarded)
	assert.Equal(t, 2, next.CurrentStreak)
	assert.Equal(t, int64(20), next.Points)
}

func TestDailyLoginCountsDayAlreadyInLedger(t *testing.T) {
	env := newTestEnv(t, Config{StreakMilestones: []int{1}})
	env.user(t, 1)
	ctx := context.Background()

	// a DAILY_LOGIN row for today written without touching the streak
	_, today, _ := env.engine.today()
	key := string(KindDailyLogin) + ":" + today
	require.NoError(t, env.store.Transaction(ctx, func(tx storage.Tx) error {
		return tx.AppendEvent(&models.GamificationEvent{UserID: 1, EventKind: string(KindDailyLogin), DedupeKey: &key, CreatedAt: env.clock.Now()})
	}))

	res, err := env.engine.TriggerDailyLogin(ctx, 1)
	require.NoError(t, err)
	assert.True(t, res.AlreadyAwarded)
	assert.Nil(t, res.Event)
	assert.Equal(t, 1, res.CurrentStreak)
	assert.Equal(t, []int{1}, res.Milestones, "milestones still follow the streak")
	assert.Equal(t, int64(100), env.balance(t, 1).Points, "only the milestone is paid")

	env.clock.Advance(24 * time.Hour)
	res, err = env.engine.TriggerDailyLogin(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, 2, res.CurrentStreak)
}
