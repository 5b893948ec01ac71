package main

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/edulearn/rewards/config"
	"github.com/edulearn/rewards/rewards"
)

func TestEngineConfig(t *testing.T) {
	cfg := config.AppConfig{
		RewardsTimezone:         "UTC",
		StreakMilestones:        []int{3},
		LeaderboardCacheSeconds: 45,
		CoinsPerCurrencyUnit:    50,
		RewardAmounts:           map[string]config.RewardAmount{"daily_login": {Points: 15, Coins: 7}},
	}
	got, err := engineConfig(cfg)
	require.NoError(t, err)
	assert.Equal(t, time.UTC, got.Location)
	assert.Equal(t, 45*time.Second, got.LeaderboardTTL)
	assert.Equal(t, int64(50), got.CoinsPerCurrencyUnit)

	rule, ok := got.Catalog.Rule(rewards.KindDailyLogin)
	require.True(t, ok)
	assert.Equal(t, int64(15), rule.Points)
	assert.Equal(t, int64(7), rule.Coins)
	assert.Equal(t, rewards.ScopeDaily, rule.Scope)
}

func TestEngineConfigRejectsBadValues(t *testing.T) {
	cases := map[string]config.AppConfig{
		"timezone":     {RewardsTimezone: "Mars/Olympus"},
		"unknown kind": {RewardsTimezone: "UTC", RewardAmounts: map[string]config.RewardAmount{"TELEPORT": {Points: 1}}},
		"negative":     {RewardsTimezone: "UTC", RewardAmounts: map[string]config.RewardAmount{"DAILY_LOGIN": {Points: -1}}},
	}
	for name, cfg := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := engineConfig(cfg)
			assert.Error(t, err)
		})
	}
}
