package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm/logger"
)

func TestLoadJSONConfigGroupedSections(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte(`{
		"app": {"AppPort": "9000", "JWTSecret": "s3cret", "RateLimitPerMinute": 120},
		"database": {"Driver": "postgres", "DBHost": "db", "DBName": "lms"},
		"redis": {"RedisHost": "cache", "RedisDB": 2},
		"log": {"Level": "debug", "MaxBackups": 9},
		"rewards": {
			"Timezone": "Europe/Berlin",
			"StreakMilestones": [3, 14],
			"BadgeMaxPasses": 2,
			"Amounts": {"daily_login": {"Points": 15, "Coins": 7}}
		},
		"admin": {"Usernames": ["root", "ops"]}
	}`), 0o600))

	var c AppConfig
	require.NoError(t, loadJSONConfig(path, &c))
	assert.Equal(t, "9000", c.AppPort)
	assert.Equal(t, "s3cret", c.JWTSecret)
	assert.Equal(t, 120, c.RateLimitPerMinute)
	assert.Equal(t, "postgres", c.DBDriver)
	assert.Equal(t, "cache", c.RedisHost)
	assert.Equal(t, 2, c.RedisDB)
	assert.Equal(t, "debug", c.LogLevel)
	assert.Equal(t, "Europe/Berlin", c.RewardsTimezone)
	assert.Equal(t, []int{3, 14}, c.StreakMilestones)
	assert.Equal(t, 2, c.BadgeMaxPasses)
	assert.Equal(t, RewardAmount{Points: 15, Coins: 7}, c.RewardAmounts["DAILY_LOGIN"])
	assert.Equal(t, []string{"root", "ops"}, c.AdminUsernames)

	applyDefaults(&c)
	assert.Equal(t, "5432", c.DBPort)
}

func TestLoadJSONConfigMissingAndInvalid(t *testing.T) {
	var c AppConfig
	assert.NoError(t, loadJSONConfig(filepath.Join(t.TempDir(), "nope.json"), &c))

	bad := filepath.Join(t.TempDir(), "bad.json")
	require.NoError(t, os.WriteFile(bad, []byte("{"), 0o600))
	assert.Error(t, loadJSONConfig(bad, &c))
}

func TestApplyDefaults(t *testing.T) {
	var c AppConfig
	applyDefaults(&c)
	assert.Equal(t, "8080", c.AppPort)
	assert.Equal(t, "mysql", c.DBDriver)
	assert.Equal(t, "3306", c.DBPort)
	assert.Equal(t, "UTC", c.RewardsTimezone)
	assert.Equal(t, []int{7, 30, 100}, c.StreakMilestones)
	assert.Equal(t, 5, c.BadgeMaxPasses)
	assert.Equal(t, 3, c.TxMaxRetries)
	assert.Equal(t, 100, c.CoinsPerCurrencyUnit)
	assert.Empty(t, c.RedisHost, "redis stays disabled unless configured")
}

func TestApplyEnvOverrides(t *testing.T) {
	t.Setenv("DB_DRIVER", "Postgres")
	t.Setenv("REWARDS_TIMEZONE", "Asia/Tokyo")
	t.Setenv("STREAK_MILESTONES", "5, 10 ,50")
	t.Setenv("ADMIN_USERNAMES", "alice, bob")
	t.Setenv("TX_MAX_RETRIES", "-1")
	t.Setenv("CORS_ALLOWED_ORIGINS", "https://lms.example.com")

	c := AppConfig{DBDriver: "mysql"}
	applyEnvOverrides(&c)
	assert.Equal(t, "postgres", c.DBDriver)
	assert.Equal(t, "Asia/Tokyo", c.RewardsTimezone)
	assert.Equal(t, []int{5, 10, 50}, c.StreakMilestones)
	assert.Equal(t, []string{"alice", "bob"}, c.AdminUsernames)
	assert.Equal(t, -1, c.TxMaxRetries)
	assert.Equal(t, []string{"https://lms.example.com"}, c.AllowedOrigins)
}

func TestOverride(t *testing.T) {
	Override(AppConfig{JWTSecret: "test", AdminUsernames: []string{"admin"}})
	c := Get()
	assert.Equal(t, "test", c.JWTSecret)
	assert.Equal(t, "8080", c.AppPort)
}

func TestOpenDialector(t *testing.T) {
	d, err := openDialector(AppConfig{DBDriver: "postgres", DBHost: "h", DBPort: "5432"})
	require.NoError(t, err)
	assert.Equal(t, "postgres", d.Name())

	d, err = openDialector(AppConfig{DBDriver: "mysql", DatabaseURI: "u:p@tcp(h:3306)/db"})
	require.NoError(t, err)
	assert.Equal(t, "mysql", d.Name())

	_, err = openDialector(AppConfig{DBDriver: "oracle"})
	assert.Error(t, err)
}

func TestToGormLogLevel(t *testing.T) {
	assert.Equal(t, logger.Info, toGormLogLevel("debug"))
	assert.Equal(t, logger.Warn, toGormLogLevel("info"))
	assert.Equal(t, logger.Silent, toGormLogLevel("silent"))
}
