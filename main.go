package main

import (
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/edulearn/rewards/config"
	"github.com/edulearn/rewards/rewards"
	"github.com/edulearn/rewards/routes"
	"github.com/edulearn/rewards/storage"
	"github.com/edulearn/rewards/utils"
)

func main() {
	cfg := config.Load()

	// Initialize logger early
	if err := utils.InitLogger(cfg); err != nil {
		panic(err)
	}

	engineCfg, err := engineConfig(cfg)
	if err != nil {
		utils.Sugar.Fatalf("invalid rewards config: %v", err)
	}

	db := config.InitDatabase(storage.Models()...)
	store := storage.NewGormStore(db)

	opts := []rewards.Option{rewards.WithLogger(utils.Logger)}
	var notifier *utils.RedisNotifier
	// Redis is optional; without it the leaderboard is computed per request and notifications are dropped
	if rc := utils.GetRedis(); rc != nil {
		notifier = utils.NewRedisNotifier(rc, cfg.NotifyChannel)
		opts = append(opts, rewards.WithCache(utils.NewRedisCache(rc)), rewards.WithNotifier(notifier))
	}
	engine := rewards.NewEngine(store, engineCfg, opts...)

	r := routes.SetupRouter(engine)

	srv := utils.NewServer(":"+cfg.AppPort, r)
	if notifier != nil {
		srv.OnShutdown(notifier.Close)
	}
	srv.OnShutdown(utils.CloseRedis)
	srv.OnShutdown(func() { _ = utils.Logger.Sync() })

	utils.Sugar.Infof("Starting rewards service on port %s (graceful)", cfg.AppPort)
	if err := srv.ListenAndServe(); err != nil {
		utils.Sugar.Fatalf("server stopped with error: %v", err)
	}
}

// engineConfig translates application config into engine settings.
func engineConfig(cfg config.AppConfig) (rewards.Config, error) {
	loc, err := time.LoadLocation(cfg.RewardsTimezone)
	if err != nil {
		return rewards.Config{}, fmt.Errorf("timezone %q: %w", cfg.RewardsTimezone, err)
	}

	catalog := rewards.DefaultCatalog()
	for name, amount := range cfg.RewardAmounts {
		kind := rewards.ParseEventKind(name)
		rule, ok := catalog.Rule(kind)
		if !ok {
			return rewards.Config{}, fmt.Errorf("reward amount for unknown event kind %q", name)
		}
		if amount.Points < 0 || amount.Coins < 0 {
			return rewards.Config{}, fmt.Errorf("reward amount for %s must not be negative", kind)
		}
		rule.Points, rule.Coins = amount.Points, amount.Coins
		catalog[kind] = rule
		utils.L().Info("reward amount overridden", zap.String("kind", string(kind)), zap.Int64("points", amount.Points), zap.Int64("coins", amount.Coins))
	}

	return rewards.Config{
		Catalog:              catalog,
		Location:             loc,
		StreakMilestones:     cfg.StreakMilestones,
		BadgeMaxPasses:       cfg.BadgeMaxPasses,
		MaxTxRetries:         cfg.TxMaxRetries,
		LeaderboardTTL:       time.Duration(cfg.LeaderboardCacheSeconds) * time.Second,
		CoinsPerCurrencyUnit: int64(cfg.CoinsPerCurrencyUnit),
	}, nil
}
