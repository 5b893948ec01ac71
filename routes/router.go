package routes

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	ginzap "github.com/gin-contrib/zap"
	"github.com/gin-gonic/gin"

	"github.com/edulearn/rewards/config"
	"github.com/edulearn/rewards/controllers"
	"github.com/edulearn/rewards/middleware"
	"github.com/edulearn/rewards/rewards"
	"github.com/edulearn/rewards/utils"
)

// SetupRouter wires routes, middlewares, and controllers.
func SetupRouter(engine *rewards.Engine) *gin.Engine {
	// Load config and set Gin mode from configuration
	cfg := config.Get()
	switch strings.ToLower(cfg.GinMode) {
	case "debug":
		gin.SetMode(gin.DebugMode)
	case "test":
		gin.SetMode(gin.TestMode)
	default:
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	// Access log goes to its own rolling file; application logs stay in utils.Logger
	gl, err := utils.NewRollingFileLogger(cfg.GinPath, cfg.LogLevel, cfg.LogMaxSizeMB, cfg.LogMaxBackups, cfg.LogMaxAgeDays, cfg.LogCompress)
	if err == nil {
		r.Use(ginzap.Ginzap(gl, time.RFC3339, true))
		r.Use(ginzap.RecoveryWithZap(gl, true))
	} else {
		// fallback to default recovery if logger failed to init
		r.Use(gin.Recovery())
	}

	corsCfg := cors.Config{
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Authorization", "Content-Type"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}

	if len(cfg.AllowedOrigins) == 0 || (len(cfg.AllowedOrigins) == 1 && cfg.AllowedOrigins[0] == "*") {
		corsCfg.AllowAllOrigins = true
		corsCfg.AllowCredentials = false
	} else {
		corsCfg.AllowOrigins = cfg.AllowedOrigins
	}
	r.Use(cors.New(corsCfg))

	r.GET("/health", func(ctx *gin.Context) {
		utils.Success(ctx, gin.H{"status": "ok"})
	})

	rewardsController := controllers.NewRewardsController(engine)
	storeController := controllers.NewStoreController(engine)
	leaderboardController := controllers.NewLeaderboardController(engine)
	adminController := controllers.NewAdminController(engine)

	api := r.Group("/api/v1")

	// Public catalog and ranking
	api.GET("/rewards/catalog", rewardsController.Catalog)
	api.GET("/badges", rewardsController.Badges)
	api.GET("/leaderboard", middleware.RateLimitMiddleware(), leaderboardController.GetLeaderboard)

	protected := api.Group("")
	protected.Use(middleware.AuthRequired(), middleware.RateLimitMiddleware())
	protected.POST("/rewards/daily-login", rewardsController.DailyLogin)
	protected.GET("/rewards/stats", rewardsController.Stats)
	protected.GET("/rewards/events", rewardsController.Events)
	protected.GET("/store/items", storeController.ListItems)
	protected.POST("/store/purchase", storeController.Purchase)

	admin := api.Group("/admin")
	admin.Use(middleware.AuthRequired(), middleware.AdminRequired())
	admin.POST("/accounts", adminController.CreateAccount)
	admin.POST("/rewards/award", adminController.Award)
	admin.POST("/balances/:id/adjust", adminController.Adjust)
	admin.POST("/courses/purchased", adminController.CoursePurchased)
	admin.POST("/referrals/reward", adminController.RewardReferral)
	admin.POST("/badges", adminController.CreateBadge)
	admin.POST("/store/items", adminController.CreateItem)
	admin.POST("/store/items/:id/restock", adminController.Restock)

	r.NoRoute(func(ctx *gin.Context) {
		utils.Error(ctx, http.StatusNotFound, 40400, "api route not found")
	})

	return r
}
