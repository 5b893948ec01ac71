package controllers

import (
	"github.com/gin-gonic/gin"

	"github.com/edulearn/rewards/rewards"
	"github.com/edulearn/rewards/utils"
)

// LeaderboardController exposes the global ranking.
type LeaderboardController struct {
	engine *rewards.Engine
}

func NewLeaderboardController(engine *rewards.Engine) *LeaderboardController {
	return &LeaderboardController{engine: engine}
}

// GetLeaderboard returns the top ?limit= users (default 50, max 500).
func (c *LeaderboardController) GetLeaderboard(ctx *gin.Context) {
	entries, err := c.engine.Leaderboard(ctx.Request.Context(), queryLimit(ctx))
	if err != nil {
		respondError(ctx, err, 50050, "failed to load leaderboard")
		return
	}
	utils.Success(ctx, entries)
}
