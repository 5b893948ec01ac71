package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/edulearn/rewards/rewards"
	"github.com/edulearn/rewards/utils"
)

// RewardsController serves a learner's own rewards: daily login, stats and history.
type RewardsController struct {
	engine *rewards.Engine
}

// NewRewardsController creates a new controller instance.
func NewRewardsController(engine *rewards.Engine) *RewardsController {
	return &RewardsController{engine: engine}
}

// DailyLogin records today's login, advancing the streak. Repeating it on the same day is a no-op.
func (c *RewardsController) DailyLogin(ctx *gin.Context) {
	userID, ok := getUserID(ctx)
	if !ok {
		utils.Error(ctx, http.StatusUnauthorized, 40110, "unauthorized")
		return
	}

	res, err := c.engine.TriggerDailyLogin(ctx.Request.Context(), userID)
	if err != nil {
		respondError(ctx, err, 50030, "failed to record daily login")
		return
	}
	utils.Success(ctx, res)
}

// Stats returns balance, badges, recent events and rank of the caller.
func (c *RewardsController) Stats(ctx *gin.Context) {
	userID, ok := getUserID(ctx)
	if !ok {
		utils.Error(ctx, http.StatusUnauthorized, 40110, "unauthorized")
		return
	}

	stats, err := c.engine.Stats(ctx.Request.Context(), userID)
	if err != nil {
		respondError(ctx, err, 50031, "failed to load stats")
		return
	}
	utils.Success(ctx, stats)
}

// Events lists the caller's ledger, newest first.
func (c *RewardsController) Events(ctx *gin.Context) {
	userID, ok := getUserID(ctx)
	if !ok {
		utils.Error(ctx, http.StatusUnauthorized, 40110, "unauthorized")
		return
	}

	events, err := c.engine.Events(ctx.Request.Context(), userID, queryLimit(ctx))
	if err != nil {
		respondError(ctx, err, 50032, "failed to load events")
		return
	}
	utils.Success(ctx, events)
}

type catalogEntry struct {
	Kind rewards.EventKind `json:"kind"`
	rewards.Rule
}

// Catalog lists what each action is worth.
func (c *RewardsController) Catalog(ctx *gin.Context) {
	catalog := c.engine.Catalog()
	out := make([]catalogEntry, 0, len(catalog))
	for _, kind := range catalog.Kinds() {
		rule, _ := catalog.Rule(kind)
		out = append(out, catalogEntry{Kind: kind, Rule: rule})
	}
	utils.Success(ctx, out)
}

// Badges lists the badges learners can earn.
func (c *RewardsController) Badges(ctx *gin.Context) {
	badges, err := c.engine.ActiveBadges(ctx.Request.Context())
	if err != nil {
		respondError(ctx, err, 50033, "failed to load badges")
		return
	}
	utils.Success(ctx, badges)
}
