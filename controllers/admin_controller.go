package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/edulearn/rewards/models"
	"github.com/edulearn/rewards/rewards"
	"github.com/edulearn/rewards/utils"
)

// AdminController holds the operator and service-to-service endpoints.
type AdminController struct {
	engine *rewards.Engine
}

func NewAdminController(engine *rewards.Engine) *AdminController {
	return &AdminController{engine: engine}
}

type awardRequest struct {
	UserID      uint                   `json:"user_id" binding:"required"`
	Kind        string                 `json:"kind" binding:"required"`
	Description string                 `json:"description"`
	Metadata    map[string]interface{} `json:"metadata"`
}

type adjustRequest struct {
	Points int64  `json:"points"`
	Coins  int64  `json:"coins"`
	Reason string `json:"reason" binding:"required"`
}

type courseRequest struct {
	UserID   uint   `json:"user_id" binding:"required"`
	CourseID string `json:"course_id" binding:"required"`
}

type referralRequest struct {
	ReferredUserID uint   `json:"referred_user_id" binding:"required"`
	CourseID       string `json:"course_id"`
}

type badgeRequest struct {
	Name           string `json:"name" binding:"required"`
	Description    string `json:"description"`
	PointsRequired int64  `json:"points_required"`
	Category       string `json:"category"`
	Rarity         string `json:"rarity"`
	IsActive       *bool  `json:"is_active"`
}

type itemRequest struct {
	Name          string `json:"name" binding:"required"`
	Description   string `json:"description"`
	Price         int64  `json:"price"`
	StockQuantity int64  `json:"stock_quantity"`
	IsActive      *bool  `json:"is_active"`
}

type restockRequest struct {
	StockQuantity *int64 `json:"stock_quantity" binding:"required"`
}

func boolOr(v *bool, def bool) bool {
	if v == nil {
		return def
	}
	return *v
}

// CreateAccount provisions the balance row of a new user. Repeated calls return the existing row.
func (c *AdminController) CreateAccount(ctx *gin.Context) {
	var req rewards.NewAccount
	if err := ctx.ShouldBindJSON(&req); err != nil || req.UserID == 0 {
		utils.Error(ctx, http.StatusBadRequest, 40030, "user_id is required")
		return
	}

	bal, created, err := c.engine.EnsureBalance(ctx.Request.Context(), req)
	if err != nil {
		respondError(ctx, err, 50060, "failed to create account")
		return
	}
	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	utils.Respond(ctx, status, 0, "success", gin.H{"balance": bal, "created": created})
}

// Award grants a catalog reward on behalf of another service.
func (c *AdminController) Award(ctx *gin.Context) {
	var req awardRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		utils.Error(ctx, http.StatusBadRequest, 40031, "user_id and kind are required")
		return
	}

	res, err := c.engine.Award(ctx.Request.Context(), req.UserID, rewards.ParseEventKind(req.Kind),
		rewards.WithDescription(req.Description),
		rewards.WithMetadata(req.Metadata),
	)
	if err != nil {
		respondError(ctx, err, 50061, "failed to award")
		return
	}
	utils.Success(ctx, res)
}

// Adjust applies a signed correction to a user's balance.
func (c *AdminController) Adjust(ctx *gin.Context) {
	userID, ok := parseIDParam(ctx, "id")
	if !ok {
		utils.Error(ctx, http.StatusBadRequest, 40032, "invalid user id")
		return
	}
	var req adjustRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		utils.Error(ctx, http.StatusBadRequest, 40033, "reason is required")
		return
	}

	res, err := c.engine.Adjust(ctx.Request.Context(), userID, req.Points, req.Coins, req.Reason)
	if err != nil {
		respondError(ctx, err, 50062, "failed to adjust balance")
		return
	}
	utils.Success(ctx, res)
}

// CoursePurchased grants the enrollment rewards and pays a pending referral bonus.
func (c *AdminController) CoursePurchased(ctx *gin.Context) {
	var req courseRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		utils.Error(ctx, http.StatusBadRequest, 40034, "user_id and course_id are required")
		return
	}

	res, err := c.engine.CoursePurchased(ctx.Request.Context(), req.UserID, req.CourseID)
	if err != nil {
		respondError(ctx, err, 50063, "failed to process course purchase")
		return
	}
	utils.Success(ctx, res)
}

// RewardReferral pays the referrer of a user. Paying twice is reported as paid=false.
func (c *AdminController) RewardReferral(ctx *gin.Context) {
	var req referralRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		utils.Error(ctx, http.StatusBadRequest, 40035, "referred_user_id is required")
		return
	}

	paid, err := c.engine.RewardReferral(ctx.Request.Context(), req.ReferredUserID, req.CourseID)
	if err != nil {
		respondError(ctx, err, 50064, "failed to reward referral")
		return
	}
	utils.Success(ctx, gin.H{"paid": paid})
}

func (c *AdminController) CreateBadge(ctx *gin.Context) {
	var req badgeRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		utils.Error(ctx, http.StatusBadRequest, 40036, "badge name is required")
		return
	}

	badge, err := c.engine.CreateBadge(ctx.Request.Context(), models.Badge{
		Name:           req.Name,
		Description:    req.Description,
		PointsRequired: req.PointsRequired,
		Category:       req.Category,
		Rarity:         req.Rarity,
		IsActive:       boolOr(req.IsActive, true),
	})
	if err != nil {
		respondError(ctx, err, 50065, "failed to create badge")
		return
	}
	utils.Created(ctx, badge)
}

func (c *AdminController) CreateItem(ctx *gin.Context) {
	var req itemRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		utils.Error(ctx, http.StatusBadRequest, 40037, "item name is required")
		return
	}

	item, err := c.engine.CreateItem(ctx.Request.Context(), models.StoreItem{
		Name:          req.Name,
		Description:   req.Description,
		Price:         req.Price,
		StockQuantity: req.StockQuantity,
		IsActive:      boolOr(req.IsActive, true),
	})
	if err != nil {
		respondError(ctx, err, 50066, "failed to create item")
		return
	}
	utils.Created(ctx, item)
}

// Restock sets the absolute stock of an item; -1 makes it unlimited.
func (c *AdminController) Restock(ctx *gin.Context) {
	itemID, ok := parseIDParam(ctx, "id")
	if !ok {
		utils.Error(ctx, http.StatusBadRequest, 40038, "invalid item id")
		return
	}
	var req restockRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		utils.Error(ctx, http.StatusBadRequest, 40039, "stock_quantity is required")
		return
	}

	item, err := c.engine.Restock(ctx.Request.Context(), itemID, *req.StockQuantity)
	if err != nil {
		respondError(ctx, err, 50067, "failed to restock item")
		return
	}
	utils.Success(ctx, item)
}
