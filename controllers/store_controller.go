package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/edulearn/rewards/rewards"
	"github.com/edulearn/rewards/utils"
)

// StoreController sells store items for coins.
type StoreController struct {
	engine *rewards.Engine
}

func NewStoreController(engine *rewards.Engine) *StoreController {
	return &StoreController{engine: engine}
}

type purchaseRequest struct {
	ItemID   uint `json:"item_id" binding:"required"`
	Quantity int  `json:"quantity"`
}

// ListItems returns active items.
func (c *StoreController) ListItems(ctx *gin.Context) {
	items, err := c.engine.StoreItems(ctx.Request.Context())
	if err != nil {
		respondError(ctx, err, 50040, "failed to load store items")
		return
	}
	utils.Success(ctx, items)
}

// Purchase buys an item for the caller. Quantity defaults to 1.
func (c *StoreController) Purchase(ctx *gin.Context) {
	userID, ok := getUserID(ctx)
	if !ok {
		utils.Error(ctx, http.StatusUnauthorized, 40110, "unauthorized")
		return
	}

	var req purchaseRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		utils.Error(ctx, http.StatusBadRequest, 40044, "invalid purchase request")
		return
	}
	if req.Quantity == 0 {
		req.Quantity = 1
	}

	p, err := c.engine.Purchase(ctx.Request.Context(), userID, req.ItemID, req.Quantity)
	if err != nil {
		respondError(ctx, err, 50041, "purchase failed")
		return
	}
	utils.Created(ctx, p)
}
