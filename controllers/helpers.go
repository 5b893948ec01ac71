package controllers

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/edulearn/rewards/middleware"
	"github.com/edulearn/rewards/rewards"
	"github.com/edulearn/rewards/utils"
)

func getUserID(ctx *gin.Context) (uint, bool) {
	value, exists := ctx.Get(middleware.ContextUserIDKey)
	if !exists {
		return 0, false
	}

	switch v := value.(type) {
	case uint:
		return v, v != 0
	case int:
		return uint(v), v > 0
	case int64:
		return uint(v), v > 0
	case float64:
		return uint(v), v > 0
	default:
		return 0, false
	}
}

// parseIDParam reads a positive numeric path parameter.
func parseIDParam(ctx *gin.Context, name string) (uint, bool) {
	id, err := strconv.ParseUint(ctx.Param(name), 10, 64)
	if err != nil || id == 0 {
		return 0, false
	}
	return uint(id), true
}

// queryLimit reads ?limit=, returning 0 (engine default) when absent or invalid.
func queryLimit(ctx *gin.Context) int {
	n, err := strconv.Atoi(ctx.Query("limit"))
	if err != nil || n < 0 {
		return 0
	}
	return n
}

type errorMapping struct {
	err     error
	status  int
	code    int
	message string
}

// engineErrors translates engine sentinels into API responses. Order matters for wrapped errors.
var engineErrors = []errorMapping{
	{rewards.ErrUserNotFound, http.StatusNotFound, 40410, "user balance not found"},
	{rewards.ErrItemNotFound, http.StatusNotFound, 40420, "store item not found"},
	{rewards.ErrUnknownEventKind, http.StatusBadRequest, 40040, "unknown event kind"},
	{rewards.ErrMissingKey, http.StatusBadRequest, 40041, ""},
	{rewards.ErrInvalidInput, http.StatusBadRequest, 40042, ""},
	{rewards.ErrInvalidQuantity, http.StatusBadRequest, 40043, "quantity must be at least 1"},
	{rewards.ErrInsufficientCoins, http.StatusBadRequest, 40050, "insufficient coins"},
	{rewards.ErrInsufficientStock, http.StatusBadRequest, 40051, "insufficient stock"},
	{rewards.ErrNegativeBalance, http.StatusBadRequest, 40052, "points cannot go below zero"},
	{rewards.ErrTransactionConflict, http.StatusServiceUnavailable, 50310, "busy, please retry"},
}

// respondError writes the envelope for err. Unknown errors are logged and reported as internal with fallbackCode.
func respondError(ctx *gin.Context, err error, fallbackCode int, fallbackMsg string) {
	for _, m := range engineErrors {
		if errors.Is(err, m.err) {
			msg := m.message
			if msg == "" {
				msg = err.Error()
			}
			utils.Error(ctx, m.status, m.code, msg)
			return
		}
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		utils.Error(ctx, http.StatusServiceUnavailable, 50311, "request cancelled")
		return
	}
	utils.L().Error(fallbackMsg,
		zap.String("path", ctx.FullPath()),
		zap.Error(err),
	)
	utils.Error(ctx, http.StatusInternalServerError, fallbackCode, fallbackMsg)
}
