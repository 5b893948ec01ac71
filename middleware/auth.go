package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/edulearn/rewards/config"
	"github.com/edulearn/rewards/utils"
)

const (
	// ContextUserIDKey is the key used to store authenticated user ID in Gin context.
	ContextUserIDKey = "user_id"
	// ContextUsernameKey stores the username inside Gin context.
	ContextUsernameKey = "username"
)

// AuthRequired ensures the request carries a JWT issued by the identity service.
func AuthRequired() gin.HandlerFunc {
	return func(ctx *gin.Context) {
		authHeader := ctx.GetHeader("Authorization")
		if authHeader == "" {
			utils.Abort(ctx, http.StatusUnauthorized, 40101, "authorization header missing")
			return
		}

		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
			utils.Abort(ctx, http.StatusUnauthorized, 40102, "invalid authorization header format")
			return
		}

		tokenString := strings.TrimSpace(parts[1])
		if tokenString == "" {
			utils.Abort(ctx, http.StatusUnauthorized, 40103, "empty bearer token")
			return
		}

		claims, err := utils.ParseToken(tokenString)
		if err != nil || claims.UserID == 0 {
			utils.Abort(ctx, http.StatusUnauthorized, 40105, "invalid token")
			return
		}

		ctx.Set(ContextUserIDKey, claims.UserID)
		ctx.Set(ContextUsernameKey, claims.Username)
		ctx.Next()
	}
}

// AdminRequired allows only usernames listed in AdminUsernames. It must run after AuthRequired.
func AdminRequired() gin.HandlerFunc {
	return func(ctx *gin.Context) {
		if !IsAdmin(ctx) {
			utils.Abort(ctx, http.StatusForbidden, 40301, "admin only")
			return
		}
		ctx.Next()
	}
}

// IsAdmin reports whether the authenticated user is configured as an admin.
func IsAdmin(ctx *gin.Context) bool {
	username := ctx.GetString(ContextUsernameKey)
	if username == "" {
		return false
	}
	for _, admin := range config.Get().AdminUsernames {
		if strings.EqualFold(strings.TrimSpace(admin), username) {
			return true
		}
	}
	return false
}
