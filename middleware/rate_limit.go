package middleware

import (
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"

	"github.com/edulearn/rewards/config"
	"github.com/edulearn/rewards/utils"
)

const limiterIdleTTL = 5 * time.Minute

type visitor struct {
	limiter *rate.Limiter
	expires time.Time
}

// limiterSet hands out one token bucket per caller key.
type limiterSet struct {
	mu       sync.Mutex
	visitors map[string]*visitor
	limit    rate.Limit
	burst    int
	now      func() time.Time
}

func newLimiterSet(perMinute int) *limiterSet {
	perMinute = max(perMinute, 1)
	return &limiterSet{
		visitors: map[string]*visitor{},
		limit:    rate.Every(time.Minute / time.Duration(perMinute)),
		burst:    max(perMinute/2, 1),
		now:      time.Now,
	}
}

func (s *limiterSet) allow(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	for k, v := range s.visitors {
		if now.After(v.expires) {
			delete(s.visitors, k)
		}
	}
	v, ok := s.visitors[key]
	if !ok {
		v = &visitor{limiter: rate.NewLimiter(s.limit, s.burst)}
		s.visitors[key] = v
	}
	v.expires = now.Add(limiterIdleTTL)
	return v.limiter.AllowN(now, 1)
}

// RateLimitMiddleware applies a token bucket per authenticated user, or per client IP for anonymous calls.
func RateLimitMiddleware() gin.HandlerFunc {
	return RateLimit(config.Get().RateLimitPerMinute)
}

// RateLimit is RateLimitMiddleware with an explicit budget.
func RateLimit(perMinute int) gin.HandlerFunc {
	set := newLimiterSet(perMinute)
	return func(ctx *gin.Context) {
		key := "ip:" + ctx.ClientIP()
		if uid, ok := ctx.Get(ContextUserIDKey); ok {
			key = fmt.Sprintf("user:%v", uid)
		}
		if !set.allow(key) {
			utils.Abort(ctx, http.StatusTooManyRequests, 42901, "rate limit exceeded")
			return
		}
		ctx.Next()
	}
}

func max(a, b int) int {
	if a > b {
		return a
	}
	return b
}
