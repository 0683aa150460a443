package middleware

import (
	"sync"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"

	"soc-assistant/internal/metrics"
	"soc-assistant/pkg/response"
)

// UserRateLimiter 按用户的令牌桶限流
type UserRateLimiter struct {
	mu       sync.Mutex
	limiters map[int64]*rate.Limiter
	limit    rate.Limit
	burst    int
}

// NewUserRateLimiter 创建限流器
// 参数:
//   - perSecond: 每秒补充的令牌数，<= 0 表示不限流
//   - burst: 桶容量
func NewUserRateLimiter(perSecond float64, burst int) *UserRateLimiter {
	if burst < 1 {
		burst = 1
	}
	limit := rate.Limit(perSecond)
	if perSecond <= 0 {
		limit = rate.Inf
	}
	return &UserRateLimiter{
		limiters: make(map[int64]*rate.Limiter),
		limit:    limit,
		burst:    burst,
	}
}

// Allow 判断用户本次请求是否放行
func (l *UserRateLimiter) Allow(userID int64) bool {
	l.mu.Lock()
	limiter, ok := l.limiters[userID]
	if !ok {
		limiter = rate.NewLimiter(l.limit, l.burst)
		l.limiters[userID] = limiter
	}
	l.mu.Unlock()
	return limiter.Allow()
}

// RateLimitMiddleware 创建按用户限流的中间件，必须放在 AuthMiddleware 之后
func RateLimitMiddleware(limiter *UserRateLimiter) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !limiter.Allow(GetUserID(c)) {
			metrics.RateLimitHits.WithLabelValues(c.FullPath()).Inc()
			response.TooManyRequests(c)
			c.Abort()
			return
		}
		c.Next()
	}
}
