package middleware

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"soc-assistant/internal/metrics"
)

// MetricsMiddleware 记录 HTTP 请求数和耗时
// path 使用路由模板（如 /api/v1/sessions/:id），未匹配路由记为 "unmatched"
func MetricsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}
		method := c.Request.Method

		metrics.HTTPRequestsTotal.WithLabelValues(method, path, strconv.Itoa(c.Writer.Status())).Inc()
		metrics.HTTPRequestDuration.WithLabelValues(method, path).Observe(time.Since(start).Seconds())
	}
}
