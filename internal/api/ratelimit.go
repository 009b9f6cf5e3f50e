package api

import (
	"math"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"

	"github.com/mr1hm/fixr/internal/metrics"
)

// RateLimitMiddleware is a process-wide token bucket in front of every route
// except health and metrics. Per-caller report quotas live in the service.
func RateLimitMiddleware(rps int) gin.HandlerFunc {
	limiter := rate.NewLimiter(rate.Limit(rps), rps)

	return func(c *gin.Context) {
		switch c.FullPath() {
		case "/health", "/metrics":
			c.Next()
			return
		}

		res := limiter.Reserve()
		if delay := res.Delay(); delay > 0 {
			res.Cancel()
			metrics.RateLimited()
			c.Header("Retry-After", strconv.Itoa(int(math.Ceil(delay.Seconds()))))
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"error": "Too many requests. Please slow down.",
			})
			return
		}
		c.Next()
	}
}
