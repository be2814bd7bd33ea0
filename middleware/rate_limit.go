package middleware

import (
	"context"
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/absolute0github/band-contract-plugin/pkg/logger"
)

// Limiter counts hits per key. Both the memory and badger attempt limiters satisfy it.
type Limiter interface {
	Hit(ctx context.Context, key string) (allowed bool, retryAfter time.Duration, err error)
}

// RateLimit middleware limits requests per client IP
func RateLimit(limiter Limiter) gin.HandlerFunc {
	return func(c *gin.Context) {
		clientIP := c.ClientIP()
		ctx := c.Request.Context()

		allowed, retryAfter, err := limiter.Hit(ctx, "api:"+clientIP)
		if err != nil {
			logger.Error(ctx, "rate limiter unavailable", "error", err)
			c.Next()
			return
		}

		if !allowed {
			logger.Warn(ctx, "rate limit exceeded", "client_ip", clientIP)
			c.Header("Retry-After", retryAfterSeconds(retryAfter))
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"error": "Rate limit exceeded. Please try again later.",
			})
			return
		}

		c.Next()
	}
}

// retryAfterSeconds rounds up so clients never retry early.
func retryAfterSeconds(d time.Duration) string {
	secs := int(math.Ceil(d.Seconds()))
	if secs < 1 {
		secs = 1
	}
	return strconv.Itoa(secs)
}
