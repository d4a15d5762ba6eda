package server

import (
	"context"
	"math"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/smallbiznis/relevamientos/internal/observability/logger"
	"github.com/smallbiznis/relevamientos/internal/ratelimit"
	"go.uber.org/zap"
)

type submitLimiter interface {
	Enabled() bool
	AllowSubmit(ctx context.Context, clientKey string) (ratelimit.SubmitVerdict, error)
}

// SubmitRateLimit throttles form posts per client IP. Limiter failures let
// the request through.
func (s *Server) SubmitRateLimit() gin.HandlerFunc {
	return func(c *gin.Context) {
		if s.limiter == nil || !s.limiter.Enabled() {
			c.Next()
			return
		}

		ctx := c.Request.Context()
		verdict, err := s.limiter.AllowSubmit(ctx, c.ClientIP())
		if err != nil {
			logger.FromContext(ctx).Warn("submit rate limit check failed", zap.Error(err))
			c.Next()
			return
		}
		if !verdict.Allowed {
			logger.FromContext(ctx).Warn("submit rate limit exceeded", zap.String("client_ip", c.ClientIP()))
			c.Header("Retry-After", strconv.Itoa(retryAfterSeconds(verdict.RetryAfter)))
			AbortWithError(c, ErrRateLimited)
			return
		}
		c.Next()
	}
}

func retryAfterSeconds(wait time.Duration) int {
	seconds := int(math.Ceil(wait.Seconds()))
	if seconds < 1 {
		return 1
	}
	return seconds
}
