package logger

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	obscontext "github.com/smallbiznis/relevamientos/internal/observability/context"
	"go.uber.org/zap"
)

// MiddlewareConfig controls request logging.
type MiddlewareConfig struct {
	Debug bool
	// Operations maps a gin route to the survey operation it serves.
	Operations      map[string]string
	ErrorClassifier func(err error) (string, string)
}

// GinMiddleware puts request and correlation ids on the request context and
// logs one line per request once the handlers are done. Handlers that work
// on a survey set "survey_id" on the gin context.
func GinMiddleware(cfg MiddlewareConfig) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		ctx := obscontext.WithRequestID(c.Request.Context(), requestIDFor(c))
		ctx, _ = obscontext.EnsureCorrelationID(ctx)
		c.Request = c.Request.WithContext(ctx)

		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unknown"
		}
		status := c.Writer.Status()
		fields := []zap.Field{
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.String("route", route),
			zap.Int("status", status),
			zap.Int64("duration_ms", time.Since(start).Milliseconds()),
			zap.Int("bytes_out", max(c.Writer.Size(), 0)),
		}
		if op, ok := cfg.Operations[route]; ok {
			fields = append(fields, zap.String("operation", op))
		}
		if id, err := strconv.ParseInt(c.GetString("survey_id"), 10, 64); err == nil && id > 0 {
			fields = append(fields, zap.Int64("survey_id", id))
		}
		if lastErr := c.Errors.Last(); lastErr != nil {
			if cfg.ErrorClassifier != nil {
				errorType, errorCode := cfg.ErrorClassifier(lastErr.Err)
				fields = append(fields,
					zap.String("error_type", errorType),
					zap.String("error_code", errorCode),
				)
			}
			if status >= http.StatusInternalServerError {
				fields = append(fields, zap.Error(lastErr.Err))
				if cfg.Debug {
					fields = append(fields, zap.Stack("stack"))
				}
			}
		}

		// the tracing middleware may have replaced the request context
		log := FromContext(c.Request.Context())
		switch {
		case route == "/health" || route == "/metrics":
			log.Debug("http_request", fields...)
		case status >= http.StatusInternalServerError:
			log.Error("http_request", fields...)
		case status == http.StatusTooManyRequests:
			log.Warn("http_request", fields...)
		default:
			log.Info("http_request", fields...)
		}
	}
}

func requestIDFor(c *gin.Context) string {
	requestID := strings.TrimSpace(c.GetHeader("X-Request-Id"))
	if requestID == "" {
		requestID = uuid.NewString()
	}
	c.Set("request_id", requestID)
	c.Header("X-Request-Id", requestID)
	return requestID
}
