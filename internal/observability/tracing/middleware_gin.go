package tracing

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	obscontext "github.com/smallbiznis/relevamientos/internal/observability/context"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
)

// MiddlewareConfig names request spans after the operation a route serves.
type MiddlewareConfig struct {
	// Operations maps a gin route to its operation name. Routes that share
	// an operation share a span name.
	Operations map[string]string
	// Skip lists routes that get no span at all.
	Skip []string
}

// GinMiddleware opens a server span per request. Routes without an
// operation are named after method and route.
func GinMiddleware(cfg MiddlewareConfig) gin.HandlerFunc {
	tracer := Tracer("http")
	skip := make(map[string]struct{}, len(cfg.Skip))
	for _, route := range cfg.Skip {
		skip[route] = struct{}{}
	}

	return func(c *gin.Context) {
		route := c.FullPath()
		if _, ok := skip[route]; ok {
			c.Next()
			return
		}
		if route == "" {
			route = "unknown"
		}

		name, ok := cfg.Operations[route]
		if !ok {
			name = "HTTP " + strings.ToUpper(c.Request.Method) + " " + route
		}

		ctx := ExtractContext(c.Request.Context(), propagation.HeaderCarrier(c.Request.Header))
		ctx, span := tracer.Start(ctx, name, trace.WithSpanKind(trace.SpanKindServer))
		defer span.End()

		if requestID := obscontext.RequestIDFromContext(ctx); requestID != "" {
			span.SetAttributes(attribute.String("request_id", requestID))
		}

		c.Request = c.Request.WithContext(ctx)
		start := time.Now()
		c.Next()

		status := c.Writer.Status()
		span.SetAttributes(SafeAttributes(
			attribute.String("http.method", c.Request.Method),
			attribute.String("http.route", route),
			attribute.Int("http.status_code", status),
			attribute.Int64("http.server_duration_ms", time.Since(start).Milliseconds()),
		)...)

		if id, err := strconv.ParseInt(c.GetString("survey_id"), 10, 64); err == nil && id > 0 {
			span.SetAttributes(attribute.Int64("survey.id", id))
		}

		if status >= http.StatusInternalServerError {
			if lastErr := c.Errors.Last(); lastErr != nil {
				span.RecordError(SafeError(lastErr.Err))
			}
			span.SetStatus(codes.Error, http.StatusText(status))
		}
	}
}
