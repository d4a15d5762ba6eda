package context

import (
	"context"

	"github.com/oklog/ulid/v2"
)

type requestIDKey struct{}
type correlationIDKey struct{}

// WithRequestID stores the inbound request id.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	if requestID == "" {
		return ctx
	}
	return context.WithValue(ctx, requestIDKey{}, requestID)
}

func RequestIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if v, ok := ctx.Value(requestIDKey{}).(string); ok {
		return v
	}
	return ""
}

// EnsureCorrelationID guarantees a correlation id on the context, generating one when missing.
func EnsureCorrelationID(ctx context.Context) (context.Context, string) {
	if cid := CorrelationIDFromContext(ctx); cid != "" {
		return ctx, cid
	}
	cid := ulid.Make().String()
	return context.WithValue(ctx, correlationIDKey{}, cid), cid
}

func CorrelationIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if v, ok := ctx.Value(correlationIDKey{}).(string); ok {
		return v
	}
	return ""
}

type surveyIDKey struct{}

// WithSurveyID tags ctx with the survey being worked on so query and request
// logs can be joined on it.
func WithSurveyID(ctx context.Context, surveyID int64) context.Context {
	if surveyID <= 0 {
		return ctx
	}
	return context.WithValue(ctx, surveyIDKey{}, surveyID)
}

// SurveyIDFromContext returns 0 when ctx carries no survey.
func SurveyIDFromContext(ctx context.Context) int64 {
	if ctx == nil {
		return 0
	}
	if v, ok := ctx.Value(surveyIDKey{}).(int64); ok {
		return v
	}
	return 0
}
