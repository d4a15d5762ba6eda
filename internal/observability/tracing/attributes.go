package tracing

import (
	"context"
	"errors"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/propagation"
)

var allowedAttributeKeys = map[attribute.Key]struct{}{
	"http.method":             {},
	"http.route":              {},
	"http.status_code":        {},
	"http.server_duration_ms": {},
	"request_id":              {},
	"survey.id":               {},
	"report.filename":         {},
	"report.pages":            {},
	"report.reason":           {},
}

// SafeAttributes drops attributes that could carry form input.
func SafeAttributes(attrs ...attribute.KeyValue) []attribute.KeyValue {
	out := make([]attribute.KeyValue, 0, len(attrs))
	for _, attr := range attrs {
		if _, ok := allowedAttributeKeys[attr.Key]; ok {
			out = append(out, attr)
		}
	}
	return out
}

// SafeError reduces an error to its message so wrapped values are not exported.
func SafeError(err error) error {
	if err == nil {
		return nil
	}
	return errors.New(err.Error())
}

// ExtractContext reads remote span context and baggage from carrier.
func ExtractContext(ctx context.Context, carrier propagation.TextMapCarrier) context.Context {
	return otel.GetTextMapPropagator().Extract(ctx, carrier)
}
