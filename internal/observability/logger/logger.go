package logger

import (
	"context"
	"fmt"
	"strings"
	"time"

	obscontext "github.com/smallbiznis/relevamientos/internal/observability/context"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config configures the process logger.
type Config struct {
	ServiceName string
	Environment string
	Version     string
	Level       string
	Format      string
	// Debug adds callers and error stacks and turns sampling off.
	Debug bool
}

// New builds the process logger and installs it as the zap global. Outside
// debug, repeated lines are sampled per second.
func New(lc fx.Lifecycle, cfg Config) (*zap.Logger, error) {
	levelText := strings.TrimSpace(cfg.Level)
	if levelText == "" {
		levelText = "info"
	}
	level, err := zapcore.ParseLevel(levelText)
	if err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", levelText, err)
	}

	zapCfg := zap.NewProductionConfig()
	if normalizeFormat(cfg.Format) == "console" {
		zapCfg = zap.NewDevelopmentConfig()
		zapCfg.Development = false
	}
	zapCfg.Level = zap.NewAtomicLevelAt(level)
	zapCfg.EncoderConfig.TimeKey = "ts"
	zapCfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	zapCfg.OutputPaths = []string{"stdout"}
	zapCfg.ErrorOutputPaths = []string{"stderr"}
	zapCfg.Sampling = nil
	zapCfg.DisableCaller = !cfg.Debug
	zapCfg.DisableStacktrace = true

	serviceName := strings.TrimSpace(cfg.ServiceName)
	if serviceName == "" {
		serviceName = "relevamientos"
	}
	options := []zap.Option{zap.Fields(
		zap.String("service", serviceName),
		zap.String("env", strings.TrimSpace(cfg.Environment)),
		zap.String("version", strings.TrimSpace(cfg.Version)),
	)}
	if cfg.Debug {
		options = append(options, zap.AddStacktrace(zapcore.ErrorLevel))
	} else {
		options = append(options, zap.WrapCore(func(core zapcore.Core) zapcore.Core {
			return zapcore.NewSamplerWithOptions(core, time.Second, 100, 100)
		}))
	}

	log, err := zapCfg.Build(options...)
	if err != nil {
		return nil, err
	}
	zap.ReplaceGlobals(log)

	if lc != nil {
		lc.Append(fx.Hook{
			OnStop: func(context.Context) error {
				_ = log.Sync()
				return nil
			},
		})
	}
	return log, nil
}

func normalizeFormat(format string) string {
	if strings.EqualFold(strings.TrimSpace(format), "console") {
		return "console"
	}
	return "json"
}

// FromContext returns the global logger with the ids carried by ctx.
func FromContext(ctx context.Context) *zap.Logger {
	return WithContext(ctx, zap.L())
}

// WithContext adds the request, correlation, trace and survey ids found on
// ctx. Absent ids add no field.
func WithContext(ctx context.Context, base *zap.Logger) *zap.Logger {
	if ctx == nil || base == nil {
		return base
	}

	var fields []zap.Field
	if id := obscontext.RequestIDFromContext(ctx); id != "" {
		fields = append(fields, zap.String("request_id", id))
	}
	if id := obscontext.CorrelationIDFromContext(ctx); id != "" {
		fields = append(fields, zap.String("correlation_id", id))
	}
	if sc := trace.SpanContextFromContext(ctx); sc.IsValid() {
		fields = append(fields,
			zap.String("trace_id", sc.TraceID().String()),
			zap.String("span_id", sc.SpanID().String()),
		)
	}
	if id := obscontext.SurveyIDFromContext(ctx); id > 0 {
		fields = append(fields, zap.Int64("survey_id", id))
	}

	if len(fields) == 0 {
		return base
	}
	return base.With(fields...)
}
