package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/smallbiznis/relevamientos/internal/observability/logger"
	"github.com/smallbiznis/relevamientos/internal/observability/metrics"
	"github.com/smallbiznis/relevamientos/internal/observability/tracing"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/fx"
)

var Module = fx.Module("observability",
	fx.Provide(
		LoadConfig,
		Config.Logger,
		Config.Tracing,
		logger.New,
		tracing.NewProvider,
		func() prometheus.Registerer { return prometheus.DefaultRegisterer },
		metrics.NewHTTPMetrics,
		metrics.NewReportMetrics,
	),
	// the provider installs itself as the otel global when built
	fx.Invoke(func(trace.TracerProvider) {}),
)

func (c Config) Logger() logger.Config {
	return logger.Config{
		ServiceName: c.ServiceName,
		Environment: c.Environment,
		Version:     c.Version,
		Level:       c.LogLevel,
		Format:      c.LogFormat,
		Debug:       c.Debug(),
	}
}

func (c Config) Tracing() tracing.Config {
	return tracing.Config{
		Enabled:          c.OtelEnabled,
		ServiceName:      c.ServiceName,
		ServiceVersion:   c.Version,
		Environment:      c.Environment,
		ExporterEndpoint: c.OtelExporterEndpoint,
		ExporterProtocol: c.OtelExporterProtocol,
		SamplingRatio:    c.OtelSamplingRatio,
	}
}
