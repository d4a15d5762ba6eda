package observability

import (
	"testing"

	"github.com/smallbiznis/relevamientos/internal/config"
	"github.com/stretchr/testify/assert"
)

func TestLoadConfigDevelopmentDefaults(t *testing.T) {
	cfg := LoadConfig(config.Config{Environment: "development", OtelSamplingRatio: -1})

	assert.Equal(t, "relevamientos", cfg.ServiceName)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, "console", cfg.LogFormat)
	assert.Equal(t, 1.0, cfg.OtelSamplingRatio)
	assert.True(t, cfg.Debug())
}

func TestLoadConfigProductionDefaults(t *testing.T) {
	cfg := LoadConfig(config.Config{AppName: " informes ", Environment: "production", OtelSamplingRatio: -1})

	assert.Equal(t, "informes", cfg.ServiceName)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, "json", cfg.LogFormat)
	assert.Equal(t, 0.1, cfg.OtelSamplingRatio)
	assert.False(t, cfg.Debug())
}

func TestLoadConfigKeepsExplicitValues(t *testing.T) {
	cfg := LoadConfig(config.Config{
		Environment:       "production",
		LogLevel:          "WARN",
		LogFormat:         "console",
		OTLPProtocol:      "HTTP/protobuf",
		OtelSamplingRatio: 4,
	})

	assert.Equal(t, "warn", cfg.LogLevel)
	assert.Equal(t, "console", cfg.LogFormat)
	assert.Equal(t, "http/protobuf", cfg.OtelExporterProtocol)
	assert.Equal(t, 1.0, cfg.OtelSamplingRatio)
}
