package observability

import (
	"strings"

	"github.com/smallbiznis/relevamientos/internal/config"
)

// Config holds the logging and tracing settings of the service.
type Config struct {
	ServiceName string
	Environment string
	Version     string

	LogLevel  string
	LogFormat string

	OtelEnabled          bool
	OtelExporterEndpoint string
	OtelExporterProtocol string
	OtelSamplingRatio    float64
}

// LoadConfig fills the unset knobs per environment: development logs debug
// lines to the console and keeps every trace, anything else logs info as
// JSON and keeps one trace in ten.
func LoadConfig(cfg config.Config) Config {
	dev := isDevEnv(cfg.Environment)

	out := Config{
		ServiceName:          strings.TrimSpace(cfg.AppName),
		Environment:          strings.TrimSpace(cfg.Environment),
		Version:              strings.TrimSpace(cfg.AppVersion),
		LogLevel:             strings.ToLower(strings.TrimSpace(cfg.LogLevel)),
		LogFormat:            strings.ToLower(strings.TrimSpace(cfg.LogFormat)),
		OtelEnabled:          cfg.OtelEnabled,
		OtelExporterEndpoint: strings.TrimSpace(cfg.OTLPEndpoint),
		OtelExporterProtocol: strings.ToLower(strings.TrimSpace(cfg.OTLPProtocol)),
		OtelSamplingRatio:    cfg.OtelSamplingRatio,
	}
	if out.ServiceName == "" {
		out.ServiceName = "relevamientos"
	}
	if out.LogLevel == "" {
		out.LogLevel = pick(dev, "debug", "info")
	}
	if out.LogFormat == "" {
		out.LogFormat = pick(dev, "console", "json")
	}
	switch {
	case out.OtelSamplingRatio < 0:
		out.OtelSamplingRatio = 0.1
		if dev {
			out.OtelSamplingRatio = 1
		}
	case out.OtelSamplingRatio > 1:
		out.OtelSamplingRatio = 1
	}
	return out
}

// Debug turns on stack traces in logs and in the request logger.
func (c Config) Debug() bool {
	return c.LogLevel == "debug" || isDevEnv(c.Environment)
}

func isDevEnv(env string) bool {
	switch strings.ToLower(strings.TrimSpace(env)) {
	case "dev", "development", "local", "test":
		return true
	default:
		return false
	}
}

func pick(cond bool, yes, no string) string {
	if cond {
		return yes
	}
	return no
}
