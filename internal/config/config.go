package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/fx"
)

// DefaultSecretKey signs flash cookies when SECRET_KEY is not set.
// Only meant for local development.
const DefaultSecretKey = "dev-secret-change-me"

// Config holds application configuration.
type Config struct {
	AppName     string
	AppVersion  string
	Environment string
	HTTPAddr    string
	SecretKey   string
	Timezone    string

	LogLevel          string
	LogFormat         string
	OtelEnabled       bool
	OTLPEndpoint      string
	OTLPProtocol      string
	OtelSamplingRatio float64

	DBType           string
	DBPath           string
	DBHost           string
	DBPort           string
	DBName           string
	DBUser           string
	DBPassword       string
	DBSSLMode        string
	DBMaxIdleConn    int
	DBMaxOpenConn    int
	DBMetricsEnabled bool
	DBSlowQuery      time.Duration
	DBLogQueries     bool

	ReportDir        string
	ReportConfigPath string

	RedisAddr     string
	RedisPassword string
	RedisDB       int
	SubmitRate    float64
	SubmitBurst   int
}

var Module = fx.Module("config",
	fx.Provide(Load),
	fx.Provide(NewReportConfigHolder),
)

// Load loads configuration from environment variables and .env file.
func Load() Config {
	_ = godotenv.Load()

	return Config{
		AppName:           getenv("APP_SERVICE", "relevamientos"),
		AppVersion:        getenv("APP_VERSION", "0.1.0"),
		Environment:       getenv("ENVIRONMENT", "development"),
		HTTPAddr:          getenv("HTTP_ADDR", ":8080"),
		SecretKey:         getenv("SECRET_KEY", DefaultSecretKey),
		Timezone:          getenv("APP_TIMEZONE", "Local"),
		LogLevel:          strings.ToLower(strings.TrimSpace(getenv("LOG_LEVEL", ""))),
		LogFormat:         strings.ToLower(strings.TrimSpace(getenv("LOG_FORMAT", ""))),
		OtelEnabled:       getenvBool("OTEL_ENABLED", false),
		OTLPEndpoint:      getenv("OTEL_EXPORTER_OTLP_ENDPOINT", getenv("OTLP_ENDPOINT", "localhost:4317")),
		OTLPProtocol:      getenv("OTEL_EXPORTER_OTLP_TRACES_PROTOCOL", getenv("OTEL_EXPORTER_OTLP_PROTOCOL", "grpc")),
		OtelSamplingRatio: getenvFloat("OTEL_SAMPLING_RATIO", -1),
		DBType:            strings.ToLower(getenv("DATABASE_TYPE", "sqlite")),
		DBPath:            getenv("DATABASE_PATH", "relevamientos.db"),
		DBHost:            getenv("DATABASE_HOST", "localhost"),
		DBPort:            getenv("DATABASE_PORT", "5432"),
		DBName:            getenv("DATABASE_NAME", "relevamientos"),
		DBUser:            getenv("DATABASE_USER", "postgres"),
		DBPassword:        getenv("DATABASE_PASSWORD", ""),
		DBSSLMode:         getenv("DATABASE_SSLMODE", "disable"),
		DBMaxIdleConn:     getenvInt("DATABASE_MAX_IDLE_CONN", 2),
		DBMaxOpenConn:     getenvInt("DATABASE_MAX_OPEN_CONN", 10),
		DBMetricsEnabled:  getenvBool("DB_METRICS_ENABLED", true),
		DBSlowQuery:       time.Duration(getenvInt("DB_SLOW_QUERY_MS", 200)) * time.Millisecond,
		DBLogQueries:      getenvBool("DB_LOG_QUERIES", false),
		ReportDir:         getenv("REPORT_DIR", "informes"),
		ReportConfigPath:  strings.TrimSpace(getenv("REPORT_CONFIG", "")),
		RedisAddr:         strings.TrimSpace(getenv("REDIS_ADDR", "")),
		RedisPassword:     getenv("REDIS_PASSWORD", ""),
		RedisDB:           getenvInt("REDIS_DB", 0),
		SubmitRate:        getenvFloat("SUBMIT_RATE", 1),
		SubmitBurst:       getenvInt("SUBMIT_BURST", 10),
	}
}

func (c Config) IsProduction() bool {
	return strings.EqualFold(strings.TrimSpace(c.Environment), "production")
}

// UsesDefaultSecret reports whether flash cookies are signed with the development key.
func (c Config) UsesDefaultSecret() bool {
	return c.SecretKey == DefaultSecretKey
}

// Location resolves Timezone, falling back to the process local zone.
func (c Config) Location() *time.Location {
	name := strings.TrimSpace(c.Timezone)
	if name == "" || strings.EqualFold(name, "local") {
		return time.Local
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return time.Local
	}
	return loc
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getenvBool(key string, def bool) bool {
	value := strings.ToLower(strings.TrimSpace(os.Getenv(key)))
	if value == "" {
		return def
	}
	switch value {
	case "1", "true", "yes", "y", "on":
		return true
	case "0", "false", "no", "n", "off":
		return false
	default:
		return def
	}
}

func getenvInt(key string, def int) int {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return def
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return def
	}
	return parsed
}

func getenvFloat(key string, def float64) float64 {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return def
	}
	parsed, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return def
	}
	return parsed
}
