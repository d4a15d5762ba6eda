package db

import (
	"time"

	"github.com/smallbiznis/relevamientos/internal/config"
)

type Config struct {
	Type            string
	Path            string
	Host            string
	Port            string
	Name            string
	User            string
	Password        string
	SSLMode         string
	MaxIdleConn     int
	MaxOpenConn     int
	ConnMaxLifetime time.Duration
	MetricsEnabled  bool
	SlowQuery       time.Duration
	LogQueries      bool
}

func FromAppConfig(cfg config.Config) Config {
	return Config{
		Type:            cfg.DBType,
		Path:            cfg.DBPath,
		Host:            cfg.DBHost,
		Port:            cfg.DBPort,
		Name:            cfg.DBName,
		User:            cfg.DBUser,
		Password:        cfg.DBPassword,
		SSLMode:         cfg.DBSSLMode,
		MaxIdleConn:     cfg.DBMaxIdleConn,
		MaxOpenConn:     cfg.DBMaxOpenConn,
		ConnMaxLifetime: 30 * time.Minute,
		MetricsEnabled:  cfg.DBMetricsEnabled,
		SlowQuery:       cfg.DBSlowQuery,
		LogQueries:      cfg.DBLogQueries,
	}
}

// IsSQLite reports whether the configured engine is a single local file.
func (c Config) IsSQLite() bool {
	return c.Type == TypeSQLite || c.Type == TypeSQLite3
}
