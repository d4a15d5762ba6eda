package db

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/smallbiznis/relevamientos/internal/config"
	obslogger "github.com/smallbiznis/relevamientos/internal/observability/logger"
	"github.com/uptrace/opentelemetry-go-extra/otelgorm"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
	gormprom "gorm.io/plugin/prometheus"
)

var Module = fx.Module("db",
	fx.Provide(provideConfig),
	fx.Provide(New),
)

func provideConfig(cfg config.Config) Config {
	return FromAppConfig(cfg)
}

// New opens the configured database and closes it when the app stops.
func New(lc fx.Lifecycle, cfg Config, log *zap.Logger) (*gorm.DB, error) {
	if cfg.IsSQLite() {
		if dir := filepath.Dir(sqlitePath(cfg.Path)); dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("create database directory: %w", err)
			}
		}
	}

	dialector, err := Dialect(cfg)
	if err != nil {
		return nil, err
	}

	conn, err := gorm.Open(dialector, &gorm.Config{
		Logger: obslogger.NewQueryLogger(obslogger.QueryLoggerConfig{
			SlowThreshold: cfg.SlowQuery,
			Statements:    cfg.LogQueries,
		}),
	})
	if err != nil {
		return nil, fmt.Errorf("open %s database: %w", cfg.Type, err)
	}

	if err := conn.Use(otelgorm.NewPlugin()); err != nil {
		return nil, fmt.Errorf("register tracing plugin: %w", err)
	}
	if cfg.MetricsEnabled {
		if err := conn.Use(gormprom.New(gormprom.Config{
			DBName:          cfg.Type,
			RefreshInterval: 15,
		})); err != nil {
			return nil, fmt.Errorf("register metrics plugin: %w", err)
		}
	}

	sqlDB, err := conn.DB()
	if err != nil {
		return nil, err
	}
	if cfg.MaxIdleConn > 0 {
		sqlDB.SetMaxIdleConns(cfg.MaxIdleConn)
	}
	if cfg.MaxOpenConn > 0 {
		sqlDB.SetMaxOpenConns(cfg.MaxOpenConn)
	}
	if cfg.ConnMaxLifetime > 0 {
		sqlDB.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}

	if lc != nil {
		lc.Append(fx.Hook{
			OnStop: func(ctx context.Context) error {
				_ = ctx
				return sqlDB.Close()
			},
		})
	}

	if log != nil {
		log.Info("database opened", zap.String("type", cfg.Type))
	}
	return conn, nil
}
