package main

import (
	"context"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/smallbiznis/relevamientos/internal/clock"
	"github.com/smallbiznis/relevamientos/internal/config"
	"github.com/smallbiznis/relevamientos/internal/migration"
	"github.com/smallbiznis/relevamientos/internal/observability"
	"github.com/smallbiznis/relevamientos/pkg/db"
	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"
	"go.uber.org/zap"
)

const oneShotTimeout = 2 * time.Minute

func loadEnvFile(path string) error {
	if path == "" {
		return nil
	}
	return godotenv.Load(path)
}

// coreModules are shared by every command.
func coreModules() fx.Option {
	return fx.Options(
		config.Module,
		observability.Module,
		db.Module,
		migration.Module,
		clock.Module,
		fx.WithLogger(func(log *zap.Logger) fxevent.Logger {
			return &fxevent.ZapLogger{Logger: log.Named("fx")}
		}),
	)
}

func configureRuntime(cfg config.Config, log *zap.Logger) {
	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}
	if cfg.UsesDefaultSecret() && cfg.IsProduction() {
		log.Warn("SECRET_KEY not set, flash cookies are signed with the development key")
	}
}

// runOnce starts app, runs fn and stops app again.
func runOnce(app *fx.App, fn func(ctx context.Context) error) error {
	if err := app.Err(); err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), oneShotTimeout)
	defer cancel()

	if err := app.Start(ctx); err != nil {
		return err
	}
	runErr := fn(ctx)

	stopCtx, stopCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer stopCancel()
	if err := app.Stop(stopCtx); err != nil && runErr == nil {
		return err
	}
	return runErr
}
