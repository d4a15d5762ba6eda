package ratelimit

import (
	"context"
	"errors"
	"strings"
	"time"

	redis "github.com/redis/go-redis/v9"
	"github.com/smallbiznis/relevamientos/internal/config"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

const (
	keySubmitClient = "relevamientos:submit:%s"
	keyReportLock   = "relevamientos:report:lock:%d"

	reportLockTTL  = 30 * time.Second
	reportLockWait = 5 * time.Second
	reportLockPoll = 100 * time.Millisecond
)

// Limiter throttles form submissions per client and serializes report
// regeneration across instances. A nil Limiter allows everything.
type Limiter struct {
	client  *redis.Client
	submit  *redis.Script
	release *redis.Script
	log     *zap.Logger

	submitRate  float64
	submitBurst int
}

// NewLimiter returns nil when no redis address is configured.
func NewLimiter(lc fx.Lifecycle, cfg config.Config, log *zap.Logger) (*Limiter, error) {
	addr := strings.TrimSpace(cfg.RedisAddr)
	if addr == "" {
		return nil, nil
	}
	if cfg.SubmitRate <= 0 || cfg.SubmitBurst <= 0 {
		return nil, errors.New("submit rate limit must be positive")
	}

	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: strings.TrimSpace(cfg.RedisPassword),
		DB:       cfg.RedisDB,
	})
	l := newLimiter(client, cfg.SubmitRate, cfg.SubmitBurst, log)

	if lc != nil {
		lc.Append(fx.Hook{
			OnStart: func(ctx context.Context) error {
				if err := client.Ping(ctx).Err(); err != nil {
					l.log.Warn("redis unreachable, limits fail open", zap.String("addr", addr), zap.Error(err))
				}
				return nil
			},
			OnStop: func(context.Context) error {
				return client.Close()
			},
		})
	}
	return l, nil
}

func newLimiter(client *redis.Client, rate float64, burst int, log *zap.Logger) *Limiter {
	if log == nil {
		log = zap.NewNop()
	}
	return &Limiter{
		client:      client,
		submit:      redis.NewScript(submitScript),
		release:     redis.NewScript(releaseScript),
		log:         log.Named("ratelimit"),
		submitRate:  rate,
		submitBurst: burst,
	}
}

func (l *Limiter) Enabled() bool {
	return l != nil && l.client != nil
}
