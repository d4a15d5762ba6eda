package ratelimit

import (
	"github.com/smallbiznis/relevamientos/internal/survey/domain"
	"go.uber.org/fx"
)

var Module = fx.Module("rate.limit",
	fx.Provide(NewLimiter),
	fx.Provide(func(l *Limiter) domain.ReportLocker { return l }),
)
