package survey

import (
	"github.com/smallbiznis/relevamientos/internal/survey/repository"
	"github.com/smallbiznis/relevamientos/internal/survey/service"
	"go.uber.org/fx"
)

var Module = fx.Module("survey.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.New),
)
