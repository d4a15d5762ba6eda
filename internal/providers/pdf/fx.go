package pdf

import (
	"github.com/smallbiznis/relevamientos/internal/survey/domain"
	"go.uber.org/fx"
)

var Module = fx.Module("pdf",
	fx.Provide(New),
	fx.Provide(func(r *Renderer) domain.Renderer { return r }),
)
