package clock

import (
	"time"

	"go.uber.org/fx"
)

// Clock is the time source used by services that stamp records.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time {
	return time.Now()
}

// NewSystem returns a Clock backed by time.Now.
func NewSystem() Clock {
	return systemClock{}
}

var Module = fx.Module("clock",
	fx.Provide(NewSystem),
)
