package clock

import (
	"time"

	"go.uber.org/fx"
)

// Clock abstracts time so invite expiry and message timestamps are testable.
type Clock interface {
	Now() time.Time
}

// Module provides the system clock.
var Module = fx.Module("clock",
	fx.Provide(NewSystemClock),
)

type systemClock struct{}

// NewSystemClock returns a Clock backed by time.Now in UTC.
func NewSystemClock() Clock {
	return systemClock{}
}

func (systemClock) Now() time.Time {
	return time.Now().UTC()
}
