package provisioning

import (
	"github.com/textlane/textlane/internal/provisioning/service"
	"go.uber.org/fx"
)

var Module = fx.Module("provisioning.service",
	fx.Provide(service.New),
)
