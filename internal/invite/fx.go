package invite

import (
	"github.com/textlane/textlane/internal/invite/repository"
	"github.com/textlane/textlane/internal/invite/service"
	"go.uber.org/fx"
)

var Module = fx.Module("invite.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.New),
)
