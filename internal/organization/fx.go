package organization

import (
	"github.com/textlane/textlane/internal/organization/repository"
	"github.com/textlane/textlane/internal/organization/service"
	"go.uber.org/fx"
)

var Module = fx.Module("organization.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.New),
)
