package user

import (
	"github.com/textlane/textlane/internal/user/repository"
	"github.com/textlane/textlane/internal/user/service"
	"go.uber.org/fx"
)

var Module = fx.Module("user.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.New),
)
