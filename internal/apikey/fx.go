package apikey

import (
	"github.com/textlane/textlane/internal/apikey/repository"
	"github.com/textlane/textlane/internal/apikey/service"
	"go.uber.org/fx"
)

var Module = fx.Module("apikey.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.New),
)
