package contact

import (
	"github.com/textlane/textlane/internal/contact/repository"
	"github.com/textlane/textlane/internal/contact/service"
	"go.uber.org/fx"
)

var Module = fx.Module("contact.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.New),
)
