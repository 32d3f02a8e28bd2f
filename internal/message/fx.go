package message

import (
	"github.com/textlane/textlane/internal/message/repository"
	"github.com/textlane/textlane/internal/message/service"
	"go.uber.org/fx"
)

var Module = fx.Module("message.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.New),
)
