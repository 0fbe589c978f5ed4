package protocol

import (
	"github.com/sublyhq/subly/internal/protocol/service"
	"go.uber.org/fx"
)

var Module = fx.Module("protocol.service",
	fx.Provide(service.NewService),
)
