package events

import (
	"go.uber.org/fx"

	"github.com/sublyhq/subly/internal/events/service"
)

var Module = fx.Module("events",
	fx.Provide(service.NewOutbox),
)
