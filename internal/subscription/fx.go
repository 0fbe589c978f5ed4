package subscription

import (
	"go.uber.org/fx"

	"github.com/sublyhq/subly/internal/subscription/service"
)

var Module = fx.Module("subscription",
	fx.Provide(service.NewService),
)
