package balance

import (
	"go.uber.org/fx"

	"github.com/sublyhq/subly/internal/balance/service"
)

var Module = fx.Module("balance",
	fx.Provide(service.NewService),
)
