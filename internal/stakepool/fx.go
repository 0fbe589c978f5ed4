package stakepool

import (
	"github.com/sublyhq/subly/internal/stakepool/service"
	"go.uber.org/fx"
)

var Module = fx.Module("stakepool.adapter",
	fx.Provide(service.NewAdapter),
)
