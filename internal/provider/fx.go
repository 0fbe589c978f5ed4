package provider

import (
	"go.uber.org/fx"

	"github.com/sublyhq/subly/internal/provider/service"
)

var Module = fx.Module("provider",
	fx.Provide(service.NewService),
)
