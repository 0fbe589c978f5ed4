package oracle

import (
	"github.com/sublyhq/subly/internal/oracle/service"
	"go.uber.org/fx"
)

var Module = fx.Module("oracle.service",
	fx.Provide(service.NewService),
)
