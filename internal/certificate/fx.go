package certificate

import (
	"go.uber.org/fx"

	"github.com/sublyhq/subly/internal/certificate/service"
)

var Module = fx.Module("certificate",
	fx.Provide(service.NewService),
)
