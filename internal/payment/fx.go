package payment

import (
	"go.uber.org/fx"

	"github.com/sublyhq/subly/internal/payment/service"
)

var Module = fx.Module("payment",
	fx.Provide(service.NewService),
)
