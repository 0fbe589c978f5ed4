package vault

import (
	"github.com/sublyhq/subly/internal/vault/service"
	"go.uber.org/fx"
)

var Module = fx.Module("vault.service",
	fx.Provide(service.NewService),
)
