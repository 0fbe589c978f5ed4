package main

import (
	"github.com/bwmarrin/snowflake"
	"go.uber.org/fx"

	"github.com/sublyhq/subly/internal/balance"
	"github.com/sublyhq/subly/internal/certificate"
	"github.com/sublyhq/subly/internal/clock"
	"github.com/sublyhq/subly/internal/config"
	"github.com/sublyhq/subly/internal/events"
	"github.com/sublyhq/subly/internal/logger"
	"github.com/sublyhq/subly/internal/migration"
	"github.com/sublyhq/subly/internal/oracle"
	"github.com/sublyhq/subly/internal/payment"
	"github.com/sublyhq/subly/internal/protocol"
	"github.com/sublyhq/subly/internal/provider"
	"github.com/sublyhq/subly/internal/scheduler"
	"github.com/sublyhq/subly/internal/stakepool"
	"github.com/sublyhq/subly/internal/subscription"
	"github.com/sublyhq/subly/internal/vault"
	"github.com/sublyhq/subly/pkg/db"
	"github.com/sublyhq/subly/pkg/redisconn"
)

func main() {
	app := fx.New(
		config.Module,
		logger.Module,
		fx.Provide(RegisterSnowflake),
		db.Module,
		redisconn.Module,
		clock.Module,
		migration.Module,

		protocol.Module,
		vault.Module,
		oracle.Module,
		stakepool.Module,
		balance.Module,
		provider.Module,
		subscription.Module,
		payment.Module,
		events.Module,
		certificate.Module,

		scheduler.Module,
		fx.Invoke(scheduler.Run),
	)
	app.Run()
}

func RegisterSnowflake() *snowflake.Node {
	node, err := snowflake.NewNode(1)
	if err != nil {
		panic(err)
	}
	return node
}
