// Command subly runs the API server and the payment scheduler in a
// single process, for local development and small deployments.
package main

import (
	"github.com/bwmarrin/snowflake"
	"go.uber.org/fx"

	"github.com/sublyhq/subly/internal/clock"
	"github.com/sublyhq/subly/internal/config"
	"github.com/sublyhq/subly/internal/logger"
	"github.com/sublyhq/subly/internal/migration"
	"github.com/sublyhq/subly/internal/scheduler"
	"github.com/sublyhq/subly/internal/server"
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

		server.Module,

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
