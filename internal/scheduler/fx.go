package scheduler

import (
	"context"

	redis "github.com/redis/go-redis/v9"
	"go.uber.org/fx"
)

type lockerParams struct {
	fx.In

	Redis *redis.Client `optional:"true"`
}

func provideLocker(p lockerParams) *Locker {
	return NewLocker(p.Redis)
}

var Module = fx.Module("scheduler",
	fx.Provide(ProvideConfig),
	fx.Provide(provideLocker),
	fx.Provide(New),
)

// Run starts the scheduler loop under the fx lifecycle.
func Run(lc fx.Lifecycle, sched *Scheduler) {
	loopCtx, cancel := context.WithCancel(context.Background())

	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			go sched.RunForever(loopCtx)
			return nil
		},
		OnStop: func(context.Context) error {
			cancel()
			return nil
		},
	})
}
