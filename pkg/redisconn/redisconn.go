// Package redisconn builds the shared redis client. Redis is optional;
// without it the oracle cache and the scheduler job lock degrade to
// single-instance behavior.
package redisconn

import (
	"strings"

	redis "github.com/redis/go-redis/v9"
	"go.uber.org/fx"

	"github.com/sublyhq/subly/internal/config"
)

// New returns a client for the configured address, or nil when redis is
// not configured.
func New(cfg config.Config) *redis.Client {
	addr := strings.TrimSpace(cfg.RedisAddr)
	if addr == "" {
		return nil
	}
	return redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: strings.TrimSpace(cfg.RedisPassword),
		DB:       cfg.RedisDB,
	})
}

var Module = fx.Module("redis",
	fx.Provide(New),
)
