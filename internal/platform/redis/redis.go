// Package redis provides the optional cache client.
package redis

import (
	"context"
	"time"

	cfgpkg "github.com/fatflowers/gympass/pkg/config"
	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// NewClient returns nil when no address is configured; consumers treat a
// nil client as "cache disabled".
func NewClient(lc fx.Lifecycle, cfg *cfgpkg.Config, l *zap.SugaredLogger) *goredis.Client {
	if cfg.Redis.Addr == "" {
		l.Infow("redis not configured, member cache disabled")
		return nil
	}
	rdb := goredis.NewClient(&goredis.Options{
		Addr:         cfg.Redis.Addr,
		Password:     cfg.Redis.Password,
		DB:           cfg.Redis.DB,
		DialTimeout:  2 * time.Second,
		ReadTimeout:  500 * time.Millisecond,
		WriteTimeout: 500 * time.Millisecond,
	})
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			// the cache falls through on errors, so an unreachable redis is not fatal
			if err := rdb.Ping(ctx).Err(); err != nil {
				l.Warnw("redis ping failed", "addr", cfg.Redis.Addr, "err", err)
				return nil
			}
			l.Infow("connected to redis", "addr", cfg.Redis.Addr)
			return nil
		},
		OnStop: func(ctx context.Context) error {
			l.Infow("closing redis client")
			return rdb.Close()
		},
	})
	return rdb
}

var Module = fx.Options(
	fx.Provide(NewClient),
)
