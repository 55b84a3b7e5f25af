package member

import (
	cfgpkg "github.com/fatflowers/gympass/pkg/config"
	"github.com/redis/go-redis/v9"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// NewStore returns the gorm store, fronted by redis when a client is configured.
func NewStore(cfg *cfgpkg.Config, db *gorm.DB, rdb *redis.Client, log *zap.SugaredLogger) Store {
	base := NewGormStore(db)
	if rdb == nil {
		return base
	}
	log.Infow("member cache enabled", "ttl", cfg.Redis.TTL)
	return NewCachedStore(base, rdb, cfg.Redis.TTL, log)
}

var Module = fx.Options(
	fx.Provide(
		NewStore,
		NewLocker,
		NewNotifier,
		NewHub,
		NewService,
		fx.Annotate(
			func(h *Hub) Observer { return h },
			fx.ResultTags(`group:"member_observers"`),
		),
	),
)
