package bootstrap

import (
	"github.com/redis/go-redis/v9"
	"github.com/rtr-labs/repaircam/internal/session"
	"github.com/rtr-labs/repaircam/internal/vision"
	"go.uber.org/fx"
	"gorm.io/gorm"
)

func ProvideSessionStore(db *gorm.DB) *session.Store {
	return session.NewStore(db)
}

func ProvideSessionMetrics(redisClient *redis.Client) *session.Metrics {
	return session.NewMetrics(redisClient)
}

func ProvideFrameStore(cfg *Config, redisClient *redis.Client) *vision.Store {
	return vision.NewStore(redisClient, cfg.FrameTTL)
}

func RunMigrations(sessionStore *session.Store) error {
	return sessionStore.Migrate()
}

var StoresModule = fx.Options(
	fx.Provide(
		ProvideSessionStore,
		ProvideSessionMetrics,
		ProvideFrameStore,
	),
	fx.Invoke(RunMigrations),
)
