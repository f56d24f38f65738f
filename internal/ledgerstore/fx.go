package ledgerstore

import (
	"github.com/brushline/leadrail/internal/config"
	"github.com/bwmarrin/snowflake"
	redis "github.com/redis/go-redis/v9"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	Config config.Config
	DB     *gorm.DB
	Redis  *redis.Client `optional:"true"`
	GenID  *snowflake.Node
	Log    *zap.Logger
}

// Provide selects the store backend from configuration. The relational log is
// the default; the redis backend requires a configured client.
func Provide(p Params) (Store, error) {
	if p.Config.StoreBackend == config.StoreBackendRedis {
		if p.Redis == nil {
			p.Log.Warn("redis store backend requested but redis is not configured, falling back to gorm")
			return NewGormStore(p.DB, p.GenID), nil
		}
		return NewRedisStore(p.Redis, p.GenID), nil
	}
	return NewGormStore(p.DB, p.GenID), nil
}

var Module = fx.Module("ledgerstore",
	fx.Provide(Provide),
)
