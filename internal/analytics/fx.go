package analytics

import (
	redis "github.com/redis/go-redis/v9"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

type Params struct {
	fx.In

	Log   *zap.Logger
	Redis *redis.Client `optional:"true"`
}

func Provide(p Params) *Tracker {
	return NewTracker(p.Log, p.Redis, 1000)
}

var Module = fx.Module("analytics",
	fx.Provide(Provide),
)
