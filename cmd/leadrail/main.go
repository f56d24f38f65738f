package main

import (
	"context"

	"github.com/brushline/leadrail/internal/analytics"
	"github.com/brushline/leadrail/internal/billing"
	"github.com/brushline/leadrail/internal/buyer"
	"github.com/brushline/leadrail/internal/clock"
	"github.com/brushline/leadrail/internal/config"
	"github.com/brushline/leadrail/internal/delivery"
	"github.com/brushline/leadrail/internal/drip"
	"github.com/brushline/leadrail/internal/lead"
	"github.com/brushline/leadrail/internal/ledgerstore"
	"github.com/brushline/leadrail/internal/logger"
	"github.com/brushline/leadrail/internal/migration"
	"github.com/brushline/leadrail/internal/observability"
	"github.com/brushline/leadrail/internal/providers/email"
	"github.com/brushline/leadrail/internal/ratelimit"
	"github.com/brushline/leadrail/internal/routing"
	"github.com/brushline/leadrail/internal/scheduler"
	"github.com/brushline/leadrail/internal/server"
	"github.com/brushline/leadrail/pkg/db"
	"github.com/bwmarrin/snowflake"
	redis "github.com/redis/go-redis/v9"
	"go.uber.org/fx"
)

func main() {
	app := fx.New(
		// Core infrastructure
		config.Module,
		logger.Module,
		clock.Module,
		fx.Provide(RegisterSnowflake),
		fx.Provide(RegisterRedis),
		db.Module,
		migration.Module,
		ledgerstore.Module,
		observability.Module,
		analytics.Module,
		ratelimit.Module,
		email.Module,

		// Lead pipeline domains
		buyer.Module,
		billing.Module,
		routing.Module,
		lead.Module,
		delivery.Module,
		drip.Module,

		scheduler.Module,
		server.Module,
	)
	app.Run()
}

func RegisterSnowflake() (*snowflake.Node, error) {
	return snowflake.NewNode(1)
}

// RegisterRedis returns nil when redis is not configured; consumers treat a
// nil client as "feature off".
func RegisterRedis(lc fx.Lifecycle, cfg config.Config) *redis.Client {
	if !cfg.Redis.Enabled() {
		return nil
	}
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	lc.Append(fx.Hook{
		OnStop: func(context.Context) error {
			return client.Close()
		},
	})
	return client
}
