package main

import (
	"github.com/bwmarrin/snowflake"
	redis "github.com/redis/go-redis/v9"
	"go.uber.org/fx"

	"github.com/lumeven/funnel/internal/checkout"
	"github.com/lumeven/funnel/internal/clock"
	"github.com/lumeven/funnel/internal/config"
	"github.com/lumeven/funnel/internal/ledger"
	"github.com/lumeven/funnel/internal/migration"
	"github.com/lumeven/funnel/internal/payment"
	"github.com/lumeven/funnel/internal/payment/hooks"
	"github.com/lumeven/funnel/internal/providers/email"
	"github.com/lumeven/funnel/internal/ratelimit"
	"github.com/lumeven/funnel/internal/server"
	"github.com/lumeven/funnel/internal/slots"
	"github.com/lumeven/funnel/internal/status"
	"github.com/lumeven/funnel/pkg/db"
	"github.com/lumeven/funnel/pkg/log"
)

func main() {
	app := fx.New(
		config.Module,
		log.Module,
		fx.Provide(RegisterSnowflake),
		fx.Provide(RegisterRedis),
		db.Module,
		clock.Module,
		migration.Module,

		checkout.Module,
		ledger.Module,
		payment.Module,
		slots.Module,
		status.Module,
		ratelimit.Module,
		email.Module,
		hooks.Module,

		server.Module,
	)
	app.Run()
}

func RegisterSnowflake() (*snowflake.Node, error) {
	return snowflake.NewNode(1)
}

func RegisterRedis(cfg config.Config) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
}
