package main

import (
	"github.com/bwmarrin/snowflake"
	"github.com/suscribo/suscribo/internal/account"
	"github.com/suscribo/suscribo/internal/audit"
	"github.com/suscribo/suscribo/internal/clock"
	"github.com/suscribo/suscribo/internal/config"
	"github.com/suscribo/suscribo/internal/invoice"
	"github.com/suscribo/suscribo/internal/logger"
	"github.com/suscribo/suscribo/internal/payment"
	"github.com/suscribo/suscribo/internal/plan"
	"github.com/suscribo/suscribo/internal/scheduler"
	"github.com/suscribo/suscribo/internal/subscription"
	"github.com/suscribo/suscribo/pkg/db"
	"go.uber.org/fx"
)

func main() {
	app := fx.New(
		config.Module,
		logger.Module,
		fx.Provide(RegisterSnowflake),
		db.Module,
		clock.Module,

		// Domain services required by the sweep; no signup surface here.
		account.Module,
		plan.Module,
		subscription.Module,
		invoice.Module,
		payment.Module,
		audit.Module,
		scheduler.Module,
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
