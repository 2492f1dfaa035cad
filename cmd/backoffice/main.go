package main

import (
	"github.com/bwmarrin/snowflake"
	"github.com/globalping/backoffice/internal/clock"
	"github.com/globalping/backoffice/internal/config"
	"github.com/globalping/backoffice/internal/logger"
	"github.com/globalping/backoffice/internal/migration"
	"github.com/globalping/backoffice/internal/server"
	"github.com/globalping/backoffice/pkg/db"
	"go.uber.org/fx"
)

func main() {
	app := fx.New(
		config.Module,
		logger.Module,
		fx.Provide(RegisterSnowflake),
		db.Module,
		clock.Module,
		migration.Module,
		server.Module,
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
