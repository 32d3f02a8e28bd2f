package main

import (
	"github.com/bwmarrin/snowflake"
	"github.com/textlane/textlane/internal/clock"
	"github.com/textlane/textlane/internal/migration"
	"github.com/textlane/textlane/internal/observability"
	"github.com/textlane/textlane/internal/server"
	"github.com/textlane/textlane/pkg/db"
	"go.uber.org/fx"
)

func main() {
	app := fx.New(
		observability.Module,
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
