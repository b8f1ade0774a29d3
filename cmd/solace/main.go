package main

import (
	"github.com/bwmarrin/snowflake"
	"go.uber.org/fx"

	"github.com/solacehealth/solace/internal/access"
	"github.com/solacehealth/solace/internal/chain"
	"github.com/solacehealth/solace/internal/clock"
	"github.com/solacehealth/solace/internal/config"
	"github.com/solacehealth/solace/internal/entitlement"
	"github.com/solacehealth/solace/internal/migration"
	"github.com/solacehealth/solace/internal/observability"
	"github.com/solacehealth/solace/internal/oracle"
	"github.com/solacehealth/solace/internal/payment"
	"github.com/solacehealth/solace/internal/ratelimit"
	"github.com/solacehealth/solace/internal/server"
	"github.com/solacehealth/solace/internal/settlement"
	"github.com/solacehealth/solace/pkg/db"
)

func main() {
	app := fx.New(
		// Core infrastructure
		config.Module,
		observability.Module,
		fx.Provide(RegisterSnowflake),
		db.Module,
		clock.Module,
		migration.Module,

		// Functional domains
		chain.Module,
		oracle.Module,
		ratelimit.Module,
		settlement.Module,
		entitlement.Module,
		access.Module,
		payment.Module,

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
