package settlement

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/solacehealth/solace/internal/chain"
	"github.com/solacehealth/solace/internal/clock"
	"github.com/solacehealth/solace/internal/config"
	obsmetrics "github.com/solacehealth/solace/internal/observability/metrics"
)

var Module = fx.Module("settlement",
	fx.Provide(
		NewRepository,
		newBridge,
		newService,
		newReconciler,
	),
	fx.Invoke(runReconciler),
)

func newBridge(log *zap.Logger, cfg config.Config) Bridge {
	return NewHTTPBridge(log, cfg.BridgeEndpoint, cfg.BridgeTimeout)
}

func newService(log *zap.Logger, db *gorm.DB, repo Repository, bridge Bridge, chains *chain.Registry, node *snowflake.Node, clk clock.Clock, metrics *obsmetrics.Metrics, cfg config.Config) *Service {
	return NewService(log, db, repo, bridge, chains, node, clk, metrics, cfg.SettlementChainID)
}

func newReconciler(log *zap.Logger, db *gorm.DB, repo Repository, bridge Bridge) *Reconciler {
	return NewReconciler(log, db, repo, bridge, time.Minute)
}

func runReconciler(lc fx.Lifecycle, r *Reconciler) {
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			r.Start()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			r.Stop()
			return nil
		},
	})
}
