package oracle

import (
	"github.com/solacehealth/solace/internal/config"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("oracle.service",
	fx.Provide(func(cfg config.Config) Feed {
		return NewHTTPFeed(cfg.PriceFeedURL, cfg.PriceFeedTimeout)
	}),
	fx.Provide(func(log *zap.Logger) *FallbackHolder {
		return NewFallbackHolder(log.Named("oracle.fallback"))
	}),
	fx.Provide(func(p Params, cfg config.Config) Service {
		return NewService(p, cfg.PriceCacheTTL)
	}),
)
