package chain

import (
	"github.com/solacehealth/solace/internal/config"
	"go.uber.org/fx"
)

var Module = fx.Module("chain.registry",
	fx.Provide(func(cfg config.Config) (*Registry, error) {
		return NewRegistry(cfg.ChainsConfigPath)
	}),
)
