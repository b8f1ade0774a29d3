// Package adapters assembles one execution adapter per supported chain.
package adapters

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/solacehealth/solace/internal/chain"
	"github.com/solacehealth/solace/internal/config"
	"github.com/solacehealth/solace/internal/payment/adapters/cosmos"
	"github.com/solacehealth/solace/internal/payment/adapters/evm"
	"github.com/solacehealth/solace/internal/payment/adapters/solana"
	"github.com/solacehealth/solace/internal/payment/domain"
)

// Registry maps chain ids to their execution adapters.
type Registry struct {
	byChain map[string]domain.Adapter
}

// NewRegistry dials an adapter for every chain in the catalog. A chain whose
// adapter cannot be constructed is skipped with a warning rather than
// failing startup; payments on it then fail with ErrUnsupportedChain.
func NewRegistry(log *zap.Logger, cfg config.Config, chains *chain.Registry) *Registry {
	byChain := make(map[string]domain.Adapter)

	for _, c := range chains.List() {
		adapter, err := build(log, cfg, c)
		if err != nil {
			log.Warn("chain adapter unavailable",
				zap.String("chain", c.ID),
				zap.Error(err),
			)
			continue
		}
		byChain[c.ID] = adapter
	}

	return &Registry{byChain: byChain}
}

// NewStaticRegistry wraps an explicit adapter map. Used by tests and tools
// that bring their own adapters.
func NewStaticRegistry(byChain map[string]domain.Adapter) *Registry {
	return &Registry{byChain: byChain}
}

// Get returns the adapter for a chain id.
func (r *Registry) Get(chainID string) (domain.Adapter, error) {
	adapter, ok := r.byChain[chainID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", chain.ErrUnsupportedChain, chainID)
	}
	return adapter, nil
}

func build(log *zap.Logger, cfg config.Config, c chain.Config) (domain.Adapter, error) {
	switch c.Family {
	case chain.FamilyEVM:
		return evm.New(log, c, cfg.EVMSignerKey)
	case chain.FamilySolana:
		return solana.New(log, c, cfg.SolanaSignerKey)
	case chain.FamilyCosmos:
		return cosmos.New(log, c, cfg.CosmosSignerKey, cfg.CosmosFeeDenom)
	default:
		return nil, fmt.Errorf("%w: unknown family %q", chain.ErrUnsupportedChain, c.Family)
	}
}
