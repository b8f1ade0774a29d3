package chain

import (
	"fmt"
	"sort"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/spf13/viper"
)

// Registry is a pure lookup table over the supported chains. It has no side
// effects and no runtime mutation API; changing chain parameters requires a
// redeploy.
type Registry struct {
	byID  map[string]Config
	order []string
}

// NewRegistry builds the registry from compiled-in defaults, overridden by a
// chains.yml file when one is present at path (or the working directory).
func NewRegistry(path string) (*Registry, error) {
	configs := defaultConfigs()

	overrides, err := loadOverrides(path)
	if err != nil {
		return nil, fmt.Errorf("load chain overrides: %w", err)
	}

	byID := make(map[string]Config, len(configs))
	order := make([]string, 0, len(configs))
	for _, cfg := range configs {
		if o, ok := overrides[cfg.ID]; ok {
			cfg = o
		}
		byID[cfg.ID] = cfg
		order = append(order, cfg.ID)
	}
	for id, o := range overrides {
		if _, ok := byID[id]; !ok {
			byID[id] = o
			order = append(order, id)
		}
	}
	sort.Strings(order)

	return &Registry{byID: byID, order: order}, nil
}

// Get returns the config for a chain id, or ErrUnsupportedChain.
func (r *Registry) Get(chainID string) (Config, error) {
	cfg, ok := r.byID[strings.ToLower(strings.TrimSpace(chainID))]
	if !ok {
		return Config{}, fmt.Errorf("%w: %s", ErrUnsupportedChain, chainID)
	}
	return cfg, nil
}

// List returns all supported chains in stable order.
func (r *Registry) List() []Config {
	out := make([]Config, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, r.byID[id])
	}
	return out
}

func loadOverrides(path string) (map[string]Config, error) {
	v := viper.New()
	v.SetConfigName("chains")
	v.SetConfigType("yml")
	if strings.TrimSpace(path) != "" {
		v.AddConfigPath(path)
	}
	v.AddConfigPath("/etc/solace")
	v.AddConfigPath(".")

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			return nil, nil
		}
		return nil, err
	}

	var file struct {
		Chains []chainEntry `mapstructure:"chains"`
	}
	if err := v.Unmarshal(&file); err != nil {
		return nil, err
	}

	overrides := make(map[string]Config, len(file.Chains))
	for _, entry := range file.Chains {
		id := strings.ToLower(strings.TrimSpace(entry.ID))
		if id == "" {
			continue
		}
		cfg := entry.toConfig()
		cfg.ID = id
		overrides[id] = cfg
	}
	return overrides, nil
}

// chainEntry is the YAML shape; decimal fields arrive as strings so fee
// percentages survive decoding exactly.
type chainEntry struct {
	ID                    string `mapstructure:"id"`
	Name                  string `mapstructure:"name"`
	NativeSymbol          string `mapstructure:"native_symbol"`
	StableSymbol          string `mapstructure:"stable_symbol"`
	StableContract        string `mapstructure:"stable_contract"`
	StableDecimals        int    `mapstructure:"stable_decimals"`
	ProcessingFeePercent  string `mapstructure:"processing_fee_percent"`
	GasEstimate           string `mapstructure:"gas_estimate"`
	IsEVM                 bool   `mapstructure:"is_evm"`
	Family                string `mapstructure:"family"`
	ChainNumericID        *int64 `mapstructure:"chain_numeric_id"`
	RequiredConfirmations int    `mapstructure:"required_confirmations"`
	CosmosChainID         string `mapstructure:"cosmos_chain_id"`
	BaseDenom             string `mapstructure:"base_denom"`
	DenomExponent         int32  `mapstructure:"denom_exponent"`
	RPCURL                string `mapstructure:"rpc_url"`
	GRPCURL               string `mapstructure:"grpc_url"`
}

func (e chainEntry) toConfig() Config {
	fee, err := decimal.NewFromString(strings.TrimSpace(e.ProcessingFeePercent))
	if err != nil {
		fee = decimal.Zero
	}
	gas, err := decimal.NewFromString(strings.TrimSpace(e.GasEstimate))
	if err != nil {
		gas = decimal.Zero
	}
	return Config{
		ID:                    e.ID,
		Name:                  e.Name,
		NativeSymbol:          strings.ToUpper(e.NativeSymbol),
		StableSymbol:          strings.ToUpper(e.StableSymbol),
		StableContract:        e.StableContract,
		StableDecimals:        e.StableDecimals,
		ProcessingFeePercent:  fee,
		GasEstimate:           gas,
		IsEVM:                 e.IsEVM,
		Family:                Family(e.Family),
		ChainNumericID:        e.ChainNumericID,
		RequiredConfirmations: e.RequiredConfirmations,
		CosmosChainID:         e.CosmosChainID,
		BaseDenom:             e.BaseDenom,
		DenomExponent:         e.DenomExponent,
		RPCURL:                e.RPCURL,
		GRPCURL:               e.GRPCURL,
	}
}
