// Package chain holds the static catalog of supported payment chains. The
// catalog is loaded once at startup and treated as immutable for the process
// lifetime; fee and gas parameters are economic decisions, not user input.
package chain

import (
	"errors"

	"github.com/shopspring/decimal"
)

// Family groups chains that share an address format, transaction model and
// client implementation.
type Family string

const (
	FamilyEVM    Family = "evm"
	FamilySolana Family = "solana"
	FamilyCosmos Family = "cosmos"
)

// Config describes one supported chain.
type Config struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	NativeSymbol string `json:"native_symbol"`

	// Stable-asset deployment on this chain. Empty when the chain has no
	// supported stable asset; payments then always use the native path.
	StableSymbol   string `json:"stable_symbol,omitempty"`
	StableContract string `json:"stable_contract,omitempty"`
	StableDecimals int    `json:"stable_decimals,omitempty"`

	ProcessingFeePercent decimal.Decimal `json:"processing_fee_percent"`

	// GasEstimate is denominated in the native asset and used for display
	// only; gas is paid by the sender's wallet, never added to the amount due.
	GasEstimate decimal.Decimal `json:"gas_estimate"`

	IsEVM  bool   `json:"is_evm"`
	Family Family `json:"family"`

	// ChainNumericID is nil for chains without an integer chain id.
	ChainNumericID *int64 `json:"chain_numeric_id,omitempty"`

	// Cosmos-family chains carry a bech32 chain id and a base denom with its
	// exponent. Unused elsewhere.
	CosmosChainID string `json:"cosmos_chain_id,omitempty"`
	BaseDenom     string `json:"base_denom,omitempty"`
	DenomExponent int32  `json:"denom_exponent,omitempty"`

	// RequiredConfirmations is the chain-specific confirmation depth before a
	// transaction counts as final. Higher for slow-finality chains.
	RequiredConfirmations int `json:"required_confirmations"`

	RPCURL  string `json:"-"`
	GRPCURL string `json:"-"`
}

var (
	ErrUnsupportedChain = errors.New("unsupported chain")
	ErrNoStableAsset    = errors.New("no stable asset on chain")
)

// HasStableAsset reports whether the chain carries a supported stable asset.
func (c Config) HasStableAsset() bool { return c.StableSymbol != "" }
