// Package settlement relays payment proofs from source chains to the
// settlement chain, with a durable local fallback when the bridge is down.
package settlement

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/solacehealth/solace/internal/chain"
)

// Route names the bridge transport used for a relay.
type Route string

const (
	RouteCCIP        Route = "ccip"
	RouteHyperlane   Route = "hyperlane"
	RouteHyperbridge Route = "hyperbridge"
)

// Message is the settlement payload relayed to the settlement chain. It
// carries the opaque platform user id, never wallet addresses.
type Message struct {
	UserID             string          `json:"userId"`
	PaymentType        string          `json:"paymentType"`
	SourceChainID      string          `json:"sourceChainId"`
	DestinationChainID string          `json:"destinationChainId"`
	SourceReference    string          `json:"sourceReference"`
	AmountUSD          decimal.Decimal `json:"amountUsd"`
	OccurredAt         time.Time       `json:"occurredAt"`
}

// SelectRoute picks the bridge for a source/destination pair.
// EVM to EVM prefers CCIP, Solana legs ride Hyperlane, everything else goes
// through Hyperbridge.
func SelectRoute(source, destination chain.Config) Route {
	if source.Family == chain.FamilyEVM && destination.Family == chain.FamilyEVM {
		return RouteCCIP
	}
	if source.Family == chain.FamilySolana || destination.Family == chain.FamilySolana {
		return RouteHyperlane
	}
	return RouteHyperbridge
}
