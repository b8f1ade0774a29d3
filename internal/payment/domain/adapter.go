package domain

import (
	"context"

	"github.com/shopspring/decimal"
	"github.com/solacehealth/solace/internal/chain"
)

// Adapter executes transfers on one chain family. Implementations are safe
// for concurrent use.
type Adapter interface {
	// Family identifies the chain family the adapter serves.
	Family() chain.Family

	// ValidateAddress checks destination address syntax for the chain.
	ValidateAddress(address string) error

	// NativeBalance returns the native asset balance of an address.
	NativeBalance(ctx context.Context, address string) (decimal.Decimal, error)

	// StableBalance returns the stablecoin balance of an address, or
	// chain.ErrNoStableAsset when the chain carries no stable asset.
	StableBalance(ctx context.Context, address string) (decimal.Decimal, error)

	// Send broadcasts a transfer of amount (in display units of the chosen
	// currency) to the destination address.
	Send(ctx context.Context, currency Currency, destination string, amount decimal.Decimal) (*TransferReceipt, error)

	// TransactionStatus reports confirmation progress for a broadcast
	// transaction. A transaction not yet visible returns Found=false with a
	// nil error.
	TransactionStatus(ctx context.Context, reference string) (*TransactionState, error)
}
