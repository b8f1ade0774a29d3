// Package oracle serves USD prices for chain assets. It prefers a live feed,
// memoizes per symbol with a TTL, and degrades to a static fallback table so
// quoting never blocks on a price-feed outage.
package oracle

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// PriceSource tags where a served price came from, so monitoring can tell
// "degraded but serving" apart from "fully healthy".
type PriceSource string

const (
	SourceFeed     PriceSource = "feed"
	SourceCache    PriceSource = "cache"
	SourceFallback PriceSource = "fallback"
)

// USDPrice is one symbol's price at a point in time.
type USDPrice struct {
	Symbol    string          `json:"symbol"`
	Price     decimal.Decimal `json:"price"`
	Source    PriceSource     `json:"source"`
	FetchedAt time.Time       `json:"fetched_at"`
}

// Service resolves USD prices for a set of symbols. It never returns an
// error; the worst case is an all-fallback result.
type Service interface {
	GetPrices(ctx context.Context, symbols []string) map[string]USDPrice
}

// Feed is the external batched price lookup.
type Feed interface {
	FetchPrices(ctx context.Context, symbols []string) (map[string]decimal.Decimal, error)
}
