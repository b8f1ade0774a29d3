package domain

import (
	"fmt"

	"github.com/shopspring/decimal"
)

const (
	TierBasic    = "basic"
	TierStandard = "standard"
	TierPremium  = "premium"
)

func usd(s string) decimal.Decimal { return decimal.RequireFromString(s) }

var tiers = map[string]Tier{
	TierBasic: {
		ID:                 TierBasic,
		Name:               "Basic",
		MonthlyPriceUSD:    usd("29.99"),
		MinutesPerCycle:    120,
		TopUpRatePerMinute: usd("0.50"),
	},
	TierStandard: {
		ID:                 TierStandard,
		Name:               "Standard",
		MonthlyPriceUSD:    usd("59.99"),
		MinutesPerCycle:    300,
		TopUpRatePerMinute: usd("0.40"),
		GroupSessions:      true,
	},
	TierPremium: {
		ID:                 TierPremium,
		Name:               "Premium",
		MonthlyPriceUSD:    usd("99.99"),
		MinutesPerCycle:    600,
		TopUpRatePerMinute: usd("0.30"),
		GroupSessions:      true,
		EmergencySessions:  true,
	},
}

// TierByID resolves a tier id, or ErrUnknownTier.
func TierByID(id string) (Tier, error) {
	tier, ok := tiers[id]
	if !ok {
		return Tier{}, fmt.Errorf("%w: %s", ErrUnknownTier, id)
	}
	return tier, nil
}

// Tiers returns the plan catalog in ascending price order.
func Tiers() []Tier {
	return []Tier{tiers[TierBasic], tiers[TierStandard], tiers[TierPremium]}
}
