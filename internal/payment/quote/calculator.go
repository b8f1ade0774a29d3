// Package quote prices payment requests against oracle rates.
package quote

import (
	"context"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/solacehealth/solace/internal/chain"
	"github.com/solacehealth/solace/internal/clock"
	"github.com/solacehealth/solace/internal/oracle"
	"github.com/solacehealth/solace/internal/payment/domain"
)

var oneHundred = decimal.NewFromInt(100)

// Calculator turns a USD amount and a source chain into a priced quote.
type Calculator struct {
	log    *zap.Logger
	chains *chain.Registry
	prices oracle.Service
	clock  clock.Clock
}

func NewCalculator(log *zap.Logger, chains *chain.Registry, prices oracle.Service, clk clock.Clock) *Calculator {
	return &Calculator{
		log:    log.Named("quote"),
		chains: chains,
		prices: prices,
		clock:  clk,
	}
}

// Quote prices amountUSD on the given chain. Fee is a percentage of the
// amount, gas is display-only, and all USD figures round to cents.
func (c *Calculator) Quote(ctx context.Context, chainID string, amountUSD decimal.Decimal) (*domain.PaymentQuote, error) {
	if amountUSD.LessThanOrEqual(decimal.Zero) {
		return nil, fmt.Errorf("%w: amount must be positive", domain.ErrInvalidAmount)
	}

	cfg, err := c.chains.Get(chainID)
	if err != nil {
		return nil, err
	}

	symbols := []string{cfg.NativeSymbol}
	if cfg.HasStableAsset() {
		symbols = append(symbols, cfg.StableSymbol)
	}
	prices := c.prices.GetPrices(ctx, symbols)

	fee := amountUSD.Mul(cfg.ProcessingFeePercent).Div(oneHundred).Round(2)
	total := amountUSD.Round(2).Add(fee)

	native := prices[strings.ToUpper(cfg.NativeSymbol)]
	quote := &domain.PaymentQuote{
		SourceChainID:        cfg.ID,
		AmountUSD:            amountUSD.Round(2),
		ProcessingFeeUSD:     fee,
		TotalCostUSD:         total,
		NativeSymbol:         cfg.NativeSymbol,
		NativeAmountRequired: total.DivRound(native.Price, 8),
		EstimatedGasUSD:      cfg.GasEstimate.Mul(native.Price).Round(2),
		PriceSource:          string(native.Source),
		GeneratedAt:          c.clock.Now(),
	}

	if cfg.HasStableAsset() {
		stable := prices[strings.ToUpper(cfg.StableSymbol)]
		quote.StableSymbol = cfg.StableSymbol
		quote.StableAmountRequired = total.DivRound(stable.Price, 6)
	}

	c.log.Debug("quote generated",
		zap.String("chain", cfg.ID),
		zap.String("amount_usd", quote.AmountUSD.String()),
		zap.String("total_usd", quote.TotalCostUSD.String()),
		zap.String("price_source", quote.PriceSource),
	)

	return quote, nil
}
