package quote

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/solacehealth/solace/internal/chain"
	"github.com/solacehealth/solace/internal/clock"
	"github.com/solacehealth/solace/internal/oracle"
	"github.com/solacehealth/solace/internal/payment/domain"
)

type priceStub struct {
	prices map[string]decimal.Decimal
	source oracle.PriceSource
}

func (s *priceStub) GetPrices(_ context.Context, symbols []string) map[string]oracle.USDPrice {
	out := make(map[string]oracle.USDPrice, len(symbols))
	for _, symbol := range symbols {
		price, ok := s.prices[symbol]
		if !ok {
			price = decimal.NewFromInt(1)
		}
		out[symbol] = oracle.USDPrice{Symbol: symbol, Price: price, Source: s.source}
	}
	return out
}

func newCalculator(t *testing.T, prices map[string]decimal.Decimal) (*Calculator, *clock.FakeClock) {
	t.Helper()

	chains, err := chain.NewRegistry("")
	require.NoError(t, err)

	clk := clock.NewFakeClock(time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC))
	stub := &priceStub{prices: prices, source: oracle.SourceFeed}
	return NewCalculator(zap.NewNop(), chains, stub, clk), clk
}

func TestQuoteFeeAndTotal(t *testing.T) {
	calc, clk := newCalculator(t, map[string]decimal.Decimal{
		"MATIC": decimal.NewFromFloat(0.75),
		"USDT":  decimal.NewFromInt(1),
	})

	quote, err := calc.Quote(context.Background(), "polygon", decimal.NewFromFloat(29.99))
	require.NoError(t, err)

	require.Equal(t, "0.15", quote.ProcessingFeeUSD.StringFixed(2))
	require.Equal(t, "30.14", quote.TotalCostUSD.StringFixed(2))
	require.True(t, quote.NativeAmountRequired.Equal(decimal.NewFromFloat(30.14).DivRound(decimal.NewFromFloat(0.75), 8)))
	require.Equal(t, "USDT", quote.StableSymbol)
	require.True(t, quote.StableAmountRequired.Equal(decimal.NewFromFloat(30.14)))
	require.Equal(t, clk.Now(), quote.GeneratedAt)
}

func TestQuoteUnsupportedChain(t *testing.T) {
	calc, _ := newCalculator(t, nil)

	_, err := calc.Quote(context.Background(), "dogechain", decimal.NewFromInt(10))
	require.Error(t, err)
	require.True(t, errors.Is(err, chain.ErrUnsupportedChain))
}

func TestQuoteRejectsNonPositiveAmount(t *testing.T) {
	calc, _ := newCalculator(t, nil)

	_, err := calc.Quote(context.Background(), "polygon", decimal.Zero)
	require.True(t, errors.Is(err, domain.ErrInvalidAmount))
}

func TestQuoteGasIsDisplayOnly(t *testing.T) {
	calc, _ := newCalculator(t, map[string]decimal.Decimal{
		"ETH": decimal.NewFromInt(3000),
	})

	quote, err := calc.Quote(context.Background(), "ethereum", decimal.NewFromInt(100))
	require.NoError(t, err)

	require.True(t, quote.EstimatedGasUSD.GreaterThan(decimal.Zero))
	expectedTotal := decimal.NewFromInt(100).Add(quote.ProcessingFeeUSD)
	require.True(t, quote.TotalCostUSD.Equal(expectedTotal), "gas must not inflate the total")
}

func TestQuoteStalenessWindow(t *testing.T) {
	calc, clk := newCalculator(t, map[string]decimal.Decimal{"MATIC": decimal.NewFromInt(1)})

	quote, err := calc.Quote(context.Background(), "polygon", decimal.NewFromInt(10))
	require.NoError(t, err)

	freshness := 5 * time.Minute
	require.False(t, quote.Stale(clk.Now(), freshness))

	clk.Advance(freshness + time.Second)
	require.True(t, quote.Stale(clk.Now(), freshness))
}
