package oracle

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/solacehealth/solace/internal/clock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type feedStub struct {
	mu     sync.Mutex
	calls  int
	prices map[string]decimal.Decimal
	err    error
}

func (f *feedStub) FetchPrices(ctx context.Context, symbols []string) (map[string]decimal.Decimal, error) {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	return f.prices, nil
}

func (f *feedStub) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func newTestService(t *testing.T, feed Feed, clk clock.Clock) Service {
	t.Helper()
	return NewService(Params{
		Log:      zap.NewNop(),
		Clock:    clk,
		Feed:     feed,
		Fallback: NewFallbackHolder(zap.NewNop()),
	}, 5*time.Minute)
}

func TestGetPricesServesFeedPrices(t *testing.T) {
	feed := &feedStub{prices: map[string]decimal.Decimal{
		"ETH": decimal.RequireFromString("2500"),
		"SOL": decimal.RequireFromString("120"),
	}}
	svc := newTestService(t, feed, clock.NewFakeClock(time.Now()))

	prices := svc.GetPrices(context.Background(), []string{"ETH", "SOL"})
	require.Len(t, prices, 2)
	require.Equal(t, SourceFeed, prices["ETH"].Source)
	require.True(t, prices["ETH"].Price.Equal(decimal.RequireFromString("2500")))
}

func TestGetPricesNeverFails(t *testing.T) {
	feed := &feedStub{err: errors.New("feed down")}
	svc := newTestService(t, feed, clock.NewFakeClock(time.Now()))

	prices := svc.GetPrices(context.Background(), []string{"ETH", "USDT"})
	require.Len(t, prices, 2)
	for _, p := range prices {
		require.Equal(t, SourceFallback, p.Source)
		require.True(t, p.Price.IsPositive())
	}
	require.True(t, prices["USDT"].Price.Equal(decimal.New(1, 0)))
}

func TestGetPricesPartialFailureFallsBackPerSymbol(t *testing.T) {
	feed := &feedStub{prices: map[string]decimal.Decimal{
		"ETH": decimal.RequireFromString("2500"),
	}}
	svc := newTestService(t, feed, clock.NewFakeClock(time.Now()))

	prices := svc.GetPrices(context.Background(), []string{"ETH", "ATOM"})
	require.Equal(t, SourceFeed, prices["ETH"].Source)
	require.Equal(t, SourceFallback, prices["ATOM"].Source)
	require.True(t, prices["ATOM"].Price.IsPositive())
}

func TestGetPricesUsesCacheWithinTTL(t *testing.T) {
	clk := clock.NewFakeClock(time.Now())
	feed := &feedStub{prices: map[string]decimal.Decimal{
		"ETH": decimal.RequireFromString("2500"),
	}}
	svc := newTestService(t, feed, clk)

	_ = svc.GetPrices(context.Background(), []string{"ETH"})
	clk.Advance(time.Minute)
	second := svc.GetPrices(context.Background(), []string{"ETH"})

	require.Equal(t, 1, feed.Calls())
	require.Equal(t, SourceCache, second["ETH"].Source)
}

func TestGetPricesRefetchesAfterTTL(t *testing.T) {
	clk := clock.NewFakeClock(time.Now())
	feed := &feedStub{prices: map[string]decimal.Decimal{
		"ETH": decimal.RequireFromString("2500"),
	}}
	svc := newTestService(t, feed, clk)

	_ = svc.GetPrices(context.Background(), []string{"ETH"})
	clk.Advance(6 * time.Minute)
	_ = svc.GetPrices(context.Background(), []string{"ETH"})

	require.Equal(t, 2, feed.Calls())
}
