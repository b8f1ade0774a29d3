package settlement

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/solacehealth/solace/internal/chain"
	"github.com/solacehealth/solace/internal/clock"
)

type bridgeStub struct {
	failures int
	calls    int
	lastMsg  Message
}

func (b *bridgeStub) Relay(_ context.Context, _ Route, msg Message) (string, error) {
	b.calls++
	b.lastMsg = msg
	if b.calls <= b.failures {
		return "", errors.New("bridge unreachable")
	}
	return "bridge-ref-123", nil
}

func newTestService(t *testing.T, name string, bridge Bridge) (*Service, *gorm.DB) {
	t.Helper()

	db, err := gorm.Open(sqlite.Open("file:"+name+"?mode=memory&cache=shared"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&FallbackSettlement{}))

	chains, err := chain.NewRegistry("")
	require.NoError(t, err)

	node, err := snowflake.NewNode(1)
	require.NoError(t, err)

	clk := clock.NewFakeClock(time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC))
	svc := NewService(zap.NewNop(), db, NewRepository(), bridge, chains, node, clk, nil, "polygon")
	return svc, db
}

func msgFixture() Message {
	return Message{
		UserID:          "user-42",
		PaymentType:     "subscription",
		SourceChainID:   "ethereum",
		SourceReference: "0xabc",
		AmountUSD:       decimal.NewFromFloat(30.14),
	}
}

func TestSettleRelaysThroughBridge(t *testing.T) {
	bridge := &bridgeStub{}
	svc, db := newTestService(t, "settle_relay", bridge)

	result := svc.Settle(context.Background(), msgFixture())
	require.False(t, result.Unreconciled)
	require.Equal(t, "bridge-ref-123", result.Reference)
	require.Equal(t, RouteCCIP, result.Route, "evm to evm rides ccip")
	require.Equal(t, "polygon", bridge.lastMsg.DestinationChainID)

	var count int64
	require.NoError(t, db.Model(&FallbackSettlement{}).Count(&count).Error)
	require.Zero(t, count)
}

func TestSettleBridgeOutageFallsBack(t *testing.T) {
	bridge := &bridgeStub{failures: 1}
	svc, db := newTestService(t, "settle_outage", bridge)

	result := svc.Settle(context.Background(), msgFixture())
	require.True(t, result.Unreconciled)
	require.True(t, strings.HasPrefix(result.Reference, "unreconciled-"))

	var row FallbackSettlement
	require.NoError(t, db.First(&row).Error)
	require.Equal(t, result.Reference, row.Reference)
	require.False(t, row.Relayed)
}

func TestSelectRoute(t *testing.T) {
	chains, err := chain.NewRegistry("")
	require.NoError(t, err)

	eth, _ := chains.Get("ethereum")
	polygon, _ := chains.Get("polygon")
	sol, _ := chains.Get("solana")
	hub, _ := chains.Get("cosmoshub")

	require.Equal(t, RouteCCIP, SelectRoute(eth, polygon))
	require.Equal(t, RouteHyperlane, SelectRoute(sol, polygon))
	require.Equal(t, RouteHyperbridge, SelectRoute(hub, polygon))
}

func TestReconcilerSweepDelivers(t *testing.T) {
	bridge := &bridgeStub{failures: 1}
	svc, db := newTestService(t, "settle_reconcile", bridge)

	result := svc.Settle(context.Background(), msgFixture())
	require.True(t, result.Unreconciled)

	reconciler := NewReconciler(zap.NewNop(), db, NewRepository(), bridge, time.Minute)
	reconciler.Sweep(context.Background())

	var row FallbackSettlement
	require.NoError(t, db.First(&row).Error)
	require.True(t, row.Relayed)
	require.NotNil(t, row.BridgeRef)
	require.Equal(t, "bridge-ref-123", *row.BridgeRef)
}
