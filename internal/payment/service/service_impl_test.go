package service

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
	"github.com/solacehealth/solace/internal/config"
	entdomain "github.com/solacehealth/solace/internal/entitlement/domain"
	entrepo "github.com/solacehealth/solace/internal/entitlement/repository"
	entservice "github.com/solacehealth/solace/internal/entitlement/service"
	"github.com/solacehealth/solace/internal/oracle"
	"github.com/solacehealth/solace/internal/payment/adapters"
	"github.com/solacehealth/solace/internal/payment/domain"
	"github.com/solacehealth/solace/internal/payment/quote"
	"github.com/solacehealth/solace/internal/payment/repository"
	"github.com/solacehealth/solace/internal/settlement"
	"github.com/solacehealth/solace/internal/verification"
)

// fakeAdapter confirms instantly and reports a fixed balance.
type fakeAdapter struct {
	balance       decimal.Decimal
	reference     string
	sendErr       error
	stableSendErr error
	reverted      bool

	sentCurrencies []domain.Currency
}

func (f *fakeAdapter) Family() chain.Family         { return chain.FamilyEVM }
func (f *fakeAdapter) ValidateAddress(string) error { return nil }

func (f *fakeAdapter) NativeBalance(context.Context, string) (decimal.Decimal, error) {
	return f.balance, nil
}

func (f *fakeAdapter) StableBalance(context.Context, string) (decimal.Decimal, error) {
	return decimal.Zero, chain.ErrNoStableAsset
}

func (f *fakeAdapter) Send(_ context.Context, currency domain.Currency, _ string, _ decimal.Decimal) (*domain.TransferReceipt, error) {
	f.sentCurrencies = append(f.sentCurrencies, currency)
	if currency == domain.CurrencyStable && f.stableSendErr != nil {
		return nil, f.stableSendErr
	}
	if f.sendErr != nil {
		return nil, f.sendErr
	}
	return &domain.TransferReceipt{TransactionReference: f.reference}, nil
}

func (f *fakeAdapter) TransactionStatus(context.Context, string) (*domain.TransactionState, error) {
	return &domain.TransactionState{
		Found:         true,
		Failed:        f.reverted,
		Confirmations: 1000,
		BlockHeight:   123,
	}, nil
}

// downFeed simulates a dead price feed so the oracle serves fallbacks.
type downFeed struct{}

func (downFeed) FetchPrices(context.Context, []string) (map[string]decimal.Decimal, error) {
	return nil, errors.New("feed unreachable")
}

// downBridge simulates a bridge outage.
type downBridge struct{}

func (downBridge) Relay(context.Context, settlement.Route, settlement.Message) (string, error) {
	return "", errors.New("bridge unreachable")
}

type upBridge struct{}

func (upBridge) Relay(context.Context, settlement.Route, settlement.Message) (string, error) {
	return "bridge-ref-1", nil
}

type fixture struct {
	svc *Service
	db  *gorm.DB
	ent entdomain.Service
}

func newFixture(t *testing.T, name string, adapter domain.Adapter, bridge settlement.Bridge) *fixture {
	t.Helper()

	db, err := gorm.Open(sqlite.Open("file:"+name+"?mode=memory&cache=shared"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&domain.PaymentRecord{},
		&settlement.FallbackSettlement{},
		&entdomain.Subscription{},
		&entdomain.UsageLedgerEntry{},
		&entdomain.EmergencyAccess{},
	))

	chains, err := chain.NewRegistry("")
	require.NoError(t, err)

	node, err := snowflake.NewNode(4)
	require.NoError(t, err)

	log := zap.NewNop()
	clk := clock.NewFakeClock(time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC))

	prices := oracle.NewService(oracle.Params{
		Log:      log,
		Clock:    clk,
		Feed:     downFeed{},
		Fallback: oracle.NewFallbackHolder(log),
	}, 5*time.Minute)

	registry := adapters.NewStaticRegistry(map[string]domain.Adapter{"polygon": adapter})
	calculator := quote.NewCalculator(log, chains, prices, clk)
	verifier := verification.NewVerifier(log, chains, registry, nil, verification.Config{
		PollInterval: time.Millisecond,
		Timeout:      time.Second,
	})

	ents := entservice.New(log, db, entrepo.New(), node, clk, nil, nil)
	settlements := settlement.NewService(log, db, settlement.NewRepository(), bridge, chains, node, clk, nil, "polygon")

	cfg := config.Config{
		QuoteFreshness:    5 * time.Minute,
		CollectionAddress: "0x000000000000000000000000000000000000dEaD",
	}

	svc := New(log, db, repository.New(), chains, registry, calculator, verifier, settlements, ents, prices, node, clk, nil, cfg)
	return &fixture{svc: svc, db: db, ent: ents}
}

func paymentRequest() domain.PaymentRequest {
	return domain.PaymentRequest{
		AmountUSD:     decimal.NewFromFloat(29.99),
		Currency:      domain.CurrencyNative,
		SourceChainID: "polygon",
		Metadata: domain.Metadata{
			UserID:       "user-1",
			PaymentType:  domain.PaymentTypeSubscription,
			TierID:       entdomain.TierBasic,
			BillingCycle: "monthly",
		},
	}
}

func TestProcessPaymentHappyPath(t *testing.T) {
	adapter := &fakeAdapter{balance: decimal.NewFromInt(1000), reference: "0xtx1"}
	f := newFixture(t, "pay_happy", adapter, upBridge{})

	result, err := f.svc.ProcessPayment(context.Background(), paymentRequest(), nil)
	require.NoError(t, err)
	require.True(t, result.Success)
	require.Equal(t, "0xtx1", result.TransactionReference)
	require.Equal(t, "bridge-ref-1", result.SettlementReference)
	require.False(t, result.Unreconciled)

	var record domain.PaymentRecord
	require.NoError(t, f.db.Where("user_id = ?", "user-1").First(&record).Error)
	require.Equal(t, domain.PaymentStatusSettled, record.Status)
	require.Equal(t, "29.99", record.AmountUSD.StringFixed(2))
	require.Equal(t, "0.15", record.ProcessingFeeUSD.StringFixed(2))
	require.Equal(t, "30.14", record.TotalCostUSD.StringFixed(2))

	sub, err := f.ent.ActiveSubscription(context.Background(), "user-1")
	require.NoError(t, err)
	require.Equal(t, 120, sub.RemainingMinutes)
}

func TestProcessPaymentOracleAndBridgeDownStillSucceeds(t *testing.T) {
	// The fixture's feed is already dead; prices come from the fallback
	// table. Here the bridge is down too.
	adapter := &fakeAdapter{balance: decimal.NewFromInt(1000), reference: "0xtx2"}
	f := newFixture(t, "pay_degraded", adapter, downBridge{})

	result, err := f.svc.ProcessPayment(context.Background(), paymentRequest(), nil)
	require.NoError(t, err)
	require.True(t, result.Success, "degraded infrastructure must not fail a confirmed payment")
	require.True(t, result.Unreconciled)
	require.True(t, strings.HasPrefix(result.SettlementReference, "unreconciled-"))

	// The settlement survived the outage on disk.
	var fallback settlement.FallbackSettlement
	require.NoError(t, f.db.First(&fallback).Error)
	require.Equal(t, result.SettlementReference, fallback.Reference)

	// And entitlements still applied.
	sub, err := f.ent.ActiveSubscription(context.Background(), "user-1")
	require.NoError(t, err)
	require.Equal(t, 120, sub.RemainingMinutes)
}

func TestProcessPaymentStableFailureFallsBackToNative(t *testing.T) {
	adapter := &fakeAdapter{
		balance:       decimal.NewFromInt(1000),
		reference:     "0xtx-native",
		stableSendErr: errors.New("erc20 transfer: execution reverted"),
	}
	f := newFixture(t, "pay_stablefallback", adapter, upBridge{})

	req := paymentRequest()
	req.Currency = domain.CurrencyStable

	result, err := f.svc.ProcessPayment(context.Background(), req, nil)
	require.NoError(t, err, "a stable-path failure must not surface to the payer")
	require.True(t, result.Success)
	require.Equal(t, "0xtx-native", result.TransactionReference)
	require.Equal(t, []domain.Currency{domain.CurrencyStable, domain.CurrencyNative}, adapter.sentCurrencies)

	var record domain.PaymentRecord
	require.NoError(t, f.db.Where("user_id = ?", "user-1").First(&record).Error)
	require.Equal(t, domain.CurrencyNative, record.Currency, "the record reflects the asset that actually moved")
	require.Equal(t, domain.PaymentStatusSettled, record.Status)
}

func TestProcessPaymentEmergencySessionGrantsAccess(t *testing.T) {
	adapter := &fakeAdapter{balance: decimal.NewFromInt(1000), reference: "0xtx-er"}
	f := newFixture(t, "pay_emergency", adapter, upBridge{})

	req := paymentRequest()
	req.AmountUSD = decimal.NewFromFloat(25)
	req.Metadata.PaymentType = domain.PaymentTypeEmergencySession
	req.Metadata.TierID = ""
	req.Metadata.BillingCycle = ""

	result, err := f.svc.ProcessPayment(context.Background(), req, nil)
	require.NoError(t, err)
	require.True(t, result.Success)

	grant, err := f.ent.ActiveEmergencyAccess(context.Background(), "user-1")
	require.NoError(t, err)
	require.NotNil(t, grant, "a settled emergency payment grants crisis access")
}

func TestProcessPaymentUnknownTypeRejectedBeforeTransfer(t *testing.T) {
	adapter := &fakeAdapter{balance: decimal.NewFromInt(1000), reference: "0xtx"}
	f := newFixture(t, "pay_unknowntype", adapter, upBridge{})

	req := paymentRequest()
	req.Metadata.PaymentType = "donation"

	_, err := f.svc.ProcessPayment(context.Background(), req, nil)
	require.True(t, errors.Is(err, domain.ErrUnknownPaymentType))
	require.Empty(t, adapter.sentCurrencies, "no funds move for an intent that could never apply")

	var count int64
	require.NoError(t, f.db.Model(&domain.PaymentRecord{}).Count(&count).Error)
	require.Zero(t, count)
}

func TestProcessPaymentUnknownBillingCycleRejectedBeforeTransfer(t *testing.T) {
	adapter := &fakeAdapter{balance: decimal.NewFromInt(1000), reference: "0xtx"}
	f := newFixture(t, "pay_unknowncycle", adapter, upBridge{})

	req := paymentRequest()
	req.Metadata.BillingCycle = "weekly"

	_, err := f.svc.ProcessPayment(context.Background(), req, nil)
	require.True(t, errors.Is(err, entdomain.ErrUnknownBillingCycle))
	require.Empty(t, adapter.sentCurrencies)
}

func TestProcessPaymentInsufficientBalanceFailsFast(t *testing.T) {
	adapter := &fakeAdapter{balance: decimal.NewFromFloat(0.01), reference: "0xtx3"}
	f := newFixture(t, "pay_poor", adapter, upBridge{})

	req := paymentRequest()
	req.SenderAddress = "0x1111111111111111111111111111111111111111"

	_, err := f.svc.ProcessPayment(context.Background(), req, nil)
	require.True(t, errors.Is(err, domain.ErrInsufficientBalance))

	var count int64
	require.NoError(t, f.db.Model(&domain.PaymentRecord{}).Count(&count).Error)
	require.Zero(t, count, "no transfer attempt, no payment record")
}

func TestProcessPaymentSubmissionFailureRecorded(t *testing.T) {
	adapter := &fakeAdapter{
		balance: decimal.NewFromInt(1000),
		sendErr: domain.ErrSubmissionFailed,
	}
	f := newFixture(t, "pay_submitfail", adapter, upBridge{})

	result, err := f.svc.ProcessPayment(context.Background(), paymentRequest(), nil)
	require.Error(t, err)
	require.False(t, result.Success)
	require.Equal(t, "submission_failed", result.ErrorCode)

	var record domain.PaymentRecord
	require.NoError(t, f.db.First(&record).Error)
	require.Equal(t, domain.PaymentStatusFailed, record.Status)

	_, err = f.ent.ActiveSubscription(context.Background(), "user-1")
	require.True(t, errors.Is(err, entdomain.ErrNoActiveSubscription), "failed payment grants nothing")
}

func TestProcessPaymentRevertedTransaction(t *testing.T) {
	adapter := &fakeAdapter{
		balance:   decimal.NewFromInt(1000),
		reference: "0xtx4",
		reverted:  true,
	}
	f := newFixture(t, "pay_reverted", adapter, upBridge{})

	result, err := f.svc.ProcessPayment(context.Background(), paymentRequest(), nil)
	require.True(t, errors.Is(err, domain.ErrTransactionReverted))
	require.False(t, result.Success)
	require.Equal(t, "transaction_reverted", result.ErrorCode)
}

func TestProcessPaymentUnsupportedChain(t *testing.T) {
	adapter := &fakeAdapter{balance: decimal.NewFromInt(1000)}
	f := newFixture(t, "pay_unsupported", adapter, upBridge{})

	req := paymentRequest()
	req.SourceChainID = "dogechain"

	_, err := f.svc.ProcessPayment(context.Background(), req, nil)
	require.True(t, errors.Is(err, chain.ErrUnsupportedChain))
}

func TestPaymentHistoryPagination(t *testing.T) {
	adapter := &fakeAdapter{balance: decimal.NewFromInt(1000)}
	f := newFixture(t, "pay_history", adapter, upBridge{})

	node, err := snowflake.NewNode(5)
	require.NoError(t, err)
	for i := 0; i < 5; i++ {
		require.NoError(t, f.db.Create(&domain.PaymentRecord{
			ID:               node.Generate(),
			UserID:           "user-1",
			SourceChainID:    "polygon",
			Currency:         domain.CurrencyNative,
			AmountUSD:        decimal.NewFromFloat(29.99),
			ProcessingFeeUSD: decimal.NewFromFloat(0.15),
			TotalCostUSD:     decimal.NewFromFloat(30.14),
			Status:           domain.PaymentStatusSettled,
			PaymentType:      domain.PaymentTypeSubscription,
		}).Error)
	}

	first, info, err := f.svc.PaymentHistory(context.Background(), "user-1", "", 2)
	require.NoError(t, err)
	require.Len(t, first, 2)
	require.True(t, info.HasMore)
	require.NotEmpty(t, info.NextPageToken)

	second, info, err := f.svc.PaymentHistory(context.Background(), "user-1", info.NextPageToken, 2)
	require.NoError(t, err)
	require.Len(t, second, 2)
	require.True(t, info.HasMore)
	require.Less(t, int64(second[0].ID), int64(first[1].ID), "pages advance strictly backward in time")

	third, info, err := f.svc.PaymentHistory(context.Background(), "user-1", info.NextPageToken, 2)
	require.NoError(t, err)
	require.Len(t, third, 1)
	require.False(t, info.HasMore)
	require.Empty(t, info.NextPageToken)

	_, _, err = f.svc.PaymentHistory(context.Background(), "user-1", "not-base64!", 2)
	require.True(t, errors.Is(err, domain.ErrInvalidPageToken))
}

func TestGetQuoteUsesFallbackPricesWhenFeedDown(t *testing.T) {
	adapter := &fakeAdapter{balance: decimal.NewFromInt(1000)}
	f := newFixture(t, "pay_quote", adapter, upBridge{})

	q, err := f.svc.GetQuote(context.Background(), paymentRequest())
	require.NoError(t, err)
	require.Equal(t, string(oracle.SourceFallback), q.PriceSource)
	require.Equal(t, "30.14", q.TotalCostUSD.StringFixed(2))
	require.True(t, q.NativeAmountRequired.GreaterThan(decimal.Zero))
}
