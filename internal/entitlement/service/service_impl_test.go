package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/solacehealth/solace/internal/clock"
	"github.com/solacehealth/solace/internal/entitlement/domain"
	"github.com/solacehealth/solace/internal/entitlement/repository"
)

func newTestService(t *testing.T, name string) (*Service, *clock.FakeClock, *gorm.DB) {
	t.Helper()

	db, err := gorm.Open(sqlite.Open("file:"+name+"?mode=memory&cache=shared"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&domain.Subscription{},
		&domain.UsageLedgerEntry{},
		&domain.EmergencyAccess{},
	))

	node, err := snowflake.NewNode(2)
	require.NoError(t, err)

	clk := clock.NewFakeClock(time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC))
	svc := New(zap.NewNop(), db, repository.New(), node, clk, nil, nil)
	return svc, clk, db
}

func subscriptionRequest(ref string) domain.ApplyPaymentRequest {
	return domain.ApplyPaymentRequest{
		UserID:               "user-1",
		PaymentType:          "subscription",
		TierID:               domain.TierBasic,
		BillingCycle:         domain.BillingCycleMonthly,
		TransactionReference: ref,
	}
}

func TestApplyPaymentActivatesSubscription(t *testing.T) {
	svc, _, _ := newTestService(t, "ent_activate")

	result, err := svc.ApplyPayment(context.Background(), subscriptionRequest("tx100"))
	require.NoError(t, err)
	require.False(t, result.AlreadyApplied)
	require.Equal(t, 120, result.RemainingMinutes)

	sub, err := svc.ActiveSubscription(context.Background(), "user-1")
	require.NoError(t, err)
	require.Equal(t, domain.TierBasic, sub.TierID)
	require.Equal(t, 120, sub.RemainingMinutes)
}

func TestApplyPaymentReplayIsIdempotent(t *testing.T) {
	svc, _, db := newTestService(t, "ent_replay")

	first, err := svc.ApplyPayment(context.Background(), subscriptionRequest("tx123"))
	require.NoError(t, err)
	require.False(t, first.AlreadyApplied)

	second, err := svc.ApplyPayment(context.Background(), subscriptionRequest("tx123"))
	require.NoError(t, err)
	require.True(t, second.AlreadyApplied)

	var count int64
	require.NoError(t, db.Model(&domain.Subscription{}).Where("user_id = ?", "user-1").Count(&count).Error)
	require.Equal(t, int64(1), count, "replayed reference must not double-grant")
}

func TestApplyPaymentSupersedesPriorActive(t *testing.T) {
	svc, _, db := newTestService(t, "ent_supersede")

	_, err := svc.ApplyPayment(context.Background(), subscriptionRequest("tx1"))
	require.NoError(t, err)

	upgrade := subscriptionRequest("tx2")
	upgrade.TierID = domain.TierPremium
	_, err = svc.ApplyPayment(context.Background(), upgrade)
	require.NoError(t, err)

	var active int64
	require.NoError(t, db.Model(&domain.Subscription{}).
		Where("user_id = ? AND status = ?", "user-1", domain.SubscriptionStatusActive).
		Count(&active).Error)
	require.Equal(t, int64(1), active, "at most one active subscription per user")

	sub, err := svc.ActiveSubscription(context.Background(), "user-1")
	require.NoError(t, err)
	require.Equal(t, domain.TierPremium, sub.TierID)
}

func TestTopUpRequiresActiveSubscription(t *testing.T) {
	svc, _, _ := newTestService(t, "ent_topup_noactive")

	_, err := svc.ApplyPayment(context.Background(), domain.ApplyPaymentRequest{
		UserID:               "user-1",
		PaymentType:          "session_topup",
		AmountUSD:            decimal.NewFromInt(15),
		TransactionReference: "tx-topup",
	})
	require.True(t, errors.Is(err, domain.ErrNoActiveSubscription))
}

func TestTopUpAddsMinutes(t *testing.T) {
	svc, _, _ := newTestService(t, "ent_topup")

	_, err := svc.ApplyPayment(context.Background(), subscriptionRequest("tx1"))
	require.NoError(t, err)

	// $15 at basic's $0.50 a minute buys 30 minutes.
	result, err := svc.ApplyPayment(context.Background(), domain.ApplyPaymentRequest{
		UserID:               "user-1",
		PaymentType:          "session_topup",
		AmountUSD:            decimal.NewFromInt(15),
		TransactionReference: "tx-topup",
	})
	require.NoError(t, err)
	require.Equal(t, 150, result.RemainingMinutes)

	// Replay adds nothing.
	replay, err := svc.ApplyPayment(context.Background(), domain.ApplyPaymentRequest{
		UserID:               "user-1",
		PaymentType:          "session_topup",
		AmountUSD:            decimal.NewFromInt(15),
		TransactionReference: "tx-topup",
	})
	require.NoError(t, err)
	require.True(t, replay.AlreadyApplied)
	require.Equal(t, 150, replay.RemainingMinutes)
}

func TestTopUpMinutesPricedByTier(t *testing.T) {
	svc, _, _ := newTestService(t, "ent_topup_priced")

	_, err := svc.ApplyPayment(context.Background(), subscriptionRequest("tx1"))
	require.NoError(t, err)

	// The credit follows the paid amount, whatever the caller claims: $1
	// buys 2 minutes at basic's rate.
	result, err := svc.ApplyPayment(context.Background(), domain.ApplyPaymentRequest{
		UserID:               "user-1",
		PaymentType:          "session_topup",
		AmountUSD:            decimal.NewFromInt(1),
		TransactionReference: "tx-small",
	})
	require.NoError(t, err)
	require.Equal(t, 122, result.RemainingMinutes)

	// An amount too small to buy a single minute is rejected.
	_, err = svc.ApplyPayment(context.Background(), domain.ApplyPaymentRequest{
		UserID:               "user-1",
		PaymentType:          "session_topup",
		AmountUSD:            decimal.NewFromFloat(0.25),
		TransactionReference: "tx-dust",
	})
	require.True(t, errors.Is(err, domain.ErrInvalidMinutes))
}

func TestConsumeMinutesFloorsAtZero(t *testing.T) {
	svc, _, db := newTestService(t, "ent_floor")

	_, err := svc.ApplyPayment(context.Background(), subscriptionRequest("tx1"))
	require.NoError(t, err)

	// 120 granted; a 200 minute session drains the balance to zero.
	result, err := svc.ConsumeMinutes(context.Background(), domain.ConsumeMinutesRequest{
		UserID:      "user-1",
		SessionID:   "sess-1",
		SessionType: "individual",
		Minutes:     200,
	})
	require.NoError(t, err)
	require.Equal(t, 120, result.MinutesApplied)
	require.Equal(t, 0, result.RemainingMinutes)

	// The overrun is still on the ledger.
	var entry domain.UsageLedgerEntry
	require.NoError(t, db.Where("entry_type = ?", domain.LedgerEntryConsume).First(&entry).Error)
	require.Equal(t, 200, entry.MinutesRequested)
	require.Equal(t, 120, entry.MinutesApplied)
	require.Equal(t, 0, entry.BalanceAfter)
}

func TestConsumeMinutesSequence(t *testing.T) {
	svc, _, _ := newTestService(t, "ent_sequence")

	_, err := svc.ApplyPayment(context.Background(), subscriptionRequest("tx1"))
	require.NoError(t, err)

	first, err := svc.ConsumeMinutes(context.Background(), domain.ConsumeMinutesRequest{
		UserID: "user-1", SessionID: "s1", SessionType: "individual", Minutes: 50,
	})
	require.NoError(t, err)
	require.Equal(t, 70, first.RemainingMinutes)

	second, err := svc.ConsumeMinutes(context.Background(), domain.ConsumeMinutesRequest{
		UserID: "user-1", SessionID: "s2", SessionType: "individual", Minutes: 60,
	})
	require.NoError(t, err)
	require.Equal(t, 10, second.RemainingMinutes)
}

func TestYearlySubscriptionExpiry(t *testing.T) {
	svc, clk, _ := newTestService(t, "ent_yearly")

	req := subscriptionRequest("tx-year")
	req.BillingCycle = domain.BillingCycleYearly
	_, err := svc.ApplyPayment(context.Background(), req)
	require.NoError(t, err)

	sub, err := svc.ActiveSubscription(context.Background(), "user-1")
	require.NoError(t, err)
	require.True(t, sub.ExpiresAt.Equal(clk.Now().AddDate(1, 0, 0)), "yearly runs a calendar year, not 30 days")
}

func TestUnknownBillingCycleRejected(t *testing.T) {
	svc, _, _ := newTestService(t, "ent_badcycle")

	req := subscriptionRequest("tx-weekly")
	req.BillingCycle = "weekly"
	_, err := svc.ApplyPayment(context.Background(), req)
	require.True(t, errors.Is(err, domain.ErrUnknownBillingCycle))
}

func TestLazyExpiry(t *testing.T) {
	svc, clk, _ := newTestService(t, "ent_expiry")

	_, err := svc.ApplyPayment(context.Background(), subscriptionRequest("tx1"))
	require.NoError(t, err)

	clk.Advance(31 * 24 * time.Hour)

	_, err = svc.ActiveSubscription(context.Background(), "user-1")
	require.True(t, errors.Is(err, domain.ErrNoActiveSubscription))
}

func TestEmergencyAccessWindow(t *testing.T) {
	svc, clk, _ := newTestService(t, "ent_emergency")

	_, err := svc.ApplyPayment(context.Background(), domain.ApplyPaymentRequest{
		UserID:               "user-1",
		PaymentType:          "emergency_session",
		TransactionReference: "tx-er",
	})
	require.NoError(t, err)

	grant, err := svc.ActiveEmergencyAccess(context.Background(), "user-1")
	require.NoError(t, err)
	require.NotNil(t, grant)

	clk.Advance(25 * time.Hour)
	grant, err = svc.ActiveEmergencyAccess(context.Background(), "user-1")
	require.NoError(t, err)
	require.Nil(t, grant, "emergency access lapses after 24 hours")
}

func TestSweeperExpiresLapsed(t *testing.T) {
	svc, clk, db := newTestService(t, "ent_sweeper")

	_, err := svc.ApplyPayment(context.Background(), subscriptionRequest("tx1"))
	require.NoError(t, err)

	clk.Advance(31 * 24 * time.Hour)
	NewSweeper(svc, time.Minute).Sweep(context.Background())

	var sub domain.Subscription
	require.NoError(t, db.Where("transaction_reference = ?", "tx1").First(&sub).Error)
	require.Equal(t, domain.SubscriptionStatusExpired, sub.Status)
}
