package server

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	"github.com/glebarez/sqlite"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/solacehealth/solace/internal/access"
	"github.com/solacehealth/solace/internal/chain"
	"github.com/solacehealth/solace/internal/clock"
	"github.com/solacehealth/solace/internal/config"
	entdomain "github.com/solacehealth/solace/internal/entitlement/domain"
	entrepo "github.com/solacehealth/solace/internal/entitlement/repository"
	entservice "github.com/solacehealth/solace/internal/entitlement/service"
	"github.com/solacehealth/solace/internal/observability"
	"github.com/solacehealth/solace/internal/oracle"
	"github.com/solacehealth/solace/internal/payment/adapters"
	paymentdomain "github.com/solacehealth/solace/internal/payment/domain"
	"github.com/solacehealth/solace/internal/payment/quote"
	paymentrepo "github.com/solacehealth/solace/internal/payment/repository"
	paymentservice "github.com/solacehealth/solace/internal/payment/service"
	"github.com/solacehealth/solace/internal/settlement"
	"github.com/solacehealth/solace/internal/verification"
)

type stubAdapter struct {
	balance decimal.Decimal
}

func (a *stubAdapter) Family() chain.Family         { return chain.FamilyEVM }
func (a *stubAdapter) ValidateAddress(string) error { return nil }

func (a *stubAdapter) NativeBalance(context.Context, string) (decimal.Decimal, error) {
	return a.balance, nil
}

func (a *stubAdapter) StableBalance(context.Context, string) (decimal.Decimal, error) {
	return decimal.Zero, chain.ErrNoStableAsset
}

func (a *stubAdapter) Send(context.Context, paymentdomain.Currency, string, decimal.Decimal) (*paymentdomain.TransferReceipt, error) {
	return &paymentdomain.TransferReceipt{TransactionReference: "0xserved"}, nil
}

func (a *stubAdapter) TransactionStatus(context.Context, string) (*paymentdomain.TransactionState, error) {
	return &paymentdomain.TransactionState{Found: true, Confirmations: 1000, BlockHeight: 7}, nil
}

type stubBridge struct{}

func (stubBridge) Relay(context.Context, settlement.Route, settlement.Message) (string, error) {
	return "bridge-ref", nil
}

type noFeed struct{}

func (noFeed) FetchPrices(context.Context, []string) (map[string]decimal.Decimal, error) {
	return map[string]decimal.Decimal{}, nil
}

func newTestServer(t *testing.T, name string) (*Server, *gorm.DB) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db, err := gorm.Open(sqlite.Open("file:"+name+"?mode=memory&cache=shared"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&paymentdomain.PaymentRecord{},
		&settlement.FallbackSettlement{},
		&entdomain.Subscription{},
		&entdomain.UsageLedgerEntry{},
		&entdomain.EmergencyAccess{},
		&access.Therapist{},
	))

	chains, err := chain.NewRegistry("")
	require.NoError(t, err)

	node, err := snowflake.NewNode(7)
	require.NoError(t, err)

	log := zap.NewNop()
	clk := clock.NewFakeClock(time.Date(2026, 4, 1, 9, 0, 0, 0, time.UTC))

	prices := oracle.NewService(oracle.Params{
		Log:      log,
		Clock:    clk,
		Feed:     noFeed{},
		Fallback: oracle.NewFallbackHolder(log),
	}, 5*time.Minute)

	registry := adapters.NewStaticRegistry(map[string]paymentdomain.Adapter{
		"polygon": &stubAdapter{balance: decimal.NewFromInt(1000)},
	})
	calculator := quote.NewCalculator(log, chains, prices, clk)
	verifier := verification.NewVerifier(log, chains, registry, nil, verification.Config{
		PollInterval: time.Millisecond,
		Timeout:      time.Second,
	})

	ents := entservice.New(log, db, entrepo.New(), node, clk, nil, nil)
	settlements := settlement.NewService(log, db, settlement.NewRepository(), stubBridge{}, chains, node, clk, nil, "polygon")

	cfg := config.Config{
		HTTPAddr:          ":0",
		QuoteFreshness:    5 * time.Minute,
		CollectionAddress: "0x000000000000000000000000000000000000dEaD",
	}

	payments := paymentservice.New(log, db, paymentrepo.New(), chains, registry, calculator, verifier, settlements, ents, prices, node, clk, nil, cfg)
	accessSvc := access.NewService(log, db, ents)

	engine := NewEngine(observability.Config{ServiceName: "solace", Environment: "test", LogLevel: "error"})
	srv := NewServer(ServerParams{
		Gin:          engine,
		Cfg:          cfg,
		DB:           db,
		GenID:        node,
		Chains:       chains,
		Payments:     payments,
		Entitlements: ents,
		AccessSvc:    accessSvc,
	})

	return srv, db
}

func doJSON(t *testing.T, srv *Server, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")

	w := httptest.NewRecorder()
	srv.Engine().ServeHTTP(w, req)
	return w
}

func paymentBody() map[string]any {
	return map[string]any{
		"amount_usd":      "29.99",
		"currency":        "native",
		"source_chain_id": "polygon",
		"metadata": map[string]any{
			"user_id":       "user-9",
			"payment_type":  "subscription",
			"tier_id":       "basic",
			"billing_cycle": "monthly",
		},
	}
}

func TestListChainsAndTiers(t *testing.T) {
	srv, _ := newTestServer(t, "srv_catalog")

	w := doJSON(t, srv, http.MethodGet, "/v1/chains", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var chainsResp struct {
		Chains []chain.Config `json:"chains"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &chainsResp))
	require.NotEmpty(t, chainsResp.Chains)

	w = doJSON(t, srv, http.MethodGet, "/v1/tiers", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var tiersResp struct {
		Tiers []entdomain.Tier `json:"tiers"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &tiersResp))
	require.Len(t, tiersResp.Tiers, 3)
	require.Equal(t, "basic", tiersResp.Tiers[0].ID)
}

func TestCreateQuoteEndpoint(t *testing.T) {
	srv, _ := newTestServer(t, "srv_quote")

	w := doJSON(t, srv, http.MethodPost, "/v1/payments/quote", paymentBody())
	require.Equal(t, http.StatusOK, w.Code)

	var q paymentdomain.PaymentQuote
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &q))
	require.Equal(t, "30.14", q.TotalCostUSD.StringFixed(2))
}

func TestCreateQuoteUnsupportedChainReturns400(t *testing.T) {
	srv, _ := newTestServer(t, "srv_quote_bad")

	body := paymentBody()
	body["source_chain_id"] = "dogechain"

	w := doJSON(t, srv, http.MethodPost, "/v1/payments/quote", body)
	require.Equal(t, http.StatusBadRequest, w.Code)

	var resp errorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Equal(t, "validation_error", resp.Error.Type)
	require.Equal(t, "unsupported_chain", resp.Error.Errors[0].Code)
}

func TestCreatePaymentGrantsAccess(t *testing.T) {
	srv, _ := newTestServer(t, "srv_payment")

	w := doJSON(t, srv, http.MethodPost, "/v1/payments", paymentBody())
	require.Equal(t, http.StatusOK, w.Code)

	var result paymentdomain.PaymentResult
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &result))
	require.True(t, result.Success)
	require.Equal(t, "0xserved", result.TransactionReference)

	w = doJSON(t, srv, http.MethodGet, "/v1/users/user-9/access", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var snapshot access.Snapshot
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &snapshot))
	require.True(t, snapshot.HasActiveSub)
	require.Equal(t, 120, snapshot.RemainingMinutes)
}

func TestAccessSnapshotWithoutSubscription(t *testing.T) {
	srv, _ := newTestServer(t, "srv_access_empty")

	w := doJSON(t, srv, http.MethodGet, "/v1/users/nobody/access", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var snapshot access.Snapshot
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &snapshot))
	require.False(t, snapshot.HasActiveSub)
	require.Zero(t, snapshot.RemainingMinutes)
}

func TestBookingEligibilityDeniedWithoutSubscription(t *testing.T) {
	srv, db := newTestServer(t, "srv_booking")
	require.NoError(t, db.Create(&access.Therapist{ID: "th-1", DisplayName: "Dr. A", Verified: true}).Error)

	w := doJSON(t, srv, http.MethodPost, "/v1/bookings/eligibility", map[string]any{
		"user_id":      "user-9",
		"therapist_id": "th-1",
		"session_type": "individual",
		"minutes":      30,
	})
	require.Equal(t, http.StatusOK, w.Code)

	var decision access.BookingDecision
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &decision))
	require.False(t, decision.Allowed)
	require.Equal(t, "no_active_subscription", decision.Reason)
}

func TestConsumeMinutesWithoutSubscriptionReturns404(t *testing.T) {
	srv, _ := newTestServer(t, "srv_consume")

	w := doJSON(t, srv, http.MethodPost, "/v1/sessions/consume", map[string]any{
		"user_id":      "user-9",
		"session_id":   "sess-1",
		"session_type": "individual",
		"minutes":      30,
	})
	require.Equal(t, http.StatusNotFound, w.Code)
}

func TestUnknownPaymentTypeRejectedAtBinding(t *testing.T) {
	srv, db := newTestServer(t, "srv_badtype")

	body := paymentBody()
	body["metadata"].(map[string]any)["payment_type"] = "donation"

	w := doJSON(t, srv, http.MethodPost, "/v1/payments", body)
	require.Equal(t, http.StatusBadRequest, w.Code)

	var resp errorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Equal(t, "validation_error", resp.Error.Type)

	var count int64
	require.NoError(t, db.Model(&paymentdomain.PaymentRecord{}).Count(&count).Error)
	require.Zero(t, count, "a rejected payment type never reaches execution")
}

func TestMalformedBodyReturnsValidationError(t *testing.T) {
	srv, _ := newTestServer(t, "srv_badbody")

	req := httptest.NewRequest(http.MethodPost, "/v1/payments/quote", bytes.NewBufferString("{"))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	srv.Engine().ServeHTTP(w, req)

	require.Equal(t, http.StatusBadRequest, w.Code)

	var resp errorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Equal(t, "validation_error", resp.Error.Type)
}
