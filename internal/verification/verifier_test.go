package verification

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/solacehealth/solace/internal/chain"
	"github.com/solacehealth/solace/internal/payment/domain"
)

type adapterStub struct {
	states []domain.TransactionState
	errs   []error
	calls  atomic.Int64
}

func (s *adapterStub) Family() chain.Family            { return chain.FamilyEVM }
func (s *adapterStub) ValidateAddress(string) error    { return nil }
func (s *adapterStub) NativeBalance(context.Context, string) (decimal.Decimal, error) {
	return decimal.Zero, nil
}
func (s *adapterStub) StableBalance(context.Context, string) (decimal.Decimal, error) {
	return decimal.Zero, nil
}
func (s *adapterStub) Send(context.Context, domain.Currency, string, decimal.Decimal) (*domain.TransferReceipt, error) {
	return nil, errors.New("not implemented")
}

func (s *adapterStub) TransactionStatus(context.Context, string) (*domain.TransactionState, error) {
	n := int(s.calls.Add(1)) - 1
	if n >= len(s.states) {
		n = len(s.states) - 1
	}
	if len(s.errs) > 0 && s.errs[n] != nil {
		return nil, s.errs[n]
	}
	state := s.states[n]
	return &state, nil
}

type sourceStub struct{ adapter domain.Adapter }

func (s *sourceStub) Get(string) (domain.Adapter, error) { return s.adapter, nil }

func newVerifier(t *testing.T, stub *adapterStub, timeout time.Duration) *Verifier {
	t.Helper()
	chains, err := chain.NewRegistry("")
	require.NoError(t, err)
	return NewVerifier(zap.NewNop(), chains, &sourceStub{adapter: stub}, nil, Config{
		PollInterval: time.Millisecond,
		Timeout:      timeout,
	})
}

func TestWaitForConfirmationReachesDepth(t *testing.T) {
	stub := &adapterStub{states: []domain.TransactionState{
		{Found: false},
		{Found: true, Confirmations: 3, BlockHeight: 100},
		{Found: true, Confirmations: 12, BlockHeight: 100},
	}}
	v := newVerifier(t, stub, time.Second)

	state, err := v.WaitForConfirmation(context.Background(), "ethereum", "0xabc")
	require.NoError(t, err)
	require.Equal(t, uint64(12), state.Confirmations)
	require.GreaterOrEqual(t, stub.calls.Load(), int64(3))
}

func TestWaitForConfirmationRevertedFails(t *testing.T) {
	stub := &adapterStub{states: []domain.TransactionState{
		{Found: true, Failed: true, BlockHeight: 50},
	}}
	v := newVerifier(t, stub, time.Second)

	_, err := v.WaitForConfirmation(context.Background(), "ethereum", "0xabc")
	require.True(t, errors.Is(err, domain.ErrTransactionReverted))
}

func TestWaitForConfirmationPendingTimesOut(t *testing.T) {
	stub := &adapterStub{states: []domain.TransactionState{
		{Found: true, Confirmations: 2},
	}}
	v := newVerifier(t, stub, 25*time.Millisecond)

	_, err := v.WaitForConfirmation(context.Background(), "ethereum", "0xabc")
	require.True(t, errors.Is(err, domain.ErrVerificationTimeout), "pending below depth must time out, not fail early")
}

func TestWaitForConfirmationTransientErrorsKeepPolling(t *testing.T) {
	stub := &adapterStub{
		states: []domain.TransactionState{
			{},
			{},
			{Found: true, Confirmations: 12},
		},
		errs: []error{errors.New("rpc unavailable"), errors.New("rpc unavailable"), nil},
	}
	v := newVerifier(t, stub, time.Second)

	state, err := v.WaitForConfirmation(context.Background(), "ethereum", "0xabc")
	require.NoError(t, err)
	require.True(t, state.Confirmations >= 12)
}

func TestWaitForConfirmationCancellationStops(t *testing.T) {
	stub := &adapterStub{states: []domain.TransactionState{{Found: false}}}
	v := newVerifier(t, stub, time.Minute)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()

	_, err := v.WaitForConfirmation(ctx, "ethereum", "0xabc")
	require.True(t, errors.Is(err, context.Canceled))
}
