// Package service orchestrates the payment lifecycle: quote, execute,
// verify, settle, and apply entitlements.
package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/solacehealth/solace/internal/chain"
	"github.com/solacehealth/solace/internal/clock"
	"github.com/solacehealth/solace/internal/config"
	entdomain "github.com/solacehealth/solace/internal/entitlement/domain"
	obsmetrics "github.com/solacehealth/solace/internal/observability/metrics"
	"github.com/solacehealth/solace/internal/oracle"
	"github.com/solacehealth/solace/internal/payment/adapters"
	"github.com/solacehealth/solace/internal/payment/domain"
	"github.com/solacehealth/solace/internal/payment/quote"
	"github.com/solacehealth/solace/internal/payment/repository"
	"github.com/solacehealth/solace/internal/settlement"
	"github.com/solacehealth/solace/internal/verification"
	"github.com/solacehealth/solace/pkg/db/pagination"
)

type Service struct {
	log          *zap.Logger
	db           *gorm.DB
	repo         repository.Repository
	chains       *chain.Registry
	adapters     *adapters.Registry
	calculator   *quote.Calculator
	verifier     *verification.Verifier
	settlements  *settlement.Service
	entitlements entdomain.Service
	prices       oracle.Service
	node         *snowflake.Node
	clock        clock.Clock
	metrics      *obsmetrics.Metrics
	cfg          config.Config
}

func New(
	log *zap.Logger,
	db *gorm.DB,
	repo repository.Repository,
	chains *chain.Registry,
	adapterRegistry *adapters.Registry,
	calculator *quote.Calculator,
	verifier *verification.Verifier,
	settlements *settlement.Service,
	entitlements entdomain.Service,
	prices oracle.Service,
	node *snowflake.Node,
	clk clock.Clock,
	metrics *obsmetrics.Metrics,
	cfg config.Config,
) *Service {
	return &Service{
		log:          log.Named("payment"),
		db:           db,
		repo:         repo,
		chains:       chains,
		adapters:     adapterRegistry,
		calculator:   calculator,
		verifier:     verifier,
		settlements:  settlements,
		entitlements: entitlements,
		prices:       prices,
		node:         node,
		clock:        clk,
		metrics:      metrics,
		cfg:          cfg,
	}
}

// GetQuote prices a payment request.
func (s *Service) GetQuote(ctx context.Context, req domain.PaymentRequest) (*domain.PaymentQuote, error) {
	q, err := s.calculator.Quote(ctx, req.SourceChainID, req.AmountUSD)
	if err != nil {
		return nil, err
	}
	s.metrics.RecordQuote(ctx, q.SourceChainID)
	return q, nil
}

// CanMakePayment reports whether the sender holds enough of the chosen asset
// to cover the request right now.
func (s *Service) CanMakePayment(ctx context.Context, req domain.PaymentRequest) (bool, error) {
	if req.SenderAddress == "" {
		return false, domain.ErrInvalidAddress
	}
	chainCfg, err := s.chains.Get(req.SourceChainID)
	if err != nil {
		return false, err
	}
	adapter, err := s.adapters.Get(chainCfg.ID)
	if err != nil {
		return false, err
	}
	q, err := s.calculator.Quote(ctx, req.SourceChainID, req.AmountUSD)
	if err != nil {
		return false, err
	}

	currency := s.effectiveCurrency(chainCfg, req.Currency)
	required, balance, err := s.requiredAndBalance(ctx, adapter, q, currency, req.SenderAddress)
	if err != nil {
		return false, err
	}
	return balance.GreaterThanOrEqual(required), nil
}

// ProcessPayment executes a payment end to end. Settlement never fails the
// payment; a bridge outage yields an unreconciled settlement reference.
func (s *Service) ProcessPayment(ctx context.Context, req domain.PaymentRequest, staleQuote *domain.PaymentQuote) (*domain.PaymentResult, error) {
	if err := validateIntent(req.Metadata); err != nil {
		return nil, err
	}

	chainCfg, err := s.chains.Get(req.SourceChainID)
	if err != nil {
		return nil, err
	}
	adapter, err := s.adapters.Get(chainCfg.ID)
	if err != nil {
		return nil, err
	}

	destination := strings.TrimSpace(req.DestinationAddress)
	if destination == "" {
		destination = s.cfg.CollectionAddress
	}
	if err := adapter.ValidateAddress(destination); err != nil {
		return nil, err
	}

	// Stale quotes are re-priced rather than rejected; the caller's intent
	// is a USD amount, not an asset amount.
	q := staleQuote
	if q == nil || q.Stale(s.clock.Now(), s.cfg.QuoteFreshness) {
		q, err = s.calculator.Quote(ctx, req.SourceChainID, req.AmountUSD)
		if err != nil {
			return nil, err
		}
	}

	currency := s.effectiveCurrency(chainCfg, req.Currency)

	if req.SenderAddress != "" {
		required, balance, err := s.requiredAndBalance(ctx, adapter, q, currency, req.SenderAddress)
		if err == nil && balance.LessThan(required) {
			return nil, domain.ErrInsufficientBalance
		}
	}

	record := s.newRecord(req, q, chainCfg.ID, currency)
	if err := s.repo.Insert(ctx, s.db, record); err != nil {
		return nil, err
	}
	log := s.log.With(zap.Int64("payment_id", int64(record.ID)), zap.String("chain", chainCfg.ID))

	amount := q.NativeAmountRequired
	if currency == domain.CurrencyStable {
		amount = q.StableAmountRequired
	}

	receipt, err := adapter.Send(ctx, currency, destination, amount)
	if err != nil && currency == domain.CurrencyStable {
		// Any stable-path failure retries through the native asset for the
		// same USD amount.
		log.Warn("stable transfer failed, falling back to native", zap.Error(err))
		currency = domain.CurrencyNative
		receipt, err = adapter.Send(ctx, currency, destination, q.NativeAmountRequired)
		if err == nil {
			if uerr := s.repo.SetCurrency(ctx, s.db, int64(record.ID), currency, s.clock.Now()); uerr != nil {
				log.Error("persist fallback currency", zap.Error(uerr))
			}
		}
	}
	if err != nil {
		return s.fail(ctx, record, err, log)
	}
	if err := s.repo.SetTransactionReference(ctx, s.db, int64(record.ID), receipt.TransactionReference, s.clock.Now()); err != nil {
		log.Error("persist transaction reference", zap.Error(err))
	}

	state, err := s.verifier.WaitForConfirmation(ctx, chainCfg.ID, receipt.TransactionReference)
	if err != nil {
		result, ferr := s.fail(ctx, record, err, log)
		if result != nil {
			result.TransactionReference = receipt.TransactionReference
		}
		return result, ferr
	}
	if err := s.repo.UpdateStatus(ctx, s.db, int64(record.ID), domain.PaymentStatusConfirmed, s.clock.Now()); err != nil {
		log.Error("persist confirmed status", zap.Error(err))
	}

	settled := s.settlements.Settle(ctx, settlement.Message{
		UserID:          req.Metadata.UserID,
		PaymentType:     string(req.Metadata.PaymentType),
		SourceChainID:   chainCfg.ID,
		SourceReference: receipt.TransactionReference,
		AmountUSD:       q.TotalCostUSD,
		OccurredAt:      s.clock.Now(),
	})
	if err := s.repo.SetSettlement(ctx, s.db, int64(record.ID), settled.Reference, settled.Unreconciled, s.clock.Now()); err != nil {
		log.Error("persist settlement reference", zap.Error(err))
	}

	if _, err := s.entitlements.ApplyPayment(ctx, entdomain.ApplyPaymentRequest{
		UserID:               req.Metadata.UserID,
		PaymentType:          string(req.Metadata.PaymentType),
		TierID:               req.Metadata.TierID,
		BillingCycle:         entdomain.BillingCycle(req.Metadata.BillingCycle),
		AmountUSD:            q.AmountUSD,
		TransactionReference: receipt.TransactionReference,
	}); err != nil {
		// The on-chain payment is real even if entitlement application
		// fails; surface the error so the caller can retry the apply.
		log.Error("apply entitlements", zap.Error(err))
		return nil, err
	}

	s.metrics.RecordPayment(ctx, chainCfg.ID, "settled")
	log.Info("payment completed",
		zap.String("transaction_reference", receipt.TransactionReference),
		zap.String("settlement_reference", settled.Reference),
		zap.Bool("unreconciled", settled.Unreconciled),
	)

	return &domain.PaymentResult{
		Success:              true,
		TransactionReference: receipt.TransactionReference,
		SettlementReference:  settled.Reference,
		Unreconciled:         settled.Unreconciled,
		Confirmations:        state.Confirmations,
		BlockHeight:          state.BlockHeight,
		GasUsed:              receipt.GasUsed,
	}, nil
}

// GetUserBalances reads native and stable holdings for an address with USD
// valuations.
func (s *Service) GetUserBalances(ctx context.Context, chainID, address string) ([]domain.Balance, error) {
	chainCfg, err := s.chains.Get(chainID)
	if err != nil {
		return nil, err
	}
	adapter, err := s.adapters.Get(chainCfg.ID)
	if err != nil {
		return nil, err
	}

	symbols := []string{chainCfg.NativeSymbol}
	if chainCfg.HasStableAsset() {
		symbols = append(symbols, chainCfg.StableSymbol)
	}
	prices := s.prices.GetPrices(ctx, symbols)

	native, err := adapter.NativeBalance(ctx, address)
	if err != nil {
		return nil, err
	}
	balances := []domain.Balance{{
		ChainID:  chainCfg.ID,
		Symbol:   chainCfg.NativeSymbol,
		Amount:   native,
		USDValue: native.Mul(prices[strings.ToUpper(chainCfg.NativeSymbol)].Price).Round(2),
	}}

	if chainCfg.HasStableAsset() {
		stable, err := adapter.StableBalance(ctx, address)
		if err != nil && !errors.Is(err, chain.ErrNoStableAsset) {
			return nil, err
		}
		if err == nil {
			balances = append(balances, domain.Balance{
				ChainID:  chainCfg.ID,
				Symbol:   chainCfg.StableSymbol,
				Amount:   stable,
				USDValue: stable.Mul(prices[strings.ToUpper(chainCfg.StableSymbol)].Price).Round(2),
			})
		}
	}
	return balances, nil
}

// GetPayment looks up a payment by its on-chain transaction reference.
func (s *Service) GetPayment(ctx context.Context, reference string) (*domain.PaymentRecord, error) {
	return s.repo.FindByReference(ctx, s.db, reference)
}

// PaymentHistory lists a user's payment records newest first, one cursor
// page at a time.
func (s *Service) PaymentHistory(ctx context.Context, userID, pageToken string, pageSize int) ([]domain.PaymentRecord, *pagination.PageInfo, error) {
	if pageSize <= 0 || pageSize > 250 {
		pageSize = 50
	}

	var cursor *pagination.Cursor
	if pageToken != "" {
		decoded, err := pagination.DecodeCursor(pageToken)
		if err != nil {
			return nil, nil, domain.ErrInvalidPageToken
		}
		cursor = decoded
	}

	records, err := s.repo.ListByUser(ctx, s.db, userID, cursor, pageSize+1)
	if err != nil {
		return nil, nil, err
	}

	info := &pagination.PageInfo{}
	if len(records) > pageSize {
		records = records[:pageSize]
		info.HasMore = true
		token, err := pagination.EncodeCursor(pagination.Cursor{ID: records[len(records)-1].ID.String()})
		if err != nil {
			return nil, nil, err
		}
		info.NextPageToken = token
	}

	return records, info, nil
}

// validateIntent rejects entitlement intents that could never apply, before
// any funds move.
func validateIntent(meta domain.Metadata) error {
	if !meta.PaymentType.Valid() {
		return fmt.Errorf("%w: %q", domain.ErrUnknownPaymentType, meta.PaymentType)
	}
	if meta.PaymentType == domain.PaymentTypeSubscription {
		if _, err := entdomain.TierByID(meta.TierID); err != nil {
			return err
		}
		if _, err := entdomain.BillingCycle(meta.BillingCycle).Normalize(); err != nil {
			return err
		}
	}
	return nil
}

// effectiveCurrency downgrades a stable request to native on chains without
// a stable asset.
func (s *Service) effectiveCurrency(chainCfg chain.Config, requested domain.Currency) domain.Currency {
	if requested == domain.CurrencyStable && !chainCfg.HasStableAsset() {
		return domain.CurrencyNative
	}
	if requested == "" {
		return domain.CurrencyNative
	}
	return requested
}

func (s *Service) requiredAndBalance(ctx context.Context, adapter domain.Adapter, q *domain.PaymentQuote, currency domain.Currency, sender string) (decimal.Decimal, decimal.Decimal, error) {
	if currency == domain.CurrencyStable {
		balance, err := adapter.StableBalance(ctx, sender)
		if err == nil {
			return q.StableAmountRequired, balance, nil
		}
		if !errors.Is(err, chain.ErrNoStableAsset) {
			return decimal.Zero, decimal.Zero, err
		}
	}
	balance, err := adapter.NativeBalance(ctx, sender)
	if err != nil {
		return decimal.Zero, decimal.Zero, err
	}
	return q.NativeAmountRequired, balance, nil
}

func (s *Service) newRecord(req domain.PaymentRequest, q *domain.PaymentQuote, chainID string, currency domain.Currency) *domain.PaymentRecord {
	now := s.clock.Now()
	return &domain.PaymentRecord{
		ID:               s.node.Generate(),
		UserID:           req.Metadata.UserID,
		SourceChainID:    chainID,
		Currency:         currency,
		AmountUSD:        q.AmountUSD,
		ProcessingFeeUSD: q.ProcessingFeeUSD,
		TotalCostUSD:     q.TotalCostUSD,
		Status:           domain.PaymentStatusQuoted,
		PaymentType:      req.Metadata.PaymentType,
		Metadata: datatypes.JSONMap{
			"tier_id":       req.Metadata.TierID,
			"billing_cycle": req.Metadata.BillingCycle,
			"session_id":    req.Metadata.SessionID,
			"price_source":  q.PriceSource,
		},
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func (s *Service) fail(ctx context.Context, record *domain.PaymentRecord, cause error, log *zap.Logger) (*domain.PaymentResult, error) {
	code := failureCode(cause)
	if err := s.repo.SetFailure(ctx, s.db, int64(record.ID), code, s.clock.Now()); err != nil {
		log.Error("persist failure", zap.Error(err))
	}
	s.metrics.RecordPayment(ctx, record.SourceChainID, "failed")
	log.Warn("payment failed", zap.String("code", code), zap.Error(cause))

	return &domain.PaymentResult{
		Success:      false,
		ErrorCode:    code,
		ErrorMessage: cause.Error(),
	}, cause
}

func failureCode(err error) string {
	switch {
	case errors.Is(err, domain.ErrInsufficientBalance):
		return "insufficient_balance"
	case errors.Is(err, domain.ErrSubmissionFailed):
		return "submission_failed"
	case errors.Is(err, domain.ErrVerificationTimeout):
		return "verification_timeout"
	case errors.Is(err, domain.ErrTransactionReverted):
		return "transaction_reverted"
	case errors.Is(err, domain.ErrInvalidAddress):
		return "invalid_address"
	case errors.Is(err, chain.ErrUnsupportedChain):
		return "unsupported_chain"
	default:
		return "internal_error"
	}
}
