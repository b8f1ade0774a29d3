// Package service implements entitlement application and drawdown.
package service

import (
	"context"
	"fmt"
	"time"

	"github.com/bwmarrin/snowflake"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/solacehealth/solace/internal/clock"
	"github.com/solacehealth/solace/internal/entitlement/domain"
	obsmetrics "github.com/solacehealth/solace/internal/observability/metrics"
	"github.com/solacehealth/solace/internal/ratelimit"
	pkgdb "github.com/solacehealth/solace/pkg/db"
)

const (
	emergencyAccessWindow = 24 * time.Hour
	applyLockTTL          = 10 * time.Second
)

type Service struct {
	log     *zap.Logger
	db      *gorm.DB
	repo    domain.Repository
	node    *snowflake.Node
	clock   clock.Clock
	metrics *obsmetrics.Metrics

	// locker serializes concurrent applies for the same reference as a
	// fast path; the unique reference constraints are the actual
	// correctness guarantee.
	locker *ratelimit.Locker
}

func New(log *zap.Logger, db *gorm.DB, repo domain.Repository, node *snowflake.Node, clk clock.Clock, metrics *obsmetrics.Metrics, locker *ratelimit.Locker) *Service {
	return &Service{
		log:     log.Named("entitlement"),
		db:      db,
		repo:    repo,
		node:    node,
		clock:   clk,
		metrics: metrics,
		locker:  locker,
	}
}

var _ domain.Service = (*Service)(nil)

// ApplyPayment grants entitlements for a confirmed payment. Safe to call
// with the same transaction reference any number of times; only the first
// call changes state.
func (s *Service) ApplyPayment(ctx context.Context, req domain.ApplyPaymentRequest) (*domain.ApplyPaymentResult, error) {
	if req.TransactionReference == "" {
		return nil, fmt.Errorf("missing transaction reference")
	}

	if s.locker != nil {
		lockKey := "entitlement:apply:" + req.TransactionReference
		token, ok, err := s.locker.TryLock(ctx, lockKey, applyLockTTL)
		if err == nil && ok {
			defer func() {
				_ = s.locker.Release(context.WithoutCancel(ctx), lockKey, token)
			}()
		}
	}

	switch req.PaymentType {
	case "subscription":
		return s.applySubscription(ctx, req)
	case "session_topup":
		return s.applyTopUp(ctx, req)
	case "emergency_session":
		return s.applyEmergency(ctx, req)
	default:
		return nil, fmt.Errorf("unknown payment type %q", req.PaymentType)
	}
}

func (s *Service) applySubscription(ctx context.Context, req domain.ApplyPaymentRequest) (*domain.ApplyPaymentResult, error) {
	tier, err := domain.TierByID(req.TierID)
	if err != nil {
		return nil, err
	}

	cycle, err := req.BillingCycle.Normalize()
	if err != nil {
		return nil, err
	}

	now := s.clock.Now()
	sub := &domain.Subscription{
		ID:                   s.node.Generate(),
		UserID:               req.UserID,
		TierID:               tier.ID,
		Status:               domain.SubscriptionStatusActive,
		BillingCycle:         cycle,
		RemainingMinutes:     tier.MinutesPerCycle,
		TransactionReference: req.TransactionReference,
		StartsAt:             now,
		ExpiresAt:            cycle.ExpiresFrom(now),
		CreatedAt:            now,
		UpdatedAt:            now,
	}

	result := &domain.ApplyPaymentResult{}
	err = s.db.Transaction(func(tx *gorm.DB) error {
		inserted, err := s.repo.InsertSubscription(ctx, tx, sub)
		if err != nil {
			return err
		}
		if !inserted {
			result.AlreadyApplied = true
			return nil
		}

		// One active subscription per user; the new one wins.
		if err := s.repo.SupersedeActive(ctx, tx, req.UserID, int64(sub.ID), now); err != nil {
			return err
		}

		ref := req.TransactionReference
		return s.repo.AppendLedger(ctx, tx, &domain.UsageLedgerEntry{
			ID:               s.node.Generate(),
			UserID:           req.UserID,
			SubscriptionID:   sub.ID,
			EntryType:        domain.LedgerEntryGrant,
			MinutesRequested: tier.MinutesPerCycle,
			MinutesApplied:   tier.MinutesPerCycle,
			BalanceAfter:     tier.MinutesPerCycle,
			Reference:        &ref,
			CreatedAt:        now,
		})
	})
	if err != nil {
		return nil, err
	}

	if result.AlreadyApplied {
		s.log.Info("payment already applied", zap.String("reference", req.TransactionReference))
		return result, nil
	}

	s.metrics.RecordSubscriptionActivated(ctx, tier.ID)
	s.log.Info("subscription activated",
		zap.String("tier", tier.ID),
		zap.String("cycle", string(cycle)),
		zap.Int("minutes", tier.MinutesPerCycle),
	)

	result.SubscriptionID = int64(sub.ID)
	result.RemainingMinutes = tier.MinutesPerCycle
	return result, nil
}

func (s *Service) applyTopUp(ctx context.Context, req domain.ApplyPaymentRequest) (*domain.ApplyPaymentResult, error) {
	now := s.clock.Now()
	result := &domain.ApplyPaymentResult{}
	err := s.db.Transaction(func(tx *gorm.DB) error {
		sub, err := s.activeSubscription(ctx, tx, req.UserID)
		if err != nil {
			return err
		}

		// Minutes are priced by the tier, never taken from the request.
		tier, err := domain.TierByID(sub.TierID)
		if err != nil {
			return err
		}
		minutes := int(req.AmountUSD.Div(tier.TopUpRatePerMinute).IntPart())
		if minutes <= 0 {
			return fmt.Errorf("%w: $%s buys no minutes at $%s per minute",
				domain.ErrInvalidMinutes, req.AmountUSD.StringFixed(2), tier.TopUpRatePerMinute.StringFixed(2))
		}

		// Idempotency rides on the ledger's partial unique index over topup
		// references; a replayed confirmation fails the insert.
		ref := req.TransactionReference
		balance := sub.RemainingMinutes + minutes
		if err := s.repo.AppendLedger(ctx, tx, &domain.UsageLedgerEntry{
			ID:               s.node.Generate(),
			UserID:           req.UserID,
			SubscriptionID:   sub.ID,
			EntryType:        domain.LedgerEntryTopUp,
			MinutesRequested: minutes,
			MinutesApplied:   minutes,
			BalanceAfter:     balance,
			Reference:        &ref,
			CreatedAt:        now,
		}); err != nil {
			return err
		}

		if err := s.repo.AddMinutes(ctx, tx, int64(sub.ID), minutes, now); err != nil {
			return err
		}

		result.SubscriptionID = int64(sub.ID)
		result.RemainingMinutes = balance
		return nil
	})
	if err != nil {
		if pkgdb.IsDuplicateKeyErr(err) {
			sub, serr := s.activeSubscription(ctx, s.db, req.UserID)
			if serr != nil {
				return nil, serr
			}
			s.log.Info("payment already applied", zap.String("reference", req.TransactionReference))
			return &domain.ApplyPaymentResult{
				AlreadyApplied:   true,
				SubscriptionID:   int64(sub.ID),
				RemainingMinutes: sub.RemainingMinutes,
			}, nil
		}
		return nil, err
	}

	s.log.Info("minutes topped up", zap.Int("balance", result.RemainingMinutes))
	return result, nil
}

func (s *Service) applyEmergency(ctx context.Context, req domain.ApplyPaymentRequest) (*domain.ApplyPaymentResult, error) {
	now := s.clock.Now()
	grant := &domain.EmergencyAccess{
		ID:                   s.node.Generate(),
		UserID:               req.UserID,
		TransactionReference: req.TransactionReference,
		GrantedAt:            now,
		ExpiresAt:            now.Add(emergencyAccessWindow),
		CreatedAt:            now,
	}

	inserted, err := s.repo.InsertEmergencyAccess(ctx, s.db, grant)
	if err != nil {
		return nil, err
	}
	if !inserted {
		return &domain.ApplyPaymentResult{AlreadyApplied: true}, nil
	}

	s.log.Info("emergency access granted", zap.Time("expires_at", grant.ExpiresAt))
	return &domain.ApplyPaymentResult{}, nil
}

// ConsumeMinutes debits a session against the active subscription. The
// balance floors at zero and the ledger entry is appended regardless, so an
// overrun session is visible in usage history.
func (s *Service) ConsumeMinutes(ctx context.Context, req domain.ConsumeMinutesRequest) (*domain.ConsumeMinutesResult, error) {
	if req.Minutes <= 0 {
		return nil, fmt.Errorf("%w: session minutes must be positive", domain.ErrInvalidMinutes)
	}

	now := s.clock.Now()
	result := &domain.ConsumeMinutesResult{}
	err := s.db.Transaction(func(tx *gorm.DB) error {
		sub, err := s.activeSubscription(ctx, tx, req.UserID)
		if err != nil {
			return err
		}

		applied := req.Minutes
		if applied > sub.RemainingMinutes {
			applied = sub.RemainingMinutes
		}
		balance := sub.RemainingMinutes - applied

		if err := s.repo.SetRemainingMinutes(ctx, tx, int64(sub.ID), balance, now); err != nil {
			return err
		}

		sessionID, sessionType := req.SessionID, req.SessionType
		if err := s.repo.AppendLedger(ctx, tx, &domain.UsageLedgerEntry{
			ID:               s.node.Generate(),
			UserID:           req.UserID,
			SubscriptionID:   sub.ID,
			EntryType:        domain.LedgerEntryConsume,
			SessionID:        &sessionID,
			SessionType:      &sessionType,
			MinutesRequested: req.Minutes,
			MinutesApplied:   applied,
			BalanceAfter:     balance,
			CreatedAt:        now,
		}); err != nil {
			return err
		}

		result.MinutesApplied = applied
		result.RemainingMinutes = balance
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.metrics.RecordMinutesConsumed(ctx, req.SessionType, int64(result.MinutesApplied))
	return result, nil
}

// ActiveSubscription returns the user's active subscription, expiring it
// lazily when its period has lapsed.
func (s *Service) ActiveSubscription(ctx context.Context, userID string) (*domain.Subscription, error) {
	return s.activeSubscription(ctx, s.db, userID)
}

func (s *Service) activeSubscription(ctx context.Context, db *gorm.DB, userID string) (*domain.Subscription, error) {
	sub, err := s.repo.FindActiveByUserID(ctx, db, userID)
	if err != nil {
		return nil, err
	}

	if !sub.ExpiresAt.After(s.clock.Now()) {
		if err := s.repo.UpdateStatus(ctx, db, int64(sub.ID), domain.SubscriptionStatusExpired, s.clock.Now()); err != nil {
			return nil, err
		}
		return nil, domain.ErrNoActiveSubscription
	}
	return sub, nil
}

func (s *Service) ActiveEmergencyAccess(ctx context.Context, userID string) (*domain.EmergencyAccess, error) {
	return s.repo.FindActiveEmergencyAccess(ctx, s.db, userID, s.clock.Now())
}

func (s *Service) UsageHistory(ctx context.Context, userID string, limit int) ([]domain.UsageLedgerEntry, error) {
	if limit <= 0 || limit > 250 {
		limit = 50
	}
	return s.repo.ListLedger(ctx, s.db, userID, limit)
}
