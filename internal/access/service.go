package access

import (
	"context"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"

	entdomain "github.com/solacehealth/solace/internal/entitlement/domain"
)

// Service projects entitlement state into access decisions.
type Service struct {
	log          *zap.Logger
	db           *gorm.DB
	entitlements entdomain.Service
}

func NewService(log *zap.Logger, db *gorm.DB, entitlements entdomain.Service) *Service {
	return &Service{
		log:          log.Named("access"),
		db:           db,
		entitlements: entitlements,
	}
}

// CheckAccess reports the user's current subscription and emergency state.
// Absence of a subscription is a valid snapshot, not an error.
func (s *Service) CheckAccess(ctx context.Context, userID string) (*Snapshot, error) {
	snapshot := &Snapshot{UserID: userID}

	sub, err := s.entitlements.ActiveSubscription(ctx, userID)
	switch {
	case err == nil:
		snapshot.HasActiveSub = true
		snapshot.TierID = sub.TierID
		snapshot.RemainingMinutes = sub.RemainingMinutes
		expires := sub.ExpiresAt
		snapshot.SubscriptionExpires = &expires
	case errors.Is(err, entdomain.ErrNoActiveSubscription):
		// fall through; snapshot stays empty
	default:
		return nil, err
	}

	grant, err := s.entitlements.ActiveEmergencyAccess(ctx, userID)
	if err != nil {
		return nil, err
	}
	if grant != nil {
		snapshot.EmergencyAccess = true
		expires := grant.ExpiresAt
		snapshot.EmergencyExpires = &expires
	}

	return snapshot, nil
}

// CanBookSession checks, in order: active entitlement, therapist
// verification, session type allowed by tier, and sufficient minutes. The
// first failed check denies the booking, except a minute shortfall, which
// still allows it and prices the missing minutes.
func (s *Service) CanBookSession(ctx context.Context, userID, therapistID string, sessionType SessionType, minutes int) (*BookingDecision, error) {
	if minutes <= 0 {
		return nil, fmt.Errorf("%w: session minutes must be positive", entdomain.ErrInvalidMinutes)
	}

	// Emergency sessions ride on a standing grant; no minutes are debited.
	if sessionType == SessionEmergency {
		grant, err := s.entitlements.ActiveEmergencyAccess(ctx, userID)
		if err != nil {
			return nil, err
		}
		if grant != nil {
			return &BookingDecision{Allowed: true}, nil
		}
	}

	sub, err := s.entitlements.ActiveSubscription(ctx, userID)
	if err != nil {
		if errors.Is(err, entdomain.ErrNoActiveSubscription) {
			return &BookingDecision{Reason: "no_active_subscription"}, nil
		}
		return nil, err
	}

	therapist, err := s.findTherapist(ctx, therapistID)
	if err != nil {
		return nil, err
	}
	if !therapist.Verified {
		return &BookingDecision{Reason: "therapist_unverified", RemainingMinutes: sub.RemainingMinutes}, nil
	}

	tier, err := entdomain.TierByID(sub.TierID)
	if err != nil {
		return nil, err
	}
	if !sessionTypeAllowed(tier, sessionType) {
		return &BookingDecision{Reason: "session_type_not_in_tier", RemainingMinutes: sub.RemainingMinutes}, nil
	}

	if minutes > sub.RemainingMinutes {
		// A minute shortfall does not block the booking; the decision
		// carries the exact top-up price for the missing minutes.
		shortfall := minutes - sub.RemainingMinutes
		topUp := tier.TopUpRatePerMinute.Mul(decimal.NewFromInt(int64(shortfall))).Round(2)
		return &BookingDecision{
			Allowed:          true,
			Reason:           "insufficient_minutes",
			RemainingMinutes: sub.RemainingMinutes,
			RequiredTopUpUSD: topUp,
			SubscriptionID:   sub.ID,
		}, nil
	}

	return &BookingDecision{
		Allowed:          true,
		RemainingMinutes: sub.RemainingMinutes,
		SubscriptionID:   sub.ID,
	}, nil
}

func (s *Service) findTherapist(ctx context.Context, therapistID string) (*Therapist, error) {
	var therapist Therapist
	err := s.db.WithContext(ctx).Where("id = ?", therapistID).First(&therapist).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			// Unknown providers are treated as unverified rather than a
			// distinct error; the caller cannot enumerate the roster.
			return &Therapist{ID: therapistID}, nil
		}
		return nil, err
	}
	return &therapist, nil
}

func sessionTypeAllowed(tier entdomain.Tier, sessionType SessionType) bool {
	switch sessionType {
	case SessionIndividual:
		return true
	case SessionGroup:
		return tier.GroupSessions
	case SessionEmergency:
		return tier.EmergencySessions
	default:
		return false
	}
}
