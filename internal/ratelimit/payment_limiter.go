package ratelimit

import (
	"context"
	"fmt"
	"strings"

	"github.com/solacehealth/solace/internal/config"
)

const keyPaymentSubmit = "payment:submit:%s"

// PaymentLimiter throttles payment submissions per user. Payments broadcast
// real on-chain transfers, so a runaway client gets cut off before it burns
// gas. Without Redis the limiter is a no-op.
type PaymentLimiter struct {
	bucket *TokenBucket
	rate   float64
	burst  int
}

func NewPaymentLimiter(cfg config.Config, bucket *TokenBucket) *PaymentLimiter {
	if bucket == nil {
		return nil
	}
	if cfg.PaymentRatePerSec <= 0 || cfg.PaymentRateBurst <= 0 {
		return nil
	}
	return &PaymentLimiter{
		bucket: bucket,
		rate:   cfg.PaymentRatePerSec,
		burst:  cfg.PaymentRateBurst,
	}
}

func (l *PaymentLimiter) Enabled() bool {
	return l != nil && l.bucket != nil
}

// AllowUser reports whether the user may submit another payment now. Errors
// from the backing store fail open; rate limiting is protection, not an
// availability dependency.
func (l *PaymentLimiter) AllowUser(ctx context.Context, userID string) (bool, error) {
	if !l.Enabled() {
		return true, nil
	}
	res, err := l.bucket.Allow(ctx, fmt.Sprintf(keyPaymentSubmit, strings.TrimSpace(userID)), l.rate, l.burst)
	if err != nil {
		return true, err
	}
	return res.Allowed, nil
}
