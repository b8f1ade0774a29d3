package ratelimit

import (
	"strings"

	redis "github.com/redis/go-redis/v9"
	"go.uber.org/fx"

	"github.com/solacehealth/solace/internal/config"
)

var Module = fx.Module("rate.limit",
	fx.Provide(
		newRedisClient,
		NewTokenBucket,
		NewLocker,
		NewPaymentLimiter,
	),
)

// newRedisClient returns nil when Redis is not configured. Consumers treat a
// nil client as "feature disabled".
func newRedisClient(cfg config.Config) *redis.Client {
	addr := strings.TrimSpace(cfg.RedisAddr)
	if addr == "" {
		return nil
	}
	return redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: strings.TrimSpace(cfg.RedisPassword),
	})
}
