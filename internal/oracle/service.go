package oracle

import (
	"context"
	"strings"
	"time"

	"github.com/solacehealth/solace/internal/clock"
	obsmetrics "github.com/solacehealth/solace/internal/observability/metrics"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

type Params struct {
	fx.In

	Log      *zap.Logger
	Clock    clock.Clock
	Feed     Feed
	Fallback *FallbackHolder
	Metrics  *obsmetrics.Metrics `optional:"true"`
}

type service struct {
	log      *zap.Logger
	clock    clock.Clock
	feed     Feed
	fallback *FallbackHolder
	metrics  *obsmetrics.Metrics

	cache *priceCache
	ttl   time.Duration
}

func NewService(p Params, ttl time.Duration) Service {
	return &service{
		log:      p.Log.Named("oracle.service"),
		clock:    p.Clock,
		feed:     p.Feed,
		fallback: p.Fallback,
		metrics:  p.Metrics,
		cache:    newPriceCache(),
		ttl:      ttl,
	}
}

// GetPrices resolves every requested symbol: cache first, then one batched
// feed call for the misses, then the static fallback per symbol. A degraded
// feed never fails the whole batch and never surfaces as an error.
func (s *service) GetPrices(ctx context.Context, symbols []string) map[string]USDPrice {
	now := s.clock.Now()
	out := make(map[string]USDPrice, len(symbols))

	missing := make([]string, 0, len(symbols))
	for _, raw := range symbols {
		symbol := strings.ToUpper(strings.TrimSpace(raw))
		if symbol == "" {
			continue
		}
		if _, ok := out[symbol]; ok {
			continue
		}
		if entry, ok := s.cache.get(symbol, now, s.ttl); ok {
			entry.Source = SourceCache
			out[symbol] = entry
			continue
		}
		missing = append(missing, symbol)
	}

	if len(missing) == 0 {
		return out
	}

	fetched, err := s.feed.FetchPrices(ctx, missing)
	if err != nil {
		s.log.Warn("price feed unavailable, serving fallbacks",
			zap.Strings("symbols", missing), zap.Error(err))
		fetched = nil
	}

	for _, symbol := range missing {
		if price, ok := fetched[symbol]; ok && price.IsPositive() {
			entry := USDPrice{Symbol: symbol, Price: price, Source: SourceFeed, FetchedAt: now}
			s.cache.put(entry)
			out[symbol] = entry
			continue
		}

		entry := USDPrice{
			Symbol:    symbol,
			Price:     s.fallback.Price(symbol),
			Source:    SourceFallback,
			FetchedAt: now,
		}
		s.cache.put(entry)
		out[symbol] = entry
		s.metrics.RecordOracleFallback(ctx, symbol)
	}

	return out
}
