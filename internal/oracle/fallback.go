package oracle

import (
	"strings"
	"sync/atomic"

	"github.com/fsnotify/fsnotify"
	"github.com/shopspring/decimal"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

func defaultFallbackPrices() map[string]decimal.Decimal {
	return map[string]decimal.Decimal{
		"ETH":   decimal.RequireFromString("3000"),
		"MATIC": decimal.RequireFromString("0.8"),
		"BNB":   decimal.RequireFromString("600"),
		"AVAX":  decimal.RequireFromString("35"),
		"SOL":   decimal.RequireFromString("150"),
		"ATOM":  decimal.RequireFromString("8"),
		"OSMO":  decimal.RequireFromString("0.5"),
		"USDT":  decimal.RequireFromString("1.00"),
		"USDC":  decimal.RequireFromString("1.00"),
	}
}

// FallbackHolder serves the static last-resort price table. The table is an
// economic safety net, so operators can update it from pricing.yml without a
// restart; reads go through an atomic.Value.
type FallbackHolder struct {
	current atomic.Value // holds map[string]decimal.Decimal
}

func NewFallbackHolder(log *zap.Logger) *FallbackHolder {
	h := &FallbackHolder{}
	h.current.Store(defaultFallbackPrices())

	v := viper.New()
	v.SetConfigName("pricing")
	v.SetConfigType("yml")
	v.AddConfigPath("/etc/solace")
	v.AddConfigPath(".")

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			log.Warn("failed to read pricing config, using defaults", zap.Error(err))
		}
		return h
	}

	h.reload(v, log)
	v.OnConfigChange(func(fsnotify.Event) {
		if err := v.ReadInConfig(); err != nil {
			log.Warn("failed to re-read pricing config", zap.Error(err))
			return
		}
		h.reload(v, log)
	})
	v.WatchConfig()

	return h
}

func (h *FallbackHolder) reload(v *viper.Viper, log *zap.Logger) {
	raw := v.GetStringMapString("fallback_prices_usd")
	if len(raw) == 0 {
		return
	}

	table := defaultFallbackPrices()
	for symbol, value := range raw {
		price, err := decimal.NewFromString(strings.TrimSpace(value))
		if err != nil || !price.IsPositive() {
			log.Warn("ignoring invalid fallback price",
				zap.String("symbol", symbol), zap.String("value", value))
			continue
		}
		table[strings.ToUpper(symbol)] = price
	}
	h.current.Store(table)
	log.Info("fallback price table loaded", zap.Int("symbols", len(table)))
}

// Price returns the fallback USD price for a symbol. Unknown symbols fall
// back to 1.00, which keeps quotes positive even for assets added to the
// registry before the pricing table.
func (h *FallbackHolder) Price(symbol string) decimal.Decimal {
	table := h.current.Load().(map[string]decimal.Decimal)
	if price, ok := table[strings.ToUpper(strings.TrimSpace(symbol))]; ok {
		return price
	}
	return decimal.New(1, 0)
}
