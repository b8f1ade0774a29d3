package oracle

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// symbolToFeedID maps asset symbols to the feed's asset identifiers.
var symbolToFeedID = map[string]string{
	"ETH":   "ethereum",
	"MATIC": "matic-network",
	"BNB":   "binancecoin",
	"AVAX":  "avalanche-2",
	"SOL":   "solana",
	"ATOM":  "cosmos",
	"OSMO":  "osmosis",
	"USDT":  "tether",
	"USDC":  "usd-coin",
}

// HTTPFeed fetches batched USD prices from a CoinGecko-style simple-price
// endpoint.
type HTTPFeed struct {
	baseURL string
	client  *http.Client
}

func NewHTTPFeed(baseURL string, timeout time.Duration) *HTTPFeed {
	return &HTTPFeed{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: timeout},
	}
}

// FetchPrices looks up all symbols in one request. Symbols the feed does not
// know are simply absent from the result; the caller decides how to fill the
// gaps.
func (f *HTTPFeed) FetchPrices(ctx context.Context, symbols []string) (map[string]decimal.Decimal, error) {
	ids := make([]string, 0, len(symbols))
	idToSymbol := make(map[string]string, len(symbols))
	for _, symbol := range symbols {
		symbol = strings.ToUpper(strings.TrimSpace(symbol))
		id, ok := symbolToFeedID[symbol]
		if !ok {
			continue
		}
		ids = append(ids, id)
		idToSymbol[id] = symbol
	}
	if len(ids) == 0 {
		return map[string]decimal.Decimal{}, nil
	}

	endpoint := fmt.Sprintf("%s/simple/price?ids=%s&vs_currencies=usd",
		f.baseURL, url.QueryEscape(strings.Join(ids, ",")))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("price feed request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("price feed status %d", resp.StatusCode)
	}

	var body map[string]struct {
		USD float64 `json:"usd"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("price feed decode: %w", err)
	}

	prices := make(map[string]decimal.Decimal, len(body))
	for id, entry := range body {
		symbol, ok := idToSymbol[id]
		if !ok {
			continue
		}
		price := decimal.NewFromFloat(entry.USD)
		if !price.IsPositive() {
			continue
		}
		prices[symbol] = price
	}
	return prices, nil
}
