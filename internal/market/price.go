// Package market tracks the USD price of the chain's native unit, used
// only at the display boundary (valueUsd in broadcast frames).
package market

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"time"
)

// NativeAsset is the cache key for the chain's native unit.
const NativeAsset = "ZIG"

type PriceQuote struct {
	Asset          string
	Currency       string
	Price          float64
	PriceChange24h float64
	MarketCap      float64
	Source         string
	AsOf           time.Time
}

// FetchNativePrice pulls the USD quote for the native asset from CoinGecko.
func FetchNativePrice(ctx context.Context, coingeckoID string) (PriceQuote, error) {
	url := fmt.Sprintf("https://api.coingecko.com/api/v3/simple/price?ids=%s&vs_currencies=usd&include_24hr_change=true&include_market_cap=true", coingeckoID)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return PriceQuote{}, err
	}
	req.Header.Set("User-Agent", "degenter/1.0")

	client := &http.Client{Timeout: 5 * time.Second}
	resp, err := client.Do(req)
	if err != nil {
		return PriceQuote{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return PriceQuote{}, fmt.Errorf("coingecko status: %s", resp.Status)
	}

	var result map[string]struct {
		USD          float64 `json:"usd"`
		USDChange24h float64 `json:"usd_24h_change"`
		USDMarketCap float64 `json:"usd_market_cap"`
	}

	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return PriceQuote{}, err
	}

	if data, ok := result[coingeckoID]; ok {
		return PriceQuote{
			Asset:          NativeAsset,
			Currency:       "usd",
			Price:          data.USD,
			PriceChange24h: data.USDChange24h,
			MarketCap:      data.USDMarketCap,
			Source:         "coingecko",
			AsOf:           time.Now(),
		}, nil
	}

	return PriceQuote{}, fmt.Errorf("coingecko payload missing %s", coingeckoID)
}

// StartPoller refreshes the cache on an interval until ctx is cancelled.
func StartPoller(ctx context.Context, cache *PriceCache, coingeckoID string, every time.Duration) {
	if every <= 0 {
		every = time.Minute
	}
	go func() {
		ticker := time.NewTicker(every)
		defer ticker.Stop()
		for {
			quote, err := FetchNativePrice(ctx, coingeckoID)
			if err != nil {
				log.Printf("[Market] price fetch: %v", err)
			} else {
				cache.Set(NativeAsset, quote.Price, quote.AsOf)
			}
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
			}
		}
	}()
}
