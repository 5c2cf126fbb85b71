package price

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

const coingeckoBaseURL = "https://api.coingecko.com/api/v3"

// coinIDs maps asset symbols to CoinGecko coin identifiers.
var coinIDs = map[string]string{
	"sol":     "solana",
	"wsol":    "wrapped-solana",
	"msol":    "msol",
	"jitosol": "jito-staked-sol",
	"usdc":    "usd-coin",
	"usdt":    "tether",
}

// CoinGecko is an Oracle backed by the CoinGecko HTTP API.
type CoinGecko struct {
	baseURL string
	apiKey  string
	http    *http.Client
}

// NewCoinGecko creates a CoinGecko oracle. The API key is optional.
func NewCoinGecko(apiKey string) *CoinGecko {
	return &CoinGecko{
		baseURL: coingeckoBaseURL,
		apiKey:  apiKey,
		http:    &http.Client{Timeout: 15 * time.Second},
	}
}

// CurrentPrice returns the current USD price of the asset.
func (c *CoinGecko) CurrentPrice(ctx context.Context, asset string) (decimal.Decimal, error) {
	id, err := coinID(asset)
	if err != nil {
		return decimal.Zero, err
	}

	q := url.Values{}
	q.Set("ids", id)
	q.Set("vs_currencies", "usd")

	var result map[string]struct {
		USD decimal.Decimal `json:"usd"`
	}
	if err := c.get(ctx, "/simple/price", q, &result); err != nil {
		return decimal.Zero, err
	}

	entry, ok := result[id]
	if !ok {
		return decimal.Zero, fmt.Errorf("no current price for %s", asset)
	}
	return entry.USD, nil
}

// HistoricalPrice returns the USD price of the asset on a date.
func (c *CoinGecko) HistoricalPrice(ctx context.Context, asset string, date time.Time) (decimal.Decimal, error) {
	id, err := coinID(asset)
	if err != nil {
		return decimal.Zero, err
	}

	q := url.Values{}
	q.Set("date", date.UTC().Format("02-01-2006"))
	q.Set("localization", "false")

	var result struct {
		MarketData *struct {
			CurrentPrice struct {
				USD decimal.Decimal `json:"usd"`
			} `json:"current_price"`
		} `json:"market_data"`
	}
	if err := c.get(ctx, "/coins/"+id+"/history", q, &result); err != nil {
		return decimal.Zero, err
	}
	if result.MarketData == nil {
		return decimal.Zero, fmt.Errorf("no price for %s on %s", asset, date.Format("2006-01-02"))
	}
	return result.MarketData.CurrentPrice.USD, nil
}

func (c *CoinGecko) get(ctx context.Context, path string, q url.Values, result any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path+"?"+q.Encode(), nil)
	if err != nil {
		return err
	}
	if c.apiKey != "" {
		req.Header.Set("x-cg-demo-api-key", c.apiKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("coingecko %s: %w", path, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("coingecko %s: reading response: %w", path, err)
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("coingecko %s: http %d", path, resp.StatusCode)
	}
	return json.Unmarshal(data, result)
}

func coinID(asset string) (string, error) {
	id, ok := coinIDs[strings.ToLower(asset)]
	if !ok {
		return "", fmt.Errorf("no coingecko id for asset %s", asset)
	}
	return id, nil
}
