package providers

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/arcsign/swapcore/pkg/swaperrors"
)

// CoinPaprika is a REST PriceProvider, the fourth fail-over leaf.
type CoinPaprika struct {
	client *http.Client
	// ids maps "chain:token" to CoinPaprika's coin id (e.g. "btc-bitcoin").
	ids map[string]string
}

func NewCoinPaprika(ids map[string]string) *CoinPaprika {
	return &CoinPaprika{client: &http.Client{Timeout: defaultProviderTimeout}, ids: ids}
}

func (c *CoinPaprika) Name() string { return "coinpaprika" }

func (c *CoinPaprika) GetPrice(ctx context.Context, chain, token string) (int64, error) {
	coinID, ok := c.ids[chain+":"+token]
	if !ok {
		return 0, fmt.Errorf("coinpaprika: no coin id configured for %s:%s", chain, token)
	}

	usdPerToken, err := c.fetchUSDPrice(ctx, coinID)
	if err != nil {
		return 0, err
	}
	usdPerBTC, err := c.fetchUSDPrice(ctx, "btc-bitcoin")
	if err != nil {
		return 0, err
	}
	if usdPerBTC <= 0 {
		return 0, fmt.Errorf("coinpaprika: non-positive BTC/USD price")
	}

	btcPerToken := usdPerToken / usdPerBTC
	return int64(btcPerToken * 1e14), nil
}

func (c *CoinPaprika) GetUSDPrice(ctx context.Context) (float64, error) {
	return c.fetchUSDPrice(ctx, "btc-bitcoin")
}

func (c *CoinPaprika) fetchUSDPrice(ctx context.Context, coinID string) (float64, error) {
	url := "https://api.coinpaprika.com/v1/tickers/" + coinID
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return 0, swaperrors.NewNetworkError("coinpaprika: failed to build request", err)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return 0, swaperrors.NewNetworkError("coinpaprika: request failed", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, swaperrors.NewNetworkError("coinpaprika: failed to read response", err)
	}
	if resp.StatusCode != http.StatusOK {
		return 0, swaperrors.NewRequestError(resp.StatusCode, "coinpaprika: non-200 response: "+string(body))
	}

	var payload struct {
		Quotes struct {
			USD struct {
				Price float64 `json:"price"`
			} `json:"USD"`
		} `json:"quotes"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return 0, fmt.Errorf("coinpaprika: failed to parse response: %w", err)
	}
	return payload.Quotes.USD.Price, nil
}
