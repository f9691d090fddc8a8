package providers

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/arcsign/swapcore/pkg/swaperrors"
)

// CoinGecko is a REST PriceProvider that resolves a token's price
// directly, without a chained-pair conversion (spec §4.1: "REST").
type CoinGecko struct {
	client *http.Client
	// ids maps "chain:token" to CoinGecko's coin id (e.g. "bitcoin").
	ids map[string]string
}

func NewCoinGecko(ids map[string]string) *CoinGecko {
	return &CoinGecko{client: &http.Client{Timeout: defaultProviderTimeout}, ids: ids}
}

func (c *CoinGecko) Name() string { return "coingecko" }

func (c *CoinGecko) GetPrice(ctx context.Context, chain, token string) (int64, error) {
	coinID, ok := c.ids[chain+":"+token]
	if !ok {
		return 0, fmt.Errorf("coingecko: no coin id configured for %s:%s", chain, token)
	}

	btcPerToken, err := c.fetchSimplePrice(ctx, coinID, "btc")
	if err != nil {
		return 0, err
	}
	return int64(btcPerToken * 1e14), nil
}

func (c *CoinGecko) GetUSDPrice(ctx context.Context) (float64, error) {
	return c.fetchSimplePrice(ctx, "bitcoin", "usd")
}

func (c *CoinGecko) fetchSimplePrice(ctx context.Context, coinID, vsCurrency string) (float64, error) {
	url := fmt.Sprintf("https://api.coingecko.com/api/v3/simple/price?ids=%s&vs_currencies=%s", coinID, vsCurrency)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return 0, swaperrors.NewNetworkError("coingecko: failed to build request", err)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return 0, swaperrors.NewNetworkError("coingecko: request failed", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, swaperrors.NewNetworkError("coingecko: failed to read response", err)
	}
	if resp.StatusCode != http.StatusOK {
		return 0, swaperrors.NewRequestError(resp.StatusCode, "coingecko: non-200 response: "+string(body))
	}

	var payload map[string]map[string]float64
	if err := json.Unmarshal(body, &payload); err != nil {
		return 0, fmt.Errorf("coingecko: failed to parse response: %w", err)
	}

	coin, ok := payload[coinID]
	if !ok {
		return 0, fmt.Errorf("coingecko: no data for coin id %s", coinID)
	}
	price, ok := coin[vsCurrency]
	if !ok {
		return 0, fmt.Errorf("coingecko: no %s price for coin id %s", vsCurrency, coinID)
	}
	return price, nil
}
