package providers

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/arcsign/swapcore/pkg/swaperrors"
)

// OKX is a PriceProvider backed by OKX's public ticker endpoint.
type OKX struct {
	client *http.Client
	pairs  map[string]PairChain
}

func NewOKX(pairs map[string]PairChain) *OKX {
	return &OKX{client: &http.Client{Timeout: defaultProviderTimeout}, pairs: pairs}
}

func (o *OKX) Name() string { return "okx" }

func (o *OKX) GetPrice(ctx context.Context, chain, token string) (int64, error) {
	chainToken := chain + ":" + token
	pairChain, ok := o.pairs[chainToken]
	if !ok {
		return 0, fmt.Errorf("okx: no pair configured for %s", chainToken)
	}

	btcPrice := 1.0
	for _, leg := range pairChain {
		price, err := o.fetchTickerPrice(ctx, leg[0])
		if err != nil {
			return 0, err
		}
		if leg[1] == "inverse" {
			btcPrice /= price
		} else {
			btcPrice *= price
		}
	}
	return int64(btcPrice * 1e14), nil
}

func (o *OKX) GetUSDPrice(ctx context.Context) (float64, error) {
	return o.fetchTickerPrice(ctx, "BTC-USDT")
}

func (o *OKX) fetchTickerPrice(ctx context.Context, instID string) (float64, error) {
	url := "https://www.okx.com/api/v5/market/ticker?instId=" + instID
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return 0, swaperrors.NewNetworkError("okx: failed to build request", err)
	}

	resp, err := o.client.Do(req)
	if err != nil {
		return 0, swaperrors.NewNetworkError("okx: request failed", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, swaperrors.NewNetworkError("okx: failed to read response", err)
	}
	if resp.StatusCode != http.StatusOK {
		return 0, swaperrors.NewRequestError(resp.StatusCode, "okx: non-200 response: "+string(body))
	}

	var payload struct {
		Code string `json:"code"`
		Data []struct {
			Last string `json:"last"`
		} `json:"data"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return 0, fmt.Errorf("okx: failed to parse response: %w", err)
	}
	if payload.Code != "0" || len(payload.Data) == 0 {
		return 0, fmt.Errorf("okx: empty or error response for %s", instID)
	}

	price, err := strconv.ParseFloat(payload.Data[0].Last, 64)
	if err != nil {
		return 0, fmt.Errorf("okx: invalid last field %q: %w", payload.Data[0].Last, err)
	}
	return price, nil
}
