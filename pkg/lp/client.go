package lp

import (
	"bytes"
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/arcsign/swapcore/chainkit"
	"github.com/arcsign/swapcore/internal/retryutil"
	"github.com/arcsign/swapcore/pkg/swaperrors"
)

// httpRetryPolicy is the "individual HTTP calls retry up to 3 times on
// transport errors" policy of spec §4.4.
var httpRetryPolicy = retryutil.Policy{
	InitialInterval: 500 * time.Millisecond,
	MaxInterval:     3 * time.Second,
	MaxElapsedTime:  15 * time.Second,
	MaxRetries:      3,
}

// IntermediaryClient is the typed HTTP surface to one LP (spec §4.2).
type IntermediaryClient struct {
	baseURL string
	client  *http.Client
}

// NewClient builds a client bound to an LP's base URL.
func NewClient(baseURL string, timeout time.Duration) *IntermediaryClient {
	return &IntermediaryClient{baseURL: baseURL, client: &http.Client{Timeout: timeout}}
}

// BaseURL returns the LP base URL this client is bound to, for callers
// that need it to attribute an IntermediaryError.
func (c *IntermediaryClient) BaseURL() string {
	return c.baseURL
}

func (c *IntermediaryClient) do(ctx context.Context, method, path string, query url.Values, body any, prefetch map[string]any) (*ResponseEnvelope, error) {
	var env *ResponseEnvelope
	var nonTransportErr error
	err := retryutil.Do(ctx, httpRetryPolicy, func(ctx context.Context) error {
		e, err := c.doOnce(ctx, method, path, query, body, prefetch)
		if err != nil {
			var netErr *swaperrors.NetworkError
			if !errors.As(err, &netErr) {
				nonTransportErr = err
				return chainkit.NewNonRetryableError("LP_NOT_RETRYABLE", err.Error(), err)
			}
			return err
		}
		env = e
		return nil
	})
	if nonTransportErr != nil {
		return nil, nonTransportErr
	}
	return env, err
}

// prefetchContentType is the wire content-type for the streaming
// request/response body of spec §6: a sequence of length-prefixed JSON
// objects instead of one JSON document.
const prefetchContentType = "application/x-multiple-json"

func (c *IntermediaryClient) doOnce(ctx context.Context, method, path string, query url.Values, body any, prefetch map[string]any) (*ResponseEnvelope, error) {
	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	var reqBody io.Reader
	contentType := "application/json"
	if len(prefetch) > 0 && body != nil {
		streamed, err := encodeRequestStream(body, prefetch)
		if err != nil {
			return nil, err
		}
		reqBody = bytes.NewReader(streamed)
		contentType = prefetchContentType
	} else if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("lp: failed to marshal request body: %w", err)
		}
		reqBody = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, u, reqBody)
	if err != nil {
		return nil, swaperrors.NewNetworkError("lp: failed to build request", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", contentType)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, swaperrors.NewNetworkError("lp: request to "+u+" failed", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, swaperrors.NewNetworkError("lp: failed to read response from "+u, err)
	}

	if resp.StatusCode >= 500 {
		return nil, swaperrors.NewNetworkError(fmt.Sprintf("lp: %s returned %d", u, resp.StatusCode), nil)
	}

	var env ResponseEnvelope
	if isMultipleJSONResponse(resp.Header.Get("Content-Type")) {
		fields, _, err := DecodeMultipleJSON(bytes.NewReader(raw))
		if err != nil {
			return nil, swaperrors.NewRequestError(resp.StatusCode, "lp: failed to parse streamed response body from "+u)
		}
		merged, err := json.Marshal(fields)
		if err != nil {
			return nil, fmt.Errorf("lp: failed to re-marshal streamed response fields: %w", err)
		}
		raw = merged
	}
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, swaperrors.NewRequestError(resp.StatusCode, "lp: failed to parse response body from "+u)
	}

	if resp.StatusCode >= 400 {
		if env.Code == CodeOutOfBoundsMin || env.Code == CodeOutOfBoundsMax {
			return nil, swaperrors.NewOutOfBoundsError(resp.StatusCode, env.Msg, stringField(env.Data, "min"), stringField(env.Data, "max"))
		}
		return nil, swaperrors.NewRequestError(resp.StatusCode, env.Msg)
	}

	return &env, nil
}

func isMultipleJSONResponse(contentType string) bool {
	return strings.HasPrefix(contentType, prefetchContentType)
}

// encodeRequestStream multiplexes a request's own fields and its
// already-available prefetched fields (e.g. a chain fee-rate snapshot
// fetched concurrently with the quote request itself) onto the
// x-multiple-json wire format, prefetched fields first so a streaming
// LP can act on them before the rest of the body arrives.
func encodeRequestStream(body any, prefetch map[string]any) ([]byte, error) {
	raw, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("lp: failed to marshal request body: %w", err)
	}
	var bodyFields map[string]any
	if err := json.Unmarshal(raw, &bodyFields); err != nil {
		return nil, fmt.Errorf("lp: failed to decompose request body into fields: %w", err)
	}

	values := make(map[string]any, len(bodyFields)+len(prefetch))
	keys := make([]string, 0, len(bodyFields)+len(prefetch))
	for k, v := range prefetch {
		values[k] = v
		keys = append(keys, k)
	}
	for k, v := range bodyFields {
		if _, already := values[k]; already {
			continue // a prefetched field wins over the same-named body field
		}
		values[k] = v
		keys = append(keys, k)
	}

	var buf bytes.Buffer
	if err := EncodeMultipleJSON(&buf, keys, values); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func stringField(m map[string]any, key string) string {
	if m == nil {
		return ""
	}
	if v, ok := m[key]; ok {
		return fmt.Sprintf("%v", v)
	}
	return ""
}

// GetInfo runs the discovery handshake: generates a fresh client-side
// nonce, posts it to /info, and returns the raw envelope for the caller
// to verify (spec §4.2 "envelope verification").
func (c *IntermediaryClient) GetInfo(ctx context.Context) (*InfoResponse, string, error) {
	var nonce [32]byte
	if _, err := rand.Read(nonce[:]); err != nil {
		return nil, "", fmt.Errorf("lp: failed to generate discovery nonce: %w", err)
	}
	nonceHex := hex.EncodeToString(nonce[:])

	env, err := c.do(ctx, http.MethodPost, "/info", nil, InfoRequest{Nonce: nonceHex}, nil)
	if err != nil {
		return nil, "", err
	}

	info, err := decodeData[InfoResponse](env)
	if err != nil {
		return nil, "", err
	}
	return info, nonceHex, nil
}

// InitToBTC posts the ToBTC quote request. prefetch optionally carries
// field values already resolved before this call (e.g. a chain
// fee-rate snapshot fetched concurrently with fan-out) that the client
// multiplexes onto the request ahead of the request's own fields
// (spec §6).
func (c *IntermediaryClient) InitToBTC(ctx context.Context, chainID string, req ToBTCRequest, prefetch ...map[string]any) (*QuoteDataDTO, error) {
	return c.initRequest(ctx, "/tobtc/payInvoice", chainID, req, firstPrefetch(prefetch))
}

// InitToBTCLN posts the ToBTCLN quote request (exact-out, or exact-in prepare).
func (c *IntermediaryClient) InitToBTCLN(ctx context.Context, chainID string, req ToBTCLNRequest, prefetch ...map[string]any) (*QuoteDataDTO, error) {
	return c.initRequest(ctx, "/tobtcln/payInvoice", chainID, req, firstPrefetch(prefetch))
}

// PrepareToBTCLNExactIn is InitToBTCLN with ExactIn=true; kept as a
// distinct method so callers don't need to remember to set the flag.
func (c *IntermediaryClient) PrepareToBTCLNExactIn(ctx context.Context, chainID string, req ToBTCLNRequest) (*QuoteDataDTO, error) {
	req.ExactIn = true
	return c.initRequest(ctx, "/tobtcln/payInvoice", chainID, req, nil)
}

// InitToBTCLNExactIn confirms an exact-in prepared quote.
func (c *IntermediaryClient) InitToBTCLNExactIn(ctx context.Context, chainID string, req ToBTCLNExactInConfirmRequest) (*QuoteDataDTO, error) {
	return c.initRequest(ctx, "/tobtcln/payInvoiceExactIn", chainID, req, nil)
}

// InitFromBTC posts the FromBTC quote request.
func (c *IntermediaryClient) InitFromBTC(ctx context.Context, chainID string, req FromBTCRequest, prefetch ...map[string]any) (*QuoteDataDTO, error) {
	return c.initRequest(ctx, "/frombtc/getAddress", chainID, req, firstPrefetch(prefetch))
}

// InitFromBTCLN posts the FromBTCLN quote request.
func (c *IntermediaryClient) InitFromBTCLN(ctx context.Context, chainID string, req FromBTCLNRequest, prefetch ...map[string]any) (*QuoteDataDTO, error) {
	return c.initRequest(ctx, "/frombtcln/createInvoice", chainID, req, firstPrefetch(prefetch))
}

func firstPrefetch(maps []map[string]any) map[string]any {
	for _, m := range maps {
		if len(m) > 0 {
			return m
		}
	}
	return nil
}

func (c *IntermediaryClient) initRequest(ctx context.Context, path, chainID string, body any, prefetch map[string]any) (*QuoteDataDTO, error) {
	query := url.Values{"chain": []string{chainID}}
	env, err := c.do(ctx, http.MethodPost, path, query, body, prefetch)
	if err != nil {
		return nil, err
	}
	return decodeData[QuoteDataDTO](env)
}

// GetRefundAuthorization polls the ToBTC/ToBTCLN post-commit status
// endpoint (spec §4.4 "Post-commit").
func (c *IntermediaryClient) GetRefundAuthorization(ctx context.Context, paymentHash string, sequence string) (*ResponseEnvelope, error) {
	query := url.Values{"paymentHash": []string{paymentHash}}
	if sequence != "" {
		query.Set("sequence", sequence)
	}
	return c.do(ctx, http.MethodGet, "/getRefundAuthorization", query, nil, nil)
}

// GetPaymentAuthorization polls the FromBTCLN post-commit status endpoint.
func (c *IntermediaryClient) GetPaymentAuthorization(ctx context.Context, paymentHash string) (*ResponseEnvelope, error) {
	query := url.Values{"paymentHash": []string{paymentHash}}
	return c.do(ctx, http.MethodGet, "/getInvoicePaymentAuth", query, nil, nil)
}

func decodeData[T any](env *ResponseEnvelope) (*T, error) {
	if env.Code != CodeSuccess {
		return nil, swaperrors.NewIntermediaryError("", env.Msg, nil)
	}
	raw, err := json.Marshal(env.Data)
	if err != nil {
		return nil, fmt.Errorf("lp: failed to re-marshal response data: %w", err)
	}
	var out T
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, swaperrors.NewIntermediaryError("", "response data did not match expected schema", err)
	}
	return &out, nil
}
