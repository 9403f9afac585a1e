package market

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"trust-trader/internal/domain"
	"trust-trader/internal/observability"
)

// Default client configuration.
const (
	DefaultTimeout     = 30 * time.Second
	DefaultMaxRetries  = 3
	DefaultRetryDelay  = 1 * time.Second
	DefaultMaxDelay    = 10 * time.Second
	DefaultBackoffMult = 2.0

	// DefaultMinTradeLiquidityUsd is the liquidity floor below which
	// ShouldTradeToken rejects a token.
	DefaultMinTradeLiquidityUsd = 1_000.0
)

// ErrMissingAPIKey is returned at construction when no API key is supplied.
// Configuration errors are fatal: no retry, fail fast.
var ErrMissingAPIKey = errors.New("market: API key is required")

// BirdeyeClient implements Provider against a Birdeye-compatible REST API.
type BirdeyeClient struct {
	baseURL     string
	apiKey      string
	client      *http.Client
	maxRetries  int
	retryDelay  time.Duration
	maxDelay    time.Duration
	backoffMult float64

	minTradeLiquidityUsd float64
}

// BirdeyeOption configures BirdeyeClient.
type BirdeyeOption func(*BirdeyeClient)

// WithTimeout sets HTTP client timeout.
func WithTimeout(d time.Duration) BirdeyeOption {
	return func(c *BirdeyeClient) {
		c.client.Timeout = d
	}
}

// WithMaxRetries sets maximum retry attempts for transient failures.
func WithMaxRetries(n int) BirdeyeOption {
	return func(c *BirdeyeClient) {
		c.maxRetries = n
	}
}

// WithRetryDelay sets initial retry delay.
func WithRetryDelay(d time.Duration) BirdeyeOption {
	return func(c *BirdeyeClient) {
		c.retryDelay = d
	}
}

// WithHTTPClient sets a custom http.Client.
func WithHTTPClient(client *http.Client) BirdeyeOption {
	return func(c *BirdeyeClient) {
		c.client = client
	}
}

// WithMinTradeLiquidity sets the liquidity floor used by ShouldTradeToken.
func WithMinTradeLiquidity(usd float64) BirdeyeOption {
	return func(c *BirdeyeClient) {
		c.minTradeLiquidityUsd = usd
	}
}

// NewBirdeyeClient creates a market data client. Returns ErrMissingAPIKey
// when apiKey is empty.
func NewBirdeyeClient(baseURL, apiKey string, opts ...BirdeyeOption) (*BirdeyeClient, error) {
	if apiKey == "" {
		return nil, ErrMissingAPIKey
	}

	c := &BirdeyeClient{
		baseURL:              baseURL,
		apiKey:               apiKey,
		client:               &http.Client{Timeout: DefaultTimeout},
		maxRetries:           DefaultMaxRetries,
		retryDelay:           DefaultRetryDelay,
		maxDelay:             DefaultMaxDelay,
		backoffMult:          DefaultBackoffMult,
		minTradeLiquidityUsd: DefaultMinTradeLiquidityUsd,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// retryableStatus enumerates the HTTP statuses worth retrying. Anything
// else fails immediately.
func retryableStatus(code int) bool {
	switch code {
	case http.StatusTooManyRequests,
		http.StatusInternalServerError,
		http.StatusBadGateway,
		http.StatusServiceUnavailable,
		http.StatusGatewayTimeout:
		return true
	}
	return false
}

// get performs a GET with bounded exponential backoff and decodes the
// provider's {success, data} envelope into result.
func (c *BirdeyeClient) get(ctx context.Context, chain domain.Chain, path string, query url.Values, result interface{}) error {
	start := time.Now()
	err := c.doGet(ctx, chain, path, query, result)
	observability.RecordProviderCall("birdeye", path, time.Since(start).Seconds(), err)
	return err
}

func (c *BirdeyeClient) doGet(ctx context.Context, chain domain.Chain, path string, query url.Values, result interface{}) error {
	u := fmt.Sprintf("%s%s?%s", c.baseURL, path, query.Encode())

	delay := c.retryDelay
	var lastErr error

	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
			delay = time.Duration(float64(delay) * c.backoffMult)
			if delay > c.maxDelay {
				delay = c.maxDelay
			}
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
		if err != nil {
			return fmt.Errorf("create request: %w", err)
		}
		req.Header.Set("X-API-KEY", c.apiKey)
		req.Header.Set("x-chain", string(chain))
		req.Header.Set("Accept", "application/json")

		resp, err := c.client.Do(req)
		if err != nil {
			lastErr = fmt.Errorf("http request: %w", err)
			continue
		}

		respBody, err := io.ReadAll(resp.Body)
		resp.Body.Close()
		if err != nil {
			lastErr = fmt.Errorf("read response: %w", err)
			continue
		}

		if retryableStatus(resp.StatusCode) {
			lastErr = fmt.Errorf("transient status %d", resp.StatusCode)
			continue
		}
		if resp.StatusCode != http.StatusOK {
			return fmt.Errorf("unexpected status %d: %s", resp.StatusCode, string(respBody))
		}

		var envelope struct {
			Success bool            `json:"success"`
			Message string          `json:"message"`
			Data    json.RawMessage `json:"data"`
		}
		if err := json.Unmarshal(respBody, &envelope); err != nil {
			return fmt.Errorf("unmarshal envelope: %w", err)
		}
		if !envelope.Success {
			return fmt.Errorf("provider error: %s", envelope.Message)
		}
		if result != nil && envelope.Data != nil {
			if err := json.Unmarshal(envelope.Data, result); err != nil {
				return fmt.Errorf("unmarshal data: %w", err)
			}
		}
		return nil
	}

	return fmt.Errorf("max retries exceeded: %w", lastErr)
}

// tokenOverviewData is the raw provider payload for token_overview.
type tokenOverviewData struct {
	Symbol                string  `json:"symbol"`
	Name                  string  `json:"name"`
	Decimals              int     `json:"decimals"`
	Price                 float64 `json:"price"`
	PriceChange24hPercent float64 `json:"priceChange24hPercent"`
	V24hUSD               float64 `json:"v24hUSD"`
	V24hChangePercent     float64 `json:"v24hChangePercent"`
	Trade24h              int64   `json:"trade24h"`
	Trade24hChangePercent float64 `json:"trade24hChangePercent"`
	Liquidity             float64 `json:"liquidity"`
	MarketCap             float64 `json:"mc"`
	Holder                int64   `json:"holder"`
	UniqueWallet24h       int64   `json:"uniqueWallet24h"`
	UniqueWallet24hChange float64 `json:"uniqueWallet24hChangePercent"`
	IsScam                bool    `json:"isScam"`
}

// GetTokenOverview implements Provider. The HTTP client has no cache of its
// own, so forceRefresh is accepted and ignored here; the flag matters to
// wrapping cache layers.
func (c *BirdeyeClient) GetTokenOverview(ctx context.Context, chain domain.Chain, tokenAddress string, _ bool) (*TokenOverview, error) {
	query := url.Values{"address": {tokenAddress}}

	var data tokenOverviewData
	if err := c.get(ctx, chain, "/defi/token_overview", query, &data); err != nil {
		return nil, fmt.Errorf("get token overview: %w", err)
	}

	return &TokenOverview{
		Symbol:                data.Symbol,
		Name:                  data.Name,
		Decimals:              data.Decimals,
		Price:                 data.Price,
		PriceChange24h:        data.PriceChange24hPercent,
		Volume24h:             data.V24hUSD,
		VolumeChange24h:       data.V24hChangePercent,
		Trades24h:             data.Trade24h,
		TradesChange24h:       data.Trade24hChangePercent,
		LiquidityUsd:          data.Liquidity,
		MarketCap:             data.MarketCap,
		Holders:               data.Holder,
		UniqueWallet24h:       data.UniqueWallet24h,
		UniqueWallet24hChange: data.UniqueWallet24hChange,
		IsScam:                data.IsScam,
	}, nil
}

// ResolveTicker implements Provider via the provider's token search.
func (c *BirdeyeClient) ResolveTicker(ctx context.Context, chain domain.Chain, ticker string) (string, error) {
	query := url.Values{
		"keyword": {ticker},
		"target":  {"token"},
	}

	var data struct {
		Items []struct {
			Address string `json:"address"`
			Symbol  string `json:"symbol"`
		} `json:"items"`
	}
	if err := c.get(ctx, chain, "/defi/v3/search", query, &data); err != nil {
		return "", fmt.Errorf("resolve ticker: %w", err)
	}

	for _, item := range data.Items {
		if item.Symbol == ticker {
			return item.Address, nil
		}
	}
	return "", nil
}

// ShouldTradeToken implements Provider: rejects scam-flagged tokens and
// tokens below the liquidity floor.
func (c *BirdeyeClient) ShouldTradeToken(ctx context.Context, chain domain.Chain, tokenAddress string) (bool, error) {
	overview, err := c.GetTokenOverview(ctx, chain, tokenAddress, true)
	if err != nil {
		return false, err
	}
	if overview.IsScam {
		return false, nil
	}
	if overview.LiquidityUsd < c.minTradeLiquidityUsd {
		return false, nil
	}
	return true, nil
}

var _ Provider = (*BirdeyeClient)(nil)
