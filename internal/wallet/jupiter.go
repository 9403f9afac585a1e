package wallet

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"sync/atomic"
	"time"

	"trust-trader/internal/domain"
	"trust-trader/internal/observability"
)

// Default Jupiter wallet configuration.
const (
	DefaultSwapTimeout = 60 * time.Second
	DefaultSlippageBps = 100

	// SolMint is the wrapped SOL mint, the native currency side of swaps.
	SolMint = "So11111111111111111111111111111111111111112"
)

// JupiterConfig configures a JupiterWallet.
type JupiterConfig struct {
	// QuoteEndpoint is the Jupiter-compatible quote/swap API base URL.
	QuoteEndpoint string
	// RPCEndpoint is the Solana JSON-RPC endpoint for balance queries.
	RPCEndpoint string
	// WalletAddress is this wallet's public key (base58).
	WalletAddress string
	// HTTPClient overrides the default client when non-nil.
	HTTPClient *http.Client
}

// JupiterWallet implements Provider for Solana against a Jupiter-compatible
// quote API and a signing relay that broadcasts the built transaction.
// Once a swap is submitted there is no cooperative cancellation; the relay
// runs it to completion or reports failure.
type JupiterWallet struct {
	quoteEndpoint string
	rpcEndpoint   string
	address       string
	client        *http.Client
	now           func() time.Time
	rpcID         atomic.Uint64
}

// NewJupiterWallet creates a Solana wallet provider. Missing endpoints and
// malformed wallet addresses are configuration errors: fatal, no retry.
func NewJupiterWallet(cfg JupiterConfig) (*JupiterWallet, error) {
	if cfg.QuoteEndpoint == "" || cfg.RPCEndpoint == "" {
		return nil, ErrMissingEndpoint
	}
	if err := ValidateAddress(domain.ChainSolana, cfg.WalletAddress); err != nil {
		return nil, err
	}
	if !IsOnCurve(cfg.WalletAddress) {
		return nil, fmt.Errorf("%w: %s: not on curve", ErrInvalidAddress, cfg.WalletAddress)
	}

	client := cfg.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: DefaultSwapTimeout}
	}
	return &JupiterWallet{
		quoteEndpoint: cfg.QuoteEndpoint,
		rpcEndpoint:   cfg.RPCEndpoint,
		address:       cfg.WalletAddress,
		client:        client,
		now:           time.Now,
	}, nil
}

// Chain implements Provider.
func (w *JupiterWallet) Chain() domain.Chain { return domain.ChainSolana }

// Address implements Provider.
func (w *JupiterWallet) Address() string { return w.address }

// CurrencyAddress implements Provider.
func (w *JupiterWallet) CurrencyAddress() string { return SolMint }

// rpcCall performs a single JSON-RPC 2.0 call. Retry policy lives with the
// caller; balance reads are cheap to repeat and swaps must not be.
func (w *JupiterWallet) rpcCall(ctx context.Context, method string, params []interface{}, result interface{}) error {
	body, err := json.Marshal(map[string]interface{}{
		"jsonrpc": "2.0",
		"id":      w.rpcID.Add(1),
		"method":  method,
		"params":  params,
	})
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.rpcEndpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := w.client.Do(req)
	if err != nil {
		return fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status %d: %s", resp.StatusCode, string(respBody))
	}

	var envelope struct {
		Result json.RawMessage `json:"result"`
		Error  *struct {
			Code    int    `json:"code"`
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := json.Unmarshal(respBody, &envelope); err != nil {
		return fmt.Errorf("unmarshal response: %w", err)
	}
	if envelope.Error != nil {
		return fmt.Errorf("rpc error %d: %s", envelope.Error.Code, envelope.Error.Message)
	}
	if result != nil && envelope.Result != nil {
		if err := json.Unmarshal(envelope.Result, result); err != nil {
			return fmt.Errorf("unmarshal result: %w", err)
		}
	}
	return nil
}

// AccountBalance implements Provider via getBalance.
func (w *JupiterWallet) AccountBalance(ctx context.Context) (int64, error) {
	var result struct {
		Value int64 `json:"value"`
	}
	if err := w.rpcCall(ctx, "getBalance", []interface{}{w.address}, &result); err != nil {
		return 0, fmt.Errorf("get balance: %w", err)
	}
	return result.Value, nil
}

// TokenFromWallet implements Provider by listing SPL token accounts and
// matching the symbol from parsed account metadata when present.
func (w *JupiterWallet) TokenFromWallet(ctx context.Context, symbol string) (string, error) {
	params := []interface{}{
		w.address,
		map[string]string{"programId": "TokenkegQfeZyiNwAJbNbGKPFXCWuBvf9Ss623VQ5DA"},
		map[string]string{"encoding": "jsonParsed"},
	}

	var result struct {
		Value []struct {
			Account struct {
				Data struct {
					Parsed struct {
						Info struct {
							Mint        string `json:"mint"`
							TokenAmount struct {
								Amount string `json:"amount"`
							} `json:"tokenAmount"`
						} `json:"info"`
					} `json:"parsed"`
				} `json:"data"`
			} `json:"account"`
		} `json:"value"`
	}
	if err := w.rpcCall(ctx, "getTokenAccountsByOwner", params, &result); err != nil {
		return "", fmt.Errorf("get token accounts: %w", err)
	}

	// The RPC payload carries no symbols; resolve each held mint through
	// the quote API's token list.
	for _, acc := range result.Value {
		info := acc.Account.Data.Parsed.Info
		if info.TokenAmount.Amount == "0" {
			continue
		}
		sym, err := w.tokenSymbol(ctx, info.Mint)
		if err != nil {
			continue // unresolvable mint, keep scanning
		}
		if sym == symbol {
			return info.Mint, nil
		}
	}
	return "", nil
}

func (w *JupiterWallet) tokenSymbol(ctx context.Context, mint string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, w.quoteEndpoint+"/tokens/"+mint, nil)
	if err != nil {
		return "", err
	}
	resp, err := w.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	var data struct {
		Symbol string `json:"symbol"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&data); err != nil {
		return "", err
	}
	return data.Symbol, nil
}

// QuoteIn implements Provider via GET /quote.
func (w *JupiterWallet) QuoteIn(ctx context.Context, qr *QuoteRequest) (_ *Quote, err error) {
	start := time.Now()
	defer func() {
		observability.RecordProviderCall("jupiter", "quote", time.Since(start).Seconds(), err)
	}()

	slippage := qr.SlippageBps
	if slippage <= 0 {
		slippage = DefaultSlippageBps
	}
	query := url.Values{
		"inputMint":   {qr.InputToken},
		"outputMint":  {qr.OutputToken},
		"amount":      {strconv.FormatInt(qr.AmountIn, 10)},
		"slippageBps": {strconv.Itoa(slippage)},
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, w.quoteEndpoint+"/quote?"+query.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	resp, err := w.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("quote request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read quote: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %d: %s", resp.StatusCode, string(body))
	}

	var data struct {
		OutAmount string `json:"outAmount"`
	}
	if err := json.Unmarshal(body, &data); err != nil {
		return nil, fmt.Errorf("unmarshal quote: %w", err)
	}
	amountOut, err := strconv.ParseInt(data.OutAmount, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("parse outAmount %q: %w", data.OutAmount, err)
	}

	return &Quote{AmountOut: amountOut, QuoteData: body}, nil
}

// SwapIn implements Provider. Simulation requests never reach the relay:
// they are filled synthetically from a fresh quote.
func (w *JupiterWallet) SwapIn(ctx context.Context, req *SwapRequest) (*SwapResult, error) {
	quoteData := req.QuoteData
	var amountOut int64

	if quoteData == nil {
		quote, err := w.QuoteIn(ctx, &QuoteRequest{
			InputToken:  req.InputToken,
			OutputToken: req.OutputToken,
			AmountIn:    req.AmountIn,
		})
		if err != nil {
			return nil, err
		}
		if req.MinAmountOut > 0 && quote.AmountOut < req.MinAmountOut {
			return nil, fmt.Errorf("%w: %d < %d", ErrQuoteBelowMinOut, quote.AmountOut, req.MinAmountOut)
		}
		quoteData = quote.QuoteData
		amountOut = quote.AmountOut
	} else {
		var data struct {
			OutAmount string `json:"outAmount"`
		}
		if err := json.Unmarshal(quoteData, &data); err == nil {
			amountOut, _ = strconv.ParseInt(data.OutAmount, 10, 64)
		}
	}

	if req.IsSimulation {
		return &SwapResult{
			TxHash:    fmt.Sprintf("sim_%s_%d", req.OutputToken, w.now().UnixMilli()),
			AmountOut: amountOut,
			Timestamp: w.now().UnixMilli(),
		}, nil
	}

	return w.ExecuteSwap(ctx, req.InputToken, req.OutputToken, quoteData)
}

// ExecuteSwap implements Provider: POSTs the quote payload to the relay,
// which signs, broadcasts, and returns the transaction signature.
func (w *JupiterWallet) ExecuteSwap(ctx context.Context, inputToken, outputToken string, quoteData json.RawMessage) (_ *SwapResult, err error) {
	start := time.Now()
	defer func() {
		observability.RecordProviderCall("jupiter", "swap", time.Since(start).Seconds(), err)
	}()

	body, err := json.Marshal(map[string]interface{}{
		"quoteResponse": quoteData,
		"userPublicKey": w.address,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal swap request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.quoteEndpoint+"/swap", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := w.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("swap request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read swap response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %d: %s", resp.StatusCode, string(respBody))
	}

	var data struct {
		Signature string `json:"signature"`
		OutAmount string `json:"outAmount"`
	}
	if err := json.Unmarshal(respBody, &data); err != nil {
		return nil, fmt.Errorf("unmarshal swap response: %w", err)
	}
	amountOut, _ := strconv.ParseInt(data.OutAmount, 10, 64)

	return &SwapResult{
		TxHash:    data.Signature,
		AmountOut: amountOut,
		Timestamp: w.now().UnixMilli(),
	}, nil
}

var _ Provider = (*JupiterWallet)(nil)
