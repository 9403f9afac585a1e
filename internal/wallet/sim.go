package wallet

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"trust-trader/internal/domain"
)

// SimWallet is a fully synthetic Provider used for paper trading and
// tests. Fills are deterministic: the fill hash is derived from the swap
// parameters and a monotonic nonce, and output amounts come from a fixed
// rate table.
type SimWallet struct {
	chain    domain.Chain
	address  string
	currency string

	mu      sync.Mutex
	balance int64 // native units
	// rates maps token address to output units per input unit.
	rates map[string]float64
	// held maps ticker symbol to token address.
	held  map[string]string
	nonce uint64
	now   func() time.Time
}

// NewSimWallet creates a simulation wallet with the given native balance.
func NewSimWallet(chain domain.Chain, address string, currency string, balance int64) *SimWallet {
	return &SimWallet{
		chain:    chain,
		address:  address,
		currency: currency,
		balance:  balance,
		rates:    make(map[string]float64),
		held:     make(map[string]string),
		now:      time.Now,
	}
}

// SetRate fixes the output-per-input-unit rate for swaps into token.
func (w *SimWallet) SetRate(token string, rate float64) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.rates[token] = rate
}

// SetBalance overrides the native balance.
func (w *SimWallet) SetBalance(balance int64) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.balance = balance
}

// HoldToken registers a held token so TokenFromWallet can resolve it.
func (w *SimWallet) HoldToken(symbol, token string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.held[symbol] = token
}

// Chain implements Provider.
func (w *SimWallet) Chain() domain.Chain { return w.chain }

// Address implements Provider.
func (w *SimWallet) Address() string { return w.address }

// CurrencyAddress implements Provider.
func (w *SimWallet) CurrencyAddress() string { return w.currency }

// AccountBalance implements Provider.
func (w *SimWallet) AccountBalance(_ context.Context) (int64, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.balance, nil
}

// TokenFromWallet implements Provider.
func (w *SimWallet) TokenFromWallet(_ context.Context, symbol string) (string, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.held[symbol], nil
}

func (w *SimWallet) rate(token string) float64 {
	if r, ok := w.rates[token]; ok {
		return r
	}
	return 1.0
}

// QuoteIn implements Provider using the fixed rate table.
func (w *SimWallet) QuoteIn(_ context.Context, req *QuoteRequest) (*Quote, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	amountOut := int64(float64(req.AmountIn) * w.rate(req.OutputToken))
	data, _ := json.Marshal(map[string]interface{}{
		"inputToken":  req.InputToken,
		"outputToken": req.OutputToken,
		"amountIn":    req.AmountIn,
		"amountOut":   amountOut,
	})
	return &Quote{AmountOut: amountOut, QuoteData: data}, nil
}

// SwapIn implements Provider with a deterministic synthetic fill.
func (w *SimWallet) SwapIn(_ context.Context, req *SwapRequest) (*SwapResult, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	amountOut := int64(float64(req.AmountIn) * w.rate(req.OutputToken))
	if req.MinAmountOut > 0 && amountOut < req.MinAmountOut {
		return nil, fmt.Errorf("%w: %d < %d", ErrQuoteBelowMinOut, amountOut, req.MinAmountOut)
	}

	w.nonce++
	seed := fmt.Sprintf("%s|%s|%d|%d", req.InputToken, req.OutputToken, req.AmountIn, w.nonce)
	sum := sha256.Sum256([]byte(seed))

	if !req.IsSimulation && req.InputToken == w.currency {
		w.balance -= req.AmountIn
	}

	return &SwapResult{
		TxHash:    "sim_" + hex.EncodeToString(sum[:16]),
		AmountOut: amountOut,
		Timestamp: w.now().UnixMilli(),
	}, nil
}

// ExecuteSwap implements Provider, replaying a pre-fetched quote payload.
func (w *SimWallet) ExecuteSwap(ctx context.Context, inputToken, outputToken string, quoteData json.RawMessage) (*SwapResult, error) {
	var q struct {
		AmountIn  int64 `json:"amountIn"`
		AmountOut int64 `json:"amountOut"`
	}
	if err := json.Unmarshal(quoteData, &q); err != nil {
		return nil, fmt.Errorf("decode quote payload: %w", err)
	}
	return w.SwapIn(ctx, &SwapRequest{
		InputToken:   inputToken,
		OutputToken:  outputToken,
		AmountIn:     q.AmountIn,
		IsSimulation: true,
	})
}

var _ Provider = (*SimWallet)(nil)
