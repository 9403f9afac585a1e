// Package wallet defines the per-chain wallet/swap collaborator contract:
// balance reporting, swap quoting, and swap execution with a synthetic
// simulation path that never touches chain state.
package wallet

import (
	"context"
	"encoding/json"
	"errors"

	"trust-trader/internal/domain"
)

// Wallet errors.
var (
	// ErrQuoteBelowMinOut is returned when a fresh quote's output is below
	// the caller-supplied minimum-out guard. Never retried.
	ErrQuoteBelowMinOut = errors.New("wallet: quote output below minimum out")

	// ErrMissingEndpoint is returned at construction when a required
	// endpoint is not configured.
	ErrMissingEndpoint = errors.New("wallet: endpoint is required")

	// ErrInvalidAddress is returned when an address fails chain-specific
	// validation.
	ErrInvalidAddress = errors.New("wallet: invalid address")
)

// QuoteRequest asks for a swap quote.
type QuoteRequest struct {
	InputToken  string
	OutputToken string
	AmountIn    int64 // smallest input token unit
	SlippageBps int
}

// Quote is a venue quote plus the opaque payload needed to execute it.
type Quote struct {
	AmountOut int64           // smallest output token unit
	QuoteData json.RawMessage // venue-specific, passed back to ExecuteSwap
}

// SwapRequest asks for a swap execution.
type SwapRequest struct {
	InputToken   string
	OutputToken  string
	AmountIn     int64
	// MinAmountOut rejects the swap if a fresh quote falls below it.
	MinAmountOut int64
	// IsSimulation requests a synthetic fill that never touches chain state.
	IsSimulation bool
	// QuoteData is an optional pre-fetched quote payload.
	QuoteData json.RawMessage
}

// SwapResult reports an executed (or simulated) fill.
type SwapResult struct {
	TxHash    string
	AmountOut int64
	Timestamp int64 // ms
}

// Provider is a per-chain wallet capability.
type Provider interface {
	// Chain returns the chain this wallet operates on.
	Chain() domain.Chain

	// Address returns the wallet's own address.
	Address() string

	// CurrencyAddress returns the native currency mint/address used as the
	// input side of buys.
	CurrencyAddress() string

	// AccountBalance returns the spendable native balance in smallest units.
	AccountBalance(ctx context.Context) (int64, error)

	// TokenFromWallet resolves a ticker symbol to a token address among
	// held tokens. Returns an empty string when not held.
	TokenFromWallet(ctx context.Context, symbol string) (string, error)

	// QuoteIn requests a swap quote.
	QuoteIn(ctx context.Context, req *QuoteRequest) (*Quote, error)

	// SwapIn quotes and executes a swap. Simulation requests return a
	// deterministic synthetic fill.
	SwapIn(ctx context.Context, req *SwapRequest) (*SwapResult, error)

	// ExecuteSwap executes a swap from a pre-fetched quote payload.
	ExecuteSwap(ctx context.Context, inputToken, outputToken string, quoteData json.RawMessage) (*SwapResult, error)
}
