// Package market defines the market data collaborator contract and its
// HTTP implementation. The core engines only depend on the Provider
// interface; transports and caching layers are swappable.
package market

import (
	"context"

	"trust-trader/internal/domain"
)

// TokenOverview is the current market snapshot for one token as reported
// by the data provider.
type TokenOverview struct {
	Symbol   string
	Name     string
	Decimals int

	Price           float64
	PriceChange24h  float64 // percent
	Volume24h       float64 // USD
	VolumeChange24h float64 // percent
	Trades24h       int64
	TradesChange24h float64 // percent
	LiquidityUsd    float64
	MarketCap       float64
	Holders         int64

	UniqueWallet24h       int64
	UniqueWallet24hChange float64 // percent

	// IsScam is the provider's security verdict.
	IsScam bool
}

// Provider supplies token market data and a trade gate.
type Provider interface {
	// GetTokenOverview returns current market data for a token.
	// forceRefresh bypasses any caching layer and MUST be set before
	// trade-execution decisions.
	GetTokenOverview(ctx context.Context, chain domain.Chain, tokenAddress string, forceRefresh bool) (*TokenOverview, error)

	// ResolveTicker resolves a ticker symbol to a token address. Returns
	// an empty string when the ticker is unknown.
	ResolveTicker(ctx context.Context, chain domain.Chain, ticker string) (string, error)

	// ShouldTradeToken reports whether the token currently passes the
	// provider's tradability gate.
	ShouldTradeToken(ctx context.Context, chain domain.Chain, tokenAddress string) (bool, error)
}
