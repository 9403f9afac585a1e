package postgres

import (
	"context"
	"fmt"

	"trust-trader/internal/domain"
	"trust-trader/internal/storage"
)

// TokenPerformanceStore implements storage.TokenPerformanceStore using
// PostgreSQL.
type TokenPerformanceStore struct {
	db Querier
}

// NewTokenPerformanceStore creates a new TokenPerformanceStore.
func NewTokenPerformanceStore(pool *Pool) *TokenPerformanceStore {
	return &TokenPerformanceStore{db: pool}
}

// Compile-time interface check.
var _ storage.TokenPerformanceStore = (*TokenPerformanceStore)(nil)

// Upsert writes the snapshot for (chain, token_address), replacing any
// previous value.
func (s *TokenPerformanceStore) Upsert(ctx context.Context, tp *domain.TokenPerformance) error {
	query := `
		INSERT INTO token_performance (
			chain, token_address, symbol, name, decimals,
			price, price_change_24h, volume_24h, volume_change_24h,
			trades_24h, trades_change_24h, liquidity_usd, holders,
			unique_wallet_24h, unique_wallet_delta, initial_market_cap,
			current_market_cap, rug_pull, is_scam, sustained_growth,
			rapid_dump, suspicious_volume, validation_trust, last_updated
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12,
			$13, $14, $15, $16, $17, $18, $19, $20, $21, $22, $23, $24
		)
		ON CONFLICT (chain, token_address) DO UPDATE SET
			symbol = EXCLUDED.symbol,
			name = EXCLUDED.name,
			decimals = EXCLUDED.decimals,
			price = EXCLUDED.price,
			price_change_24h = EXCLUDED.price_change_24h,
			volume_24h = EXCLUDED.volume_24h,
			volume_change_24h = EXCLUDED.volume_change_24h,
			trades_24h = EXCLUDED.trades_24h,
			trades_change_24h = EXCLUDED.trades_change_24h,
			liquidity_usd = EXCLUDED.liquidity_usd,
			holders = EXCLUDED.holders,
			unique_wallet_24h = EXCLUDED.unique_wallet_24h,
			unique_wallet_delta = EXCLUDED.unique_wallet_delta,
			initial_market_cap = EXCLUDED.initial_market_cap,
			current_market_cap = EXCLUDED.current_market_cap,
			rug_pull = EXCLUDED.rug_pull,
			is_scam = EXCLUDED.is_scam,
			sustained_growth = EXCLUDED.sustained_growth,
			rapid_dump = EXCLUDED.rapid_dump,
			suspicious_volume = EXCLUDED.suspicious_volume,
			validation_trust = EXCLUDED.validation_trust,
			last_updated = EXCLUDED.last_updated
	`

	_, err := s.db.Exec(ctx, query,
		string(tp.Chain),
		tp.TokenAddress,
		tp.Symbol,
		tp.Name,
		tp.Decimals,
		tp.Price,
		tp.PriceChange24h,
		tp.Volume24h,
		tp.VolumeChange24h,
		tp.Trades24h,
		tp.TradesChange24h,
		tp.LiquidityUsd,
		tp.Holders,
		tp.UniqueWallet24h,
		tp.UniqueWalletDelta,
		tp.InitialMarketCap,
		tp.CurrentMarketCap,
		tp.RugPull,
		tp.IsScam,
		tp.SustainedGrowth,
		tp.RapidDump,
		tp.SuspiciousVolume,
		tp.ValidationTrust,
		tp.LastUpdated,
	)
	if err != nil {
		return fmt.Errorf("upsert token performance: %w", err)
	}
	return nil
}

// Get retrieves the snapshot. Returns ErrNotFound if the token has never
// been refreshed.
func (s *TokenPerformanceStore) Get(ctx context.Context, chain domain.Chain, tokenAddress string) (*domain.TokenPerformance, error) {
	query := `
		SELECT chain, token_address, symbol, name, decimals,
			price, price_change_24h, volume_24h, volume_change_24h,
			trades_24h, trades_change_24h, liquidity_usd, holders,
			unique_wallet_24h, unique_wallet_delta, initial_market_cap,
			current_market_cap, rug_pull, is_scam, sustained_growth,
			rapid_dump, suspicious_volume, validation_trust, last_updated
		FROM token_performance
		WHERE chain = $1 AND token_address = $2
	`

	var tp domain.TokenPerformance
	var chainStr string
	err := s.db.QueryRow(ctx, query, string(chain), tokenAddress).Scan(
		&chainStr,
		&tp.TokenAddress,
		&tp.Symbol,
		&tp.Name,
		&tp.Decimals,
		&tp.Price,
		&tp.PriceChange24h,
		&tp.Volume24h,
		&tp.VolumeChange24h,
		&tp.Trades24h,
		&tp.TradesChange24h,
		&tp.LiquidityUsd,
		&tp.Holders,
		&tp.UniqueWallet24h,
		&tp.UniqueWalletDelta,
		&tp.InitialMarketCap,
		&tp.CurrentMarketCap,
		&tp.RugPull,
		&tp.IsScam,
		&tp.SustainedGrowth,
		&tp.RapidDump,
		&tp.SuspiciousVolume,
		&tp.ValidationTrust,
		&tp.LastUpdated,
	)
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get token performance: %w", err)
	}
	tp.Chain = domain.Chain(chainStr)
	return &tp, nil
}
