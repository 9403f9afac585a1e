package trust

import (
	"context"
	"errors"
	"fmt"

	"trust-trader/internal/domain"
	"trust-trader/internal/observability"
	"trust-trader/internal/storage"
)

// Risk flag thresholds.
const (
	// RapidDumpTradesChange flags a token when 24h trade count falls more
	// than this (percent).
	RapidDumpTradesChange = -50.0
	// SustainedGrowthVolumeChange flags a token when 24h volume grows more
	// than this (percent).
	SustainedGrowthVolumeChange = 50.0
	// SuspiciousVolumeWalletRatio flags a token when unique 24h wallets
	// per USD of volume exceed this ratio (wash-trade shaped flow).
	SuspiciousVolumeWalletRatio = 0.5
	// RugPullLiquidityFloor and RugPullPriceChange together flag a pulled
	// pool: liquidity collapsed below the floor while price cratered.
	RugPullLiquidityFloor = 1_000.0
	RugPullPriceChange    = -80.0
)

// Risk score weights.
const (
	riskWeightRugPull          = 30.0
	riskWeightScam             = 30.0
	riskWeightRapidDump        = 15.0
	riskWeightSuspiciousVolume = 15.0
)

// RefreshTokenPerformance pulls market data, derives risk flags, computes
// validation trust, and upserts the snapshot. forceRefresh bypasses any
// provider caching layer and MUST be set before trade-execution decisions.
// Fetch failures propagate: trading must not proceed on unknown data.
func (e *Engine) RefreshTokenPerformance(ctx context.Context, chain domain.Chain, tokenAddress string, forceRefresh bool) (*domain.TokenPerformance, error) {
	overview, err := e.market.GetTokenOverview(ctx, chain, tokenAddress, forceRefresh)
	if err != nil {
		return nil, fmt.Errorf("get token overview: %w", err)
	}

	tp := &domain.TokenPerformance{
		Chain:             chain,
		TokenAddress:      tokenAddress,
		Symbol:            overview.Symbol,
		Name:              overview.Name,
		Decimals:          overview.Decimals,
		Price:             overview.Price,
		PriceChange24h:    overview.PriceChange24h,
		Volume24h:         overview.Volume24h,
		VolumeChange24h:   overview.VolumeChange24h,
		Trades24h:         overview.Trades24h,
		TradesChange24h:   overview.TradesChange24h,
		LiquidityUsd:      overview.LiquidityUsd,
		Holders:           overview.Holders,
		UniqueWallet24h:   overview.UniqueWallet24h,
		UniqueWalletDelta: overview.UniqueWallet24hChange,
		InitialMarketCap:  overview.MarketCap,
		CurrentMarketCap:  overview.MarketCap,
		IsScam:            overview.IsScam,
		LastUpdated:       e.now().UnixMilli(),
	}

	// Keep the first-seen market cap across refreshes.
	if existing, err := e.store.TokenPerformance().Get(ctx, chain, tokenAddress); err == nil && existing.InitialMarketCap > 0 {
		tp.InitialMarketCap = existing.InitialMarketCap
	}

	tp.RapidDump = overview.TradesChange24h < RapidDumpTradesChange
	tp.SustainedGrowth = overview.VolumeChange24h > SustainedGrowthVolumeChange
	tp.SuspiciousVolume = overview.Volume24h > 0 &&
		float64(overview.UniqueWallet24h)/overview.Volume24h > SuspiciousVolumeWalletRatio
	tp.RugPull = overview.LiquidityUsd < RugPullLiquidityFloor &&
		overview.PriceChange24h < RugPullPriceChange

	validationTrust, err := e.validationTrust(ctx, chain, tokenAddress)
	if err != nil {
		// Scoring context only; the fresh market data still stands.
		e.log.Warn().Err(err).Str("token", tokenAddress).Msg("validation trust unavailable")
	}
	tp.ValidationTrust = validationTrust

	if err := e.store.TokenPerformance().Upsert(ctx, tp); err != nil {
		return nil, fmt.Errorf("upsert token performance: %w", err)
	}
	observability.RecordTokenRefresh()
	return tp, nil
}

// validationTrust is the mean trust score of every recommender that
// recommended this token.
func (e *Engine) validationTrust(ctx context.Context, chain domain.Chain, tokenAddress string) (float64, error) {
	recs, err := e.store.Recommendations().GetByToken(ctx, chain, tokenAddress)
	if err != nil {
		return 0, fmt.Errorf("load token recommendations: %w", err)
	}
	if len(recs) == 0 {
		return 0, nil
	}

	seen := make(map[string]struct{}, len(recs))
	var sum float64
	var count int
	for _, rec := range recs {
		if _, dup := seen[rec.RecommenderID]; dup {
			continue
		}
		seen[rec.RecommenderID] = struct{}{}

		m, err := e.store.RecommenderMetrics().GetByRecommenderID(ctx, rec.RecommenderID)
		if errors.Is(err, storage.ErrNotFound) {
			continue // never scored yet, counts as absent
		}
		if err != nil {
			return 0, fmt.Errorf("load metrics for %s: %w", rec.RecommenderID, err)
		}
		sum += m.TrustScore
		count++
	}
	if count == 0 {
		return 0, nil
	}
	return sum / float64(count), nil
}

// CalculateRiskScore scores a token from its risk flags alone.
func CalculateRiskScore(tp *domain.TokenPerformance) float64 {
	var score float64
	if tp.RugPull {
		score += riskWeightRugPull
	}
	if tp.IsScam {
		score += riskWeightScam
	}
	if tp.RapidDump {
		score += riskWeightRapidDump
	}
	if tp.SuspiciousVolume {
		score += riskWeightSuspiciousVolume
	}
	return score
}

// CalculateOverallRiskScore averages the token-level risk with the risk
// scores of existing recommendations for the token.
//
// The reduction is seeded with the token-level score but divided by the
// recommendation count, so len+1 values are summed over len items. That
// asymmetry is long-standing scoring behavior and changing it would shift
// every derived trust number; keep it until product says otherwise.
func CalculateOverallRiskScore(tp *domain.TokenPerformance, recs []*domain.TokenRecommendation) float64 {
	base := CalculateRiskScore(tp)
	if len(recs) == 0 {
		return base
	}

	total := base
	for _, rec := range recs {
		total += rec.RiskScore
	}
	return total / float64(len(recs))
}
