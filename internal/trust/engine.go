// Package trust computes recommender trust scores from recommendation
// outcomes and derives token-level risk flags from market data.
package trust

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"trust-trader/internal/domain"
	"trust-trader/internal/market"
	"trust-trader/internal/observability"
	"trust-trader/internal/storage"
)

// Scoring constants.
const (
	// DecayRate discounts trust per day of recommender inactivity.
	DecayRate = 0.95
	// MaxDecayDays floors the decay after this many inactive days.
	MaxDecayDays = 30
)

// Engine is the trust score engine. All methods are safe for concurrent
// use; persistence conflicts surface as storage errors.
type Engine struct {
	store  storage.Store
	market market.Provider
	log    zerolog.Logger

	now   func() time.Time
	newID func() string
}

// Option configures an Engine.
type Option func(*Engine)

// WithClock overrides the engine's time source.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// WithIDGenerator overrides the engine's id source.
func WithIDGenerator(newID func() string) Option {
	return func(e *Engine) { e.newID = newID }
}

// NewEngine creates a trust score engine on the given store and market
// data provider.
func NewEngine(store storage.Store, provider market.Provider, log zerolog.Logger, opts ...Option) *Engine {
	e := &Engine{
		store:  store,
		market: provider,
		log:    log.With().Str("component", "trust_engine").Logger(),
		now:    time.Now,
		newID:  uuid.NewString,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// WithStore returns a copy of the engine bound to a different store,
// typically a transaction-scoped one.
func (e *Engine) WithStore(store storage.Store) *Engine {
	clone := *e
	clone.store = store
	return &clone
}

// RecommenderIdentity identifies a recommender by platform account.
type RecommenderIdentity struct {
	Platform       string
	PlatformUserID string
	Username       string
}

// GetOrCreateRecommender looks up a recommender by platform identity,
// inserting it with all-zero metrics on first sight. Idempotent; safe
// against concurrent first-sight races.
func (e *Engine) GetOrCreateRecommender(ctx context.Context, identity RecommenderIdentity) (*domain.Recommender, error) {
	if identity.Platform == "" || identity.PlatformUserID == "" {
		return nil, storage.ErrInvalidInput
	}

	existing, err := e.store.Recommenders().GetByPlatformID(ctx, identity.Platform, identity.PlatformUserID)
	if err == nil {
		return existing, nil
	}
	if !errors.Is(err, storage.ErrNotFound) {
		return nil, fmt.Errorf("lookup recommender: %w", err)
	}

	r := &domain.Recommender{
		ID:             e.newID(),
		Platform:       identity.Platform,
		PlatformUserID: identity.PlatformUserID,
		Username:       identity.Username,
		CreatedAt:      e.now().UnixMilli(),
	}
	if err := e.store.Recommenders().Insert(ctx, r); err != nil {
		if errors.Is(err, storage.ErrDuplicateKey) {
			// Lost a first-sight race; the winner's row is authoritative.
			return e.store.Recommenders().GetByPlatformID(ctx, identity.Platform, identity.PlatformUserID)
		}
		return nil, fmt.Errorf("insert recommender: %w", err)
	}

	if _, err := e.store.RecommenderMetrics().GetByRecommenderID(ctx, r.ID); errors.Is(err, storage.ErrNotFound) {
		zero := &domain.RecommenderMetrics{
			RecommenderID: r.ID,
			UpdatedAt:     e.now().UnixMilli(),
		}
		if err := e.store.RecommenderMetrics().Upsert(ctx, zero); err != nil {
			return nil, fmt.Errorf("init recommender metrics: %w", err)
		}
	}

	return r, nil
}

// RecordRecommendation creates or updates the live recommendation for a
// (recommender, token) pair, seeding new rows with the current market
// snapshot and triggering a metrics recompute. The recompute is eventually
// consistent: its failure is logged, never rolled back into the write.
func (e *Engine) RecordRecommendation(ctx context.Context, recommenderID string, chain domain.Chain, tokenAddress string, conviction domain.Conviction, recType domain.RecommendationType, metadata map[string]string) (*domain.TokenRecommendation, error) {
	tp, err := e.RefreshTokenPerformance(ctx, chain, tokenAddress, false)
	if err != nil {
		return nil, fmt.Errorf("refresh token performance: %w", err)
	}

	nowMs := e.now().UnixMilli()
	rec, err := e.store.Recommendations().GetActiveByRecommenderAndToken(ctx, recommenderID, chain, tokenAddress)
	switch {
	case err == nil:
		// Live recommendation exists: update the snapshot in place rather
		// than duplicating the row.
		rec.Conviction = conviction
		rec.Type = recType
		rec.CurrentPrice = tp.Price
		rec.CurrentMarketCap = tp.CurrentMarketCap
		rec.CurrentLiquidity = tp.LiquidityUsd
		rec.RiskScore = CalculateRiskScore(tp)
		rec.Metadata = metadata
		rec.UpdatedAt = nowMs
		if err := e.store.Recommendations().Update(ctx, rec); err != nil {
			return nil, fmt.Errorf("update recommendation: %w", err)
		}
	case errors.Is(err, storage.ErrNotFound):
		rec = &domain.TokenRecommendation{
			ID:               e.newID(),
			RecommenderID:    recommenderID,
			Chain:            chain,
			TokenAddress:     tokenAddress,
			Conviction:       conviction,
			Type:             recType,
			InitialPrice:     tp.Price,
			InitialMarketCap: tp.CurrentMarketCap,
			InitialLiquidity: tp.LiquidityUsd,
			CurrentPrice:     tp.Price,
			CurrentMarketCap: tp.CurrentMarketCap,
			CurrentLiquidity: tp.LiquidityUsd,
			RiskScore:        CalculateRiskScore(tp),
			Status:           domain.RecommendationStatusActive,
			Metadata:         metadata,
			CreatedAt:        nowMs,
			UpdatedAt:        nowMs,
		}
		if err := e.store.Recommendations().Insert(ctx, rec); err != nil {
			return nil, fmt.Errorf("insert recommendation: %w", err)
		}
	default:
		return nil, fmt.Errorf("lookup active recommendation: %w", err)
	}

	if err := e.RecomputeRecommenderMetrics(ctx, recommenderID); err != nil {
		e.log.Warn().Err(err).Str("recommender_id", recommenderID).
			Msg("metrics recompute failed, will retry on next event")
	}

	return rec, nil
}

// RecomputeRecommenderMetrics aggregates all of a recommender's
// recommendations into fresh metrics. A history snapshot of the previous
// metrics is written before the overwrite, so history always lags current
// by one update; this ordering is a correctness requirement.
func (e *Engine) RecomputeRecommenderMetrics(ctx context.Context, recommenderID string) error {
	recs, err := e.store.Recommendations().GetByRecommenderID(ctx, recommenderID)
	if err != nil {
		return fmt.Errorf("load recommendations: %w", err)
	}

	prev, err := e.store.RecommenderMetrics().GetByRecommenderID(ctx, recommenderID)
	if err != nil && !errors.Is(err, storage.ErrNotFound) {
		return fmt.Errorf("load previous metrics: %w", err)
	}

	// Snapshot-before-overwrite. The snapshot itself is a best-effort
	// side channel: its failure must not block the metrics update.
	if prev != nil {
		if err := e.snapshotMetrics(ctx, prev); err != nil {
			e.log.Warn().Err(err).Str("recommender_id", recommenderID).
				Msg("metrics history snapshot failed")
		}
	}

	m := e.aggregate(recommenderID, recs)
	if err := e.store.RecommenderMetrics().Upsert(ctx, m); err != nil {
		return fmt.Errorf("upsert metrics: %w", err)
	}
	observability.RecordMetricsRecompute()
	return nil
}

func (e *Engine) snapshotMetrics(ctx context.Context, prev *domain.RecommenderMetrics) error {
	return e.store.MetricsHistory().Insert(ctx, &domain.RecommenderMetricsHistory{
		HistoryID:            e.newID(),
		RecommenderID:        prev.RecommenderID,
		TrustScore:           prev.TrustScore,
		TotalRecommendations: prev.TotalRecommendations,
		SuccessfulRecs:       prev.SuccessfulRecs,
		AvgTokenPerformance:  prev.AvgTokenPerformance,
		RiskScore:            prev.RiskScore,
		ConsistencyScore:     prev.ConsistencyScore,
		TrustDecay:           prev.TrustDecay,
		RecordedAt:           e.now().UnixMilli(),
	})
}

// aggregate derives fresh metrics from the full recommendation list.
func (e *Engine) aggregate(recommenderID string, recs []*domain.TokenRecommendation) *domain.RecommenderMetrics {
	nowMs := e.now().UnixMilli()
	m := &domain.RecommenderMetrics{
		RecommenderID: recommenderID,
		UpdatedAt:     nowMs,
	}
	if len(recs) == 0 {
		return m
	}

	var sumPerformance, sumRisk float64
	var lastActive int64
	for _, rec := range recs {
		sumPerformance += rec.PerformanceScore
		sumRisk += rec.RiskScore
		if rec.PerformanceScore > 0 {
			m.SuccessfulRecs++
		}
		if rec.UpdatedAt > lastActive {
			lastActive = rec.UpdatedAt
		}
	}

	total := len(recs)
	m.TotalRecommendations = total
	m.AvgTokenPerformance = sumPerformance / float64(total)
	m.RiskScore = sumRisk / float64(total)
	m.TrustScore = clamp(sumPerformance-sumRisk, 0, 100)
	m.ConsistencyScore = float64(m.SuccessfulRecs) / float64(total)
	m.LastActiveDate = lastActive

	days := daysBetween(lastActive, nowMs)
	m.TrustDecay = DecayedTrust(m.TrustScore, days)
	return m
}

// DecayedTrust applies inactivity decay:
// trustScore × DecayRate^min(daysInactive, MaxDecayDays).
func DecayedTrust(trustScore float64, daysInactive int) float64 {
	if daysInactive < 0 {
		daysInactive = 0
	}
	if daysInactive > MaxDecayDays {
		daysInactive = MaxDecayDays
	}
	return trustScore * math.Pow(DecayRate, float64(daysInactive))
}

func daysBetween(earlierMs, laterMs int64) int {
	if earlierMs <= 0 || laterMs <= earlierMs {
		return 0
	}
	return int((laterMs - earlierMs) / (24 * time.Hour).Milliseconds())
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
