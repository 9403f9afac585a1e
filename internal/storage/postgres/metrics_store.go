package postgres

import (
	"context"
	"fmt"

	"trust-trader/internal/domain"
	"trust-trader/internal/storage"
)

// RecommenderMetricsStore implements storage.RecommenderMetricsStore using
// PostgreSQL.
type RecommenderMetricsStore struct {
	db Querier
}

// NewRecommenderMetricsStore creates a new RecommenderMetricsStore.
func NewRecommenderMetricsStore(pool *Pool) *RecommenderMetricsStore {
	return &RecommenderMetricsStore{db: pool}
}

// Compile-time interface check.
var _ storage.RecommenderMetricsStore = (*RecommenderMetricsStore)(nil)

// Upsert writes the metrics row for a recommender, replacing any previous
// value.
func (s *RecommenderMetricsStore) Upsert(ctx context.Context, m *domain.RecommenderMetrics) error {
	query := `
		INSERT INTO recommender_metrics (
			recommender_id, trust_score, total_recommendations, successful_recs,
			avg_token_performance, risk_score, consistency_score, trust_decay,
			last_active_date, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (recommender_id) DO UPDATE SET
			trust_score = EXCLUDED.trust_score,
			total_recommendations = EXCLUDED.total_recommendations,
			successful_recs = EXCLUDED.successful_recs,
			avg_token_performance = EXCLUDED.avg_token_performance,
			risk_score = EXCLUDED.risk_score,
			consistency_score = EXCLUDED.consistency_score,
			trust_decay = EXCLUDED.trust_decay,
			last_active_date = EXCLUDED.last_active_date,
			updated_at = EXCLUDED.updated_at
	`

	_, err := s.db.Exec(ctx, query,
		m.RecommenderID,
		m.TrustScore,
		m.TotalRecommendations,
		m.SuccessfulRecs,
		m.AvgTokenPerformance,
		m.RiskScore,
		m.ConsistencyScore,
		m.TrustDecay,
		m.LastActiveDate,
		m.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("upsert recommender metrics: %w", err)
	}
	return nil
}

// GetByRecommenderID retrieves metrics. Returns ErrNotFound if the
// recommender has never been scored.
func (s *RecommenderMetricsStore) GetByRecommenderID(ctx context.Context, recommenderID string) (*domain.RecommenderMetrics, error) {
	query := `
		SELECT recommender_id, trust_score, total_recommendations, successful_recs,
			avg_token_performance, risk_score, consistency_score, trust_decay,
			last_active_date, updated_at
		FROM recommender_metrics
		WHERE recommender_id = $1
	`

	var m domain.RecommenderMetrics
	err := s.db.QueryRow(ctx, query, recommenderID).Scan(
		&m.RecommenderID,
		&m.TrustScore,
		&m.TotalRecommendations,
		&m.SuccessfulRecs,
		&m.AvgTokenPerformance,
		&m.RiskScore,
		&m.ConsistencyScore,
		&m.TrustDecay,
		&m.LastActiveDate,
		&m.UpdatedAt,
	)
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get recommender metrics: %w", err)
	}
	return &m, nil
}
