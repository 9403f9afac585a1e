package postgres

import (
	"context"
	"fmt"

	"trust-trader/internal/domain"
	"trust-trader/internal/storage"
)

// MetricsHistoryStore implements storage.MetricsHistoryStore using
// PostgreSQL.
type MetricsHistoryStore struct {
	db Querier
}

// NewMetricsHistoryStore creates a new MetricsHistoryStore.
func NewMetricsHistoryStore(pool *Pool) *MetricsHistoryStore {
	return &MetricsHistoryStore{db: pool}
}

// Compile-time interface check.
var _ storage.MetricsHistoryStore = (*MetricsHistoryStore)(nil)

// Insert appends a snapshot. Returns ErrDuplicateKey if history_id exists.
func (s *MetricsHistoryStore) Insert(ctx context.Context, h *domain.RecommenderMetricsHistory) error {
	query := `
		INSERT INTO recommender_metrics_history (
			history_id, recommender_id, trust_score, total_recommendations,
			successful_recs, avg_token_performance, risk_score, consistency_score,
			trust_decay, recorded_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`

	_, err := s.db.Exec(ctx, query,
		h.HistoryID,
		h.RecommenderID,
		h.TrustScore,
		h.TotalRecommendations,
		h.SuccessfulRecs,
		h.AvgTokenPerformance,
		h.RiskScore,
		h.ConsistencyScore,
		h.TrustDecay,
		h.RecordedAt,
	)
	if err != nil {
		if isDuplicateKeyError(err) {
			return storage.ErrDuplicateKey
		}
		return fmt.Errorf("insert metrics history: %w", err)
	}
	return nil
}

// GetByRecommenderID retrieves all snapshots for a recommender, ordered by
// recorded_at ASC.
func (s *MetricsHistoryStore) GetByRecommenderID(ctx context.Context, recommenderID string) ([]*domain.RecommenderMetricsHistory, error) {
	query := `
		SELECT history_id, recommender_id, trust_score, total_recommendations,
			successful_recs, avg_token_performance, risk_score, consistency_score,
			trust_decay, recorded_at
		FROM recommender_metrics_history
		WHERE recommender_id = $1
		ORDER BY recorded_at ASC, history_id ASC
	`

	rows, err := s.db.Query(ctx, query, recommenderID)
	if err != nil {
		return nil, fmt.Errorf("get metrics history: %w", err)
	}
	defer rows.Close()

	var result []*domain.RecommenderMetricsHistory
	for rows.Next() {
		var h domain.RecommenderMetricsHistory
		err := rows.Scan(
			&h.HistoryID,
			&h.RecommenderID,
			&h.TrustScore,
			&h.TotalRecommendations,
			&h.SuccessfulRecs,
			&h.AvgTokenPerformance,
			&h.RiskScore,
			&h.ConsistencyScore,
			&h.TrustDecay,
			&h.RecordedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan metrics history: %w", err)
		}
		result = append(result, &h)
	}
	return result, rows.Err()
}
