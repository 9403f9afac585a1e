package clickhouse

import (
	"context"
	"fmt"

	"trust-trader/internal/domain"
	"trust-trader/internal/storage"
)

// MetricsHistoryStore implements storage.MetricsHistoryStore using
// ClickHouse. It mirrors the relational history table as an analytics
// sink; snapshots are append-only and never rewritten.
type MetricsHistoryStore struct {
	conn *Conn
}

// NewMetricsHistoryStore creates a new MetricsHistoryStore.
func NewMetricsHistoryStore(conn *Conn) *MetricsHistoryStore {
	return &MetricsHistoryStore{conn: conn}
}

// Compile-time interface check.
var _ storage.MetricsHistoryStore = (*MetricsHistoryStore)(nil)

// Insert appends a snapshot. Returns ErrDuplicateKey if history_id exists.
// MergeTree does not enforce uniqueness, so the check is an explicit query.
func (s *MetricsHistoryStore) Insert(ctx context.Context, h *domain.RecommenderMetricsHistory) error {
	exists, err := s.exists(ctx, h.HistoryID)
	if err != nil {
		return fmt.Errorf("check exists: %w", err)
	}
	if exists {
		return storage.ErrDuplicateKey
	}

	batch, err := s.conn.PrepareBatch(ctx, `
		INSERT INTO recommender_metrics_history (
			history_id, recommender_id, trust_score, total_recommendations,
			successful_recs, avg_token_performance, risk_score,
			consistency_score, trust_decay, recorded_at
		)
	`)
	if err != nil {
		return fmt.Errorf("prepare batch: %w", err)
	}

	err = batch.Append(
		h.HistoryID, h.RecommenderID, h.TrustScore,
		int32(h.TotalRecommendations), int32(h.SuccessfulRecs),
		h.AvgTokenPerformance, h.RiskScore, h.ConsistencyScore,
		h.TrustDecay, h.RecordedAt,
	)
	if err != nil {
		return fmt.Errorf("append to batch: %w", err)
	}

	if err := batch.Send(); err != nil {
		return fmt.Errorf("send batch: %w", err)
	}

	return nil
}

// GetByRecommenderID retrieves all snapshots for a recommender, ordered by
// recorded_at ASC.
func (s *MetricsHistoryStore) GetByRecommenderID(ctx context.Context, recommenderID string) ([]*domain.RecommenderMetricsHistory, error) {
	query := `
		SELECT history_id, recommender_id, trust_score, total_recommendations,
			successful_recs, avg_token_performance, risk_score,
			consistency_score, trust_decay, recorded_at
		FROM recommender_metrics_history
		WHERE recommender_id = ?
		ORDER BY recorded_at ASC, history_id ASC
	`

	rows, err := s.conn.Query(ctx, query, recommenderID)
	if err != nil {
		return nil, fmt.Errorf("query by recommender id: %w", err)
	}
	defer rows.Close()

	var snapshots []*domain.RecommenderMetricsHistory
	for rows.Next() {
		var h domain.RecommenderMetricsHistory
		var total, successful int32
		err := rows.Scan(
			&h.HistoryID, &h.RecommenderID, &h.TrustScore,
			&total, &successful,
			&h.AvgTokenPerformance, &h.RiskScore, &h.ConsistencyScore,
			&h.TrustDecay, &h.RecordedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan history row: %w", err)
		}
		h.TotalRecommendations = int(total)
		h.SuccessfulRecs = int(successful)
		snapshots = append(snapshots, &h)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate history rows: %w", err)
	}

	return snapshots, nil
}

// exists checks if a snapshot with the given history id exists.
func (s *MetricsHistoryStore) exists(ctx context.Context, historyID string) (bool, error) {
	query := `SELECT count(*) FROM recommender_metrics_history WHERE history_id = ?`

	var count uint64
	if err := s.conn.QueryRow(ctx, query, historyID).Scan(&count); err != nil {
		return false, fmt.Errorf("query count: %w", err)
	}
	return count > 0, nil
}
