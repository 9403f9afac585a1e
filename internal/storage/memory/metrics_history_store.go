package memory

import (
	"context"
	"sort"
	"sync"

	"trust-trader/internal/domain"
	"trust-trader/internal/storage"
)

// MetricsHistoryStore is an in-memory implementation of
// storage.MetricsHistoryStore.
type MetricsHistoryStore struct {
	mu   sync.RWMutex
	data map[string]*domain.RecommenderMetricsHistory // keyed by history_id
}

// NewMetricsHistoryStore creates a new in-memory metrics history store.
func NewMetricsHistoryStore() *MetricsHistoryStore {
	return &MetricsHistoryStore{
		data: make(map[string]*domain.RecommenderMetricsHistory),
	}
}

// Insert appends a snapshot. Returns ErrDuplicateKey if history_id exists.
func (s *MetricsHistoryStore) Insert(_ context.Context, h *domain.RecommenderMetricsHistory) error {
	if h == nil || h.HistoryID == "" || h.RecommenderID == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.data[h.HistoryID]; exists {
		return storage.ErrDuplicateKey
	}

	copy := *h
	s.data[h.HistoryID] = &copy
	return nil
}

// GetByRecommenderID retrieves all snapshots for a recommender, ordered by
// recorded_at ASC.
func (s *MetricsHistoryStore) GetByRecommenderID(_ context.Context, recommenderID string) ([]*domain.RecommenderMetricsHistory, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.RecommenderMetricsHistory
	for _, h := range s.data {
		if h.RecommenderID == recommenderID {
			copy := *h
			result = append(result, &copy)
		}
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].RecordedAt < result[j].RecordedAt
	})

	return result, nil
}

func (s *MetricsHistoryStore) snapshot() map[string]*domain.RecommenderMetricsHistory {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snap := make(map[string]*domain.RecommenderMetricsHistory, len(s.data))
	for k, v := range s.data {
		copy := *v
		snap[k] = &copy
	}
	return snap
}

func (s *MetricsHistoryStore) restore(snap map[string]*domain.RecommenderMetricsHistory) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data = snap
}

var _ storage.MetricsHistoryStore = (*MetricsHistoryStore)(nil)
