package memory

import (
	"context"
	"sync"

	"trust-trader/internal/domain"
	"trust-trader/internal/storage"
)

// RecommenderMetricsStore is an in-memory implementation of
// storage.RecommenderMetricsStore.
type RecommenderMetricsStore struct {
	mu   sync.RWMutex
	data map[string]*domain.RecommenderMetrics // keyed by recommender_id
}

// NewRecommenderMetricsStore creates a new in-memory metrics store.
func NewRecommenderMetricsStore() *RecommenderMetricsStore {
	return &RecommenderMetricsStore{
		data: make(map[string]*domain.RecommenderMetrics),
	}
}

// Upsert writes the metrics row for a recommender, replacing any previous value.
func (s *RecommenderMetricsStore) Upsert(_ context.Context, m *domain.RecommenderMetrics) error {
	if m == nil || m.RecommenderID == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	copy := *m
	s.data[m.RecommenderID] = &copy
	return nil
}

// GetByRecommenderID retrieves metrics. Returns ErrNotFound if the
// recommender has never been scored.
func (s *RecommenderMetricsStore) GetByRecommenderID(_ context.Context, recommenderID string) (*domain.RecommenderMetrics, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	m, exists := s.data[recommenderID]
	if !exists {
		return nil, storage.ErrNotFound
	}

	copy := *m
	return &copy, nil
}

func (s *RecommenderMetricsStore) snapshot() map[string]*domain.RecommenderMetrics {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snap := make(map[string]*domain.RecommenderMetrics, len(s.data))
	for k, v := range s.data {
		copy := *v
		snap[k] = &copy
	}
	return snap
}

func (s *RecommenderMetricsStore) restore(snap map[string]*domain.RecommenderMetrics) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data = snap
}

var _ storage.RecommenderMetricsStore = (*RecommenderMetricsStore)(nil)
