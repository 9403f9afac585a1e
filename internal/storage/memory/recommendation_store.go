package memory

import (
	"context"
	"sort"
	"sync"

	"trust-trader/internal/domain"
	"trust-trader/internal/storage"
)

// RecommendationStore is an in-memory implementation of
// storage.RecommendationStore.
type RecommendationStore struct {
	mu   sync.RWMutex
	data map[string]*domain.TokenRecommendation // keyed by id
}

// NewRecommendationStore creates a new in-memory recommendation store.
func NewRecommendationStore() *RecommendationStore {
	return &RecommendationStore{
		data: make(map[string]*domain.TokenRecommendation),
	}
}

func copyRecommendation(rec *domain.TokenRecommendation) *domain.TokenRecommendation {
	copy := *rec
	if rec.Metadata != nil {
		copy.Metadata = make(map[string]string, len(rec.Metadata))
		for k, v := range rec.Metadata {
			copy.Metadata[k] = v
		}
	}
	return &copy
}

// Insert adds a new recommendation. Returns ErrDuplicateKey if id exists.
func (s *RecommendationStore) Insert(_ context.Context, rec *domain.TokenRecommendation) error {
	if rec == nil || rec.ID == "" || rec.RecommenderID == "" || rec.TokenAddress == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.data[rec.ID]; exists {
		return storage.ErrDuplicateKey
	}

	s.data[rec.ID] = copyRecommendation(rec)
	return nil
}

// Update replaces an existing recommendation. Returns ErrNotFound if the id
// does not exist.
func (s *RecommendationStore) Update(_ context.Context, rec *domain.TokenRecommendation) error {
	if rec == nil || rec.ID == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.data[rec.ID]; !exists {
		return storage.ErrNotFound
	}

	s.data[rec.ID] = copyRecommendation(rec)
	return nil
}

// GetByID retrieves a recommendation by id. Returns ErrNotFound if not exists.
func (s *RecommendationStore) GetByID(_ context.Context, id string) (*domain.TokenRecommendation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, exists := s.data[id]
	if !exists {
		return nil, storage.ErrNotFound
	}

	return copyRecommendation(rec), nil
}

// GetActiveByRecommenderAndToken retrieves the single ACTIVE recommendation
// for a (recommender, token) pair. Returns ErrNotFound if none is live.
func (s *RecommendationStore) GetActiveByRecommenderAndToken(_ context.Context, recommenderID string, chain domain.Chain, tokenAddress string) (*domain.TokenRecommendation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, rec := range s.data {
		if rec.RecommenderID == recommenderID &&
			rec.Chain == chain &&
			rec.TokenAddress == tokenAddress &&
			rec.Status == domain.RecommendationStatusActive {
			return copyRecommendation(rec), nil
		}
	}
	return nil, storage.ErrNotFound
}

// GetByRecommenderID retrieves all recommendations by a recommender,
// ordered by created_at ASC.
func (s *RecommendationStore) GetByRecommenderID(_ context.Context, recommenderID string) ([]*domain.TokenRecommendation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.TokenRecommendation
	for _, rec := range s.data {
		if rec.RecommenderID == recommenderID {
			result = append(result, copyRecommendation(rec))
		}
	}
	sortRecommendations(result)
	return result, nil
}

// GetByToken retrieves all recommendations for a token, ordered by
// created_at ASC.
func (s *RecommendationStore) GetByToken(_ context.Context, chain domain.Chain, tokenAddress string) ([]*domain.TokenRecommendation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.TokenRecommendation
	for _, rec := range s.data {
		if rec.Chain == chain && rec.TokenAddress == tokenAddress {
			result = append(result, copyRecommendation(rec))
		}
	}
	sortRecommendations(result)
	return result, nil
}

// GetByDateRange retrieves recommendations created within [start, end]
// (inclusive, ms).
func (s *RecommendationStore) GetByDateRange(_ context.Context, start, end int64) ([]*domain.TokenRecommendation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.TokenRecommendation
	for _, rec := range s.data {
		if rec.CreatedAt >= start && rec.CreatedAt <= end {
			result = append(result, copyRecommendation(rec))
		}
	}
	sortRecommendations(result)
	return result, nil
}

func sortRecommendations(recs []*domain.TokenRecommendation) {
	sort.Slice(recs, func(i, j int) bool {
		if recs[i].CreatedAt != recs[j].CreatedAt {
			return recs[i].CreatedAt < recs[j].CreatedAt
		}
		return recs[i].ID < recs[j].ID
	})
}

func (s *RecommendationStore) snapshot() map[string]*domain.TokenRecommendation {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snap := make(map[string]*domain.TokenRecommendation, len(s.data))
	for k, v := range s.data {
		snap[k] = copyRecommendation(v)
	}
	return snap
}

func (s *RecommendationStore) restore(snap map[string]*domain.TokenRecommendation) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data = snap
}

var _ storage.RecommendationStore = (*RecommendationStore)(nil)
