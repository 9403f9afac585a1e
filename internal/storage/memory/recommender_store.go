package memory

import (
	"context"
	"sync"

	"trust-trader/internal/domain"
	"trust-trader/internal/storage"
)

// RecommenderStore is an in-memory implementation of storage.RecommenderStore.
type RecommenderStore struct {
	mu         sync.RWMutex
	data       map[string]*domain.Recommender // keyed by id
	byPlatform map[platformKey]string         // (platform, platform_user_id) -> id
}

type platformKey struct {
	platform       string
	platformUserID string
}

// NewRecommenderStore creates a new in-memory recommender store.
func NewRecommenderStore() *RecommenderStore {
	return &RecommenderStore{
		data:       make(map[string]*domain.Recommender),
		byPlatform: make(map[platformKey]string),
	}
}

// Insert adds a new recommender. Returns ErrDuplicateKey if the id or the
// (platform, platform_user_id) pair already exists.
func (s *RecommenderStore) Insert(_ context.Context, r *domain.Recommender) error {
	if r == nil || r.ID == "" || r.Platform == "" || r.PlatformUserID == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	key := platformKey{r.Platform, r.PlatformUserID}
	if _, exists := s.data[r.ID]; exists {
		return storage.ErrDuplicateKey
	}
	if _, exists := s.byPlatform[key]; exists {
		return storage.ErrDuplicateKey
	}

	copy := *r
	s.data[r.ID] = &copy
	s.byPlatform[key] = r.ID
	return nil
}

// GetByID retrieves a recommender by id. Returns ErrNotFound if not exists.
func (s *RecommenderStore) GetByID(_ context.Context, id string) (*domain.Recommender, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	r, exists := s.data[id]
	if !exists {
		return nil, storage.ErrNotFound
	}

	copy := *r
	return &copy, nil
}

// GetByPlatformID retrieves a recommender by its platform identity.
func (s *RecommenderStore) GetByPlatformID(_ context.Context, platform, platformUserID string) (*domain.Recommender, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, exists := s.byPlatform[platformKey{platform, platformUserID}]
	if !exists {
		return nil, storage.ErrNotFound
	}

	copy := *s.data[id]
	return &copy, nil
}

func (s *RecommenderStore) snapshot() map[string]*domain.Recommender {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snap := make(map[string]*domain.Recommender, len(s.data))
	for k, v := range s.data {
		copy := *v
		snap[k] = &copy
	}
	return snap
}

func (s *RecommenderStore) restore(snap map[string]*domain.Recommender) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.data = snap
	s.byPlatform = make(map[platformKey]string, len(snap))
	for id, r := range snap {
		s.byPlatform[platformKey{r.Platform, r.PlatformUserID}] = id
	}
}

var _ storage.RecommenderStore = (*RecommenderStore)(nil)
