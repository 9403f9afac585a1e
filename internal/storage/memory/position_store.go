package memory

import (
	"context"
	"sort"
	"sync"

	"trust-trader/internal/domain"
	"trust-trader/internal/storage"
)

// PositionStore is an in-memory implementation of storage.PositionStore.
// Insert enforces the at-most-one-open-position-per-(recommender, token)
// invariant under the store lock, so concurrent inserts for the same pair
// cannot both succeed.
type PositionStore struct {
	mu   sync.RWMutex
	data map[string]*domain.Position // keyed by id
}

// NewPositionStore creates a new in-memory position store.
func NewPositionStore() *PositionStore {
	return &PositionStore{
		data: make(map[string]*domain.Position),
	}
}

func copyPosition(p *domain.Position) *domain.Position {
	copy := *p
	if p.ClosedAt != nil {
		closedAt := *p.ClosedAt
		copy.ClosedAt = &closedAt
	}
	return &copy
}

// Insert adds a new position. Returns ErrDuplicateKey if id exists and
// ErrOpenPositionExists if an open position already exists for the same
// (recommender, token) pair.
func (s *PositionStore) Insert(_ context.Context, p *domain.Position) error {
	if p == nil || p.ID == "" || p.RecommenderID == "" || p.TokenAddress == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.data[p.ID]; exists {
		return storage.ErrDuplicateKey
	}
	if p.Open() {
		for _, existing := range s.data {
			if existing.Open() &&
				existing.RecommenderID == p.RecommenderID &&
				existing.Chain == p.Chain &&
				existing.TokenAddress == p.TokenAddress {
				return storage.ErrOpenPositionExists
			}
		}
	}

	s.data[p.ID] = copyPosition(p)
	return nil
}

// Update replaces an existing position. Returns ErrNotFound if the id does
// not exist.
func (s *PositionStore) Update(_ context.Context, p *domain.Position) error {
	if p == nil || p.ID == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.data[p.ID]; !exists {
		return storage.ErrNotFound
	}

	s.data[p.ID] = copyPosition(p)
	return nil
}

// GetByID retrieves a position by id. Returns ErrNotFound if not exists.
func (s *PositionStore) GetByID(_ context.Context, id string) (*domain.Position, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, exists := s.data[id]
	if !exists {
		return nil, storage.ErrNotFound
	}

	return copyPosition(p), nil
}

// GetOpen retrieves all open positions, ordered by opened_at ASC.
func (s *PositionStore) GetOpen(_ context.Context) ([]*domain.Position, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.Position
	for _, p := range s.data {
		if p.Open() {
			result = append(result, copyPosition(p))
		}
	}
	sortPositions(result)
	return result, nil
}

// GetOpenByRecommenderAndToken retrieves the open position for a
// (recommender, token) pair. Returns ErrNotFound if none is open.
func (s *PositionStore) GetOpenByRecommenderAndToken(_ context.Context, recommenderID string, chain domain.Chain, tokenAddress string) (*domain.Position, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, p := range s.data {
		if p.Open() &&
			p.RecommenderID == recommenderID &&
			p.Chain == chain &&
			p.TokenAddress == tokenAddress {
			return copyPosition(p), nil
		}
	}
	return nil, storage.ErrNotFound
}

// GetByRecommenderAndToken retrieves all positions, open and closed, for a
// (recommender, token) pair, ordered by opened_at ASC.
func (s *PositionStore) GetByRecommenderAndToken(_ context.Context, recommenderID string, chain domain.Chain, tokenAddress string) ([]*domain.Position, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.Position
	for _, p := range s.data {
		if p.RecommenderID == recommenderID && p.Chain == chain && p.TokenAddress == tokenAddress {
			result = append(result, copyPosition(p))
		}
	}
	sortPositions(result)
	return result, nil
}

func sortPositions(positions []*domain.Position) {
	sort.Slice(positions, func(i, j int) bool {
		if positions[i].OpenedAt != positions[j].OpenedAt {
			return positions[i].OpenedAt < positions[j].OpenedAt
		}
		return positions[i].ID < positions[j].ID
	})
}

func (s *PositionStore) snapshot() map[string]*domain.Position {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snap := make(map[string]*domain.Position, len(s.data))
	for k, v := range s.data {
		snap[k] = copyPosition(v)
	}
	return snap
}

func (s *PositionStore) restore(snap map[string]*domain.Position) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data = snap
}

var _ storage.PositionStore = (*PositionStore)(nil)
