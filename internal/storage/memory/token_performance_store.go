package memory

import (
	"context"
	"sync"

	"trust-trader/internal/domain"
	"trust-trader/internal/storage"
)

// TokenPerformanceStore is an in-memory implementation of
// storage.TokenPerformanceStore.
type TokenPerformanceStore struct {
	mu   sync.RWMutex
	data map[tokenKey]*domain.TokenPerformance
}

type tokenKey struct {
	chain        domain.Chain
	tokenAddress string
}

// NewTokenPerformanceStore creates a new in-memory token performance store.
func NewTokenPerformanceStore() *TokenPerformanceStore {
	return &TokenPerformanceStore{
		data: make(map[tokenKey]*domain.TokenPerformance),
	}
}

// Upsert writes the snapshot for (chain, token_address), replacing any
// previous value.
func (s *TokenPerformanceStore) Upsert(_ context.Context, tp *domain.TokenPerformance) error {
	if tp == nil || tp.Chain == "" || tp.TokenAddress == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	copy := *tp
	s.data[tokenKey{tp.Chain, tp.TokenAddress}] = &copy
	return nil
}

// Get retrieves the snapshot. Returns ErrNotFound if the token has never
// been refreshed.
func (s *TokenPerformanceStore) Get(_ context.Context, chain domain.Chain, tokenAddress string) (*domain.TokenPerformance, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	tp, exists := s.data[tokenKey{chain, tokenAddress}]
	if !exists {
		return nil, storage.ErrNotFound
	}

	copy := *tp
	return &copy, nil
}

func (s *TokenPerformanceStore) snapshot() map[tokenKey]*domain.TokenPerformance {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snap := make(map[tokenKey]*domain.TokenPerformance, len(s.data))
	for k, v := range s.data {
		copy := *v
		snap[k] = &copy
	}
	return snap
}

func (s *TokenPerformanceStore) restore(snap map[tokenKey]*domain.TokenPerformance) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data = snap
}

var _ storage.TokenPerformanceStore = (*TokenPerformanceStore)(nil)
