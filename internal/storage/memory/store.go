// Package memory provides in-memory storage.Store implementations for
// tests and single-process runs without external dependencies.
package memory

import (
	"context"
	"sync"

	"trust-trader/internal/storage"
)

// Store is an in-memory implementation of storage.Store.
//
// RunInTransaction serializes transactions with a single mutex and restores
// a pre-transaction snapshot of every sub-store if fn fails, giving the
// same commit-or-rollback semantics as the SQL implementation. It is not
// reentrant.
type Store struct {
	recommenders     *RecommenderStore
	metrics          *RecommenderMetricsStore
	metricsHistory   *MetricsHistoryStore
	tokenPerformance *TokenPerformanceStore
	recommendations  *RecommendationStore
	positions        *PositionStore
	transactions     *TransactionStore

	txMu sync.Mutex
}

// NewStore creates a new in-memory store with empty sub-stores.
func NewStore() *Store {
	return &Store{
		recommenders:     NewRecommenderStore(),
		metrics:          NewRecommenderMetricsStore(),
		metricsHistory:   NewMetricsHistoryStore(),
		tokenPerformance: NewTokenPerformanceStore(),
		recommendations:  NewRecommendationStore(),
		positions:        NewPositionStore(),
		transactions:     NewTransactionStore(),
	}
}

// Recommenders implements storage.Store.
func (s *Store) Recommenders() storage.RecommenderStore { return s.recommenders }

// RecommenderMetrics implements storage.Store.
func (s *Store) RecommenderMetrics() storage.RecommenderMetricsStore { return s.metrics }

// MetricsHistory implements storage.Store.
func (s *Store) MetricsHistory() storage.MetricsHistoryStore { return s.metricsHistory }

// TokenPerformance implements storage.Store.
func (s *Store) TokenPerformance() storage.TokenPerformanceStore { return s.tokenPerformance }

// Recommendations implements storage.Store.
func (s *Store) Recommendations() storage.RecommendationStore { return s.recommendations }

// Positions implements storage.Store.
func (s *Store) Positions() storage.PositionStore { return s.positions }

// Transactions implements storage.Store.
func (s *Store) Transactions() storage.TransactionStore { return s.transactions }

// RunInTransaction runs fn against this store, rolling every sub-store back
// to its pre-transaction state when fn returns an error.
func (s *Store) RunInTransaction(_ context.Context, fn func(storage.Store) error) error {
	s.txMu.Lock()
	defer s.txMu.Unlock()

	recommenders := s.recommenders.snapshot()
	metrics := s.metrics.snapshot()
	history := s.metricsHistory.snapshot()
	tokens := s.tokenPerformance.snapshot()
	recommendations := s.recommendations.snapshot()
	positions := s.positions.snapshot()
	transactions := s.transactions.snapshot()

	if err := fn(s); err != nil {
		s.recommenders.restore(recommenders)
		s.metrics.restore(metrics)
		s.metricsHistory.restore(history)
		s.tokenPerformance.restore(tokens)
		s.recommendations.restore(recommendations)
		s.positions.restore(positions)
		s.transactions.restore(transactions)
		return err
	}
	return nil
}

var _ storage.Store = (*Store)(nil)
