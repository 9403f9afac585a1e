package postgres

import (
	"context"

	"github.com/jackc/pgx/v5"

	"trust-trader/internal/storage"
)

// Store aggregates every entity store over one PostgreSQL pool. Inside
// RunInTransaction the same stores run against the transaction handle.
type Store struct {
	pool    *Pool // nil when transaction-scoped
	db      Querier
	history storage.MetricsHistoryStore
}

// StoreOption customizes a Store.
type StoreOption func(*Store)

// WithMetricsHistory routes the metrics audit trail to another backend,
// typically ClickHouse. History writes then commit outside RunInTransaction;
// the trail is a best-effort side channel, not ledger state.
func WithMetricsHistory(h storage.MetricsHistoryStore) StoreOption {
	return func(s *Store) { s.history = h }
}

// NewStore creates a Store over a pool.
func NewStore(pool *Pool, opts ...StoreOption) *Store {
	s := &Store{pool: pool, db: pool}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Compile-time interface check.
var _ storage.Store = (*Store)(nil)

// Recommenders implements storage.Store.
func (s *Store) Recommenders() storage.RecommenderStore {
	return &RecommenderStore{db: s.db}
}

// RecommenderMetrics implements storage.Store.
func (s *Store) RecommenderMetrics() storage.RecommenderMetricsStore {
	return &RecommenderMetricsStore{db: s.db}
}

// MetricsHistory implements storage.Store.
func (s *Store) MetricsHistory() storage.MetricsHistoryStore {
	if s.history != nil {
		return s.history
	}
	return &MetricsHistoryStore{db: s.db}
}

// TokenPerformance implements storage.Store.
func (s *Store) TokenPerformance() storage.TokenPerformanceStore {
	return &TokenPerformanceStore{db: s.db}
}

// Recommendations implements storage.Store.
func (s *Store) Recommendations() storage.RecommendationStore {
	return &RecommendationStore{db: s.db}
}

// Positions implements storage.Store.
func (s *Store) Positions() storage.PositionStore {
	return &PositionStore{db: s.db}
}

// Transactions implements storage.Store.
func (s *Store) Transactions() storage.TransactionStore {
	return &TransactionStore{db: s.db}
}

// RunInTransaction implements storage.Store. Nested calls reuse the
// enclosing transaction.
func (s *Store) RunInTransaction(ctx context.Context, fn func(storage.Store) error) error {
	if s.pool == nil {
		return fn(s)
	}
	return pgx.BeginFunc(ctx, s.pool.Pool, func(tx pgx.Tx) error {
		return fn(&Store{db: tx, history: s.history})
	})
}
