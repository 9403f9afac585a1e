package storage

import (
	"context"

	"trust-trader/internal/domain"
)

// RecommenderStore provides access to recommender identities.
type RecommenderStore interface {
	// Insert adds a new recommender. Returns ErrDuplicateKey if the id or
	// the (platform, platform_user_id) pair already exists.
	Insert(ctx context.Context, r *domain.Recommender) error

	// GetByID retrieves a recommender by id. Returns ErrNotFound if not exists.
	GetByID(ctx context.Context, id string) (*domain.Recommender, error)

	// GetByPlatformID retrieves a recommender by its platform identity.
	// Returns ErrNotFound if not exists.
	GetByPlatformID(ctx context.Context, platform, platformUserID string) (*domain.Recommender, error)
}

// RecommenderMetricsStore provides access to current recommender metrics.
type RecommenderMetricsStore interface {
	// Upsert writes the metrics row for a recommender, replacing any
	// previous value.
	Upsert(ctx context.Context, m *domain.RecommenderMetrics) error

	// GetByRecommenderID retrieves metrics. Returns ErrNotFound if the
	// recommender has never been scored.
	GetByRecommenderID(ctx context.Context, recommenderID string) (*domain.RecommenderMetrics, error)
}

// MetricsHistoryStore provides access to the append-only metrics audit trail.
type MetricsHistoryStore interface {
	// Insert appends a snapshot. Returns ErrDuplicateKey if history_id exists.
	Insert(ctx context.Context, h *domain.RecommenderMetricsHistory) error

	// GetByRecommenderID retrieves all snapshots for a recommender,
	// ordered by recorded_at ASC.
	GetByRecommenderID(ctx context.Context, recommenderID string) ([]*domain.RecommenderMetricsHistory, error)
}

// TokenPerformanceStore provides access to token market snapshots.
type TokenPerformanceStore interface {
	// Upsert writes the snapshot for (chain, token_address), replacing any
	// previous value.
	Upsert(ctx context.Context, tp *domain.TokenPerformance) error

	// Get retrieves the snapshot. Returns ErrNotFound if the token has
	// never been refreshed.
	Get(ctx context.Context, chain domain.Chain, tokenAddress string) (*domain.TokenPerformance, error)
}

// RecommendationStore provides access to token recommendations.
type RecommendationStore interface {
	// Insert adds a new recommendation. Returns ErrDuplicateKey if id exists.
	Insert(ctx context.Context, rec *domain.TokenRecommendation) error

	// Update replaces an existing recommendation. Returns ErrNotFound if
	// the id does not exist.
	Update(ctx context.Context, rec *domain.TokenRecommendation) error

	// GetByID retrieves a recommendation by id. Returns ErrNotFound if not exists.
	GetByID(ctx context.Context, id string) (*domain.TokenRecommendation, error)

	// GetActiveByRecommenderAndToken retrieves the single ACTIVE
	// recommendation for a (recommender, token) pair. Returns ErrNotFound
	// if none is live.
	GetActiveByRecommenderAndToken(ctx context.Context, recommenderID string, chain domain.Chain, tokenAddress string) (*domain.TokenRecommendation, error)

	// GetByRecommenderID retrieves all recommendations by a recommender,
	// ordered by created_at ASC.
	GetByRecommenderID(ctx context.Context, recommenderID string) ([]*domain.TokenRecommendation, error)

	// GetByToken retrieves all recommendations for a token, ordered by
	// created_at ASC.
	GetByToken(ctx context.Context, chain domain.Chain, tokenAddress string) ([]*domain.TokenRecommendation, error)

	// GetByDateRange retrieves recommendations created within [start, end]
	// (inclusive, ms).
	GetByDateRange(ctx context.Context, start, end int64) ([]*domain.TokenRecommendation, error)
}

// PositionStore provides access to trade positions.
type PositionStore interface {
	// Insert adds a new position. Returns ErrDuplicateKey if id exists and
	// ErrOpenPositionExists if an open position already exists for the same
	// (recommender, token) pair.
	Insert(ctx context.Context, p *domain.Position) error

	// Update replaces an existing position. Returns ErrNotFound if the id
	// does not exist.
	Update(ctx context.Context, p *domain.Position) error

	// GetByID retrieves a position by id. Returns ErrNotFound if not exists.
	GetByID(ctx context.Context, id string) (*domain.Position, error)

	// GetOpen retrieves all open positions, ordered by opened_at ASC.
	GetOpen(ctx context.Context) ([]*domain.Position, error)

	// GetOpenByRecommenderAndToken retrieves the open position for a
	// (recommender, token) pair. Returns ErrNotFound if none is open.
	GetOpenByRecommenderAndToken(ctx context.Context, recommenderID string, chain domain.Chain, tokenAddress string) (*domain.Position, error)

	// GetByRecommenderAndToken retrieves all positions, open and closed,
	// for a (recommender, token) pair, ordered by opened_at ASC.
	GetByRecommenderAndToken(ctx context.Context, recommenderID string, chain domain.Chain, tokenAddress string) ([]*domain.Position, error)
}

// TransactionStore provides access to the append-only transaction ledger.
type TransactionStore interface {
	// Insert appends a ledger entry. Returns ErrDuplicateKey if id exists.
	Insert(ctx context.Context, t *domain.Transaction) error

	// GetByPositionID retrieves all transactions for a position, ordered
	// by timestamp ASC.
	GetByPositionID(ctx context.Context, positionID string) ([]*domain.Transaction, error)

	// GetByPositionIDs retrieves transactions for multiple positions,
	// grouped by position id, each group ordered by timestamp ASC.
	GetByPositionIDs(ctx context.Context, positionIDs []string) (map[string][]*domain.Transaction, error)
}

// Store aggregates every entity store behind one persistence handle.
// RunInTransaction runs fn against a transaction-scoped Store; all writes
// made through it commit or roll back atomically.
type Store interface {
	Recommenders() RecommenderStore
	RecommenderMetrics() RecommenderMetricsStore
	MetricsHistory() MetricsHistoryStore
	TokenPerformance() TokenPerformanceStore
	Recommendations() RecommendationStore
	Positions() PositionStore
	Transactions() TransactionStore

	RunInTransaction(ctx context.Context, fn func(Store) error) error
}
