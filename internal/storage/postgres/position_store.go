package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"trust-trader/internal/domain"
	"trust-trader/internal/storage"
)

// PositionStore implements storage.PositionStore using PostgreSQL. The one
// open position per (recommender, token) invariant is enforced by a partial
// unique index, so it holds under concurrent inserts.
type PositionStore struct {
	db Querier
}

// NewPositionStore creates a new PositionStore.
func NewPositionStore(pool *Pool) *PositionStore {
	return &PositionStore{db: pool}
}

// Compile-time interface check.
var _ storage.PositionStore = (*PositionStore)(nil)

const positionColumns = `
	id, chain, token_address, wallet_address, is_simulation,
	recommender_id, recommendation_id, initial_price, initial_market_cap,
	initial_liquidity, performance_score, rapid_dump,
	opened_at, closed_at, updated_at
`

// Insert adds a new position. Returns ErrDuplicateKey if id exists and
// ErrOpenPositionExists if an open position already exists for the same
// (recommender, token) pair.
func (s *PositionStore) Insert(ctx context.Context, p *domain.Position) error {
	query := `
		INSERT INTO positions (` + positionColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
	`

	_, err := s.db.Exec(ctx, query,
		p.ID,
		string(p.Chain),
		p.TokenAddress,
		p.WalletAddress,
		p.IsSimulation,
		p.RecommenderID,
		p.RecommendationID,
		p.InitialPrice,
		p.InitialMarketCap,
		p.InitialLiquidity,
		p.PerformanceScore,
		p.RapidDump,
		p.OpenedAt,
		p.ClosedAt,
		p.UpdatedAt,
	)
	if err != nil {
		if isOpenPositionError(err) {
			return storage.ErrOpenPositionExists
		}
		if isDuplicateKeyError(err) {
			return storage.ErrDuplicateKey
		}
		return fmt.Errorf("insert position: %w", err)
	}
	return nil
}

// Update replaces an existing position. Returns ErrNotFound if the id does
// not exist.
func (s *PositionStore) Update(ctx context.Context, p *domain.Position) error {
	query := `
		UPDATE positions SET
			chain = $2,
			token_address = $3,
			wallet_address = $4,
			is_simulation = $5,
			recommender_id = $6,
			recommendation_id = $7,
			initial_price = $8,
			initial_market_cap = $9,
			initial_liquidity = $10,
			performance_score = $11,
			rapid_dump = $12,
			opened_at = $13,
			closed_at = $14,
			updated_at = $15
		WHERE id = $1
	`

	tag, err := s.db.Exec(ctx, query,
		p.ID,
		string(p.Chain),
		p.TokenAddress,
		p.WalletAddress,
		p.IsSimulation,
		p.RecommenderID,
		p.RecommendationID,
		p.InitialPrice,
		p.InitialMarketCap,
		p.InitialLiquidity,
		p.PerformanceScore,
		p.RapidDump,
		p.OpenedAt,
		p.ClosedAt,
		p.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("update position: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return storage.ErrNotFound
	}
	return nil
}

// GetByID retrieves a position by id. Returns ErrNotFound if not exists.
func (s *PositionStore) GetByID(ctx context.Context, id string) (*domain.Position, error) {
	query := `SELECT ` + positionColumns + ` FROM positions WHERE id = $1`

	p, err := scanPosition(s.db.QueryRow(ctx, query, id))
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get position by id: %w", err)
	}
	return p, nil
}

// GetOpen retrieves all open positions, ordered by opened_at ASC.
func (s *PositionStore) GetOpen(ctx context.Context) ([]*domain.Position, error) {
	query := `
		SELECT ` + positionColumns + `
		FROM positions
		WHERE closed_at IS NULL
		ORDER BY opened_at ASC, id ASC
	`

	rows, err := s.db.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("get open positions: %w", err)
	}
	defer rows.Close()

	return collectPositions(rows)
}

// GetOpenByRecommenderAndToken retrieves the open position for a
// (recommender, token) pair. Returns ErrNotFound if none is open.
func (s *PositionStore) GetOpenByRecommenderAndToken(ctx context.Context, recommenderID string, chain domain.Chain, tokenAddress string) (*domain.Position, error) {
	query := `
		SELECT ` + positionColumns + `
		FROM positions
		WHERE recommender_id = $1 AND chain = $2 AND token_address = $3 AND closed_at IS NULL
	`

	p, err := scanPosition(s.db.QueryRow(ctx, query, recommenderID, string(chain), tokenAddress))
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get open position: %w", err)
	}
	return p, nil
}

// GetByRecommenderAndToken retrieves all positions, open and closed, for a
// (recommender, token) pair, ordered by opened_at ASC.
func (s *PositionStore) GetByRecommenderAndToken(ctx context.Context, recommenderID string, chain domain.Chain, tokenAddress string) ([]*domain.Position, error) {
	query := `
		SELECT ` + positionColumns + `
		FROM positions
		WHERE recommender_id = $1 AND chain = $2 AND token_address = $3
		ORDER BY opened_at ASC, id ASC
	`

	rows, err := s.db.Query(ctx, query, recommenderID, string(chain), tokenAddress)
	if err != nil {
		return nil, fmt.Errorf("get positions by recommender and token: %w", err)
	}
	defer rows.Close()

	return collectPositions(rows)
}

func collectPositions(rows pgx.Rows) ([]*domain.Position, error) {
	var positions []*domain.Position
	for rows.Next() {
		p, err := scanPosition(rows)
		if err != nil {
			return nil, fmt.Errorf("scan position: %w", err)
		}
		positions = append(positions, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate positions: %w", err)
	}
	return positions, nil
}

func scanPosition(row pgx.Row) (*domain.Position, error) {
	var p domain.Position
	var chain string

	err := row.Scan(
		&p.ID,
		&chain,
		&p.TokenAddress,
		&p.WalletAddress,
		&p.IsSimulation,
		&p.RecommenderID,
		&p.RecommendationID,
		&p.InitialPrice,
		&p.InitialMarketCap,
		&p.InitialLiquidity,
		&p.PerformanceScore,
		&p.RapidDump,
		&p.OpenedAt,
		&p.ClosedAt,
		&p.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	p.Chain = domain.Chain(chain)
	return &p, nil
}
