package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5"

	"trust-trader/internal/domain"
	"trust-trader/internal/storage"
)

// RecommendationStore implements storage.RecommendationStore using PostgreSQL.
type RecommendationStore struct {
	db Querier
}

// NewRecommendationStore creates a new RecommendationStore.
func NewRecommendationStore(pool *Pool) *RecommendationStore {
	return &RecommendationStore{db: pool}
}

// Compile-time interface check.
var _ storage.RecommendationStore = (*RecommendationStore)(nil)

const recommendationColumns = `
	id, recommender_id, chain, token_address, conviction, rec_type,
	initial_price, initial_market_cap, initial_liquidity,
	current_price, current_market_cap, current_liquidity,
	risk_score, performance_score, status, metadata, created_at, updated_at
`

// Insert adds a new recommendation. Returns ErrDuplicateKey if id exists.
func (s *RecommendationStore) Insert(ctx context.Context, rec *domain.TokenRecommendation) error {
	metadata, err := encodeMetadata(rec.Metadata)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO token_recommendations (` + recommendationColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18)
	`

	_, err = s.db.Exec(ctx, query,
		rec.ID,
		rec.RecommenderID,
		string(rec.Chain),
		rec.TokenAddress,
		string(rec.Conviction),
		string(rec.Type),
		rec.InitialPrice,
		rec.InitialMarketCap,
		rec.InitialLiquidity,
		rec.CurrentPrice,
		rec.CurrentMarketCap,
		rec.CurrentLiquidity,
		rec.RiskScore,
		rec.PerformanceScore,
		string(rec.Status),
		metadata,
		rec.CreatedAt,
		rec.UpdatedAt,
	)
	if err != nil {
		if isDuplicateKeyError(err) {
			return storage.ErrDuplicateKey
		}
		return fmt.Errorf("insert recommendation: %w", err)
	}
	return nil
}

// Update replaces an existing recommendation. Returns ErrNotFound if the id
// does not exist.
func (s *RecommendationStore) Update(ctx context.Context, rec *domain.TokenRecommendation) error {
	metadata, err := encodeMetadata(rec.Metadata)
	if err != nil {
		return err
	}

	query := `
		UPDATE token_recommendations SET
			recommender_id = $2,
			chain = $3,
			token_address = $4,
			conviction = $5,
			rec_type = $6,
			initial_price = $7,
			initial_market_cap = $8,
			initial_liquidity = $9,
			current_price = $10,
			current_market_cap = $11,
			current_liquidity = $12,
			risk_score = $13,
			performance_score = $14,
			status = $15,
			metadata = $16,
			created_at = $17,
			updated_at = $18
		WHERE id = $1
	`

	tag, err := s.db.Exec(ctx, query,
		rec.ID,
		rec.RecommenderID,
		string(rec.Chain),
		rec.TokenAddress,
		string(rec.Conviction),
		string(rec.Type),
		rec.InitialPrice,
		rec.InitialMarketCap,
		rec.InitialLiquidity,
		rec.CurrentPrice,
		rec.CurrentMarketCap,
		rec.CurrentLiquidity,
		rec.RiskScore,
		rec.PerformanceScore,
		string(rec.Status),
		metadata,
		rec.CreatedAt,
		rec.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("update recommendation: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return storage.ErrNotFound
	}
	return nil
}

// GetByID retrieves a recommendation by id. Returns ErrNotFound if not exists.
func (s *RecommendationStore) GetByID(ctx context.Context, id string) (*domain.TokenRecommendation, error) {
	query := `SELECT ` + recommendationColumns + ` FROM token_recommendations WHERE id = $1`

	rec, err := scanRecommendation(s.db.QueryRow(ctx, query, id))
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get recommendation by id: %w", err)
	}
	return rec, nil
}

// GetActiveByRecommenderAndToken retrieves the single ACTIVE recommendation
// for a (recommender, token) pair. Returns ErrNotFound if none is live.
func (s *RecommendationStore) GetActiveByRecommenderAndToken(ctx context.Context, recommenderID string, chain domain.Chain, tokenAddress string) (*domain.TokenRecommendation, error) {
	query := `
		SELECT ` + recommendationColumns + `
		FROM token_recommendations
		WHERE recommender_id = $1 AND chain = $2 AND token_address = $3 AND status = 'ACTIVE'
		ORDER BY created_at DESC
		LIMIT 1
	`

	rec, err := scanRecommendation(s.db.QueryRow(ctx, query, recommenderID, string(chain), tokenAddress))
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get active recommendation: %w", err)
	}
	return rec, nil
}

// GetByRecommenderID retrieves all recommendations by a recommender, ordered
// by created_at ASC.
func (s *RecommendationStore) GetByRecommenderID(ctx context.Context, recommenderID string) ([]*domain.TokenRecommendation, error) {
	query := `
		SELECT ` + recommendationColumns + `
		FROM token_recommendations
		WHERE recommender_id = $1
		ORDER BY created_at ASC, id ASC
	`

	rows, err := s.db.Query(ctx, query, recommenderID)
	if err != nil {
		return nil, fmt.Errorf("get recommendations by recommender: %w", err)
	}
	defer rows.Close()

	return collectRecommendations(rows)
}

// GetByToken retrieves all recommendations for a token, ordered by
// created_at ASC.
func (s *RecommendationStore) GetByToken(ctx context.Context, chain domain.Chain, tokenAddress string) ([]*domain.TokenRecommendation, error) {
	query := `
		SELECT ` + recommendationColumns + `
		FROM token_recommendations
		WHERE chain = $1 AND token_address = $2
		ORDER BY created_at ASC, id ASC
	`

	rows, err := s.db.Query(ctx, query, string(chain), tokenAddress)
	if err != nil {
		return nil, fmt.Errorf("get recommendations by token: %w", err)
	}
	defer rows.Close()

	return collectRecommendations(rows)
}

// GetByDateRange retrieves recommendations created within [start, end]
// (inclusive, ms).
func (s *RecommendationStore) GetByDateRange(ctx context.Context, start, end int64) ([]*domain.TokenRecommendation, error) {
	query := `
		SELECT ` + recommendationColumns + `
		FROM token_recommendations
		WHERE created_at >= $1 AND created_at <= $2
		ORDER BY created_at ASC, id ASC
	`

	rows, err := s.db.Query(ctx, query, start, end)
	if err != nil {
		return nil, fmt.Errorf("get recommendations by date range: %w", err)
	}
	defer rows.Close()

	return collectRecommendations(rows)
}

func collectRecommendations(rows pgx.Rows) ([]*domain.TokenRecommendation, error) {
	var recs []*domain.TokenRecommendation
	for rows.Next() {
		rec, err := scanRecommendation(rows)
		if err != nil {
			return nil, fmt.Errorf("scan recommendation: %w", err)
		}
		recs = append(recs, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate recommendations: %w", err)
	}
	return recs, nil
}

func scanRecommendation(row pgx.Row) (*domain.TokenRecommendation, error) {
	var rec domain.TokenRecommendation
	var chain, conviction, recType, status string
	var metadata []byte

	err := row.Scan(
		&rec.ID,
		&rec.RecommenderID,
		&chain,
		&rec.TokenAddress,
		&conviction,
		&recType,
		&rec.InitialPrice,
		&rec.InitialMarketCap,
		&rec.InitialLiquidity,
		&rec.CurrentPrice,
		&rec.CurrentMarketCap,
		&rec.CurrentLiquidity,
		&rec.RiskScore,
		&rec.PerformanceScore,
		&status,
		&metadata,
		&rec.CreatedAt,
		&rec.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	rec.Chain = domain.Chain(chain)
	rec.Conviction = domain.Conviction(conviction)
	rec.Type = domain.RecommendationType(recType)
	rec.Status = domain.RecommendationStatus(status)

	if len(metadata) > 0 {
		if err := json.Unmarshal(metadata, &rec.Metadata); err != nil {
			return nil, fmt.Errorf("decode recommendation metadata: %w", err)
		}
	}
	return &rec, nil
}

func encodeMetadata(m map[string]string) ([]byte, error) {
	if len(m) == 0 {
		return nil, nil
	}
	data, err := json.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("encode recommendation metadata: %w", err)
	}
	return data, nil
}
