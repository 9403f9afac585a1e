package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"trust-trader/internal/domain"
	"trust-trader/internal/storage"
)

// RecommenderStore implements storage.RecommenderStore using PostgreSQL.
type RecommenderStore struct {
	db Querier
}

// NewRecommenderStore creates a new RecommenderStore.
func NewRecommenderStore(pool *Pool) *RecommenderStore {
	return &RecommenderStore{db: pool}
}

// Compile-time interface check.
var _ storage.RecommenderStore = (*RecommenderStore)(nil)

// Insert adds a new recommender. Returns ErrDuplicateKey if the id or the
// (platform, platform_user_id) pair exists.
func (s *RecommenderStore) Insert(ctx context.Context, r *domain.Recommender) error {
	query := `
		INSERT INTO recommenders (
			id, platform, platform_user_id, username, created_at
		) VALUES ($1, $2, $3, $4, $5)
	`

	_, err := s.db.Exec(ctx, query,
		r.ID,
		r.Platform,
		r.PlatformUserID,
		r.Username,
		r.CreatedAt,
	)
	if err != nil {
		if isDuplicateKeyError(err) {
			return storage.ErrDuplicateKey
		}
		return fmt.Errorf("insert recommender: %w", err)
	}
	return nil
}

// GetByID retrieves a recommender by id. Returns ErrNotFound if not exists.
func (s *RecommenderStore) GetByID(ctx context.Context, id string) (*domain.Recommender, error) {
	query := `
		SELECT id, platform, platform_user_id, username, created_at
		FROM recommenders
		WHERE id = $1
	`

	r, err := scanRecommender(s.db.QueryRow(ctx, query, id))
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get recommender by id: %w", err)
	}
	return r, nil
}

// GetByPlatformID retrieves a recommender by its platform identity.
// Returns ErrNotFound if not exists.
func (s *RecommenderStore) GetByPlatformID(ctx context.Context, platform, platformUserID string) (*domain.Recommender, error) {
	query := `
		SELECT id, platform, platform_user_id, username, created_at
		FROM recommenders
		WHERE platform = $1 AND platform_user_id = $2
	`

	r, err := scanRecommender(s.db.QueryRow(ctx, query, platform, platformUserID))
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get recommender by platform id: %w", err)
	}
	return r, nil
}

// scanRecommender scans a single row into a Recommender.
func scanRecommender(row pgx.Row) (*domain.Recommender, error) {
	var r domain.Recommender
	err := row.Scan(
		&r.ID,
		&r.Platform,
		&r.PlatformUserID,
		&r.Username,
		&r.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &r, nil
}
