package postgres

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"trust-trader/internal/domain"
	"trust-trader/internal/storage"
)

func TestRecommenderStore_Insert(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewRecommenderStore(pool)
	ctx := context.Background()

	r := &domain.Recommender{
		ID:             "rec-1",
		Platform:       "telegram",
		PlatformUserID: "tg-1001",
		Username:       "alice",
		CreatedAt:      1_700_000_000_000,
	}

	err := store.Insert(ctx, r)
	require.NoError(t, err)

	got, err := store.GetByID(ctx, "rec-1")
	require.NoError(t, err)
	assert.Equal(t, r, got)
}

func TestRecommenderStore_Insert_DuplicateID(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewRecommenderStore(pool)
	ctx := context.Background()

	r := &domain.Recommender{ID: "rec-1", Platform: "telegram", PlatformUserID: "tg-1", CreatedAt: 1000}
	require.NoError(t, store.Insert(ctx, r))

	dup := &domain.Recommender{ID: "rec-1", Platform: "discord", PlatformUserID: "dc-1", CreatedAt: 2000}
	err := store.Insert(ctx, dup)
	assert.ErrorIs(t, err, storage.ErrDuplicateKey)
}

func TestRecommenderStore_Insert_DuplicatePlatformIdentity(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewRecommenderStore(pool)
	ctx := context.Background()

	require.NoError(t, store.Insert(ctx, &domain.Recommender{
		ID: "rec-1", Platform: "telegram", PlatformUserID: "tg-1", CreatedAt: 1000,
	}))

	// Same (platform, platform_user_id) under a fresh id
	err := store.Insert(ctx, &domain.Recommender{
		ID: "rec-2", Platform: "telegram", PlatformUserID: "tg-1", CreatedAt: 2000,
	})
	assert.ErrorIs(t, err, storage.ErrDuplicateKey)

	// Same user id on a different platform is a different identity
	err = store.Insert(ctx, &domain.Recommender{
		ID: "rec-3", Platform: "discord", PlatformUserID: "tg-1", CreatedAt: 3000,
	})
	assert.NoError(t, err)
}

func TestRecommenderStore_GetByPlatformID(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewRecommenderStore(pool)
	ctx := context.Background()

	require.NoError(t, store.Insert(ctx, &domain.Recommender{
		ID: "rec-1", Platform: "telegram", PlatformUserID: "tg-1", Username: "alice", CreatedAt: 1000,
	}))

	got, err := store.GetByPlatformID(ctx, "telegram", "tg-1")
	require.NoError(t, err)
	assert.Equal(t, "rec-1", got.ID)
	assert.Equal(t, "alice", got.Username)

	_, err = store.GetByPlatformID(ctx, "discord", "tg-1")
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestRecommenderStore_GetByID_NotFound(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewRecommenderStore(pool)

	_, err := store.GetByID(context.Background(), "missing")
	assert.ErrorIs(t, err, storage.ErrNotFound)
}
