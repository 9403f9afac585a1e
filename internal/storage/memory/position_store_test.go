package memory

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"trust-trader/internal/domain"
	"trust-trader/internal/storage"
)

func openPosition(id, recommenderID, token string) *domain.Position {
	return &domain.Position{
		ID:            id,
		Chain:         domain.ChainSolana,
		TokenAddress:  token,
		RecommenderID: recommenderID,
		OpenedAt:      1000,
	}
}

func TestPositionStore_InsertAndGet(t *testing.T) {
	store := NewPositionStore()
	ctx := context.Background()

	p := openPosition("pos1", "rec1", "mint1")
	if err := store.Insert(ctx, p); err != nil {
		t.Fatalf("Insert failed: %v", err)
	}

	got, err := store.GetByID(ctx, "pos1")
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if !got.Open() {
		t.Error("inserted position should be open")
	}
	if got.RecommenderID != "rec1" {
		t.Errorf("RecommenderID = %q, want rec1", got.RecommenderID)
	}
}

func TestPositionStore_OpenPairInvariant(t *testing.T) {
	store := NewPositionStore()
	ctx := context.Background()

	if err := store.Insert(ctx, openPosition("pos1", "rec1", "mint1")); err != nil {
		t.Fatalf("first insert failed: %v", err)
	}

	err := store.Insert(ctx, openPosition("pos2", "rec1", "mint1"))
	if !errors.Is(err, storage.ErrOpenPositionExists) {
		t.Errorf("expected ErrOpenPositionExists, got %v", err)
	}

	// Other recommender or other token is fine.
	if err := store.Insert(ctx, openPosition("pos3", "rec2", "mint1")); err != nil {
		t.Errorf("different recommender rejected: %v", err)
	}
	if err := store.Insert(ctx, openPosition("pos4", "rec1", "mint2")); err != nil {
		t.Errorf("different token rejected: %v", err)
	}

	// Closing the first position frees the pair.
	closedAt := int64(2000)
	p, _ := store.GetByID(ctx, "pos1")
	p.ClosedAt = &closedAt
	if err := store.Update(ctx, p); err != nil {
		t.Fatalf("Update failed: %v", err)
	}
	if err := store.Insert(ctx, openPosition("pos5", "rec1", "mint1")); err != nil {
		t.Errorf("insert after close rejected: %v", err)
	}
}

func TestPositionStore_ConcurrentInsertSamePair(t *testing.T) {
	store := NewPositionStore()
	ctx := context.Background()

	const attempts = 32
	var wg sync.WaitGroup
	errs := make([]error, attempts)
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			errs[i] = store.Insert(ctx, openPosition(fmt.Sprintf("pos%d", i), "rec1", "mint1"))
		}(i)
	}
	wg.Wait()

	succeeded := 0
	for _, err := range errs {
		if err == nil {
			succeeded++
		} else if !errors.Is(err, storage.ErrOpenPositionExists) {
			t.Errorf("unexpected error: %v", err)
		}
	}
	if succeeded != 1 {
		t.Errorf("%d inserts succeeded for the same open pair, want exactly 1", succeeded)
	}
}

func TestPositionStore_GetOpen(t *testing.T) {
	store := NewPositionStore()
	ctx := context.Background()

	a := openPosition("pos1", "rec1", "mint1")
	a.OpenedAt = 300
	b := openPosition("pos2", "rec2", "mint2")
	b.OpenedAt = 100
	closedAt := int64(400)
	c := openPosition("pos3", "rec3", "mint3")
	c.ClosedAt = &closedAt

	for _, p := range []*domain.Position{a, b, c} {
		if err := store.Insert(ctx, p); err != nil {
			t.Fatalf("Insert failed: %v", err)
		}
	}

	open, err := store.GetOpen(ctx)
	if err != nil {
		t.Fatalf("GetOpen failed: %v", err)
	}
	if len(open) != 2 {
		t.Fatalf("GetOpen returned %d positions, want 2", len(open))
	}
	if open[0].ID != "pos2" || open[1].ID != "pos1" {
		t.Errorf("GetOpen order wrong: %s, %s", open[0].ID, open[1].ID)
	}
}

func TestPositionStore_NotFound(t *testing.T) {
	store := NewPositionStore()
	ctx := context.Background()

	if _, err := store.GetByID(ctx, "missing"); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
	if _, err := store.GetOpenByRecommenderAndToken(ctx, "rec", domain.ChainSolana, "mint"); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}
