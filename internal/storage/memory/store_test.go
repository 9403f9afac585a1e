package memory

import (
	"context"
	"errors"
	"testing"

	"trust-trader/internal/domain"
	"trust-trader/internal/storage"
)

func TestStore_RunInTransaction_Commit(t *testing.T) {
	s := NewStore()
	ctx := context.Background()

	err := s.RunInTransaction(ctx, func(tx storage.Store) error {
		if err := tx.Recommenders().Insert(ctx, &domain.Recommender{
			ID: "rec1", Platform: "telegram", PlatformUserID: "u1",
		}); err != nil {
			return err
		}
		return tx.Positions().Insert(ctx, &domain.Position{
			ID: "pos1", Chain: domain.ChainSolana, TokenAddress: "mint1", RecommenderID: "rec1",
		})
	})
	if err != nil {
		t.Fatalf("RunInTransaction failed: %v", err)
	}

	if _, err := s.Recommenders().GetByID(ctx, "rec1"); err != nil {
		t.Errorf("recommender not committed: %v", err)
	}
	if _, err := s.Positions().GetByID(ctx, "pos1"); err != nil {
		t.Errorf("position not committed: %v", err)
	}
}

func TestStore_RunInTransaction_RollsBackAllWrites(t *testing.T) {
	s := NewStore()
	ctx := context.Background()

	boom := errors.New("boom")
	err := s.RunInTransaction(ctx, func(tx storage.Store) error {
		if err := tx.Recommenders().Insert(ctx, &domain.Recommender{
			ID: "rec1", Platform: "telegram", PlatformUserID: "u1",
		}); err != nil {
			return err
		}
		if err := tx.Transactions().Insert(ctx, &domain.Transaction{
			ID: "tx1", PositionID: "pos1", Type: domain.TransactionBuy, Amount: 100,
		}); err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected boom, got %v", err)
	}

	if _, err := s.Recommenders().GetByID(ctx, "rec1"); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("recommender survived rollback: %v", err)
	}
	txs, err := s.Transactions().GetByPositionID(ctx, "pos1")
	if err != nil {
		t.Fatalf("GetByPositionID failed: %v", err)
	}
	if len(txs) != 0 {
		t.Errorf("transaction survived rollback")
	}
}
