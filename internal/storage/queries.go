package storage

import (
	"context"
	"fmt"

	"trust-trader/internal/domain"
	"trust-trader/internal/ledger"
)

// PositionWithBalance pairs a position with its live ledger-derived balance.
type PositionWithBalance struct {
	Position *domain.Position
	Balance  int64 // smallest token units
}

// OpenPositionsWithBalance returns every open position together with the
// signed-sum balance of its transactions.
func OpenPositionsWithBalance(ctx context.Context, s Store) ([]*PositionWithBalance, error) {
	positions, err := s.Positions().GetOpen(ctx)
	if err != nil {
		return nil, fmt.Errorf("get open positions: %w", err)
	}
	return withBalances(ctx, s, positions)
}

// PositionsWithBalanceByRecommenderAndToken returns all positions, open and
// closed, for a (recommender, token) pair with their balances.
func PositionsWithBalanceByRecommenderAndToken(ctx context.Context, s Store, recommenderID string, chain domain.Chain, tokenAddress string) ([]*PositionWithBalance, error) {
	positions, err := s.Positions().GetByRecommenderAndToken(ctx, recommenderID, chain, tokenAddress)
	if err != nil {
		return nil, fmt.Errorf("get positions by recommender and token: %w", err)
	}
	return withBalances(ctx, s, positions)
}

func withBalances(ctx context.Context, s Store, positions []*domain.Position) ([]*PositionWithBalance, error) {
	if len(positions) == 0 {
		return nil, nil
	}

	ids := make([]string, len(positions))
	for i, p := range positions {
		ids[i] = p.ID
	}

	txsByPosition, err := s.Transactions().GetByPositionIDs(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("get transactions for positions: %w", err)
	}

	result := make([]*PositionWithBalance, len(positions))
	for i, p := range positions {
		result[i] = &PositionWithBalance{
			Position: p,
			Balance:  ledger.ComputeBalance(txsByPosition[p.ID]),
		}
	}
	return result, nil
}
