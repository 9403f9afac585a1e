// Package ledger derives position balance and realized/unrealized
// performance from the append-only transaction list. All functions are
// pure: they never touch storage and are safe to call concurrently.
package ledger

import "trust-trader/internal/domain"

// Performance is the derived P&L view of one position.
type Performance struct {
	RealizedPnL   float64 // USD, closed portion vs. weighted cost basis
	UnrealizedPnL float64 // USD, remaining balance marked to current price
	// PerformanceScore is total PnL (realized + unrealized) as a percent
	// of the buy cost basis. Zero when no cost basis exists.
	PerformanceScore float64
}

// ComputeBalance returns the position balance in smallest token units:
// the signed sum over all transactions, BUY and TRANSFER_IN adding,
// SELL and TRANSFER_OUT subtracting. Order-independent.
func ComputeBalance(txs []*domain.Transaction) int64 {
	var balance int64
	for _, tx := range txs {
		balance += tx.SignedAmount()
	}
	return balance
}

// Closeable reports whether a position with these transactions is eligible
// for automatic closing (balance drained to zero or below).
func Closeable(txs []*domain.Transaction) bool {
	return ComputeBalance(txs) <= 0
}

// ComputePerformance compares the weighted buy cost basis against sell
// proceeds and the current mark price.
//
// markUnitPrice is USD per smallest token unit (callers convert from the
// per-token quote using the token's decimals). Inbound transfers with a
// known ValueUsd join the cost basis; outbound transfers leave at cost and
// produce no P&L. Transactions without ValueUsd move units at zero value.
func ComputePerformance(txs []*domain.Transaction, markUnitPrice float64) Performance {
	var costUnits int64   // units acquired
	var costUsd float64   // USD paid for them
	var soldUnits int64
	var soldUsd float64
	var outUnits int64 // transferred out, leave at cost
	var balance int64

	for _, tx := range txs {
		balance += tx.SignedAmount()
		value := 0.0
		if tx.ValueUsd != nil {
			value = *tx.ValueUsd
		}
		switch tx.Type {
		case domain.TransactionBuy, domain.TransactionTransferIn:
			costUnits += tx.Amount
			costUsd += value
		case domain.TransactionSell:
			soldUnits += tx.Amount
			soldUsd += value
		case domain.TransactionTransferOut:
			outUnits += tx.Amount
		}
	}

	var p Performance
	if costUnits == 0 {
		return p
	}

	avgCost := costUsd / float64(costUnits) // USD per smallest unit
	p.RealizedPnL = soldUsd - float64(soldUnits)*avgCost
	if balance > 0 {
		p.UnrealizedPnL = float64(balance) * (markUnitPrice - avgCost)
	}

	// Out-transfers shrink the basis the score is measured against.
	heldCost := costUsd - float64(outUnits)*avgCost
	if heldCost > 0 {
		p.PerformanceScore = (p.RealizedPnL + p.UnrealizedPnL) / heldCost * 100
	}
	return p
}
