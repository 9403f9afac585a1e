package ledger

import (
	"math"
	"math/rand"
	"testing"

	"trust-trader/internal/domain"
)

func usd(v float64) *float64 { return &v }

func TestComputeBalance_SignedSum(t *testing.T) {
	txs := []*domain.Transaction{
		{Type: domain.TransactionBuy, Amount: 1000},
		{Type: domain.TransactionTransferIn, Amount: 500},
		{Type: domain.TransactionSell, Amount: 300},
		{Type: domain.TransactionTransferOut, Amount: 200},
	}

	if got := ComputeBalance(txs); got != 1000 {
		t.Errorf("ComputeBalance = %d, want 1000", got)
	}
}

func TestComputeBalance_OrderIndependent(t *testing.T) {
	txs := []*domain.Transaction{
		{Type: domain.TransactionBuy, Amount: 700},
		{Type: domain.TransactionSell, Amount: 100},
		{Type: domain.TransactionBuy, Amount: 50},
		{Type: domain.TransactionTransferOut, Amount: 25},
		{Type: domain.TransactionSell, Amount: 300},
	}

	want := ComputeBalance(txs)
	rng := rand.New(rand.NewSource(42))
	for i := 0; i < 20; i++ {
		rng.Shuffle(len(txs), func(a, b int) { txs[a], txs[b] = txs[b], txs[a] })
		if got := ComputeBalance(txs); got != want {
			t.Fatalf("shuffle %d: ComputeBalance = %d, want %d", i, got, want)
		}
	}
}

func TestCloseable(t *testing.T) {
	open := []*domain.Transaction{
		{Type: domain.TransactionBuy, Amount: 100},
		{Type: domain.TransactionSell, Amount: 40},
	}
	if Closeable(open) {
		t.Error("position with positive balance reported closeable")
	}

	drained := append(open, &domain.Transaction{Type: domain.TransactionSell, Amount: 60})
	if !Closeable(drained) {
		t.Error("position with zero balance not reported closeable")
	}

	oversold := append(drained, &domain.Transaction{Type: domain.TransactionSell, Amount: 1})
	if !Closeable(oversold) {
		t.Error("position with negative balance not reported closeable")
	}
}

func TestComputePerformance_RealizedOnly(t *testing.T) {
	// Buy 1000 units for $100, sell all 1000 for $150.
	txs := []*domain.Transaction{
		{Type: domain.TransactionBuy, Amount: 1000, ValueUsd: usd(100)},
		{Type: domain.TransactionSell, Amount: 1000, ValueUsd: usd(150)},
	}

	p := ComputePerformance(txs, 0)
	if math.Abs(p.RealizedPnL-50) > 1e-9 {
		t.Errorf("RealizedPnL = %f, want 50", p.RealizedPnL)
	}
	if p.UnrealizedPnL != 0 {
		t.Errorf("UnrealizedPnL = %f, want 0", p.UnrealizedPnL)
	}
	if math.Abs(p.PerformanceScore-50) > 1e-9 {
		t.Errorf("PerformanceScore = %f, want 50", p.PerformanceScore)
	}
}

func TestComputePerformance_UnrealizedMark(t *testing.T) {
	// Buy 1000 units for $100 (avg cost $0.10/unit), mark at $0.12/unit.
	txs := []*domain.Transaction{
		{Type: domain.TransactionBuy, Amount: 1000, ValueUsd: usd(100)},
	}

	p := ComputePerformance(txs, 0.12)
	if math.Abs(p.UnrealizedPnL-20) > 1e-9 {
		t.Errorf("UnrealizedPnL = %f, want 20", p.UnrealizedPnL)
	}
	if math.Abs(p.PerformanceScore-20) > 1e-9 {
		t.Errorf("PerformanceScore = %f, want 20", p.PerformanceScore)
	}
}

func TestComputePerformance_PartialSell(t *testing.T) {
	// Buy 1000 for $100, sell 400 for $60, mark the rest at cost.
	txs := []*domain.Transaction{
		{Type: domain.TransactionBuy, Amount: 1000, ValueUsd: usd(100)},
		{Type: domain.TransactionSell, Amount: 400, ValueUsd: usd(60)},
	}

	p := ComputePerformance(txs, 0.10)
	if math.Abs(p.RealizedPnL-20) > 1e-9 {
		t.Errorf("RealizedPnL = %f, want 20", p.RealizedPnL)
	}
	if math.Abs(p.UnrealizedPnL-0) > 1e-9 {
		t.Errorf("UnrealizedPnL = %f, want 0", p.UnrealizedPnL)
	}
}

func TestComputePerformance_TransferOutLeavesAtCost(t *testing.T) {
	txs := []*domain.Transaction{
		{Type: domain.TransactionBuy, Amount: 1000, ValueUsd: usd(100)},
		{Type: domain.TransactionTransferOut, Amount: 500},
	}

	p := ComputePerformance(txs, 0.10)
	if p.RealizedPnL != 0 {
		t.Errorf("transfer out produced realized PnL %f", p.RealizedPnL)
	}
	if math.Abs(p.UnrealizedPnL) > 1e-9 {
		t.Errorf("UnrealizedPnL = %f, want 0 at cost", p.UnrealizedPnL)
	}
}

func TestComputePerformance_NoCostBasis(t *testing.T) {
	p := ComputePerformance(nil, 1.0)
	if p.RealizedPnL != 0 || p.UnrealizedPnL != 0 || p.PerformanceScore != 0 {
		t.Errorf("empty ledger produced non-zero performance: %+v", p)
	}
}
