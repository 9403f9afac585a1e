package trading

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"trust-trader/internal/domain"
	"trust-trader/internal/ledger"
)

// unknownSignal is a signal kind the dispatcher has no route for.
type unknownSignal struct{}

func (unknownSignal) Kind() string { return "unknown" }

func runDispatcher(t *testing.T, env *env, signals chan domain.Signal) {
	t.Helper()
	d := NewDispatcher(env.engine, zerolog.Nop())
	done := make(chan struct{})
	go func() {
		defer close(done)
		d.Run(context.Background(), signals)
	}()
	close(signals)
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("dispatcher did not drain after channel close")
	}
}

func TestDispatcher_RoutesRecommendation(t *testing.T) {
	env := newEnv(t)
	signals := make(chan domain.Signal, 1)
	signals <- domain.RecommendationSignal{
		Platform:       "telegram",
		PlatformUserID: "u1",
		Username:       "alice",
		Chain:          domain.ChainSolana,
		TokenAddress:   testMint,
		Conviction:     domain.ConvictionHigh,
		Type:           domain.RecommendationBuy,
	}
	runDispatcher(t, env, signals)

	positions, err := env.store.Positions().GetOpen(context.Background())
	if err != nil {
		t.Fatalf("GetOpen failed: %v", err)
	}
	if len(positions) != 1 {
		t.Fatalf("open positions = %d, want 1", len(positions))
	}
	if positions[0].TokenAddress != testMint {
		t.Errorf("token = %q, want %q", positions[0].TokenAddress, testMint)
	}
}

func TestDispatcher_RoutesSell(t *testing.T) {
	env := newEnv(t)
	pos := env.openPosition(t)
	ctx := context.Background()

	txs, _ := env.store.Transactions().GetByPositionID(ctx, pos.ID)
	bought := ledger.ComputeBalance(txs)

	signals := make(chan domain.Signal, 1)
	signals <- domain.SellSignal{
		PositionID:   pos.ID,
		TokenAddress: testMint,
		Amount:       bought,
	}
	runDispatcher(t, env, signals)

	got, err := env.store.Positions().GetByID(ctx, pos.ID)
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if got.Open() {
		t.Error("position still open after draining sell")
	}
}

func TestDispatcher_DropsUnknownKind(t *testing.T) {
	env := newEnv(t)
	signals := make(chan domain.Signal, 1)
	signals <- unknownSignal{}
	runDispatcher(t, env, signals)
}
