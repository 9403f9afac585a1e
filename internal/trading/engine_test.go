package trading

import (
	"context"
	"encoding/json"
	"errors"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"trust-trader/internal/domain"
	"trust-trader/internal/ledger"
	"trust-trader/internal/market"
	"trust-trader/internal/storage/memory"
	"trust-trader/internal/trust"
	"trust-trader/internal/wallet"
)

const (
	testMint     = "mintTEST11111111111111111111111111111111111"
	testCurrency = "So11111111111111111111111111111111111111112"
)

// fakeMarket is a canned market.Provider that counts calls.
type fakeMarket struct {
	mu          sync.Mutex
	overview    market.TokenOverview
	overviewErr error
	shouldTrade bool
	calls       int
}

func (f *fakeMarket) GetTokenOverview(_ context.Context, _ domain.Chain, _ string, _ bool) (*market.TokenOverview, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.overviewErr != nil {
		return nil, f.overviewErr
	}
	copy := f.overview
	return &copy, nil
}

func (f *fakeMarket) ResolveTicker(context.Context, domain.Chain, string) (string, error) {
	return "", nil
}

func (f *fakeMarket) ShouldTradeToken(context.Context, domain.Chain, string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.shouldTrade, nil
}

func (f *fakeMarket) overviewCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

// gatedWallet delegates to a SimWallet but parks real buy executions
// (currency in, token out) until release is closed.
type gatedWallet struct {
	*wallet.SimWallet
	entered chan struct{}
	release chan struct{}
	once    sync.Once
}

func (g *gatedWallet) ExecuteSwap(ctx context.Context, inputToken, outputToken string, quoteData json.RawMessage) (*wallet.SwapResult, error) {
	if inputToken == g.CurrencyAddress() {
		g.once.Do(func() { close(g.entered) })
		<-g.release
	}
	return g.SimWallet.ExecuteSwap(ctx, inputToken, outputToken, quoteData)
}

type recordingMonitor struct {
	mu      sync.Mutex
	stopped []string
}

func (m *recordingMonitor) StopTracking(positionID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stopped = append(m.stopped, positionID)
	return nil
}

type env struct {
	store   *memory.Store
	market  *fakeMarket
	wallet  *wallet.SimWallet
	trust   *trust.Engine
	engine  *Engine
	monitor *recordingMonitor
}

func newEnv(t *testing.T) *env {
	t.Helper()

	store := memory.NewStore()
	fm := &fakeMarket{
		overview: market.TokenOverview{
			Symbol:       "TKN",
			Decimals:     6,
			Price:        2.0,
			Volume24h:    50_000,
			LiquidityUsd: 20_000,
			MarketCap:    500_000,
			Trades24h:    100,
		},
		shouldTrade: true,
	}
	trustEngine := trust.NewEngine(store, fm, zerolog.Nop())
	sw := wallet.NewSimWallet(domain.ChainSolana, "SimWa11et1111111111111111111111111111111111", testCurrency, 10_000_000_000)

	cfg := Config{
		MaxAccountPercentage: 0.05,
		MinBuy:               1,
		MaxBuy:               10_000_000_000,
		MinWalletBalance:     0,
		SlippageBps:          100,
	}
	monitor := &recordingMonitor{}
	engine := NewEngine(store, fm, trustEngine,
		map[domain.Chain]wallet.Provider{domain.ChainSolana: sw},
		cfg, zerolog.Nop(), WithMonitor(monitor))

	return &env{store: store, market: fm, wallet: sw, trust: trustEngine, engine: engine, monitor: monitor}
}

func testIdentity() trust.RecommenderIdentity {
	return trust.RecommenderIdentity{Platform: "telegram", PlatformUserID: "u1", Username: "alice"}
}

func (e *env) recommendBuy(t *testing.T) (bool, error) {
	t.Helper()
	return e.engine.HandleRecommendation(context.Background(), testIdentity(),
		domain.ChainSolana, testMint, domain.ConvictionHigh, domain.RecommendationBuy, nil)
}

func (e *env) openPosition(t *testing.T) *domain.Position {
	t.Helper()
	opened, err := e.recommendBuy(t)
	if err != nil {
		t.Fatalf("HandleRecommendation failed: %v", err)
	}
	if !opened {
		t.Fatal("no position opened")
	}
	positions, err := e.store.Positions().GetOpen(context.Background())
	if err != nil || len(positions) != 1 {
		t.Fatalf("open positions = %d (%v), want 1", len(positions), err)
	}
	return positions[0]
}

func TestHandleRecommendation_GatePassesOpensRealPosition(t *testing.T) {
	e := newEnv(t)
	pos := e.openPosition(t)

	if pos.IsSimulation {
		t.Error("gate passed but position is simulated")
	}
	if pos.TokenAddress != testMint {
		t.Errorf("position token = %s", pos.TokenAddress)
	}

	txs, err := e.store.Transactions().GetByPositionID(context.Background(), pos.ID)
	if err != nil || len(txs) != 1 {
		t.Fatalf("transactions = %d (%v), want 1", len(txs), err)
	}
	if txs[0].Type != domain.TransactionBuy {
		t.Errorf("transaction type = %s, want BUY", txs[0].Type)
	}
	if txs[0].Amount <= 0 {
		t.Errorf("buy amount = %d", txs[0].Amount)
	}

	rec, err := e.store.Recommendations().GetActiveByRecommenderAndToken(
		context.Background(), pos.RecommenderID, domain.ChainSolana, testMint)
	if err != nil {
		t.Fatalf("active recommendation missing: %v", err)
	}
	if rec.ID != pos.RecommendationID {
		t.Errorf("position not linked to recommendation: %s vs %s", pos.RecommendationID, rec.ID)
	}
}

func TestHandleRecommendation_GateFailsOpensSimulatedPosition(t *testing.T) {
	e := newEnv(t)
	e.market.shouldTrade = false

	pos := e.openPosition(t)
	if !pos.IsSimulation {
		t.Error("gate failed but position is real")
	}
}

func TestHandleRecommendation_RejectsSecondOpenForSamePair(t *testing.T) {
	e := newEnv(t)
	e.openPosition(t)

	opened, err := e.recommendBuy(t)
	if !errors.Is(err, ErrPositionAlreadyOpen) {
		t.Fatalf("err = %v, want ErrPositionAlreadyOpen", err)
	}
	if opened {
		t.Error("second recommendation opened a position")
	}
}

func TestHandleRecommendation_NonBuyRecordedWithoutExecution(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	opened, err := e.engine.HandleRecommendation(ctx, testIdentity(),
		domain.ChainSolana, testMint, domain.ConvictionLow, domain.RecommendationDontBuy, nil)
	if err != nil {
		t.Fatalf("HandleRecommendation failed: %v", err)
	}
	if opened {
		t.Error("DONT_BUY opened a position")
	}

	positions, _ := e.store.Positions().GetOpen(ctx)
	if len(positions) != 0 {
		t.Errorf("open positions = %d, want 0", len(positions))
	}

	recs, _ := e.store.Recommendations().GetByToken(ctx, domain.ChainSolana, testMint)
	if len(recs) != 1 {
		t.Errorf("recommendations = %d, want 1 recorded", len(recs))
	}
}

func TestHandleRecommendation_ConcurrentSamePairOpensOnce(t *testing.T) {
	e := newEnv(t)

	const workers = 16
	var wg sync.WaitGroup
	results := make(chan error, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			opened, err := e.recommendBuy(t)
			if err == nil && !opened {
				err = errors.New("no error but nothing opened")
			}
			results <- err
		}()
	}
	wg.Wait()
	close(results)

	var successes, rejections int
	for err := range results {
		switch {
		case err == nil:
			successes++
		case errors.Is(err, ErrPositionAlreadyOpen):
			rejections++
		default:
			t.Errorf("unexpected error: %v", err)
		}
	}
	if successes != 1 {
		t.Errorf("successes = %d, want exactly 1", successes)
	}
	if rejections != workers-1 {
		t.Errorf("rejections = %d, want %d", rejections, workers-1)
	}

	positions, _ := e.store.Positions().GetOpen(context.Background())
	if len(positions) != 1 {
		t.Errorf("open positions = %d, want 1", len(positions))
	}
}

func TestHandleBuySignal_PromotesSimulatedPositionOnce(t *testing.T) {
	e := newEnv(t)
	e.market.shouldTrade = false
	simPos := e.openPosition(t)
	ctx := context.Background()

	simTxs, _ := e.store.Transactions().GetByPositionID(ctx, simPos.ID)
	if len(simTxs) != 1 || simTxs[0].SolAmount == nil {
		t.Fatalf("simulated position missing buy transaction")
	}
	invested := *simTxs[0].SolAmount

	err := e.engine.HandleBuySignal(ctx, domain.BuySignal{
		PositionID:    simPos.ID,
		TokenAddress:  testMint,
		RecommenderID: simPos.RecommenderID,
	})
	if err != nil {
		t.Fatalf("HandleBuySignal failed: %v", err)
	}

	closed, err := e.store.Positions().GetByID(ctx, simPos.ID)
	if err != nil {
		t.Fatalf("load simulated position: %v", err)
	}
	if closed.Open() {
		t.Error("simulated position still open after promotion")
	}

	open, _ := e.store.Positions().GetOpen(ctx)
	if len(open) != 1 {
		t.Fatalf("open positions = %d, want 1 real", len(open))
	}
	real := open[0]
	if real.IsSimulation {
		t.Error("promoted position is still simulated")
	}
	if real.ID == simPos.ID {
		t.Error("promotion reused the simulated position id")
	}

	realTxs, _ := e.store.Transactions().GetByPositionID(ctx, real.ID)
	if len(realTxs) != 1 || realTxs[0].Type != domain.TransactionBuy {
		t.Fatalf("real position transactions = %+v", realTxs)
	}
	if realTxs[0].SolAmount == nil || *realTxs[0].SolAmount != invested {
		t.Errorf("real buy not sized from simulated invested amount")
	}

	// Replaying the signal must refuse: the simulated position is closed.
	err = e.engine.HandleBuySignal(ctx, domain.BuySignal{
		PositionID:    simPos.ID,
		TokenAddress:  testMint,
		RecommenderID: simPos.RecommenderID,
	})
	if !errors.Is(err, ErrPositionClosed) {
		t.Errorf("replay err = %v, want ErrPositionClosed", err)
	}
}

func TestHandleBuySignal_PromotionPersistsSimulatedPerformance(t *testing.T) {
	e := newEnv(t)
	e.market.shouldTrade = false
	simPos := e.openPosition(t)
	ctx := context.Background()

	// The token doubles between the simulated open and the promotion.
	e.market.overview.Price = 4.0
	e.market.shouldTrade = true

	err := e.engine.HandleBuySignal(ctx, domain.BuySignal{
		PositionID:    simPos.ID,
		TokenAddress:  testMint,
		RecommenderID: simPos.RecommenderID,
	})
	if err != nil {
		t.Fatalf("HandleBuySignal failed: %v", err)
	}

	closed, err := e.store.Positions().GetByID(ctx, simPos.ID)
	if err != nil {
		t.Fatalf("load simulated position: %v", err)
	}
	if closed.Open() {
		t.Fatal("simulated position still open after promotion")
	}
	if math.Abs(closed.PerformanceScore-100) > 1e-6 {
		t.Errorf("closed PerformanceScore = %v, want 100 after price doubled", closed.PerformanceScore)
	}
}

func TestClosePosition_RecomputesPerformanceFromLedger(t *testing.T) {
	e := newEnv(t)
	pos := e.openPosition(t)
	ctx := context.Background()

	e.market.overview.Price = 3.0
	if err := e.engine.ClosePosition(ctx, pos.ID); err != nil {
		t.Fatalf("ClosePosition failed: %v", err)
	}

	closed, err := e.store.Positions().GetByID(ctx, pos.ID)
	if err != nil {
		t.Fatalf("load position: %v", err)
	}
	if closed.Open() {
		t.Fatal("position still open")
	}
	if math.Abs(closed.PerformanceScore-50) > 1e-6 {
		t.Errorf("PerformanceScore = %v, want 50 after 2.0 -> 3.0 mark", closed.PerformanceScore)
	}
}

func TestRealBuyInFlightDoesNotBlockUnrelatedSell(t *testing.T) {
	store := memory.NewStore()
	fm := &fakeMarket{
		overview: market.TokenOverview{
			Symbol:       "TKN",
			Decimals:     6,
			Price:        2.0,
			Volume24h:    50_000,
			LiquidityUsd: 20_000,
			MarketCap:    500_000,
			Trades24h:    100,
		},
	}
	trustEngine := trust.NewEngine(store, fm, zerolog.Nop())
	sw := wallet.NewSimWallet(domain.ChainSolana, "SimWa11et1111111111111111111111111111111111", testCurrency, 10_000_000_000)
	gw := &gatedWallet{SimWallet: sw, entered: make(chan struct{}), release: make(chan struct{})}
	cfg := Config{
		MaxAccountPercentage: 0.05,
		MinBuy:               1,
		MaxBuy:               10_000_000_000,
		SlippageBps:          100,
	}
	engine := NewEngine(store, fm, trustEngine,
		map[domain.Chain]wallet.Provider{domain.ChainSolana: gw}, cfg, zerolog.Nop())
	ctx := context.Background()

	// A simulated position to sell while the real buy is parked.
	opened, err := engine.HandleRecommendation(ctx, testIdentity(),
		domain.ChainSolana, testMint, domain.ConvictionHigh, domain.RecommendationBuy, nil)
	if err != nil || !opened {
		t.Fatalf("open simulated position: opened=%v err=%v", opened, err)
	}
	open, _ := store.Positions().GetOpen(ctx)
	if len(open) != 1 {
		t.Fatalf("open positions = %d, want 1", len(open))
	}
	simPos := open[0]
	txs, _ := store.Transactions().GetByPositionID(ctx, simPos.ID)
	balance := ledger.ComputeBalance(txs)

	const otherMint = "mintOTHER1111111111111111111111111111111111"
	fm.shouldTrade = true
	buyErr := make(chan error, 1)
	go func() {
		_, err := engine.HandleRecommendation(ctx,
			trust.RecommenderIdentity{Platform: "telegram", PlatformUserID: "u2"},
			domain.ChainSolana, otherMint, domain.ConvictionHigh, domain.RecommendationBuy, nil)
		buyErr <- err
	}()

	select {
	case <-gw.entered:
	case <-time.After(5 * time.Second):
		t.Fatal("real buy never reached the swap")
	}

	// The parked buy holds the buy lock; the unrelated sell must not wait
	// on it.
	sellDone := make(chan error, 1)
	go func() {
		sellDone <- engine.HandleSellSignal(ctx, domain.SellSignal{
			PositionID:   simPos.ID,
			TokenAddress: testMint,
			Amount:       balance,
		})
	}()
	select {
	case err := <-sellDone:
		if err != nil {
			t.Fatalf("sell failed: %v", err)
		}
	case <-time.After(5 * time.Second):
		close(gw.release)
		t.Fatal("sell blocked while a real buy held the buy lock")
	}

	close(gw.release)
	if err := <-buyErr; err != nil {
		t.Fatalf("buy failed after release: %v", err)
	}
	after, _ := store.Positions().GetByID(ctx, simPos.ID)
	if after.Open() {
		t.Error("sold position still open")
	}
}

func TestHandleBuySignal_RejectsRealPosition(t *testing.T) {
	e := newEnv(t)
	pos := e.openPosition(t)

	err := e.engine.HandleBuySignal(context.Background(), domain.BuySignal{
		PositionID:    pos.ID,
		TokenAddress:  testMint,
		RecommenderID: pos.RecommenderID,
	})
	if !errors.Is(err, ErrPositionNotSimulated) {
		t.Errorf("err = %v, want ErrPositionNotSimulated", err)
	}
}

func TestHandleSellSignal_PartialThenDrainCloses(t *testing.T) {
	e := newEnv(t)
	pos := e.openPosition(t)
	ctx := context.Background()

	txs, _ := e.store.Transactions().GetByPositionID(ctx, pos.ID)
	bought := ledger.ComputeBalance(txs)
	if bought <= 0 {
		t.Fatalf("bought balance = %d", bought)
	}

	half := bought / 2
	err := e.engine.HandleSellSignal(ctx, domain.SellSignal{
		PositionID:   pos.ID,
		TokenAddress: testMint,
		Amount:       half,
	})
	if err != nil {
		t.Fatalf("partial sell failed: %v", err)
	}

	after, _ := e.store.Positions().GetByID(ctx, pos.ID)
	if !after.Open() {
		t.Fatal("position closed after partial sell")
	}
	txs, _ = e.store.Transactions().GetByPositionID(ctx, pos.ID)
	if got := ledger.ComputeBalance(txs); got != bought-half {
		t.Errorf("balance = %d, want %d", got, bought-half)
	}

	// Selling the remainder drains and closes.
	err = e.engine.HandleSellSignal(ctx, domain.SellSignal{
		PositionID:   pos.ID,
		TokenAddress: testMint,
		Amount:       bought - half,
	})
	if err != nil {
		t.Fatalf("final sell failed: %v", err)
	}

	after, _ = e.store.Positions().GetByID(ctx, pos.ID)
	if after.Open() {
		t.Error("position still open after draining sell")
	}

	recs, _ := e.store.Recommendations().GetByRecommenderID(ctx, pos.RecommenderID)
	if len(recs) != 1 || recs[0].Status != domain.RecommendationStatusCompleted {
		t.Errorf("recommendation not completed: %+v", recs)
	}
}

func TestHandleSellSignal_OversellCappedAtBalance(t *testing.T) {
	e := newEnv(t)
	pos := e.openPosition(t)
	ctx := context.Background()

	txs, _ := e.store.Transactions().GetByPositionID(ctx, pos.ID)
	bought := ledger.ComputeBalance(txs)

	err := e.engine.HandleSellSignal(ctx, domain.SellSignal{
		PositionID:   pos.ID,
		TokenAddress: testMint,
		Amount:       bought * 10,
	})
	if err != nil {
		t.Fatalf("sell failed: %v", err)
	}

	txs, _ = e.store.Transactions().GetByPositionID(ctx, pos.ID)
	if got := ledger.ComputeBalance(txs); got != 0 {
		t.Errorf("balance after capped sell = %d, want 0", got)
	}
	after, _ := e.store.Positions().GetByID(ctx, pos.ID)
	if after.Open() {
		t.Error("drained position not closed")
	}
}

func TestHandleSellSignal_ConcurrentNeverOversells(t *testing.T) {
	e := newEnv(t)
	pos := e.openPosition(t)
	ctx := context.Background()

	txs, _ := e.store.Transactions().GetByPositionID(ctx, pos.ID)
	bought := ledger.ComputeBalance(txs)

	const workers = 8
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := e.engine.HandleSellSignal(ctx, domain.SellSignal{
				PositionID:   pos.ID,
				TokenAddress: testMint,
				Amount:       bought,
			})
			if err != nil && !errors.Is(err, ErrPositionClosed) {
				t.Errorf("unexpected sell error: %v", err)
			}
		}()
	}
	wg.Wait()

	txs, _ = e.store.Transactions().GetByPositionID(ctx, pos.ID)
	if got := ledger.ComputeBalance(txs); got != 0 {
		t.Errorf("final balance = %d, want 0", got)
	}

	var sells int
	for _, tx := range txs {
		if tx.Type == domain.TransactionSell {
			sells++
		}
	}
	if sells != 1 {
		t.Errorf("sell transactions = %d, want 1", sells)
	}
}

func TestHandlePriceSignal_ZeroChangeIsPureNoOp(t *testing.T) {
	e := newEnv(t)
	pos := e.openPosition(t)
	ctx := context.Background()

	before := e.market.overviewCalls()
	err := e.engine.HandlePriceSignal(ctx, domain.PriceSignal{
		PositionID:   pos.ID,
		TokenAddress: testMint,
		PriceChange:  0,
	})
	if err != nil {
		t.Fatalf("HandlePriceSignal failed: %v", err)
	}
	if e.market.overviewCalls() != before {
		t.Error("zero price change hit the market provider")
	}
}

func TestHandlePriceSignal_UpdatesRecommendationSnapshot(t *testing.T) {
	e := newEnv(t)
	pos := e.openPosition(t)
	ctx := context.Background()

	e.market.mu.Lock()
	e.market.overview.Price = 3.5
	e.market.mu.Unlock()

	err := e.engine.HandlePriceSignal(ctx, domain.PriceSignal{
		PositionID:   pos.ID,
		TokenAddress: testMint,
		PriceChange:  75,
	})
	if err != nil {
		t.Fatalf("HandlePriceSignal failed: %v", err)
	}

	rec, err := e.store.Recommendations().GetActiveByRecommenderAndToken(
		ctx, pos.RecommenderID, domain.ChainSolana, testMint)
	if err != nil {
		t.Fatalf("load recommendation: %v", err)
	}
	if rec.CurrentPrice != 3.5 {
		t.Errorf("CurrentPrice = %f, want 3.5", rec.CurrentPrice)
	}

	// The ledger is never touched by price signals.
	txs, _ := e.store.Transactions().GetByPositionID(ctx, pos.ID)
	if len(txs) != 1 {
		t.Errorf("transactions = %d, want 1", len(txs))
	}
}

func TestHandlePriceSignal_MissingOrClosedPositionIsNoOp(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	err := e.engine.HandlePriceSignal(ctx, domain.PriceSignal{
		PositionID:   "nope",
		TokenAddress: testMint,
		PriceChange:  10,
	})
	if err != nil {
		t.Errorf("missing position: err = %v, want nil", err)
	}

	pos := e.openPosition(t)
	if err := e.engine.ClosePosition(ctx, pos.ID); err != nil {
		t.Fatalf("close failed: %v", err)
	}
	err = e.engine.HandlePriceSignal(ctx, domain.PriceSignal{
		PositionID:   pos.ID,
		TokenAddress: testMint,
		PriceChange:  10,
	})
	if err != nil {
		t.Errorf("closed position: err = %v, want nil", err)
	}
}

func TestClosePosition_IdempotentAndNotifiesMonitor(t *testing.T) {
	e := newEnv(t)
	pos := e.openPosition(t)
	ctx := context.Background()

	if err := e.engine.ClosePosition(ctx, pos.ID); err != nil {
		t.Fatalf("first close failed: %v", err)
	}
	first, _ := e.store.Positions().GetByID(ctx, pos.ID)
	if first.Open() || first.ClosedAt == nil {
		t.Fatal("position not closed")
	}
	closedAt := *first.ClosedAt

	if err := e.engine.ClosePosition(ctx, pos.ID); err != nil {
		t.Fatalf("second close failed: %v", err)
	}
	second, _ := e.store.Positions().GetByID(ctx, pos.ID)
	if *second.ClosedAt != closedAt {
		t.Error("second close rewrote closedAt")
	}

	e.monitor.mu.Lock()
	defer e.monitor.mu.Unlock()
	if len(e.monitor.stopped) != 2 {
		t.Errorf("monitor notifications = %d, want one per close call", len(e.monitor.stopped))
	}
}

func TestStart_SeedsActiveIndex(t *testing.T) {
	e := newEnv(t)
	pos := e.openPosition(t)

	fresh := NewEngine(e.store, e.market, e.trust,
		map[domain.Chain]wallet.Provider{domain.ChainSolana: e.wallet},
		e.engine.cfg, zerolog.Nop())
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := fresh.Start(ctx); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	ids := fresh.ActivePositionIDs()
	if len(ids) != 1 || ids[0] != pos.ID {
		t.Errorf("active index = %v, want [%s]", ids, pos.ID)
	}
}

func TestHandleRecommendation_NoWalletForChain(t *testing.T) {
	e := newEnv(t)

	_, err := e.engine.HandleRecommendation(context.Background(), testIdentity(),
		domain.ChainBase, testMint, domain.ConvictionLow, domain.RecommendationBuy, nil)
	if !errors.Is(err, ErrNoWalletForChain) {
		t.Errorf("err = %v, want ErrNoWalletForChain", err)
	}
}
