package trading

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"trust-trader/internal/domain"
	"trust-trader/internal/ledger"
	"trust-trader/internal/market"
	"trust-trader/internal/observability"
	"trust-trader/internal/storage"
	"trust-trader/internal/trust"
	"trust-trader/internal/wallet"
)

// Trading errors. All of them abort the triggering operation and are never
// retried.
var (
	// ErrPositionAlreadyOpen is returned when a recommender already has an
	// open position in the token.
	ErrPositionAlreadyOpen = errors.New("trading: open position already exists for recommender and token")

	// ErrNoWalletForChain is returned when no wallet is configured for the
	// position's chain.
	ErrNoWalletForChain = errors.New("trading: no wallet configured for chain")

	// ErrPositionClosed is returned when an operation targets a position
	// that has already been closed or drained.
	ErrPositionClosed = errors.New("trading: position is closed")

	// ErrPositionNotSimulated is returned when a buy signal references a
	// position that is already real.
	ErrPositionNotSimulated = errors.New("trading: position is not a simulation")
)

// lockSweepInterval is how often idle sell locks are garbage collected.
const lockSweepInterval = 10 * time.Minute

// Monitor is an external execution-monitor collaborator told to stop
// tracking closed positions. Notification is best-effort.
type Monitor interface {
	StopTracking(positionID string) error
}

// Engine consumes buy/sell/price signals and recommendations, sizes and
// executes swaps, and writes the resulting positions and transactions.
// Real buys are serialized process-wide because sizing reads one shared
// wallet balance; sells are serialized per (position, token) key.
type Engine struct {
	store   storage.Store
	market  market.Provider
	trust   *trust.Engine
	wallets map[domain.Chain]wallet.Provider
	cfg     Config
	log     zerolog.Logger
	monitor Monitor

	buyMu     sync.Mutex
	sellLocks *keyedLocks

	activeMu sync.Mutex
	active   map[string]struct{}

	now   func() time.Time
	newID func() string
}

// EngineOption customizes an Engine.
type EngineOption func(*Engine)

// WithClock overrides the engine's time source.
func WithClock(now func() time.Time) EngineOption {
	return func(e *Engine) { e.now = now }
}

// WithIDGenerator overrides position/transaction id generation.
func WithIDGenerator(gen func() string) EngineOption {
	return func(e *Engine) { e.newID = gen }
}

// WithMonitor attaches an external execution monitor.
func WithMonitor(m Monitor) EngineOption {
	return func(e *Engine) { e.monitor = m }
}

// WithLockIdleTTL overrides how long idle sell locks are kept.
func WithLockIdleTTL(ttl time.Duration) EngineOption {
	return func(e *Engine) { e.sellLocks = newKeyedLocks(ttl) }
}

// NewEngine wires a trading engine over its collaborators. The wallets map
// is keyed by chain; chains without a wallet cannot trade.
func NewEngine(store storage.Store, provider market.Provider, trustEngine *trust.Engine, wallets map[domain.Chain]wallet.Provider, cfg Config, log zerolog.Logger, opts ...EngineOption) *Engine {
	e := &Engine{
		store:     store,
		market:    provider,
		trust:     trustEngine,
		wallets:   wallets,
		cfg:       cfg,
		log:       log.With().Str("component", "trading").Logger(),
		sellLocks: newKeyedLocks(DefaultLockIdleTTL),
		active:    make(map[string]struct{}),
		now:       time.Now,
		newID:     uuid.NewString,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Start seeds the active-position index from storage and launches the sell
// lock janitor. The janitor stops when ctx is cancelled.
func (e *Engine) Start(ctx context.Context) error {
	positions, err := e.store.Positions().GetOpen(ctx)
	if err != nil {
		return fmt.Errorf("load open positions: %w", err)
	}
	for _, p := range positions {
		e.trackPosition(p.ID)
	}
	go e.sellLocks.janitor(ctx, lockSweepInterval)
	return nil
}

// HandleRecommendation records a recommendation and, for BUY types, opens a
// position: real when the trade gate passes, simulated when it fails, so
// paper-trading history accumulates even on rejected tokens. Returns true
// when a position was opened.
func (e *Engine) HandleRecommendation(ctx context.Context, identity trust.RecommenderIdentity, chain domain.Chain, tokenAddress string, conviction domain.Conviction, recType domain.RecommendationType, metadata map[string]string) (bool, error) {
	r, err := e.trust.GetOrCreateRecommender(ctx, identity)
	if err != nil {
		return false, fmt.Errorf("resolve recommender: %w", err)
	}

	if _, err := e.store.Positions().GetOpenByRecommenderAndToken(ctx, r.ID, chain, tokenAddress); err == nil {
		observability.RecordRecommendation(string(recType), "rejected")
		return false, ErrPositionAlreadyOpen
	} else if !errors.Is(err, storage.ErrNotFound) {
		return false, fmt.Errorf("check open position: %w", err)
	}

	var rec *domain.TokenRecommendation
	err = e.store.RunInTransaction(ctx, func(s storage.Store) error {
		rec, err = e.trust.WithStore(s).RecordRecommendation(ctx, r.ID, chain, tokenAddress, conviction, recType, metadata)
		return err
	})
	if err != nil {
		return false, fmt.Errorf("record recommendation: %w", err)
	}

	if recType != domain.RecommendationBuy {
		// SELL / DONT_BUY / DONT_SELL / NONE do not drive execution yet.
		// Placeholder until those flows are specified.
		e.log.Info().Str("type", string(recType)).Str("recommender_id", r.ID).
			Msg("recommendation type has no execution flow, recorded only")
		observability.RecordRecommendation(string(recType), "unimplemented")
		return false, nil
	}

	w, ok := e.wallets[chain]
	if !ok {
		return false, ErrNoWalletForChain
	}

	tradable, err := e.market.ShouldTradeToken(ctx, chain, tokenAddress)
	if err != nil {
		// An unreachable gate means an unknown token: paper-trade it.
		e.log.Warn().Err(err).Str("token", tokenAddress).Msg("trade gate unavailable, falling back to simulation")
		tradable = false
	}

	tp, err := e.store.TokenPerformance().Get(ctx, chain, tokenAddress)
	if err != nil {
		return false, fmt.Errorf("load token performance: %w", err)
	}

	amount, err := e.GetBuyAmount(ctx, chain, tp, conviction, r.ID, nil)
	if err != nil {
		return false, fmt.Errorf("size buy: %w", err)
	}
	if amount == 0 {
		e.log.Info().Str("recommender_id", r.ID).Str("token", tokenAddress).
			Msg("wallet balance below minimum, skipping buy")
		observability.RecordRecommendation(string(recType), "skipped")
		return false, nil
	}

	isSim := !tradable || e.cfg.ForceSimulation
	if _, err := e.openBuyPosition(ctx, w, r.ID, rec.ID, tp, amount, isSim); err != nil {
		observability.RecordRecommendation(string(recType), "error")
		return false, err
	}

	if isSim {
		observability.RecordRecommendation(string(recType), "simulated")
	} else {
		observability.RecordRecommendation(string(recType), "executed")
	}
	return true, nil
}

// GetBuyAmount sizes a buy in smallest native currency units. Returns 0
// when the wallet balance is below the configured minimum. Otherwise the
// wallet share is scaled by the liquidity/volume/market-cap/conviction
// tiers, the recommender's trust score, and optional social sentiment,
// then clamped to the configured buy range.
func (e *Engine) GetBuyAmount(ctx context.Context, chain domain.Chain, tp *domain.TokenPerformance, conviction domain.Conviction, recommenderID string, socialSentiment *float64) (int64, error) {
	w, ok := e.wallets[chain]
	if !ok {
		return 0, ErrNoWalletForChain
	}

	balance, err := w.AccountBalance(ctx)
	if err != nil {
		return 0, fmt.Errorf("account balance: %w", err)
	}
	if balance < e.cfg.MinWalletBalance {
		return 0, nil
	}

	trustScore := 0.0
	m, err := e.store.RecommenderMetrics().GetByRecommenderID(ctx, recommenderID)
	switch {
	case err == nil:
		trustScore = m.TrustScore
	case errors.Is(err, storage.ErrNotFound):
		// Never scored: size without a trust bonus.
	default:
		return 0, fmt.Errorf("load recommender metrics: %w", err)
	}

	amount := float64(balance) * e.cfg.MaxAccountPercentage
	amount *= tierMultiplier(e.cfg.LiquidityTiers, tp.LiquidityUsd)
	amount *= tierMultiplier(e.cfg.VolumeTiers, tp.Volume24h)
	amount *= tierMultiplier(e.cfg.MarketCapTiers, tp.CurrentMarketCap)
	amount *= e.cfg.convictionMultiplier(conviction)
	amount *= 1 + trustScore/100
	if socialSentiment != nil {
		amount *= 1 + *socialSentiment/100
	}

	// Clamp in float space first: converting an out-of-range float64 to
	// int64 is platform-defined.
	if amount > float64(e.cfg.MaxBuy) {
		amount = float64(e.cfg.MaxBuy)
	}
	final := int64(amount)
	if final < e.cfg.MinBuy {
		final = e.cfg.MinBuy
	}
	if final > e.cfg.MaxBuy {
		final = e.cfg.MaxBuy
	}
	return final, nil
}

// HandleBuySignal promotes a simulated position to a real one: the
// simulated position is closed exactly once, then a real swap sized from
// its invested amount runs under the global buy lock, and the resulting
// position and BUY transaction are recorded.
func (e *Engine) HandleBuySignal(ctx context.Context, sig domain.BuySignal) error {
	pos, err := e.store.Positions().GetByID(ctx, sig.PositionID)
	if err != nil {
		return fmt.Errorf("load position: %w", err)
	}
	if pos.TokenAddress != sig.TokenAddress {
		return storage.ErrInvalidInput
	}
	if !pos.Open() {
		return ErrPositionClosed
	}
	if !pos.IsSimulation {
		return ErrPositionNotSimulated
	}
	if _, err := e.store.Recommenders().GetByID(ctx, sig.RecommenderID); err != nil {
		return fmt.Errorf("validate recommender: %w", err)
	}
	w, ok := e.wallets[pos.Chain]
	if !ok {
		return ErrNoWalletForChain
	}

	tp, err := e.trust.RefreshTokenPerformance(ctx, pos.Chain, pos.TokenAddress, true)
	if err != nil {
		return fmt.Errorf("refresh token performance: %w", err)
	}

	invested, err := e.investedAmount(ctx, pos.ID)
	if err != nil {
		return err
	}
	if invested == 0 {
		conviction := domain.ConvictionNone
		if rec, err := e.store.Recommendations().GetByID(ctx, pos.RecommendationID); err == nil {
			conviction = rec.Conviction
		}
		invested, err = e.GetBuyAmount(ctx, pos.Chain, tp, conviction, pos.RecommenderID, nil)
		if err != nil {
			return fmt.Errorf("size buy: %w", err)
		}
		if invested == 0 {
			return ErrPositionClosed
		}
	}

	if err := e.ClosePosition(ctx, pos.ID); err != nil {
		return fmt.Errorf("close simulated position: %w", err)
	}

	_, err = e.openBuyPosition(ctx, w, pos.RecommenderID, pos.RecommendationID, tp, invested, e.cfg.ForceSimulation)
	return err
}

// investedAmount sums the native currency spent on a position's buys.
func (e *Engine) investedAmount(ctx context.Context, positionID string) (int64, error) {
	txs, err := e.store.Transactions().GetByPositionID(ctx, positionID)
	if err != nil {
		return 0, fmt.Errorf("load transactions: %w", err)
	}
	var invested int64
	for _, tx := range txs {
		if tx.Type == domain.TransactionBuy && tx.SolAmount != nil {
			invested += *tx.SolAmount
		}
	}
	return invested, nil
}

// openBuyPosition executes a buy swap and records the position plus its
// BUY transaction. Real buys hold the global buy lock across the swap so
// the shared wallet balance is never read-then-spent twice.
func (e *Engine) openBuyPosition(ctx context.Context, w wallet.Provider, recommenderID, recommendationID string, tp *domain.TokenPerformance, amountIn int64, isSim bool) (*domain.Position, error) {
	res, err := func() (*wallet.SwapResult, error) {
		if !isSim {
			e.buyMu.Lock()
			defer e.buyMu.Unlock()
		}
		return e.executeSwap(ctx, w, &wallet.SwapRequest{
			InputToken:   w.CurrencyAddress(),
			OutputToken:  tp.TokenAddress,
			AmountIn:     amountIn,
			IsSimulation: isSim,
		})
	}()
	if err != nil {
		return nil, fmt.Errorf("buy swap: %w", err)
	}
	observability.RecordSwap(string(tp.Chain), swapMode(isSim))

	nowMs := e.now().UnixMilli()
	up := unitPrice(tp)
	valueUsd := float64(res.AmountOut) * up
	price := tp.Price
	marketCap := tp.CurrentMarketCap
	liquidity := tp.LiquidityUsd

	pos := &domain.Position{
		ID:               e.newID(),
		Chain:            tp.Chain,
		TokenAddress:     tp.TokenAddress,
		WalletAddress:    w.Address(),
		IsSimulation:     isSim,
		RecommenderID:    recommenderID,
		RecommendationID: recommendationID,
		InitialPrice:     tp.Price,
		InitialMarketCap: tp.CurrentMarketCap,
		InitialLiquidity: tp.LiquidityUsd,
		RapidDump:        tp.RapidDump,
		OpenedAt:         nowMs,
		UpdatedAt:        nowMs,
	}
	buyTx := &domain.Transaction{
		ID:              e.newID(),
		PositionID:      pos.ID,
		Type:            domain.TransactionBuy,
		Chain:           tp.Chain,
		TokenAddress:    tp.TokenAddress,
		TransactionHash: res.TxHash,
		Amount:          res.AmountOut,
		ValueUsd:        &valueUsd,
		Price:           &price,
		SolAmount:       &amountIn,
		MarketCap:       &marketCap,
		Liquidity:       &liquidity,
		Timestamp:       res.Timestamp,
	}

	err = e.store.RunInTransaction(ctx, func(s storage.Store) error {
		if err := s.Positions().Insert(ctx, pos); err != nil {
			return err
		}
		return s.Transactions().Insert(ctx, buyTx)
	})
	if err != nil {
		if errors.Is(err, storage.ErrOpenPositionExists) {
			return nil, ErrPositionAlreadyOpen
		}
		if !isSim {
			// The swap is on chain; the ledger is now behind it.
			e.log.Error().Err(err).Bool("reconciliation", true).
				Str("tx_hash", res.TxHash).Str("token", tp.TokenAddress).
				Msg("buy executed but ledger write failed")
			observability.RecordReconciliationAlert()
		}
		return nil, fmt.Errorf("record buy: %w", err)
	}

	e.trackPosition(pos.ID)
	e.log.Info().Str("position_id", pos.ID).Str("token", tp.TokenAddress).
		Bool("simulation", isSim).Int64("amount_in", amountIn).
		Int64("amount_out", res.AmountOut).Msg("position opened")
	return pos, nil
}

// HandleSellSignal sells part or all of a position under the per-(position,
// token) lock. Oversell is capped at the live balance; a drained position
// is closed automatically.
func (e *Engine) HandleSellSignal(ctx context.Context, sig domain.SellSignal) error {
	unlock := e.sellLocks.Lock(sellKey(sig.PositionID, sig.TokenAddress))
	defer unlock()

	pos, err := e.store.Positions().GetByID(ctx, sig.PositionID)
	if err != nil {
		return fmt.Errorf("load position: %w", err)
	}
	if pos.TokenAddress != sig.TokenAddress {
		return storage.ErrInvalidInput
	}
	if !pos.Open() {
		return ErrPositionClosed
	}
	w, ok := e.wallets[pos.Chain]
	if !ok {
		return ErrNoWalletForChain
	}

	tp, err := e.trust.RefreshTokenPerformance(ctx, pos.Chain, pos.TokenAddress, true)
	if err != nil {
		return fmt.Errorf("refresh token performance: %w", err)
	}

	txs, err := e.store.Transactions().GetByPositionID(ctx, pos.ID)
	if err != nil {
		return fmt.Errorf("load transactions: %w", err)
	}
	balance := ledger.ComputeBalance(txs)
	if balance <= 0 {
		if err := e.ClosePosition(ctx, pos.ID); err != nil {
			return err
		}
		return ErrPositionClosed
	}

	amount := sig.Amount
	if amount <= 0 || amount > balance {
		amount = balance
	}

	isSim := pos.IsSimulation || e.cfg.ForceSimulation
	res, err := e.executeSwap(ctx, w, &wallet.SwapRequest{
		InputToken:   pos.TokenAddress,
		OutputToken:  w.CurrencyAddress(),
		AmountIn:     amount,
		IsSimulation: isSim,
	})
	if err != nil {
		return fmt.Errorf("sell swap: %w", err)
	}
	observability.RecordSwap(string(pos.Chain), swapMode(isSim))

	nowMs := e.now().UnixMilli()
	up := unitPrice(tp)
	valueUsd := float64(amount) * up
	price := tp.Price
	marketCap := tp.CurrentMarketCap
	liquidity := tp.LiquidityUsd
	solOut := res.AmountOut

	sellTx := &domain.Transaction{
		ID:              e.newID(),
		PositionID:      pos.ID,
		Type:            domain.TransactionSell,
		Chain:           pos.Chain,
		TokenAddress:    pos.TokenAddress,
		TransactionHash: res.TxHash,
		Amount:          amount,
		ValueUsd:        &valueUsd,
		Price:           &price,
		SolAmount:       &solOut,
		MarketCap:       &marketCap,
		Liquidity:       &liquidity,
		Timestamp:       res.Timestamp,
	}

	perf := ledger.ComputePerformance(append(txs, sellTx), up)
	drained := balance-amount <= 0

	err = e.store.RunInTransaction(ctx, func(s storage.Store) error {
		if err := s.Transactions().Insert(ctx, sellTx); err != nil {
			return err
		}
		pos.PerformanceScore = perf.PerformanceScore
		pos.RapidDump = pos.RapidDump || tp.RapidDump
		pos.UpdatedAt = nowMs
		if err := s.Positions().Update(ctx, pos); err != nil {
			return err
		}

		// Feed the realized performance back into the live recommendation
		// so the recommender's metrics see it.
		rec, err := s.Recommendations().GetActiveByRecommenderAndToken(ctx, pos.RecommenderID, pos.Chain, pos.TokenAddress)
		if errors.Is(err, storage.ErrNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		rec.PerformanceScore = perf.PerformanceScore
		rec.CurrentPrice = tp.Price
		rec.CurrentMarketCap = tp.CurrentMarketCap
		rec.CurrentLiquidity = tp.LiquidityUsd
		if drained {
			rec.Status = domain.RecommendationStatusCompleted
		}
		rec.UpdatedAt = nowMs
		return s.Recommendations().Update(ctx, rec)
	})
	if err != nil {
		if !isSim {
			e.log.Error().Err(err).Bool("reconciliation", true).
				Str("tx_hash", res.TxHash).Str("position_id", pos.ID).
				Msg("sell executed but ledger write failed")
			observability.RecordReconciliationAlert()
		}
		return fmt.Errorf("record sell: %w", err)
	}

	if err := e.trust.RecomputeRecommenderMetrics(ctx, pos.RecommenderID); err != nil {
		e.log.Warn().Err(err).Str("recommender_id", pos.RecommenderID).
			Msg("metrics recompute failed after sell")
	}

	if drained {
		return e.ClosePosition(ctx, pos.ID)
	}
	return nil
}

// HandlePriceSignal refreshes the token snapshot on a tracked position's
// recommendation. A zero price change marks a stale or duplicate signal and
// writes nothing; so does a closed or missing position. The ledger is never
// touched.
func (e *Engine) HandlePriceSignal(ctx context.Context, sig domain.PriceSignal) error {
	if sig.PriceChange == 0 {
		return nil
	}

	pos, err := e.store.Positions().GetByID(ctx, sig.PositionID)
	if errors.Is(err, storage.ErrNotFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("load position: %w", err)
	}
	if !pos.Open() || pos.TokenAddress != sig.TokenAddress {
		return nil
	}

	tp, err := e.trust.RefreshTokenPerformance(ctx, pos.Chain, pos.TokenAddress, false)
	if err != nil {
		return fmt.Errorf("refresh token performance: %w", err)
	}

	rec, err := e.store.Recommendations().GetActiveByRecommenderAndToken(ctx, pos.RecommenderID, pos.Chain, pos.TokenAddress)
	if errors.Is(err, storage.ErrNotFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("load recommendation: %w", err)
	}

	rec.CurrentPrice = tp.Price
	rec.CurrentMarketCap = tp.CurrentMarketCap
	rec.CurrentLiquidity = tp.LiquidityUsd
	rec.UpdatedAt = e.now().UnixMilli()
	return e.store.Recommendations().Update(ctx, rec)
}

// ClosePosition recomputes the position's final performance from the
// ledger, persists it, and marks the position closed, then drops it from
// the active index and tells the monitor to stop tracking it. Idempotent:
// closing a closed position only repeats the index removal and
// notification.
func (e *Engine) ClosePosition(ctx context.Context, positionID string) error {
	pos, err := e.store.Positions().GetByID(ctx, positionID)
	if err != nil {
		return fmt.Errorf("load position: %w", err)
	}

	if pos.Open() {
		txs, err := e.store.Transactions().GetByPositionID(ctx, pos.ID)
		if err != nil {
			return fmt.Errorf("load transactions: %w", err)
		}
		perf := ledger.ComputePerformance(txs, e.closingMarkPrice(ctx, pos))

		nowMs := e.now().UnixMilli()
		pos.PerformanceScore = perf.PerformanceScore
		pos.ClosedAt = &nowMs
		pos.UpdatedAt = nowMs
		if err := e.store.Positions().Update(ctx, pos); err != nil {
			return fmt.Errorf("close position: %w", err)
		}
		observability.RecordPositionClosed()
		e.log.Info().Str("position_id", positionID).
			Float64("performance_score", pos.PerformanceScore).Msg("position closed")

		if err := e.trust.RecomputeRecommenderMetrics(ctx, pos.RecommenderID); err != nil {
			e.log.Warn().Err(err).Str("recommender_id", pos.RecommenderID).
				Msg("metrics recompute failed after close")
		}
	}

	e.untrackPosition(positionID)
	if e.monitor != nil {
		if err := e.monitor.StopTracking(positionID); err != nil {
			e.log.Warn().Err(err).Str("position_id", positionID).
				Msg("monitor notification failed")
		}
	}
	return nil
}

// closingMarkPrice returns USD per smallest token unit for the final
// valuation of a position: a fresh (cache-permitted) quote when the
// provider is reachable, else the last stored snapshot. With neither, the
// mark is zero and only the realized portion counts.
func (e *Engine) closingMarkPrice(ctx context.Context, pos *domain.Position) float64 {
	tp, err := e.trust.RefreshTokenPerformance(ctx, pos.Chain, pos.TokenAddress, false)
	if err != nil {
		tp, err = e.store.TokenPerformance().Get(ctx, pos.Chain, pos.TokenAddress)
	}
	if err != nil {
		e.log.Warn().Err(err).Str("position_id", pos.ID).
			Msg("no mark price at close, valuing remaining balance at zero")
		return 0
	}
	return unitPrice(tp)
}

// executeSwap routes a swap through the right wallet path: synthetic fill
// for simulations, direct execution for pre-fetched payloads, otherwise a
// fresh quote guarded by the caller's minimum out.
func (e *Engine) executeSwap(ctx context.Context, w wallet.Provider, req *wallet.SwapRequest) (*wallet.SwapResult, error) {
	if req.IsSimulation {
		return w.SwapIn(ctx, req)
	}
	if len(req.QuoteData) > 0 {
		return w.ExecuteSwap(ctx, req.InputToken, req.OutputToken, req.QuoteData)
	}

	quote, err := w.QuoteIn(ctx, &wallet.QuoteRequest{
		InputToken:  req.InputToken,
		OutputToken: req.OutputToken,
		AmountIn:    req.AmountIn,
		SlippageBps: e.cfg.SlippageBps,
	})
	if err != nil {
		return nil, fmt.Errorf("quote: %w", err)
	}
	if req.MinAmountOut > 0 && quote.AmountOut < req.MinAmountOut {
		return nil, wallet.ErrQuoteBelowMinOut
	}
	return w.ExecuteSwap(ctx, req.InputToken, req.OutputToken, quote.QuoteData)
}

func (e *Engine) trackPosition(positionID string) {
	e.activeMu.Lock()
	e.active[positionID] = struct{}{}
	observability.SetOpenPositions(len(e.active))
	e.activeMu.Unlock()
}

func (e *Engine) untrackPosition(positionID string) {
	e.activeMu.Lock()
	delete(e.active, positionID)
	observability.SetOpenPositions(len(e.active))
	e.activeMu.Unlock()
}

// ActivePositionIDs returns the ids in the in-memory active index.
func (e *Engine) ActivePositionIDs() []string {
	e.activeMu.Lock()
	defer e.activeMu.Unlock()
	ids := make([]string, 0, len(e.active))
	for id := range e.active {
		ids = append(ids, id)
	}
	return ids
}

func sellKey(positionID, tokenAddress string) string {
	return positionID + ":" + tokenAddress
}

func swapMode(isSim bool) string {
	if isSim {
		return "simulated"
	}
	return "real"
}

// unitPrice converts a per-token USD price to USD per smallest unit.
func unitPrice(tp *domain.TokenPerformance) float64 {
	if tp.Decimals <= 0 {
		return tp.Price
	}
	return tp.Price / math.Pow10(tp.Decimals)
}
