package trading

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"trust-trader/internal/domain"
	"trust-trader/internal/observability"
	"trust-trader/internal/storage"
	"trust-trader/internal/trust"
)

// Dispatcher fans inbound signals out to the engine. Each signal runs as
// an independent goroutine; ordering across signal types is not guaranteed,
// the engine's own locks serialize what must be serialized.
type Dispatcher struct {
	engine *Engine
	log    zerolog.Logger
	wg     sync.WaitGroup
}

// NewDispatcher wires a dispatcher over an engine.
func NewDispatcher(engine *Engine, log zerolog.Logger) *Dispatcher {
	return &Dispatcher{
		engine: engine,
		log:    log.With().Str("component", "dispatcher").Logger(),
	}
}

// Run consumes signals until the channel closes or ctx is cancelled, then
// waits for in-flight handlers to finish.
func (d *Dispatcher) Run(ctx context.Context, signals <-chan domain.Signal) {
	defer d.wg.Wait()
	for {
		select {
		case <-ctx.Done():
			return
		case sig, ok := <-signals:
			if !ok {
				return
			}
			d.wg.Add(1)
			go func() {
				defer d.wg.Done()
				d.dispatch(ctx, sig)
			}()
		}
	}
}

func (d *Dispatcher) dispatch(ctx context.Context, sig domain.Signal) {
	var err error
	switch s := sig.(type) {
	case domain.RecommendationSignal:
		_, err = d.engine.HandleRecommendation(ctx, trust.RecommenderIdentity{
			Platform:       s.Platform,
			PlatformUserID: s.PlatformUserID,
			Username:       s.Username,
		}, s.Chain, s.TokenAddress, s.Conviction, s.Type, s.Metadata)
	case domain.BuySignal:
		err = d.engine.HandleBuySignal(ctx, s)
	case domain.SellSignal:
		err = d.engine.HandleSellSignal(ctx, s)
	case domain.PriceSignal:
		err = d.engine.HandlePriceSignal(ctx, s)
	default:
		d.log.Warn().Str("kind", sig.Kind()).Msg("unknown signal kind dropped")
		observability.RecordSignal(sig.Kind(), "dropped", nowUnixSeconds())
		return
	}

	outcome := "ok"
	if err != nil {
		outcome = "error"
		if rejected(err) {
			outcome = "rejected"
		}
		d.log.Error().Err(err).Str("kind", sig.Kind()).Msg("signal handling failed")
	}
	observability.RecordSignal(sig.Kind(), outcome, nowUnixSeconds())
}

func nowUnixSeconds() float64 {
	return float64(time.Now().UnixMilli()) / 1000
}

// rejected separates expected invariant refusals from real failures.
func rejected(err error) bool {
	return errors.Is(err, ErrPositionAlreadyOpen) ||
		errors.Is(err, ErrNoWalletForChain) ||
		errors.Is(err, ErrPositionClosed) ||
		errors.Is(err, ErrPositionNotSimulated) ||
		errors.Is(err, storage.ErrNotFound)
}
