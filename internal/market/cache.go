package market

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"trust-trader/internal/domain"
)

// DefaultOverviewTTL is how long cached token overviews stay valid.
const DefaultOverviewTTL = 60 * time.Second

// CachedProvider wraps a Provider with a Redis read-through cache for
// token overviews. forceRefresh bypasses the cached value but still
// repopulates it, so later soft reads see fresh data. Cache failures are
// best-effort: logged and ignored, never failing the read.
type CachedProvider struct {
	inner  Provider
	client redis.UniversalClient
	ttl    time.Duration
	log    zerolog.Logger
}

// NewCachedProvider creates a caching wrapper around inner.
func NewCachedProvider(inner Provider, client redis.UniversalClient, ttl time.Duration, log zerolog.Logger) *CachedProvider {
	if ttl <= 0 {
		ttl = DefaultOverviewTTL
	}
	return &CachedProvider{
		inner:  inner,
		client: client,
		ttl:    ttl,
		log:    log.With().Str("component", "market_cache").Logger(),
	}
}

func overviewKey(chain domain.Chain, tokenAddress string) string {
	return fmt.Sprintf("token_overview:%s:%s", chain, tokenAddress)
}

// GetTokenOverview implements Provider.
func (c *CachedProvider) GetTokenOverview(ctx context.Context, chain domain.Chain, tokenAddress string, forceRefresh bool) (*TokenOverview, error) {
	key := overviewKey(chain, tokenAddress)

	if !forceRefresh {
		raw, err := c.client.Get(ctx, key).Bytes()
		if err == nil {
			var overview TokenOverview
			if err := json.Unmarshal(raw, &overview); err == nil {
				return &overview, nil
			}
			// Corrupt entry, fall through to refetch.
			c.log.Warn().Str("key", key).Msg("dropping unreadable cache entry")
		} else if err != redis.Nil {
			c.log.Warn().Err(err).Str("key", key).Msg("cache read failed")
		}
	}

	overview, err := c.inner.GetTokenOverview(ctx, chain, tokenAddress, forceRefresh)
	if err != nil {
		return nil, err
	}

	if raw, err := json.Marshal(overview); err == nil {
		if err := c.client.Set(ctx, key, raw, c.ttl).Err(); err != nil {
			c.log.Warn().Err(err).Str("key", key).Msg("cache write failed")
		}
	}
	return overview, nil
}

// ResolveTicker implements Provider, delegating to the inner provider.
func (c *CachedProvider) ResolveTicker(ctx context.Context, chain domain.Chain, ticker string) (string, error) {
	return c.inner.ResolveTicker(ctx, chain, ticker)
}

// ShouldTradeToken implements Provider, delegating to the inner provider.
// The gate always reads fresh data, so it is never cached.
func (c *CachedProvider) ShouldTradeToken(ctx context.Context, chain domain.Chain, tokenAddress string) (bool, error) {
	return c.inner.ShouldTradeToken(ctx, chain, tokenAddress)
}

var _ Provider = (*CachedProvider)(nil)
