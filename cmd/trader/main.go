// Package main runs the trading service: it consumes recommendation and
// position signals from a WebSocket feed, scores recommenders, and opens,
// adjusts, and closes token positions through the configured wallets.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"trust-trader/internal/domain"
	"trust-trader/internal/feed"
	"trust-trader/internal/market"
	"trust-trader/internal/observability"
	"trust-trader/internal/storage"
	chstore "trust-trader/internal/storage/clickhouse"
	"trust-trader/internal/storage/memory"
	"trust-trader/internal/storage/migrations"
	pgstore "trust-trader/internal/storage/postgres"
	"trust-trader/internal/trading"
	"trust-trader/internal/trust"
	"trust-trader/internal/wallet"
)

func main() {
	loadEnvFile()

	// Parse flags (env vars as defaults)
	feedEndpoint := flag.String("feed-endpoint", os.Getenv("FEED_ENDPOINT"), "Signal feed WebSocket endpoint")
	postgresDSN := flag.String("postgres-dsn", os.Getenv("POSTGRES_DSN"), "PostgreSQL connection string")
	clickhouseDSN := flag.String("clickhouse-dsn", os.Getenv("CLICKHOUSE_DSN"), "ClickHouse connection string for the metrics audit trail (optional)")
	redisAddr := flag.String("redis-addr", os.Getenv("REDIS_ADDR"), "Redis address for market data caching (optional)")
	birdeyeEndpoint := flag.String("birdeye-endpoint", envOr("BIRDEYE_ENDPOINT", "https://public-api.birdeye.so"), "Birdeye API base URL")
	quoteEndpoint := flag.String("quote-endpoint", os.Getenv("QUOTE_ENDPOINT"), "Jupiter-compatible quote/swap API base URL")
	rpcEndpoint := flag.String("rpc-endpoint", os.Getenv("SOLANA_RPC_ENDPOINT"), "Solana JSON-RPC endpoint")
	walletAddress := flag.String("wallet-address", os.Getenv("WALLET_ADDRESS"), "Solana wallet public key (base58)")
	tradingConfig := flag.String("trading-config", os.Getenv("TRADING_CONFIG"), "Path to trading config YAML (optional)")
	useMemory := flag.Bool("use-memory", false, "Use in-memory storage instead of PostgreSQL")
	simBalance := flag.Int64("sim-balance", 10_000_000_000, "Simulated wallet balance in lamports (used without --quote-endpoint)")
	cacheTTL := flag.Duration("cache-ttl", time.Minute, "Market data cache TTL")
	metricsAddr := flag.String("metrics-addr", ":9090", "Prometheus metrics HTTP address")
	pretty := flag.Bool("pretty", false, "Human-readable log output")

	flag.Parse()

	log := newLogger(*pretty)

	if *feedEndpoint == "" {
		log.Fatal().Msg("--feed-endpoint is required")
	}
	if !*useMemory && *postgresDSN == "" {
		log.Fatal().Msg("--postgres-dsn is required (use --use-memory for in-memory storage)")
	}
	apiKey := os.Getenv("BIRDEYE_API_KEY")
	if apiKey == "" {
		log.Fatal().Msg("BIRDEYE_API_KEY is required")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	store, cleanup, err := createStore(ctx, *postgresDSN, *clickhouseDSN, *useMemory, log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create store")
	}
	defer cleanup()

	provider, err := createMarketProvider(*birdeyeEndpoint, apiKey, *redisAddr, *cacheTTL, log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create market provider")
	}

	wallets, err := createWallets(*quoteEndpoint, *rpcEndpoint, *walletAddress, *simBalance, log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create wallets")
	}

	cfg, err := trading.LoadConfig(*tradingConfig)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load trading config")
	}

	trustEngine := trust.NewEngine(store, provider, log)
	engine := trading.NewEngine(store, provider, trustEngine, wallets, cfg, log)
	if err := engine.Start(ctx); err != nil {
		log.Fatal().Err(err).Msg("failed to start trading engine")
	}

	client, err := feed.NewClient(*feedEndpoint, feed.DefaultConfig(), log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create feed client")
	}

	startedAt := time.Now()
	go startHTTPServer(*metricsAddr, store, engine, startedAt, log)

	// Handle shutdown signals
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		log.Info().Str("signal", sig.String()).Msg("initiating graceful shutdown")
		cancel()

		select {
		case sig := <-sigCh:
			log.Warn().Str("signal", sig.String()).Msg("forcing immediate shutdown")
			os.Exit(1)
		case <-time.After(30 * time.Second):
			log.Warn().Msg("graceful shutdown timed out after 30s, forcing exit")
			os.Exit(1)
		}
	}()

	feedDone := make(chan error, 1)
	go func() {
		feedDone <- client.Run(ctx)
	}()

	// Blocks until the feed channel closes, then drains in-flight signals.
	dispatcher := trading.NewDispatcher(engine, log)
	dispatcher.Run(ctx, client.Signals())

	if err := <-feedDone; err != nil && err != context.Canceled {
		log.Error().Err(err).Msg("feed terminated with error")
	}
	log.Info().Msg("shutdown complete")
}

// newLogger builds the root zerolog logger.
func newLogger(pretty bool) zerolog.Logger {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnixMs
	if pretty {
		return zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).With().Timestamp().Logger()
	}
	return zerolog.New(os.Stderr).With().Timestamp().Logger()
}

// createStore builds the persistence layer: in-memory, or PostgreSQL with
// migrations applied, optionally routing the metrics audit trail to
// ClickHouse.
func createStore(ctx context.Context, postgresDSN, clickhouseDSN string, useMemory bool, log zerolog.Logger) (storage.Store, func(), error) {
	if useMemory {
		log.Info().Msg("using in-memory storage")
		return memory.NewStore(), func() {}, nil
	}

	pool, err := pgstore.NewPool(ctx, postgresDSN)
	if err != nil {
		return nil, nil, fmt.Errorf("connect to postgres: %w", err)
	}
	if err := migrations.RunPostgresMigrations(ctx, pool); err != nil {
		pool.Close()
		return nil, nil, fmt.Errorf("apply postgres migrations: %w", err)
	}

	if clickhouseDSN == "" {
		return pgstore.NewStore(pool), pool.Close, nil
	}

	chConn, err := migrations.RunClickhouseMigrations(ctx, clickhouseDSN)
	if err != nil {
		pool.Close()
		return nil, nil, fmt.Errorf("apply clickhouse migrations: %w", err)
	}

	store := pgstore.NewStore(pool, pgstore.WithMetricsHistory(chstore.NewMetricsHistoryStore(chConn)))
	cleanup := func() {
		chConn.Close()
		pool.Close()
	}
	return store, cleanup, nil
}

// createMarketProvider builds the Birdeye client, wrapped in a Redis cache
// when an address is configured.
func createMarketProvider(baseURL, apiKey, redisAddr string, ttl time.Duration, log zerolog.Logger) (market.Provider, error) {
	client, err := market.NewBirdeyeClient(baseURL, apiKey)
	if err != nil {
		return nil, err
	}
	if redisAddr == "" {
		return client, nil
	}

	rdb := redis.NewClient(&redis.Options{Addr: redisAddr})
	log.Info().Str("addr", redisAddr).Msg("market data caching enabled")
	return market.NewCachedProvider(client, rdb, ttl, log), nil
}

// createWallets builds the per-chain wallet map. Without a quote endpoint
// every trade is simulated against a paper wallet.
func createWallets(quoteEndpoint, rpcEndpoint, address string, simBalance int64, log zerolog.Logger) (map[domain.Chain]wallet.Provider, error) {
	if quoteEndpoint == "" {
		addr := address
		if addr == "" {
			addr = wallet.SolMint
		}
		log.Info().Msg("no quote endpoint configured, trading in simulation only")
		sim := wallet.NewSimWallet(domain.ChainSolana, addr, wallet.SolMint, simBalance)
		return map[domain.Chain]wallet.Provider{domain.ChainSolana: sim}, nil
	}

	w, err := wallet.NewJupiterWallet(wallet.JupiterConfig{
		QuoteEndpoint: quoteEndpoint,
		RPCEndpoint:   rpcEndpoint,
		WalletAddress: address,
	})
	if err != nil {
		return nil, err
	}
	return map[domain.Chain]wallet.Provider{domain.ChainSolana: w}, nil
}

// startHTTPServer serves health, metrics, status, and position inspection
// endpoints.
func startHTTPServer(addr string, store storage.Store, engine *trading.Engine, startedAt time.Time, log zerolog.Logger) {
	mux := http.NewServeMux()

	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})

	mux.Handle("/metrics", observability.Handler())

	mux.HandleFunc("/status", func(w http.ResponseWriter, r *http.Request) {
		resp := statusResponse{
			Status:        "running",
			Uptime:        time.Since(startedAt).String(),
			OpenPositions: len(engine.ActivePositionIDs()),
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(resp)
	})

	mux.HandleFunc("/positions", func(w http.ResponseWriter, r *http.Request) {
		var (
			items []*storage.PositionWithBalance
			err   error
		)
		q := r.URL.Query()
		if rec := q.Get("recommender"); rec != "" {
			chain := domain.Chain(q.Get("chain"))
			if chain == "" {
				chain = domain.ChainSolana
			}
			items, err = storage.PositionsWithBalanceByRecommenderAndToken(r.Context(), store, rec, chain, q.Get("token"))
		} else {
			items, err = storage.OpenPositionsWithBalance(r.Context(), store)
		}
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}

		resp := make([]positionResponse, 0, len(items))
		for _, item := range items {
			resp = append(resp, positionResponse{
				ID:            item.Position.ID,
				RecommenderID: item.Position.RecommenderID,
				Chain:         string(item.Position.Chain),
				TokenAddress:  item.Position.TokenAddress,
				IsSimulation:  item.Position.IsSimulation,
				Balance:       item.Balance,
				OpenedAt:      item.Position.OpenedAt,
				ClosedAt:      item.Position.ClosedAt,
			})
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(resp)
	})

	log.Info().Str("addr", addr).Msg("starting HTTP server")
	if err := http.ListenAndServe(addr, mux); err != nil && err != http.ErrServerClosed {
		log.Error().Err(err).Msg("HTTP server error")
	}
}

// statusResponse is the JSON response for the /status endpoint.
type statusResponse struct {
	Status        string `json:"status"`
	Uptime        string `json:"uptime"`
	OpenPositions int    `json:"open_positions"`
}

// positionResponse is one entry in the /positions response.
type positionResponse struct {
	ID            string `json:"id"`
	RecommenderID string `json:"recommender_id"`
	Chain         string `json:"chain"`
	TokenAddress  string `json:"token_address"`
	IsSimulation  bool   `json:"is_simulation"`
	Balance       int64  `json:"balance"`
	OpenedAt      int64  `json:"opened_at"`
	ClosedAt      *int64 `json:"closed_at,omitempty"`
}

// envOr returns the environment value or a fallback when unset.
func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// loadEnvFile loads environment variables from .env file if it exists.
func loadEnvFile() {
	data, err := os.ReadFile(".env")
	if err != nil {
		return // File doesn't exist, use system env vars
	}

	for _, line := range strings.Split(string(data), "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		parts := strings.SplitN(line, "=", 2)
		if len(parts) != 2 {
			continue
		}

		key := strings.TrimSpace(parts[0])
		value := strings.TrimSpace(parts[1])

		if os.Getenv(key) == "" {
			os.Setenv(key, value)
		}
	}
}
