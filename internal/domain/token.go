package domain

// Chain identifies a blockchain a token lives on.
type Chain string

// Supported chains.
const (
	ChainSolana   Chain = "solana"
	ChainBase     Chain = "base"
	ChainEthereum Chain = "ethereum"
)

// TokenPerformance is the latest market snapshot for one token, keyed by
// (chain, address). Refreshed on demand from the market data provider and
// force-refreshed before any trade-sensitive decision.
type TokenPerformance struct {
	Chain        Chain
	TokenAddress string
	Symbol       string
	Name         string
	Decimals     int

	Price             float64
	PriceChange24h    float64 // percent
	Volume24h         float64 // USD
	VolumeChange24h   float64 // percent
	Trades24h         int64
	TradesChange24h   float64 // percent
	LiquidityUsd      float64
	Holders           int64
	UniqueWallet24h   int64
	UniqueWalletDelta float64 // 24h percent change
	InitialMarketCap  float64 // market cap at first sighting
	CurrentMarketCap  float64

	// Risk flags derived from fixed thresholds plus the provider's scam signal.
	RugPull          bool
	IsScam           bool
	SustainedGrowth  bool
	RapidDump        bool
	SuspiciousVolume bool

	// ValidationTrust is the mean trust score of every recommender that
	// recommended this token.
	ValidationTrust float64

	LastUpdated int64 // ms
}
