package domain

// Conviction is the recommender's stated confidence tier.
type Conviction string

// Conviction tiers, weakest to strongest.
const (
	ConvictionNone   Conviction = "NONE"
	ConvictionLow    Conviction = "LOW"
	ConvictionMedium Conviction = "MEDIUM"
	ConvictionHigh   Conviction = "HIGH"
)

// RecommendationType is the stance a recommendation expresses.
type RecommendationType string

// Recommendation types. Only BUY currently drives trade execution;
// the others are recorded for scoring.
const (
	RecommendationBuy      RecommendationType = "BUY"
	RecommendationDontBuy  RecommendationType = "DONT_BUY"
	RecommendationSell     RecommendationType = "SELL"
	RecommendationDontSell RecommendationType = "DONT_SELL"
	RecommendationNone     RecommendationType = "NONE"
)

// RecommendationStatus is the lifecycle state of a recommendation.
type RecommendationStatus string

// Recommendation statuses.
const (
	RecommendationStatusActive    RecommendationStatus = "ACTIVE"
	RecommendationStatusCompleted RecommendationStatus = "COMPLETED"
	RecommendationStatusExpired   RecommendationStatus = "EXPIRED"
	RecommendationStatusWithdrawn RecommendationStatus = "WITHDRAWN"
)

// TokenRecommendation is one recommender's stance on one token. A
// recommender has at most one live recommendation per token; subsequent
// recommendations for the same token update the existing row.
type TokenRecommendation struct {
	ID            string
	RecommenderID string
	Chain         Chain
	TokenAddress  string
	Conviction    Conviction
	Type          RecommendationType

	// Snapshots at recommendation time vs. latest refresh.
	InitialPrice     float64
	InitialMarketCap float64
	InitialLiquidity float64
	CurrentPrice     float64
	CurrentMarketCap float64
	CurrentLiquidity float64

	RiskScore        float64
	PerformanceScore float64
	Status           RecommendationStatus
	Metadata         map[string]string // free-form context from the event source

	CreatedAt int64 // ms
	UpdatedAt int64 // ms
}
