package domain

// Recommender is the identity of a person/account that issues token
// recommendations. Created on first recommendation from a previously
// unseen identity; never deleted.
type Recommender struct {
	ID             string // opaque identifier (uuid)
	Platform       string // origin platform ("telegram", "discord", ...)
	PlatformUserID string // user id on the origin platform
	Username       string // display name
	CreatedAt      int64  // Unix timestamp in milliseconds
}

// RecommenderMetrics holds the current trust/risk/consistency profile of
// one recommender. One-to-one with Recommender, created lazily with
// all-zero defaults the first time the recommender is seen.
type RecommenderMetrics struct {
	RecommenderID        string
	TrustScore           float64 // bounded [0,100] before decay
	TotalRecommendations int
	SuccessfulRecs       int     // recommendations with positive performance
	AvgTokenPerformance  float64 // mean performance score
	RiskScore            float64 // mean risk score
	ConsistencyScore     float64 // successfulRecs / totalRecommendations
	TrustDecay           float64 // trustScore discounted by inactivity
	LastActiveDate       int64   // ms
	UpdatedAt            int64   // ms
}

// RecommenderMetricsHistory is an immutable snapshot of RecommenderMetrics
// taken before every overwrite. Append-only audit trail; the history always
// lags current metrics by one update.
type RecommenderMetricsHistory struct {
	HistoryID            string // generated uuid
	RecommenderID        string
	TrustScore           float64
	TotalRecommendations int
	SuccessfulRecs       int
	AvgTokenPerformance  float64
	RiskScore            float64
	ConsistencyScore     float64
	TrustDecay           float64
	RecordedAt           int64 // ms
}
