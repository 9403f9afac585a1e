package domain

// Position is one open-to-close trade lot in a single token. Exactly one
// open position may exist per (recommender, token) pair at a time. Closed
// positions are terminal; a new recommendation creates a new position.
type Position struct {
	ID               string
	Chain            Chain
	TokenAddress     string
	WalletAddress    string
	IsSimulation     bool // paper trade, never touched chain state
	RecommenderID    string
	RecommendationID string

	// Market snapshot at open time.
	InitialPrice     float64
	InitialMarketCap float64
	InitialLiquidity float64

	PerformanceScore float64 // PnL as percent of cost basis, persisted on sell/close
	RapidDump        bool    // token flagged as rapid dump while held

	OpenedAt  int64  // ms
	ClosedAt  *int64 // ms, nil while open
	UpdatedAt int64  // ms
}

// Open reports whether the position has not been closed yet.
func (p *Position) Open() bool {
	return p.ClosedAt == nil
}
