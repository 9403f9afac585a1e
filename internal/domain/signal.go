package domain

// Signal is an external event driving the trading state machine. Each
// inbound signal is handled as an independent concurrent task; no ordering
// is guaranteed across signal types.
type Signal interface {
	// Kind returns the signal type name for dispatch and metrics labels.
	Kind() string
}

// RecommendationSignal carries a recommender's stance on a token from the
// event source. BUY recommendations may open a position.
type RecommendationSignal struct {
	Platform       string
	PlatformUserID string
	Username       string
	Chain          Chain
	TokenAddress   string
	Conviction     Conviction
	Type           RecommendationType
	Metadata       map[string]string
}

// BuySignal promotes a simulated position to a real one.
type BuySignal struct {
	PositionID    string
	TokenAddress  string
	RecommenderID string
}

// SellSignal requests a (partial) exit from a position.
type SellSignal struct {
	PositionID        string
	TokenAddress      string
	Amount            int64 // smallest token unit
	SellRecommenderID string
}

// PriceSignal reports a market move on a tracked position's token.
// PriceChange of exactly 0 marks a stale/duplicate signal and is ignored.
type PriceSignal struct {
	PositionID   string
	TokenAddress string
	PriceChange  float64 // percent
}

// Kind implements Signal.
func (RecommendationSignal) Kind() string { return "recommendation" }

// Kind implements Signal.
func (BuySignal) Kind() string { return "buy" }

// Kind implements Signal.
func (SellSignal) Kind() string { return "sell" }

// Kind implements Signal.
func (PriceSignal) Kind() string { return "price" }
