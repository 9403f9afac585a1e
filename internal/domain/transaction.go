package domain

// TransactionType classifies a ledger entry.
type TransactionType string

// Transaction types. BUY and TRANSFER_IN add to a position's balance,
// SELL and TRANSFER_OUT subtract from it.
const (
	TransactionBuy         TransactionType = "BUY"
	TransactionSell        TransactionType = "SELL"
	TransactionTransferIn  TransactionType = "TRANSFER_IN"
	TransactionTransferOut TransactionType = "TRANSFER_OUT"
)

// Transaction is an immutable ledger entry belonging to exactly one
// position. A position's balance is the signed sum of its transaction
// amounts.
type Transaction struct {
	ID              string
	PositionID      string
	Type            TransactionType
	Chain           Chain
	TokenAddress    string
	TransactionHash string
	Amount          int64 // smallest token unit, always positive

	// Optional execution context (nil when unknown).
	ValueUsd    *float64
	Price       *float64
	SolAmount   *int64 // lamports moved on the other side of the swap
	SolValueUsd *float64
	SolPrice    *float64
	MarketCap   *float64
	Liquidity   *float64

	Timestamp int64 // ms
}

// SignedAmount returns Amount with the sign implied by the transaction type.
func (t *Transaction) SignedAmount() int64 {
	switch t.Type {
	case TransactionSell, TransactionTransferOut:
		return -t.Amount
	default:
		return t.Amount
	}
}
