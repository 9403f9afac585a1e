package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"trust-trader/internal/domain"
	"trust-trader/internal/storage"
)

// TransactionStore implements storage.TransactionStore using PostgreSQL.
// The ledger is append-only; rows are never updated or deleted.
type TransactionStore struct {
	db Querier
}

// NewTransactionStore creates a new TransactionStore.
func NewTransactionStore(pool *Pool) *TransactionStore {
	return &TransactionStore{db: pool}
}

// Compile-time interface check.
var _ storage.TransactionStore = (*TransactionStore)(nil)

const transactionColumns = `
	id, position_id, tx_type, chain, token_address, transaction_hash,
	amount, value_usd, price, sol_amount, sol_value_usd, sol_price,
	market_cap, liquidity, timestamp
`

// Insert appends a ledger entry. Returns ErrDuplicateKey if id exists and
// ErrInvalidInput if the amount is not positive.
func (s *TransactionStore) Insert(ctx context.Context, t *domain.Transaction) error {
	if t.Amount <= 0 {
		return storage.ErrInvalidInput
	}

	query := `
		INSERT INTO transactions (` + transactionColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
	`

	_, err := s.db.Exec(ctx, query,
		t.ID,
		t.PositionID,
		string(t.Type),
		string(t.Chain),
		t.TokenAddress,
		t.TransactionHash,
		t.Amount,
		t.ValueUsd,
		t.Price,
		t.SolAmount,
		t.SolValueUsd,
		t.SolPrice,
		t.MarketCap,
		t.Liquidity,
		t.Timestamp,
	)
	if err != nil {
		if isDuplicateKeyError(err) {
			return storage.ErrDuplicateKey
		}
		return fmt.Errorf("insert transaction: %w", err)
	}
	return nil
}

// GetByPositionID retrieves all transactions for a position, ordered by
// timestamp ASC.
func (s *TransactionStore) GetByPositionID(ctx context.Context, positionID string) ([]*domain.Transaction, error) {
	query := `
		SELECT ` + transactionColumns + `
		FROM transactions
		WHERE position_id = $1
		ORDER BY timestamp ASC, id ASC
	`

	rows, err := s.db.Query(ctx, query, positionID)
	if err != nil {
		return nil, fmt.Errorf("get transactions by position: %w", err)
	}
	defer rows.Close()

	return collectTransactions(rows)
}

// GetByPositionIDs retrieves transactions for multiple positions, grouped by
// position id, each group ordered by timestamp ASC.
func (s *TransactionStore) GetByPositionIDs(ctx context.Context, positionIDs []string) (map[string][]*domain.Transaction, error) {
	grouped := make(map[string][]*domain.Transaction, len(positionIDs))
	if len(positionIDs) == 0 {
		return grouped, nil
	}

	query := `
		SELECT ` + transactionColumns + `
		FROM transactions
		WHERE position_id = ANY($1)
		ORDER BY timestamp ASC, id ASC
	`

	rows, err := s.db.Query(ctx, query, positionIDs)
	if err != nil {
		return nil, fmt.Errorf("get transactions by positions: %w", err)
	}
	defer rows.Close()

	txs, err := collectTransactions(rows)
	if err != nil {
		return nil, err
	}
	for _, t := range txs {
		grouped[t.PositionID] = append(grouped[t.PositionID], t)
	}
	return grouped, nil
}

func collectTransactions(rows pgx.Rows) ([]*domain.Transaction, error) {
	var txs []*domain.Transaction
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, fmt.Errorf("scan transaction: %w", err)
		}
		txs = append(txs, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate transactions: %w", err)
	}
	return txs, nil
}

func scanTransaction(row pgx.Row) (*domain.Transaction, error) {
	var t domain.Transaction
	var txType, chain string

	err := row.Scan(
		&t.ID,
		&t.PositionID,
		&txType,
		&chain,
		&t.TokenAddress,
		&t.TransactionHash,
		&t.Amount,
		&t.ValueUsd,
		&t.Price,
		&t.SolAmount,
		&t.SolValueUsd,
		&t.SolPrice,
		&t.MarketCap,
		&t.Liquidity,
		&t.Timestamp,
	)
	if err != nil {
		return nil, err
	}
	t.Type = domain.TransactionType(txType)
	t.Chain = domain.Chain(chain)
	return &t, nil
}
