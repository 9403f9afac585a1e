package memory

import (
	"context"
	"sort"
	"sync"

	"trust-trader/internal/domain"
	"trust-trader/internal/storage"
)

// TransactionStore is an in-memory implementation of
// storage.TransactionStore. Entries are immutable once inserted.
type TransactionStore struct {
	mu   sync.RWMutex
	data map[string]*domain.Transaction // keyed by id
}

// NewTransactionStore creates a new in-memory transaction store.
func NewTransactionStore() *TransactionStore {
	return &TransactionStore{
		data: make(map[string]*domain.Transaction),
	}
}

// Insert appends a ledger entry. Returns ErrDuplicateKey if id exists.
func (s *TransactionStore) Insert(_ context.Context, t *domain.Transaction) error {
	if t == nil || t.ID == "" || t.PositionID == "" || t.Amount <= 0 {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.data[t.ID]; exists {
		return storage.ErrDuplicateKey
	}

	copy := *t
	s.data[t.ID] = &copy
	return nil
}

// GetByPositionID retrieves all transactions for a position, ordered by
// timestamp ASC.
func (s *TransactionStore) GetByPositionID(_ context.Context, positionID string) ([]*domain.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.Transaction
	for _, t := range s.data {
		if t.PositionID == positionID {
			copy := *t
			result = append(result, &copy)
		}
	}
	sortTransactions(result)
	return result, nil
}

// GetByPositionIDs retrieves transactions for multiple positions, grouped
// by position id, each group ordered by timestamp ASC.
func (s *TransactionStore) GetByPositionIDs(_ context.Context, positionIDs []string) (map[string][]*domain.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	wanted := make(map[string]struct{}, len(positionIDs))
	for _, id := range positionIDs {
		wanted[id] = struct{}{}
	}

	result := make(map[string][]*domain.Transaction)
	for _, t := range s.data {
		if _, ok := wanted[t.PositionID]; ok {
			copy := *t
			result[t.PositionID] = append(result[t.PositionID], &copy)
		}
	}
	for _, txs := range result {
		sortTransactions(txs)
	}
	return result, nil
}

func sortTransactions(txs []*domain.Transaction) {
	sort.Slice(txs, func(i, j int) bool {
		if txs[i].Timestamp != txs[j].Timestamp {
			return txs[i].Timestamp < txs[j].Timestamp
		}
		return txs[i].ID < txs[j].ID
	})
}

func (s *TransactionStore) snapshot() map[string]*domain.Transaction {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snap := make(map[string]*domain.Transaction, len(s.data))
	for k, v := range s.data {
		copy := *v
		snap[k] = &copy
	}
	return snap
}

func (s *TransactionStore) restore(snap map[string]*domain.Transaction) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data = snap
}

var _ storage.TransactionStore = (*TransactionStore)(nil)
