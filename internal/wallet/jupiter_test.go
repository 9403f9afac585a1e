package wallet

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
)

func TestJupiterWallet_ConcurrentBalanceReads(t *testing.T) {
	var mu sync.Mutex
	seen := make(map[uint64]int)
	rpc := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			ID uint64 `json:"id"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		mu.Lock()
		seen[req.ID]++
		mu.Unlock()
		json.NewEncoder(w).Encode(map[string]interface{}{
			"jsonrpc": "2.0",
			"id":      req.ID,
			"result":  map[string]interface{}{"value": 42},
		})
	}))
	defer rpc.Close()

	w, err := NewJupiterWallet(JupiterConfig{
		QuoteEndpoint: rpc.URL,
		RPCEndpoint:   rpc.URL,
		WalletAddress: SolMint,
	})
	if err != nil {
		t.Fatalf("NewJupiterWallet failed: %v", err)
	}

	const readers = 8
	var wg sync.WaitGroup
	for i := 0; i < readers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			balance, err := w.AccountBalance(context.Background())
			if err != nil {
				t.Errorf("AccountBalance failed: %v", err)
				return
			}
			if balance != 42 {
				t.Errorf("balance = %d, want 42", balance)
			}
		}()
	}
	wg.Wait()

	mu.Lock()
	defer mu.Unlock()
	if len(seen) != readers {
		t.Errorf("distinct request ids = %d, want %d", len(seen), readers)
	}
	for id, n := range seen {
		if n != 1 {
			t.Errorf("request id %d used %d times", id, n)
		}
	}
}
