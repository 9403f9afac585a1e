package market

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"trust-trader/internal/domain"
)

func TestNewBirdeyeClient_RequiresAPIKey(t *testing.T) {
	_, err := NewBirdeyeClient("http://example.com", "")
	if !errors.Is(err, ErrMissingAPIKey) {
		t.Errorf("expected ErrMissingAPIKey, got %v", err)
	}
}

func TestBirdeyeClient_GetTokenOverview(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("X-API-KEY"); got != "key123" {
			t.Errorf("X-API-KEY = %q", got)
		}
		if got := r.Header.Get("x-chain"); got != "solana" {
			t.Errorf("x-chain = %q", got)
		}
		if got := r.URL.Query().Get("address"); got != "mint1" {
			t.Errorf("address = %q", got)
		}
		w.Write([]byte(`{"success":true,"data":{
			"symbol":"TKN","name":"Token","decimals":9,
			"price":0.5,"priceChange24hPercent":-12.5,
			"v24hUSD":10000,"v24hChangePercent":60,
			"trade24h":420,"trade24hChangePercent":-55,
			"liquidity":25000,"mc":1000000,"holder":900,
			"uniqueWallet24h":300,"uniqueWallet24hChangePercent":5,
			"isScam":false}}`))
	}))
	defer srv.Close()

	client, err := NewBirdeyeClient(srv.URL, "key123")
	if err != nil {
		t.Fatalf("NewBirdeyeClient failed: %v", err)
	}

	overview, err := client.GetTokenOverview(context.Background(), domain.ChainSolana, "mint1", false)
	if err != nil {
		t.Fatalf("GetTokenOverview failed: %v", err)
	}
	if overview.Symbol != "TKN" || overview.Price != 0.5 {
		t.Errorf("overview mismatch: %+v", overview)
	}
	if overview.TradesChange24h != -55 {
		t.Errorf("TradesChange24h = %f, want -55", overview.TradesChange24h)
	}
	if overview.LiquidityUsd != 25000 {
		t.Errorf("LiquidityUsd = %f, want 25000", overview.LiquidityUsd)
	}
}

func TestBirdeyeClient_RetriesTransientStatus(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		w.Write([]byte(`{"success":true,"data":{"symbol":"TKN","price":1}}`))
	}))
	defer srv.Close()

	client, err := NewBirdeyeClient(srv.URL, "key", WithRetryDelay(time.Millisecond))
	if err != nil {
		t.Fatalf("NewBirdeyeClient failed: %v", err)
	}

	overview, err := client.GetTokenOverview(context.Background(), domain.ChainSolana, "mint1", false)
	if err != nil {
		t.Fatalf("GetTokenOverview failed after retry: %v", err)
	}
	if overview.Price != 1 {
		t.Errorf("Price = %f, want 1", overview.Price)
	}
	if got := calls.Load(); got != 2 {
		t.Errorf("calls = %d, want 2", got)
	}
}

func TestBirdeyeClient_NonRetryableFailsFast(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	client, err := NewBirdeyeClient(srv.URL, "key", WithRetryDelay(time.Millisecond))
	if err != nil {
		t.Fatalf("NewBirdeyeClient failed: %v", err)
	}

	if _, err := client.GetTokenOverview(context.Background(), domain.ChainSolana, "mint1", false); err == nil {
		t.Fatal("expected error on 404")
	}
	if got := calls.Load(); got != 1 {
		t.Errorf("calls = %d, want 1 (no retries)", got)
	}
}

func TestBirdeyeClient_ShouldTradeToken(t *testing.T) {
	tests := []struct {
		name string
		body string
		want bool
	}{
		{"healthy", `{"success":true,"data":{"liquidity":50000,"isScam":false}}`, true},
		{"scam", `{"success":true,"data":{"liquidity":50000,"isScam":true}}`, false},
		{"illiquid", `{"success":true,"data":{"liquidity":10,"isScam":false}}`, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			client, err := NewBirdeyeClient(srv.URL, "key")
			if err != nil {
				t.Fatalf("NewBirdeyeClient failed: %v", err)
			}

			got, err := client.ShouldTradeToken(context.Background(), domain.ChainSolana, "mint1")
			if err != nil {
				t.Fatalf("ShouldTradeToken failed: %v", err)
			}
			if got != tt.want {
				t.Errorf("ShouldTradeToken = %v, want %v", got, tt.want)
			}
		})
	}
}
