package trading

import (
	"os"
	"path/filepath"
	"testing"

	"trust-trader/internal/domain"
)

func TestTierMultiplier_StepFunction(t *testing.T) {
	tiers := []Tier{
		{Min: 0, Multiplier: 0.5},
		{Min: 10_000, Multiplier: 0.8},
		{Min: 50_000, Multiplier: 1.2},
	}

	tests := []struct {
		value float64
		want  float64
	}{
		{0, 0.5},
		{9_999, 0.5},
		{10_000, 0.8},
		{49_999, 0.8},
		{50_000, 1.2},
		{1_000_000, 1.2},
	}
	for _, tt := range tests {
		if got := tierMultiplier(tiers, tt.value); got != tt.want {
			t.Errorf("tierMultiplier(%f) = %f, want %f", tt.value, got, tt.want)
		}
	}

	if got := tierMultiplier(nil, 123); got != 1.0 {
		t.Errorf("empty tiers = %f, want neutral 1.0", got)
	}
}

func TestLoadConfig_MissingPathReturnsDefaults(t *testing.T) {
	cfg, err := LoadConfig("")
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}
	if cfg.MaxAccountPercentage != 0.05 {
		t.Errorf("MaxAccountPercentage = %f, want default 0.05", cfg.MaxAccountPercentage)
	}
	if cfg.MinBuy >= cfg.MaxBuy {
		t.Errorf("default clamp [%d, %d] invalid", cfg.MinBuy, cfg.MaxBuy)
	}
}

func TestLoadConfig_FileOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "trading.yaml")
	content := []byte(`
max_account_percentage: 0.1
min_buy: 50
max_buy: 5000
force_simulation: true
conviction_multipliers:
  HIGH: 3.0
`)
	if err := os.WriteFile(path, content, 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}
	if cfg.MaxAccountPercentage != 0.1 {
		t.Errorf("MaxAccountPercentage = %f, want 0.1", cfg.MaxAccountPercentage)
	}
	if cfg.MinBuy != 50 || cfg.MaxBuy != 5000 {
		t.Errorf("clamp = [%d, %d], want [50, 5000]", cfg.MinBuy, cfg.MaxBuy)
	}
	if !cfg.ForceSimulation {
		t.Error("ForceSimulation not set")
	}
	if cfg.ConvictionMultipliers[domain.ConvictionHigh] != 3.0 {
		t.Errorf("HIGH multiplier = %f, want 3.0", cfg.ConvictionMultipliers[domain.ConvictionHigh])
	}
	// Untouched sections keep compiled-in defaults.
	if len(cfg.LiquidityTiers) == 0 {
		t.Error("liquidity tiers lost their defaults")
	}
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		ok     bool
	}{
		{"defaults", func(*Config) {}, true},
		{"zero percentage", func(c *Config) { c.MaxAccountPercentage = 0 }, false},
		{"percentage above one", func(c *Config) { c.MaxAccountPercentage = 1.5 }, false},
		{"inverted clamp", func(c *Config) { c.MinBuy = 10; c.MaxBuy = 5 }, false},
		{"negative slippage", func(c *Config) { c.SlippageBps = -1 }, false},
		{"unsorted tiers", func(c *Config) {
			c.VolumeTiers = []Tier{{Min: 100, Multiplier: 1}, {Min: 10, Multiplier: 2}}
		}, false},
		{"non-positive multiplier", func(c *Config) {
			c.MarketCapTiers = []Tier{{Min: 0, Multiplier: 0}}
		}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.ok && err != nil {
				t.Errorf("Validate failed: %v", err)
			}
			if !tt.ok && err == nil {
				t.Error("Validate accepted invalid config")
			}
		})
	}
}
