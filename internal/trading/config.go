// Package trading implements the signal-driven trading engine: position
// sizing, buy/sell/price signal handling, and the simulate-then-promote
// position lifecycle. Execution is serialized per position for sells and
// globally for real buys.
package trading

import (
	"fmt"
	"os"
	"sort"

	"gopkg.in/yaml.v3"

	"trust-trader/internal/domain"
)

// Tier maps a metric floor to a sizing multiplier. Tiers form a monotonic
// step function: the multiplier of the highest tier whose Min the value
// reaches applies.
type Tier struct {
	Min        float64 `yaml:"min"`
	Multiplier float64 `yaml:"multiplier"`
}

// Config is the trading policy. Thresholds and multipliers are policy, not
// architecture; everything here is loadable from YAML with compiled-in
// defaults.
type Config struct {
	// MaxAccountPercentage is the share of the wallet balance a single buy
	// may start from, before multipliers.
	MaxAccountPercentage float64 `yaml:"max_account_percentage"`

	// MinBuy and MaxBuy clamp the final buy amount, in smallest native
	// currency units.
	MinBuy int64 `yaml:"min_buy"`
	MaxBuy int64 `yaml:"max_buy"`

	// MinWalletBalance disables buying entirely below this balance.
	MinWalletBalance int64 `yaml:"min_wallet_balance"`

	// SlippageBps is passed to every swap quote.
	SlippageBps int `yaml:"slippage_bps"`

	// ForceSimulation routes every buy through the synthetic fill path,
	// regardless of the trade gate.
	ForceSimulation bool `yaml:"force_simulation"`

	// Sizing multiplier curves.
	LiquidityTiers []Tier `yaml:"liquidity_tiers"`
	VolumeTiers    []Tier `yaml:"volume_tiers"`
	MarketCapTiers []Tier `yaml:"market_cap_tiers"`

	ConvictionMultipliers map[domain.Conviction]float64 `yaml:"conviction_multipliers"`
}

// DefaultConfig returns the compiled-in trading policy.
func DefaultConfig() Config {
	return Config{
		MaxAccountPercentage: 0.05,
		MinBuy:               100_000_000,   // 0.1 SOL
		MaxBuy:               2_000_000_000, // 2 SOL
		MinWalletBalance:     200_000_000,
		SlippageBps:          100,
		LiquidityTiers: []Tier{
			{Min: 0, Multiplier: 0.5},
			{Min: 10_000, Multiplier: 0.8},
			{Min: 50_000, Multiplier: 1.0},
			{Min: 250_000, Multiplier: 1.2},
		},
		VolumeTiers: []Tier{
			{Min: 0, Multiplier: 0.5},
			{Min: 25_000, Multiplier: 1.0},
			{Min: 100_000, Multiplier: 1.2},
		},
		MarketCapTiers: []Tier{
			{Min: 0, Multiplier: 0.8},
			{Min: 100_000, Multiplier: 1.0},
			{Min: 1_000_000, Multiplier: 1.2},
		},
		ConvictionMultipliers: map[domain.Conviction]float64{
			domain.ConvictionNone:   0.8,
			domain.ConvictionLow:    1.0,
			domain.ConvictionMedium: 1.2,
			domain.ConvictionHigh:   1.5,
		},
	}
}

// LoadConfig reads a YAML policy file over the compiled-in defaults.
// A missing path returns the defaults unchanged.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read trading config: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse trading config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// Validate rejects policies that could size nonsensical trades.
func (c *Config) Validate() error {
	if c.MaxAccountPercentage <= 0 || c.MaxAccountPercentage > 1 {
		return fmt.Errorf("max_account_percentage %f outside (0, 1]", c.MaxAccountPercentage)
	}
	if c.MinBuy < 0 || c.MaxBuy < c.MinBuy {
		return fmt.Errorf("buy clamp [%d, %d] is invalid", c.MinBuy, c.MaxBuy)
	}
	if c.SlippageBps < 0 || c.SlippageBps > 10_000 {
		return fmt.Errorf("slippage_bps %d outside [0, 10000]", c.SlippageBps)
	}
	for name, tiers := range map[string][]Tier{
		"liquidity_tiers":  c.LiquidityTiers,
		"volume_tiers":     c.VolumeTiers,
		"market_cap_tiers": c.MarketCapTiers,
	} {
		if !sort.SliceIsSorted(tiers, func(i, j int) bool { return tiers[i].Min < tiers[j].Min }) {
			return fmt.Errorf("%s not sorted by min", name)
		}
		for _, t := range tiers {
			if t.Multiplier <= 0 {
				return fmt.Errorf("%s has non-positive multiplier %f", name, t.Multiplier)
			}
		}
	}
	return nil
}

// tierMultiplier returns the multiplier of the highest tier the value
// reaches, or 1 when no tier matches.
func tierMultiplier(tiers []Tier, value float64) float64 {
	multiplier := 1.0
	for _, t := range tiers {
		if value >= t.Min {
			multiplier = t.Multiplier
		}
	}
	return multiplier
}

// convictionMultiplier returns the configured multiplier for a conviction
// tier, or 1 for unknown tiers.
func (c *Config) convictionMultiplier(conviction domain.Conviction) float64 {
	if m, ok := c.ConvictionMultipliers[conviction]; ok {
		return m
	}
	return 1.0
}
