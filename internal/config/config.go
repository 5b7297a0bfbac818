// Package config loads and validates the engine's configuration surface
// using viper (file/env/flags), validating cross-field invariants the same
// way go-ethereum's params.DynamicFeeConfig.Verify does.
package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"

	"github.com/lux-mev/searcher/internal/errs"
)

// Config is the engine's recognized option set.
type Config struct {
	MinProfitThreshold uint64        `mapstructure:"min_profit_threshold"`
	MaxPriorityFee     uint64        `mapstructure:"max_priority_fee"`
	MaxSlippageBps     uint32        `mapstructure:"max_slippage_bps"`
	NumWorkers         int           `mapstructure:"num_workers"`
	EnableSandwich     bool          `mapstructure:"enable_sandwich"`
	SimulationOnly     bool          `mapstructure:"simulation_only"`
	RelayURLs          []string      `mapstructure:"relay_urls"`
	QueueCapacity      int           `mapstructure:"queue_capacity"`
	PoolCacheCapacity  int           `mapstructure:"pool_cache_capacity"`
	RefreshMaxAge      time.Duration `mapstructure:"refresh_max_age"`
	BudgetTotalUS      int64         `mapstructure:"budget_total_us"`
}

// Defaults returns the implementation-defined defaults applied before any
// config file or environment override is layered on top.
func Defaults() Config {
	return Config{
		MinProfitThreshold: 1,
		MaxPriorityFee:     0, // 0 means unbounded
		MaxSlippageBps:     50,
		NumWorkers:         4,
		EnableSandwich:     false,
		SimulationOnly:     true,
		RelayURLs:          nil,
		QueueCapacity:      10_000,
		PoolCacheCapacity:  1_000,
		RefreshMaxAge:      400 * time.Millisecond, // ~1 slot
		BudgetTotalUS:      10_000,
	}
}

// Load reads configuration from the given file path (if non-empty), then
// environment variables prefixed SEARCHER_, layered over Defaults().
func Load(path string) (Config, error) {
	cfg := Defaults()

	v := viper.New()
	v.SetEnvPrefix("searcher")
	v.AutomaticEnv()
	for k, val := range defaultsMap(cfg) {
		v.SetDefault(k, val)
	}
	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return cfg, errs.Wrap(errs.StageStartup, errs.InvalidConfig, errs.Config, err)
		}
	}
	if err := v.Unmarshal(&cfg); err != nil {
		return cfg, errs.Wrap(errs.StageStartup, errs.InvalidConfig, errs.Config, err)
	}
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func defaultsMap(c Config) map[string]interface{} {
	return map[string]interface{}{
		"min_profit_threshold": c.MinProfitThreshold,
		"max_priority_fee":     c.MaxPriorityFee,
		"max_slippage_bps":     c.MaxSlippageBps,
		"num_workers":          c.NumWorkers,
		"enable_sandwich":      c.EnableSandwich,
		"simulation_only":      c.SimulationOnly,
		"relay_urls":           c.RelayURLs,
		"queue_capacity":       c.QueueCapacity,
		"pool_cache_capacity":  c.PoolCacheCapacity,
		"refresh_max_age":      c.RefreshMaxAge,
		"budget_total_us":      c.BudgetTotalUS,
	}
}

// Validate enforces the cross-field invariants: enable_sandwich=true
// requires simulation_only=true, fatal otherwise.
func (c Config) Validate() error {
	if c.EnableSandwich && !c.SimulationOnly {
		return errs.New(errs.StageStartup, errs.SandwichWithoutSimulationOnly, errs.Config)
	}
	if c.NumWorkers <= 0 {
		return invalid("num_workers must be positive")
	}
	if c.MaxSlippageBps > 10_000 {
		return invalid("max_slippage_bps must be in [0,10000]")
	}
	if c.QueueCapacity <= 0 {
		return invalid("queue_capacity must be positive")
	}
	if c.PoolCacheCapacity <= 0 {
		return invalid("pool_cache_capacity must be positive")
	}
	if c.BudgetTotalUS <= 0 {
		return invalid("budget_total_us must be positive")
	}
	if len(c.RelayURLs) < 2 {
		return invalid("relay_urls must name at least 2 relays to satisfy the ≥2-relay submit contract")
	}
	return nil
}

func invalid(msg string) error {
	return errs.Wrap(errs.StageStartup, errs.InvalidConfig, errs.Config, fmt.Errorf("%s", msg))
}
