// Package config loads the launch-engine service configuration from a
// file and environment overrides.
package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// Config is the full service configuration.
type Config struct {
	Port int `mapstructure:"port"`

	// Persistence. An empty PostgresURL selects the in-memory store.
	PostgresURL     string `mapstructure:"postgres_url"`
	RedisURL        string `mapstructure:"redis_url"`
	CacheTTLSeconds int    `mapstructure:"cache_ttl_seconds"`

	// Platform trade settings.
	FeeBps        int    `mapstructure:"fee_bps"`
	FeeRecipient  string `mapstructure:"fee_recipient"`
	GraduationUSD int64  `mapstructure:"graduation_usd"` // whole dollars

	// NativePriceUSD pins the native/USD rate when no feed is wired,
	// e.g. "150.00".
	NativePriceUSD      string `mapstructure:"native_price_usd"`
	MaxStalenessSeconds int    `mapstructure:"max_staleness_seconds"`

	// Trade limits. Zero disables the corresponding check.
	MinTradeUnits  uint64 `mapstructure:"min_trade_units"`
	MaxTradeUnits  uint64 `mapstructure:"max_trade_units"`
	MaxHoldingsBps int    `mapstructure:"max_holdings_bps"`

	DebugLogging bool `mapstructure:"debug_logging"`
}

const (
	DefaultPort                = 8080
	DefaultCacheTTLSeconds     = 5
	DefaultFeeBps              = 100
	DefaultGraduationUSD       = 12_000
	DefaultNativePriceUSD      = "150"
	DefaultMaxStalenessSeconds = 60
)

// Load reads configuration from the given file (optional) plus
// LAUNCHPAD_* environment variables.
func Load(path string) (*Config, error) {
	v := viper.New()

	defaults := map[string]interface{}{
		"port":                  DefaultPort,
		"cache_ttl_seconds":     DefaultCacheTTLSeconds,
		"fee_bps":               DefaultFeeBps,
		"graduation_usd":        DefaultGraduationUSD,
		"native_price_usd":      DefaultNativePriceUSD,
		"max_staleness_seconds": DefaultMaxStalenessSeconds,
	}
	for key, value := range defaults {
		v.SetDefault(key, value)
	}

	v.SetEnvPrefix("LAUNCHPAD")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// AutomaticEnv only surfaces env values to Unmarshal for keys viper
	// already knows about, so every key without a default needs an
	// explicit binding.
	for _, key := range []string{
		"postgres_url",
		"redis_url",
		"fee_recipient",
		"min_trade_units",
		"max_trade_units",
		"max_holdings_bps",
		"debug_logging",
	} {
		v.BindEnv(key)
	}

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	return &cfg, validate(&cfg)
}

func validate(cfg *Config) error {
	if cfg.Port <= 0 || cfg.Port > 65535 {
		return errors.New("invalid port")
	}
	if cfg.FeeBps < 0 || cfg.FeeBps > 10_000 {
		return errors.New("invalid fee_bps")
	}
	if cfg.GraduationUSD <= 0 {
		return errors.New("invalid graduation_usd")
	}
	if cfg.NativePriceUSD == "" {
		return errors.New("missing native_price_usd")
	}
	if cfg.MaxStalenessSeconds <= 0 {
		return errors.New("invalid max_staleness_seconds")
	}
	if cfg.MaxHoldingsBps < 0 || cfg.MaxHoldingsBps > 10_000 {
		return errors.New("invalid max_holdings_bps")
	}
	if cfg.MaxTradeUnits > 0 && cfg.MinTradeUnits > cfg.MaxTradeUnits {
		return errors.New("min_trade_units exceeds max_trade_units")
	}
	if cfg.RedisURL != "" && cfg.PostgresURL == "" {
		return errors.New("redis_url requires postgres_url")
	}
	return nil
}
