package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/LeJamon/goPresale/internal/core/pricing"
	"github.com/LeJamon/goPresale/internal/core/ratelimit"
	"github.com/LeJamon/goPresale/internal/core/referral"
	"github.com/LeJamon/goPresale/internal/core/sale"
	"github.com/LeJamon/goPresale/internal/core/types"
)

// SaleConfig represents the [sale] section
type SaleConfig struct {
	Token            string `toml:"token" mapstructure:"token"`
	ReferralBonusBps uint64 `toml:"referral_bonus_bps" mapstructure:"referral_bonus_bps"`
	RoundCacheSize   int    `toml:"round_cache_size" mapstructure:"round_cache_size"`
}

// AssetConfig represents one [[assets]] entry
type AssetConfig struct {
	Symbol   string `toml:"symbol" mapstructure:"symbol"`
	Address  string `toml:"address" mapstructure:"address"`
	Decimals uint8  `toml:"decimals" mapstructure:"decimals"`
	Kind     string `toml:"kind" mapstructure:"kind"` // stable or native
}

// OracleConfig represents the [oracle] section
type OracleConfig struct {
	Default   string        `toml:"default" mapstructure:"default"` // static:<usd> or an http(s) URL
	MaxAge    time.Duration `toml:"max_age" mapstructure:"max_age"`
	Timeout   time.Duration `toml:"timeout" mapstructure:"timeout"`
	CacheSize int           `toml:"cache_size" mapstructure:"cache_size"`
}

// RateLimitConfig represents the [rate_limit] section. It seeds the
// limiter at initialization; later changes go through the admin commands.
type RateLimitConfig struct {
	MinTimeBetweenTx time.Duration `toml:"min_time_between_tx" mapstructure:"min_time_between_tx"`
	MaxTxPerPeriod   uint64        `toml:"max_tx_per_period" mapstructure:"max_tx_per_period"`
	Period           time.Duration `toml:"period" mapstructure:"period"`
	MaxDailySpendUSD string        `toml:"max_daily_spend_usd" mapstructure:"max_daily_spend_usd"`
}

// AuthorityAddress parses the configured authority.
func (c *Config) AuthorityAddress() (types.Address, error) {
	if c.Authority == "" {
		return types.ZeroAddress, fmt.Errorf("authority is not configured")
	}
	return types.ParseAddress(c.Authority)
}

// TokenAddress parses the sale token address.
func (s *SaleConfig) TokenAddress() (types.Address, error) {
	if s.Token == "" {
		return types.ZeroAddress, fmt.Errorf("sale token is not configured")
	}
	return types.ParseAddress(s.Token)
}

// Engine returns the settlement engine parameters.
func (c *Config) Engine() sale.Config {
	return sale.Config{
		ReferralBonusBps: c.Sale.ReferralBonusBps,
		DefaultOracle:    c.Oracle.Default,
		RoundCacheSize:   c.Sale.RoundCacheSize,
	}
}

// Validate performs validation on the sale configuration
func (s *SaleConfig) Validate() error {
	if s.Token != "" {
		if _, err := types.ParseAddress(s.Token); err != nil {
			return fmt.Errorf("sale token: %w", err)
		}
	}
	if s.ReferralBonusBps > referral.BpsDenominator {
		return fmt.Errorf("referral_bonus_bps must not exceed %d, got %d", referral.BpsDenominator, s.ReferralBonusBps)
	}
	if s.RoundCacheSize < 0 {
		return fmt.Errorf("round_cache_size must be non-negative, got %d", s.RoundCacheSize)
	}
	return nil
}

// Asset converts the entry into a payment asset.
func (a *AssetConfig) Asset() (types.Asset, error) {
	asset := types.Asset{
		Symbol:   strings.TrimSpace(a.Symbol),
		Decimals: a.Decimals,
		Kind:     types.AssetKind(strings.ToLower(a.Kind)),
	}
	if a.Address != "" {
		addr, err := types.ParseAddress(a.Address)
		if err != nil {
			return types.Asset{}, fmt.Errorf("asset %s: %w", a.Symbol, err)
		}
		asset.Address = addr
	}
	if err := asset.Validate(); err != nil {
		return types.Asset{}, err
	}
	return asset, nil
}

// AssetTable builds the payment asset table. The native asset is always
// accepted, with its default description unless an entry overrides it.
func (c *Config) AssetTable() (*types.AssetTable, error) {
	assets := make([]types.Asset, 0, len(c.Assets)+1)
	native := false
	for i := range c.Assets {
		a, err := c.Assets[i].Asset()
		if err != nil {
			return nil, err
		}
		native = native || a.IsNative()
		assets = append(assets, a)
	}
	if !native {
		assets = append([]types.Asset{types.NativeAsset}, assets...)
	}
	return types.NewAssetTable(assets...)
}

// Resolver returns the price feed resolver parameters.
func (o *OracleConfig) Resolver() pricing.ResolverConfig {
	return pricing.ResolverConfig{
		Timeout:   o.Timeout,
		MaxAge:    o.MaxAge,
		CacheSize: o.CacheSize,
	}
}

// Validate performs validation on the oracle configuration
func (o *OracleConfig) Validate() error {
	if o.Default == "" {
		return fmt.Errorf("default oracle is required")
	}
	if !strings.HasPrefix(o.Default, "static:") &&
		!strings.HasPrefix(o.Default, "http://") &&
		!strings.HasPrefix(o.Default, "https://") {
		return fmt.Errorf("unsupported oracle reference: %s (expected static:<usd> or an http(s) URL)", o.Default)
	}
	if o.MaxAge < 0 || o.Timeout < 0 {
		return fmt.Errorf("oracle max_age and timeout must be non-negative")
	}
	if o.CacheSize < 0 {
		return fmt.Errorf("oracle cache_size must be non-negative, got %d", o.CacheSize)
	}
	return nil
}

// Limiter converts the section into the limiter configuration.
func (r *RateLimitConfig) Limiter() (ratelimit.Config, error) {
	spend, err := types.ParseUSD(r.MaxDailySpendUSD)
	if err != nil {
		return ratelimit.Config{}, fmt.Errorf("max_daily_spend_usd: %w", err)
	}
	cfg := ratelimit.Config{
		MinTimeBetweenTx: r.MinTimeBetweenTx,
		MaxTxPerPeriod:   r.MaxTxPerPeriod,
		Period:           r.Period,
		MaxDailySpendUSD: spend,
	}
	if err := cfg.Validate(); err != nil {
		return ratelimit.Config{}, err
	}
	return cfg, nil
}
