// Package ratelimit enforces per-address transaction spacing, a per-period
// transaction count and a rolling daily USD spending cap.
package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/LeJamon/goPresale/internal/core/access"
	"github.com/LeJamon/goPresale/internal/core/types"
	"github.com/LeJamon/goPresale/internal/storage/relationaldb"
)

// DailyWindow is the fixed length of the spending window, independent of
// the configurable count period.
const DailyWindow int64 = 86400

var (
	ErrTooFrequent         = errors.New("too frequent")
	ErrPeriodLimitExceeded = errors.New("period limit exceeded")
	ErrDailyCapExceeded    = errors.New("daily spending limit exceeded")
	ErrInvalidConfig       = errors.New("invalid rate limit config")
)

// Config is the global limiter configuration.
type Config struct {
	MinTimeBetweenTx time.Duration
	MaxTxPerPeriod   uint64
	Period           time.Duration
	MaxDailySpendUSD types.USD
}

// DefaultConfig allows ten purchases a day, 30s apart, up to $500 a day.
func DefaultConfig() Config {
	return Config{
		MinTimeBetweenTx: 30 * time.Second,
		MaxTxPerPeriod:   10,
		Period:           24 * time.Hour,
		MaxDailySpendUSD: 500 * types.USDUnit,
	}
}

func (c Config) Validate() error {
	if c.MinTimeBetweenTx < 0 {
		return fmt.Errorf("%w: negative min time between transactions", ErrInvalidConfig)
	}
	if c.MaxTxPerPeriod == 0 {
		return fmt.Errorf("%w: max transactions per period must be positive", ErrInvalidConfig)
	}
	if c.Period < time.Second {
		return fmt.Errorf("%w: period must be at least one second", ErrInvalidConfig)
	}
	return validDailyLimit(c.MaxDailySpendUSD)
}

func validDailyLimit(limit types.USD) error {
	if limit == 0 {
		return fmt.Errorf("%w: invalid daily spending limit", ErrInvalidConfig)
	}
	if !limit.Storable() {
		return fmt.Errorf("%w: daily spending limit %s exceeds %s", ErrInvalidConfig, limit, types.MaxUSD)
	}
	return nil
}

func (c Config) row() *relationaldb.RateLimitConfigRow {
	return &relationaldb.RateLimitConfigRow{
		MinTimeBetweenTx: int64(c.MinTimeBetweenTx / time.Second),
		MaxTxPerPeriod:   c.MaxTxPerPeriod,
		Period:           int64(c.Period / time.Second),
		MaxDailySpendUSD: c.MaxDailySpendUSD,
	}
}

func configFromRow(r *relationaldb.RateLimitConfigRow) Config {
	return Config{
		MinTimeBetweenTx: time.Duration(r.MinTimeBetweenTx) * time.Second,
		MaxTxPerPeriod:   r.MaxTxPerPeriod,
		Period:           time.Duration(r.Period) * time.Second,
		MaxDailySpendUSD: r.MaxDailySpendUSD,
	}
}

// Info is the state reported by getRateLimitInfo.
type Info struct {
	Address          types.Address `json:"address"`
	LastTxTime       int64         `json:"last_tx_time"`
	TxCountInWindow  uint64        `json:"tx_count"`
	WindowStart      int64         `json:"window_start"`
	DailySpentUSD    types.USD     `json:"daily_spent_usd"`
	DailyWindowStart int64         `json:"daily_window_start"`
	// RemainingTx and RemainingDailyUSD are evaluated at query time.
	RemainingTx       uint64    `json:"remaining_tx"`
	RemainingDailyUSD types.USD `json:"remaining_daily_usd"`
	NextAllowedAt     int64     `json:"next_allowed_at"`
}

// Limiter applies the limits against rows in the store. It holds no state
// of its own, so the same Limiter serves any transaction.
type Limiter struct {
	logger *zap.Logger
	now    func() time.Time
}

func New(logger *zap.Logger, now func() time.Time) *Limiter {
	if logger == nil {
		logger = zap.NewNop()
	}
	if now == nil {
		now = time.Now
	}
	return &Limiter{logger: logger.With(zap.String("module", "ratelimit")), now: now}
}

// Config reads the current configuration.
func (l *Limiter) Config(ctx context.Context, repos relationaldb.Repositories) (Config, error) {
	row, err := repos.RateLimits().GetConfig(ctx)
	if err != nil {
		return Config{}, err
	}
	return configFromRow(row), nil
}

// evaluate applies the three checks in order to a copy of state and
// returns the would-be next state.
func evaluate(cfg Config, state relationaldb.RateLimitRow, usd types.USD, now int64) (relationaldb.RateLimitRow, error) {
	next := state
	minGap := int64(cfg.MinTimeBetweenTx / time.Second)
	period := int64(cfg.Period / time.Second)

	if state.LastTxTime != 0 && now-state.LastTxTime < minGap {
		return state, ErrTooFrequent
	}

	if state.WindowStart == 0 || now-state.WindowStart >= period {
		next.WindowStart = now
		next.TxCountInWindow = 0
	}
	if next.TxCountInWindow+1 > cfg.MaxTxPerPeriod {
		return state, ErrPeriodLimitExceeded
	}

	if state.DailyWindowStart == 0 || now-state.DailyWindowStart >= DailyWindow {
		next.DailyWindowStart = now
		next.DailySpentUSD = 0
	}
	spent, ok := next.DailySpentUSD.Add(usd)
	if !ok || spent > cfg.MaxDailySpendUSD {
		return state, ErrDailyCapExceeded
	}

	next.TxCountInWindow++
	next.DailySpentUSD = spent
	next.LastTxTime = now
	return next, nil
}

// CheckAndUpdate records a purchase of usd by addr or fails without
// changing any state.
func (l *Limiter) CheckAndUpdate(ctx context.Context, repos relationaldb.Repositories, grant access.Grant, addr types.Address, usd types.USD) error {
	if err := grant.Check(access.LedgerRateLimiter, access.CapRound); err != nil {
		return err
	}
	cfg, err := l.Config(ctx, repos)
	if err != nil {
		return err
	}
	state, err := repos.RateLimits().Get(ctx, addr)
	if err != nil {
		return err
	}

	next, err := evaluate(cfg, *state, usd, l.now().Unix())
	if err != nil {
		l.logger.Debug("purchase rejected",
			zap.String("address", addr.Hex()), zap.Stringer("usd", usd), zap.Error(err))
		return err
	}
	return repos.RateLimits().Save(ctx, &next)
}

// Check evaluates the limits without recording anything.
func (l *Limiter) Check(ctx context.Context, repos relationaldb.Repositories, addr types.Address, usd types.USD) error {
	cfg, err := l.Config(ctx, repos)
	if err != nil {
		return err
	}
	state, err := repos.RateLimits().Get(ctx, addr)
	if err != nil {
		return err
	}
	_, err = evaluate(cfg, *state, usd, l.now().Unix())
	return err
}

// Info reports the limiter state for addr.
func (l *Limiter) Info(ctx context.Context, repos relationaldb.Repositories, addr types.Address) (*Info, error) {
	cfg, err := l.Config(ctx, repos)
	if err != nil {
		return nil, err
	}
	s, err := repos.RateLimits().Get(ctx, addr)
	if err != nil {
		return nil, err
	}

	now := l.now().Unix()
	info := &Info{
		Address:          addr,
		LastTxTime:       s.LastTxTime,
		TxCountInWindow:  s.TxCountInWindow,
		WindowStart:      s.WindowStart,
		DailySpentUSD:    s.DailySpentUSD,
		DailyWindowStart: s.DailyWindowStart,
	}

	count := s.TxCountInWindow
	if s.WindowStart == 0 || now-s.WindowStart >= int64(cfg.Period/time.Second) {
		count = 0
	}
	if count < cfg.MaxTxPerPeriod {
		info.RemainingTx = cfg.MaxTxPerPeriod - count
	}
	spent := s.DailySpentUSD
	if s.DailyWindowStart == 0 || now-s.DailyWindowStart >= DailyWindow {
		spent = 0
	}
	if spent < cfg.MaxDailySpendUSD {
		info.RemainingDailyUSD = cfg.MaxDailySpendUSD - spent
	}
	if s.LastTxTime != 0 {
		info.NextAllowedAt = s.LastTxTime + int64(cfg.MinTimeBetweenTx/time.Second)
	}
	return info, nil
}

// Initialize stores the first configuration.
func (l *Limiter) Initialize(ctx context.Context, repos relationaldb.Repositories, cfg Config) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	return repos.RateLimits().SaveConfig(ctx, cfg.row())
}

// UpdateConfig replaces spacing, count and period, keeping the daily cap.
func (l *Limiter) UpdateConfig(ctx context.Context, repos relationaldb.Repositories, admin access.Grant, minTime time.Duration, maxTx uint64, period time.Duration) error {
	if err := admin.Check(access.LedgerRateLimiter, access.CapAdmin); err != nil {
		return err
	}
	cfg, err := l.Config(ctx, repos)
	if err != nil {
		return err
	}
	cfg.MinTimeBetweenTx = minTime
	cfg.MaxTxPerPeriod = maxTx
	cfg.Period = period
	if err := cfg.Validate(); err != nil {
		return err
	}
	l.logger.Info("rate limit config updated",
		zap.Duration("min_time_between_tx", minTime), zap.Uint64("max_tx_per_period", maxTx),
		zap.Duration("period", period))
	return repos.RateLimits().SaveConfig(ctx, cfg.row())
}

// UpdateDailySpendingLimit replaces the daily USD cap.
func (l *Limiter) UpdateDailySpendingLimit(ctx context.Context, repos relationaldb.Repositories, admin access.Grant, limit types.USD) error {
	if err := admin.Check(access.LedgerRateLimiter, access.CapAdmin); err != nil {
		return err
	}
	if err := validDailyLimit(limit); err != nil {
		return err
	}
	cfg, err := l.Config(ctx, repos)
	if err != nil {
		return err
	}
	cfg.MaxDailySpendUSD = limit
	l.logger.Info("daily spending limit updated", zap.Stringer("usd", limit))
	return repos.RateLimits().SaveConfig(ctx, cfg.row())
}

// ResetLimit clears all limiter state for addr.
func (l *Limiter) ResetLimit(ctx context.Context, repos relationaldb.Repositories, admin access.Grant, addr types.Address) error {
	if err := admin.Check(access.LedgerRateLimiter, access.CapAdmin); err != nil {
		return err
	}
	l.logger.Info("rate limit reset", zap.String("address", addr.Hex()))
	return repos.RateLimits().Delete(ctx, addr)
}
