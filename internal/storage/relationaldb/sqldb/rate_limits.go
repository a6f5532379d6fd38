package sqldb

import (
	"context"
	"database/sql"
	"errors"

	"github.com/LeJamon/goPresale/internal/core/types"
	"github.com/LeJamon/goPresale/internal/storage/relationaldb"
)

// RateLimitRepository persists limiter configuration and per-address state.
type RateLimitRepository struct {
	base
}

// GetConfig returns ErrNotFound until the system has been initialized.
func (r *RateLimitRepository) GetConfig(ctx context.Context) (*relationaldb.RateLimitConfigRow, error) {
	var (
		c        relationaldb.RateLimitConfigRow
		maxTx    int64
		maxDaily int64
	)
	err := r.exec.QueryRowContext(ctx, `SELECT min_time_between_tx, max_tx_per_period, period,
		max_daily_spend_usd FROM rate_limit_config WHERE id = 1`).
		Scan(&c.MinTimeBetweenTx, &maxTx, &c.Period, &maxDaily)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, relationaldb.NewNotFoundError("get_rate_limit_config", "rate limit config")
	}
	if err != nil {
		return nil, relationaldb.NewQueryError("get_rate_limit_config", "failed to query rate limit config", err)
	}
	c.MaxTxPerPeriod = uint64(maxTx)
	if c.MaxDailySpendUSD, err = usd("get_rate_limit_config", maxDaily); err != nil {
		return nil, err
	}
	return &c, nil
}

func (r *RateLimitRepository) SaveConfig(ctx context.Context, c *relationaldb.RateLimitConfigRow) error {
	maxDaily, err := usdColumn("save_rate_limit_config", c.MaxDailySpendUSD)
	if err != nil {
		return err
	}
	_, err = r.exec.ExecContext(ctx, r.q(`INSERT INTO rate_limit_config (id, min_time_between_tx,
		max_tx_per_period, period, max_daily_spend_usd) VALUES (1, ?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET
			min_time_between_tx = excluded.min_time_between_tx,
			max_tx_per_period = excluded.max_tx_per_period,
			period = excluded.period,
			max_daily_spend_usd = excluded.max_daily_spend_usd`),
		c.MinTimeBetweenTx, int64(c.MaxTxPerPeriod), c.Period, maxDaily)
	if err != nil {
		return relationaldb.NewQueryError("save_rate_limit_config", "failed to save rate limit config", err)
	}
	return nil
}

func (r *RateLimitRepository) Get(ctx context.Context, a types.Address) (*relationaldb.RateLimitRow, error) {
	if err := r.ensureRow(ctx, "get_rate_limit",
		"INSERT INTO rate_limits (address) VALUES (?) ON CONFLICT (address) DO NOTHING", addr(a)); err != nil {
		return nil, err
	}

	var (
		row          = relationaldb.RateLimitRow{Address: a}
		count, spent int64
	)
	err := r.exec.QueryRowContext(ctx, r.q(`SELECT last_tx_time, tx_count, window_start,
		daily_spent_usd, daily_window_start FROM rate_limits WHERE address = ?`+r.lockSuffix()), addr(a)).
		Scan(&row.LastTxTime, &count, &row.WindowStart, &spent, &row.DailyWindowStart)
	if errors.Is(err, sql.ErrNoRows) {
		return &row, nil
	}
	if err != nil {
		return nil, relationaldb.NewQueryError("get_rate_limit", "failed to query rate limit state", err)
	}
	row.TxCountInWindow = uint64(count)
	if row.DailySpentUSD, err = usd("get_rate_limit", spent); err != nil {
		return nil, err
	}
	return &row, nil
}

func (r *RateLimitRepository) Save(ctx context.Context, row *relationaldb.RateLimitRow) error {
	_, err := r.exec.ExecContext(ctx, r.q(`INSERT INTO rate_limits (address, last_tx_time, tx_count,
		window_start, daily_spent_usd, daily_window_start) VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT (address) DO UPDATE SET
			last_tx_time = excluded.last_tx_time,
			tx_count = excluded.tx_count,
			window_start = excluded.window_start,
			daily_spent_usd = excluded.daily_spent_usd,
			daily_window_start = excluded.daily_window_start`),
		addr(row.Address), row.LastTxTime, int64(row.TxCountInWindow), row.WindowStart,
		int64(row.DailySpentUSD), row.DailyWindowStart)
	if err != nil {
		return relationaldb.NewQueryError("save_rate_limit", "failed to save rate limit state", err)
	}
	return nil
}

func (r *RateLimitRepository) Delete(ctx context.Context, a types.Address) error {
	if _, err := r.exec.ExecContext(ctx, r.q("DELETE FROM rate_limits WHERE address = ?"), addr(a)); err != nil {
		return relationaldb.NewQueryError("delete_rate_limit", "failed to delete rate limit state", err)
	}
	return nil
}
