package sqldb

import (
	"context"

	"github.com/LeJamon/goPresale/internal/storage/relationaldb"
)

// Token amounts are stored as base-unit decimal text so that 256-bit values
// survive both drivers. USD values and times are BIGINT.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS system_state (
		id INTEGER PRIMARY KEY,
		authority TEXT NOT NULL,
		registry TEXT NOT NULL,
		custody_vault TEXT NOT NULL,
		vesting_pool TEXT NOT NULL,
		sale_token TEXT NOT NULL,
		token_decimals INTEGER NOT NULL,
		initialized_at BIGINT NOT NULL
	)`,

	`CREATE TABLE IF NOT EXISTS rounds (
		round_index BIGINT PRIMARY KEY,
		address TEXT NOT NULL UNIQUE,
		name TEXT NOT NULL,
		token_price_usd BIGINT NOT NULL,
		hard_cap_usd BIGINT NOT NULL,
		start_time BIGINT NOT NULL,
		end_time BIGINT NOT NULL,
		cliff_duration BIGINT NOT NULL,
		vesting_duration BIGINT NOT NULL,
		is_active BOOLEAN NOT NULL,
		paused BOOLEAN NOT NULL DEFAULT FALSE,
		oracle TEXT NOT NULL,
		total_raised_usd BIGINT NOT NULL DEFAULT 0,
		total_tokens_sold TEXT NOT NULL DEFAULT '0',
		settlement_count BIGINT NOT NULL DEFAULT 0,
		created_at BIGINT NOT NULL,
		CHECK (total_raised_usd <= hard_cap_usd)
	)`,

	`CREATE TABLE IF NOT EXISTS purchases (
		round_index BIGINT NOT NULL,
		buyer TEXT NOT NULL,
		contributed_usd BIGINT NOT NULL DEFAULT 0,
		base_allocation TEXT NOT NULL DEFAULT '0',
		bonus_allocation TEXT NOT NULL DEFAULT '0',
		purchase_count BIGINT NOT NULL DEFAULT 0,
		PRIMARY KEY (round_index, buyer)
	)`,

	`CREATE TABLE IF NOT EXISTS rate_limit_config (
		id INTEGER PRIMARY KEY,
		min_time_between_tx BIGINT NOT NULL,
		max_tx_per_period BIGINT NOT NULL,
		period BIGINT NOT NULL,
		max_daily_spend_usd BIGINT NOT NULL
	)`,

	`CREATE TABLE IF NOT EXISTS rate_limits (
		address TEXT PRIMARY KEY,
		last_tx_time BIGINT NOT NULL DEFAULT 0,
		tx_count BIGINT NOT NULL DEFAULT 0,
		window_start BIGINT NOT NULL DEFAULT 0,
		daily_spent_usd BIGINT NOT NULL DEFAULT 0,
		daily_window_start BIGINT NOT NULL DEFAULT 0
	)`,

	`CREATE TABLE IF NOT EXISTS referrals (
		address TEXT PRIMARY KEY,
		earned_as_referrer TEXT NOT NULL DEFAULT '0',
		earned_as_referee TEXT NOT NULL DEFAULT '0',
		referral_count BIGINT NOT NULL DEFAULT 0
	)`,

	`CREATE TABLE IF NOT EXISTS vesting_grants (
		id TEXT PRIMARY KEY,
		beneficiary TEXT NOT NULL,
		round_index BIGINT NOT NULL,
		total_amount TEXT NOT NULL,
		claimed_amount TEXT NOT NULL DEFAULT '0',
		start_time BIGINT NOT NULL,
		cliff_duration BIGINT NOT NULL,
		vesting_duration BIGINT NOT NULL
	)`,

	`CREATE TABLE IF NOT EXISTS custody_balances (
		asset TEXT PRIMARY KEY,
		balance TEXT NOT NULL DEFAULT '0'
	)`,

	`CREATE TABLE IF NOT EXISTS capabilities (
		ledger TEXT NOT NULL,
		capability TEXT NOT NULL,
		holder TEXT NOT NULL,
		granted_at BIGINT NOT NULL,
		PRIMARY KEY (ledger, capability, holder)
	)`,

	`CREATE TABLE IF NOT EXISTS asset_balances (
		asset TEXT NOT NULL,
		owner TEXT NOT NULL,
		balance TEXT NOT NULL DEFAULT '0',
		PRIMARY KEY (asset, owner)
	)`,

	`CREATE TABLE IF NOT EXISTS asset_allowances (
		asset TEXT NOT NULL,
		owner TEXT NOT NULL,
		spender TEXT NOT NULL,
		amount TEXT NOT NULL DEFAULT '0',
		PRIMARY KEY (asset, owner, spender)
	)`,

	`CREATE TABLE IF NOT EXISTS settlements (
		id TEXT PRIMARY KEY,
		round_index BIGINT NOT NULL,
		seq BIGINT NOT NULL,
		buyer TEXT NOT NULL,
		pay_asset TEXT NOT NULL,
		amount TEXT NOT NULL,
		usd_value BIGINT NOT NULL,
		base_tokens TEXT NOT NULL,
		bonus_tokens TEXT NOT NULL,
		referrer_bonus TEXT NOT NULL,
		referrer TEXT NOT NULL,
		created_at BIGINT NOT NULL,
		UNIQUE (round_index, seq)
	)`,

	`CREATE INDEX IF NOT EXISTS idx_purchases_buyer ON purchases(buyer)`,
	`CREATE INDEX IF NOT EXISTS idx_vesting_grants_beneficiary ON vesting_grants(beneficiary)`,
	`CREATE INDEX IF NOT EXISTS idx_capabilities_holder ON capabilities(holder)`,
	`CREATE INDEX IF NOT EXISTS idx_settlements_buyer ON settlements(buyer)`,
}

func initSchema(ctx context.Context, exec executor) error {
	for _, query := range schema {
		if _, err := exec.ExecContext(ctx, query); err != nil {
			return relationaldb.NewSchemaError("init_schema", "failed to execute schema query", err)
		}
	}
	return nil
}
