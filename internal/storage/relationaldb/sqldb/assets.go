package sqldb

import (
	"context"
	"database/sql"
	"errors"

	"github.com/LeJamon/goPresale/internal/core/types"
	"github.com/LeJamon/goPresale/internal/storage/relationaldb"
)

// AssetRepository persists the asset book.
type AssetRepository struct {
	base
}

func (r *AssetRepository) Balance(ctx context.Context, asset, owner types.Address) (*types.Amount, error) {
	if err := r.ensureRow(ctx, "asset_balance",
		"INSERT INTO asset_balances (asset, owner) VALUES (?, ?) ON CONFLICT (asset, owner) DO NOTHING",
		addr(asset), addr(owner)); err != nil {
		return nil, err
	}

	var balance string
	err := r.exec.QueryRowContext(ctx, r.q(`SELECT balance FROM asset_balances
		WHERE asset = ? AND owner = ?`+r.lockSuffix()), addr(asset), addr(owner)).Scan(&balance)
	if errors.Is(err, sql.ErrNoRows) {
		return types.NewAmount(0), nil
	}
	if err != nil {
		return nil, relationaldb.NewQueryError("asset_balance", "failed to query asset balance", err)
	}
	return parseAmount("asset_balance", balance)
}

func (r *AssetRepository) SetBalance(ctx context.Context, asset, owner types.Address, balance *types.Amount) error {
	_, err := r.exec.ExecContext(ctx, r.q(`INSERT INTO asset_balances (asset, owner, balance) VALUES (?, ?, ?)
		ON CONFLICT (asset, owner) DO UPDATE SET balance = excluded.balance`),
		addr(asset), addr(owner), amountText(balance))
	if err != nil {
		return relationaldb.NewQueryError("set_asset_balance", "failed to save asset balance", err)
	}
	return nil
}

func (r *AssetRepository) Allowance(ctx context.Context, asset, owner, spender types.Address) (*types.Amount, error) {
	if err := r.ensureRow(ctx, "asset_allowance",
		"INSERT INTO asset_allowances (asset, owner, spender) VALUES (?, ?, ?) ON CONFLICT (asset, owner, spender) DO NOTHING",
		addr(asset), addr(owner), addr(spender)); err != nil {
		return nil, err
	}

	var amount string
	err := r.exec.QueryRowContext(ctx, r.q(`SELECT amount FROM asset_allowances
		WHERE asset = ? AND owner = ? AND spender = ?`+r.lockSuffix()),
		addr(asset), addr(owner), addr(spender)).Scan(&amount)
	if errors.Is(err, sql.ErrNoRows) {
		return types.NewAmount(0), nil
	}
	if err != nil {
		return nil, relationaldb.NewQueryError("asset_allowance", "failed to query allowance", err)
	}
	return parseAmount("asset_allowance", amount)
}

func (r *AssetRepository) SetAllowance(ctx context.Context, asset, owner, spender types.Address, amount *types.Amount) error {
	_, err := r.exec.ExecContext(ctx, r.q(`INSERT INTO asset_allowances (asset, owner, spender, amount)
		VALUES (?, ?, ?, ?) ON CONFLICT (asset, owner, spender) DO UPDATE SET amount = excluded.amount`),
		addr(asset), addr(owner), addr(spender), amountText(amount))
	if err != nil {
		return relationaldb.NewQueryError("set_asset_allowance", "failed to save allowance", err)
	}
	return nil
}
