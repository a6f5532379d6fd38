package sqldb

import (
	"context"
	"database/sql"
	"errors"

	"github.com/LeJamon/goPresale/internal/core/types"
	"github.com/LeJamon/goPresale/internal/storage/relationaldb"
)

// CustodyRepository persists the vault's tracked balance per asset.
type CustodyRepository struct {
	base
}

func (r *CustodyRepository) Balance(ctx context.Context, asset types.Address) (*types.Amount, error) {
	if err := r.ensureRow(ctx, "custody_balance",
		"INSERT INTO custody_balances (asset) VALUES (?) ON CONFLICT (asset) DO NOTHING", addr(asset)); err != nil {
		return nil, err
	}

	var balance string
	err := r.exec.QueryRowContext(ctx,
		r.q("SELECT balance FROM custody_balances WHERE asset = ?"+r.lockSuffix()), addr(asset)).Scan(&balance)
	if errors.Is(err, sql.ErrNoRows) {
		return types.NewAmount(0), nil
	}
	if err != nil {
		return nil, relationaldb.NewQueryError("custody_balance", "failed to query custody balance", err)
	}
	return parseAmount("custody_balance", balance)
}

func (r *CustodyRepository) SetBalance(ctx context.Context, asset types.Address, balance *types.Amount) error {
	_, err := r.exec.ExecContext(ctx, r.q(`INSERT INTO custody_balances (asset, balance) VALUES (?, ?)
		ON CONFLICT (asset) DO UPDATE SET balance = excluded.balance`), addr(asset), amountText(balance))
	if err != nil {
		return relationaldb.NewQueryError("set_custody_balance", "failed to save custody balance", err)
	}
	return nil
}

func (r *CustodyRepository) Balances(ctx context.Context) (map[types.Address]*types.Amount, error) {
	rows, err := r.exec.QueryContext(ctx, "SELECT asset, balance FROM custody_balances")
	if err != nil {
		return nil, relationaldb.NewQueryError("custody_balances", "failed to query custody balances", err)
	}
	defer rows.Close()

	out := make(map[types.Address]*types.Amount)
	for rows.Next() {
		var asset, balance string
		if err := rows.Scan(&asset, &balance); err != nil {
			return nil, relationaldb.NewQueryError("custody_balances", "failed to scan custody balance", err)
		}
		v, err := parseAmount("custody_balances", balance)
		if err != nil {
			return nil, err
		}
		out[parseAddr(asset)] = v
	}
	if err := rows.Err(); err != nil {
		return nil, relationaldb.NewQueryError("custody_balances", "failed to iterate custody balances", err)
	}
	return out, nil
}
