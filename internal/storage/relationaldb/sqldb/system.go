package sqldb

import (
	"context"
	"database/sql"
	"errors"

	"github.com/LeJamon/goPresale/internal/storage/relationaldb"
)

// SystemRepository stores the single bootstrap row (id = 1).
type SystemRepository struct {
	base
}

func (r *SystemRepository) GetState(ctx context.Context) (*relationaldb.SystemState, error) {
	var (
		s                                       relationaldb.SystemState
		authority, registry, vault, pool, token string
		decimals                                int
	)
	err := r.exec.QueryRowContext(ctx, r.q(`SELECT authority, registry, custody_vault, vesting_pool,
		sale_token, token_decimals, initialized_at FROM system_state WHERE id = 1`)).
		Scan(&authority, &registry, &vault, &pool, &token, &decimals, &s.InitializedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, relationaldb.NewNotFoundError("get_system_state", "system")
	}
	if err != nil {
		return nil, relationaldb.NewQueryError("get_system_state", "failed to query system state", err)
	}

	s.Authority = parseAddr(authority)
	s.Registry = parseAddr(registry)
	s.CustodyVault = parseAddr(vault)
	s.VestingPool = parseAddr(pool)
	s.SaleToken = parseAddr(token)
	s.TokenDecimals = uint8(decimals)
	return &s, nil
}

// SaveState inserts the bootstrap row; a second insert is a duplicate entry.
func (r *SystemRepository) SaveState(ctx context.Context, s *relationaldb.SystemState) error {
	res, err := r.exec.ExecContext(ctx, r.q(`INSERT INTO system_state (id, authority, registry,
		custody_vault, vesting_pool, sale_token, token_decimals, initialized_at)
		VALUES (1, ?, ?, ?, ?, ?, ?, ?) ON CONFLICT (id) DO NOTHING`),
		addr(s.Authority), addr(s.Registry), addr(s.CustodyVault), addr(s.VestingPool),
		addr(s.SaleToken), int(s.TokenDecimals), s.InitializedAt)
	if err != nil {
		return relationaldb.NewQueryError("save_system_state", "failed to insert system state", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return relationaldb.NewConstraintError("save_system_state", "system state already exists", nil).WithCode("DUPLICATE_ENTRY")
	}
	return nil
}
