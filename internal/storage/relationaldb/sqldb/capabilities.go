package sqldb

import (
	"context"

	"github.com/LeJamon/goPresale/internal/core/types"
	"github.com/LeJamon/goPresale/internal/storage/relationaldb"
)

// CapabilityRepository persists ACL grants.
type CapabilityRepository struct {
	base
}

func (r *CapabilityRepository) Has(ctx context.Context, ledger, capability string, holder types.Address) (bool, error) {
	var n int64
	err := r.exec.QueryRowContext(ctx, r.q(`SELECT COUNT(*) FROM capabilities
		WHERE ledger = ? AND capability = ? AND holder = ?`), ledger, capability, addr(holder)).Scan(&n)
	if err != nil {
		return false, relationaldb.NewQueryError("has_capability", "failed to query capability", err)
	}
	return n > 0, nil
}

// Grant reports whether the grant is new.
func (r *CapabilityRepository) Grant(ctx context.Context, row *relationaldb.CapabilityRow) (bool, error) {
	res, err := r.exec.ExecContext(ctx, r.q(`INSERT INTO capabilities (ledger, capability, holder, granted_at)
		VALUES (?, ?, ?, ?) ON CONFLICT (ledger, capability, holder) DO NOTHING`),
		row.Ledger, row.Capability, addr(row.Holder), row.GrantedAt)
	if err != nil {
		return false, relationaldb.NewQueryError("grant_capability", "failed to insert capability", err)
	}
	n, _ := res.RowsAffected()
	return n > 0, nil
}

// Revoke reports whether a grant was removed.
func (r *CapabilityRepository) Revoke(ctx context.Context, ledger, capability string, holder types.Address) (bool, error) {
	res, err := r.exec.ExecContext(ctx, r.q(`DELETE FROM capabilities
		WHERE ledger = ? AND capability = ? AND holder = ?`), ledger, capability, addr(holder))
	if err != nil {
		return false, relationaldb.NewQueryError("revoke_capability", "failed to delete capability", err)
	}
	n, _ := res.RowsAffected()
	return n > 0, nil
}

func (r *CapabilityRepository) ListByHolder(ctx context.Context, holder types.Address) ([]relationaldb.CapabilityRow, error) {
	rows, err := r.exec.QueryContext(ctx, r.q(`SELECT ledger, capability, granted_at FROM capabilities
		WHERE holder = ? ORDER BY ledger, capability`), addr(holder))
	if err != nil {
		return nil, relationaldb.NewQueryError("list_capabilities", "failed to query capabilities", err)
	}
	defer rows.Close()

	var out []relationaldb.CapabilityRow
	for rows.Next() {
		c := relationaldb.CapabilityRow{Holder: holder}
		if err := rows.Scan(&c.Ledger, &c.Capability, &c.GrantedAt); err != nil {
			return nil, relationaldb.NewQueryError("list_capabilities", "failed to scan capability", err)
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, relationaldb.NewQueryError("list_capabilities", "failed to iterate capabilities", err)
	}
	return out, nil
}
