package sqldb

import (
	"context"

	"github.com/LeJamon/goPresale/internal/core/types"
	"github.com/LeJamon/goPresale/internal/storage/relationaldb"
)

// VestingRepository persists vesting grants.
type VestingRepository struct {
	base
}

func (r *VestingRepository) Insert(ctx context.Context, g *relationaldb.VestingGrantRow) error {
	_, err := r.exec.ExecContext(ctx, r.q(`INSERT INTO vesting_grants (id, beneficiary, round_index,
		total_amount, claimed_amount, start_time, cliff_duration, vesting_duration)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`),
		g.ID, addr(g.Beneficiary), int64(g.RoundIndex), amountText(g.TotalAmount),
		amountText(g.ClaimedAmount), g.StartTime, g.CliffDuration, g.VestingDuration)
	if err != nil {
		return relationaldb.WrapError(err, "insert_vesting_grant")
	}
	return nil
}

// ListByBeneficiary returns grants oldest first.
func (r *VestingRepository) ListByBeneficiary(ctx context.Context, a types.Address) ([]relationaldb.VestingGrantRow, error) {
	rows, err := r.exec.QueryContext(ctx, r.q(`SELECT id, round_index, total_amount, claimed_amount,
		start_time, cliff_duration, vesting_duration FROM vesting_grants
		WHERE beneficiary = ? ORDER BY start_time, id`+r.lockSuffix()), addr(a))
	if err != nil {
		return nil, relationaldb.NewQueryError("list_vesting_grants", "failed to query vesting grants", err)
	}
	defer rows.Close()

	var out []relationaldb.VestingGrantRow
	for rows.Next() {
		var (
			g              = relationaldb.VestingGrantRow{Beneficiary: a}
			round          int64
			total, claimed string
		)
		if err := rows.Scan(&g.ID, &round, &total, &claimed, &g.StartTime, &g.CliffDuration, &g.VestingDuration); err != nil {
			return nil, relationaldb.NewQueryError("list_vesting_grants", "failed to scan vesting grant", err)
		}
		if g.TotalAmount, err = parseAmount("list_vesting_grants", total); err != nil {
			return nil, err
		}
		if g.ClaimedAmount, err = parseAmount("list_vesting_grants", claimed); err != nil {
			return nil, err
		}
		g.RoundIndex = uint64(round)
		out = append(out, g)
	}
	if err := rows.Err(); err != nil {
		return nil, relationaldb.NewQueryError("list_vesting_grants", "failed to iterate vesting grants", err)
	}
	return out, nil
}

func (r *VestingRepository) SetClaimed(ctx context.Context, id string, claimed *types.Amount) error {
	res, err := r.exec.ExecContext(ctx, r.q("UPDATE vesting_grants SET claimed_amount = ? WHERE id = ?"),
		amountText(claimed), id)
	if err != nil {
		return relationaldb.NewQueryError("set_vesting_claimed", "failed to update vesting grant", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return relationaldb.NewNotFoundError("set_vesting_claimed", "vesting grant").WithDetail("id", id)
	}
	return nil
}
