package sqldb

import (
	"context"
	"database/sql"
	"errors"

	"github.com/LeJamon/goPresale/internal/core/types"
	"github.com/LeJamon/goPresale/internal/storage/relationaldb"
)

// PurchaseRepository persists per-buyer purchase records.
type PurchaseRepository struct {
	base
}

func scanPurchase(op string, s rowScanner) (*relationaldb.PurchaseRow, error) {
	var (
		p                  relationaldb.PurchaseRow
		round, contributed int64
		count              int64
		buyer, base, bonus string
	)
	if err := s.Scan(&round, &buyer, &contributed, &base, &bonus, &count); err != nil {
		return nil, err
	}
	var err error
	if p.BaseAllocation, err = parseAmount(op, base); err != nil {
		return nil, err
	}
	if p.BonusAllocation, err = parseAmount(op, bonus); err != nil {
		return nil, err
	}
	p.RoundIndex = uint64(round)
	p.Buyer = parseAddr(buyer)
	if p.ContributedUSD, err = usd(op, contributed); err != nil {
		return nil, err
	}
	p.PurchaseCount = uint64(count)
	return &p, nil
}

// Get returns an empty record for buyers without purchases.
func (r *PurchaseRepository) Get(ctx context.Context, round uint64, buyer types.Address) (*relationaldb.PurchaseRow, error) {
	if err := r.ensureRow(ctx, "get_purchase",
		"INSERT INTO purchases (round_index, buyer) VALUES (?, ?) ON CONFLICT (round_index, buyer) DO NOTHING",
		int64(round), addr(buyer)); err != nil {
		return nil, err
	}

	row := r.exec.QueryRowContext(ctx, r.q(`SELECT round_index, buyer, contributed_usd,
		base_allocation, bonus_allocation, purchase_count
		FROM purchases WHERE round_index = ? AND buyer = ?`+r.lockSuffix()), int64(round), addr(buyer))
	p, err := scanPurchase("get_purchase", row)
	if errors.Is(err, sql.ErrNoRows) {
		return &relationaldb.PurchaseRow{
			RoundIndex:      round,
			Buyer:           buyer,
			BaseAllocation:  types.NewAmount(0),
			BonusAllocation: types.NewAmount(0),
		}, nil
	}
	if err != nil {
		return nil, relationaldb.WrapError(err, "get_purchase")
	}
	return p, nil
}

func (r *PurchaseRepository) Upsert(ctx context.Context, p *relationaldb.PurchaseRow) error {
	_, err := r.exec.ExecContext(ctx, r.q(`INSERT INTO purchases (round_index, buyer, contributed_usd,
		base_allocation, bonus_allocation, purchase_count) VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT (round_index, buyer) DO UPDATE SET
			contributed_usd = excluded.contributed_usd,
			base_allocation = excluded.base_allocation,
			bonus_allocation = excluded.bonus_allocation,
			purchase_count = excluded.purchase_count`),
		int64(p.RoundIndex), addr(p.Buyer), int64(p.ContributedUSD),
		amountText(p.BaseAllocation), amountText(p.BonusAllocation), int64(p.PurchaseCount))
	if err != nil {
		return relationaldb.NewQueryError("upsert_purchase", "failed to save purchase", err)
	}
	return nil
}

// ListByRound skips placeholder rows of addresses that never bought.
func (r *PurchaseRepository) ListByRound(ctx context.Context, round uint64) ([]relationaldb.PurchaseRow, error) {
	rows, err := r.exec.QueryContext(ctx, r.q(`SELECT round_index, buyer, contributed_usd,
		base_allocation, bonus_allocation, purchase_count
		FROM purchases WHERE round_index = ? AND (purchase_count > 0 OR base_allocation <> '0' OR bonus_allocation <> '0')
		ORDER BY buyer`), int64(round))
	if err != nil {
		return nil, relationaldb.NewQueryError("list_purchases", "failed to query purchases", err)
	}
	defer rows.Close()

	var out []relationaldb.PurchaseRow
	for rows.Next() {
		p, err := scanPurchase("list_purchases", rows)
		if err != nil {
			return nil, relationaldb.WrapError(err, "list_purchases")
		}
		out = append(out, *p)
	}
	if err := rows.Err(); err != nil {
		return nil, relationaldb.NewQueryError("list_purchases", "failed to iterate purchases", err)
	}
	return out, nil
}
