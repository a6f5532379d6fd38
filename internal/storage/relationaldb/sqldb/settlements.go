package sqldb

import (
	"context"

	"github.com/LeJamon/goPresale/internal/storage/relationaldb"
)

// SettlementRepository persists settlement records.
type SettlementRepository struct {
	base
}

const defaultSettlementLimit = 200

func (r *SettlementRepository) Insert(ctx context.Context, s *relationaldb.SettlementRow) error {
	_, err := r.exec.ExecContext(ctx, r.q(`INSERT INTO settlements (id, round_index, seq, buyer,
		pay_asset, amount, usd_value, base_tokens, bonus_tokens, referrer_bonus, referrer, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`),
		s.ID, int64(s.RoundIndex), int64(s.Sequence), addr(s.Buyer), addr(s.PayAsset),
		amountText(s.Amount), int64(s.USDValue), amountText(s.BaseTokens), amountText(s.BonusTokens),
		amountText(s.ReferrerBonus), addr(s.Referrer), s.Timestamp)
	if err != nil {
		return relationaldb.WrapError(err, "insert_settlement")
	}
	return nil
}

// List returns settlements of one round with seq > AfterSeq in order.
func (r *SettlementRepository) List(ctx context.Context, q relationaldb.SettlementQuery) ([]relationaldb.SettlementRow, error) {
	limit := q.Limit
	if limit <= 0 {
		limit = defaultSettlementLimit
	}

	rows, err := r.exec.QueryContext(ctx, r.q(`SELECT id, round_index, seq, buyer, pay_asset, amount,
		usd_value, base_tokens, bonus_tokens, referrer_bonus, referrer, created_at
		FROM settlements WHERE round_index = ? AND seq > ? ORDER BY seq LIMIT ?`),
		int64(q.RoundIndex), int64(q.AfterSeq), limit)
	if err != nil {
		return nil, relationaldb.NewQueryError("list_settlements", "failed to query settlements", err)
	}
	defer rows.Close()

	const op = "list_settlements"
	var out []relationaldb.SettlementRow
	for rows.Next() {
		var (
			s                                         relationaldb.SettlementRow
			round, seq, usdValue                      int64
			buyer, asset, referrer                    string
			amount, baseTokens, bonusTokens, refBonus string
		)
		if err := rows.Scan(&s.ID, &round, &seq, &buyer, &asset, &amount, &usdValue,
			&baseTokens, &bonusTokens, &refBonus, &referrer, &s.Timestamp); err != nil {
			return nil, relationaldb.NewQueryError(op, "failed to scan settlement", err)
		}
		if s.Amount, err = parseAmount(op, amount); err != nil {
			return nil, err
		}
		if s.BaseTokens, err = parseAmount(op, baseTokens); err != nil {
			return nil, err
		}
		if s.BonusTokens, err = parseAmount(op, bonusTokens); err != nil {
			return nil, err
		}
		if s.ReferrerBonus, err = parseAmount(op, refBonus); err != nil {
			return nil, err
		}
		s.RoundIndex = uint64(round)
		s.Sequence = uint64(seq)
		s.Buyer = parseAddr(buyer)
		s.PayAsset = parseAddr(asset)
		s.Referrer = parseAddr(referrer)
		if s.USDValue, err = usd(op, usdValue); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	if err := rows.Err(); err != nil {
		return nil, relationaldb.NewQueryError(op, "failed to iterate settlements", err)
	}
	return out, nil
}

func (r *SettlementRepository) Count(ctx context.Context, round uint64) (uint64, error) {
	var n int64
	if err := r.exec.QueryRowContext(ctx, r.q("SELECT COUNT(*) FROM settlements WHERE round_index = ?"),
		int64(round)).Scan(&n); err != nil {
		return 0, relationaldb.NewQueryError("count_settlements", "failed to count settlements", err)
	}
	return uint64(n), nil
}
