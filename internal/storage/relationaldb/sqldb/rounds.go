package sqldb

import (
	"context"
	"database/sql"
	"errors"

	"github.com/LeJamon/goPresale/internal/core/types"
	"github.com/LeJamon/goPresale/internal/storage/relationaldb"
)

// RoundRepository persists sale rounds.
type RoundRepository struct {
	base
}

const roundColumns = `round_index, address, name, token_price_usd, hard_cap_usd, start_time,
	end_time, cliff_duration, vesting_duration, is_active, paused, oracle, total_raised_usd,
	total_tokens_sold, settlement_count, created_at`

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanRound(op string, s rowScanner) (*relationaldb.RoundRow, error) {
	var (
		r                      relationaldb.RoundRow
		address, sold          string
		price, hardCap, raised int64
		index, settlementCount int64
	)
	if err := s.Scan(&index, &address, &r.Name, &price, &hardCap, &r.StartTime, &r.EndTime,
		&r.CliffDuration, &r.VestingDuration, &r.IsActive, &r.Paused, &r.Oracle, &raised,
		&sold, &settlementCount, &r.CreatedAt); err != nil {
		return nil, err
	}
	tokens, err := parseAmount(op, sold)
	if err != nil {
		return nil, err
	}
	r.Index = uint64(index)
	r.Address = parseAddr(address)
	if r.TokenPriceUSD, err = usd(op, price); err != nil {
		return nil, err
	}
	if r.HardCapUSD, err = usd(op, hardCap); err != nil {
		return nil, err
	}
	if r.TotalRaisedUSD, err = usd(op, raised); err != nil {
		return nil, err
	}
	r.TotalTokensSold = tokens
	r.SettlementCount = uint64(settlementCount)
	return &r, nil
}

func (r *RoundRepository) Count(ctx context.Context) (uint64, error) {
	var n int64
	if err := r.exec.QueryRowContext(ctx, "SELECT COUNT(*) FROM rounds").Scan(&n); err != nil {
		return 0, relationaldb.NewQueryError("count_rounds", "failed to count rounds", err)
	}
	return uint64(n), nil
}

func (r *RoundRepository) Get(ctx context.Context, index uint64) (*relationaldb.RoundRow, error) {
	row := r.exec.QueryRowContext(ctx,
		r.q("SELECT "+roundColumns+" FROM rounds WHERE round_index = ?"+r.lockSuffix()), int64(index))
	round, err := scanRound("get_round", row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, relationaldb.NewNotFoundError("get_round", "round").WithDetail("index", index)
	}
	if err != nil {
		return nil, relationaldb.WrapError(err, "get_round")
	}
	return round, nil
}

func (r *RoundRepository) List(ctx context.Context) ([]relationaldb.RoundRow, error) {
	rows, err := r.exec.QueryContext(ctx, "SELECT "+roundColumns+" FROM rounds ORDER BY round_index")
	if err != nil {
		return nil, relationaldb.NewQueryError("list_rounds", "failed to query rounds", err)
	}
	defer rows.Close()

	var out []relationaldb.RoundRow
	for rows.Next() {
		round, err := scanRound("list_rounds", rows)
		if err != nil {
			return nil, relationaldb.WrapError(err, "list_rounds")
		}
		out = append(out, *round)
	}
	if err := rows.Err(); err != nil {
		return nil, relationaldb.NewQueryError("list_rounds", "failed to iterate rounds", err)
	}
	return out, nil
}

func (r *RoundRepository) Insert(ctx context.Context, round *relationaldb.RoundRow) error {
	_, err := r.exec.ExecContext(ctx, r.q(`INSERT INTO rounds (`+roundColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`),
		int64(round.Index), addr(round.Address), round.Name, int64(round.TokenPriceUSD),
		int64(round.HardCapUSD), round.StartTime, round.EndTime, round.CliffDuration,
		round.VestingDuration, round.IsActive, round.Paused, round.Oracle,
		int64(round.TotalRaisedUSD), amountText(round.TotalTokensSold),
		int64(round.SettlementCount), round.CreatedAt)
	if err != nil {
		return relationaldb.WrapError(err, "insert_round")
	}
	return nil
}

func (r *RoundRepository) update(ctx context.Context, op string, index uint64, set string, args ...interface{}) error {
	args = append(args, int64(index))
	res, err := r.exec.ExecContext(ctx, r.q("UPDATE rounds SET "+set+" WHERE round_index = ?"), args...)
	if err != nil {
		return relationaldb.NewQueryError(op, "failed to update round", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return relationaldb.NewNotFoundError(op, "round").WithDetail("index", index)
	}
	return nil
}

func (r *RoundRepository) SetPaused(ctx context.Context, index uint64, paused bool) error {
	return r.update(ctx, "set_round_paused", index, "paused = ?", paused)
}

func (r *RoundRepository) SetOracle(ctx context.Context, index uint64, oracle string) error {
	return r.update(ctx, "set_round_oracle", index, "oracle = ?", oracle)
}

func (r *RoundRepository) SetTokensSold(ctx context.Context, index uint64, sold *types.Amount) error {
	return r.update(ctx, "set_tokens_sold", index, "total_tokens_sold = ?", amountText(sold))
}

func (r *RoundRepository) AddRaised(ctx context.Context, index uint64, amount types.USD) (bool, error) {
	res, err := r.exec.ExecContext(ctx, r.q(`UPDATE rounds
		SET total_raised_usd = total_raised_usd + ?
		WHERE round_index = ? AND total_raised_usd + ? <= hard_cap_usd`),
		int64(amount), int64(index), int64(amount))
	if err != nil {
		return false, relationaldb.NewQueryError("add_raised", "failed to increment raised total", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, relationaldb.NewQueryError("add_raised", "failed to read affected rows", err)
	}
	return n == 1, nil
}

func (r *RoundRepository) NextSettlementSeq(ctx context.Context, index uint64) (uint64, error) {
	if err := r.update(ctx, "next_settlement_seq", index, "settlement_count = settlement_count + 1"); err != nil {
		return 0, err
	}
	var seq int64
	if err := r.exec.QueryRowContext(ctx,
		r.q("SELECT settlement_count FROM rounds WHERE round_index = ?"), int64(index)).Scan(&seq); err != nil {
		return 0, relationaldb.NewQueryError("next_settlement_seq", "failed to read settlement count", err)
	}
	return uint64(seq), nil
}
