package sqldb

import (
	"context"
	"database/sql"
	"errors"

	"github.com/LeJamon/goPresale/internal/core/types"
	"github.com/LeJamon/goPresale/internal/storage/relationaldb"
)

// ReferralRepository persists referral earnings.
type ReferralRepository struct {
	base
}

func (r *ReferralRepository) Get(ctx context.Context, a types.Address) (*relationaldb.ReferralRow, error) {
	if err := r.ensureRow(ctx, "get_referral",
		"INSERT INTO referrals (address) VALUES (?) ON CONFLICT (address) DO NOTHING", addr(a)); err != nil {
		return nil, err
	}

	var (
		referrer, referee string
		count             int64
	)
	err := r.exec.QueryRowContext(ctx, r.q(`SELECT earned_as_referrer, earned_as_referee, referral_count
		FROM referrals WHERE address = ?`+r.lockSuffix()), addr(a)).Scan(&referrer, &referee, &count)
	if errors.Is(err, sql.ErrNoRows) {
		return &relationaldb.ReferralRow{
			Address:          a,
			EarnedAsReferrer: types.NewAmount(0),
			EarnedAsReferee:  types.NewAmount(0),
		}, nil
	}
	if err != nil {
		return nil, relationaldb.NewQueryError("get_referral", "failed to query referral record", err)
	}

	row := &relationaldb.ReferralRow{Address: a, ReferralCount: uint64(count)}
	if row.EarnedAsReferrer, err = parseAmount("get_referral", referrer); err != nil {
		return nil, err
	}
	if row.EarnedAsReferee, err = parseAmount("get_referral", referee); err != nil {
		return nil, err
	}
	return row, nil
}

func (r *ReferralRepository) Save(ctx context.Context, row *relationaldb.ReferralRow) error {
	_, err := r.exec.ExecContext(ctx, r.q(`INSERT INTO referrals (address, earned_as_referrer,
		earned_as_referee, referral_count) VALUES (?, ?, ?, ?)
		ON CONFLICT (address) DO UPDATE SET
			earned_as_referrer = excluded.earned_as_referrer,
			earned_as_referee = excluded.earned_as_referee,
			referral_count = excluded.referral_count`),
		addr(row.Address), amountText(row.EarnedAsReferrer), amountText(row.EarnedAsReferee),
		int64(row.ReferralCount))
	if err != nil {
		return relationaldb.NewQueryError("save_referral", "failed to save referral record", err)
	}
	return nil
}
